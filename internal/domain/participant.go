// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxParticipantIDLen = 64
	MaxDisplayNameLen   = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrParticipantIDEmpty = errors.New("participant id empty")
	ErrParticipantIDLong  = errors.New("participant id too long")
)

type ParticipantID string

// Participant is the caller-supplied identity a connection joins a channel with.
type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"username"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ParticipantID, displayName string) (Participant, error) {
	if id == "" {
		return Participant{}, ErrParticipantIDEmpty
	}
	if len(id) > MaxParticipantIDLen {
		return Participant{}, ErrParticipantIDLong
	}
	p := Participant{ID: id}
	if err := p.SetDisplayName(displayName); err != nil {
		return Participant{}, err
	}
	return p, nil
}

func (p *Participant) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	p.DisplayName = name
	return nil
}

// Label is the name used in notifications; falls back to the id.
func (p Participant) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return string(p.ID)
}

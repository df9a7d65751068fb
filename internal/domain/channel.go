package domain

import (
	"errors"
	"strings"
	"time"
)

const MaxChannelNameLen = 64

var (
	ErrChannelNameEmpty   = errors.New("channel name empty")
	ErrChannelNameTooLong = errors.New("channel name too long")
)

type ChannelID string

// Channel is the directory record of a voice channel. Live membership is not
// stored here; it belongs to the relay's registry.
type Channel struct {
	ID        ChannelID     `json:"id"`
	Name      string        `json:"name"`
	CreatedBy ParticipantID `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
}

func NormalizeChannelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrChannelNameEmpty
	}
	if len(name) > MaxChannelNameLen {
		return "", ErrChannelNameTooLong
	}
	return name, nil
}

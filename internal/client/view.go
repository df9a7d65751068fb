package client

import (
	"sync"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
)

// ViewSnapshot is a copy of the membership view.
type ViewSnapshot struct {
	Channel domain.ChannelID
	Members []domain.Participant
}

// MembershipView is the client's belief of its current channel and roster.
// Written by the session loop, read by anything.
type MembershipView struct {
	mu      sync.RWMutex
	self    domain.Participant
	channel domain.ChannelID
	members []domain.Participant
}

func NewMembershipView(self domain.Participant) *MembershipView {
	return &MembershipView{self: self}
}

// Reset switches the view to ch with an empty roster.
func (v *MembershipView) Reset(ch domain.ChannelID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.channel = ch
	v.members = nil
}

func (v *MembershipView) Insert(p domain.Participant) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.insertLocked(p)
}

func (v *MembershipView) insertLocked(p domain.Participant) {
	for i, m := range v.members {
		if m.ID == p.ID {
			v.members[i] = p
			return
		}
	}
	v.members = append(v.members, p)
}

func (v *MembershipView) Remove(id domain.ParticipantID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, m := range v.members {
		if m.ID == id {
			v.members = append(v.members[:i], v.members[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyRoster replaces the roster with users plus the local participant,
// who is never part of the roster the relay sends us.
func (v *MembershipView) ApplyRoster(users []protocol.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.members = []domain.Participant{v.self}
	for _, u := range users {
		v.insertLocked(domain.Participant{ID: u.ID, DisplayName: u.Username})
	}
}

func (v *MembershipView) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	members := make([]domain.Participant, len(v.members))
	copy(members, v.members)
	return ViewSnapshot{Channel: v.channel, Members: members}
}

func (v *MembershipView) Restore(s ViewSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.channel = s.Channel
	v.members = append([]domain.Participant(nil), s.Members...)
}

// Package protocol defines the signaling wire events exchanged between the
// voice client and the relay. Frames are decoded once, at the transport
// boundary, into a closed set of event types.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

const (
	EventJoinChannel  = "join-channel"
	EventLeaveChannel = "leave-channel"
	EventSignal       = "signal"
	EventChannelUsers = "channel-users"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
)

type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
)

func (t SignalType) Valid() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

// ClientEvent is a client->server event. Implemented only by the types below.
type ClientEvent interface {
	Name() string
	clientEvent()
}

// ServerEvent is a server->client event. Implemented only by the types below.
type ServerEvent interface {
	Name() string
	Channel() domain.ChannelID
	serverEvent()
}

type JoinChannel struct {
	ChannelID domain.ChannelID     `json:"channelId"`
	UserID    domain.ParticipantID `json:"userId"`
	Username  string               `json:"username"`
}

type LeaveChannel struct {
	ChannelID domain.ChannelID     `json:"channelId"`
	UserID    domain.ParticipantID `json:"userId"`
}

// SignalRequest is an envelope as sent by a client. Any "from" it carries is
// discarded on decode.
type SignalRequest struct {
	Type      SignalType           `json:"type"`
	To        domain.ParticipantID `json:"to"`
	ChannelID domain.ChannelID     `json:"channelId"`
	SDP       json.RawMessage      `json:"sdp,omitempty"`
	Candidate json.RawMessage      `json:"candidate,omitempty"`
}

// User is one roster entry.
type User struct {
	ID       domain.ParticipantID `json:"id"`
	Username string               `json:"username"`
}

type ChannelUsers struct {
	ChannelID domain.ChannelID `json:"channelId"`
	Users     []User           `json:"users"`
}

type UserJoined struct {
	ChannelID domain.ChannelID     `json:"channelId"`
	UserID    domain.ParticipantID `json:"userId"`
	Username  string               `json:"username"`
}

type UserLeft struct {
	ChannelID domain.ChannelID     `json:"channelId"`
	UserID    domain.ParticipantID `json:"userId"`
	Username  string               `json:"username"`
}

// SignalRelay is an envelope as delivered to its recipient; From is stamped
// by the relay.
type SignalRelay struct {
	Type      SignalType           `json:"type"`
	From      domain.ParticipantID `json:"from"`
	ChannelID domain.ChannelID     `json:"channelId"`
	SDP       json.RawMessage      `json:"sdp,omitempty"`
	Candidate json.RawMessage      `json:"candidate,omitempty"`
}

func (JoinChannel) Name() string   { return EventJoinChannel }
func (LeaveChannel) Name() string  { return EventLeaveChannel }
func (SignalRequest) Name() string { return EventSignal }
func (JoinChannel) clientEvent()   {}
func (LeaveChannel) clientEvent()  {}
func (SignalRequest) clientEvent() {}

func (ChannelUsers) Name() string { return EventChannelUsers }
func (UserJoined) Name() string   { return EventUserJoined }
func (UserLeft) Name() string     { return EventUserLeft }
func (SignalRelay) Name() string  { return EventSignal }

func (e ChannelUsers) Channel() domain.ChannelID { return e.ChannelID }
func (e UserJoined) Channel() domain.ChannelID   { return e.ChannelID }
func (e UserLeft) Channel() domain.ChannelID     { return e.ChannelID }
func (e SignalRelay) Channel() domain.ChannelID  { return e.ChannelID }

func (ChannelUsers) serverEvent() {}
func (UserJoined) serverEvent()   {}
func (UserLeft) serverEvent()     {}
func (SignalRelay) serverEvent()  {}

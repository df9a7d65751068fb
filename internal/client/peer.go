package client

import (
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

type PeerState int

const (
	StateNew PeerState = iota
	StateOffering
	StateAnswering
	StateConnected
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

func (s PeerState) negotiating() bool {
	return s == StateNew || s == StateOffering || s == StateAnswering
}

// peerSession is the negotiation state toward one remote participant. A
// closed session is never reused; rediscovery creates a new one.
type peerSession struct {
	remote   domain.ParticipantID
	conn     core.MediaConnection
	state    PeerState
	deadline time.Time
}

func (p *peerSession) transition(to PeerState, now time.Time, timeout time.Duration) {
	p.state = to
	if to.negotiating() {
		p.deadline = now.Add(timeout)
	} else {
		p.deadline = time.Time{}
	}
}

func (p *peerSession) close() {
	if p.state == StateClosed {
		return
	}
	p.state = StateClosed
	p.conn.Close()
}

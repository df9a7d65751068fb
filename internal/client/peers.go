package client

import (
	"encoding/json"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnFactory opens a media connection toward remote.
type ConnFactory func(remote domain.ParticipantID) (core.MediaConnection, error)

// TrackHandler receives a remote audio track. It runs on the media
// library's goroutine and may block reading the track.
type TrackHandler func(remote domain.ParticipantID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

type PeerOptions struct {
	Self    domain.ParticipantID
	NewConn ConnFactory
	// Send writes one client event on the ordered signaling queue.
	Send func(protocol.ClientEvent)
	// Post runs fn on the goroutine that owns the PeerManager.
	Post               func(fn func())
	OnTrack            TrackHandler
	NegotiationTimeout time.Duration
	MaxRetries         int
}

// PeerManager owns one negotiation session per remote participant of the
// current channel. Not safe for concurrent use: every method, and every
// callback it receives through Post, runs on the owning loop.
type PeerManager struct {
	opts     PeerOptions
	channel  domain.ChannelID
	local    webrtc.TrackLocal
	sessions map[domain.ParticipantID]*peerSession
	retries  map[domain.ParticipantID]int
	now      func() time.Time
	logger   zerolog.Logger
}

func NewPeerManager(opts PeerOptions) *PeerManager {
	if opts.NegotiationTimeout <= 0 {
		opts.NegotiationTimeout = 15 * time.Second
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	return &PeerManager{
		opts:     opts,
		sessions: make(map[domain.ParticipantID]*peerSession),
		retries:  make(map[domain.ParticipantID]int),
		now:      time.Now,
		logger:   log.With().Str("module", "client.peers").Str("self", string(opts.Self)).Logger(),
	}
}

// Start scopes the manager to ch with local attached to every new session.
func (m *PeerManager) Start(ch domain.ChannelID, local webrtc.TrackLocal) {
	m.channel = ch
	m.local = local
}

// CloseAll tears down every session and forgets the channel.
func (m *PeerManager) CloseAll() {
	for id, s := range m.sessions {
		s.close()
		delete(m.sessions, id)
	}
	m.retries = make(map[domain.ParticipantID]int)
	m.channel = ""
	m.local = nil
}

// States reports the state of every tracked session.
func (m *PeerManager) States() map[domain.ParticipantID]PeerState {
	out := make(map[domain.ParticipantID]PeerState, len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s.state
	}
	return out
}

func (m *PeerManager) Channel() domain.ChannelID { return m.channel }

// initiates reports whether the local side offers to remote: the lower id does.
func (m *PeerManager) initiates(remote domain.ParticipantID) bool {
	return m.opts.Self < remote
}

// OnRoster reconciles sessions with a roster snapshot. Tracked remotes are
// left alone; remotes missing from the snapshot are closed.
func (m *PeerManager) OnRoster(users []protocol.User) {
	present := make(map[domain.ParticipantID]struct{}, len(users))
	for _, u := range users {
		if u.ID == m.opts.Self {
			continue
		}
		present[u.ID] = struct{}{}
		m.Discover(u.ID)
	}
	for id := range m.sessions {
		if _, ok := present[id]; !ok {
			m.Remove(id)
		}
	}
}

// Discover starts tracking remote if it is not tracked yet.
func (m *PeerManager) Discover(remote domain.ParticipantID) {
	if remote == m.opts.Self || m.channel == "" {
		return
	}
	if _, ok := m.sessions[remote]; ok {
		return
	}
	delete(m.retries, remote)
	m.open(remote)
}

func (m *PeerManager) open(remote domain.ParticipantID) *peerSession {
	s, err := m.newSession(remote)
	if err != nil {
		m.logger.Error().Err(err).Str("remote", string(remote)).Msg("open peer connection")
		return nil
	}
	if m.initiates(remote) {
		m.offer(s)
	} else {
		m.logger.Debug().Str("remote", string(remote)).Msg("waiting for offer")
	}
	return s
}

func (m *PeerManager) newSession(remote domain.ParticipantID) (*peerSession, error) {
	conn, err := m.opts.NewConn(remote)
	if err != nil {
		return nil, err
	}
	s := &peerSession{remote: remote, conn: conn}
	s.transition(StateNew, m.now(), m.opts.NegotiationTimeout)
	m.sessions[remote] = s

	if m.local != nil {
		if err := conn.AddLocalTrack(m.local); err != nil {
			m.logger.Error().Err(err).Str("remote", string(remote)).Msg("attach local audio")
		}
	}

	ch := m.channel
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		m.opts.Post(func() {
			if m.current(remote, s) {
				m.sendCandidate(ch, remote, ci)
			}
		})
	})
	conn.OnStateChange(func(state webrtc.PeerConnectionState) {
		m.opts.Post(func() {
			if m.current(remote, s) {
				m.onTransport(s, state)
			}
		})
	})
	conn.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if m.opts.OnTrack != nil {
			m.opts.OnTrack(remote, track, receiver)
		}
	})
	return s, nil
}

// current reports whether s is still the live session for remote.
func (m *PeerManager) current(remote domain.ParticipantID, s *peerSession) bool {
	return m.sessions[remote] == s && s.state != StateClosed
}

func (m *PeerManager) offer(s *peerSession) {
	desc, err := s.conn.CreateOffer()
	if err != nil {
		m.logger.Error().Err(err).Str("remote", string(s.remote)).Msg("create offer")
		m.Remove(s.remote)
		return
	}
	s.transition(StateOffering, m.now(), m.opts.NegotiationTimeout)
	m.sendDescription(protocol.SignalOffer, s.remote, desc)
}

// Remove closes the session for remote, if any.
func (m *PeerManager) Remove(remote domain.ParticipantID) {
	s, ok := m.sessions[remote]
	if !ok {
		return
	}
	delete(m.sessions, remote)
	s.close()
	m.logger.Info().Str("remote", string(remote)).Msg("peer session closed")
}

// OnSignal applies an envelope addressed to us.
func (m *PeerManager) OnSignal(ev protocol.SignalRelay) {
	logger := m.logger.With().Str("remote", string(ev.From)).Str("type", string(ev.Type)).Logger()
	if ev.From == m.opts.Self || m.channel == "" {
		return
	}
	switch ev.Type {
	case protocol.SignalOffer:
		m.onOffer(ev, logger)
	case protocol.SignalAnswer:
		m.onAnswer(ev, logger)
	case protocol.SignalCandidate:
		s, ok := m.sessions[ev.From]
		if !ok {
			logger.Debug().Msg("candidate for unknown remote dropped")
			return
		}
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(ev.Candidate, &ci); err != nil {
			logger.Warn().Err(err).Msg("bad candidate")
			return
		}
		if err := s.conn.AddICECandidate(ci); err != nil {
			logger.Warn().Err(err).Msg("add candidate")
		}
	}
}

func (m *PeerManager) onOffer(ev protocol.SignalRelay, logger zerolog.Logger) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(ev.SDP, &desc); err != nil || desc.Type != webrtc.SDPTypeOffer {
		logger.Warn().Err(err).Msg("bad offer")
		return
	}
	s, ok := m.sessions[ev.From]
	if ok && s.state != StateNew && s.state != StateConnected {
		logger.Warn().Str("state", s.state.String()).Msg("offer in incompatible state dropped")
		return
	}
	if !ok {
		var err error
		if s, err = m.newSession(ev.From); err != nil {
			logger.Error().Err(err).Msg("open peer connection")
			return
		}
	}
	s.transition(StateAnswering, m.now(), m.opts.NegotiationTimeout)
	answer, err := s.conn.AcceptOffer(desc)
	if err != nil {
		logger.Error().Err(err).Msg("accept offer")
		m.Remove(ev.From)
		return
	}
	m.sendDescription(protocol.SignalAnswer, ev.From, answer)
	s.transition(StateConnected, m.now(), m.opts.NegotiationTimeout)
	logger.Info().Msg("answered")
}

func (m *PeerManager) onAnswer(ev protocol.SignalRelay, logger zerolog.Logger) {
	s, ok := m.sessions[ev.From]
	if !ok || s.state != StateOffering {
		state := "absent"
		if ok {
			state = s.state.String()
		}
		logger.Warn().Str("state", state).Msg("answer in incompatible state dropped")
		return
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(ev.SDP, &desc); err != nil || desc.Type != webrtc.SDPTypeAnswer {
		logger.Warn().Err(err).Msg("bad answer")
		return
	}
	if err := s.conn.AcceptAnswer(desc); err != nil {
		logger.Error().Err(err).Msg("accept answer")
		m.Remove(ev.From)
		return
	}
	s.transition(StateConnected, m.now(), m.opts.NegotiationTimeout)
	logger.Info().Msg("answer accepted")
}

func (m *PeerManager) onTransport(s *peerSession, state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if s.state != StateConnected {
			s.transition(StateConnected, m.now(), m.opts.NegotiationTimeout)
		}
		delete(m.retries, s.remote)
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		m.logger.Info().Str("remote", string(s.remote)).Str("transport", state.String()).Msg("transport lost")
		m.Remove(s.remote)
	}
}

// Sweep replaces sessions stuck negotiating past their deadline.
func (m *PeerManager) Sweep(now time.Time) {
	var expired []*peerSession
	for _, s := range m.sessions {
		if s.state.negotiating() && !now.Before(s.deadline) {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		id, state := s.remote, s.state
		m.Remove(id)
		m.retries[id]++
		if m.opts.MaxRetries >= 0 && m.retries[id] > m.opts.MaxRetries {
			m.logger.Warn().Str("remote", string(id)).Int("retries", m.retries[id]-1).Msg("negotiation abandoned")
			continue
		}
		m.logger.Info().Str("remote", string(id)).Str("state", state.String()).Int("retry", m.retries[id]).Msg("negotiation timed out, retrying")
		m.open(id)
	}
}

func (m *PeerManager) sendDescription(t protocol.SignalType, to domain.ParticipantID, desc webrtc.SessionDescription) {
	raw, err := json.Marshal(desc)
	if err != nil {
		m.logger.Error().Err(err).Msg("encode description")
		return
	}
	m.opts.Send(protocol.SignalRequest{Type: t, To: to, ChannelID: m.channel, SDP: raw})
}

func (m *PeerManager) sendCandidate(ch domain.ChannelID, to domain.ParticipantID, ci webrtc.ICECandidateInit) {
	if ch != m.channel {
		return
	}
	raw, err := json.Marshal(ci)
	if err != nil {
		m.logger.Error().Err(err).Msg("encode candidate")
		return
	}
	m.opts.Send(protocol.SignalRequest{Type: protocol.SignalCandidate, To: to, ChannelID: ch, Candidate: raw})
}

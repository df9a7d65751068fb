package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("session closed")

type SessionOptions struct {
	Self    domain.Participant
	Signal  Signaler
	Media   MediaCapability
	NewConn ConnFactory
	// ExtensionID resolves the audio level extension of a receiver; nil
	// means payload-size levels only.
	ExtensionID func(*webrtc.RTPReceiver) uint8

	NegotiationTimeout time.Duration
	MaxRetries         int
	SweepInterval      time.Duration

	SpeakingInterval  time.Duration
	SpeakingThreshold float64
	OnSpeaking        func(id domain.ParticipantID, speaking bool)
}

// Session is one signed-in client: it owns the relay link, the channel
// switcher and the peer mesh. Everything that mutates that state runs on
// the goroutine executing Run.
type Session struct {
	opts     SessionOptions
	view     *MembershipView
	peers    *PeerManager
	switcher *Switcher
	speaking *SpeakingMonitor

	tasks chan func()
	done  chan struct{}

	mu          sync.Mutex
	untrackSelf func()
	muted       bool
}

func NewSession(opts SessionOptions) *Session {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	s := &Session{
		opts:  opts,
		view:  NewMembershipView(opts.Self),
		tasks: make(chan func(), 1024),
		done:  make(chan struct{}),
	}
	s.speaking = NewSpeakingMonitor(opts.SpeakingInterval, opts.SpeakingThreshold, opts.OnSpeaking)
	s.peers = NewPeerManager(PeerOptions{
		Self:               opts.Self.ID,
		NewConn:            opts.NewConn,
		Send:               s.send,
		Post:               s.post,
		OnTrack:            s.onTrack,
		NegotiationTimeout: opts.NegotiationTimeout,
		MaxRetries:         opts.MaxRetries,
	})
	s.switcher = NewSwitcher(opts.Self, s.send, opts.Media, s.view, s.peers)
	s.switcher.onLocal = s.onLocal
	return s
}

// Run processes server events, media callbacks and commands until ctx is
// done or the relay link drops. On return every peer session is closed.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.switcher.LeaveCurrent()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.speaking.Run(ctx)

	sweep := time.NewTicker(s.opts.SweepInterval)
	defer sweep.Stop()
	events := s.opts.Signal.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrSignalClosed
			}
			s.handle(ev)
		case fn := <-s.tasks:
			fn()
		case now := <-sweep.C:
			s.peers.Sweep(now)
		}
	}
}

// handle applies a server event. Events scoped to any channel other than
// the current one are dropped here, before they reach the view or a
// negotiation session.
func (s *Session) handle(ev protocol.ServerEvent) {
	if ch := s.switcher.Channel(); ch == "" || ev.Channel() != ch {
		log.Debug().Str("module", "client.session").Str("event", ev.Name()).Str("channel", string(ev.Channel())).Msg("stale channel event dropped")
		return
	}
	switch e := ev.(type) {
	case protocol.ChannelUsers:
		s.view.ApplyRoster(e.Users)
		s.peers.OnRoster(e.Users)
	case protocol.UserJoined:
		if e.UserID == s.opts.Self.ID {
			return
		}
		s.view.Insert(domain.Participant{ID: e.UserID, DisplayName: e.Username})
		s.peers.Discover(e.UserID)
	case protocol.UserLeft:
		if e.UserID == s.opts.Self.ID {
			return
		}
		s.view.Remove(e.UserID)
		s.peers.Remove(e.UserID)
	case protocol.SignalRelay:
		s.peers.OnSignal(e)
	}
}

func (s *Session) send(ev protocol.ClientEvent) {
	if err := s.opts.Signal.Send(ev); err != nil {
		log.Warn().Err(err).Str("module", "client.session").Str("event", ev.Name()).Msg("send failed")
	}
}

func (s *Session) post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() { result <- fn() }
	select {
	case s.tasks <- task:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) SwitchTo(ctx context.Context, ch domain.ChannelID) error {
	return s.do(ctx, func() error { return s.switcher.SwitchTo(ctx, ch) })
}

func (s *Session) LeaveCurrent(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.switcher.LeaveCurrent()
		return nil
	})
}

// SetMuted stops or resumes sending local audio without renegotiating.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	s.post(func() {
		if local := s.switcher.Local(); local != nil {
			local.SetMuted(muted)
		}
	})
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Session) View() ViewSnapshot { return s.view.Snapshot() }

func (s *Session) IsSpeaking(id domain.ParticipantID) bool { return s.speaking.IsSpeaking(id) }

// PeerStates is answered on the loop.
func (s *Session) PeerStates(ctx context.Context) (map[domain.ParticipantID]PeerState, error) {
	var out map[domain.ParticipantID]PeerState
	err := s.do(ctx, func() error {
		out = s.peers.States()
		return nil
	})
	return out, err
}

func (s *Session) onLocal(local LocalAudio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.untrackSelf != nil {
		s.untrackSelf()
		s.untrackSelf = nil
	}
	if local == nil {
		return
	}
	local.SetMuted(s.muted)
	s.untrackSelf = s.speaking.Track(s.opts.Self.ID, local.Level)
}

// onTrack renders a remote stream and feeds its level to speaking detection
// until the track ends.
func (s *Session) onTrack(remote domain.ParticipantID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	logger := log.With().Str("module", "client.session").Str("remote", string(remote)).Logger()
	sink, err := s.opts.Media.OpenSink(remote, track.Codec())
	if err != nil {
		logger.Error().Err(err).Msg("open sink")
		return
	}
	defer sink.Close()

	var extID uint8
	if s.opts.ExtensionID != nil {
		extID = s.opts.ExtensionID(receiver)
	}
	level := NewRemoteLevel(extID)
	untrack := s.speaking.Track(remote, level.Level)
	defer untrack()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("remote track ended")
			}
			return
		}
		level.Observe(pkt)
		if err := sink.WriteRTP(pkt); err != nil {
			logger.Warn().Err(err).Msg("sink write")
		}
	}
}

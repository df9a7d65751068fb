package client

import (
	"context"
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Switcher moves the client between channels, one at a time. Its methods
// run on the session loop, so a leave always completes before the next
// join begins.
type Switcher struct {
	self  domain.Participant
	send  func(protocol.ClientEvent)
	media MediaCapability
	view  *MembershipView
	peers *PeerManager

	channel domain.ChannelID
	local   LocalAudio
	// onLocal is told about local audio as it is acquired and released.
	onLocal func(LocalAudio)
}

func NewSwitcher(self domain.Participant, send func(protocol.ClientEvent), media MediaCapability, view *MembershipView, peers *PeerManager) *Switcher {
	return &Switcher{self: self, send: send, media: media, view: view, peers: peers}
}

func (s *Switcher) Channel() domain.ChannelID { return s.channel }

func (s *Switcher) Local() LocalAudio { return s.local }

// SwitchTo leaves the current channel, if any, and joins ch.
func (s *Switcher) SwitchTo(ctx context.Context, ch domain.ChannelID) error {
	if ch == "" {
		return fmt.Errorf("empty channel id")
	}
	if ch == s.channel {
		return nil
	}
	s.LeaveCurrent()
	return s.join(ctx, ch)
}

// LeaveCurrent closes every peer session, clears the view, tells the relay
// and releases local audio. No-op when no channel is joined.
func (s *Switcher) LeaveCurrent() {
	if s.channel == "" {
		return
	}
	ch := s.channel
	s.channel = ""
	s.peers.CloseAll()
	s.view.Reset("")
	s.send(protocol.LeaveChannel{ChannelID: ch, UserID: s.self.ID})
	if s.local != nil {
		if err := s.local.Close(); err != nil {
			log.Warn().Err(err).Str("module", "client.switch").Msg("release local audio")
		}
		s.local = nil
		s.notifyLocal()
	}
	log.Info().Str("module", "client.switch").Str("channel", string(ch)).Msg("left channel")
}

func (s *Switcher) join(ctx context.Context, ch domain.ChannelID) error {
	before := s.view.Snapshot()
	s.view.Reset(ch)
	s.view.Insert(s.self)

	local, err := s.media.AcquireLocalAudio(ctx)
	if err != nil {
		s.view.Restore(before)
		log.Warn().Err(err).Str("module", "client.switch").Str("channel", string(ch)).Msg("join aborted")
		return fmt.Errorf("%w: %v", ErrCapability, err)
	}
	s.local = local
	s.channel = ch
	s.peers.Start(ch, local.Track())
	s.notifyLocal()
	s.send(protocol.JoinChannel{ChannelID: ch, UserID: s.self.ID, Username: s.self.Label()})
	log.Info().Str("module", "client.switch").Str("channel", string(ch)).Msg("joining channel")
	return nil
}

func (s *Switcher) notifyLocal() {
	if s.onLocal != nil {
		s.onLocal(s.local)
	}
}

package client

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runningSession struct {
	*Session
	conns *fakeConns
	media *fakeMedia
	errc  chan error
}

func startSession(t *testing.T, self domain.Participant, sig Signaler, media *fakeMedia) *runningSession {
	t.Helper()
	conns := newFakeConns()
	s := NewSession(SessionOptions{
		Self:               self,
		Signal:             sig,
		Media:              media,
		NewConn:            conns.New,
		NegotiationTimeout: 5 * time.Second,
		MaxRetries:         2,
		SweepInterval:      50 * time.Millisecond,
		SpeakingInterval:   time.Millisecond,
		SpeakingThreshold:  0.1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{Session: s, conns: conns, media: media, errc: make(chan error, 1)}
	go func() { rs.errc <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.done
	})
	return rs
}

func (s *runningSession) states(t *testing.T) map[domain.ParticipantID]PeerState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := s.PeerStates(ctx)
	assert.NoError(t, err)
	return st
}

func TestSessionDropsOtherChannelEvents(t *testing.T) {
	sig := newFakeSignaler()
	s := startSession(t, domain.Participant{ID: "a", DisplayName: "A"}, sig, &fakeMedia{})
	ctx := context.Background()
	require.NoError(t, s.SwitchTo(ctx, "one"))

	sig.events <- protocol.ChannelUsers{ChannelID: "two", Users: users("z")}
	sig.events <- protocol.UserJoined{ChannelID: "two", UserID: "y", Username: "y"}
	sig.events <- protocol.SignalRelay{Type: protocol.SignalOffer, From: "q", ChannelID: "two", SDP: sdpJSON(t, webrtc.SDPTypeOffer, "x")}

	assert.Empty(t, s.states(t))
	assert.Equal(t, ViewSnapshot{Channel: "one", Members: []domain.Participant{{ID: "a", DisplayName: "A"}}}, s.View())
	assert.Empty(t, s.conns.all("z"))
	assert.Empty(t, s.conns.all("q"))

	sig.events <- protocol.ChannelUsers{ChannelID: "one", Users: users("b")}
	assert.Equal(t, map[domain.ParticipantID]PeerState{"b": StateOffering}, s.states(t))
	assert.Len(t, s.View().Members, 2)

	sig.events <- protocol.UserLeft{ChannelID: "one", UserID: "b", Username: "b"}
	assert.Empty(t, s.states(t))
	assert.Len(t, s.View().Members, 1)
}

func TestSessionIgnoresEventsBeforeJoin(t *testing.T) {
	sig := newFakeSignaler()
	s := startSession(t, domain.Participant{ID: "a"}, sig, &fakeMedia{})

	sig.events <- protocol.ChannelUsers{ChannelID: "one", Users: users("b")}

	assert.Empty(t, s.states(t))
	assert.Empty(t, s.conns.all("b"))
}

func TestSessionCapabilityErrorSurfaces(t *testing.T) {
	sig := newFakeSignaler()
	s := startSession(t, domain.Participant{ID: "a"}, sig, &fakeMedia{fail: ErrCapability})

	err := s.SwitchTo(context.Background(), "one")

	require.ErrorIs(t, err, ErrCapability)
	assert.Empty(t, sig.list())
	assert.Equal(t, domain.ChannelID(""), s.View().Channel)
}

func TestSessionMuteAndSpeaking(t *testing.T) {
	sig := newFakeSignaler()
	s := startSession(t, domain.Participant{ID: "a"}, sig, &fakeMedia{level: 0.8})
	s.SetMuted(true)

	require.NoError(t, s.SwitchTo(context.Background(), "one"))
	local := s.media.lastLocal()
	require.NotNil(t, local)
	assert.True(t, local.isMuted(), "mute carries over to newly acquired audio")
	assert.True(t, s.Muted())

	s.SetMuted(false)
	require.Eventually(t, func() bool { return s.IsSpeaking("a") }, time.Second, time.Millisecond)

	s.SetMuted(true)
	require.Eventually(t, func() bool { return !s.IsSpeaking("a") }, time.Second, time.Millisecond)
}

func TestSessionLeavesWhenLinkDrops(t *testing.T) {
	sig := newFakeSignaler()
	s := startSession(t, domain.Participant{ID: "a"}, sig, &fakeMedia{})
	require.NoError(t, s.SwitchTo(context.Background(), "one"))
	sig.events <- protocol.ChannelUsers{ChannelID: "one", Users: users("b")}
	_ = s.states(t)

	require.NoError(t, sig.Close())

	select {
	case err := <-s.errc:
		assert.ErrorIs(t, err, ErrSignalClosed)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
	assert.True(t, s.conns.last("b").isClosed())
	assert.True(t, s.media.lastLocal().isClosed())
	assert.ErrorIs(t, s.SwitchTo(context.Background(), "two"), ErrSessionClosed)
}

// Two clients meet in a channel through a real relay: the lower id offers,
// the higher one answers, and both end up connected.
func TestSessionsNegotiateThroughRelay(t *testing.T) {
	base := newRelayServer(t)
	ctx := context.Background()

	dial := func(id domain.ParticipantID) *runningSession {
		sig, err := DialSignal(ctx, wsURL(base), "")
		require.NoError(t, err)
		t.Cleanup(func() { sig.Close() })
		return startSession(t, domain.Participant{ID: id, DisplayName: string(id)}, sig, &fakeMedia{})
	}
	x, y := dial("x"), dial("y")

	require.NoError(t, x.SwitchTo(ctx, "lobby"))
	require.NoError(t, y.SwitchTo(ctx, "lobby"))

	require.Eventually(t, func() bool {
		return x.states(t)["y"] == StateConnected && y.states(t)["x"] == StateConnected
	}, 5*time.Second, 10*time.Millisecond)

	toY := x.conns.last("y")
	require.NotNil(t, toY)
	toY.mu.Lock()
	assert.Equal(t, 1, toY.offers)
	require.Len(t, toY.answers, 1)
	assert.Equal(t, "answer-to-x", toY.answers[0].SDP)
	toY.mu.Unlock()

	toX := y.conns.last("x")
	toX.mu.Lock()
	assert.Zero(t, toX.offers, "the higher id never offers")
	require.Len(t, toX.accepted, 1)
	assert.Equal(t, "offer-to-y", toX.accepted[0].SDP)
	toX.mu.Unlock()

	require.Eventually(t, func() bool {
		v := x.View()
		return len(v.Members) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, y.SwitchTo(ctx, "elsewhere"))
	require.Eventually(t, func() bool { return len(x.states(t)) == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, y.states(t))
	assert.True(t, toY.isClosed())
	assert.True(t, toX.isClosed())
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	adapthttp "github.com/dkeye/VoiceMesh/internal/adapters/http"
	"github.com/dkeye/VoiceMesh/internal/adapters/signal"
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/directory"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/identity"
	"github.com/dkeye/VoiceMesh/internal/notify"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/dkeye/VoiceMesh/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// fakeConn is a MediaConnection that negotiates nothing. Descriptions
// carry the owner and remote so tests can tell them apart.
type fakeConn struct {
	remote domain.ParticipantID

	mu         sync.Mutex
	offers     int
	accepted   []webrtc.SessionDescription
	answers    []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []webrtc.TrackLocal
	closed     bool
	failOffer  bool

	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
}

var _ core.MediaConnection = (*fakeConn)(nil)

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOffer {
		return webrtc.SessionDescription{}, errors.New("no offer")
	}
	c.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-to-" + string(c.remote)}, nil
}

func (c *fakeConn) AcceptOffer(d webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted = append(c.accepted, d)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-to-" + string(c.remote)}, nil
}

func (c *fakeConn) AcceptAnswer(d webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = append(c.answers, d)
	return nil
}

func (c *fakeConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, ci)
	return nil
}

func (c *fakeConn) AddLocalTrack(t webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, t)
	return nil
}

func (c *fakeConn) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = f
}

func (c *fakeConn) OnStateChange(f func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = f
}

func (c *fakeConn) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = f
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) fireState(s webrtc.PeerConnectionState) {
	c.mu.Lock()
	f := c.onState
	c.mu.Unlock()
	f(s)
}

func (c *fakeConn) fireCandidate(ci webrtc.ICECandidateInit) {
	c.mu.Lock()
	f := c.onICE
	c.mu.Unlock()
	f(ci)
}

// fakeConns hands out fakeConns and remembers every one per remote.
type fakeConns struct {
	mu    sync.Mutex
	conns map[domain.ParticipantID][]*fakeConn
}

func newFakeConns() *fakeConns {
	return &fakeConns{conns: make(map[domain.ParticipantID][]*fakeConn)}
}

func (f *fakeConns) New(remote domain.ParticipantID) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{remote: remote}
	f.conns[remote] = append(f.conns[remote], c)
	return c, nil
}

func (f *fakeConns) all(remote domain.ParticipantID) []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConn(nil), f.conns[remote]...)
}

func (f *fakeConns) last(remote domain.ParticipantID) *fakeConn {
	all := f.all(remote)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// outbox records client events in send order.
type outbox struct {
	mu     sync.Mutex
	events []protocol.ClientEvent
}

func (o *outbox) Send(ev protocol.ClientEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *outbox) list() []protocol.ClientEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]protocol.ClientEvent(nil), o.events...)
}

func (o *outbox) signals() []protocol.SignalRequest {
	var out []protocol.SignalRequest
	for _, ev := range o.list() {
		if s, ok := ev.(protocol.SignalRequest); ok {
			out = append(out, s)
		}
	}
	return out
}

func (o *outbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}

// fakeSignaler is an in-memory Signaler driven by the test. Events is
// unbuffered so a delivered event has been handled before any later
// request reaches the session loop.
type fakeSignaler struct {
	outbox
	events chan protocol.ServerEvent
	once   sync.Once
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{events: make(chan protocol.ServerEvent)}
}

func (s *fakeSignaler) Send(ev protocol.ClientEvent) error {
	s.outbox.Send(ev)
	return nil
}

func (s *fakeSignaler) Events() <-chan protocol.ServerEvent { return s.events }

func (s *fakeSignaler) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

// fakeLocal is a LocalAudio with a fixed level.
type fakeLocal struct {
	mu     sync.Mutex
	level  float64
	muted  bool
	closed bool
}

func (l *fakeLocal) Track() webrtc.TrackLocal { return nil }

func (l *fakeLocal) Level() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.muted {
		return 0
	}
	return l.level
}

func (l *fakeLocal) SetMuted(m bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.muted = m
}

func (l *fakeLocal) isMuted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.muted
}

func (l *fakeLocal) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLocal) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type fakeMedia struct {
	mu     sync.Mutex
	level  float64
	fail   error
	locals []*fakeLocal
}

func (m *fakeMedia) AcquireLocalAudio(context.Context) (LocalAudio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	l := &fakeLocal{level: m.level}
	m.locals = append(m.locals, l)
	return l, nil
}

func (m *fakeMedia) OpenSink(domain.ParticipantID, webrtc.RTPCodecParameters) (RemoteSink, error) {
	return nil, errors.New("no sinks in tests")
}

func (m *fakeMedia) lastLocal() *fakeLocal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.locals) == 0 {
		return nil
	}
	return m.locals[len(m.locals)-1]
}

func sdpJSON(t *testing.T, typ webrtc.SDPType, sdp string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(webrtc.SessionDescription{Type: typ, SDP: sdp})
	require.NoError(t, err)
	return raw
}

// newRelayServer runs the full HTTP API with an in-memory stack and
// returns its base URL.
func newRelayServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "client-test-secret",
		Auth:       config.AuthConfig{TokenTTL: time.Hour, SessionName: "vm"},
	}
	records := store.NewMemory()
	relay := app.NewRelay(app.RelayOptions{})
	go relay.Run(ctx)

	r := adapthttp.SetupRouter(ctx, cfg, adapthttp.Deps{
		Relay:     relay,
		Identity:  identity.NewProvider(records, nil, cfg.Secret, cfg.Auth.TokenTTL),
		Directory: directory.NewService(records, notify.NewMemory()),
		Signal:    signal.NewSignalWSController(relay, cfg.Signal),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func wsURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/api/ws/signal"
}

package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrRelayStopped    = errors.New("relay stopped")
	ErrUnauthenticated = errors.New("unauthenticated connection")
)

type RelayOptions struct {
	QueueSize    int
	Policy       Policy
	JoinLimit    int
	JoinInterval time.Duration
	RequireAuth  bool
}

type connEntry struct {
	conn     core.SignalConnection
	identity *domain.Participant
}

// request is one unit of work for the relay loop.
type request interface {
	apply(r *Relay)
}

type connectReq struct {
	handle   core.ConnHandle
	conn     core.SignalConnection
	identity *domain.Participant
}

type eventReq struct {
	handle core.ConnHandle
	ev     protocol.ClientEvent
}

type disconnectReq struct {
	handle core.ConnHandle
}

type rosterReq struct {
	channel domain.ChannelID
	reply   chan []domain.Participant
}

type channelsReq struct {
	reply chan []ChannelStat
}

// Relay brokers channel membership and routes negotiation envelopes. All
// state is owned by the goroutine running Run; callers submit requests
// through one ordered queue.
type Relay struct {
	registry    *Registry
	conns       map[core.ConnHandle]*connEntry
	policy      Policy
	limiter     *JoinRateLimiter
	requireAuth bool

	requests chan request
	done     chan struct{}
}

func NewRelay(opts RelayOptions) *Relay {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Policy == nil {
		opts.Policy = SimplePolicy{}
	}
	return &Relay{
		registry:    NewRegistry(),
		conns:       make(map[core.ConnHandle]*connEntry),
		policy:      opts.Policy,
		limiter:     NewJoinRateLimiter(opts.JoinLimit, opts.JoinInterval),
		requireAuth: opts.RequireAuth,
		requests:    make(chan request, opts.QueueSize),
		done:        make(chan struct{}),
	}
}

// Run processes requests until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	log.Info().Str("module", "app.relay").Msg("relay loop started")

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.relay").Msg("relay loop stopped")
			return
		case <-sweep.C:
			r.limiter.Forget()
		case req := <-r.requests:
			req.apply(r)
		}
	}
}

func (r *Relay) submit(req request) bool {
	select {
	case r.requests <- req:
		return true
	case <-r.done:
		return false
	}
}

// Connect registers a new transport connection. identity is nil for
// anonymous connections.
func (r *Relay) Connect(h core.ConnHandle, conn core.SignalConnection, identity *domain.Participant) {
	r.submit(connectReq{handle: h, conn: conn, identity: identity})
}

// Dispatch hands a decoded client event to the relay.
func (r *Relay) Dispatch(h core.ConnHandle, ev protocol.ClientEvent) {
	r.submit(eventReq{handle: h, ev: ev})
}

// Disconnect reports a closed transport connection.
func (r *Relay) Disconnect(h core.ConnHandle) {
	r.submit(disconnectReq{handle: h})
}

// Roster returns the authoritative member list of ch.
func (r *Relay) Roster(ctx context.Context, ch domain.ChannelID) ([]domain.Participant, error) {
	req := rosterReq{channel: ch, reply: make(chan []domain.Participant, 1)}
	if !r.submit(req) {
		return nil, ErrRelayStopped
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrRelayStopped
	}
}

// Channels lists channels that currently have members.
func (r *Relay) Channels(ctx context.Context) ([]ChannelStat, error) {
	req := channelsReq{reply: make(chan []ChannelStat, 1)}
	if !r.submit(req) {
		return nil, ErrRelayStopped
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrRelayStopped
	}
}

func (q connectReq) apply(r *Relay) {
	r.registry.Register(q.handle)
	r.conns[q.handle] = &connEntry{conn: q.conn, identity: q.identity}
	ev := log.Info().Str("module", "app.relay").Str("handle", string(q.handle))
	if q.identity != nil {
		ev = ev.Str("user", string(q.identity.ID))
	}
	ev.Msg("connection registered")
}

func (q disconnectReq) apply(r *Relay) {
	delete(r.conns, q.handle)
	for _, d := range r.registry.Disconnect(q.handle) {
		r.announceDeparture(d, false)
	}
}

func (q rosterReq) apply(r *Relay) {
	members := r.registry.Members(q.channel)
	out := make([]domain.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, m.Participant)
	}
	q.reply <- out
}

func (q channelsReq) apply(r *Relay) {
	q.reply <- r.registry.Channels()
}

func (q eventReq) apply(r *Relay) {
	entry, ok := r.conns[q.handle]
	if !ok {
		log.Warn().Str("module", "app.relay").Str("handle", string(q.handle)).Str("event", q.ev.Name()).Msg("event from unknown connection")
		return
	}
	switch ev := q.ev.(type) {
	case protocol.JoinChannel:
		r.join(q.handle, entry, ev)
	case protocol.LeaveChannel:
		r.leave(q.handle, entry, ev)
	case protocol.SignalRequest:
		r.route(q.handle, ev)
	}
}

func (r *Relay) participantFor(entry *connEntry, id domain.ParticipantID, name string) (domain.Participant, error) {
	if entry.identity != nil {
		return *entry.identity, nil
	}
	if r.requireAuth {
		return domain.Participant{}, ErrUnauthenticated
	}
	if name == "" {
		name = string(id)
	}
	return domain.NewParticipant(id, name)
}

func (r *Relay) join(h core.ConnHandle, entry *connEntry, ev protocol.JoinChannel) {
	logger := log.With().Str("module", "app.relay").Str("handle", string(h)).Str("channel", string(ev.ChannelID)).Logger()

	p, err := r.participantFor(entry, ev.UserID, ev.Username)
	if err != nil {
		logger.Warn().Err(err).Str("user", string(ev.UserID)).Msg("join rejected")
		return
	}
	if !r.limiter.Allow(p.ID) {
		logger.Warn().Str("user", string(p.ID)).Msg("join rate limited")
		return
	}

	// One channel per connection.
	if cur, who, ok := r.registry.ChannelOf(h); ok && (cur != ev.ChannelID || who.ID != p.ID) {
		if d, ok := r.registry.Leave(h, cur, who.ID); ok {
			r.announceDeparture(d, true)
		}
	}
	// One channel per participant, whatever connection holds the other membership.
	for _, other := range r.registry.Locate(p.ID) {
		if other == ev.ChannelID {
			continue
		}
		if d, ok := r.registry.Evict(other, p.ID); ok {
			logger.Info().Str("user", string(p.ID)).Str("from", string(other)).Msg("evicted from previous channel")
			r.announceDeparture(d, true)
		}
	}

	members := r.registry.Join(h, ev.ChannelID, p)
	r.send(h, rosterFor(ev.ChannelID, members, p.ID))

	joined := protocol.UserJoined{ChannelID: ev.ChannelID, UserID: p.ID, Username: p.Label()}
	for _, m := range members {
		if m.Handle == h {
			continue
		}
		r.send(m.Handle, joined)
	}
	logger.Info().Str("user", string(p.ID)).Int("members", len(members)).Msg("join")
}

func (r *Relay) leave(h core.ConnHandle, entry *connEntry, ev protocol.LeaveChannel) {
	pid := ev.UserID
	if entry.identity != nil {
		pid = entry.identity.ID
	} else if _, who, ok := r.registry.ChannelOf(h); ok && pid == "" {
		pid = who.ID
	}
	d, ok := r.registry.Leave(h, ev.ChannelID, pid)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("handle", string(h)).Str("channel", string(ev.ChannelID)).Str("user", string(pid)).Msg("leave: not a member")
		return
	}
	r.announceDeparture(d, true)
}

func (r *Relay) route(h core.ConnHandle, ev protocol.SignalRequest) {
	ch, sender, ok := r.registry.ChannelOf(h)
	if !ok || ch != ev.ChannelID {
		log.Debug().Str("module", "app.relay").Str("handle", string(h)).Str("channel", string(ev.ChannelID)).Msg("signal from non-member dropped")
		return
	}
	target, ok := r.registry.ResolveHandle(ev.ChannelID, ev.To)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("channel", string(ev.ChannelID)).Str("from", string(sender.ID)).Str("to", string(ev.To)).Msg("signal target not found")
		return
	}
	r.send(target, protocol.SignalRelay{
		Type:      ev.Type,
		From:      sender.ID,
		ChannelID: ev.ChannelID,
		SDP:       ev.SDP,
		Candidate: ev.Candidate,
	})
}

// announceDeparture tells the remaining members of d.ChannelID that someone
// left, optionally followed by a fresh roster.
func (r *Relay) announceDeparture(d Departure, withRoster bool) {
	left := protocol.UserLeft{ChannelID: d.ChannelID, UserID: d.Participant.ID, Username: d.Participant.Label()}
	members := r.registry.Members(d.ChannelID)
	for _, m := range members {
		r.send(m.Handle, left)
		if withRoster {
			r.send(m.Handle, rosterFor(d.ChannelID, members, m.Participant.ID))
		}
	}
}

// rosterFor builds the roster as seen by recipient: every member but itself.
func rosterFor(ch domain.ChannelID, members []Member, recipient domain.ParticipantID) protocol.ChannelUsers {
	users := make([]protocol.User, 0, len(members))
	for _, m := range members {
		if m.Participant.ID == recipient {
			continue
		}
		users = append(users, protocol.User{ID: m.Participant.ID, Username: m.Participant.Label()})
	}
	return protocol.ChannelUsers{ChannelID: ch, Users: users}
}

func (r *Relay) send(h core.ConnHandle, ev protocol.ServerEvent) {
	entry, ok := r.conns[h]
	if !ok {
		return
	}
	frame, err := protocol.EncodeServer(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", ev.Name()).Msg("encode failed")
		return
	}
	err = entry.conn.TrySend(frame)
	if err == nil {
		return
	}
	if errors.Is(err, core.ErrConnClosed) {
		return
	}
	action := r.policy.OnBackPressure(h, ev)
	log.Warn().Err(err).Str("module", "app.relay").Str("handle", string(h)).Str("event", ev.Name()).Str("action", action.String()).Msg("send failed")
	if action == DisconnectSlow {
		entry.conn.Close()
	}
}

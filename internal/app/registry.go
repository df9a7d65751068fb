package app

import (
	"sort"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// Member is one registry entry: who joined and over which connection.
type Member struct {
	Participant domain.Participant
	Handle      core.ConnHandle
}

// Departure describes a removed membership, for notification fan-out.
type Departure struct {
	ChannelID   domain.ChannelID
	Participant domain.Participant
}

type handleEntry struct {
	channel     domain.ChannelID
	participant domain.Participant
}

// ChannelStat is a read-only view of a live channel.
type ChannelStat struct {
	ID          domain.ChannelID `json:"id"`
	MemberCount int              `json:"member_count"`
}

// Registry maps channels to their members and connection handles to the
// participant they represent. It is not safe for concurrent use: the Relay
// loop owns it.
type Registry struct {
	channels map[domain.ChannelID]map[domain.ParticipantID]Member
	handles  map[core.ConnHandle]*handleEntry
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[domain.ChannelID]map[domain.ParticipantID]Member),
		handles:  make(map[core.ConnHandle]*handleEntry),
	}
}

// Register records an open connection with no channel association yet.
func (r *Registry) Register(h core.ConnHandle) {
	if _, ok := r.handles[h]; ok {
		return
	}
	r.handles[h] = &handleEntry{}
	log.Debug().Str("module", "app.registry").Str("handle", string(h)).Msg("handle registered")
}

// Join inserts p into channel ch, superseding any prior entry for p.ID, and
// returns the channel's full member list.
func (r *Registry) Join(h core.ConnHandle, ch domain.ChannelID, p domain.Participant) []Member {
	r.Register(h)
	members, ok := r.channels[ch]
	if !ok {
		members = make(map[domain.ParticipantID]Member)
		r.channels[ch] = members
	}
	if prev, ok := members[p.ID]; ok && prev.Handle != h {
		if e, ok := r.handles[prev.Handle]; ok && e.channel == ch {
			e.channel = ""
			e.participant = domain.Participant{}
		}
		log.Info().Str("module", "app.registry").Str("channel", string(ch)).Str("user", string(p.ID)).
			Str("old_handle", string(prev.Handle)).Str("handle", string(h)).Msg("membership superseded")
	}
	members[p.ID] = Member{Participant: p, Handle: h}
	e := r.handles[h]
	e.channel = ch
	e.participant = p
	log.Info().Str("module", "app.registry").Str("channel", string(ch)).Str("user", string(p.ID)).Str("handle", string(h)).Msg("member joined")
	return r.Members(ch)
}

// Leave removes participant pid from ch if the entry is owned by h.
func (r *Registry) Leave(h core.ConnHandle, ch domain.ChannelID, pid domain.ParticipantID) (Departure, bool) {
	members, ok := r.channels[ch]
	if !ok {
		return Departure{}, false
	}
	m, ok := members[pid]
	if !ok || m.Handle != h {
		return Departure{}, false
	}
	r.remove(ch, pid)
	if e, ok := r.handles[h]; ok && e.channel == ch {
		e.channel = ""
		e.participant = domain.Participant{}
	}
	log.Info().Str("module", "app.registry").Str("channel", string(ch)).Str("user", string(pid)).Str("handle", string(h)).Msg("member left")
	return Departure{ChannelID: ch, Participant: m.Participant}, true
}

// Evict removes pid from ch regardless of the owning handle.
func (r *Registry) Evict(ch domain.ChannelID, pid domain.ParticipantID) (Departure, bool) {
	m, ok := r.channels[ch][pid]
	if !ok {
		return Departure{}, false
	}
	return r.Leave(m.Handle, ch, pid)
}

func (r *Registry) remove(ch domain.ChannelID, pid domain.ParticipantID) {
	members := r.channels[ch]
	delete(members, pid)
	if len(members) == 0 {
		delete(r.channels, ch)
		log.Info().Str("module", "app.registry").Str("channel", string(ch)).Msg("channel emptied")
	}
}

// ResolveHandle returns the live connection of pid within ch.
func (r *Registry) ResolveHandle(ch domain.ChannelID, pid domain.ParticipantID) (core.ConnHandle, bool) {
	m, ok := r.channels[ch][pid]
	if !ok {
		return "", false
	}
	return m.Handle, true
}

// Disconnect forgets h and removes every membership it owns. Every channel is
// scanned, not only the one recorded for h.
func (r *Registry) Disconnect(h core.ConnHandle) []Departure {
	var out []Departure
	for ch, members := range r.channels {
		for pid, m := range members {
			if m.Handle != h {
				continue
			}
			out = append(out, Departure{ChannelID: ch, Participant: m.Participant})
			r.remove(ch, pid)
		}
	}
	delete(r.handles, h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChannelID != out[j].ChannelID {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].Participant.ID < out[j].Participant.ID
	})
	log.Info().Str("module", "app.registry").Str("handle", string(h)).Int("removed", len(out)).Msg("handle disconnected")
	return out
}

// Members returns the members of ch ordered by participant id.
func (r *Registry) Members(ch domain.ChannelID) []Member {
	members := r.channels[ch]
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Participant.ID < out[j].Participant.ID })
	return out
}

// ChannelOf reports the channel and participant h currently represents.
func (r *Registry) ChannelOf(h core.ConnHandle) (domain.ChannelID, domain.Participant, bool) {
	e, ok := r.handles[h]
	if !ok || e.channel == "" {
		return "", domain.Participant{}, false
	}
	return e.channel, e.participant, true
}

// Locate lists the channels pid is currently a member of.
func (r *Registry) Locate(pid domain.ParticipantID) []domain.ChannelID {
	var out []domain.ChannelID
	for ch, members := range r.channels {
		if _, ok := members[pid]; ok {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Channels() []ChannelStat {
	out := make([]ChannelStat, 0, len(r.channels))
	for ch, members := range r.channels {
		out = append(out, ChannelStat{ID: ch, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

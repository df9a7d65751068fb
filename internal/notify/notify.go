// Package notify fans channel directory changes out to subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

type ChangeKind string

const (
	ChannelCreated ChangeKind = "created"
	ChannelDeleted ChangeKind = "deleted"
)

// Change is one directory mutation. Subscribers are expected to reload the
// full list rather than patch it.
type Change struct {
	Kind    ChangeKind     `json:"kind"`
	Channel domain.Channel `json:"channel"`
	At      time.Time      `json:"at"`
}

type Broker interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe delivers changes until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan Change, error)
	Close() error
}

const subscriberBuffer = 16

// Memory is an in-process Broker for single-instance deployments.
type Memory struct {
	mu     sync.Mutex
	subs   map[chan Change]struct{}
	closed bool
}

var _ Broker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{subs: make(map[chan Change]struct{})}
}

func (m *Memory) Publish(_ context.Context, c Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- c:
		default:
			log.Warn().Str("module", "notify").Str("kind", string(c.Kind)).Msg("slow subscriber, change dropped")
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, nil
	}
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for ch := range m.subs {
		delete(m.subs, ch)
		close(ch)
	}
	return nil
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

// Memory keeps records in process. Used by default and in tests.
type Memory struct {
	mu       sync.RWMutex
	accounts map[domain.ParticipantID]domain.Account
	byEmail  map[string]domain.ParticipantID
	channels map[domain.ChannelID]domain.Channel
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[domain.ParticipantID]domain.Account),
		byEmail:  make(map[string]domain.ParticipantID),
		channels: make(map[domain.ChannelID]domain.Channel),
	}
}

func (m *Memory) CreateAccount(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(a.Email)
	if _, ok := m.byEmail[email]; ok {
		return ErrConflict
	}
	if _, ok := m.accounts[a.ID]; ok {
		return ErrConflict
	}
	m.accounts[a.ID] = *a
	m.byEmail[email] = a.ID
	return nil
}

func (m *Memory) AccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	a := m.accounts[id]
	return &a, nil
}

func (m *Memory) AccountByID(_ context.Context, id domain.ParticipantID) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) CreateChannel(_ context.Context, ch *domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.channels {
		if existing.ID == ch.ID || existing.Name == ch.Name {
			return ErrConflict
		}
	}
	m.channels[ch.ID] = *ch
	return nil
}

func (m *Memory) ListChannels(_ context.Context) ([]domain.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ChannelByID(_ context.Context, id domain.ChannelID) (*domain.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ch, nil
}

func (m *Memory) DeleteChannel(_ context.Context, id domain.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; !ok {
		return ErrNotFound
	}
	delete(m.channels, id)
	return nil
}

func (m *Memory) Close() error { return nil }

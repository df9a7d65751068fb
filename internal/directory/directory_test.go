package directory

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/notify"
	"github.com/dkeye/VoiceMesh/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, <-chan notify.Change) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	broker := notify.NewMemory()
	s := NewService(store.NewMemory(), broker)
	tick := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	changes, err := s.Changes(ctx)
	require.NoError(t, err)
	return s, changes
}

func next(t *testing.T, ch <-chan notify.Change) notify.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}
	return notify.Change{}
}

func TestCreateListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, changes := newService(t)

	a, err := s.Create(ctx, "  lobby ", "u1")
	require.NoError(t, err)
	assert.Equal(t, "lobby", a.Name)
	b, err := s.Create(ctx, "raid", "u2")
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	c := next(t, changes)
	assert.Equal(t, notify.ChannelCreated, c.Kind)
	assert.Equal(t, a.ID, c.Channel.ID)
	assert.Equal(t, b.ID, next(t, changes).Channel.ID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.Create(ctx, "   ", "u1")
	assert.ErrorIs(t, err, domain.ErrChannelNameEmpty)

	_, err = s.Create(ctx, "lobby", "u1")
	require.NoError(t, err)
	_, err = s.Create(ctx, "lobby", "u2")
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestDeleteOwnerOnly(t *testing.T) {
	ctx := context.Background()
	s, changes := newService(t)
	ch, err := s.Create(ctx, "lobby", "u1")
	require.NoError(t, err)
	next(t, changes)

	assert.ErrorIs(t, s.Delete(ctx, ch.ID, "u2"), ErrForbidden)
	require.NoError(t, s.Delete(ctx, ch.ID, "u1"))

	c := next(t, changes)
	assert.Equal(t, notify.ChannelDeleted, c.Kind)
	assert.Equal(t, ch.ID, c.Channel.ID)

	_, err = s.Get(ctx, ch.ID)
	assert.ErrorIs(t, err, ErrNoSuchEntry)
	assert.ErrorIs(t, s.Delete(ctx, ch.ID, "u1"), ErrNoSuchEntry)
}

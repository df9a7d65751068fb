// Package directory manages the persistent list of voice channels.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/notify"
	"github.com/dkeye/VoiceMesh/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrForbidden   = errors.New("only the owner may delete a channel")
	ErrNameTaken   = errors.New("channel name already taken")
	ErrNoSuchEntry = errors.New("channel not found")
)

type Service struct {
	channels store.Channels
	broker   notify.Broker
	now      func() time.Time
}

func NewService(channels store.Channels, broker notify.Broker) *Service {
	return &Service{channels: channels, broker: broker, now: time.Now}
}

func (s *Service) Create(ctx context.Context, name string, owner domain.ParticipantID) (*domain.Channel, error) {
	name, err := domain.NormalizeChannelName(name)
	if err != nil {
		return nil, err
	}
	ch := &domain.Channel{
		ID:        domain.ChannelID(uuid.NewString()),
		Name:      name,
		CreatedBy: owner,
		CreatedAt: s.now().UTC(),
	}
	if err := s.channels.CreateChannel(ctx, ch); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	log.Info().Str("module", "directory").Str("channel", string(ch.ID)).Str("name", ch.Name).Str("user", string(owner)).Msg("channel created")
	s.publish(ctx, notify.ChannelCreated, *ch)
	return ch, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Channel, error) {
	return s.channels.ListChannels(ctx)
}

func (s *Service) Get(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	ch, err := s.channels.ChannelByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSuchEntry
	}
	return ch, err
}

func (s *Service) Delete(ctx context.Context, id domain.ChannelID, requester domain.ParticipantID) error {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if ch.CreatedBy != requester {
		return ErrForbidden
	}
	if err := s.channels.DeleteChannel(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoSuchEntry
		}
		return err
	}
	log.Info().Str("module", "directory").Str("channel", string(id)).Str("user", string(requester)).Msg("channel deleted")
	s.publish(ctx, notify.ChannelDeleted, *ch)
	return nil
}

// Changes streams directory mutations until ctx is done.
func (s *Service) Changes(ctx context.Context) (<-chan notify.Change, error) {
	return s.broker.Subscribe(ctx)
}

// publish failures never undo the mutation; listeners resync on their next reload.
func (s *Service) publish(ctx context.Context, kind notify.ChangeKind, ch domain.Channel) {
	err := s.broker.Publish(ctx, notify.Change{Kind: kind, Channel: ch, At: s.now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("module", "directory").Str("channel", string(ch.ID)).Msg("publish change")
	}
}

// Package store persists accounts and the channel directory.
package store

import (
	"context"
	"errors"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Accounts interface {
	// CreateAccount fails with ErrConflict when the email is taken.
	CreateAccount(ctx context.Context, a *domain.Account) error
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	AccountByID(ctx context.Context, id domain.ParticipantID) (*domain.Account, error)
}

type Channels interface {
	// CreateChannel fails with ErrConflict when the name is taken.
	CreateChannel(ctx context.Context, ch *domain.Channel) error
	// ListChannels returns channels newest first.
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	ChannelByID(ctx context.Context, id domain.ChannelID) (*domain.Channel, error)
	DeleteChannel(ctx context.Context, id domain.ChannelID) error
}

type Store interface {
	Accounts
	Channels
	Close() error
}

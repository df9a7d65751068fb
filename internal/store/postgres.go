package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type accountModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Username     string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (accountModel) TableName() string { return "users" }

func (m accountModel) toDomain() *domain.Account {
	return &domain.Account{
		ID:           domain.ParticipantID(m.ID),
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

type channelModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedBy string    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (channelModel) TableName() string { return "channels" }

func (m channelModel) toDomain() domain.Channel {
	return domain.Channel{
		ID:        domain.ChannelID(m.ID),
		Name:      m.Name,
		CreatedBy: domain.ParticipantID(m.CreatedBy),
		CreatedAt: m.CreatedAt,
	}
}

// Postgres is the gorm-backed Store.
type Postgres struct {
	db *gorm.DB
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&accountModel{}, &channelModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info().Str("module", "store").Msg("postgres store ready")
	return &Postgres{db: db}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

func (p *Postgres) CreateAccount(ctx context.Context, a *domain.Account) error {
	m := accountModel{
		ID:           string(a.ID),
		Email:        strings.ToLower(a.Email),
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
	}
	return translate(p.db.WithContext(ctx).Create(&m).Error)
}

func (p *Postgres) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var m accountModel
	if err := p.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (p *Postgres) AccountByID(ctx context.Context, id domain.ParticipantID) (*domain.Account, error) {
	var m accountModel
	if err := p.db.WithContext(ctx).Where("id = ?", string(id)).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (p *Postgres) CreateChannel(ctx context.Context, ch *domain.Channel) error {
	m := channelModel{
		ID:        string(ch.ID),
		Name:      ch.Name,
		CreatedBy: string(ch.CreatedBy),
		CreatedAt: ch.CreatedAt,
	}
	return translate(p.db.WithContext(ctx).Create(&m).Error)
}

func (p *Postgres) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	var rows []channelModel
	if err := p.db.WithContext(ctx).Order("created_at desc").Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]domain.Channel, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (p *Postgres) ChannelByID(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	var m channelModel
	if err := p.db.WithContext(ctx).Where("id = ?", string(id)).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	ch := m.toDomain()
	return &ch, nil
}

func (p *Postgres) DeleteChannel(ctx context.Context, id domain.ChannelID) error {
	res := p.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&channelModel{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

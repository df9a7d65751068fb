// Package identity signs accounts up and in, and maps session tokens back to
// accounts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLen = 6

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
)

type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"user"`
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Provider struct {
	accounts store.Accounts
	revoked  Revocations
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewProvider(accounts store.Accounts, revoked Revocations, secret string, ttl time.Duration) *Provider {
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &Provider{
		accounts: accounts,
		revoked:  revoked,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (p *Provider) SignUp(ctx context.Context, email, password, username string) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}
	acct := &domain.Account{
		ID:        domain.ParticipantID(uuid.NewString()),
		Email:     email,
		CreatedAt: p.now().UTC(),
	}
	participant, err := domain.NewParticipant(acct.ID, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	acct.Username = participant.DisplayName

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acct.PasswordHash = string(hash)

	if err := p.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	log.Info().Str("module", "identity").Str("user", string(acct.ID)).Msg("account created")
	return acct, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	acct, err := p.accounts.AccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := p.now()
	expires := now.Add(p.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: acct.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(acct.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "identity").Str("user", string(acct.ID)).Msg("signed in")
	return &Session{Token: signed, ExpiresAt: expires, Account: acct}, nil
}

func (p *Provider) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return &c, nil
}

// Session returns the account behind a live token.
func (p *Provider) Session(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	c, err := p.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := p.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: signed out", ErrInvalidSession)
	}
	acct, err := p.accounts.AccountByID(ctx, domain.ParticipantID(c.Subject))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: account gone", ErrInvalidSession)
		}
		return nil, err
	}
	return acct, nil
}

// SignOut revokes token until it would have expired anyway.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	c, err := p.parse(token)
	if err != nil {
		return err
	}
	if err := p.revoked.Revoke(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		return err
	}
	log.Info().Str("module", "identity").Str("user", c.Subject).Msg("signed out")
	return nil
}

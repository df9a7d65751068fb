package domain

import (
	"errors"
	"net/mail"
	"time"
)

var ErrInvalidEmail = errors.New("invalid email")

// Account is a registered user. Its ID doubles as the participant id once
// the account joins a channel.
type Account struct {
	ID           ParticipantID `json:"id"`
	Email        string        `json:"email"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (a *Account) Participant() Participant {
	return Participant{ID: a.ID, DisplayName: a.Username}
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParticipant(t *testing.T) {
	p, err := NewParticipant("u1", "  alice ")
	require.NoError(t, err)
	assert.Equal(t, ParticipantID("u1"), p.ID)
	assert.Equal(t, "alice", p.DisplayName)

	_, err = NewParticipant("", "alice")
	assert.ErrorIs(t, err, ErrParticipantIDEmpty)

	_, err = NewParticipant("u1", "")
	assert.ErrorIs(t, err, ErrDisplayNameEmpty)

	_, err = NewParticipant("u1", strings.Repeat("x", MaxDisplayNameLen+1))
	assert.ErrorIs(t, err, ErrDisplayNameTooLong)
}

func TestParticipantLabelFallsBackToID(t *testing.T) {
	assert.Equal(t, "u9", Participant{ID: "u9"}.Label())
	assert.Equal(t, "bob", Participant{ID: "u9", DisplayName: "bob"}.Label())
}

func TestNormalizeChannelName(t *testing.T) {
	name, err := NormalizeChannelName(" general ")
	require.NoError(t, err)
	assert.Equal(t, "general", name)

	_, err = NormalizeChannelName("   ")
	assert.ErrorIs(t, err, ErrChannelNameEmpty)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@b.io"))
	assert.ErrorIs(t, ValidateEmail("Alice <a@b.io>"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("nope"), ErrInvalidEmail)
}

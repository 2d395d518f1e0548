package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", time.Hour, time.Hour)
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("", time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	claims, err := m.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "qafoon", claims.GameType)
}

func TestSessionExpired(t *testing.T) {
	m, err := NewManager("test-secret", -time.Minute, time.Hour)
	require.NoError(t, err)
	token, err := m.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	_, err = m.VerifySession(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionWrongSecret(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	other, err := NewManager("different-secret", time.Hour, time.Hour)
	require.NoError(t, err)
	_, err = other.VerifySession(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionGarbage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.VerifySession("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestReconnectRoundTrip(t *testing.T) {
	m := newTestManager(t)
	playerID := uuid.New()
	gameID := uuid.New()
	token, err := m.IssueReconnect(playerID, gameID)
	require.NoError(t, err)

	gotPlayer, gotGame, err := m.VerifyReconnect(token)
	require.NoError(t, err)
	assert.Equal(t, playerID, gotPlayer)
	assert.Equal(t, gameID, gotGame)
}

func TestReconnectRejectsSessionToken(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	_, _, err = m.VerifyReconnect(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

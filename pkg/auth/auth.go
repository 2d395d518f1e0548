// Package auth issues and verifies the two short-lived tokens the
// server hands out: session tokens proving a completed HTTP login, and
// reconnection tokens binding a player seat to a running game.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers expired, malformed and mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims prove a login and carry the game type the client asked
// to play.
type SessionClaims struct {
	Username string `json:"username"`
	GameType string `json:"game_type"`
	jwt.RegisteredClaims
}

// ReconnectClaims bind a player seat to a running game so a dropped
// client can be routed back to it.
type ReconnectClaims struct {
	PlayerID string `json:"player_id"`
	GameID   string `json:"game_id"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with a single HMAC secret.
type Manager struct {
	secret       []byte
	sessionTTL   time.Duration
	reconnectTTL time.Duration
}

// NewManager creates a token manager. The secret must not be empty.
func NewManager(secret string, sessionTTL, reconnectTTL time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret must not be empty")
	}
	return &Manager{
		secret:       []byte(secret),
		sessionTTL:   sessionTTL,
		reconnectTTL: reconnectTTL,
	}, nil
}

// IssueSession signs a session token for a logged-in user.
func (m *Manager) IssueSession(username, gameType string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Username: username,
		GameType: gameType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifySession validates a session token and returns its claims.
func (m *Manager) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrInvalidToken)
	}
	return claims, nil
}

// IssueReconnect signs a reconnection token for a seated player.
func (m *Manager) IssueReconnect(playerID, gameID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &ReconnectClaims{
		PlayerID: playerID.String(),
		GameID:   gameID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.reconnectTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyReconnect validates a reconnection token and returns the seat
// it is bound to.
func (m *Manager) VerifyReconnect(token string) (playerID, gameID uuid.UUID, err error) {
	claims := &ReconnectClaims{}
	if err := m.parse(token, claims); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	playerID, err = uuid.Parse(claims.PlayerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad player id", ErrInvalidToken)
	}
	gameID, err = uuid.Parse(claims.GameID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad game id", ErrInvalidToken)
	}
	return playerID, gameID, nil
}

func (m *Manager) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

package server

import (
	"net"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qafoongame/qafoon/pkg/auth"
	"github.com/qafoongame/qafoon/pkg/wire"
)

func newHandshakeServer(t *testing.T, capacity int) (*Server, *[]*fakeSession, *auth.Manager) {
	t.Helper()
	authm, err := auth.NewManager("handshake-secret", time.Hour, time.Hour)
	require.NoError(t, err)
	r, made := newTestRegistry(t, RegistryConfig{}, capacity)
	s := New(Config{
		Log:              slog.Disabled,
		Registry:         r,
		Auth:             authm,
		HandshakeTimeout: 5 * time.Second,
	})
	return s, made, authm
}

// dial runs the handshake handler against one end of a pipe, consumes
// the server's opening Handshake and returns the client end.
func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	go s.handleConn(serverEnd)
	t.Cleanup(func() { clientEnd.Close() })

	opening, err := wire.Receive(clientEnd)
	require.NoError(t, err)
	require.Equal(t, wire.KindHandshake, opening.Kind)
	return clientEnd
}

func TestJoinFlow(t *testing.T) {
	s, made, authm := newHandshakeServer(t, 2)
	token, err := authm.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	client := dial(t, s)
	require.NoError(t, wire.Send(client, &wire.Message{Kind: wire.KindHandshakeResponse, Token: token}))

	demand, err := wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindDemand, demand.Kind)
	assert.Equal(t, wire.DemandUsername, demand.Demand.Kind)

	// An empty name is refused and re-prompted.
	require.NoError(t, wire.Send(client, wire.NewPlayerChoice("   ")))
	demand, err = wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindDemand, demand.Kind)
	assert.Equal(t, "Username can not be empty!", demand.Demand.Error)

	require.NoError(t, wire.Send(client, wire.NewPlayerChoice("alice")))

	sessionToken, err := wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindGameSessionToken, sessionToken.Kind)

	require.Len(t, *made, 1)
	session := (*made)[0]
	require.Eventually(t, func() bool {
		return session.PlayerCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	playerID, gameID, err := authm.VerifyReconnect(sessionToken.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID(), gameID)
	session.mu.Lock()
	name := session.names[playerID]
	session.mu.Unlock()
	assert.Equal(t, "alice", name)
}

func TestJoinRejectsBadToken(t *testing.T) {
	s, made, _ := newHandshakeServer(t, 2)
	client := dial(t, s)
	require.NoError(t, wire.Send(client, &wire.Message{Kind: wire.KindHandshakeResponse, Token: "garbage"}))

	_, err := wire.Receive(client)
	assert.Error(t, err, "server closes the connection")
	assert.Empty(t, *made)
}

func TestJoinRejectsUnknownGameType(t *testing.T) {
	s, made, authm := newHandshakeServer(t, 2)
	token, err := authm.IssueSession("alice", "canasta")
	require.NoError(t, err)

	client := dial(t, s)
	require.NoError(t, wire.Send(client, &wire.Message{Kind: wire.KindHandshakeResponse, Token: token}))

	_, err = wire.Receive(client)
	assert.Error(t, err)
	assert.Empty(t, *made)
}

func TestHandshakeRejectsUnexpectedMessage(t *testing.T) {
	s, _, _ := newHandshakeServer(t, 2)
	client := dial(t, s)
	require.NoError(t, wire.Send(client, wire.NewPlayerChoice("hello")))

	_, err := wire.Receive(client)
	assert.Error(t, err)
}

func TestReconnectFlow(t *testing.T) {
	s, made, authm := newHandshakeServer(t, 1)
	token, err := authm.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	client := dial(t, s)
	require.NoError(t, wire.Send(client, &wire.Message{Kind: wire.KindHandshakeResponse, Token: token}))
	msg, err := wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindDemand, msg.Kind)
	require.NoError(t, wire.Send(client, wire.NewPlayerChoice("alice")))

	sessionToken, err := wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindGameSessionToken, sessionToken.Kind)

	require.Len(t, *made, 1)
	session := (*made)[0]
	select {
	case <-session.runStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("game never started")
	}

	playerID, _, err := authm.VerifyReconnect(sessionToken.Token)
	require.NoError(t, err)

	fresh := dial(t, s)
	require.NoError(t, wire.Send(fresh, &wire.Message{Kind: wire.KindGameSessionToken, Token: sessionToken.Token}))

	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		_, ok := session.reconnected[playerID]
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectRejectsSessionToken(t *testing.T) {
	s, _, authm := newHandshakeServer(t, 2)
	token, err := authm.IssueSession("alice", "qafoon")
	require.NoError(t, err)

	client := dial(t, s)
	require.NoError(t, wire.Send(client, &wire.Message{Kind: wire.KindGameSessionToken, Token: token}))
	_, err = wire.Receive(client)
	assert.Error(t, err)
}

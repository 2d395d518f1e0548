package conn_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qafoongame/qafoon/pkg/conn"
	"github.com/qafoongame/qafoon/pkg/wire"
)

type fakeQuerier struct {
	resp *wire.PlayerResponse
}

func (f *fakeQuerier) AnswerRequest(req *wire.PlayerRequest) *wire.PlayerResponse {
	return f.resp
}

func newPair(t *testing.T, querier conn.StateQuerier) (*conn.PlayerConn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	pc := conn.New(server, querier, slog.Disabled)
	t.Cleanup(func() {
		pc.Close()
		client.Close()
	})
	return pc, client
}

func TestSendDelivered(t *testing.T) {
	pc, client := newPair(t, nil)

	got := make(chan *wire.Message, 1)
	go func() {
		msg, err := wire.Receive(client)
		if err == nil {
			got <- msg
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := pc.Send(ctx, wire.NewBroadcast(wire.Broadcast{Kind: wire.BroadcastGameStarting}))
	require.NoError(t, err)

	select {
	case msg := <-got:
		require.Equal(t, wire.KindBroadcast, msg.Kind)
		assert.Equal(t, wire.BroadcastGameStarting, msg.Broadcast.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("client never saw the message")
	}
}

func TestReceiveForwarded(t *testing.T) {
	pc, client := newPair(t, nil)

	require.NoError(t, wire.Send(client, wire.NewPlayerChoice("7")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := pc.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.KindPlayerChoice, msg.Kind)
	assert.Equal(t, "7", msg.Choice)
}

func TestPlayerRequestAnsweredOutOfBand(t *testing.T) {
	q := &fakeQuerier{resp: &wire.PlayerResponse{
		Kind: wire.RequestCurrentHokm,
		Hokm: "H",
	}}
	pc, client := newPair(t, q)

	require.NoError(t, wire.Send(client, &wire.Message{
		Kind:    wire.KindPlayerRequest,
		Request: &wire.PlayerRequest{Kind: wire.RequestCurrentHokm},
	}))

	// The receiver answers directly; the game-facing side never sees
	// the request.
	answer, err := wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindPlayerResponse, answer.Kind)
	require.NotNil(t, answer.Response)
	assert.Equal(t, "H", answer.Response.Hokm)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = pc.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetQuerier(t *testing.T) {
	pc, client := newPair(t, nil)

	// Without a querier, requests are dropped on the floor. The
	// receiver handles frames in order, so once the follow-up choice
	// comes through the first request is known to have been dropped.
	require.NoError(t, wire.Send(client, &wire.Message{
		Kind:    wire.KindPlayerRequest,
		Request: &wire.PlayerRequest{Kind: wire.RequestGameStatus},
	}))
	require.NoError(t, wire.Send(client, wire.NewPlayerChoice("sync")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := pc.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "sync", msg.Choice)

	pc.SetQuerier(&fakeQuerier{resp: &wire.PlayerResponse{
		Kind:       wire.RequestGameStatus,
		GameStatus: "Started",
	}})
	require.NoError(t, wire.Send(client, &wire.Message{
		Kind:    wire.KindPlayerRequest,
		Request: &wire.PlayerRequest{Kind: wire.RequestGameStatus},
	}))

	answer, err := wire.Receive(client)
	require.NoError(t, err)
	require.Equal(t, wire.KindPlayerResponse, answer.Kind)
	assert.Equal(t, "Started", answer.Response.GameStatus)
}

func TestMailboxOverflowDrops(t *testing.T) {
	pc, client := newPair(t, nil)

	for i := 0; i < 9; i++ {
		require.NoError(t, wire.Send(client, wire.NewPlayerChoice(fmt.Sprint(i))))
	}
	// Let the receiver finish forwarding before draining, so the
	// overflow is decided.
	time.Sleep(200 * time.Millisecond)

	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		msg, err := pc.Receive(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), msg.Choice)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := pc.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "ninth message should have been dropped")
}

func TestDrainDiscardsStaleAnswers(t *testing.T) {
	pc, client := newPair(t, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, wire.Send(client, wire.NewPlayerChoice("stale")))
	}
	time.Sleep(200 * time.Millisecond)
	pc.Drain()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := pc.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientDisconnect(t *testing.T) {
	pc, client := newPair(t, nil)
	require.NoError(t, client.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := pc.Receive(ctx)
	assert.ErrorIs(t, err, conn.ErrClosed)

	err = pc.Send(ctx, wire.NewBroadcast(wire.Broadcast{Kind: wire.BroadcastGameStarting}))
	assert.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	pc := conn.New(server, nil, slog.Disabled)

	first := pc.Close()
	second := pc.Close()
	assert.Equal(t, first, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := pc.Send(ctx, wire.NewPlayerChoice("x"))
	assert.ErrorIs(t, err, conn.ErrClosed)

	_, err = pc.Receive(ctx)
	assert.ErrorIs(t, err, conn.ErrClosed)
}

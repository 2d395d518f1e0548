// Package conn runs the per-player connection actors. Each player gets
// a receiver goroutine and a sender goroutine bridging the encrypted
// stream to typed in-process channels, so a slow reader never blocks
// outbound pushes and vice versa.
package conn

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/decred/slog"

	"github.com/qafoongame/qafoon/pkg/wire"
)

// StateQuerier answers out-of-band player requests from a read-only
// snapshot, independent of whose turn it is.
type StateQuerier interface {
	AnswerRequest(req *wire.PlayerRequest) *wire.PlayerResponse
}

// ErrClosed reports a send attempted after the connection actors shut
// down. Callers treat it like any other delivery failure: the player
// is gone.
var ErrClosed = errors.New("player connection closed")

// outbound is one correlated send: the frame to write plus a single-use
// reply channel reporting whether the write reached the socket.
type outbound struct {
	msg *wire.Message
	ack chan error
}

// PlayerConn owns one player's stream and its two actor goroutines.
// The game instance owns the PlayerConn and must call Close exactly
// once, on disconnect or game end.
type PlayerConn struct {
	log    slog.Logger
	stream io.ReadWriteCloser

	querierMu sync.RWMutex
	querier   StateQuerier

	out  chan outbound
	in   chan *wire.Message
	stop chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// inboundBuffer bounds the game loop's mailbox. The loop reads one
// answer per demand, so anything beyond a small buffer is a client
// flooding us; those messages are dropped.
const inboundBuffer = 8

// New wires the stream into a running actor pair. querier serves
// PlayerRequest queries directly from the receiver; it may be nil
// until the player is attached to a game, in which case requests are
// dropped.
func New(stream io.ReadWriteCloser, querier StateQuerier, log slog.Logger) *PlayerConn {
	pc := &PlayerConn{
		log:     log,
		stream:  stream,
		querier: querier,
		out:     make(chan outbound),
		in:      make(chan *wire.Message, inboundBuffer),
		stop:    make(chan struct{}),
	}
	pc.wg.Add(2)
	go pc.receiveLoop()
	go pc.sendLoop()
	return pc
}

// receiveLoop parses inbound frames until shutdown or a fatal stream
// error. PlayerRequest queries are answered here, from the snapshot,
// and never reach the game loop. Everything else is forwarded
// best-effort: when the mailbox is full the message is dropped and the
// game loop re-prompts on timeout.
func (pc *PlayerConn) receiveLoop() {
	defer pc.wg.Done()
	defer close(pc.in)
	for {
		msg, err := wire.Receive(pc.stream)
		if err != nil {
			select {
			case <-pc.stop:
			default:
				pc.log.Debugf("receiver exiting: %v", err)
			}
			return
		}
		if msg.Kind == wire.KindPlayerRequest {
			pc.answerRequest(msg.Request)
			continue
		}
		select {
		case pc.in <- msg:
		default:
			pc.log.Tracef("inbound mailbox full, dropping %s", msg.MessageType())
		}
	}
}

func (pc *PlayerConn) answerRequest(req *wire.PlayerRequest) {
	pc.querierMu.RLock()
	querier := pc.querier
	pc.querierMu.RUnlock()
	if req == nil || querier == nil {
		return
	}
	resp := querier.AnswerRequest(req)
	if resp == nil {
		return
	}
	// Correlated send like any other outbound message; a failure here
	// means the connection is dying and the game loop will notice on
	// its next send.
	if err := pc.Send(context.Background(), &wire.Message{Kind: wire.KindPlayerResponse, Response: resp}); err != nil {
		pc.log.Debugf("failed to answer %s request: %v", req.Kind, err)
	}
}

// sendLoop writes correlated outbound frames and reports delivery
// through each item's reply channel.
func (pc *PlayerConn) sendLoop() {
	defer pc.wg.Done()
	for {
		select {
		case <-pc.stop:
			return
		case item := <-pc.out:
			item.ack <- wire.Send(pc.stream, item.msg)
		}
	}
}

// Send pushes one message to the player and reports whether it was
// delivered. A failure means the player is gone; the caller decides
// what that implies for the game.
func (pc *PlayerConn) Send(ctx context.Context, msg *wire.Message) error {
	item := outbound{msg: msg, ack: make(chan error, 1)}
	select {
	case pc.out <- item:
	case <-pc.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-item.ack:
		return err
	case <-pc.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits for the player's next forwarded message. A closed
// inbound channel (receiver exited) is reported as a connection error.
func (pc *PlayerConn) Receive(ctx context.Context) (*wire.Message, error) {
	select {
	case msg, ok := <-pc.in:
		if !ok {
			return nil, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Inbound exposes the forwarded-message channel for callers that need
// to select over it together with other events. The channel closes
// when the receiver exits.
func (pc *PlayerConn) Inbound() <-chan *wire.Message {
	return pc.in
}

// Drain discards any stale answers buffered before a fresh demand, so
// a late reply to a previous prompt is never mistaken for the current
// one.
func (pc *PlayerConn) Drain() {
	for {
		select {
		case _, ok := <-pc.in:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// SetQuerier attaches the snapshot used to answer player requests.
// Called once, when the player joins a game, before the game starts
// publishing state.
func (pc *PlayerConn) SetQuerier(q StateQuerier) {
	pc.querierMu.Lock()
	pc.querier = q
	pc.querierMu.Unlock()
}

// Close signals both actors, waits for them to exit and shuts the
// stream down. Safe to call more than once; only the first call does
// the work.
func (pc *PlayerConn) Close() error {
	pc.closeOnce.Do(func() {
		close(pc.stop)
		// Closing the stream unblocks the receiver's pending read.
		pc.closeErr = pc.stream.Close()
		pc.wg.Wait()
	})
	return pc.closeErr
}

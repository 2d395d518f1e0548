package server

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qafoongame/qafoon/pkg/wire"
)

const emptyUsername = "Username can not be empty!"

// handleConn walks one fresh connection through the handshake and
// hands the stream off: new players go to a queue, returning players
// to their running game. The server opens with a Handshake; the client
// answers HandshakeResponse carrying its session token, or a
// GameSessionToken to resume a seat. Anything else closes the
// connection. The exchange runs synchronously on the accept goroutine;
// only after the hand-off do the connection actors own the stream.
func (s *Server) handleConn(netConn net.Conn) {
	if s.handshakeTimeout > 0 {
		_ = netConn.SetDeadline(time.Now().Add(s.handshakeTimeout))
	}

	if err := wire.Send(netConn, &wire.Message{Kind: wire.KindHandshake}); err != nil {
		s.log.Debugf("handshake write to %s: %v", netConn.RemoteAddr(), err)
		netConn.Close()
		return
	}
	msg, err := wire.Receive(netConn)
	if err != nil {
		s.log.Debugf("handshake read from %s: %v", netConn.RemoteAddr(), err)
		netConn.Close()
		return
	}

	switch msg.Kind {
	case wire.KindHandshakeResponse:
		if err := s.handleJoin(netConn, msg.Token); err != nil {
			s.log.Debugf("join from %s failed: %v", netConn.RemoteAddr(), err)
			netConn.Close()
		}
	case wire.KindGameSessionToken:
		if err := s.handleReconnect(netConn, msg.Token); err != nil {
			s.log.Debugf("reconnect from %s rejected: %v", netConn.RemoteAddr(), err)
			netConn.Close()
		}
	default:
		err := wire.InvalidResponseErr(string(wire.KindHandshakeResponse), msg.MessageType())
		s.log.Debugf("handshake with %s failed: %v", netConn.RemoteAddr(), err)
		netConn.Close()
	}
}

func (s *Server) handleReconnect(netConn net.Conn, token string) error {
	playerID, gameID, err := s.auth.VerifyReconnect(token)
	if err != nil {
		return err
	}
	_ = netConn.SetDeadline(time.Time{})
	if err := s.registry.ReconnectPlayer(playerID, gameID, netConn); err != nil {
		return err
	}
	s.log.Infof("player %s reconnected to game %s", playerID, gameID)
	return nil
}

func (s *Server) handleJoin(netConn net.Conn, token string) error {
	claims, err := s.auth.VerifySession(token)
	if err != nil {
		return err
	}
	if !s.registry.HasGameType(claims.GameType) {
		return fmt.Errorf("unknown game type %q", claims.GameType)
	}

	username, err := demandUsername(netConn)
	if err != nil {
		return err
	}

	// The reconnection token must hit the wire before the game's
	// actors own the stream, so it is written from the queue's
	// prepare hook. The handshake deadline stays in force until that
	// write lands; a stalled client times out instead of tying up the
	// hand-off.
	userID := uuid.New()
	_, err = s.registry.AddPlayerToQueue(claims.GameType, userID, username, netConn, func(gameID uuid.UUID) error {
		reconnectToken, err := s.auth.IssueReconnect(userID, gameID)
		if err != nil {
			return err
		}
		if err := wire.Send(netConn, &wire.Message{Kind: wire.KindGameSessionToken, Token: reconnectToken}); err != nil {
			return err
		}
		return netConn.SetDeadline(time.Time{})
	})
	if err != nil {
		return err
	}
	s.log.Infof("%s (%s) queued for %s", username, claims.Username, claims.GameType)
	return nil
}

// demandUsername prompts until the client supplies a non-empty display
// name.
func demandUsername(netConn net.Conn) (string, error) {
	demand := wire.NewDemand(wire.DemandUsername)
	for {
		if err := wire.Send(netConn, demand); err != nil {
			return "", err
		}
		msg, err := wire.Receive(netConn)
		if err != nil {
			return "", err
		}
		name := ""
		if msg.Kind == wire.KindPlayerChoice {
			name = strings.TrimSpace(msg.Choice)
		}
		if name == "" {
			demand.SetDemandError(emptyUsername)
			continue
		}
		return name, nil
	}
}

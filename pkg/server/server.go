// Package server holds the network-facing half of the card server:
// the TLS listener and handshake, matchmaking registry, user store
// and the HTTP auth/status API.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/qafoongame/qafoon/pkg/auth"
)

// Config holds the game listener's dependencies.
type Config struct {
	Log        slog.Logger
	ListenAddr string
	// TLS wraps the listener when non-nil.
	TLS *tls.Config
	// HandshakeTimeout bounds the pre-game exchange on a fresh
	// connection.
	HandshakeTimeout time.Duration
	Registry         *Registry
	Auth             *auth.Manager
}

// Server accepts game-protocol connections and routes them through
// the handshake into the registry.
type Server struct {
	log              slog.Logger
	listenAddr       string
	tlsConfig        *tls.Config
	handshakeTimeout time.Duration
	registry         *Registry
	auth             *auth.Manager

	wg sync.WaitGroup
}

// New creates a server around an existing registry and auth manager.
func New(cfg Config) *Server {
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		log:              cfg.Log,
		listenAddr:       cfg.ListenAddr,
		tlsConfig:        cfg.TLS,
		handshakeTimeout: timeout,
		registry:         cfg.Registry,
		auth:             cfg.Auth,
	}
}

// Run listens and accepts until ctx is cancelled, then waits for
// in-flight handshakes to finish. Connections already handed to games
// are shut down by the registry, not here.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.log.Infof("listening on %s (tls: %v)", ln.Addr(), s.tlsConfig != nil)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		netConn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(netConn)
		}()
	}
}

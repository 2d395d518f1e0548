package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/qafoongame/qafoon/pkg/auth"
	"github.com/qafoongame/qafoon/pkg/config"
	"github.com/qafoongame/qafoon/pkg/qafoon"
	"github.com/qafoongame/qafoon/pkg/server"
)

func main() {
	var (
		envFile    string
		listenAddr string
		httpAddr   string
		dbPath     string
		debugLevel string
	)
	flag.StringVar(&envFile, "env", "", "Path to .env file (default: ./.env if present)")
	flag.StringVar(&listenAddr, "listen", "", "Game listener address (overrides LISTEN_ADDR)")
	flag.StringVar(&httpAddr, "http", "", "HTTP API address (overrides HTTP_ADDR)")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (overrides DB_PATH)")
	flag.StringVar(&debugLevel, "debuglevel", "", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if debugLevel != "" {
		cfg.DebugLevel = debugLevel
	}

	// Logging backend
	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:     cfg.LogFile,
		DebugLevel:  cfg.DebugLevel,
		MaxLogFiles: 5,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	log := logBackend.Logger("SRVR")

	// Init DB
	db, err := server.NewDatabase(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	authm, err := auth.NewManager(cfg.JWTSecret, 24*time.Hour, 24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init auth: %v\n", err)
		os.Exit(1)
	}

	gameLog := logBackend.Logger("GAME")
	registry := server.NewRegistry(server.RegistryConfig{
		Log:             logBackend.Logger("REGI"),
		QueueCutoff:     cfg.QueueCutoff,
		CleanupInterval: cfg.CleanupInterval,
		GameDuration:    cfg.GameDuration,
		OnGameDone: func(session server.Session, runErr error) {
			game, ok := session.(*qafoon.Game)
			if !ok || game.Status() != qafoon.StatusFinished {
				return
			}
			for name, won := range game.Outcome() {
				if err := db.RecordGameResult(name, won); err != nil {
					log.Debugf("recording result for %s: %v", name, err)
				}
			}
		},
	})
	defer registry.Close()
	registry.RegisterFactory(server.DefaultGameType, func() (server.Session, error) {
		return qafoon.New(qafoon.Config{
			Log:                  gameLog,
			TeamSelectionTimeout: cfg.TeamSelectionTimeout,
			PlayerChoiceTimeout:  cfg.PlayerChoiceTimeout,
			ChoiceTimeoutEnabled: cfg.ChoiceTimeoutEnabled,
		}), nil
	})

	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load TLS keypair: %v\n", err)
			os.Exit(1)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	gameSrv := server.New(server.Config{
		Log:        log,
		ListenAddr: cfg.ListenAddr,
		TLS:        tlsConfig,
		Registry:   registry,
		Auth:       authm,
	})

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(logBackend.Logger("HTTP"), db, authm, registry),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		log.Infof("http api listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := gameSrv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("game server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Infof("shutting down")
	case err := <-errCh:
		log.Errorf("%v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
}

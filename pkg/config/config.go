// Package config loads server settings from the environment, with an
// optional .env file for development setups.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server binary needs to start.
type Config struct {
	// ListenAddr is the game-protocol listener address.
	ListenAddr string
	// HTTPAddr is the auth/status HTTP API address.
	HTTPAddr string
	// TLSCertFile and TLSKeyFile enable TLS on the game listener when
	// both are set; with neither set the listener is plain TCP.
	TLSCertFile string
	TLSKeyFile  string
	DBPath      string
	JWTSecret   string
	DebugLevel  string
	LogFile     string

	TeamSelectionTimeout time.Duration
	PlayerChoiceTimeout  time.Duration
	ChoiceTimeoutEnabled bool
	QueueCutoff          time.Duration
	CleanupInterval      time.Duration
	GameDuration         time.Duration
}

// Defaults returns the stock configuration.
func Defaults() Config {
	return Config{
		ListenAddr:           "0.0.0.0:8080",
		HTTPAddr:             "0.0.0.0:8081",
		DBPath:               "qafoon.sqlite",
		DebugLevel:           "info",
		TeamSelectionTimeout: 300 * time.Second,
		PlayerChoiceTimeout:  30 * time.Second,
		ChoiceTimeoutEnabled: true,
		QueueCutoff:          600 * time.Second,
		CleanupInterval:      300 * time.Second,
		GameDuration:         2 * time.Hour,
	}
}

// Load reads the environment into a Config. When envFile is non-empty
// it is loaded first; a missing default .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Defaults()
	cfg.ListenAddr = envStr("LISTEN_ADDR", cfg.ListenAddr)
	cfg.HTTPAddr = envStr("HTTP_ADDR", cfg.HTTPAddr)
	cfg.TLSCertFile = envStr("TLS_CERT_FILE", cfg.TLSCertFile)
	cfg.TLSKeyFile = envStr("TLS_KEY_FILE", cfg.TLSKeyFile)
	cfg.DBPath = envStr("DB_PATH", cfg.DBPath)
	cfg.JWTSecret = envStr("JWT_SECRET", cfg.JWTSecret)
	cfg.DebugLevel = envStr("DEBUG_LEVEL", cfg.DebugLevel)
	cfg.LogFile = envStr("LOG_FILE", cfg.LogFile)

	var err error
	if cfg.TeamSelectionTimeout, err = envSeconds("TEAM_SELECTION_TIMEOUT_SECS", cfg.TeamSelectionTimeout); err != nil {
		return nil, err
	}
	if cfg.PlayerChoiceTimeout, err = envSeconds("PLAYER_CHOICE_TIMEOUT_SECS", cfg.PlayerChoiceTimeout); err != nil {
		return nil, err
	}
	if cfg.ChoiceTimeoutEnabled, err = envBool("CHOICE_TIMEOUT_ENABLED", cfg.ChoiceTimeoutEnabled); err != nil {
		return nil, err
	}
	if cfg.QueueCutoff, err = envSeconds("QUEUE_CUTOFF_SECS", cfg.QueueCutoff); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = envSeconds("CLEANUP_INTERVAL_SECS", cfg.CleanupInterval); err != nil {
		return nil, err
	}
	if cfg.GameDuration, err = envSeconds("GAME_DURATION_SECS", cfg.GameDuration); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.TeamSelectionTimeout <= 0 || c.PlayerChoiceTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.QueueCutoff <= 0 || c.CleanupInterval <= 0 || c.GameDuration <= 0 {
		return fmt.Errorf("queue cutoff, cleanup interval and game duration must be positive")
	}
	return nil
}

// TLSEnabled reports whether the game listener should wrap in TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func envStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qafoongame/qafoon/pkg/server/internal/db"
)

// Database defines the user-store operations the server needs.
type Database interface {
	// CreateUser registers a new account with an already-hashed
	// password.
	CreateUser(username, passwordHash string) (*db.User, error)
	// UserByUsername looks an account up by name.
	UserByUsername(username string) (*db.User, error)
	// RecordGameResult bumps an account's lifetime stats.
	RecordGameResult(username string, won bool) error
	// Close closes the database connection.
	Close() error
}

// NewDatabase creates a new database connection.
func NewDatabase(dbPath string) (Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	return db.NewDB(dbPath)
}

// Package db implements the SQLite-backed user store.
package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrUserExists reports a registration with a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound reports a lookup of an unknown username.
	ErrUserNotFound = errors.New("user not found")
)

// User is one registered account with its lifetime stats.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	GamesPlayed  int
	GamesWon     int
	CreatedAt    string
}

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

// NewDB opens (and if necessary creates) the database at dbPath.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			games_played INTEGER NOT NULL DEFAULT 0,
			games_won INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// CreateUser registers a new account with an already-hashed password.
func (d *DB) CreateUser(username, passwordHash string) (*User, error) {
	id := uuid.New()
	_, err := d.Exec(
		`INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)`,
		id.String(), username, passwordHash,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return d.UserByUsername(username)
}

// UserByUsername looks an account up by name.
func (d *DB) UserByUsername(username string) (*User, error) {
	row := d.QueryRow(
		`SELECT id, username, password_hash, games_played, games_won, created_at
		 FROM users WHERE username = ?`, username,
	)
	var u User
	var id string
	err := row.Scan(&id, &u.Username, &u.PasswordHash, &u.GamesPlayed, &u.GamesWon, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id for %s: %w", username, err)
	}
	return &u, nil
}

// RecordGameResult bumps an account's played counter, and its won
// counter when won is set.
func (d *DB) RecordGameResult(username string, won bool) error {
	wonDelta := 0
	if won {
		wonDelta = 1
	}
	res, err := d.Exec(
		`UPDATE users SET games_played = games_played + 1, games_won = games_won + ?
		 WHERE username = ?`, wonDelta, username,
	)
	if err != nil {
		return fmt.Errorf("recording game result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// migrations is an ordered list of SQL statements applied on startup.
// Each entry is idempotent (IF NOT EXISTS) so re-running is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS greeter_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_sessions (
		username   TEXT PRIMARY KEY,
		session    TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

const lastUserKey = "last-user"

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time.

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SetLastUser(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO greeter_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastUserKey, username)
	return err
}

func (s *SQLiteStore) LastUser(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM greeter_state WHERE key = ?`, lastUserKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetLastSession(ctx context.Context, username, session string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (username, session, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET session = excluded.session, updated_at = excluded.updated_at`,
		username, session, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) LastSession(ctx context.Context, username string) (string, error) {
	var session string
	err := s.db.QueryRowContext(ctx,
		`SELECT session FROM user_sessions WHERE username = ?`, username).Scan(&session)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return session, err
}

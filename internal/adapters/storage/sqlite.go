// Package storage provides SQLite implementations of the storage ports.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/xvierd/thirdtime/internal/ports"
	"modernc.org/sqlite"
)

// sqliteStorage implements the ports.Storage interface using SQLite.
type sqliteStorage struct {
	db           *sql.DB
	intervalRepo ports.IntervalRepository
	bankRepo     ports.BankRepository
}

// Ensure sqliteStorage implements ports.Storage.
var _ ports.Storage = (*sqliteStorage)(nil)

// New creates a new SQLite storage instance.
func New(dbPath string) (ports.Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// the history is written by a single host anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &sqliteStorage{
		db:           db,
		intervalRepo: newIntervalRepository(db),
		bankRepo:     newBankRepository(db),
	}

	if err := storage.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// NewMemory creates a new in-memory SQLite storage instance for testing.
func NewMemory() (ports.Storage, error) {
	return New(":memory:")
}

// Intervals returns the interval repository.
func (s *sqliteStorage) Intervals() ports.IntervalRepository {
	return s.intervalRepo
}

// Bank returns the bank ledger repository.
func (s *sqliteStorage) Bank() ports.BankRepository {
	return s.bankRepo
}

// Close closes the database connection.
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

// Migrate creates the database schema. Timestamps are unix milliseconds.
func (s *sqliteStorage) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS intervals (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		planned_ms INTEGER,
		actual_ms INTEGER NOT NULL DEFAULT 0,
		expected_break_ms INTEGER,
		git_branch TEXT NOT NULL DEFAULT '',
		git_commit TEXT NOT NULL DEFAULT '',
		forced INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_started ON intervals(started_at);
	CREATE INDEX IF NOT EXISTS idx_intervals_kind ON intervals(kind);

	CREATE TABLE IF NOT EXISTS bank_entries (
		id TEXT PRIMARY KEY,
		at INTEGER NOT NULL,
		reason TEXT NOT NULL,
		delta_ms INTEGER NOT NULL,
		balance_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_entries_at ON bank_entries(at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := toMillis(*t)
	return &ms
}

func nullableDurationMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// isUniqueConstraintError checks if an error is a primary key or unique
// constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	sqliteErr, ok := err.(*sqlite.Error)
	if !ok {
		return false
	}
	code := sqliteErr.Code()
	return code == 2067 || code == 1555 // SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
}

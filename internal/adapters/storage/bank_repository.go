package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

// bankRepository implements ports.BankRepository using SQLite.
type bankRepository struct {
	db *sql.DB
}

// newBankRepository creates a new bank ledger repository.
func newBankRepository(db *sql.DB) ports.BankRepository {
	return &bankRepository{db: db}
}

// Append records one ledger entry. Appending an ID twice is a no-op.
func (r *bankRepository) Append(ctx context.Context, entry *domain.BankEntry) error {
	if entry.ID == "" {
		entry.ID = domain.NewID()
	}

	query := `
		INSERT INTO bank_entries (id, at, reason, delta_ms, balance_ms)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		toMillis(entry.At),
		string(entry.Reason),
		entry.Delta.Milliseconds(),
		entry.Balance.Milliseconds(),
	)
	if isUniqueConstraintError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to append bank entry: %w", err)
	}

	return nil
}

// FindRecent retrieves ledger entries recorded at or after since.
func (r *bankRepository) FindRecent(ctx context.Context, since time.Time) ([]*domain.BankEntry, error) {
	query := `
		SELECT id, at, reason, delta_ms, balance_ms
		FROM bank_entries
		WHERE at >= ?
		ORDER BY at ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query bank entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.BankEntry
	for rows.Next() {
		entry, err := scanBankEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Latest returns the most recent ledger entry.
func (r *bankRepository) Latest(ctx context.Context) (*domain.BankEntry, error) {
	query := `
		SELECT id, at, reason, delta_ms, balance_ms
		FROM bank_entries
		ORDER BY at DESC, rowid DESC
		LIMIT 1
	`

	entry, err := scanBankEntry(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bank entry: %w", err)
	}
	return entry, nil
}

func scanBankEntry(row rowScanner) (*domain.BankEntry, error) {
	var entry domain.BankEntry
	var at, deltaMs, balanceMs int64
	var reason string

	if err := row.Scan(&entry.ID, &at, &reason, &deltaMs, &balanceMs); err != nil {
		return nil, err
	}

	entry.At = fromMillis(at)
	entry.Reason = domain.BankReason(reason)
	entry.Delta = time.Duration(deltaMs) * time.Millisecond
	entry.Balance = time.Duration(balanceMs) * time.Millisecond
	return &entry, nil
}

// Package ports defines the interfaces (driven and driving ports)
// for the thirdtime application following hexagonal architecture
// principles. These interfaces define the contracts between the domain
// layer and external infrastructure.
package ports

import (
	"context"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
)

// IntervalRepository defines the interface for interval history.
// This is a driven port (implemented by adapters).
type IntervalRepository interface {
	// Save persists an ended interval. Saving an existing ID replaces it.
	Save(ctx context.Context, interval *domain.IntervalRecord) error

	// FindByID retrieves an interval by its unique identifier.
	FindByID(ctx context.Context, id string) (*domain.IntervalRecord, error)

	// FindRecent retrieves intervals started at or after since, newest first.
	FindRecent(ctx context.Context, since time.Time) ([]*domain.IntervalRecord, error)

	// FindByLabel returns intervals whose label fuzzily matches query,
	// best match first.
	FindByLabel(ctx context.Context, query string) ([]*domain.IntervalRecord, error)

	// GetDailyStats returns aggregated statistics for a specific date.
	GetDailyStats(ctx context.Context, date time.Time) (*domain.DailyStats, error)
}

// BankRepository defines the interface for the bank ledger.
// This is a driven port (implemented by adapters).
type BankRepository interface {
	// Append records one change of the bank balance.
	Append(ctx context.Context, entry *domain.BankEntry) error

	// FindRecent retrieves entries recorded at or after since, oldest first.
	FindRecent(ctx context.Context, since time.Time) ([]*domain.BankEntry, error)

	// Latest returns the most recent entry, or nil when the ledger is empty.
	Latest(ctx context.Context) (*domain.BankEntry, error)
}

// Storage is the combined repository interface.
// This is a driven port (implemented by adapters).
type Storage interface {
	// Intervals provides access to interval history.
	Intervals() IntervalRepository

	// Bank provides access to the bank ledger.
	Bank() BankRepository

	// Close closes the storage connection.
	Close() error

	// Migrate runs database migrations.
	Migrate() error
}

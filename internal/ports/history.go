package ports

import (
	"context"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
)

// HistoryReader answers questions about past intervals and the bank
// ledger. It is implemented by the services layer.
type HistoryReader interface {
	RecentIntervals(ctx context.Context, since time.Time, limit int) ([]*domain.IntervalRecord, error)
	SearchIntervals(ctx context.Context, query string, since time.Time, limit int) ([]*domain.IntervalRecord, error)
	BankHistory(ctx context.Context, since time.Time) ([]*domain.BankEntry, error)
}

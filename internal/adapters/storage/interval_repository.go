package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

const intervalColumns = `
	id, kind, label, started_at, ended_at, planned_ms, actual_ms,
	expected_break_ms, git_branch, git_commit, forced
`

// intervalRepository implements ports.IntervalRepository using SQLite.
type intervalRepository struct {
	db *sql.DB
}

// newIntervalRepository creates a new interval repository.
func newIntervalRepository(db *sql.DB) ports.IntervalRepository {
	return &intervalRepository{db: db}
}

// Save persists an interval, replacing a previous version with the same ID.
func (r *intervalRepository) Save(ctx context.Context, interval *domain.IntervalRecord) error {
	query := `
		INSERT INTO intervals (` + intervalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			label = excluded.label,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			planned_ms = excluded.planned_ms,
			actual_ms = excluded.actual_ms,
			expected_break_ms = excluded.expected_break_ms,
			git_branch = excluded.git_branch,
			git_commit = excluded.git_commit,
			forced = excluded.forced
	`

	var planned *int64
	if interval.ExpectedEndTime != nil {
		ms := interval.PlannedDuration().Milliseconds()
		planned = &ms
	}
	actual := time.Duration(0)
	if interval.EndedAt != nil {
		actual = interval.Elapsed(*interval.EndedAt)
	}

	_, err := r.db.ExecContext(ctx, query,
		interval.ID,
		string(interval.Kind),
		interval.Label,
		toMillis(interval.StartTime),
		nullableMillis(interval.EndedAt),
		planned,
		actual.Milliseconds(),
		nullableDurationMillis(interval.ExpectedBreak),
		interval.GitBranch,
		interval.GitCommit,
		interval.Forced,
	)
	if err != nil {
		return fmt.Errorf("failed to save interval: %w", err)
	}

	return nil
}

// FindByID retrieves an interval by its unique identifier.
func (r *intervalRepository) FindByID(ctx context.Context, id string) (*domain.IntervalRecord, error) {
	query := `SELECT ` + intervalColumns + ` FROM intervals WHERE id = ?`

	interval, err := scanInterval(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIntervalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find interval: %w", err)
	}
	return interval, nil
}

// FindRecent retrieves intervals started at or after since.
func (r *intervalRepository) FindRecent(ctx context.Context, since time.Time) ([]*domain.IntervalRecord, error) {
	query := `
		SELECT ` + intervalColumns + `
		FROM intervals
		WHERE started_at >= ?
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent intervals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanIntervals(rows)
}

// FindByLabel does a fuzzy search over interval labels.
func (r *intervalRepository) FindByLabel(ctx context.Context, query string) ([]*domain.IntervalRecord, error) {
	intervals, err := r.FindRecent(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to get intervals for fuzzy search: %w", err)
	}

	labeled := make([]*domain.IntervalRecord, 0, len(intervals))
	labels := make([]string, 0, len(intervals))
	for _, interval := range intervals {
		if interval.Label == "" {
			continue
		}
		labeled = append(labeled, interval)
		labels = append(labels, interval.Label)
	}

	matches := fuzzy.Find(query, labels)

	var result []*domain.IntervalRecord
	for _, match := range matches {
		result = append(result, labeled[match.Index])
	}

	return result, nil
}

// GetDailyStats returns aggregated statistics for a specific date.
func (r *intervalRepository) GetDailyStats(ctx context.Context, date time.Time) (*domain.DailyStats, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	query := `
		SELECT
			COUNT(CASE WHEN kind = 'work' THEN 1 END),
			COUNT(CASE WHEN kind IN ('short_break', 'long_break') THEN 1 END),
			COUNT(CASE WHEN kind = 'long_break' THEN 1 END),
			COALESCE(SUM(CASE WHEN kind = 'work' THEN actual_ms END), 0),
			COALESCE(SUM(CASE WHEN kind IN ('short_break', 'long_break') THEN actual_ms END), 0)
		FROM intervals
		WHERE ended_at IS NOT NULL AND started_at >= ? AND started_at < ?
	`

	stats := &domain.DailyStats{
		Date: startOfDay,
	}

	var totalWorkMs, totalBreakMs int64
	err := r.db.QueryRowContext(ctx, query, toMillis(startOfDay), toMillis(endOfDay)).Scan(
		&stats.WorkIntervals,
		&stats.BreaksTaken,
		&stats.LongBreaks,
		&totalWorkMs,
		&totalBreakMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}

	stats.TotalWorkTime = time.Duration(totalWorkMs) * time.Millisecond
	stats.TotalBreak = time.Duration(totalBreakMs) * time.Millisecond

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanInterval scans a single interval row.
func scanInterval(row rowScanner) (*domain.IntervalRecord, error) {
	var interval domain.IntervalRecord
	var kind string
	var startedAt int64
	var endedAt, plannedMs, expectedBreakMs sql.NullInt64
	var actualMs int64

	err := row.Scan(
		&interval.ID,
		&kind,
		&interval.Label,
		&startedAt,
		&endedAt,
		&plannedMs,
		&actualMs,
		&expectedBreakMs,
		&interval.GitBranch,
		&interval.GitCommit,
		&interval.Forced,
	)
	if err != nil {
		return nil, err
	}

	interval.Kind = domain.IntervalKind(kind)
	interval.StartTime = fromMillis(startedAt)
	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		interval.EndedAt = &t
	}
	if plannedMs.Valid {
		t := interval.StartTime.Add(time.Duration(plannedMs.Int64) * time.Millisecond)
		interval.ExpectedEndTime = &t
	}
	if expectedBreakMs.Valid {
		d := time.Duration(expectedBreakMs.Int64) * time.Millisecond
		interval.ExpectedBreak = &d
	}

	return &interval, nil
}

// scanIntervals scans multiple interval rows.
func scanIntervals(rows *sql.Rows) ([]*domain.IntervalRecord, error) {
	var intervals []*domain.IntervalRecord
	for rows.Next() {
		interval, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		intervals = append(intervals, interval)
	}
	return intervals, rows.Err()
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
	"gopkg.in/yaml.v3"
)

// ExportFormat selects the encoding of an export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
)

// HistoryService answers questions about past intervals and the bank
// ledger. It only reads storage.
type HistoryService struct {
	storage ports.Storage
}

var _ ports.HistoryReader = (*HistoryService)(nil)

// NewHistoryService creates a new history service.
func NewHistoryService(storage ports.Storage) *HistoryService {
	return &HistoryService{storage: storage}
}

// RecentIntervals returns intervals started since, newest first, capped at
// limit when limit is positive.
func (s *HistoryService) RecentIntervals(ctx context.Context, since time.Time, limit int) ([]*domain.IntervalRecord, error) {
	intervals, err := s.storage.Intervals().FindRecent(ctx, since)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(intervals) > limit {
		return intervals[:limit], nil
	}
	return intervals, nil
}

// SearchIntervals fuzzy-matches the labels of intervals started since,
// keeping the match order, capped at limit when limit is positive.
func (s *HistoryService) SearchIntervals(ctx context.Context, query string, since time.Time, limit int) ([]*domain.IntervalRecord, error) {
	found, err := s.storage.Intervals().FindByLabel(ctx, query)
	if err != nil {
		return nil, err
	}
	intervals := make([]*domain.IntervalRecord, 0, len(found))
	for _, iv := range found {
		if iv.StartTime.Before(since) {
			continue
		}
		intervals = append(intervals, iv)
		if limit > 0 && len(intervals) == limit {
			break
		}
	}
	return intervals, nil
}

// BankHistory returns ledger entries recorded since, oldest first.
func (s *HistoryService) BankHistory(ctx context.Context, since time.Time) ([]*domain.BankEntry, error) {
	return s.storage.Bank().FindRecent(ctx, since)
}

// LatestBalance returns the last recorded bank balance.
func (s *HistoryService) LatestBalance(ctx context.Context) (time.Duration, error) {
	entry, err := s.storage.Bank().Latest(ctx)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return entry.Balance, nil
}

// DailyStats returns the statistics of each of the last days days,
// oldest first, ending with the day of now.
func (s *HistoryService) DailyStats(ctx context.Context, now time.Time, days int) ([]*domain.DailyStats, error) {
	if days < 1 {
		days = 1
	}
	result := make([]*domain.DailyStats, 0, days)
	for i := days - 1; i >= 0; i-- {
		stats, err := s.storage.Intervals().GetDailyStats(ctx, now.AddDate(0, 0, -i))
		if err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	return result, nil
}

// ExportInterval is the exported form of an interval.
type ExportInterval struct {
	ID            string     `json:"id" yaml:"id"`
	Kind          string     `json:"kind" yaml:"kind"`
	Label         string     `json:"label,omitempty" yaml:"label,omitempty"`
	StartedAt     time.Time  `json:"started_at" yaml:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	PlannedSec    float64    `json:"planned_seconds" yaml:"planned_seconds"`
	ActualSec     float64    `json:"actual_seconds" yaml:"actual_seconds"`
	ExpectedBreak *float64   `json:"expected_break_seconds,omitempty" yaml:"expected_break_seconds,omitempty"`
	Forced        bool       `json:"forced" yaml:"forced"`
	GitBranch     string     `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`
	GitCommit     string     `json:"git_commit,omitempty" yaml:"git_commit,omitempty"`
}

// ExportBankEntry is the exported form of a ledger entry.
type ExportBankEntry struct {
	At         time.Time `json:"at" yaml:"at"`
	Reason     string    `json:"reason" yaml:"reason"`
	DeltaSec   float64   `json:"delta_seconds" yaml:"delta_seconds"`
	BalanceSec float64   `json:"balance_seconds" yaml:"balance_seconds"`
}

// ExportDocument is everything an export contains.
type ExportDocument struct {
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Since      time.Time         `json:"since" yaml:"since"`
	Intervals  []ExportInterval  `json:"intervals" yaml:"intervals"`
	Bank       []ExportBankEntry `json:"bank" yaml:"bank"`
}

// BuildExport collects intervals and ledger entries since the given time.
func (s *HistoryService) BuildExport(ctx context.Context, since, now time.Time) (*ExportDocument, error) {
	intervals, err := s.storage.Intervals().FindRecent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load intervals: %w", err)
	}
	entries, err := s.storage.Bank().FindRecent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank entries: %w", err)
	}

	doc := &ExportDocument{
		ExportedAt: now,
		Since:      since,
		Intervals:  make([]ExportInterval, 0, len(intervals)),
		Bank:       make([]ExportBankEntry, 0, len(entries)),
	}
	// Oldest first reads naturally in a file.
	for i := len(intervals) - 1; i >= 0; i-- {
		iv := intervals[i]
		out := ExportInterval{
			ID:         iv.ID,
			Kind:       string(iv.Kind),
			Label:      iv.Label,
			StartedAt:  iv.StartTime,
			EndedAt:    iv.EndedAt,
			PlannedSec: iv.PlannedDuration().Seconds(),
			Forced:     iv.Forced,
			GitBranch:  iv.GitBranch,
			GitCommit:  iv.GitCommit,
		}
		if iv.EndedAt != nil {
			out.ActualSec = iv.Elapsed(*iv.EndedAt).Seconds()
		}
		if iv.ExpectedBreak != nil {
			sec := iv.ExpectedBreak.Seconds()
			out.ExpectedBreak = &sec
		}
		doc.Intervals = append(doc.Intervals, out)
	}
	for _, e := range entries {
		doc.Bank = append(doc.Bank, ExportBankEntry{
			At:         e.At,
			Reason:     string(e.Reason),
			DeltaSec:   e.Delta.Seconds(),
			BalanceSec: e.Balance.Seconds(),
		})
	}
	return doc, nil
}

// Export writes the history since the given time to w.
func (s *HistoryService) Export(ctx context.Context, w io.Writer, format ExportFormat, since, now time.Time) error {
	doc, err := s.BuildExport(ctx, since, now)
	if err != nil {
		return err
	}

	switch format {
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
	case ExportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
	default:
		return domain.InvalidArgument("format", format)
	}
	return nil
}

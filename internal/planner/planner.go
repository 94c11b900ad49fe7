// Package planner computes Third Time break lengths and keeps the break
// bank in step with how breaks were actually taken.
package planner

import (
	"math"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
)

// ValidateRatio fails unless ratio is a finite, non-negative number.
func ValidateRatio(ratio float64) error {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return &domain.ConfigurationError{Field: "break_to_work_ratio", Value: ratio, Reason: "must be a number"}
	}
	if ratio < 0 {
		return &domain.ConfigurationError{Field: "break_to_work_ratio", Value: ratio, Reason: "must not be negative"}
	}
	return nil
}

// ValidateMinimum fails when the minimum break length is negative.
func ValidateMinimum(minimum time.Duration) error {
	if minimum < 0 {
		return &domain.ConfigurationError{Field: "minimum_break_length", Value: minimum, Reason: "must not be negative"}
	}
	return nil
}

// Validate checks every field of cfg the planner depends on.
func Validate(cfg domain.CycleConfig) error {
	if err := ValidateRatio(cfg.BreakToWorkRatio); err != nil {
		return err
	}
	if err := ValidateMinimum(cfg.MinimumBreakLength); err != nil {
		return err
	}
	if cfg.WorkLength <= 0 {
		return &domain.ConfigurationError{Field: "work_length", Value: cfg.WorkLength, Reason: "must be positive"}
	}
	if cfg.LongBreakLength < 0 {
		return &domain.ConfigurationError{Field: "long_break_length", Value: cfg.LongBreakLength, Reason: "must not be negative"}
	}
	if cfg.DefaultEndIn < 0 {
		return &domain.ConfigurationError{Field: "default_end_in", Value: cfg.DefaultEndIn, Reason: "must not be negative"}
	}
	return nil
}

// ComputeBreakLength returns ratio*actualWork shifted by the bank and
// floored at minimum. It does not validate its inputs.
func ComputeBreakLength(actualWork time.Duration, ratio, bankSeconds float64, minimum time.Duration) time.Duration {
	raw := ratio * actualWork.Seconds()
	adjusted := raw + bankSeconds
	nanos := math.Round(adjusted * float64(time.Second))
	var length time.Duration
	switch {
	case nanos >= math.MaxInt64:
		length = time.Duration(math.MaxInt64)
	case nanos <= math.MinInt64:
		length = time.Duration(math.MinInt64)
	default:
		length = time.Duration(nanos)
	}
	if length < minimum {
		return minimum
	}
	return length
}

// Planner applies the break formula against a bank.
type Planner struct {
	bank *domain.Bank
}

// New returns a planner that reads and mutates bank.
func New(bank *domain.Bank) *Planner {
	return &Planner{bank: bank}
}

// Bank returns the bank the planner works on.
func (p *Planner) Bank() *domain.Bank {
	return p.bank
}

// PlanBreak validates cfg and computes the break that follows actualWork.
// On the first cycle of a session any stale balance is discarded first.
// The bank is empty afterwards: its balance is now part of the break.
func (p *Planner) PlanBreak(actualWork time.Duration, cfg domain.CycleConfig, firstCycle bool) (time.Duration, error) {
	if err := ValidateRatio(cfg.BreakToWorkRatio); err != nil {
		return 0, err
	}
	if err := ValidateMinimum(cfg.MinimumBreakLength); err != nil {
		return 0, err
	}
	if actualWork < 0 {
		actualWork = 0
	}
	if firstCycle {
		p.bank.Reset()
	}
	length := ComputeBreakLength(actualWork, cfg.BreakToWorkRatio, p.bank.Seconds(), cfg.MinimumBreakLength)
	p.bank.Reset()
	return length, nil
}

// RecordBreakOutcome books the difference between the planned and the
// actual break. A break that ended early leaves a surplus, one that ran
// over a debit. With no planned break it does nothing.
func (p *Planner) RecordBreakOutcome(expected *time.Duration, actual time.Duration) (time.Duration, bool) {
	if expected == nil {
		return 0, false
	}
	delta := *expected - actual
	p.bank.Apply(delta)
	return delta, true
}

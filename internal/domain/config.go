package domain

import "time"

// CycleConfig holds the scheduling parameters for one session.
type CycleConfig struct {
	WorkLength         time.Duration
	BreakToWorkRatio   float64
	MinimumBreakLength time.Duration
	LongBreakLength    time.Duration
	// DefaultEndIn is used by hosts when an end-in command gives no minutes.
	DefaultEndIn time.Duration
	// ConfirmTransitions keeps an interval running past its deadline (overtime)
	// until the user explicitly ends it.
	ConfirmTransitions bool
}

// DefaultCycleConfig returns the classic Third Time settings: 25 minute work
// intervals, a third of the work time as break, at least one minute.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		WorkLength:         25 * time.Minute,
		BreakToWorkRatio:   1.0 / 3.0,
		MinimumBreakLength: time.Minute,
		LongBreakLength:    20 * time.Minute,
		DefaultEndIn:       5 * time.Minute,
	}
}

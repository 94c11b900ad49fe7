package domain

import (
	"time"
)

// CycleState is the state of the cycle machine.
type CycleState string

const (
	StateIdle       CycleState = "idle"
	StateWork       CycleState = "work"
	StateShortBreak CycleState = "short_break"
	StateLongBreak  CycleState = "long_break"
	// StateOvertime means the live interval passed its deadline and waits
	// for an explicit end.
	StateOvertime CycleState = "overtime"
)

// StateForKind maps an interval kind to its running state.
func StateForKind(kind IntervalKind) CycleState {
	switch kind {
	case IntervalShortBreak:
		return StateShortBreak
	case IntervalLongBreak:
		return StateLongBreak
	default:
		return StateWork
	}
}

// Label returns a human-readable label for the state.
func (s CycleState) Label() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWork:
		return "Working"
	case StateShortBreak:
		return "Short Break"
	case StateLongBreak:
		return "Long Break"
	case StateOvertime:
		return "Overtime"
	default:
		return "Unknown"
	}
}

// Snapshot is a copy of the machine state at one instant.
type Snapshot struct {
	At        time.Time
	State     CycleState
	Interval  *IntervalRecord
	Bank      time.Duration
	WorkCount int
}

// IsActive returns true when an interval is live.
func (s Snapshot) IsActive() bool {
	return s.State != StateIdle && s.Interval != nil
}

// Remaining returns the time left in the live interval.
func (s Snapshot) Remaining() time.Duration {
	if s.Interval == nil {
		return 0
	}
	return s.Interval.Remaining(s.At)
}

// Elapsed returns how long the live interval has run.
func (s Snapshot) Elapsed() time.Duration {
	if s.Interval == nil {
		return 0
	}
	return s.Interval.Elapsed(s.At)
}

// Overdue returns how long the live interval has been in overtime.
func (s Snapshot) Overdue() time.Duration {
	if s.State != StateOvertime || s.Interval == nil {
		return 0
	}
	return s.Interval.Overdue(s.At)
}

// Progress returns the completion fraction of the live interval.
func (s Snapshot) Progress() float64 {
	if s.Interval == nil {
		return 0
	}
	return s.Interval.Progress(s.At)
}

// CurrentState is everything a host surface shows.
type CurrentState struct {
	Cycle      Snapshot
	TodayStats DailyStats
}

// DailyStats aggregates the interval history of a day.
type DailyStats struct {
	Date          time.Time
	WorkIntervals int
	BreaksTaken   int
	LongBreaks    int
	TotalWorkTime time.Duration
	TotalBreak    time.Duration
}

// BankReason explains a bank ledger entry.
type BankReason string

const (
	BankReasonBreakOutcome BankReason = "break_outcome"
	BankReasonAbsorbed     BankReason = "absorbed"
	BankReasonFirstCycle   BankReason = "first_cycle"
	BankReasonLongBreak    BankReason = "long_break"
	BankReasonKilled       BankReason = "killed"
)

// BankEntry is one persisted change of the bank balance.
type BankEntry struct {
	ID      string
	At      time.Time
	Reason  BankReason
	Delta   time.Duration
	Balance time.Duration
}

package domain

import "time"

// EventType names a cycle lifecycle event.
type EventType string

const (
	EventIntervalStarted     EventType = "interval_started"
	EventIntervalEnded       EventType = "interval_ended"
	EventBreakLengthComputed EventType = "break_length_computed"
	EventBankUpdated         EventType = "bank_updated"
	EventLongBreakFinished   EventType = "long_break_finished"
	EventKilled              EventType = "killed"
	EventOvertimeStarted     EventType = "overtime_started"
)

// Event is delivered to cycle subscribers after a transition completes.
// Interval is a copy; observers may keep it.
type Event struct {
	Type        EventType
	State       CycleState
	Interval    *IntervalRecord
	BreakLength time.Duration
	BankReason  BankReason
	BankDelta   time.Duration
	BankBalance time.Duration
	At          time.Time
}

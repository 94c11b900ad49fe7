package domain

import "time"

// IntervalKind is the type of a scheduled interval.
type IntervalKind string

const (
	IntervalWork       IntervalKind = "work"
	IntervalShortBreak IntervalKind = "short_break"
	IntervalLongBreak  IntervalKind = "long_break"
)

// IsBreak returns true for both break kinds.
func (k IntervalKind) IsBreak() bool {
	return k == IntervalShortBreak || k == IntervalLongBreak
}

// Label returns a human-readable label.
func (k IntervalKind) Label() string {
	switch k {
	case IntervalWork:
		return "Work"
	case IntervalShortBreak:
		return "Short Break"
	case IntervalLongBreak:
		return "Long Break"
	default:
		return "Unknown"
	}
}

// IntervalRecord is the single live interval of a cycle. Once ended it is
// only kept as history.
type IntervalRecord struct {
	ID              string
	Kind            IntervalKind
	Label           string
	StartTime       time.Time
	ExpectedEndTime *time.Time
	EndedAt         *time.Time
	// ExpectedBreak is set on break records: the length the planner
	// computed. It is consumed when the following work interval starts.
	ExpectedBreak *time.Duration
	// Forced is true when the interval was ended by a manual override.
	Forced    bool
	GitBranch string
	GitCommit string
}

// NewIntervalRecord starts a record at now with an optional deadline.
func NewIntervalRecord(kind IntervalKind, now time.Time, deadline *time.Time) *IntervalRecord {
	r := &IntervalRecord{
		ID:        NewID(),
		Kind:      kind,
		StartTime: now,
	}
	if deadline != nil {
		d := *deadline
		r.ExpectedEndTime = &d
	}
	return r
}

// SetDeadline replaces the expected end time.
func (r *IntervalRecord) SetDeadline(deadline time.Time) {
	r.ExpectedEndTime = &deadline
}

// End marks the record as finished at now.
func (r *IntervalRecord) End(now time.Time, forced bool) {
	r.EndedAt = &now
	r.Forced = forced
}

// IsEnded reports whether End was called.
func (r *IntervalRecord) IsEnded() bool {
	return r.EndedAt != nil
}

// PlannedDuration is the distance from start to the expected end, or zero
// when no deadline is set.
func (r *IntervalRecord) PlannedDuration() time.Duration {
	if r.ExpectedEndTime == nil {
		return 0
	}
	return r.ExpectedEndTime.Sub(r.StartTime)
}

// Elapsed returns how long the interval has run at now, or in total once
// ended.
func (r *IntervalRecord) Elapsed(now time.Time) time.Duration {
	end := now
	if r.EndedAt != nil {
		end = *r.EndedAt
	}
	elapsed := end.Sub(r.StartTime)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns the time left until the deadline, never negative.
func (r *IntervalRecord) Remaining(now time.Time) time.Duration {
	if r.ExpectedEndTime == nil || r.EndedAt != nil {
		return 0
	}
	remaining := r.ExpectedEndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Overdue returns how far past the deadline the interval is at now.
func (r *IntervalRecord) Overdue(now time.Time) time.Duration {
	if r.ExpectedEndTime == nil {
		return 0
	}
	over := now.Sub(*r.ExpectedEndTime)
	if over < 0 {
		return 0
	}
	return over
}

// Progress returns the completion fraction (0.0 to 1.0).
func (r *IntervalRecord) Progress(now time.Time) float64 {
	planned := r.PlannedDuration()
	if planned <= 0 {
		return 0
	}
	progress := float64(r.Elapsed(now)) / float64(planned)
	if progress > 1 {
		return 1
	}
	return progress
}

// SetGitContext stores git information for a work interval.
func (r *IntervalRecord) SetGitContext(branch, commit string) {
	r.GitBranch = branch
	r.GitCommit = commit
}

// Clone returns a deep copy safe to hand to observers.
func (r *IntervalRecord) Clone() *IntervalRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.ExpectedEndTime != nil {
		t := *r.ExpectedEndTime
		c.ExpectedEndTime = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	if r.ExpectedBreak != nil {
		d := *r.ExpectedBreak
		c.ExpectedBreak = &d
	}
	return &c
}

package httpapi

import (
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
)

// IntervalDTO is the wire form of an interval.
type IntervalDTO struct {
	ID                   string     `json:"id"`
	Kind                 string     `json:"kind"`
	Label                string     `json:"label,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	ExpectedEnd          *time.Time `json:"expected_end,omitempty"`
	EndedAt              *time.Time `json:"ended_at,omitempty"`
	ExpectedBreakSeconds *float64   `json:"expected_break_seconds,omitempty"`
	Forced               bool       `json:"forced,omitempty"`
	GitBranch            string     `json:"git_branch,omitempty"`
	GitCommit            string     `json:"git_commit,omitempty"`
}

// StatsDTO is the wire form of daily statistics.
type StatsDTO struct {
	Date          time.Time `json:"date"`
	WorkIntervals int       `json:"work_intervals"`
	BreaksTaken   int       `json:"breaks_taken"`
	LongBreaks    int       `json:"long_breaks"`
	WorkSeconds   float64   `json:"work_seconds"`
	BreakSeconds  float64   `json:"break_seconds"`
}

// StateDTO is the response of every cycle endpoint.
type StateDTO struct {
	At               time.Time    `json:"at"`
	State            string       `json:"state"`
	StateLabel       string       `json:"state_label"`
	Interval         *IntervalDTO `json:"interval,omitempty"`
	RemainingSeconds float64      `json:"remaining_seconds"`
	ElapsedSeconds   float64      `json:"elapsed_seconds"`
	OverdueSeconds   float64      `json:"overdue_seconds,omitempty"`
	Progress         float64      `json:"progress"`
	BankSeconds      float64      `json:"bank_seconds"`
	WorkCount        int          `json:"work_count"`
	Today            StatsDTO     `json:"today"`
}

// BankEntryDTO is the wire form of a ledger entry.
type BankEntryDTO struct {
	At             time.Time `json:"at"`
	Reason         string    `json:"reason"`
	DeltaSeconds   float64   `json:"delta_seconds"`
	BalanceSeconds float64   `json:"balance_seconds"`
}

// StartRequest is the body of POST /api/start.
type StartRequest struct {
	Label      string     `json:"label,omitempty"`
	Preset     string     `json:"preset,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	WorkingDir string     `json:"working_dir,omitempty"`
}

// MinutesRequest is the body of POST /api/end-in and /api/long-break.
type MinutesRequest struct {
	Minutes *float64 `json:"minutes"`
}

// EndAtRequest is the body of POST /api/end-at. At is RFC3339 or HH:MM.
type EndAtRequest struct {
	At string `json:"at"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	codeInvalidArgument = "invalid_argument"
	codeConfiguration   = "configuration"
	codeAlreadyActive   = "already_active"
	codeNotFound        = "not_found"
	codeInternal        = "internal"
)

// NewIntervalDTO converts an interval record.
func NewIntervalDTO(r *domain.IntervalRecord) *IntervalDTO {
	if r == nil {
		return nil
	}
	dto := &IntervalDTO{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Label:       r.Label,
		StartedAt:   r.StartTime,
		ExpectedEnd: r.ExpectedEndTime,
		EndedAt:     r.EndedAt,
		Forced:      r.Forced,
		GitBranch:   r.GitBranch,
		GitCommit:   r.GitCommit,
	}
	if r.ExpectedBreak != nil {
		sec := r.ExpectedBreak.Seconds()
		dto.ExpectedBreakSeconds = &sec
	}
	return dto
}

// Record converts the DTO back into an interval record.
func (d *IntervalDTO) Record() *domain.IntervalRecord {
	if d == nil {
		return nil
	}
	r := &domain.IntervalRecord{
		ID:              d.ID,
		Kind:            domain.IntervalKind(d.Kind),
		Label:           d.Label,
		StartTime:       d.StartedAt,
		ExpectedEndTime: d.ExpectedEnd,
		EndedAt:         d.EndedAt,
		Forced:          d.Forced,
		GitBranch:       d.GitBranch,
		GitCommit:       d.GitCommit,
	}
	if d.ExpectedBreakSeconds != nil {
		b := seconds(*d.ExpectedBreakSeconds)
		r.ExpectedBreak = &b
	}
	return r
}

// NewStateDTO converts a current state.
func NewStateDTO(s *domain.CurrentState) StateDTO {
	snap := s.Cycle
	return StateDTO{
		At:               snap.At,
		State:            string(snap.State),
		StateLabel:       snap.State.Label(),
		Interval:         NewIntervalDTO(snap.Interval),
		RemainingSeconds: snap.Remaining().Seconds(),
		ElapsedSeconds:   snap.Elapsed().Seconds(),
		OverdueSeconds:   snap.Overdue().Seconds(),
		Progress:         snap.Progress(),
		BankSeconds:      snap.Bank.Seconds(),
		WorkCount:        snap.WorkCount,
		Today:            NewStatsDTO(s.TodayStats),
	}
}

// NewStatsDTO converts daily statistics.
func NewStatsDTO(s domain.DailyStats) StatsDTO {
	return StatsDTO{
		Date:          s.Date,
		WorkIntervals: s.WorkIntervals,
		BreaksTaken:   s.BreaksTaken,
		LongBreaks:    s.LongBreaks,
		WorkSeconds:   s.TotalWorkTime.Seconds(),
		BreakSeconds:  s.TotalBreak.Seconds(),
	}
}

func NewBankEntryDTO(e *domain.BankEntry) BankEntryDTO {
	return BankEntryDTO{
		At:             e.At,
		Reason:         string(e.Reason),
		DeltaSeconds:   e.Delta.Seconds(),
		BalanceSeconds: e.Balance.Seconds(),
	}
}

// CurrentState converts the DTO back into the domain form.
func (d StateDTO) CurrentState() *domain.CurrentState {
	return &domain.CurrentState{
		Cycle: domain.Snapshot{
			At:        d.At,
			State:     domain.CycleState(d.State),
			Interval:  d.Interval.Record(),
			Bank:      seconds(d.BankSeconds),
			WorkCount: d.WorkCount,
		},
		TodayStats: domain.DailyStats{
			Date:          d.Today.Date,
			WorkIntervals: d.Today.WorkIntervals,
			BreaksTaken:   d.Today.BreaksTaken,
			LongBreaks:    d.Today.LongBreaks,
			TotalWorkTime: seconds(d.Today.WorkSeconds),
			TotalBreak:    seconds(d.Today.BreakSeconds),
		},
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

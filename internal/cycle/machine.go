// Package cycle implements the Third Time state machine. It sequences work
// intervals, short breaks and manually requested long breaks, asks the
// planner for break lengths and books break discrepancies into the bank.
//
// Every command and every clock callback runs to completion under one lock.
// Events produced by a transition are delivered to subscribers after the
// lock is released, so subscribers may issue commands of their own.
package cycle

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/planner"
	"github.com/xvierd/thirdtime/internal/ports"
)

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// StartRequest describes a work interval started by the user.
type StartRequest struct {
	Label string
	// Deadline overrides now+WorkLength when set.
	Deadline *time.Time
	// WorkLength overrides the configured work length when positive.
	WorkLength time.Duration
	GitBranch  string
	GitCommit  string
}

// Machine is the cycle state machine. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	clock   ports.Clock
	cfg     domain.CycleConfig
	bank    *domain.Bank
	planner *planner.Planner
	logger  *slog.Logger

	state   domain.CycleState
	current *domain.IntervalRecord
	// pendingBreak is the planned length of the break in progress. It is
	// consumed when the next work interval begins.
	pendingBreak *time.Duration
	workCount    int
	// longBreak is set by StartLongBreak and consumed by the next break.
	longBreak *time.Duration
	// manualDeadline marks a deadline set by EndIn or EndAt. Reaching it
	// ends the interval without an overtime step.
	manualDeadline bool

	timer      ports.Timer
	generation uint64

	subscribers map[int]func(domain.Event)
	nextSub     int
	outbox      []domain.Event
	dispatching bool
}

// New creates an idle machine with an empty bank. It fails when cfg cannot
// produce a break.
func New(cfg domain.CycleConfig, clock ports.Clock, opts ...Option) (*Machine, error) {
	if err := planner.Validate(cfg); err != nil {
		return nil, err
	}
	bank := domain.NewBank()
	m := &Machine{
		clock:       clock,
		cfg:         cfg,
		bank:        bank,
		planner:     planner.New(bank),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:       domain.StateIdle,
		subscribers: make(map[int]func(domain.Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Subscribe registers fn for every lifecycle event. The returned function
// removes the subscription.
func (m *Machine) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// SetConfig replaces the configuration. The live interval keeps its
// deadline; the next planned break uses the new values.
func (m *Machine) SetConfig(cfg domain.CycleConfig) error {
	if err := planner.Validate(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Snapshot{
		At:        m.clock.Now(),
		State:     m.state,
		Interval:  m.current.Clone(),
		Bank:      m.bank.Duration(),
		WorkCount: m.workCount,
	}
}

// Start begins a work interval from idle.
func (m *Machine) Start(req StartRequest) error {
	return m.run(func(now time.Time) error {
		if m.state != domain.StateIdle {
			return domain.ErrIntervalAlreadyActive
		}
		length := m.cfg.WorkLength
		if req.WorkLength > 0 {
			length = req.WorkLength
		}
		deadline := now.Add(length)
		if req.Deadline != nil {
			deadline = *req.Deadline
		}
		m.startWorkLocked(now, deadline, req)
		if req.Deadline != nil {
			return m.setDeadlineLocked(now, deadline)
		}
		return nil
	})
}

// EndIn ends the live interval d from now. With no live interval a work
// interval is started first. A zero d ends it immediately.
func (m *Machine) EndIn(d time.Duration) error {
	if d < 0 {
		return domain.InvalidArgument("end_in", d)
	}
	return m.run(func(now time.Time) error {
		return m.endAtLocked(now, now.Add(d))
	})
}

// EndAt ends the live interval at t, or immediately when t is not in the
// future. With no live interval a work interval is started first.
func (m *Machine) EndAt(t time.Time) error {
	return m.run(func(now time.Time) error {
		return m.endAtLocked(now, t)
	})
}

// EndNow ends the live interval immediately, including one in overtime.
func (m *Machine) EndNow() error {
	return m.EndIn(0)
}

// StartLongBreak empties the bank and replaces whatever is running with a
// long break of length d. A zero d uses the configured long break length.
func (m *Machine) StartLongBreak(d time.Duration) error {
	if d < 0 {
		return domain.InvalidArgument("long_break", d)
	}
	return m.run(func(now time.Time) error {
		if d == 0 {
			d = m.cfg.LongBreakLength
		}
		m.resetBankLocked(now, domain.BankReasonLongBreak)
		length := d
		m.longBreak = &length

		switch {
		case m.current == nil:
			m.startWorkLocked(now, now, StartRequest{})
			return m.endCurrentLocked(now, true)
		case m.current.Kind == domain.IntervalWork:
			return m.endCurrentLocked(now, true)
		default:
			// A break in progress is replaced; its outcome is irrelevant
			// because the long break clears the bank when it finishes.
			m.closeCurrentLocked(now, true)
			m.pendingBreak = nil
			return m.beginBreakLocked(now, 0)
		}
	})
}

// Kill aborts the cycle and returns to idle with an empty bank.
func (m *Machine) Kill() {
	_ = m.run(func(now time.Time) error {
		m.stopTimerLocked()
		if m.current != nil && !m.current.IsEnded() {
			m.closeCurrentLocked(now, true)
		}
		m.resetBankLocked(now, domain.BankReasonKilled)
		m.current = nil
		m.pendingBreak = nil
		m.longBreak = nil
		m.manualDeadline = false
		m.workCount = 0
		m.state = domain.StateIdle
		m.emitLocked(domain.Event{Type: domain.EventKilled, At: now})
		return nil
	})
}

// Close tears the machine down.
func (m *Machine) Close() {
	m.Kill()
}

// run executes fn under the lock and then delivers queued events.
func (m *Machine) run(fn func(now time.Time) error) error {
	m.mu.Lock()
	err := fn(m.clock.Now())
	m.mu.Unlock()
	m.flush()
	return err
}

// onDeadline is the clock callback. Callbacks of replaced timers are
// ignored through the generation counter.
func (m *Machine) onDeadline(generation uint64) {
	_ = m.run(func(now time.Time) error {
		if generation != m.generation || m.current == nil {
			return nil
		}
		m.timer = nil
		if m.manualDeadline || m.state == domain.StateOvertime || !m.cfg.ConfirmTransitions {
			if err := m.endCurrentLocked(now, m.manualDeadline); err != nil {
				m.logger.Error("failed to end interval at deadline",
					slog.String("kind", string(m.current.Kind)),
					slog.String("error", err.Error()))
			}
			return nil
		}
		m.state = domain.StateOvertime
		m.logger.Debug("interval in overtime", slog.String("kind", string(m.current.Kind)))
		m.emitLocked(domain.Event{Type: domain.EventOvertimeStarted, Interval: m.current.Clone(), At: now})
		return nil
	})
}

func (m *Machine) endAtLocked(now, deadline time.Time) error {
	if m.current == nil {
		m.startWorkLocked(now, deadline, StartRequest{})
	}
	return m.setDeadlineLocked(now, deadline)
}

// setDeadlineLocked installs a manual deadline, ending the interval right
// away when the deadline is not in the future.
func (m *Machine) setDeadlineLocked(now, deadline time.Time) error {
	m.current.SetDeadline(deadline)
	m.manualDeadline = true
	if !deadline.After(now) {
		return m.endCurrentLocked(now, true)
	}
	// A fresh deadline leaves overtime.
	m.state = domain.StateForKind(m.current.Kind)
	m.scheduleLocked(now, deadline)
	return nil
}

// endCurrentLocked closes the live interval and starts the next one.
func (m *Machine) endCurrentLocked(now time.Time, forced bool) error {
	kind := m.current.Kind
	if kind == domain.IntervalWork && m.longBreak == nil {
		if err := planner.Validate(m.cfg); err != nil {
			return err
		}
	}
	actual := m.current.Elapsed(now)
	m.closeCurrentLocked(now, forced)

	if kind == domain.IntervalWork {
		return m.beginBreakLocked(now, actual)
	}
	m.finishBreakLocked(now, kind, actual)
	m.startWorkLocked(now, now.Add(m.cfg.WorkLength), StartRequest{})
	return nil
}

func (m *Machine) closeCurrentLocked(now time.Time, forced bool) {
	m.stopTimerLocked()
	m.current.End(now, forced)
	m.emitLocked(domain.Event{Type: domain.EventIntervalEnded, Interval: m.current.Clone(), At: now})
}

func (m *Machine) startWorkLocked(now, deadline time.Time, req StartRequest) {
	record := domain.NewIntervalRecord(domain.IntervalWork, now, &deadline)
	record.Label = req.Label
	record.SetGitContext(req.GitBranch, req.GitCommit)
	m.current = record
	m.state = domain.StateWork
	m.manualDeadline = false
	if deadline.After(now) {
		m.scheduleLocked(now, deadline)
	}
	m.logger.Debug("work interval started", slog.Time("deadline", deadline))
	m.emitLocked(domain.Event{Type: domain.EventIntervalStarted, Interval: record.Clone(), At: now})
}

// beginBreakLocked plans and starts the break that follows actualWork of
// work, or the requested long break.
func (m *Machine) beginBreakLocked(now time.Time, actualWork time.Duration) error {
	kind := domain.IntervalShortBreak
	var length time.Duration
	if m.longBreak != nil {
		kind = domain.IntervalLongBreak
		length = *m.longBreak
		m.longBreak = nil
	} else {
		firstCycle := m.workCount == 0
		before := m.bank.Duration()
		planned, err := m.planner.PlanBreak(actualWork, m.cfg, firstCycle)
		if err != nil {
			return err
		}
		length = planned
		if before != 0 {
			reason := domain.BankReasonAbsorbed
			if firstCycle {
				reason = domain.BankReasonFirstCycle
			}
			m.emitBankLocked(now, reason, -before)
		}
		m.workCount++
	}
	m.emitLocked(domain.Event{Type: domain.EventBreakLengthComputed, BreakLength: length, At: now})

	deadline := now.Add(length)
	record := domain.NewIntervalRecord(kind, now, &deadline)
	record.ExpectedBreak = &length
	m.current = record
	m.pendingBreak = &length
	m.state = domain.StateForKind(kind)
	m.manualDeadline = false
	if deadline.After(now) {
		m.scheduleLocked(now, deadline)
	}
	m.logger.Debug("break started", slog.String("kind", string(kind)), slog.Duration("length", length))
	m.emitLocked(domain.Event{Type: domain.EventIntervalStarted, Interval: record.Clone(), BreakLength: length, At: now})

	if !deadline.After(now) {
		// A zero-length break ends on the spot.
		return m.endCurrentLocked(now, false)
	}
	return nil
}

// finishBreakLocked books the outcome of a break that just ended.
func (m *Machine) finishBreakLocked(now time.Time, kind domain.IntervalKind, actual time.Duration) {
	delta, applied := m.planner.RecordBreakOutcome(m.pendingBreak, actual)
	m.pendingBreak = nil
	if applied {
		m.emitBankLocked(now, domain.BankReasonBreakOutcome, delta)
	}
	if kind != domain.IntervalLongBreak {
		return
	}
	m.resetBankLocked(now, domain.BankReasonLongBreak)
	m.workCount = 0
	m.emitLocked(domain.Event{Type: domain.EventLongBreakFinished, At: now})
}

func (m *Machine) resetBankLocked(now time.Time, reason domain.BankReason) {
	before := m.bank.Duration()
	m.bank.Reset()
	if before != 0 {
		m.emitBankLocked(now, reason, -before)
	}
}

func (m *Machine) emitBankLocked(now time.Time, reason domain.BankReason, delta time.Duration) {
	m.emitLocked(domain.Event{
		Type:        domain.EventBankUpdated,
		BankReason:  reason,
		BankDelta:   delta,
		BankBalance: m.bank.Duration(),
		At:          now,
	})
}

func (m *Machine) scheduleLocked(now, deadline time.Time) {
	m.stopTimerLocked()
	m.generation++
	generation := m.generation
	m.timer = m.clock.AfterFunc(deadline.Sub(now), func() {
		m.onDeadline(generation)
	})
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
}

func (m *Machine) emitLocked(event domain.Event) {
	if event.State == "" {
		event.State = m.state
	}
	m.outbox = append(m.outbox, event)
}

// flush delivers queued events in order. Only one goroutine delivers at a
// time; events queued meanwhile are picked up by the active deliverer.
func (m *Machine) flush() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true
	for len(m.outbox) > 0 {
		events := m.outbox
		m.outbox = nil
		subscribers := make([]func(domain.Event), 0, len(m.subscribers))
		for id := 0; id < m.nextSub; id++ {
			if fn, ok := m.subscribers[id]; ok {
				subscribers = append(subscribers, fn)
			}
		}
		m.mu.Unlock()
		for _, event := range events {
			for _, fn := range subscribers {
				fn(event)
			}
		}
		m.mu.Lock()
	}
	m.dispatching = false
	m.mu.Unlock()
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/cycle"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

// persistTimeout bounds a single history write triggered by an event.
const persistTimeout = 5 * time.Second

// PresetResolver maps a preset query to a work length.
type PresetResolver func(query string) (time.Duration, bool)

// CycleService hosts a cycle machine: it turns user commands into machine
// commands and records ended intervals and bank changes in storage.
type CycleService struct {
	machine     *cycle.Machine
	storage     ports.Storage
	gitDetector ports.GitDetector
	presets     PresetResolver
	logger      *slog.Logger
	unsubscribe func()
}

// Ensure CycleService implements ports.CycleController.
var _ ports.CycleController = (*CycleService)(nil)

// NewCycleService creates a cycle service and subscribes it to machine
// events. storage and gitDetector may be nil.
func NewCycleService(machine *cycle.Machine, storage ports.Storage, gitDetector ports.GitDetector, logger *slog.Logger) *CycleService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &CycleService{
		machine:     machine,
		storage:     storage,
		gitDetector: gitDetector,
		logger:      logger,
	}
	s.unsubscribe = machine.Subscribe(s.persist)
	return s
}

// SetPresetResolver sets how StartWork resolves preset names.
func (s *CycleService) SetPresetResolver(resolver PresetResolver) {
	s.presets = resolver
}

// Machine returns the hosted machine.
func (s *CycleService) Machine() *cycle.Machine {
	return s.machine
}

// StartWork begins a work interval from idle.
func (s *CycleService) StartWork(ctx context.Context, req ports.StartWorkRequest) (*domain.CurrentState, error) {
	start := cycle.StartRequest{
		Label:    req.Label,
		Deadline: req.Deadline,
	}

	if req.Preset != "" {
		if s.presets == nil {
			return nil, domain.InvalidArgument("preset", req.Preset)
		}
		length, ok := s.presets(req.Preset)
		if !ok {
			return nil, domain.InvalidArgument("preset", req.Preset)
		}
		start.WorkLength = length
	}

	if s.gitDetector != nil && req.WorkingDir != "" {
		info, err := s.gitDetector.Detect(ctx, req.WorkingDir)
		if err != nil {
			s.logger.Debug("no git context", slog.String("dir", req.WorkingDir), slog.String("error", err.Error()))
		} else if info != nil {
			start.GitBranch = info.Branch
			start.GitCommit = info.ShortCommit()
		}
	}

	if err := s.machine.Start(start); err != nil {
		return nil, err
	}
	return s.State(ctx)
}

// EndIn ends the live interval in minutes, starting one when idle.
func (s *CycleService) EndIn(ctx context.Context, minutes float64) (*domain.CurrentState, error) {
	d, err := config.MinutesToDuration(minutes)
	if err != nil {
		return nil, err
	}
	if err := s.machine.EndIn(d); err != nil {
		return nil, err
	}
	return s.State(ctx)
}

// EndAt ends the live interval at t, starting one when idle.
func (s *CycleService) EndAt(ctx context.Context, t time.Time) (*domain.CurrentState, error) {
	if err := s.machine.EndAt(t); err != nil {
		return nil, err
	}
	return s.State(ctx)
}

// EndNow ends the live interval immediately.
func (s *CycleService) EndNow(ctx context.Context) (*domain.CurrentState, error) {
	if err := s.machine.EndNow(); err != nil {
		return nil, err
	}
	return s.State(ctx)
}

// StartLongBreak starts a long break. Zero minutes uses the configured
// long break length.
func (s *CycleService) StartLongBreak(ctx context.Context, minutes float64) (*domain.CurrentState, error) {
	d, err := config.MinutesToDuration(minutes)
	if err != nil {
		return nil, err
	}
	if err := s.machine.StartLongBreak(d); err != nil {
		return nil, err
	}
	return s.State(ctx)
}

// Kill aborts the cycle.
func (s *CycleService) Kill(ctx context.Context) (*domain.CurrentState, error) {
	s.machine.Kill()
	return s.State(ctx)
}

// State returns the machine snapshot with today's statistics.
func (s *CycleService) State(ctx context.Context) (*domain.CurrentState, error) {
	snapshot := s.machine.Snapshot()
	state := &domain.CurrentState{
		Cycle:      snapshot,
		TodayStats: domain.DailyStats{Date: snapshot.At},
	}
	if s.storage == nil {
		return state, nil
	}
	stats, err := s.storage.Intervals().GetDailyStats(ctx, snapshot.At)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	state.TodayStats = *stats
	return state, nil
}

// Close kills the cycle and detaches from the machine.
func (s *CycleService) Close() {
	s.machine.Close()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// persist records ended intervals and bank changes.
func (s *CycleService) persist(event domain.Event) {
	if s.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	switch event.Type {
	case domain.EventIntervalEnded:
		err = s.storage.Intervals().Save(ctx, event.Interval)
	case domain.EventBankUpdated:
		err = s.storage.Bank().Append(ctx, &domain.BankEntry{
			ID:      domain.NewID(),
			At:      event.At,
			Reason:  event.BankReason,
			Delta:   event.BankDelta,
			Balance: event.BankBalance,
		})
	default:
		return
	}
	if err != nil {
		s.logger.Error("failed to persist event",
			slog.String("event", string(event.Type)),
			slog.String("error", err.Error()))
	}
}

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xvierd/thirdtime/internal/adapters/clock"
	"github.com/xvierd/thirdtime/internal/adapters/storage"
	"github.com/xvierd/thirdtime/internal/cycle"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
	"github.com/xvierd/thirdtime/internal/services"
)

var epoch = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// setupTestStorage creates a temporary database for integration tests
func setupTestStorage(t *testing.T) (ports.Storage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return store, dbPath
}

func newCycle(t *testing.T, store ports.Storage) (*services.CycleService, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	machine, err := cycle.New(domain.DefaultCycleConfig(), clk)
	if err != nil {
		t.Fatalf("failed to create cycle: %v", err)
	}
	return services.NewCycleService(machine, store, nil, nil), clk
}

// TestFullCycleLifecycle runs a cycle through automatic and manual
// transitions, then reopens the database and checks what was recorded.
func TestFullCycleLifecycle(t *testing.T) {
	store, dbPath := setupTestStorage(t)
	ctx := context.Background()
	svc, clk := newCycle(t, store)

	state, err := svc.StartWork(ctx, ports.StartWorkRequest{Label: "integration"})
	if err != nil {
		t.Fatalf("failed to start work: %v", err)
	}
	if state.Cycle.State != domain.StateWork {
		t.Fatalf("expected work, got %v", state.Cycle.State)
	}

	// The work interval ends at its deadline and a third of it is planned as break.
	clk.Advance(30 * time.Minute)
	state, _ = svc.State(ctx)
	if state.Cycle.State != domain.StateShortBreak {
		t.Fatalf("expected short break, got %v", state.Cycle.State)
	}
	if got := state.Cycle.Interval.PlannedDuration(); got != 500*time.Second {
		t.Errorf("expected 500s break, got %v", got)
	}

	// Ending the break after 300s banks the unused 200s.
	state, err = svc.EndNow(ctx)
	if err != nil {
		t.Fatalf("failed to end break: %v", err)
	}
	if state.Cycle.State != domain.StateWork {
		t.Fatalf("expected work after break, got %v", state.Cycle.State)
	}
	if state.Cycle.Bank != 200*time.Second {
		t.Errorf("expected bank 200s, got %v", state.Cycle.Bank)
	}

	// A manual deadline ends work without overtime; the bank joins the break.
	if _, err := svc.EndIn(ctx, 10); err != nil {
		t.Fatalf("failed to set end-in: %v", err)
	}
	clk.Advance(10 * time.Minute)
	state, _ = svc.State(ctx)
	if got := state.Cycle.Interval.PlannedDuration(); got != 400*time.Second {
		t.Errorf("expected 400s break, got %v", got)
	}
	if state.Cycle.Bank != 0 {
		t.Errorf("expected empty bank while on break, got %v", state.Cycle.Bank)
	}

	clk.Advance(400 * time.Second)
	state, _ = svc.State(ctx)
	if state.Cycle.State != domain.StateWork || state.Cycle.WorkCount != 2 {
		t.Fatalf("expected third work interval, got %v (work count %d)", state.Cycle.State, state.Cycle.WorkCount)
	}

	state, err = svc.Kill(ctx)
	if err != nil {
		t.Fatalf("failed to kill: %v", err)
	}
	if state.Cycle.State != domain.StateIdle {
		t.Fatalf("expected idle after kill, got %v", state.Cycle.State)
	}
	if state.TodayStats.WorkIntervals != 3 || state.TodayStats.BreaksTaken != 2 {
		t.Errorf("unexpected today stats: %+v", state.TodayStats)
	}

	svc.Close()
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close storage: %v", err)
	}

	reopened, err := storage.New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer reopened.Close()
	history := services.NewHistoryService(reopened)

	intervals, err := history.RecentIntervals(ctx, epoch, 0)
	if err != nil {
		t.Fatalf("failed to load intervals: %v", err)
	}
	if len(intervals) != 5 {
		t.Fatalf("expected 5 intervals, got %d", len(intervals))
	}
	if intervals[0].Kind != domain.IntervalWork || !intervals[0].Forced {
		t.Errorf("expected the killed work interval first, got %+v", intervals[0])
	}
	if last := intervals[len(intervals)-1]; last.Label != "integration" || last.Forced {
		t.Errorf("expected the first interval to keep its label and end on time, got %+v", last)
	}

	entries, err := history.BankHistory(ctx, epoch)
	if err != nil {
		t.Fatalf("failed to load bank history: %v", err)
	}
	wantReasons := []domain.BankReason{domain.BankReasonBreakOutcome, domain.BankReasonAbsorbed, domain.BankReasonBreakOutcome}
	if len(entries) != len(wantReasons) {
		t.Fatalf("expected %d bank entries, got %d", len(wantReasons), len(entries))
	}
	for i, reason := range wantReasons {
		if entries[i].Reason != reason {
			t.Errorf("entry %d: expected reason %s, got %s", i, reason, entries[i].Reason)
		}
	}
	if entries[0].Balance != 200*time.Second || entries[1].Delta != -200*time.Second {
		t.Errorf("unexpected bank entries: %+v, %+v", entries[0], entries[1])
	}

	days, err := history.DailyStats(ctx, epoch, 1)
	if err != nil {
		t.Fatalf("failed to load daily stats: %v", err)
	}
	if days[0].TotalWorkTime != 35*time.Minute {
		t.Errorf("expected 35m of work, got %v", days[0].TotalWorkTime)
	}
	if days[0].TotalBreak != 700*time.Second {
		t.Errorf("expected 700s of break, got %v", days[0].TotalBreak)
	}
}

// TestLongBreakResetsBank checks that a long break clears the bank and
// starts a fresh cycle.
func TestLongBreakResetsBank(t *testing.T) {
	store, _ := setupTestStorage(t)
	defer store.Close()
	ctx := context.Background()
	svc, clk := newCycle(t, store)
	defer svc.Close()

	if _, err := svc.StartWork(ctx, ports.StartWorkRequest{}); err != nil {
		t.Fatalf("failed to start work: %v", err)
	}
	clk.Advance(25 * time.Minute)
	state, _ := svc.EndNow(ctx)
	if state.Cycle.Bank != 500*time.Second {
		t.Fatalf("expected bank 500s after skipping the break, got %v", state.Cycle.Bank)
	}

	state, err := svc.StartLongBreak(ctx, 0)
	if err != nil {
		t.Fatalf("failed to start long break: %v", err)
	}
	if state.Cycle.State != domain.StateLongBreak || state.Cycle.Bank != 0 {
		t.Fatalf("expected long break with empty bank, got %v / %v", state.Cycle.State, state.Cycle.Bank)
	}
	if got := state.Cycle.Interval.PlannedDuration(); got != 20*time.Minute {
		t.Errorf("expected configured 20m long break, got %v", got)
	}

	clk.Advance(20 * time.Minute)
	state, _ = svc.State(ctx)
	if state.Cycle.State != domain.StateWork || state.Cycle.WorkCount != 0 {
		t.Errorf("expected a fresh cycle, got %v (work count %d)", state.Cycle.State, state.Cycle.WorkCount)
	}

	entries, err := store.Bank().FindRecent(ctx, epoch)
	if err != nil {
		t.Fatalf("failed to load bank history: %v", err)
	}
	wantReasons := []domain.BankReason{domain.BankReasonBreakOutcome, domain.BankReasonLongBreak, domain.BankReasonBreakOutcome}
	if len(entries) != len(wantReasons) {
		t.Fatalf("expected %d bank entries, got %d", len(wantReasons), len(entries))
	}
	for i, reason := range wantReasons {
		if entries[i].Reason != reason {
			t.Errorf("entry %d: expected reason %s, got %s", i, reason, entries[i].Reason)
		}
	}
	if entries[1].Delta != -500*time.Second || entries[2].Balance != 0 {
		t.Errorf("unexpected bank entries: %+v, %+v", entries[1], entries[2])
	}
}

// TestConcurrentCommands issues commands from several goroutines; the
// machine must stay consistent and only one start may win.
func TestConcurrentCommands(t *testing.T) {
	store, _ := setupTestStorage(t)
	defer store.Close()
	ctx := context.Background()
	svc, _ := newCycle(t, store)
	defer svc.Close()

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := svc.StartWork(ctx, ports.StartWorkRequest{})
			errs <- err
		}()
	}

	started := 0
	for i := 0; i < workers; i++ {
		if err := <-errs; err == nil {
			started++
		}
	}
	if started != 1 {
		t.Errorf("expected exactly one start to succeed, got %d", started)
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/thirdtime/internal/adapters/clock"
	"github.com/xvierd/thirdtime/internal/adapters/storage"
	"github.com/xvierd/thirdtime/internal/cycle"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

var epoch = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func setupTestStorage(t *testing.T) (ports.Storage, func()) {
	store, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	return store, func() { _ = store.Close() }
}

type fakeGit struct {
	info *ports.GitInfo
	err  error
	dirs []string
}

func (f *fakeGit) Detect(ctx context.Context, workingDir string) (*ports.GitInfo, error) {
	f.dirs = append(f.dirs, workingDir)
	return f.info, f.err
}

func newTestService(t *testing.T, store ports.Storage, git ports.GitDetector) (*CycleService, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	machine, err := cycle.New(domain.DefaultCycleConfig(), clk)
	require.NoError(t, err)
	svc := NewCycleService(machine, store, git, nil)
	t.Cleanup(svc.Close)
	return svc, clk
}

func TestCycleService_StartWork(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	git := &fakeGit{info: &ports.GitInfo{Branch: "feature/bank", Commit: "0123456789abcdef"}}
	svc, _ := newTestService(t, store, git)
	svc.SetPresetResolver(func(query string) (time.Duration, bool) {
		if query == "deep" {
			return 50 * time.Minute, true
		}
		return 0, false
	})
	ctx := context.Background()

	t.Run("unknown preset", func(t *testing.T) {
		_, err := svc.StartWork(ctx, ports.StartWorkRequest{Preset: "nope"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("preset with git context", func(t *testing.T) {
		state, err := svc.StartWork(ctx, ports.StartWorkRequest{Label: "bank", Preset: "deep", WorkingDir: "/src"})
		require.NoError(t, err)
		require.NotNil(t, state.Cycle.Interval)
		assert.Equal(t, domain.StateWork, state.Cycle.State)
		assert.Equal(t, 50*time.Minute, state.Cycle.Remaining())
		assert.Equal(t, "bank", state.Cycle.Interval.Label)
		assert.Equal(t, "feature/bank", state.Cycle.Interval.GitBranch)
		assert.Equal(t, "0123456", state.Cycle.Interval.GitCommit)
		assert.Equal(t, []string{"/src"}, git.dirs)
	})

	t.Run("start when already active", func(t *testing.T) {
		_, err := svc.StartWork(ctx, ports.StartWorkRequest{})
		assert.ErrorIs(t, err, domain.ErrIntervalAlreadyActive)
	})
}

func TestCycleService_GitFailureIsIgnored(t *testing.T) {
	svc, _ := newTestService(t, nil, &fakeGit{err: errors.New("not a repo")})

	state, err := svc.StartWork(context.Background(), ports.StartWorkRequest{WorkingDir: "/tmp"})
	require.NoError(t, err)
	assert.Empty(t, state.Cycle.Interval.GitBranch)
}

func TestCycleService_PersistsHistory(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	svc, clk := newTestService(t, store, nil)
	ctx := context.Background()

	_, err := svc.StartWork(ctx, ports.StartWorkRequest{Label: "draft"})
	require.NoError(t, err)
	clk.Advance(25 * time.Minute)
	clk.Advance(200 * time.Second)
	state, err := svc.EndNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, state.Cycle.Bank)

	intervals, err := store.Intervals().FindRecent(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, domain.IntervalShortBreak, intervals[0].Kind)
	assert.True(t, intervals[0].Forced)
	assert.Equal(t, domain.IntervalWork, intervals[1].Kind)
	assert.Equal(t, "draft", intervals[1].Label)

	latest, err := store.Bank().Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.BankReasonBreakOutcome, latest.Reason)
	assert.Equal(t, 300*time.Second, latest.Balance)

	assert.Equal(t, 1, state.TodayStats.WorkIntervals)
	assert.Equal(t, 1, state.TodayStats.BreaksTaken)
	assert.Equal(t, 25*time.Minute, state.TodayStats.TotalWorkTime)

	_, err = svc.Kill(ctx)
	require.NoError(t, err)
	latest, err = store.Bank().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BankReasonKilled, latest.Reason)
	assert.Zero(t, latest.Balance)
}

func TestCycleService_EndIn(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.EndIn(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	state, err := svc.EndIn(ctx, 2.5)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWork, state.Cycle.State)
	assert.Equal(t, 150*time.Second, state.Cycle.Remaining())

	clk.Advance(150 * time.Second)
	state, err = svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateShortBreak, state.Cycle.State)
}

func TestCycleService_EndAt(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	state, err := svc.EndAt(context.Background(), epoch.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.StateShortBreak, state.Cycle.State)
	assert.Equal(t, time.Minute, *state.Cycle.Interval.ExpectedBreak)
}

func TestCycleService_StartLongBreak(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	state, err := svc.StartLongBreak(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLongBreak, state.Cycle.State)
	assert.Equal(t, 20*time.Minute, *state.Cycle.Interval.ExpectedBreak)

	_, err = svc.Kill(ctx)
	require.NoError(t, err)

	state, err = svc.StartLongBreak(ctx, 45)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, *state.Cycle.Interval.ExpectedBreak)

	_, err = svc.StartLongBreak(ctx, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCycleService_CloseKillsCycle(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)
	_, err := svc.StartWork(context.Background(), ports.StartWorkRequest{})
	require.NoError(t, err)

	svc.Close()
	assert.Equal(t, domain.StateIdle, svc.Machine().Snapshot().State)
	assert.Zero(t, clk.Pending())
}

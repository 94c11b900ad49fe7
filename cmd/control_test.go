package cmd

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/thirdtime/internal/adapters/clock"
	"github.com/xvierd/thirdtime/internal/adapters/httpapi"
	"github.com/xvierd/thirdtime/internal/adapters/storage"
	"github.com/xvierd/thirdtime/internal/cycle"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/services"
)

// startTestHost serves a cycle on a fake clock and returns its address.
func startTestHost(t *testing.T) string {
	t.Helper()
	store, err := storage.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.NewFake(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	machine, err := cycle.New(domain.DefaultCycleConfig(), clk)
	require.NoError(t, err)
	svc := services.NewCycleService(machine, store, nil, nil)
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(httpapi.NewRouter(svc, services.NewHistoryService(store), httpapi.RouterOptions{Now: clk.Now}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestControlCommands(t *testing.T) {
	addr := startTestHost(t)
	cfg := testConfig(t)
	run := func(args ...string) (string, error) {
		resetFlags(t)
		stdout, _, err := executeCmd(rootCmd, append([]string{"--config", cfg, "--addr", addr}, args...)...)
		return stdout, err
	}

	out, err := run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "No interval running.")

	out, err = run("start", "--label", "write parser")
	require.NoError(t, err)
	assert.Contains(t, out, "Working: write parser")
	assert.Contains(t, out, "Remaining: 25:00")

	_, err = run("start")
	assert.ErrorIs(t, err, domain.ErrIntervalAlreadyActive)

	out, err = run("end-in", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining: 10:00")

	out, err = run("end-at", "2025-03-10T09:20:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining: 20:00")

	_, err = run("end-in", "-2")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	out, err = run("end-now")
	require.NoError(t, err)
	assert.Contains(t, out, "Short Break")
	assert.Contains(t, out, "Remaining: 01:00")

	out, err = run("long-break", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "Long Break")
	assert.Contains(t, out, "Remaining: 15:00")

	out, err = run("--json", "status")
	require.NoError(t, err)
	var dto httpapi.StateDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	assert.Equal(t, string(domain.StateLongBreak), dto.State)
	assert.InDelta(t, 900, dto.RemainingSeconds, 0.001)

	out, err = run("kill")
	require.NoError(t, err)
	assert.Contains(t, out, "No interval running.")
	assert.Contains(t, out, "Bank: +00:00")
}

func TestControlCommands_EndInDefault(t *testing.T) {
	addr := startTestHost(t)
	resetFlags(t)

	out, _, err := executeCmd(rootCmd, "--config", testConfig(t), "--addr", addr, "end-in")
	require.NoError(t, err)
	assert.Contains(t, out, "Working")
	assert.Contains(t, out, "Remaining: 05:00")
}

func TestControlCommands_NoTimer(t *testing.T) {
	resetFlags(t)

	_, _, err := executeCmd(rootCmd, "--config", testConfig(t), "--addr", "127.0.0.1:1", "status")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no timer running"), err.Error())
}

func TestControlCommands_BadArguments(t *testing.T) {
	resetFlags(t)
	cfg := testConfig(t)

	_, _, err := executeCmd(rootCmd, "--config", cfg, "--addr", "127.0.0.1:1", "end-in", "soon")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	resetFlags(t)
	_, _, err = executeCmd(rootCmd, "--config", cfg, "--addr", "127.0.0.1:1", "end-at", "25:99")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestControlCommands_NegativeMinutes(t *testing.T) {
	cfg := testConfig(t)

	for _, args := range [][]string{
		{"end-in", "-2"},
		{"end-in", "--", "-2"},
		{"long-break", "-1.5"},
		{"long-break", "--", "-1.5"},
	} {
		resetFlags(t)
		_, _, err := executeCmd(rootCmd, append([]string{"--config", cfg, "--addr", "127.0.0.1:1"}, args...)...)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "%v", args)
	}

	// Unknown flags still report as flags.
	resetFlags(t)
	_, _, err := executeCmd(rootCmd, "--config", cfg, "--addr", "127.0.0.1:1", "end-in", "-x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidArgument)
}

package ports

import (
	"context"
	"time"

	"github.com/xvierd/thirdtime/internal/domain"
)

// StartWorkRequest describes a work interval started by the user.
type StartWorkRequest struct {
	Label string
	// Preset names a configured work length. It is matched fuzzily.
	Preset string
	// Deadline, when set, overrides the work length.
	Deadline *time.Time
	// WorkingDir is scanned for git context. Empty skips detection.
	WorkingDir string
}

// CycleController is the command surface of a running cycle.
// This is a driving port (implemented by the services layer and by the
// HTTP client, consumed by the TUI, HTTP API and MCP server).
type CycleController interface {
	// StartWork begins a work interval from idle.
	StartWork(ctx context.Context, req StartWorkRequest) (*domain.CurrentState, error)

	// EndIn ends the live interval in the given number of minutes.
	EndIn(ctx context.Context, minutes float64) (*domain.CurrentState, error)

	// EndAt ends the live interval at t.
	EndAt(ctx context.Context, t time.Time) (*domain.CurrentState, error)

	// EndNow ends the live interval immediately.
	EndNow(ctx context.Context) (*domain.CurrentState, error)

	// StartLongBreak starts a long break of the given minutes. Zero or
	// less uses the configured length.
	StartLongBreak(ctx context.Context, minutes float64) (*domain.CurrentState, error)

	// Kill aborts the cycle.
	Kill(ctx context.Context) (*domain.CurrentState, error)

	// State returns the current state.
	State(ctx context.Context) (*domain.CurrentState, error)
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xvierd/thirdtime/internal/adapters/tui"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

var (
	timerPreset string
	timerLabel  string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive timer",
	Long: `Open the interactive timer. It hosts the cycle and, unless disabled in
the config, the control API the other commands talk to. When a timer is
already running at the control address, this attaches to it instead.`,
	RunE: runTimer,
}

func init() {
	runCmd.Flags().BoolVarP(&inlineMode, "inline", "i", false, "Compact inline timer (no fullscreen)")
	addTimerFlags(runCmd)
}

func addTimerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&timerPreset, "preset", "p", "", "Start right away with a named work length")
	cmd.Flags().StringVarP(&timerLabel, "label", "l", "", "Start right away with this label")
}

func runTimer(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler(cmd.Context())
	defer cancel()

	client := newClient()
	if state, err := client.State(ctx); err == nil {
		app.logger.Debug("attaching to running timer", "addr", controlAddr())
		state, err = startIfRequested(ctx, client, state)
		if err != nil {
			return err
		}
		prog := tui.NewProgram(client, state, tuiOptions())
		return prog.Run(ctx)
	}

	h, err := newHost()
	if err != nil {
		return err
	}
	defer h.Close()

	state, err := h.cycle.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current state: %w", err)
	}
	state, err = startIfRequested(ctx, h.cycle, state)
	if err != nil {
		return err
	}

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- h.serveAPI(ctx)
	}()

	prog := tui.NewProgram(h.cycle, state, tuiOptions())
	h.subscribe(prog.Notify)
	runErr := prog.Run(ctx)

	cancel()
	if err := <-apiErr; err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: control API: %v\n", err)
	}
	return runErr
}

// startIfRequested starts work when --preset or --label was given.
func startIfRequested(ctx context.Context, controller ports.CycleController, state *domain.CurrentState) (*domain.CurrentState, error) {
	if timerPreset == "" && timerLabel == "" {
		return state, nil
	}
	wd, _ := os.Getwd()
	started, err := controller.StartWork(ctx, ports.StartWorkRequest{
		Label:      timerLabel,
		Preset:     timerPreset,
		WorkingDir: wd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start work: %w", err)
	}
	return started, nil
}

func tuiOptions() tui.Options {
	return tui.Options{
		Presets:             app.config.PresetList(),
		DefaultEndInMinutes: app.config.Cycle.DefaultEndInMinutes,
		Inline:              inlineMode,
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/thirdtime/internal/adapters/httpapi"
	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

var (
	startLabel  string
	startPreset string
	startUntil  string
)

// controlFunc drives the running cycle through its controller.
type controlFunc func(ctx context.Context, controller ports.CycleController) (*domain.CurrentState, error)

// runControl sends one command to the running timer and prints the
// resulting state.
func runControl(cmd *cobra.Command, fn controlFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := fn(ctx, newClient())
	if errors.Is(err, httpapi.ErrUnavailable) {
		return fmt.Errorf("no timer running at %s; start one with \"thirdtime\" or \"thirdtime serve\"", controlAddr())
	}
	if err != nil {
		return err
	}
	return printState(cmd.OutOrStdout(), state)
}

// parseMinutes reads an optional minutes argument, falling back to def.
func parseMinutes(args []string, def float64) (float64, error) {
	if len(args) == 0 {
		return def, nil
	}
	minutes, err := strconv.ParseFloat(args[0], 64)
	if err != nil || minutes < 0 {
		return 0, domain.InvalidArgument("minutes", args[0])
	}
	return minutes, nil
}

// minutesFlagError reports a negative number that pflag took for a
// shorthand flag ("-2") as an invalid minutes argument.
func minutesFlagError(cmd *cobra.Command, err error) error {
	msg := err.Error()
	if i := strings.LastIndex(msg, " in -"); i >= 0 && strings.HasPrefix(msg, "unknown shorthand flag") {
		token := msg[i+len(" in "):]
		if _, perr := strconv.ParseFloat(token, 64); perr == nil {
			return domain.InvalidArgument("minutes", token)
		}
	}
	return err
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a work interval",
	Long: `Start a work interval on the running timer. Without --preset or --until
the configured work length is used; --until takes a clock time (HH:MM)
or an RFC3339 timestamp.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, _ := os.Getwd()
		req := ports.StartWorkRequest{
			Label:      startLabel,
			Preset:     startPreset,
			WorkingDir: wd,
		}
		if startUntil != "" {
			deadline, err := config.ParseEndAt(startUntil, time.Now())
			if err != nil {
				return err
			}
			req.Deadline = &deadline
		}
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.StartWork(ctx, req)
		})
	},
}

var endInCmd = &cobra.Command{
	Use:   "end-in [minutes]",
	Short: "End the current interval in N minutes",
	Long: `Move the deadline of the current interval to N minutes from now
(fractions allowed). Without an argument the configured default is used.
When idle, a work interval is started with that deadline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := parseMinutes(args, app.config.Cycle.DefaultEndInMinutes)
		if err != nil {
			return err
		}
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.EndIn(ctx, minutes)
		})
	},
}

var endAtCmd = &cobra.Command{
	Use:   "end-at <time>",
	Short: "End the current interval at a clock time",
	Long: `Move the deadline of the current interval to a clock time (HH:MM, the
next occurrence) or an RFC3339 timestamp. A time already passed ends the
interval now.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := config.ParseEndAt(args[0], time.Now())
		if err != nil {
			return err
		}
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.EndAt(ctx, at)
		})
	},
}

var endNowCmd = &cobra.Command{
	Use:   "end-now",
	Short: "End the current interval immediately",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.EndNow(ctx)
		})
	},
}

var longBreakCmd = &cobra.Command{
	Use:   "long-break [minutes]",
	Short: "Take a long break",
	Long: `End the current interval and start a long break. The long break resets
the bank. Without an argument the configured long break length is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := parseMinutes(args, 0)
		if err != nil {
			return err
		}
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.StartLongBreak(ctx, minutes)
		})
	},
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the cycle and clear the bank",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.Kill(ctx)
		})
	},
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current status",
	Long:  `Display the running interval, the break bank and today's statistics.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, func(ctx context.Context, c ports.CycleController) (*domain.CurrentState, error) {
			return c.State(ctx)
		})
	},
}

func init() {
	startCmd.Flags().StringVarP(&startLabel, "label", "l", "", "Label for the work interval")
	startCmd.Flags().StringVarP(&startPreset, "preset", "p", "", "Named work length from the config")
	startCmd.Flags().StringVar(&startUntil, "until", "", "Deadline as HH:MM or RFC3339")

	endInCmd.SetFlagErrorFunc(minutesFlagError)
	longBreakCmd.SetFlagErrorFunc(minutesFlagError)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xvierd/thirdtime/internal/adapters/httpapi"
	"github.com/xvierd/thirdtime/internal/domain"
)

// formatMinutes formats a duration as a human-friendly string like "25m" or "1h30m".
func formatMinutes(d time.Duration) string {
	if d >= time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

// formatClock formats a duration as MM:SS, or H:MM:SS past an hour.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// formatSigned formats a bank amount with an explicit sign.
func formatSigned(d time.Duration) string {
	if d < 0 {
		return "-" + formatClock(d)
	}
	return "+" + formatClock(d)
}

func writeJSONOutput(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printState writes the state as text, or as the control API's JSON
// shape when --json is set.
func printState(w io.Writer, state *domain.CurrentState) error {
	if jsonOutput {
		return writeJSONOutput(w, httpapi.NewStateDTO(state))
	}

	snap := state.Cycle
	if !snap.IsActive() {
		fmt.Fprintln(w, "No interval running.")
	} else {
		title := snap.State.Label()
		if snap.Interval.Label != "" {
			title = fmt.Sprintf("%s: %s", title, snap.Interval.Label)
		}
		fmt.Fprintln(w, title)
		switch {
		case snap.State == domain.StateOvertime:
			fmt.Fprintf(w, "   Overdue: %s\n", formatClock(snap.Overdue()))
		case snap.Interval.ExpectedEndTime != nil:
			fmt.Fprintf(w, "   Remaining: %s (until %s)\n",
				formatClock(snap.Remaining()), snap.Interval.ExpectedEndTime.Local().Format("15:04"))
		default:
			fmt.Fprintf(w, "   Elapsed: %s\n", formatClock(snap.Elapsed()))
		}
		if snap.Interval.GitBranch != "" {
			fmt.Fprintf(w, "   Git: %s\n", snap.Interval.GitBranch)
		}
	}
	fmt.Fprintf(w, "   Bank: %s\n", formatSigned(snap.Bank))
	fmt.Fprintf(w, "   Work intervals this cycle: %d\n", snap.WorkCount)

	stats := state.TodayStats
	fmt.Fprintf(w, "\nToday: %d work, %d breaks, %s worked\n",
		stats.WorkIntervals, stats.BreaksTaken, formatMinutes(stats.TotalWorkTime))
	return nil
}

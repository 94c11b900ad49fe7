package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/xvierd/thirdtime/internal/domain"
)

const (
	colorTitle     = lipgloss.Color("#7D56F4")
	colorWork      = lipgloss.Color("#FF6B6B")
	colorBreak     = lipgloss.Color("#4ECDC4")
	colorLongBreak = lipgloss.Color("#45B7D1")
	colorOvertime  = lipgloss.Color("#FFA94D")
	colorIdle      = lipgloss.Color("#888888")
	colorHelp      = lipgloss.Color("#626262")
	colorError     = lipgloss.Color("#E03131")
)

func stateColor(s domain.CycleState) lipgloss.Color {
	switch s {
	case domain.StateWork:
		return colorWork
	case domain.StateShortBreak:
		return colorBreak
	case domain.StateLongBreak:
		return colorLongBreak
	case domain.StateOvertime:
		return colorOvertime
	default:
		return colorIdle
	}
}

// terminalWidth returns the width of stdout, defaulting to 80.
func terminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w < 40 {
		return 80
	}
	return w
}

// formatClock renders d as mm:ss, or h:mm:ss from one hour up.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// formatBank renders a signed bank balance.
func formatBank(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d > 0:
		return "+" + formatClock(d)
	case d < 0:
		return "-" + formatClock(-d)
	default:
		return "00:00"
	}
}

// formatDuration formats a duration for the daily totals line.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

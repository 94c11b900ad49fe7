// Package notification turns cycle events into desktop notifications.
package notification

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/domain"
)

// Sender delivers a notification. The default sender uses beeep.
type Sender interface {
	Notify(title, message string) error
	Beep() error
}

type beeepSender struct{}

func (beeepSender) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

func (beeepSender) Beep() error {
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

// Notifier handles desktop notifications.
type Notifier struct {
	cfg    config.NotificationConfig
	sender Sender
	logger *slog.Logger
}

// New creates a new notifier with the given configuration.
func New(cfg config.NotificationConfig, logger *slog.Logger) *Notifier {
	return NewWithSender(cfg, beeepSender{}, logger)
}

// NewWithSender creates a notifier that delivers through sender.
func NewWithSender(cfg config.NotificationConfig, sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{cfg: cfg, sender: sender, logger: logger}
}

// IsEnabled returns true if notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	return n.cfg.Enabled
}

// HandleEvent is a cycle subscriber.
func (n *Notifier) HandleEvent(event domain.Event) {
	if !n.cfg.Enabled {
		return
	}
	title, message, ok := Message(event)
	if !ok {
		return
	}
	if err := n.sender.Notify(title, message); err != nil {
		n.logger.Warn("failed to send notification", slog.String("error", err.Error()))
	}
	if n.cfg.Sound {
		if err := n.sender.Beep(); err != nil {
			n.logger.Debug("failed to beep", slog.String("error", err.Error()))
		}
	}
}

// Message returns the notification text for event, or false when the
// event is not worth a notification.
func Message(event domain.Event) (title, message string, ok bool) {
	switch event.Type {
	case domain.EventIntervalStarted:
		if event.Interval == nil {
			return "", "", false
		}
		switch event.Interval.Kind {
		case domain.IntervalShortBreak:
			return "Break", fmt.Sprintf("Take %s off.", formatDuration(event.BreakLength)), true
		case domain.IntervalLongBreak:
			return "Long break", fmt.Sprintf("Take %s off. The bank is cleared.", formatDuration(event.BreakLength)), true
		default:
			return "Back to work", "A new work interval has started.", true
		}
	case domain.EventOvertimeStarted:
		if event.Interval != nil && event.Interval.Kind.IsBreak() {
			return "Time's up", "Your break is over. End it when you are back.", true
		}
		return "Time's up", "Work interval reached its deadline. End it to start your break.", true
	case domain.EventKilled:
		return "Cycle stopped", "The bank has been cleared.", true
	}
	return "", "", false
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

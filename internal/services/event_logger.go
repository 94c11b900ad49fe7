package services

import (
	"context"
	"log/slog"

	"github.com/xvierd/thirdtime/internal/domain"
)

// EventSource is anything that publishes cycle events.
type EventSource interface {
	Subscribe(fn func(domain.Event)) (unsubscribe func())
}

// EventLogger writes every cycle event to a structured logger.
type EventLogger struct {
	logger      *slog.Logger
	unsubscribe func()
}

// NewEventLogger subscribes a logger to source.
func NewEventLogger(source EventSource, logger *slog.Logger) *EventLogger {
	l := &EventLogger{logger: logger}
	l.unsubscribe = source.Subscribe(l.log)
	return l
}

// Close stops logging.
func (l *EventLogger) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
}

func (l *EventLogger) log(event domain.Event) {
	attrs := []any{
		slog.String("event", string(event.Type)),
		slog.String("state", string(event.State)),
	}
	if event.Interval != nil {
		attrs = append(attrs,
			slog.String("kind", string(event.Interval.Kind)),
			slog.String("interval_id", event.Interval.ID))
		if event.Interval.Label != "" {
			attrs = append(attrs, slog.String("label", event.Interval.Label))
		}
		if event.Interval.EndedAt != nil {
			attrs = append(attrs,
				slog.Duration("elapsed", event.Interval.Elapsed(*event.Interval.EndedAt)),
				slog.Bool("forced", event.Interval.Forced))
		}
	}
	switch event.Type {
	case domain.EventBreakLengthComputed:
		attrs = append(attrs, slog.Duration("break", event.BreakLength))
	case domain.EventBankUpdated:
		attrs = append(attrs,
			slog.String("reason", string(event.BankReason)),
			slog.Duration("delta", event.BankDelta),
			slog.Duration("balance", event.BankBalance))
	}

	level := slog.LevelInfo
	if event.Type == domain.EventBankUpdated || event.Type == domain.EventBreakLengthComputed {
		level = slog.LevelDebug
	}
	l.logger.Log(context.Background(), level, "cycle event", attrs...)
}

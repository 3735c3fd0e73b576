package projector

import (
	"context"
	"log/slog"

	"github.com/Priya8975/marketplace/internal/domain"
)

// Logger writes one log line per event.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) OnEvent(ctx context.Context, e domain.Event) error {
	l.logger.InfoContext(ctx, "event",
		"aggregate", e.AggregateName(),
		"aggregate_id", e.AggregateID(),
		"event_type", domain.QualifiedType(e),
	)
	return nil
}

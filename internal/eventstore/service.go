package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/worker"
)

// Service records the messages of the event-store queue in asynchronous
// mode.
type Service struct {
	recorder *Recorder
	events   domain.Publisher[codec.Message]
	logger   *slog.Logger
}

func NewService(recorder *Recorder, events domain.Publisher[codec.Message], logger *slog.Logger) *Service {
	return &Service{recorder: recorder, events: events, logger: logger}
}

// Handle is a worker.Handler for the event-store queue. A failed forward is
// retried; the append is deduplicated on the next attempt.
func (s *Service) Handle(ctx context.Context, d worker.Delivery[codec.CommandMessage]) error {
	msg := d.Message
	if err := s.recorder.Record(ctx, []codec.CommandMessage{msg}); err != nil {
		if isInvalidEvent(err) {
			return worker.Discard(err)
		}
		return err
	}
	if err := s.events.Publish(ctx, domain.Exchange(EventsExchange), codec.Republish(msg)); err != nil {
		return fmt.Errorf("forwarding %s: %w", msg.DeduplicationID(), err)
	}
	s.logger.Debug("event recorded",
		"message_id", msg.DeduplicationID(),
		"command_id", msg.CommandID,
		"event_type", msg.Payload.QualifiedType(),
	)
	return nil
}

// StreamKey orders event-store messages per aggregate stream.
func StreamKey(m codec.CommandMessage) string {
	return m.Payload.Aggregate + ":" + m.Payload.AggregateID
}

func isInvalidEvent(err error) bool {
	var se *domain.EventStoreError
	return errors.As(err, &se) && se.Kind == domain.StoreInvalidEvent
}

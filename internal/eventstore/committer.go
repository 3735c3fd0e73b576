package eventstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
)

// Committer is the synchronous Publisher handed to command handlers:
// messages sent to the event-store queue are recorded before the call
// returns, then forwarded to the events exchange.
type Committer struct {
	recorder *Recorder
	events   domain.Publisher[codec.Message]
	logger   *slog.Logger
}

func NewCommitter(recorder *Recorder, events domain.Publisher[codec.Message], logger *slog.Logger) *Committer {
	return &Committer{recorder: recorder, events: events, logger: logger}
}

func (c *Committer) Publish(ctx context.Context, dest domain.Destination, msg codec.CommandMessage) error {
	return c.PublishMany(ctx, dest, []codec.CommandMessage{msg})
}

// PublishMany records msgs. Forwarding failures are logged only: the events
// are stored and listeners catch up on the next refresh.
func (c *Committer) PublishMany(ctx context.Context, dest domain.Destination, msgs []codec.CommandMessage) error {
	if dest != domain.Queue(Queue) {
		return fmt.Errorf("committer can not publish to %s", dest)
	}
	if err := c.recorder.Record(ctx, msgs); err != nil {
		return err
	}

	if err := c.events.PublishMany(ctx, domain.Exchange(EventsExchange), republishAll(msgs)); err != nil {
		c.logger.Error("failed to forward recorded events", "error", err, "count", len(msgs))
	}
	return nil
}

func republishAll(msgs []codec.CommandMessage) []codec.Message {
	out := make([]codec.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, codec.Republish(m))
	}
	return out
}

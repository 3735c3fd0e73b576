package projector

import (
	"context"
	"fmt"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/websocket"
	"github.com/Priya8975/marketplace/internal/worker"
)

// Broadcaster pushes feed events to connected clients.
type Broadcaster interface {
	Broadcast(event websocket.FeedEvent)
}

// LiveFeed streams every recorded event to the dashboard. It is not a
// projection and takes no part in replays.
type LiveFeed struct {
	hub Broadcaster
}

func NewLiveFeed(hub Broadcaster) *LiveFeed {
	return &LiveFeed{hub: hub}
}

// Handle is a worker.Handler for the live-feed queue.
func (f *LiveFeed) Handle(_ context.Context, d worker.Delivery[codec.Message]) error {
	env := d.Message.Payload
	e, err := codec.Decode(env)
	if err != nil {
		return worker.Discard(fmt.Errorf("decoding message %s: %w", d.Message.DeduplicationID(), err))
	}
	f.hub.Broadcast(websocket.FeedEvent{
		Aggregate:   env.Aggregate,
		AggregateID: env.AggregateID,
		EventType:   domain.QualifiedType(e),
		MessageID:   d.Message.DeduplicationID(),
		Payload:     env.Payload,
		Timestamp:   env.Timestamp,
	})
	return nil
}

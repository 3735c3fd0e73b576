// Package projector keeps the read models and side effects in step with
// the events recorded in the event store.
package projector

import (
	"context"
	"fmt"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/worker"
)

// Listener reacts to one event. Events a listener does not care about are
// ignored and return nil.
type Listener interface {
	OnEvent(ctx context.Context, e domain.Event) error
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ctx context.Context, e domain.Event) error

func (f ListenerFunc) OnEvent(ctx context.Context, e domain.Event) error { return f(ctx, e) }

// Handler turns l into a consumer of the events exchange. Messages that can
// not be decoded are discarded.
func Handler(l Listener) worker.Handler[codec.Message] {
	return func(ctx context.Context, d worker.Delivery[codec.Message]) error {
		e, err := codec.Decode(d.Message.Payload)
		if err != nil {
			return worker.Discard(fmt.Errorf("decoding message %s: %w", d.Message.DeduplicationID(), err))
		}
		return l.OnEvent(ctx, e)
	}
}

// Chain calls every listener in order and stops at the first error.
type Chain []Listener

func (c Chain) OnEvent(ctx context.Context, e domain.Event) error {
	for _, l := range c {
		if err := l.OnEvent(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// StreamKey orders event messages per aggregate stream.
func StreamKey(m codec.Message) string {
	return m.Payload.Aggregate + ":" + m.Payload.AggregateID
}

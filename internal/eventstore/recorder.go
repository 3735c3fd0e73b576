// Package eventstore records command messages in the event stores and
// forwards them to the listeners.
package eventstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

const (
	// Queue receives command messages in asynchronous mode.
	Queue = "event-store"
	// EventsExchange carries recorded events to the listeners.
	EventsExchange = "events"
)

// Stores holds the event store of every aggregate family.
type Stores struct {
	Projects domain.EventStore[project.Event]
	Budgets  domain.EventStore[budget.Event]
}

// Recorder appends command messages to the store of their aggregate.
type Recorder struct {
	stores Stores
	logger *slog.Logger
}

func NewRecorder(stores Stores, logger *slog.Logger) *Recorder {
	return &Recorder{stores: stores, logger: logger}
}

type streamKey struct{ aggregate, id string }

type group[E domain.Event] struct {
	key    streamKey
	events []domain.StorableEvent[E]
}

// batch collects consecutive events per stream, keeping stream order.
type batch[E domain.Event] struct {
	groups []*group[E]
	index  map[streamKey]*group[E]
}

func (b *batch[E]) add(key streamKey, e E, dedupID string) {
	if b.index == nil {
		b.index = make(map[streamKey]*group[E])
	}
	g, ok := b.index[key]
	if !ok {
		g = &group[E]{key: key}
		b.index[key] = g
		b.groups = append(b.groups, g)
	}
	g.events = append(g.events, domain.StorableEvent[E]{Event: e, DeduplicationID: dedupID})
}

func appendAll[E domain.Event](ctx context.Context, store domain.EventStore[E], b batch[E]) error {
	for _, g := range b.groups {
		if err := store.Append(ctx, g.key.id, g.events); err != nil {
			return fmt.Errorf("appending to %s %s: %w", g.key.aggregate, g.key.id, err)
		}
	}
	return nil
}

// Record decodes msgs and appends them with their message id as
// deduplication id. Each stream is appended in its own transaction, project
// streams first, so a failure can leave earlier streams stored. Recording the
// same msgs again stores the rest and skips what is already there.
func (r *Recorder) Record(ctx context.Context, msgs []codec.CommandMessage) error {
	var (
		projects batch[project.Event]
		budgets  batch[budget.Event]
	)

	for _, m := range msgs {
		e, err := codec.Decode(m.Payload)
		if err != nil {
			return err
		}
		key := streamKey{aggregate: e.AggregateName(), id: e.AggregateID()}
		switch e := e.(type) {
		case project.Event:
			projects.add(key, e, m.DeduplicationID())
		case budget.Event:
			budgets.add(key, e, m.DeduplicationID())
		default:
			return domain.NewStoreError(domain.StoreInvalidEvent,
				fmt.Errorf("%s events are stored within their budget", domain.QualifiedType(e)))
		}
	}

	if err := appendAll(ctx, r.stores.Projects, projects); err != nil {
		return err
	}
	if err := appendAll(ctx, r.stores.Budgets, budgets); err != nil {
		return err
	}

	r.logger.Debug("events recorded", "count", len(msgs))
	return nil
}

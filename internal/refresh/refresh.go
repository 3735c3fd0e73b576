// Package refresh rebuilds read models by replaying the event store.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/projector"
)

const progressEvery = 1000

// Refresher replays every event of one store through a listener after
// emptying the tables the listener writes.
type Refresher[E domain.Event] struct {
	name     string
	events   domain.EventStore[E]
	truncate func(ctx context.Context) error
	listener projector.Listener
	logger   *slog.Logger
}

func New[E domain.Event](
	name string,
	events domain.EventStore[E],
	truncate func(ctx context.Context) error,
	listener projector.Listener,
	logger *slog.Logger,
) *Refresher[E] {
	return &Refresher[E]{name: name, events: events, truncate: truncate, listener: listener, logger: logger}
}

func (r *Refresher[E]) Name() string { return r.name }

// Refresh stops at the first failing event. The read model is then partial
// until the next successful refresh.
func (r *Refresher[E]) Refresh(ctx context.Context) error {
	start := time.Now()

	if err := r.truncate(ctx); err != nil {
		return fmt.Errorf("truncating %s read models: %w", r.name, err)
	}

	events, err := r.events.List(ctx)
	if err != nil {
		return fmt.Errorf("listing %s events: %w", r.name, err)
	}
	r.logger.Info("refresh started", "projection", r.name, "events", len(events))

	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.listener.OnEvent(ctx, e); err != nil {
			return fmt.Errorf("replaying %s event %d (%s of %s): %w",
				r.name, i, domain.QualifiedType(e), e.AggregateID(), err)
		}
		if (i+1)%progressEvery == 0 {
			r.logger.Info("refresh progress", "projection", r.name, "replayed", i+1, "total", len(events))
		}
	}

	r.logger.Info("refresh completed",
		"projection", r.name,
		"events", len(events),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Job is a refresh that can run on its own.
type Job interface {
	Name() string
	Refresh(ctx context.Context) error
}

// All runs jobs in order and stops at the first failure.
func All(ctx context.Context, jobs ...Job) error {
	for _, j := range jobs {
		if err := j.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}

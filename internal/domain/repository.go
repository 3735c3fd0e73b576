package domain

import (
	"context"
	"fmt"
)

// Repository loads aggregates by replaying their stream.
type Repository[A EventSourcable[A, E], E Event] struct {
	store EventStore[E]
}

func NewRepository[A EventSourcable[A, E], E Event](store EventStore[E]) *Repository[A, E] {
	return &Repository[A, E]{store: store}
}

// FindByID returns ErrNotFound when the stream is empty.
func (r *Repository[A, E]) FindByID(ctx context.Context, id fmt.Stringer) (A, error) {
	var zero A
	events, err := r.store.ListByID(ctx, id.String())
	if err != nil {
		return zero, fmt.Errorf("loading %s: %w", id, err)
	}
	if len(events) == 0 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return FromEvents[A](events), nil
}

// Exists reports whether the stream has at least one event.
func (r *Repository[A, E]) Exists(ctx context.Context, id fmt.Stringer) (bool, error) {
	events, err := r.store.ListByID(ctx, id.String())
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", id, err)
	}
	return len(events) > 0, nil
}

// Store exposes the underlying event store.
func (r *Repository[A, E]) Store() EventStore[E] { return r.store }

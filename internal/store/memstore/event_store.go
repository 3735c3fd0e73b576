// Package memstore keeps events in memory. It backs tests and local runs
// that do not need durability.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Priya8975/marketplace/internal/domain"
)

type EventStore[E domain.Event] struct {
	mu      sync.RWMutex
	streams map[string][]E
	all     []E
	seen    map[string]struct{}
	err     error
}

func NewEventStore[E domain.Event]() *EventStore[E] {
	return &EventStore[E]{
		streams: make(map[string][]E),
		seen:    make(map[string]struct{}),
	}
}

// Fail makes every call return err until Fail(nil) is called.
func (s *EventStore[E]) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *EventStore[E]) Append(_ context.Context, aggregateID string, events []domain.StorableEvent[E]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return domain.NewStoreError(domain.StoreAppend, s.err)
	}
	for _, se := range events {
		if se.Event.AggregateID() != aggregateID {
			return domain.NewStoreError(domain.StoreInvalidEvent,
				fmt.Errorf("event of %s appended to stream %s", se.Event.AggregateID(), aggregateID))
		}
		if se.DeduplicationID == "" {
			return domain.NewStoreError(domain.StoreInvalidEvent, errors.New("missing deduplication id"))
		}
	}

	for _, se := range events {
		if _, ok := s.seen[se.DeduplicationID]; ok {
			continue
		}
		s.seen[se.DeduplicationID] = struct{}{}
		s.streams[aggregateID] = append(s.streams[aggregateID], se.Event)
		s.all = append(s.all, se.Event)
	}
	return nil
}

func (s *EventStore[E]) ListByID(_ context.Context, aggregateID string) ([]E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, domain.NewStoreError(domain.StoreList, s.err)
	}
	return append([]E(nil), s.streams[aggregateID]...), nil
}

func (s *EventStore[E]) List(_ context.Context) ([]E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, domain.NewStoreError(domain.StoreList, s.err)
	}
	return append([]E(nil), s.all...), nil
}

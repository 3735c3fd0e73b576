// Package storetest checks an EventStore implementation against the
// behaviour every backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// Factory returns an empty store for one test.
type Factory func(t *testing.T) domain.EventStore[project.Event]

func storable(events ...project.Event) []domain.StorableEvent[project.Event] {
	out := make([]domain.StorableEvent[project.Event], 0, len(events))
	for _, e := range events {
		out = append(out, domain.StorableEvent[project.Event]{Event: e, DeduplicationID: uuid.NewString()})
	}
	return out
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("AppendThenListByID", func(t *testing.T) { testAppendThenList(t, newStore(t)) })
	t.Run("UnknownStreamIsEmpty", func(t *testing.T) { testUnknownStream(t, newStore(t)) })
	t.Run("DuplicateAppendIsNoop", func(t *testing.T) { testDuplicateAppend(t, newStore(t)) })
	t.Run("DuplicateWithinBatch", func(t *testing.T) { testDuplicateWithinBatch(t, newStore(t)) })
	t.Run("ListScansAllStreams", func(t *testing.T) { testListAll(t, newStore(t)) })
	t.Run("RejectsForeignEvent", func(t *testing.T) { testForeignEvent(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
}

func testAppendThenList(t *testing.T, s domain.EventStore[project.Event]) {
	ctx := context.Background()
	id := domain.NewProjectID()
	leader := domain.NewUserID()
	want := []project.Event{
		project.Created{ID: id},
		project.LeaderAssigned{ID: id, LeaderID: leader},
		project.GithubRepoLinked{ID: id, GithubRepoID: 42},
	}

	if err := s.Append(ctx, id.String(), storable(want[:1]...)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, id.String(), storable(want[1:]...)); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.ListByID(ctx, id.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %#v, got %#v", i, want[i], got[i])
		}
	}
}

func testUnknownStream(t *testing.T, s domain.EventStore[project.Event]) {
	got, err := s.ListByID(context.Background(), domain.NewProjectID().String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %d", len(got))
	}
}

func testDuplicateAppend(t *testing.T, s domain.EventStore[project.Event]) {
	ctx := context.Background()
	id := domain.NewProjectID()
	events := storable(project.Created{ID: id})

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, id.String(), events); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.ListByID(ctx, id.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 event after duplicate appends, got %d", len(got))
	}
}

func testDuplicateWithinBatch(t *testing.T, s domain.EventStore[project.Event]) {
	ctx := context.Background()
	id := domain.NewProjectID()
	batch := storable(project.Created{ID: id}, project.GithubRepoLinked{ID: id, GithubRepoID: 1})
	batch[1].DeduplicationID = batch[0].DeduplicationID

	if err := s.Append(ctx, id.String(), batch); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.ListByID(ctx, id.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 event, got %d", len(got))
	}
}

func testListAll(t *testing.T, s domain.EventStore[project.Event]) {
	ctx := context.Background()
	a, b := domain.NewProjectID(), domain.NewProjectID()

	steps := []struct {
		id    domain.ProjectID
		event project.Event
	}{
		{a, project.Created{ID: a}},
		{b, project.Created{ID: b}},
		{a, project.GithubRepoLinked{ID: a, GithubRepoID: 7}},
	}
	for _, st := range steps {
		if err := s.Append(ctx, st.id.String(), storable(st.event)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(steps) {
		t.Fatalf("expected %d events, got %d", len(steps), len(got))
	}
	for i, st := range steps {
		if got[i] != st.event {
			t.Errorf("event %d: expected %#v, got %#v", i, st.event, got[i])
		}
	}
}

func testForeignEvent(t *testing.T, s domain.EventStore[project.Event]) {
	ctx := context.Background()
	id, other := domain.NewProjectID(), domain.NewProjectID()

	err := s.Append(ctx, id.String(), storable(project.Created{ID: id}, project.Created{ID: other}))
	var se *domain.EventStoreError
	if !errors.As(err, &se) || se.Kind != domain.StoreInvalidEvent {
		t.Fatalf("expected invalid event error, got %v", err)
	}

	got, err := s.ListByID(ctx, id.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected nothing stored, got %d events", len(got))
	}
}

func testConcurrentAppends(t *testing.T, s domain.EventStore[project.Event]) {
	ctx := context.Background()
	id := domain.NewProjectID()
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(repo int) {
			defer wg.Done()
			errs <- s.Append(ctx, id.String(), storable(project.GithubRepoLinked{ID: id, GithubRepoID: domain.GithubRepoID(repo)}))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.ListByID(ctx, id.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != writers {
		t.Errorf("expected %d events, got %d", writers, len(got))
	}
}

package eventstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/store/memstore"
	"github.com/Priya8975/marketplace/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type capturePublisher struct {
	dest domain.Destination
	msgs []codec.Message
	err  error
}

func (p *capturePublisher) Publish(ctx context.Context, dest domain.Destination, msg codec.Message) error {
	return p.PublishMany(ctx, dest, []codec.Message{msg})
}

func (p *capturePublisher) PublishMany(_ context.Context, dest domain.Destination, msgs []codec.Message) error {
	if p.err != nil {
		return p.err
	}
	p.dest = dest
	p.msgs = append(p.msgs, msgs...)
	return nil
}

type fixture struct {
	projects *memstore.EventStore[project.Event]
	budgets  *memstore.EventStore[budget.Event]
	recorder *Recorder
	events   *capturePublisher
}

func setup() *fixture {
	f := &fixture{
		projects: memstore.NewEventStore[project.Event](),
		budgets:  memstore.NewEventStore[budget.Event](),
		events:   &capturePublisher{},
	}
	f.recorder = NewRecorder(Stores{Projects: f.projects, Budgets: f.budgets}, testLogger())
	return f
}

// createAndAllocate returns the messages of a project creation followed by
// a 1000 USDC allocation, as one command would publish them.
func createAndAllocate(t *testing.T) (domain.ProjectID, []codec.CommandMessage) {
	t.Helper()
	id := domain.NewProjectID()
	created := project.Create(id)
	allocated, err := project.FromEvents(created).AllocateBudget(nil, domain.NewAmount(decimal.NewFromInt(1000), domain.USDC))
	if err != nil {
		t.Fatalf("allocating: %v", err)
	}

	var events []domain.Event
	for _, e := range created {
		events = append(events, e)
	}
	for _, e := range allocated {
		events = append(events, e)
	}
	msgs, err := codec.NewCommandMessages(events)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	return id, msgs
}

func TestRecorder_AppendsToEachStore(t *testing.T) {
	f := setup()
	ctx := context.Background()
	id, msgs := createAndAllocate(t)

	if err := f.recorder.Record(ctx, msgs); err != nil {
		t.Fatalf("record: %v", err)
	}

	projectEvents, _ := f.projects.ListByID(ctx, id.String())
	if len(projectEvents) != 1 {
		t.Errorf("expected 1 project event, got %d", len(projectEvents))
	}
	budgetEvents, _ := f.budgets.ListByID(ctx, budget.IDFor(id).String())
	if len(budgetEvents) != 2 {
		t.Fatalf("expected 2 budget events, got %d", len(budgetEvents))
	}
	if _, ok := budgetEvents[0].(budget.Created); !ok {
		t.Errorf("expected Created first, got %T", budgetEvents[0])
	}
	if _, ok := budgetEvents[1].(budget.Allocated); !ok {
		t.Errorf("expected Allocated second, got %T", budgetEvents[1])
	}
}

func TestRecorder_IsIdempotent(t *testing.T) {
	f := setup()
	ctx := context.Background()
	id, msgs := createAndAllocate(t)

	f.recorder.Record(ctx, msgs)
	if err := f.recorder.Record(ctx, msgs); err != nil {
		t.Fatalf("second record: %v", err)
	}

	budgetEvents, _ := f.budgets.ListByID(ctx, budget.IDFor(id).String())
	if len(budgetEvents) != 2 {
		t.Errorf("expected duplicates dropped, got %d events", len(budgetEvents))
	}
}

func TestRecorder_RetryCompletesPartialRecord(t *testing.T) {
	f := setup()
	ctx := context.Background()
	id, msgs := createAndAllocate(t)

	f.budgets.Fail(errors.New("db down"))
	if err := f.recorder.Record(ctx, msgs); err == nil {
		t.Fatal("expected the budget store error")
	}
	projectEvents, _ := f.projects.ListByID(ctx, id.String())
	if len(projectEvents) != 1 {
		t.Fatalf("expected the project stream stored, got %d events", len(projectEvents))
	}

	f.budgets.Fail(nil)
	if err := f.recorder.Record(ctx, msgs); err != nil {
		t.Fatalf("retry: %v", err)
	}
	projectEvents, _ = f.projects.ListByID(ctx, id.String())
	if len(projectEvents) != 1 {
		t.Errorf("expected no duplicate project events, got %d", len(projectEvents))
	}
	budgetEvents, _ := f.budgets.ListByID(ctx, budget.IDFor(id).String())
	if len(budgetEvents) != 2 {
		t.Errorf("expected 2 budget events after retry, got %d", len(budgetEvents))
	}
}

func TestRecorder_RejectsBarePaymentEvents(t *testing.T) {
	f := setup()
	msgs, err := codec.NewCommandMessages([]payment.Event{payment.Cancelled{ID: domain.NewPaymentID()}})
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}

	err = f.recorder.Record(context.Background(), msgs)
	if !isInvalidEvent(err) {
		t.Errorf("expected an invalid event error, got %v", err)
	}
}

func TestCommitter_RecordsThenForwards(t *testing.T) {
	f := setup()
	c := NewCommitter(f.recorder, f.events, testLogger())
	_, msgs := createAndAllocate(t)

	if err := c.PublishMany(context.Background(), domain.Queue(Queue), msgs); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if f.events.dest != domain.Exchange(EventsExchange) {
		t.Errorf("expected events on %s, got %s", EventsExchange, f.events.dest)
	}
	if len(f.events.msgs) != len(msgs) {
		t.Fatalf("expected %d forwarded, got %d", len(msgs), len(f.events.msgs))
	}
	for i := range msgs {
		if f.events.msgs[i].ID != msgs[i].ID {
			t.Errorf("message %d forwarded with a new id", i)
		}
	}
}

func TestCommitter_ForwardFailureIsNotReturned(t *testing.T) {
	f := setup()
	f.events.err = errors.New("redis down")
	c := NewCommitter(f.recorder, f.events, testLogger())
	id, msgs := createAndAllocate(t)

	if err := c.PublishMany(context.Background(), domain.Queue(Queue), msgs); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if events, _ := f.projects.ListByID(context.Background(), id.String()); len(events) != 1 {
		t.Error("events should be stored even when forwarding fails")
	}
}

func TestCommitter_StoreFailureIsReturned(t *testing.T) {
	f := setup()
	f.budgets.Fail(domain.NewStoreError(domain.StoreConnection, errors.New("gone")))
	c := NewCommitter(f.recorder, f.events, testLogger())
	_, msgs := createAndAllocate(t)

	err := c.PublishMany(context.Background(), domain.Queue(Queue), msgs)
	if domain.KindOf(err) != domain.KindInfrastructure {
		t.Errorf("expected an infrastructure error, got %v", err)
	}
	if len(f.events.msgs) != 0 {
		t.Error("nothing should be forwarded when recording fails")
	}
}

func TestCommitter_RejectsOtherDestinations(t *testing.T) {
	f := setup()
	c := NewCommitter(f.recorder, f.events, testLogger())
	_, msgs := createAndAllocate(t)

	if err := c.PublishMany(context.Background(), domain.Exchange(EventsExchange), msgs); err == nil {
		t.Error("expected an error for a foreign destination")
	}
}

func TestService_Handle(t *testing.T) {
	f := setup()
	s := NewService(f.recorder, f.events, testLogger())
	id, msgs := createAndAllocate(t)
	ctx := context.Background()

	for _, m := range msgs {
		if err := s.Handle(ctx, worker.Delivery[codec.CommandMessage]{Message: m, Attempt: 1}); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	if events, _ := f.budgets.ListByID(ctx, budget.IDFor(id).String()); len(events) != 2 {
		t.Errorf("expected 2 budget events, got %d", len(events))
	}
	if len(f.events.msgs) != 3 {
		t.Errorf("expected 3 forwarded events, got %d", len(f.events.msgs))
	}
}

func TestService_ForwardFailureIsRetried(t *testing.T) {
	f := setup()
	f.events.err = errors.New("redis down")
	s := NewService(f.recorder, f.events, testLogger())
	_, msgs := createAndAllocate(t)

	err := s.Handle(context.Background(), worker.Delivery[codec.CommandMessage]{Message: msgs[0], Attempt: 1})
	if err == nil {
		t.Fatal("expected an error so the message is retried")
	}

	f.events.err = nil
	if err := s.Handle(context.Background(), worker.Delivery[codec.CommandMessage]{Message: msgs[0], Attempt: 2}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(f.events.msgs) != 1 {
		t.Errorf("expected the event forwarded once, got %d", len(f.events.msgs))
	}
}

func TestStreamKey(t *testing.T) {
	id, msgs := createAndAllocate(t)

	if got, want := StreamKey(msgs[0]), "Project:"+id.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if StreamKey(msgs[1]) != StreamKey(msgs[2]) {
		t.Error("events of one budget must share a key")
	}
}

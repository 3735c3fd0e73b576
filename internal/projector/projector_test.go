package projector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/github"
	"github.com/Priya8975/marketplace/internal/store"
	"github.com/Priya8975/marketplace/internal/store/memstore"
	"github.com/Priya8975/marketplace/internal/websocket"
	"github.com/Priya8975/marketplace/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeProjects struct {
	saved    map[domain.ProjectID]project.Project
	saves    int
	failures int
}

func (f *fakeProjects) SaveProject(_ context.Context, p project.Project) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("db down")
	}
	if f.saved == nil {
		f.saved = make(map[domain.ProjectID]project.Project)
	}
	f.saved[p.ID] = p
	f.saves++
	return nil
}

func projectStream(t *testing.T, events ...project.Event) *domain.Repository[project.Project, project.Event] {
	t.Helper()
	s := memstore.NewEventStore[project.Event]()
	appendEvents(t, s, events)
	return domain.NewRepository[project.Project, project.Event](s)
}

func TestProjectProjector(t *testing.T) {
	id := domain.NewProjectID()
	leader := domain.NewUserID()
	stream := []project.Event{
		project.Created{ID: id},
		project.LeaderAssigned{ID: id, LeaderID: leader},
		project.GithubRepoLinked{ID: id, GithubRepoID: 42},
		project.GithubRepoLinked{ID: id, GithubRepoID: 7},
		project.GithubRepoUnlinked{ID: id, GithubRepoID: 42},
	}

	fake := &fakeProjects{}
	p := NewProjectProjector(projectStream(t, stream...), fake)
	for _, e := range stream {
		if err := p.OnEvent(context.Background(), e); err != nil {
			t.Fatalf("projecting %T: %v", e, err)
		}
	}
	if err := p.OnEvent(context.Background(), budget.Allocated{ID: budget.IDFor(id), Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.saves != len(stream) {
		t.Errorf("expected %d saves, got %d", len(stream), fake.saves)
	}
	got := fake.saved[id]
	if _, ok := got.Leaders[leader]; !ok || len(got.Leaders) != 1 {
		t.Errorf("expected leader %s only, got %v", leader, got.Leaders)
	}
	if _, ok := got.GithubRepos[7]; !ok || len(got.GithubRepos) != 1 {
		t.Errorf("expected repo 7 only, got %v", got.GithubRepos)
	}
}

func TestProjectProjector_RetriedEventAfterLaterOnes(t *testing.T) {
	id := domain.NewProjectID()
	leader := domain.NewUserID()
	created := project.Created{ID: id}
	assigned := project.LeaderAssigned{ID: id, LeaderID: leader}
	unassigned := project.LeaderUnassigned{ID: id, LeaderID: leader}
	linked := project.GithubRepoLinked{ID: id, GithubRepoID: 42}
	unlinked := project.GithubRepoUnlinked{ID: id, GithubRepoID: 42}

	fake := &fakeProjects{}
	p := NewProjectProjector(projectStream(t, created, assigned, unassigned, linked, unlinked), fake)
	ctx := context.Background()

	if err := p.OnEvent(ctx, created); err != nil {
		t.Fatalf("projecting created: %v", err)
	}
	fake.failures = 2
	if err := p.OnEvent(ctx, assigned); err == nil {
		t.Fatal("expected the first assign to fail")
	}
	if err := p.OnEvent(ctx, linked); err == nil {
		t.Fatal("expected the first link to fail")
	}

	// The retried messages are handled after the events that undo them.
	for _, e := range []project.Event{unassigned, unlinked, assigned, linked} {
		if err := p.OnEvent(ctx, e); err != nil {
			t.Fatalf("projecting %T: %v", e, err)
		}
	}

	got := fake.saved[id]
	if len(got.Leaders) != 0 {
		t.Errorf("expected no leaders, got %v", got.Leaders)
	}
	if len(got.GithubRepos) != 0 {
		t.Errorf("expected no linked repos, got %v", got.GithubRepos)
	}
}

func TestProjectProjector_StoreError(t *testing.T) {
	id := domain.NewProjectID()
	p := NewProjectProjector(projectStream(t, project.Created{ID: id}), &fakeProjects{failures: 1})
	if err := p.OnEvent(context.Background(), project.Created{ID: id}); err == nil {
		t.Error("expected the store error to be returned")
	}
}

func TestProjectProjector_MissingStreamIsInternal(t *testing.T) {
	p := NewProjectProjector(domain.NewRepository[project.Project, project.Event](memstore.NewEventStore[project.Event]()), &fakeProjects{})

	err := p.OnEvent(context.Background(), project.Created{ID: domain.NewProjectID()})
	if domain.KindOf(err) != domain.KindInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}

type fakeBudgets struct {
	saved    []budget.Budget
	receipts []payment.Processed
}

func (f *fakeBudgets) SaveBudget(_ context.Context, b budget.Budget) error {
	f.saved = append(f.saved, b)
	return nil
}

func (f *fakeBudgets) InsertPaymentReceipt(_ context.Context, e payment.Processed) error {
	f.receipts = append(f.receipts, e)
	return nil
}

func appendEvents[E domain.Event](t *testing.T, s *memstore.EventStore[E], events []E) {
	t.Helper()
	storable := make([]domain.StorableEvent[E], 0, len(events))
	for _, e := range events {
		storable = append(storable, domain.StorableEvent[E]{Event: e, DeduplicationID: uuid.NewString()})
	}
	if err := s.Append(context.Background(), events[0].AggregateID(), storable); err != nil {
		t.Fatalf("appending: %v", err)
	}
}

func TestBudgetProjector_SavesCurrentState(t *testing.T) {
	events := memstore.NewEventStore[budget.Event]()
	fake := &fakeBudgets{}
	p := NewBudgetProjector(domain.NewRepository[budget.Budget, budget.Event](events), fake)

	id := domain.NewProjectID()
	allocated, err := project.FromEvents(project.Create(id)).AllocateBudget(nil, domain.NewAmount(decimal.NewFromInt(1000), domain.USDC))
	if err != nil {
		t.Fatalf("allocating: %v", err)
	}
	appendEvents(t, events, allocated)

	b := budget.FromEvents(allocated)
	paymentID := domain.NewPaymentID()
	requested, err := b.RequestPayment(paymentID, domain.NewUserID(), 7, domain.NewAmount(decimal.NewFromInt(300), domain.USDC),
		payment.Hours(2), payment.Reason{}, time.Now())
	if err != nil {
		t.Fatalf("requesting: %v", err)
	}
	appendEvents(t, events, requested)

	b = b.ApplyEvents(requested)
	receipt := payment.Receipt{Fiat: &payment.FiatReceipt{RecipientIBAN: "FR76", TransactionReference: "ref"}}
	paid, err := b.AddPaymentReceipt(paymentID, domain.NewPaymentReceiptID(), domain.NewAmount(decimal.NewFromInt(100), domain.USDC), receipt, time.Now())
	if err != nil {
		t.Fatalf("paying: %v", err)
	}
	appendEvents(t, events, paid)

	if err := p.OnEvent(context.Background(), allocated[0]); err != nil {
		t.Fatalf("projecting: %v", err)
	}
	if err := p.OnEvent(context.Background(), paid[0]); err != nil {
		t.Fatalf("projecting: %v", err)
	}

	if len(fake.saved) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(fake.saved))
	}
	// Both saves see the whole stream, whatever event triggered them.
	for _, saved := range fake.saved {
		if !saved.Spent.Equal(decimal.NewFromInt(300)) {
			t.Errorf("expected spent 300, got %s", saved.Spent)
		}
		if got := saved.Payments[paymentID].PaidAmount; !got.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected paid 100, got %s", got)
		}
	}
	if len(fake.receipts) != 1 {
		t.Errorf("expected 1 receipt, got %d", len(fake.receipts))
	}
}

func TestBudgetProjector_IgnoresOtherAggregates(t *testing.T) {
	fake := &fakeBudgets{}
	p := NewBudgetProjector(domain.NewRepository[budget.Budget, budget.Event](memstore.NewEventStore[budget.Event]()), fake)

	if err := p.OnEvent(context.Background(), project.Created{ID: domain.NewProjectID()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.saved) != 0 {
		t.Errorf("expected no saves, got %d", len(fake.saved))
	}
}

func TestBudgetProjector_MissingStreamIsInternal(t *testing.T) {
	p := NewBudgetProjector(domain.NewRepository[budget.Budget, budget.Event](memstore.NewEventStore[budget.Event]()), &fakeBudgets{})

	err := p.OnEvent(context.Background(), budget.Allocated{ID: budget.IDFor(domain.NewProjectID()), Amount: decimal.NewFromInt(1)})
	if domain.KindOf(err) != domain.KindInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}

type fakeGithub struct {
	repo *github.Repo
	err  error
}

func (f *fakeGithub) GetRepo(context.Context, domain.GithubRepoID) (*github.Repo, error) {
	return f.repo, f.err
}

type fakeIndex struct {
	repos []store.GithubRepo
}

func (f *fakeIndex) UpsertGithubRepo(_ context.Context, repo store.GithubRepo) error {
	f.repos = append(f.repos, repo)
	return nil
}

func TestGithubRepoIndexer(t *testing.T) {
	description := "the marketplace"
	gh := &fakeGithub{repo: &github.Repo{ID: 42, Name: "marketplace", Owner: github.Owner{Login: "onlydust"}, Description: &description}}
	index := &fakeIndex{}
	g := NewGithubRepoIndexer(gh, index, testLogger())

	if err := g.OnEvent(context.Background(), project.GithubRepoLinked{ID: domain.NewProjectID(), GithubRepoID: 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(index.repos) != 1 {
		t.Fatalf("expected 1 indexed repo, got %d", len(index.repos))
	}
	if got := index.repos[0]; got.Owner != "onlydust" || got.Description != description {
		t.Errorf("unexpected row %+v", got)
	}
}

func TestGithubRepoIndexer_Errors(t *testing.T) {
	linked := project.GithubRepoLinked{ID: domain.NewProjectID(), GithubRepoID: 42}

	index := &fakeIndex{}
	gone := NewGithubRepoIndexer(&fakeGithub{err: domain.NotFound(errors.New("gone"))}, index, testLogger())
	if err := gone.OnEvent(context.Background(), linked); err != nil {
		t.Errorf("a missing repo should be skipped, got %v", err)
	}

	down := NewGithubRepoIndexer(&fakeGithub{err: domain.Infrastructure(errors.New("502"))}, index, testLogger())
	if err := down.OnEvent(context.Background(), linked); err == nil {
		t.Error("an unreachable github should be retried")
	}
	if len(index.repos) != 0 {
		t.Errorf("expected nothing indexed, got %d", len(index.repos))
	}
}

type captureHub struct {
	events []websocket.FeedEvent
}

func (h *captureHub) Broadcast(e websocket.FeedEvent) { h.events = append(h.events, e) }

func message(t *testing.T, e domain.Event) codec.Message {
	t.Helper()
	env, err := codec.Encode(e)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	return domain.NewUniqueMessage(env)
}

func TestLiveFeed(t *testing.T) {
	hub := &captureHub{}
	f := NewLiveFeed(hub)

	msg := message(t, budget.PaymentEvent{ID: budget.IDFor(domain.NewProjectID()), Event: payment.Cancelled{ID: domain.NewPaymentID()}})
	if err := f.Handle(context.Background(), worker.Delivery[codec.Message]{Message: msg}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hub.events) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(hub.events))
	}
	if got := hub.events[0]; got.EventType != "Payment.Cancelled" || got.MessageID != msg.ID.String() {
		t.Errorf("unexpected feed event %+v", got)
	}
}

func TestHandler(t *testing.T) {
	var seen []domain.Event
	h := Handler(Chain{
		ListenerFunc(func(_ context.Context, e domain.Event) error {
			seen = append(seen, e)
			return nil
		}),
		NewLogger(testLogger()),
	})

	id := domain.NewProjectID()
	if err := h(context.Background(), worker.Delivery[codec.Message]{Message: message(t, project.Created{ID: id})}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0] != (project.Created{ID: id}) {
		t.Errorf("expected the decoded event, got %v", seen)
	}
}

func TestChain_StopsAtFirstError(t *testing.T) {
	called := false
	c := Chain{
		ListenerFunc(func(context.Context, domain.Event) error { return errors.New("boom") }),
		ListenerFunc(func(context.Context, domain.Event) error { called = true; return nil }),
	}
	if err := c.OnEvent(context.Background(), project.Created{}); err == nil {
		t.Error("expected an error")
	}
	if called {
		t.Error("later listeners should not run after an error")
	}
}

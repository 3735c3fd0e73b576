package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/marketplace/internal/domain"
)

type testMessage = domain.UniqueMessage[string]

func setupTestBus(t *testing.T) (*Bus[testMessage], *clockedQueues) {
	t.Helper()
	client, _ := testRedis(t)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	bus := NewBus[testMessage](client, testLogger())
	bus.now = clock.Now
	return bus, &clockedQueues{bus: bus, clock: clock}
}

type clockedQueues struct {
	bus   *Bus[testMessage]
	clock *fakeClock
}

func (c *clockedQueues) open(name string) *Queue {
	q := NewQueue(c.bus.client, name, 10*time.Second)
	q.now = c.clock.Now
	return q
}

func payloads(t *testing.T, claimed []Claimed) []string {
	t.Helper()
	out := make([]string, 0, len(claimed))
	for _, c := range claimed {
		var m testMessage
		if err := json.Unmarshal(c.Message, &m); err != nil {
			t.Fatalf("decoding claimed message: %v", err)
		}
		out = append(out, m.Payload)
	}
	return out
}

func TestBus_PublishManyKeepsOrder(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()

	msgs := []testMessage{
		domain.NewUniqueMessage("first"),
		domain.NewUniqueMessage("second"),
		domain.NewUniqueMessage("third"),
	}
	if err := bus.PublishMany(ctx, domain.Queue("projects"), msgs); err != nil {
		t.Fatalf("publish: %v", err)
	}

	claimed, err := qs.open("projects").Claim(ctx, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	got := payloads(t, claimed)
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	for _, c := range claimed {
		if c.Attempt != 1 {
			t.Errorf("expected attempt 1, got %d", c.Attempt)
		}
	}
}

func TestBus_ExchangeCopiesToBoundQueues(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()

	for _, q := range []string{"projects", "budgets"} {
		if err := bus.Bind(ctx, "events", q); err != nil {
			t.Fatalf("bind %s: %v", q, err)
		}
	}
	if err := bus.Publish(ctx, domain.Exchange("events"), domain.NewUniqueMessage("created")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, name := range []string{"projects", "budgets"} {
		depth, err := bus.QueueDepth(ctx, name)
		if err != nil {
			t.Fatalf("depth: %v", err)
		}
		if depth != 1 {
			t.Errorf("queue %s: expected depth 1, got %d", name, depth)
		}
	}
	if depth, _ := qs.open("logger").Depth(ctx); depth != 0 {
		t.Errorf("unbound queue should stay empty, got %d", depth)
	}
}

func TestBus_UnboundExchangeDropsMessages(t *testing.T) {
	bus, _ := setupTestBus(t)

	if err := bus.Publish(context.Background(), domain.Exchange("nowhere"), domain.NewUniqueMessage("x")); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestQueue_AckRemovesInflight(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()
	q := qs.open("projects")

	bus.Publish(ctx, domain.Queue("projects"), domain.NewUniqueMessage("a"))
	claimed, _ := q.Claim(ctx, 10)
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed, got %d", len(claimed))
	}
	if n, _ := q.InFlight(ctx); n != 1 {
		t.Errorf("expected 1 in flight, got %d", n)
	}
	if err := q.Ack(ctx, claimed[0]); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if n, _ := q.InFlight(ctx); n != 0 {
		t.Errorf("expected nothing in flight, got %d", n)
	}
	if again, _ := q.Claim(ctx, 10); len(again) != 0 {
		t.Errorf("acked job claimed again")
	}
}

func TestQueue_RetryIsDelayed(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()
	q := qs.open("projects")

	bus.Publish(ctx, domain.Queue("projects"), domain.NewUniqueMessage("a"))
	claimed, _ := q.Claim(ctx, 1)
	if err := q.Retry(ctx, claimed[0], 5*time.Second); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if early, _ := q.Claim(ctx, 1); len(early) != 0 {
		t.Fatal("retried job claimed before its delay")
	}
	qs.clock.Advance(5 * time.Second)
	later, err := q.Claim(ctx, 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(later) != 1 || later[0].Attempt != 2 {
		t.Fatalf("expected second attempt, got %+v", later)
	}
}

func TestQueue_DeadLetter(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()
	q := qs.open("projects")

	bus.Publish(ctx, domain.Queue("projects"), domain.NewUniqueMessage("poison"))
	claimed, _ := q.Claim(ctx, 1)
	if err := q.DeadLetter(ctx, claimed[0]); err != nil {
		t.Fatalf("dead letter: %v", err)
	}

	dead, err := q.DeadLetters(ctx, 10)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	if n, _ := q.InFlight(ctx); n != 0 {
		t.Errorf("expected nothing in flight, got %d", n)
	}
}

func TestQueue_ReapRequeuesExpiredLeases(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()
	q := qs.open("projects")

	bus.Publish(ctx, domain.Queue("projects"), domain.NewUniqueMessage("a"))
	q.Claim(ctx, 1)

	if n, _ := q.Reap(ctx); n != 0 {
		t.Errorf("lease still valid, expected nothing reaped, got %d", n)
	}
	qs.clock.Advance(11 * time.Second)
	n, err := q.Reap(ctx)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 reaped, got %d", n)
	}
	if again, _ := q.Claim(ctx, 1); len(again) != 1 {
		t.Error("reaped job should be claimable")
	}
}

func TestQueue_UndecodableMemberIsDeadLettered(t *testing.T) {
	bus, qs := setupTestBus(t)
	ctx := context.Background()
	q := qs.open("projects")

	bus.client.ZAdd(ctx, queueKey("projects"), redis.Z{Score: float64(qs.clock.Now().UnixMicro()), Member: "not json"})
	claimed, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("expected nothing claimed, got %d", len(claimed))
	}
	if dead, _ := q.DeadLetters(ctx, 10); len(dead) != 1 {
		t.Errorf("expected the member in the dead letters, got %d", len(dead))
	}
}

func TestDeduplicator(t *testing.T) {
	client, mr := testRedis(t)
	d := NewDeduplicator(client, time.Hour)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "projects", "m1")
	if err != nil || seen {
		t.Fatalf("expected unseen, got %v (%v)", seen, err)
	}
	if err := d.MarkDone(ctx, "projects", "m1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if seen, _ := d.Seen(ctx, "projects", "m1"); !seen {
		t.Error("expected m1 seen by projects")
	}
	if seen, _ := d.Seen(ctx, "budgets", "m1"); seen {
		t.Error("groups must not share marks")
	}

	mr.FastForward(2 * time.Hour)
	if seen, _ := d.Seen(ctx, "projects", "m1"); seen {
		t.Error("mark should expire")
	}
}

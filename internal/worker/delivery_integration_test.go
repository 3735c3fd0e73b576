package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/engine"
	"github.com/Priya8975/marketplace/internal/store"
)

type fakeRecorder struct {
	mu          sync.Mutex
	attempts    []store.DeliveryAttemptRecord
	deadLetters []store.DeadLetterRecord
}

func (r *fakeRecorder) RecordDeliveryAttempt(_ context.Context, rec store.DeliveryAttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, rec)
	return nil
}

func (r *fakeRecorder) InsertDeadLetter(_ context.Context, rec store.DeadLetterRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadLetters = append(r.deadLetters, rec)
	return nil
}

func (r *fakeRecorder) snapshot() ([]store.DeliveryAttemptRecord, []store.DeadLetterRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.DeliveryAttemptRecord(nil), r.attempts...), append([]store.DeadLetterRecord(nil), r.deadLetters...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupDeliveryTest creates a deliverer backed by miniredis and an in-memory
// attempt recorder.
func setupDeliveryTest(t *testing.T, threshold int) (*redis.Client, *Deliverer, *fakeRecorder) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := testLogger()
	rec := &fakeRecorder{}
	cb := engine.NewCircuitBreaker(client, logger, threshold, time.Minute)
	return client, NewDeliverer(rec, cb, 5*time.Second, logger), rec
}

func testJob(endpoint string) DeliveryJob {
	wh := domain.Webhook{ID: uuid.NewString(), EndpointURL: endpoint, SecretKey: "test-secret"}
	return NewDeliveryJob(uuid.New(), wh, "Budget.Allocated", json.RawMessage(`{"amount":"1000"}`))
}

func TestDelivery_SuccessfulEndpoint(t *testing.T) {
	var receivedCount atomic.Int32
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedCount.Add(1)
		receivedHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, deliverer, rec := setupDeliveryTest(t, 5)
	job := testJob(server.URL)

	if err := deliverer.Deliver(context.Background(), Delivery[DeliveryJob]{Message: job, Attempt: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedCount.Load() != 1 {
		t.Errorf("expected 1 request to endpoint, got %d", receivedCount.Load())
	}
	if got := receivedHeaders.Get("X-Webhook-Event"); got != "Budget.Allocated" {
		t.Errorf("X-Webhook-Event = %q, want %q", got, "Budget.Allocated")
	}
	if got := receivedHeaders.Get("X-Webhook-ID"); got != job.MessageID {
		t.Errorf("X-Webhook-ID = %q, want %q", got, job.MessageID)
	}
	if got := receivedHeaders.Get("X-Webhook-Attempt"); got != "1" {
		t.Errorf("X-Webhook-Attempt = %q, want %q", got, "1")
	}
	if got := receivedHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}

	attempts, _ := rec.snapshot()
	if len(attempts) != 1 || attempts[0].Status != domain.DeliverySuccess {
		t.Fatalf("expected one successful attempt, got %+v", attempts)
	}
	if attempts[0].WebhookID != job.WebhookID || attempts[0].MessageID != job.MessageID {
		t.Errorf("attempt recorded for the wrong job: %+v", attempts[0])
	}
}

func TestDelivery_SignatureIsValid(t *testing.T) {
	var receivedSig string
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Webhook-Signature")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, deliverer, _ := setupDeliveryTest(t, 5)
	job := testJob(server.URL)

	if err := deliverer.Deliver(context.Background(), Delivery[DeliveryJob]{Message: job, Attempt: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifySignature(receivedBody, job.SecretKey, receivedSig) {
		t.Errorf("signature %q does not match body %s", receivedSig, receivedBody)
	}
}

func TestDelivery_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	_, deliverer, rec := setupDeliveryTest(t, 5)

	err := deliverer.Deliver(context.Background(), Delivery[DeliveryJob]{Message: testJob(server.URL), Attempt: 2})
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected a DeliveryError, got %v", err)
	}
	if de.StatusCode == nil || *de.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %v", de.StatusCode)
	}
	if isDiscarded(err) {
		t.Error("server errors must be retried")
	}

	attempts, _ := rec.snapshot()
	if len(attempts) != 1 || attempts[0].Status != domain.DeliveryFailed || attempts[0].ResponseBody != "boom" {
		t.Errorf("expected one failed attempt with body, got %+v", attempts)
	}
	if attempts[0].AttemptNumber != 2 {
		t.Errorf("expected attempt number 2, got %d", attempts[0].AttemptNumber)
	}
}

func TestDelivery_CircuitOpenSkipsEndpoint(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, deliverer, _ := setupDeliveryTest(t, 1)
	job := testJob(server.URL)
	ctx := context.Background()

	deliverer.Deliver(ctx, Delivery[DeliveryJob]{Message: job, Attempt: 1})
	err := deliverer.Deliver(ctx, Delivery[DeliveryJob]{Message: job, Attempt: 2})
	if err == nil {
		t.Fatal("expected an error while the circuit is open")
	}
	if hits.Load() != 1 {
		t.Errorf("expected the endpoint to be hit once, got %d", hits.Load())
	}
}

func TestDelivery_RetriedThroughQueueUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, deliverer, rec := setupDeliveryTest(t, 5)
	ctx := context.Background()

	bus := engine.NewBus[DeliveryJob](client, testLogger())
	if err := bus.Publish(ctx, domain.Queue(DeliveriesQueue), testJob(server.URL)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	consumer := NewConsumer(
		engine.NewQueue(client, DeliveriesQueue, time.Minute),
		engine.NewDeduplicator(client, time.Hour),
		deliverer.Deliver,
		func(j DeliveryJob) string { return j.WebhookID },
		testLogger(),
		ConsumerOptions{BaseBackoff: time.Millisecond, MaxAttempts: 3},
	)

	consumer.Poll(ctx)
	time.Sleep(5 * time.Millisecond)
	consumer.Poll(ctx)

	if hits.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", hits.Load())
	}
	attempts, dead := rec.snapshot()
	if len(attempts) != 2 || attempts[1].Status != domain.DeliverySuccess || attempts[1].AttemptNumber != 2 {
		t.Errorf("unexpected attempts %+v", attempts)
	}
	if len(dead) != 0 {
		t.Errorf("expected no dead letters, got %d", len(dead))
	}
}

func TestDelivery_ExhaustedGoesToDeadLetter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, deliverer, rec := setupDeliveryTest(t, 100)
	ctx := context.Background()

	bus := engine.NewBus[DeliveryJob](client, testLogger())
	job := testJob(server.URL)
	bus.Publish(ctx, domain.Queue(DeliveriesQueue), job)

	queue := engine.NewQueue(client, DeliveriesQueue, time.Minute)
	consumer := NewConsumer(
		queue,
		engine.NewDeduplicator(client, time.Hour),
		deliverer.Deliver,
		func(j DeliveryJob) string { return j.WebhookID },
		testLogger(),
		ConsumerOptions{BaseBackoff: time.Millisecond, MaxAttempts: 2},
	)
	consumer.OnDeadLetter(deliverer.DeadLetter)

	consumer.Poll(ctx)
	time.Sleep(5 * time.Millisecond)
	consumer.Poll(ctx)

	_, dead := rec.snapshot()
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	if dead[0].TotalAttempts != 2 || dead[0].LastHTTPStatus == nil || *dead[0].LastHTTPStatus != 500 {
		t.Errorf("unexpected dead letter %+v", dead[0])
	}
	if dead[0].MessageID != job.MessageID {
		t.Errorf("expected message %s, got %s", job.MessageID, dead[0].MessageID)
	}
	if parked, _ := queue.DeadLetters(ctx, 10); len(parked) != 1 {
		t.Errorf("expected the job parked in the queue dead letters, got %d", len(parked))
	}
}

package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker guards calls to an outside target (a webhook endpoint,
// an API) with state kept in Redis so every listener process shares it.
//
//   - Closed: calls go through, failures are counted.
//   - Open: calls are refused until the cooldown elapses.
//   - Half-open: calls go through; the next success closes the circuit
//     and the next failure opens it again.
type CircuitBreaker struct {
	client           *redis.Client
	logger           *slog.Logger
	failureThreshold int64
	cooldown         time.Duration
	now              func() time.Time
}

// CircuitBreakerState is the externally visible state of one target.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(client *redis.Client, logger *slog.Logger, failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		client:           client,
		logger:           logger,
		failureThreshold: int64(failureThreshold),
		cooldown:         cooldown,
		now:              time.Now,
	}
}

func cbKey(target string) string {
	return "cb:" + target
}

type cbRecord struct {
	state        string
	failures     int
	lastFailedAt int64
}

func (cb *CircuitBreaker) load(ctx context.Context, target string) (cbRecord, error) {
	data, err := cb.client.HGetAll(ctx, cbKey(target)).Result()
	if err != nil {
		return cbRecord{}, err
	}
	rec := cbRecord{state: data["state"]}
	rec.failures, _ = strconv.Atoi(data["failures"])
	rec.lastFailedAt, _ = strconv.ParseInt(data["last_failed_at"], 10, 64)
	if rec.state == "" {
		rec.state = StateClosed
	}
	return rec, nil
}

func (cb *CircuitBreaker) cooledDown(rec cbRecord) bool {
	return cb.now().Unix()-rec.lastFailedAt >= int64(cb.cooldown.Seconds())
}

// AllowRequest reports the state of target and whether a call may proceed.
// Redis failures fail open.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, target string) (string, bool) {
	rec, err := cb.load(ctx, target)
	if err != nil {
		cb.logger.Error("reading circuit breaker", "error", err, "target", target)
		return StateClosed, true
	}

	switch rec.state {
	case StateOpen:
		if !cb.cooledDown(rec) {
			return StateOpen, false
		}
		if err := cb.client.HSet(ctx, cbKey(target), "state", StateHalfOpen).Err(); err != nil {
			cb.logger.Error("moving circuit breaker to half-open", "error", err, "target", target)
		}
		cb.logger.Info("circuit breaker half-open", "target", target)
		return StateHalfOpen, true
	case StateHalfOpen:
		return StateHalfOpen, true
	default:
		return StateClosed, true
	}
}

// RecordSuccess closes the circuit of target.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, target string) {
	rec, _ := cb.load(ctx, target)
	if rec.state == StateClosed && rec.failures == 0 {
		return
	}
	if err := cb.client.HSet(ctx, cbKey(target), "state", StateClosed, "failures", 0).Err(); err != nil {
		cb.logger.Error("closing circuit breaker", "error", err, "target", target)
		return
	}
	if rec.state != StateClosed {
		cb.logger.Info("circuit breaker closed", "target", target)
	}
}

// RecordFailure counts a failed call and opens the circuit once the
// threshold is reached or when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, target string) {
	key := cbKey(target)
	rec, _ := cb.load(ctx, target)

	var failures *redis.IntCmd
	_, err := cb.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		failures = pipe.HIncrBy(ctx, key, "failures", 1)
		pipe.HSet(ctx, key, "last_failed_at", cb.now().Unix())
		return nil
	})
	if err != nil {
		cb.logger.Error("recording circuit breaker failure", "error", err, "target", target)
		return
	}

	next := StateClosed
	switch {
	case rec.state == StateHalfOpen:
		next = StateOpen
		cb.logger.Warn("circuit breaker re-opened", "target", target)
	case failures.Val() >= cb.failureThreshold:
		next = StateOpen
		if rec.state != StateOpen {
			cb.logger.Warn("circuit breaker opened",
				"target", target,
				"failures", failures.Val(),
				"threshold", cb.failureThreshold,
			)
		}
	}
	if err := cb.client.HSet(ctx, key, "state", next).Err(); err != nil {
		cb.logger.Error("updating circuit breaker", "error", err, "target", target)
	}
}

// GetState returns the state of target, reporting an open circuit whose
// cooldown elapsed as half-open.
func (cb *CircuitBreaker) GetState(ctx context.Context, target string) CircuitBreakerState {
	rec, err := cb.load(ctx, target)
	if err != nil {
		return CircuitBreakerState{State: StateClosed}
	}
	state := rec.state
	if state == StateOpen && cb.cooledDown(rec) {
		state = StateHalfOpen
	}
	out := CircuitBreakerState{State: state, Failures: rec.failures}
	if rec.lastFailedAt > 0 {
		out.LastFailedAt = time.Unix(rec.lastFailedAt, 0).UTC().Format(time.RFC3339)
	}
	return out
}

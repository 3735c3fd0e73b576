package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/engine"
)

// Delivery is a message handed to a handler with its attempt number.
type Delivery[M domain.Message] struct {
	Message    M
	Attempt    int
	EnqueuedAt time.Time
}

// Handler processes one message. A returned error triggers a retry unless
// it was wrapped with Discard.
type Handler[M domain.Message] func(ctx context.Context, d Delivery[M]) error

type discardError struct{ err error }

func (e discardError) Error() string { return e.err.Error() }
func (e discardError) Unwrap() error { return e.err }

// Discard marks err as permanent: the message is acked without retry.
func Discard(err error) error {
	if err == nil {
		return nil
	}
	return discardError{err: err}
}

func isDiscarded(err error) bool {
	var d discardError
	return errors.As(err, &d)
}

// ConsumerOptions tunes a Consumer. Zero values take defaults.
type ConsumerOptions struct {
	// Group names the consumer for deduplication; defaults to the queue name.
	Group        string
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (o *ConsumerOptions) defaults(queue string) {
	if o.Group == "" {
		o.Group = queue
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Minute
	}
}

// Consumer polls one bus queue and runs handler on every message. Messages
// with the same key are handled in queue order by the same worker.
type Consumer[M domain.Message] struct {
	queue        *engine.Queue
	dedup        *engine.Deduplicator
	handler      Handler[M]
	keyOf        func(M) string
	logger       *slog.Logger
	opts         ConsumerOptions
	onDeadLetter func(ctx context.Context, d Delivery[M], err error)
}

func NewConsumer[M domain.Message](
	queue *engine.Queue,
	dedup *engine.Deduplicator,
	handler Handler[M],
	keyOf func(M) string,
	logger *slog.Logger,
	opts ConsumerOptions,
) *Consumer[M] {
	opts.defaults(queue.Name())
	return &Consumer[M]{
		queue:   queue,
		dedup:   dedup,
		handler: handler,
		keyOf:   keyOf,
		logger:  logger.With("queue", queue.Name()),
		opts:    opts,
	}
}

// OnDeadLetter registers fn to run after a message exhausted its attempts.
func (c *Consumer[M]) OnDeadLetter(fn func(ctx context.Context, d Delivery[M], err error)) {
	c.onDeadLetter = fn
}

// Run polls the queue until ctx is cancelled, then waits for handlers in
// flight.
func (c *Consumer[M]) Run(ctx context.Context) error {
	pool := NewPool(c.opts.Workers, c.logger)
	pool.Start(ctx)
	defer pool.Stop()

	c.logger.Info("consumer started", "group", c.opts.Group, "workers", c.opts.Workers)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	reaper := time.NewTicker(30 * c.opts.PollInterval)
	defer reaper.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping")
			return nil
		case <-reaper.C:
			if n, err := c.queue.Reap(ctx); err != nil {
				c.logger.Error("failed to reap expired leases", "error", err)
			} else if n > 0 {
				c.logger.Warn("requeued expired leases", "count", n)
			}
		case <-ticker.C:
			c.poll(ctx, pool)
		}
	}
}

// Poll claims one batch and handles it to completion.
func (c *Consumer[M]) Poll(ctx context.Context) {
	pool := NewPool(c.opts.Workers, c.logger)
	pool.Start(ctx)
	c.poll(ctx, pool)
	pool.Stop()
}

func (c *Consumer[M]) poll(ctx context.Context, pool *Pool) {
	claimed, err := c.queue.Claim(ctx, c.opts.BatchSize)
	if err != nil {
		c.logger.Error("failed to poll queue", "error", err)
		return
	}

	for _, job := range claimed {
		var msg M
		if err := json.Unmarshal(job.Message, &msg); err != nil {
			c.logger.Error("failed to unmarshal message", "error", err)
			if err := c.queue.DeadLetter(ctx, job); err != nil {
				c.logger.Error("failed to dead-letter message", "error", err)
			}
			continue
		}
		pool.Submit(c.keyOf(msg), func(ctx context.Context) {
			c.handle(ctx, job, Delivery[M]{Message: msg, Attempt: job.Attempt, EnqueuedAt: job.EnqueuedAt})
		})
	}
}

func (c *Consumer[M]) handle(ctx context.Context, job engine.Claimed, d Delivery[M]) {
	id := d.Message.DeduplicationID()
	log := c.logger.With("message_id", id, "attempt", d.Attempt)

	seen, err := c.dedup.Seen(ctx, c.opts.Group, id)
	if err != nil {
		log.Error("failed to check deduplication", "error", err)
	}
	if seen {
		log.Debug("skipping duplicate message")
		c.ack(ctx, log, job)
		return
	}

	err = c.handler(ctx, d)
	switch {
	case err == nil:
		if err := c.dedup.MarkDone(ctx, c.opts.Group, id); err != nil {
			log.Error("failed to mark message done", "error", err)
		}
		c.ack(ctx, log, job)
	case isDiscarded(err):
		log.Warn("message discarded", "error", err)
		c.ack(ctx, log, job)
	case d.Attempt >= c.opts.MaxAttempts:
		log.Error("message exhausted retries", "error", err)
		if dlErr := c.queue.DeadLetter(ctx, job); dlErr != nil {
			log.Error("failed to dead-letter message", "error", dlErr)
		}
		if c.onDeadLetter != nil {
			c.onDeadLetter(ctx, d, err)
		}
	default:
		delay := c.backoff(d.Attempt)
		log.Warn("message failed, retrying", "error", err, "delay", delay)
		if err := c.queue.Retry(ctx, job, delay); err != nil {
			log.Error("failed to schedule retry", "error", err)
		}
	}
}

func (c *Consumer[M]) ack(ctx context.Context, log *slog.Logger, job engine.Claimed) {
	if err := c.queue.Ack(ctx, job); err != nil {
		log.Error("failed to ack message", "error", err)
	}
}

// backoff doubles BaseBackoff per attempt, capped at MaxBackoff.
func (c *Consumer[M]) backoff(attempt int) time.Duration {
	d := c.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.opts.MaxBackoff {
			return c.opts.MaxBackoff
		}
	}
	return d
}

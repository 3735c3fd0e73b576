package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/marketplace/internal/domain"
)

// Job is a queued message with its delivery attempt.
type Job struct {
	Message    json.RawMessage `json:"message"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func queueKey(name string) string    { return "queue:" + name }
func inflightKey(name string) string { return "inflight:" + name }
func exchangeKey(name string) string { return "exchange:" + name }
func dlqKey(name string) string      { return "dlq:" + name }

// Bus publishes messages to Redis backed queues. A queue is a sorted set
// scored by due time; an exchange is a set of bound queue names and
// publishing to it copies the message into each of them.
type Bus[M domain.Message] struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewBus[M domain.Message](client *redis.Client, logger *slog.Logger) *Bus[M] {
	return &Bus[M]{client: client, logger: logger, now: time.Now}
}

// Bind makes exchange copy its messages to queue.
func (b *Bus[M]) Bind(ctx context.Context, exchange, queue string) error {
	if err := b.client.SAdd(ctx, exchangeKey(exchange), queue).Err(); err != nil {
		return fmt.Errorf("binding %s to %s: %w", queue, exchange, err)
	}
	return nil
}

func (b *Bus[M]) Publish(ctx context.Context, dest domain.Destination, msg M) error {
	return b.PublishMany(ctx, dest, []M{msg})
}

// PublishMany enqueues msgs in one pipeline. Scores increase by one
// microsecond per message, ending at now, so consumers see them in slice
// order and all of them are due at once.
func (b *Bus[M]) PublishMany(ctx context.Context, dest domain.Destination, msgs []M) error {
	if len(msgs) == 0 {
		return nil
	}

	queues, err := b.resolve(ctx, dest)
	if err != nil {
		return err
	}
	if len(queues) == 0 {
		b.logger.Warn("no queue bound, messages dropped", "destination", dest.String(), "count", len(msgs))
		return nil
	}

	now := b.now()
	base := now.UnixMicro() - int64(len(msgs)-1)
	members := make([]redis.Z, 0, len(msgs))
	for i, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding message %s: %w", msg.DeduplicationID(), err)
		}
		job, err := json.Marshal(Job{Message: raw, Attempt: 1, EnqueuedAt: now.UTC()})
		if err != nil {
			return fmt.Errorf("encoding job %s: %w", msg.DeduplicationID(), err)
		}
		members = append(members, redis.Z{
			Score:  float64(base + int64(i)),
			Member: string(job),
		})
	}

	pipe := b.client.Pipeline()
	for _, q := range queues {
		pipe.ZAdd(ctx, queueKey(q), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing to %s: %w", dest, err)
	}

	b.logger.Debug("messages published",
		"destination", dest.String(),
		"queues", len(queues),
		"count", len(msgs),
	)
	return nil
}

func (b *Bus[M]) resolve(ctx context.Context, dest domain.Destination) ([]string, error) {
	if dest.Kind == domain.QueueDestination {
		return []string{dest.Name}, nil
	}
	queues, err := b.client.SMembers(ctx, exchangeKey(dest.Name)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading bindings of %s: %w", dest, err)
	}
	return queues, nil
}

// QueueDepth returns the number of messages waiting in a queue.
func (b *Bus[M]) QueueDepth(ctx context.Context, queue string) (int64, error) {
	return b.client.ZCard(ctx, queueKey(queue)).Result()
}

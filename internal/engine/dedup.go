package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator remembers which message ids a consumer group has handled.
type Deduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduplicator(client *redis.Client, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: client, ttl: ttl}
}

func seenKey(group, id string) string {
	return fmt.Sprintf("seen:%s:%s", group, id)
}

// Seen reports whether id was marked done for group.
func (d *Deduplicator) Seen(ctx context.Context, group, id string) (bool, error) {
	n, err := d.client.Exists(ctx, seenKey(group, id)).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", id, err)
	}
	return n > 0, nil
}

// MarkDone records id as handled for group.
func (d *Deduplicator) MarkDone(ctx context.Context, group, id string) error {
	if err := d.client.Set(ctx, seenKey(group, id), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("marking %s: %w", id, err)
	}
	return nil
}

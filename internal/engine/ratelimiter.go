package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding window limiter shared through Redis. Each key
// holds a sorted set of call timestamps.
type RateLimiter struct {
	client *redis.Client
	logger *slog.Logger
	window time.Duration
	now    func() time.Time
}

// slidingWindowScript drops entries older than the window, then records
// the call and returns 1 when fewer than limit remain, 0 otherwise.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window + 1000)
    return 1
end
return 0
`)

func NewRateLimiter(client *redis.Client, logger *slog.Logger, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{client: client, logger: logger, window: window, now: time.Now}
}

func rlKey(key string) string {
	return "rl:" + key
}

// Allow reports whether one more call on key fits in limit calls per
// window. A limit of zero disables limiting and Redis failures fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := rl.now()
	res, err := slidingWindowScript.Run(ctx, rl.client, []string{rlKey(key)},
		now.UnixMilli(), rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "key", key)
		return true
	}
	if res == 0 {
		rl.logger.Debug("rate limited", "key", key, "limit", limit)
		return false
	}
	return true
}

// Wait blocks until a call on key is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int) error {
	backoff := rl.window / 10
	for !rl.Allow(ctx, key, limit) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil
}

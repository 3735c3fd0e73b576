package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript moves up to ARGV[2] members due at ARGV[1] from the queue to
// the inflight set, scored by their lease deadline ARGV[3].
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
    redis.call('ZREM', KEYS[1], member)
    redis.call('ZADD', KEYS[2], ARGV[3], member)
end
return due
`)

// reapScript puts members whose lease expired before ARGV[1] back in the
// queue, due immediately.
var reapScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, member in ipairs(expired) do
    redis.call('ZREM', KEYS[2], member)
    redis.call('ZADD', KEYS[1], ARGV[1], member)
end
return #expired
`)

// Claimed is a job leased to one consumer until acked, retried or
// dead-lettered.
type Claimed struct {
	Job
	raw string
}

// Queue is the consumer side of a bus queue.
type Queue struct {
	client *redis.Client
	name   string
	lease  time.Duration
	now    func() time.Time
}

func NewQueue(client *redis.Client, name string, lease time.Duration) *Queue {
	return &Queue{client: client, name: name, lease: lease, now: time.Now}
}

func (q *Queue) Name() string { return q.name }

// Claim leases up to max due jobs. Members that do not decode are
// dead-lettered right away.
func (q *Queue) Claim(ctx context.Context, max int) ([]Claimed, error) {
	now := q.now()
	res, err := claimScript.Run(ctx, q.client,
		[]string{queueKey(q.name), inflightKey(q.name)},
		formatScore(now), max, formatScore(now.Add(q.lease)),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claiming from %s: %w", q.name, err)
	}

	claimed := make([]Claimed, 0, len(res))
	for _, raw := range res {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			if dlErr := q.moveToDLQ(ctx, raw); dlErr != nil {
				return claimed, dlErr
			}
			continue
		}
		claimed = append(claimed, Claimed{Job: job, raw: raw})
	}
	return claimed, nil
}

// Ack drops a handled job.
func (q *Queue) Ack(ctx context.Context, c Claimed) error {
	if err := q.client.ZRem(ctx, inflightKey(q.name), c.raw).Err(); err != nil {
		return fmt.Errorf("acking on %s: %w", q.name, err)
	}
	return nil
}

// Retry schedules the next attempt of a job after delay.
func (q *Queue) Retry(ctx context.Context, c Claimed, delay time.Duration) error {
	next := c.Job
	next.Attempt++
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding retry: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, inflightKey(q.name), c.raw)
		pipe.ZAdd(ctx, queueKey(q.name), redis.Z{
			Score:  float64(q.now().Add(delay).UnixMicro()),
			Member: string(raw),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("retrying on %s: %w", q.name, err)
	}
	return nil
}

// DeadLetter parks a job that will not be retried.
func (q *Queue) DeadLetter(ctx context.Context, c Claimed) error {
	return q.moveToDLQ(ctx, c.raw)
}

func (q *Queue) moveToDLQ(ctx context.Context, raw string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, inflightKey(q.name), raw)
		pipe.RPush(ctx, dlqKey(q.name), raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dead-lettering on %s: %w", q.name, err)
	}
	return nil
}

// Reap requeues jobs whose consumer died before acking them.
func (q *Queue) Reap(ctx context.Context) (int64, error) {
	n, err := reapScript.Run(ctx, q.client,
		[]string{queueKey(q.name), inflightKey(q.name)},
		formatScore(q.now()),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("reaping %s: %w", q.name, err)
	}
	return n, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, queueKey(q.name)).Result()
}

func (q *Queue) InFlight(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, inflightKey(q.name)).Result()
}

// DeadLetters returns up to limit dead-lettered jobs, oldest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]Job, error) {
	raws, err := q.client.LRange(ctx, dlqKey(q.name), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading dead letters of %s: %w", q.name, err)
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			job = Job{Message: json.RawMessage(strconv.Quote(raw))}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

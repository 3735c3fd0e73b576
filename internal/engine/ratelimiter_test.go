package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func setupTestRL(t *testing.T) (*RateLimiter, *fakeClock) {
	t.Helper()
	client, _ := testRedis(t)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(client, testLogger(), time.Second)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "github", 5) {
			t.Errorf("request %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "github", 3)
	}
	if rl.Allow(ctx, "github", 3) {
		t.Error("request should be blocked when over limit")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, clock := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "github", 2)
	}
	clock.Advance(1500 * time.Millisecond)
	if !rl.Allow(ctx, "github", 2) {
		t.Error("request should be allowed once the window moved on")
	}
}

func TestRateLimiter_ZeroLimitAllowsAll(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "github", 0) {
			t.Fatalf("request %d should be allowed with limit=0", i+1)
		}
	}
}

func TestRateLimiter_KeysAreIsolated(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "a", 2)
	}
	if rl.Allow(ctx, "a", 2) {
		t.Error("a should be blocked")
	}
	if !rl.Allow(ctx, "b", 2) {
		t.Error("b should be allowed")
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl, _ := setupTestRL(t)
	rl.Allow(context.Background(), "github", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "github", 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

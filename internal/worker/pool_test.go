package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPool_SameKeySamePartition(t *testing.T) {
	p := NewPool(8, testLogger())
	for _, key := range []string{"Project:1", "Budget:2", "x"} {
		first := p.partition(key)
		for i := 0; i < 10; i++ {
			if got := p.partition(key); got != first {
				t.Fatalf("key %q moved from partition %d to %d", key, first, got)
			}
		}
	}
}

func TestPool_RunsEverySubmittedTask(t *testing.T) {
	p := NewPool(4, testLogger())
	p.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 100; i++ {
		p.Submit(string(rune('a'+i%7)), func(context.Context) { ran.Add(1) })
	}
	p.Stop()

	if ran.Load() != 100 {
		t.Errorf("expected 100 tasks run, got %d", ran.Load())
	}
}

func TestPool_SerialPerKey(t *testing.T) {
	p := NewPool(4, testLogger())
	p.Start(context.Background())

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		p.Submit("same", func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	p.Stop()

	for i, n := range order {
		if n != i {
			t.Fatalf("tasks of one key ran out of order: %v", order)
		}
	}
}

func TestPool_SurvivesPanics(t *testing.T) {
	p := NewPool(1, testLogger())
	p.Start(context.Background())

	var ran atomic.Bool
	p.Submit("k", func(context.Context) { panic("boom") })
	p.Submit("k", func(context.Context) { ran.Store(true) })
	p.Stop()

	if !ran.Load() {
		t.Error("task after a panic should still run")
	}
}

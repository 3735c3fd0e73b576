package worker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
)

// Task is one unit of work run by the pool.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of goroutines. Each goroutine owns a
// partition, and tasks submitted with the same key always land on the same
// partition, so they run one at a time in submission order.
type Pool struct {
	partitions []chan Task
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a pool with the given number of workers.
func NewPool(numWorkers int, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	partitions := make([]chan Task, numWorkers)
	for i := range partitions {
		partitions[i] = make(chan Task, 16)
	}
	return &Pool{partitions: partitions, logger: logger}
}

// Start launches all worker goroutines. They run until Stop closes their
// partitions.
func (p *Pool) Start(ctx context.Context) {
	for i, tasks := range p.partitions {
		p.wg.Add(1)
		go p.worker(ctx, i, tasks)
	}
	p.logger.Debug("worker pool started", "num_workers", len(p.partitions))
}

// Submit queues task on the partition of key, blocking while it is full.
func (p *Pool) Submit(key string, task Task) {
	p.partitions[p.partition(key)] <- task
}

func (p *Pool) partition(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.partitions)))
}

// Stop closes the partitions and waits for queued tasks to finish.
func (p *Pool) Stop() {
	for _, tasks := range p.partitions {
		close(tasks)
	}
	p.wg.Wait()
	p.logger.Debug("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task) {
	defer p.wg.Done()

	for task := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("task panicked", "worker", id, "panic", r)
				}
			}()
			task(ctx)
		}()
	}
}

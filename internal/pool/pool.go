// Package pool provides a bounded worker pool for parallel stage execution.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Task is a unit of work executed by a pool worker.
type Task func(ctx context.Context)

type taskWrapper struct {
	task Task
	ctx  context.Context
}

// WorkerPool runs tasks on a fixed number of worker goroutines. A task that
// never returns occupies its worker for the pool's lifetime; the pool
// enforces no timeout.
type WorkerPool struct {
	tasks  chan taskWrapper
	wg     sync.WaitGroup
	closed atomic.Bool
	logger *zap.Logger

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// New creates a pool with the given number of workers and queue capacity.
// Workers are started eagerly; Close must be called to release them.
func New(workers, queueSize int, logger *zap.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &WorkerPool{
		tasks:  make(chan taskWrapper, queueSize),
		logger: logger.With(zap.String("component", "worker_pool")),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a task. It blocks when the queue is full until space frees
// up or ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	wrapper := taskWrapper{task: task, ctx: ctx}
	select {
	case p.tasks <- wrapper:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for wrapper := range p.tasks {
		p.run(wrapper)
	}
}

func (p *WorkerPool) run(wrapper taskWrapper) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("pool task panicked", zap.Any("panic", r))
			return
		}
		p.completed.Add(1)
	}()
	wrapper.task(wrapper.ctx)
}

// Close stops accepting tasks, drains the queue and waits for all workers.
func (p *WorkerPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// Stats reports pool counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
}

// Stats returns a snapshot of the pool counters.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

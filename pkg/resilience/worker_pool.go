package resilience

import (
	"context"
	"errors"
	"sync"
)

var ErrWorkerPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs submitted jobs on a fixed number of goroutines over a
// bounded queue. Saga rollback uses it to delete a failed write's assets in
// parallel without an unbounded goroutine burst.
type WorkerPool struct {
	jobs    chan func()
	workers sync.WaitGroup

	// mu orders Submit against Close: submitters hold it shared for the
	// whole send, so the channel can never be closed under an in-flight
	// send.
	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{jobs: make(chan func(), queueSize)}
	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *WorkerPool) run() {
	defer p.workers.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit queues one job, blocking while the queue is full. The context only
// bounds the wait for a queue slot, not the job itself.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Close stops accepting jobs. Queued jobs still run; idempotent. Blocks
// until in-flight Submit calls have landed or given up.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
}

// Wait blocks until all workers have drained the queue. Call Close first.
func (p *WorkerPool) Wait() {
	p.workers.Wait()
}

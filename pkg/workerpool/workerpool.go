package workerpool

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to the Pool.
// It returns an error to indicate failure; callers may treat errors as they see fit.
type Job func(ctx context.Context) error

// Pool runs jobs using a fixed number of goroutines.
// The importer uses it to normalize table rows and the service to run batches
// of analyses.
type Pool struct {
	jobs    chan Job
	quit    chan struct{}
	wg      sync.WaitGroup
	workers int

	// senders tracks Submit calls that passed the closed check, so Close
	// can wait for them before closing jobs.
	senders sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

// New creates a pool with the specified number of workers and job queue capacity.
func New(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &Pool{
		jobs:    make(chan Job, queue),
		quit:    make(chan struct{}),
		workers: workers,
	}
}

// Workers returns the number of goroutines Start launches.
func (p *Pool) Workers() int { return p.workers }

// Start begins the worker goroutines and listens for jobs until ctx is done or Close is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					// Job errors are reported through whatever the job closes over.
					_ = job(ctx)
				}
			}
		}()
	}
}

// Submit enqueues a job, blocking while the queue is full.
// Returns ErrPoolClosed if the pool is closed before the job is accepted.
func (p *Pool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx is Submit that gives up when ctx is done.
func (p *Pool) SubmitCtx(ctx context.Context, job Job) error {
	p.closeMu.RLock()
	if p.closed {
		p.closeMu.RUnlock()
		return ErrPoolClosed
	}
	p.senders.Add(1)
	p.closeMu.RUnlock()
	defer p.senders.Done()

	select {
	case p.jobs <- job:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs and waits for workers to finish the queued ones.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.closeMu.Unlock()

	p.senders.Wait()
	close(p.jobs)
	p.wg.Wait()
}

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }

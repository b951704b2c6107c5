package jobs

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool is a bounded, non-blocking job scheduler.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	group  errgroup.Group
	size   int
	active atomic.Int64
	queued atomic.Int64
	closed atomic.Bool
}

// NewPool creates a pool with n slots. n <= 0 means one per CPU.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(n)),
		size:   n,
	}
}

// Submit schedules job and returns immediately. The job always runs, even
// after Close; it then receives a cancelled context.
func (p *Pool) Submit(job func(ctx context.Context)) {
	p.queued.Add(1)
	p.group.Go(func() error {
		defer p.queued.Add(-1)
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			job(p.ctx)
			return nil
		}
		defer p.sem.Release(1)
		p.active.Add(1)
		defer p.active.Add(-1)
		job(p.ctx)
		return nil
	})
}

// Wait blocks until every submitted job has returned.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

// Close cancels the context passed to jobs. Running jobs are not
// interrupted; queued ones run immediately with the cancelled context.
func (p *Pool) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.cancel()
	}
	return nil
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Active returns the number of jobs holding a slot.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Queued returns the number of submitted jobs that have not returned.
func (p *Pool) Queued() int { return int(p.queued.Load()) }

package jobs

import (
	"context"
	"sync"
)

// Manual queues jobs and runs them only on RunNext, RunAt or RunAll.
type Manual struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []func(ctx context.Context)
	mu     sync.Mutex
}

// NewManual creates an empty manual scheduler.
func NewManual() *Manual {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manual{ctx: ctx, cancel: cancel}
}

// Submit queues job.
func (m *Manual) Submit(job func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

// Pending returns the number of queued jobs.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// RunNext runs the oldest queued job on the calling goroutine.
func (m *Manual) RunNext() bool {
	return m.RunAt(0)
}

// RunAt runs the i-th queued job, counting from the oldest.
func (m *Manual) RunAt(i int) bool {
	m.mu.Lock()
	if i < 0 || i >= len(m.jobs) {
		m.mu.Unlock()
		return false
	}
	job := m.jobs[i]
	m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
	m.mu.Unlock()

	job(m.ctx)
	return true
}

// RunLast runs the newest queued job.
func (m *Manual) RunLast() bool {
	return m.RunAt(m.Pending() - 1)
}

// RunAll runs queued jobs, including ones submitted while running, until
// none are left. It returns how many ran.
func (m *Manual) RunAll() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}

// Wait runs every queued job.
func (m *Manual) Wait() {
	m.RunAll()
}

// Close cancels the context passed to jobs run afterwards.
func (m *Manual) Close() error {
	m.cancel()
	return nil
}

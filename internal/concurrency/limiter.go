// Package concurrency implements the bounded worker pool shared by
// the query orchestrator and the correlation engine: a fixed cap on
// concurrent tasks plus a pacing delay between launches.
package concurrency

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sapcc/alertmagnet/internal/errs"
)

// Task is a unit of work submitted to a Limiter.
type Task func(ctx context.Context) error

// Limiter bounds concurrent execution of submitted tasks to N at a
// time, staggering launches by a configured delay. It guarantees no
// task is ever dropped and that cancellation aborts pending launches
// while still awaiting in-flight ones.
type Limiter struct {
	sem     *semaphore.Weighted
	pacer   *rate.Limiter
	tasks   []Task
	mu      sync.Mutex
	started bool
}

// New builds a Limiter with concurrency cap n and inter-launch delay
// delay. A zero delay disables pacing.
func New(n int, delay time.Duration) *Limiter {
	var pacer *rate.Limiter
	if delay > 0 {
		pacer = rate.NewLimiter(rate.Every(delay), 1)
	}

	return &Limiter{
		sem:   semaphore.NewWeighted(int64(n)),
		pacer: pacer,
	}
}

// Submit enqueues a task and returns its opaque handle (its index in
// submission order). It returns an errs.ErrInvalidQueryQueue-wrapped
// error if RunAll has already started draining; late submission is a
// programmer error.
func (l *Limiter) Submit(task Task) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return 0, errs.InvalidQueryQueue("submit after RunAll has started")
	}

	l.tasks = append(l.tasks, task)
	return len(l.tasks) - 1, nil
}

// RunAll launches every submitted task, pacing launches by the
// configured delay, and blocks until all finish. It returns the first
// non-nil error encountered; other tasks are still awaited to
// completion. Cancelling ctx aborts any launches not yet started, but
// in-flight tasks are always awaited.
func (l *Limiter) RunAll(ctx context.Context) error {
	l.mu.Lock()
	l.started = true
	tasks := l.tasks
	l.mu.Unlock()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for _, task := range tasks {
		if l.pacer != nil {
			if err := l.pacer.Wait(ctx); err != nil {
				break
			}
		}

		if err := l.sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			defer l.sem.Release(1)

			if err := t(ctx); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(task)
	}

	wg.Wait()
	return firstErr
}

// Package gate implements a bounded-concurrency executor that rejects work
// instead of queueing it without limit.
package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RidgeA/bus-rpc/internal/logging"
	"github.com/RidgeA/bus-rpc/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Task is a unit of work run by the Gate. A returned error is logged.
type Task func() error

// Option configures a Gate.
type Option func(*Gate)

// Gate runs at most workers tasks at a time and holds at most queue more
// waiting for a worker. Anything beyond that is rejected by Submit.
//
// Thread Safety:
//   - Submit and Shutdown are safe for concurrent use
//   - A panicking or failing task is logged and never affects other tasks
type Gate struct {
	admit *semaphore.Weighted
	run   *semaphore.Weighted

	logger     types.Logger
	onInflight func(n int)

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inflight atomic.Int64
}

// WithLogger sets the logger used for task failures.
func WithLogger(logger types.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithInflightObserver registers fn to be told the number of running tasks
// whenever it changes.
func WithInflightObserver(fn func(n int)) Option {
	return func(g *Gate) {
		g.onInflight = fn
	}
}

// New creates a Gate with the given number of workers and extra queue slots.
// Workers below 1 are treated as 1, a negative queue as 0.
func New(workers, queue int, opts ...Option) *Gate {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}

	g := &Gate{
		admit:      semaphore.NewWeighted(int64(workers + queue)),
		run:        semaphore.NewWeighted(int64(workers)),
		logger:     logging.NewNop(),
		onInflight: func(int) {},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Submit admits task if a worker or queue slot is free and reports whether it
// did. A rejected task is never run. Submit never blocks.
func (g *Gate) Submit(task Task) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return false
	}

	if !g.admit.TryAcquire(1) {
		return false
	}

	g.wg.Add(1)
	go g.execute(task)

	return true
}

// Inflight returns the number of tasks currently running.
func (g *Gate) Inflight() int {
	return int(g.inflight.Load())
}

// Closed reports whether Close or Shutdown has been called.
func (g *Gate) Closed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.closed
}

// Close stops admitting tasks without waiting for admitted ones.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Shutdown stops admitting tasks and waits until every admitted task finished
// or ctx is done. Safe to call more than once.
func (g *Gate) Shutdown(ctx context.Context) error {
	g.Close()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain admission gate: %w", ctx.Err())
	}
}

func (g *Gate) execute(task Task) {
	defer g.wg.Done()
	defer g.admit.Release(1)

	// cannot fail with a background context
	_ = g.run.Acquire(context.Background(), 1)
	defer g.run.Release(1)

	g.onInflight(int(g.inflight.Add(1)))
	defer func() {
		g.onInflight(int(g.inflight.Add(-1)))
	}()

	if err := runSafely(task); err != nil {
		g.logger.Error("task failed", "error", fmt.Sprintf("%+v", err))
	}
}

func runSafely(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task panicked: %v", r)
		}
	}()

	return task()
}

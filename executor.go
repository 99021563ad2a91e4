package otlpz

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Executor runs detached tasks such as span exports. Callers hand work off
// and move on; Wait and Close let the owner drain what is still in flight.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Executor struct {
	group   errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	idle    chan struct{} // closed whenever pending is zero
	mu      sync.Mutex
	pending int
	closed  bool
	limited bool
	dropped atomic.Uint64
}

// NewExecutor creates an executor. A positive limit caps the number of tasks
// running at once; tasks submitted beyond it are refused with
// ErrExecutorSaturated instead of blocking the caller.
func NewExecutor(limit int) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	e := &Executor{ctx: ctx, cancel: cancel, idle: idle}
	if limit > 0 {
		e.group.SetLimit(limit)
		e.limited = true
	}
	return e
}

// Go schedules task and returns immediately. The task's context is
// cancelled if Close gives up waiting for it.
func (e *Executor) Go(task func(ctx context.Context)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.dropped.Add(1)
		return ErrExecutorClosed
	}
	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending++
	e.mu.Unlock()

	run := func() error {
		defer e.taskDone()
		task(e.ctx)
		return nil
	}

	if !e.limited {
		e.group.Go(run)
		return nil
	}
	if !e.group.TryGo(run) {
		e.taskDone()
		e.dropped.Add(1)
		return ErrExecutorSaturated
	}
	return nil
}

func (e *Executor) taskDone() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending--
	if e.pending == 0 {
		close(e.idle)
	}
}

// Pending returns the number of tasks scheduled and not yet finished.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Dropped returns the number of tasks refused by Go.
func (e *Executor) Dropped() uint64 {
	return e.dropped.Load()
}

// Wait blocks until no task is pending or ctx is done. Tasks scheduled while
// waiting extend the wait.
func (e *Executor) Wait(ctx context.Context) error {
	for {
		e.mu.Lock()
		idle, pending := e.idle, e.pending
		e.mu.Unlock()

		if pending == 0 {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close refuses new tasks and waits for running ones. If ctx ends first the
// remaining tasks are cancelled and ctx's error is returned.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	defer e.cancel()
	if err := e.Wait(ctx); err != nil {
		return err
	}
	return e.group.Wait()
}

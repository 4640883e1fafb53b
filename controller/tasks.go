// Package controller holds the per-screen fetch and submit logic. Controllers
// are thin: they validate input, call the API, and keep just enough state to
// render. Work started on behalf of a screen runs on a Tasks group tied to the
// screen's lifetime, so nothing updates a screen that is gone.
package controller

import (
	"context"
	"sync"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
)

// Tasks is a group of background work owned by one screen.
type Tasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// Held while results are applied.
	deliverMu sync.Mutex
}

// NewTasks returns a group whose work is canceled when parent is done or
// Close is called.
func NewTasks(parent context.Context) *Tasks {
	ctx, cancel := context.WithCancel(parent)
	return &Tasks{ctx: ctx, cancel: cancel}
}

// Context is canceled when the group is closed.
func (t *Tasks) Context() context.Context {
	return t.ctx
}

// Spawn runs fn in the background. Errors are logged. It is a no-op once the
// group is closed.
func (t *Tasks) Spawn(fn func(ctx context.Context) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Errorw(t.ctx, "controller: recovered from panic",
					"error", r, "error.stack_trace", errors.Wrap(r, 2).MinimalStack(0, 5))
			}
		}()
		if err := fn(t.ctx); err != nil && t.ctx.Err() == nil {
			logging.Warnw(t.ctx, "controller: task failed", "error", err)
		}
	}()
}

// Deliver calls apply unless the group has been closed. Close waits for an
// in-flight apply, so a screen never sees an update after Close returns.
func (t *Tasks) Deliver(apply func()) bool {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()
	if t.isClosed() {
		return false
	}
	apply()
	return true
}

func (t *Tasks) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close cancels running work, waits for it to return and drops any results
// still to come.
func (t *Tasks) Close() {
	t.deliverMu.Lock()
	t.mu.Lock()
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	t.deliverMu.Unlock()
	if already {
		return
	}

	t.cancel()
	t.wg.Wait()
}

// Go fetches in the background and hands the result to apply on the same
// group, unless the group was closed in the meantime.
func Go[T any](t *Tasks, fetch func(ctx context.Context) (T, error), apply func(T, error)) {
	t.Spawn(func(ctx context.Context) error {
		v, err := fetch(ctx)
		t.Deliver(func() { apply(v, err) })
		return err
	})
}

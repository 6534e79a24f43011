// Package counter tracks the number of live connections and lets a
// shutdown path wait for that number to drain to zero.
package counter

import (
	"context"
	"sync"
	"sync/atomic"
)

// Counter is a process-wide count of live connections. Add and Done use
// atomic operations only; the mutex guards the waiter list and is never
// held across I/O.
type Counter struct {
	n atomic.Int64

	mu      sync.Mutex
	waiters []chan struct{}
}

// New creates a Counter starting at zero.
func New() *Counter {
	return &Counter{}
}

// Add records one admitted connection.
func (c *Counter) Add() {
	c.n.Add(1)
}

// Done records the end of one connection. It must be called exactly once
// per Add. When the count reaches zero all pending WaitZero calls are
// released.
func (c *Counter) Done() {
	if c.n.Add(-1) == 0 {
		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		c.mu.Unlock()

		for _, ch := range waiters {
			close(ch)
		}
	}
}

// Count returns the current number of live connections.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// WaitZero blocks until the count reaches zero or the context is
// cancelled. A count that is already zero returns immediately. The wait
// is notification-based, not polling.
func (c *Counter) WaitZero(ctx context.Context) error {
	ch := make(chan struct{})

	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	// Check after registering so a drop to zero in between is not missed.
	if c.n.Load() == 0 {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

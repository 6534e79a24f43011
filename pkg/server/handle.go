package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"penumbra-x/tlserve/pkg/counter"
)

// Handle is the control plane of a running Server: it exposes the bound
// addresses, the live connection count, and the graceful-shutdown
// trigger. It is created before the server starts and stays valid after
// the server stops.
type Handle struct {
	counter *counter.Counter

	mu        sync.Mutex
	addrs     []net.Addr
	addrReady chan struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	timeout      time.Duration

	finishOnce sync.Once
	done       chan struct{}
}

func newHandle() *Handle {
	return &Handle{
		counter:    counter.New(),
		addrReady:  make(chan struct{}),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Addr returns the first bound address, waiting for the server to bind
// if necessary.
func (h *Handle) Addr(ctx context.Context) (net.Addr, error) {
	addrs, err := h.Addrs(ctx)
	if err != nil {
		return nil, err
	}
	return addrs[0], nil
}

// Addrs returns all bound addresses, waiting for the server to bind if
// necessary. It fails if the server stopped without ever binding, e.g.
// after a startup error.
func (h *Handle) Addrs(ctx context.Context) ([]net.Addr, error) {
	select {
	case <-h.addrReady:
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.addrs) == 0 {
		return nil, fmt.Errorf("server stopped before binding")
	}
	return append([]net.Addr(nil), h.addrs...), nil
}

// ConnCount returns the number of live connections. Safe to call at any
// time; zero before the server starts and after it stops.
func (h *Handle) ConnCount() int64 {
	return h.counter.Count()
}

// Shutdown stops the server from accepting new connections and lets
// in-flight connections finish, however long they take. Idempotent: the
// first call wins, later calls are no-ops. Calling it before the server
// starts makes the server drain immediately on startup.
func (h *Handle) Shutdown() {
	h.trigger(0)
}

// ShutdownTimeout is Shutdown with a drain bound: connections still
// open after d are forcibly closed. The first shutdown call fixes the
// timeout; later calls neither extend nor restart it.
func (h *Handle) ShutdownTimeout(d time.Duration) {
	h.trigger(d)
}

// GracefulShutdown triggers Shutdown and blocks until the server has
// fully stopped or ctx is cancelled.
func (h *Handle) GracefulShutdown(ctx context.Context) error {
	h.trigger(0)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the server has fully stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) trigger(timeout time.Duration) {
	h.shutdownOnce.Do(func() {
		h.timeout = timeout
		close(h.shutdownCh)
	})
}

func (h *Handle) requested() bool {
	select {
	case <-h.shutdownCh:
		return true
	default:
		return false
	}
}

// graceTimeout is only read after shutdownCh is closed, so the write in
// trigger happens before.
func (h *Handle) graceTimeout() time.Duration {
	return h.timeout
}

func (h *Handle) publishAddrs(addrs []net.Addr) {
	h.mu.Lock()
	h.addrs = addrs
	h.mu.Unlock()
	close(h.addrReady)
}

func (h *Handle) finish() {
	h.finishOnce.Do(func() {
		close(h.done)
	})
}

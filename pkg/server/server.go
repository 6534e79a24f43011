// Package server ties listeners, the acceptor pipeline, and a protocol
// engine together: it accepts raw connections, runs each through the
// configured acceptor (counting, TLS handshake), derives a handler for
// the connection, and hands both to the engine. A Handle observes and
// controls the whole thing from outside.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"penumbra-x/tlserve/pkg/accept"
	"penumbra-x/tlserve/pkg/engine"
	"penumbra-x/tlserve/pkg/handler"
	"penumbra-x/tlserve/pkg/log"
)

// ErrAborted marks connections that were forcibly closed because the
// shutdown timeout elapsed before they finished.
var ErrAborted = errors.New("connection aborted during shutdown")

// Config describes a server. Addrs and Listeners may be combined; at
// least one of them must be non-empty.
type Config struct {
	// Addrs are "host:port" strings to bind TCP listeners on.
	Addrs []string

	// Listeners are already-open listeners handed in by the caller,
	// e.g. inherited sockets or the transport package's ws/kcp/muxed
	// listeners. The server owns them once Serve is called.
	Listeners []net.Listener

	// Factory derives one handler per connection. Required.
	Factory handler.Factory

	// Acceptor transforms each accepted connection before protocol
	// service, e.g. a TLS handshake acceptor. Defaults to the identity
	// acceptor (plaintext pass-through). Connection counting is always
	// applied by the server itself, in front of this acceptor.
	Acceptor accept.Acceptor

	// Engine drives negotiated connections. Defaults to engine.Default().
	Engine engine.Engine

	// Logger for accept-loop events. Nil discards.
	Logger *log.Logger

	// OnConnError receives per-connection failures: handshake errors,
	// protocol-engine errors, shutdown aborts. They are never fatal to
	// the server. Nil logs them through Logger.
	OnConnError func(error)
}

// Validate reports configuration errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Factory == nil {
		errs = append(errs, fmt.Errorf("a handler factory is required"))
	}
	if len(c.Addrs) == 0 && len(c.Listeners) == 0 {
		errs = append(errs, fmt.Errorf("at least one address or listener is required"))
	}

	return errs
}

// Server runs one accept loop per listener and one task per accepted
// connection. Use New, then Serve exactly once.
type Server struct {
	cfg    Config
	handle *Handle
}

// New creates a Server. The Handle is usable immediately, including for
// requesting shutdown before Serve is called.
func New(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		handle: newHandle(),
	}
}

// Handle returns the server's control handle.
func (s *Server) Handle() *Handle {
	return s.handle
}

// Serve binds the configured addresses and serves until shutdown is
// requested through the Handle or ctx is cancelled. Cancelling ctx is a
// hard stop: remaining connections are closed rather than drained.
//
// A bind failure closes any listener already opened and returns the
// error; nothing keeps running. Per-connection failures never end
// Serve. If every listener fails, Serve returns their joined errors.
func (s *Server) Serve(ctx context.Context) error {
	// Finish on every exit, failed startup included, so Handle waiters
	// always observe the terminal state.
	defer s.handle.finish()

	if errs := s.cfg.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	pipeline := s.cfg.Acceptor
	if pipeline == nil {
		pipeline = accept.Identity()
	}
	eng := s.cfg.Engine
	if eng == nil {
		eng = engine.Default()
	}

	listeners := append([]net.Listener(nil), s.cfg.Listeners...)
	for _, addr := range s.cfg.Addrs {
		l, err := listenTCP(addr)
		if err != nil {
			closeAll(listeners)
			return err
		}
		listeners = append(listeners, l)
	}

	addrs := make([]net.Addr, len(listeners))
	for i, l := range listeners {
		addrs[i] = l.Addr()
	}
	s.handle.publishAddrs(addrs)

	// A shutdown requested before startup is honored before a single
	// connection can be admitted.
	if s.handle.requested() {
		closeAll(listeners)
		return nil
	}

	connCtx, abortConns := context.WithCancel(context.Background())
	defer abortConns()

	run := &running{
		server:   s,
		counting: accept.Counting(s.handle.counter),
		pipeline: pipeline,
		engine:   eng,
		connCtx:  connCtx,
		conns:    make(map[net.Conn]struct{}),
	}

	// Buffered so loops can always deliver their exit reason, even
	// once nobody is listening.
	loopErrs := make(chan error, len(listeners))
	for _, l := range listeners {
		go func(l net.Listener) {
			loopErrs <- run.acceptLoop(l)
		}(l)
	}

	var failures []error
	alive := len(listeners)
	for {
		select {
		case <-s.handle.shutdownCh:
			closeAll(listeners)
			return s.drain(ctx, run, abortConns)

		case <-ctx.Done():
			closeAll(listeners)
			run.abort()
			abortConns()
			s.handle.counter.WaitZero(context.Background())
			return nil

		case err := <-loopErrs:
			alive--
			if err != nil {
				s.cfg.Logger.ErrorMsg("Listener failed: %s\n", err)
				failures = append(failures, err)
			}
			if alive == 0 {
				run.abort()
				abortConns()
				s.handle.counter.WaitZero(context.Background())
				return errors.Join(failures...)
			}
		}
	}
}

// drain waits for in-flight connections to finish. The wait resolves on
// whichever comes first: the connection counter reaching zero, the
// shutdown timeout elapsing, or ctx being cancelled; past the first
// trigger the others are no-ops.
func (s *Server) drain(ctx context.Context, run *running, abortConns context.CancelFunc) error {
	waitCtx := ctx
	if d := s.handle.graceTimeout(); d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := s.handle.counter.WaitZero(waitCtx); err != nil {
		run.abort()
		abortConns()
		s.handle.counter.WaitZero(context.Background())
	}
	return nil
}

// running is the per-Serve state shared by accept loops and connection
// tasks.
type running struct {
	server   *Server
	counting accept.Acceptor
	pipeline accept.Acceptor
	engine   engine.Engine
	connCtx  context.Context

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	aborted bool
}

// acceptLoop accepts until the listener is closed or fails for good.
// Transient accept errors are retried with backoff; anything else ends
// this listener only.
func (r *running) acceptLoop(l net.Listener) error {
	logger := r.server.cfg.Logger

	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else if delay *= 2; delay > time.Second {
					delay = time.Second
				}
				logger.VerboseMsg("Accept(): %v, retrying in %v", err, delay)
				time.Sleep(delay)
				continue
			}
			return fmt.Errorf("Accept(): %w", err)
		}
		delay = 0

		// Admit into the counter here, on the accept loop: once spawned
		// the connection could otherwise slip past a drain's WaitZero.
		admitted, _, _ := r.counting.Accept(r.connCtx, conn, r.server.cfg.Factory)

		logger.VerboseMsg("New connection from %s", conn.RemoteAddr())
		go r.handleConn(admitted)
	}
}

// handleConn runs one connection: acceptor pipeline, handler
// derivation, protocol engine. Failures are reported and isolated.
func (r *running) handleConn(raw net.Conn) {
	if !r.track(raw) {
		raw.Close()
		return
	}

	conn, factory, err := r.pipeline.Accept(r.connCtx, raw, r.server.cfg.Factory)
	if err != nil {
		r.untrack(raw)
		r.server.reportConnError(r.isAborted(), err)
		return
	}

	if !r.swapTrack(raw, conn) {
		conn.Close()
		return
	}
	defer r.untrack(conn)
	defer conn.Close()

	h := factory.NewHandler(handler.Info{
		LocalAddr:  conn.LocalAddr(),
		RemoteAddr: conn.RemoteAddr(),
		Protocol:   engine.NegotiatedProtocol(conn),
	})

	if err := r.engine.Serve(r.connCtx, conn, h); err != nil {
		r.server.reportConnError(r.isAborted(), err)
	}
}

// track registers a connection for forced closure. Returns false if the
// abort already happened, in which case the caller must close the
// connection itself.
func (r *running) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aborted {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// swapTrack atomically replaces the tracked raw connection with its
// negotiated wrapper, so an abort racing with the pipeline cannot miss
// the connection.
func (r *running) swapTrack(old, new net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, old)
	if r.aborted {
		return false
	}
	r.conns[new] = struct{}{}
	return true
}

func (r *running) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
}

// abort force-closes every live connection. Closing the stream is what
// releases its counter slot, so the drain completes even for tasks
// stuck in I/O.
func (r *running) abort() {
	r.mu.Lock()
	r.aborted = true
	conns := make([]net.Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[net.Conn]struct{})
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (r *running) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func (s *Server) reportConnError(aborted bool, err error) {
	if aborted {
		err = fmt.Errorf("%w: %v", ErrAborted, err)
	}
	if s.cfg.OnConnError != nil {
		s.cfg.OnConnError(err)
		return
	}
	s.cfg.Logger.ErrorMsg("Handling connection: %s\n", err)
}

// isClosed matches the error shapes the supported listeners produce
// once closed; kcp surfaces a closed pipe rather than net.ErrClosed.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "use of closed network connection")
}

// listenTCP binds a TCP listener the way the rest of the codebase does:
// resolve first for a clear error, then listen.
func listenTCP(addr string) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	l, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}
	return l, nil
}

func closeAll(listeners []net.Listener) {
	for _, l := range listeners {
		l.Close()
	}
}

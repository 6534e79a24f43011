package engine

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTP1 serves a single connection with net/http's HTTP/1.x machinery.
// The zero value is ready to use.
type HTTP1 struct {
	// ReadHeaderTimeout and IdleTimeout are copied onto the underlying
	// http.Server; zero means no limit.
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// Serve drives conn until it closes, the handler hijacks it, or ctx is
// cancelled.
func (e *HTTP1) Serve(ctx context.Context, conn net.Conn, h http.Handler) error {
	done := make(chan struct{})
	var once sync.Once

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: e.ReadHeaderTimeout,
		IdleTimeout:       e.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
		ConnState: func(_ net.Conn, state http.ConnState) {
			// Hijacked connections leave our ownership for good, so
			// both states end this engine's involvement.
			if state == http.StateClosed || state == http.StateHijacked {
				once.Do(func() { close(done) })
			}
		},
	}

	// Serve returns once the single-conn listener is exhausted while
	// the connection is still being handled on its own goroutine.
	go srv.Serve(&oneConnListener{conn: conn, addr: conn.LocalAddr()})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Close()
		<-done
		return ctx.Err()
	}
}

// oneConnListener yields its connection once, then reports exhaustion.
type oneConnListener struct {
	mu   sync.Mutex
	conn net.Conn
	addr net.Addr
}

func (l *oneConnListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil, io.EOF
	}
	conn := l.conn
	l.conn = nil
	return conn, nil
}

func (l *oneConnListener) Close() error {
	return nil
}

func (l *oneConnListener) Addr() net.Addr {
	return l.addr
}

// Package ws exposes WebSocket connections as a net.Listener: an HTTP
// server accepts upgrade requests and each established socket surfaces
// as one net.Conn stream. Useful for serving through proxies that only
// pass HTTP.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Subprotocol negotiated with connecting peers.
const Subprotocol = "bin"

// Listener accepts WebSocket upgrades and yields each socket as a
// net.Conn. Implements net.Listener.
type Listener struct {
	nl    net.Listener
	srv   *http.Server
	conns chan net.Conn

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Listen binds addr and starts serving upgrade requests.
func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	nl, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		nl:     nl,
		conns:  make(chan net.Conn),
		ctx:    ctx,
		cancel: cancel,
	}

	l.srv = &http.Server{
		Handler: http.HandlerFunc(l.upgrade),

		// Upgrade requests are small; the sockets themselves are
		// long-lived and exempt from these limits.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go l.srv.Serve(nl)

	return l, nil
}

// Accept returns the next established WebSocket as a net.Conn.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.ctx.Done():
		return nil, net.ErrClosed
	}
}

// Close stops accepting upgrades and closes the underlying listener.
// Established sockets are hijacked out of the HTTP server and stay
// usable; their owners close them.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.srv.Close()
	})
	return nil
}

// Addr returns the bound TCP address.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

func (l *Listener) upgrade(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return
	}

	// Each socket gets its own context: the consumer owns its lifetime
	// through Close. Closing the listener must not tear down sockets
	// already handed out.
	connCtx, cancel := context.WithCancel(context.Background())
	conn := &wsConn{
		Conn:   websocket.NetConn(connCtx, c, websocket.MessageBinary),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	select {
	case l.conns <- conn:
	case <-l.ctx.Done():
		conn.Close()
		return
	}

	// Keep the handler alive while the socket is in use; returning
	// would tear down the upgraded connection underneath its owner.
	<-conn.done
}

// wsConn signals the upgrade handler when the consumer is finished with
// the socket.
type wsConn struct {
	net.Conn
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *wsConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() {
		c.cancel()
		close(c.done)
	})
	return err
}

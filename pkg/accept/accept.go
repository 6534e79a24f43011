// Package accept defines the acceptor pipeline run on every raw
// connection before it is handed to a protocol engine. Acceptors
// transform the stream and the handler factory, e.g. by installing TLS
// or lifecycle accounting, and compose into pipelines.
package accept

import (
	"context"
	"fmt"
	"net"
	"sync"

	"penumbra-x/tlserve/pkg/counter"
	"penumbra-x/tlserve/pkg/handler"
)

// Acceptor transforms an accepted stream and its handler factory before
// protocol service begins.
//
// On success it returns the (possibly wrapped) stream and factory,
// taking no further interest in them. On failure it closes the stream it
// was given and returns the error; the caller must not touch the stream
// again. Acceptors are invoked concurrently by many connection tasks and
// must not carry shared mutable state beyond what they explicitly own.
type Acceptor interface {
	Accept(ctx context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error)
}

// AcceptorFunc adapts a function to the Acceptor interface.
type AcceptorFunc func(ctx context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error)

// Accept calls f.
func (f AcceptorFunc) Accept(ctx context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error) {
	return f(ctx, conn, factory)
}

// Identity returns an acceptor that passes its inputs through unchanged.
// It is the default when no transport security is configured.
func Identity() Acceptor {
	return AcceptorFunc(func(_ context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error) {
		return conn, factory, nil
	})
}

// Compose chains two acceptors: first runs, and only on success its
// outputs feed second. Grouping does not change observable behavior.
func Compose(first, second Acceptor) Acceptor {
	return AcceptorFunc(func(ctx context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error) {
		conn, factory, err := first.Accept(ctx, conn, factory)
		if err != nil {
			return nil, nil, err
		}
		return second.Accept(ctx, conn, factory)
	})
}

// Counting returns an acceptor that increments c when a connection is
// admitted and arranges for exactly one decrement when the connection's
// stream is closed. Binding the decrement to Close covers every exit
// path: normal EOF, handshake failure further down the pipeline,
// protocol errors, and forced closure during shutdown.
func Counting(c *counter.Counter) Acceptor {
	return AcceptorFunc(func(_ context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error) {
		c.Add()
		return &countedConn{Conn: conn, release: c.Done}, factory, nil
	})
}

// countedConn decrements the connection counter the first time it is
// closed, no matter how often Close is called.
type countedConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *countedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}

// HandshakeError reports a failed transport-security handshake. It is
// connection-scoped: the server drops the connection and keeps
// accepting.
type HandshakeError struct {
	// Backend names the TLS backend that ran the handshake.
	Backend string
	// Err is the underlying cause: bad certificate, unsupported
	// protocol version, peer abort, or plain I/O failure.
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s handshake: %s", e.Backend, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Package muxed serves through a tunnel: it multiplexes yamux streams
// over one existing connection and presents them as a net.Listener, so
// a server can sit behind a single outbound connection instead of a
// bound socket.
package muxed

import (
	"fmt"
	"io"
	stdlog "log"
	"net"

	"github.com/hashicorp/yamux"
)

// Listener wraps conn in a yamux server session. Each stream the peer
// opens becomes one accepted net.Conn. Closing the listener closes the
// session and the underlying connection.
func Listener(conn net.Conn) (net.Listener, error) {
	session, err := yamux.Server(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Server(conn): %w", err)
	}
	return session, nil
}

// Client wraps conn in a yamux client session, for the peer that opens
// streams toward a muxed listener.
func Client(conn net.Conn) (*yamux.Session, error) {
	session, err := yamux.Client(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Client(conn): %w", err)
	}
	return session, nil
}

func config() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.LogOutput = nil
	cfg.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags) // discard all console logging in yamux
	return cfg
}

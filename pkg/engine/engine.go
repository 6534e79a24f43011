// Package engine defines the protocol-engine boundary: the component
// that drives a fully-negotiated stream through its request/response
// lifecycle. The server core hands every connection to exactly one
// Engine and otherwise knows nothing about HTTP.
package engine

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
)

// Engine serves one connection until the peer or an error closes the
// stream. Implementations must not return while the connection is still
// being served; the caller relies on Serve spanning the connection's
// full lifetime. Cancelling ctx aborts service.
type Engine interface {
	Serve(ctx context.Context, conn net.Conn, h http.Handler) error
}

// connectionStater is implemented by *tls.Conn and other streams that
// can report their negotiated TLS state.
type connectionStater interface {
	ConnectionState() tls.ConnectionState
}

// NegotiatedProtocol returns the ALPN protocol negotiated on conn, or
// the empty string for plaintext streams.
func NegotiatedProtocol(conn net.Conn) string {
	if cs, ok := conn.(connectionStater); ok {
		return cs.ConnectionState().NegotiatedProtocol
	}
	return ""
}

// Default returns the engine used when the server config leaves the
// engine unset: HTTP/2 when ALPN negotiated h2, HTTP/1.x otherwise.
func Default() Engine {
	return &Auto{}
}

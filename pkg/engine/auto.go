package engine

import (
	"context"
	"net"
	"net/http"

	"golang.org/x/net/http2"
)

// Auto selects the protocol engine per connection: HTTP/2 when the
// handshake negotiated "h2", HTTP/1.x for everything else, including
// plaintext streams. The zero value uses default sub-engines.
type Auto struct {
	// H1 and H2 override the sub-engines; nil means zero-value
	// defaults.
	H1 *HTTP1
	H2 *HTTP2
}

// Serve dispatches conn to the matching sub-engine.
func (e *Auto) Serve(ctx context.Context, conn net.Conn, h http.Handler) error {
	if NegotiatedProtocol(conn) == http2.NextProtoTLS {
		h2 := e.H2
		if h2 == nil {
			h2 = &HTTP2{}
		}
		return h2.Serve(ctx, conn, h)
	}

	h1 := e.H1
	if h1 == nil {
		h1 = &HTTP1{}
	}
	return h1.Serve(ctx, conn, h)
}

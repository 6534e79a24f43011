package engine

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// HTTP2 serves a single connection with the HTTP/2 framing from
// golang.org/x/net. The zero value is ready to use. Intended for
// connections whose handshake negotiated "h2" via ALPN.
type HTTP2 struct {
	MaxConcurrentStreams uint32
	IdleTimeout          time.Duration
}

// Serve drives conn until it closes or ctx is cancelled.
func (e *HTTP2) Serve(ctx context.Context, conn net.Conn, h http.Handler) error {
	srv := &http2.Server{
		MaxConcurrentStreams: e.MaxConcurrentStreams,
		IdleTimeout:          e.IdleTimeout,
	}

	srv.ServeConn(conn, &http2.ServeConnOpts{
		Context: ctx,
		Handler: h,
	})
	return nil
}

// Package stdtls provides the TLS handshake acceptor backed by
// crypto/tls. Certificate material comes from a tlsconfig.Config cell,
// so it can be replaced while the server is running.
package stdtls

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"penumbra-x/tlserve/pkg/accept"
	"penumbra-x/tlserve/pkg/handler"
	"penumbra-x/tlserve/pkg/tlsconfig"
)

// Backend is the name carried by handshake errors from this acceptor.
const Backend = "stdtls"

// DefaultHandshakeTimeout bounds how long a client may take to complete
// the handshake before the connection is dropped.
const DefaultHandshakeTimeout = 10 * time.Second

// Acceptor performs the server-side TLS handshake on every accepted
// connection. Safe for concurrent use.
type Acceptor struct {
	cfg     *tlsconfig.Config
	timeout time.Duration
}

// New creates an acceptor reading its configuration from cfg.
func New(cfg *tlsconfig.Config) *Acceptor {
	return &Acceptor{cfg: cfg, timeout: DefaultHandshakeTimeout}
}

// HandshakeTimeout overrides the default handshake timeout. Zero
// disables the bound entirely.
func (a *Acceptor) HandshakeTimeout(d time.Duration) *Acceptor {
	a.timeout = d
	return a
}

// Accept reads the current configuration snapshot once and handshakes
// with it. A replacement racing with the handshake has no effect on it;
// only handshakes starting afterwards see the new snapshot. On failure
// the connection is closed and a HandshakeError is returned.
func (a *Acceptor) Accept(ctx context.Context, conn net.Conn, factory handler.Factory) (net.Conn, handler.Factory, error) {
	snapshot := a.cfg.Get()

	tlsConn := tls.Server(conn, snapshot)

	hsCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		tlsConn.Close()
		return nil, nil, &accept.HandshakeError{Backend: Backend, Err: err}
	}

	return tlsConn, factory, nil
}

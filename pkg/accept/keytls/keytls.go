// Package keytls provides a TLS handshake acceptor whose certificate
// material is derived from a shared key instead of files on disk. Both
// sides derive the same ephemeral CA from the key, and clients must
// present a certificate signed by it, so possession of the key is the
// only credential. The external contract is identical to stdtls.
package keytls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"penumbra-x/tlserve/pkg/accept"
	"penumbra-x/tlserve/pkg/crypto"
	"penumbra-x/tlserve/pkg/handler"
	"penumbra-x/tlserve/pkg/tlsconfig"
)

// Backend is the name carried by handshake errors from this acceptor.
const Backend = "keytls"

// Acceptor performs key-authenticated mutual TLS on every accepted
// connection. Safe for concurrent use.
type Acceptor struct {
	cfg     *tlsconfig.Config
	timeout time.Duration
}

// New derives certificate material from the key and creates the
// acceptor. An empty key disables client verification and uses a
// random single-use certificate.
func New(key string) (*Acceptor, error) {
	tlsCfg, err := serverConfig(key)
	if err != nil {
		return nil, err
	}

	cell, err := tlsconfig.New(tlsCfg)
	if err != nil {
		return nil, err
	}

	return &Acceptor{cfg: cell, timeout: defaultHandshakeTimeout}, nil
}

const defaultHandshakeTimeout = 10 * time.Second

// HandshakeTimeout overrides the default handshake timeout. Zero
// disables the bound entirely.
func (a *Acceptor) HandshakeTimeout(d time.Duration) *Acceptor {
	a.timeout = d
	return a
}

// Rekey derives fresh material from a new key and atomically replaces
// the active snapshot. Handshakes already in flight finish with the old
// key; a derivation failure keeps the old material (fail closed).
func (a *Acceptor) Rekey(key string) error {
	tlsCfg, err := serverConfig(key)
	if err != nil {
		return err
	}
	return a.cfg.Replace(tlsCfg)
}

// Accept reads the current snapshot once and handshakes with it. On
// failure the connection is closed and a HandshakeError is returned.
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

func serverConfig(key string) (*tls.Config, error) {
	pool, cert, err := crypto.Ephemeral(key)
	if err != nil {
		return nil, fmt.Errorf("crypto.Ephemeral(): %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
	if key != "" {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

// ClientConfig derives the matching client-side TLS configuration for a
// key: the derived CA as trust root plus a client certificate for the
// mutual handshake. Leaves carry a random CN rather than a hostname, so
// verification checks the chain against the derived CA and skips
// hostname validation.
func ClientConfig(key string) (*tls.Config, error) {
	pool, cert, err := crypto.Ephemeral(key)
	if err != nil {
		return nil, fmt.Errorf("crypto.Ephemeral(): %w", err)
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true, // custom verification below
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeer(pool, rawCerts)
		},
	}, nil
}

func verifyPeer(pool *x509.CertPool, rawCerts [][]byte) error {
	if len(rawCerts) != 1 {
		return fmt.Errorf("unexpected number of raw certs: %d", len(rawCerts))
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err != nil {
		return fmt.Errorf("verify certificate: %w", err)
	}

	return nil
}

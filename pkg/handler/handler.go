// Package handler defines the request-handler factory contract. The
// server core derives one http.Handler per connection from a Factory,
// after the acceptor pipeline has finished, so the factory can see what
// the handshake negotiated.
package handler

import (
	"net"
	"net/http"
)

// Info describes one accepted connection.
type Info struct {
	// LocalAddr and RemoteAddr are the addresses of the final,
	// fully-negotiated stream.
	LocalAddr  net.Addr
	RemoteAddr net.Addr

	// Protocol is the ALPN-negotiated application protocol, e.g. "h2" or
	// "http/1.1". Empty for plaintext connections.
	Protocol string
}

// Factory produces one handler per connection. Implementations must be
// safe for concurrent use and must not be mutated after the server
// starts.
type Factory interface {
	NewHandler(info Info) http.Handler
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(info Info) http.Handler

// NewHandler calls f.
func (f FactoryFunc) NewHandler(info Info) http.Handler {
	return f(info)
}

// Static returns a Factory that hands the same handler to every
// connection.
func Static(h http.Handler) Factory {
	return FactoryFunc(func(Info) http.Handler {
		return h
	})
}

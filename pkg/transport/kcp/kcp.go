// Package kcp provides reliable streams over UDP using the KCP
// protocol. Streams from this listener are plaintext; layer a TLS
// acceptor on top for transport security.
package kcp

import (
	"fmt"
	"net"

	kcpgo "github.com/xtaci/kcp-go/v5"
)

// Listen binds a KCP listener on the given UDP address. The returned
// listener yields one net.Conn per KCP session.
func Listen(addr string) (net.Listener, error) {
	if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	// No block cipher and no FEC shards: encryption belongs to the
	// acceptor pipeline, and FEC is unnecessary for request traffic.
	l, err := kcpgo.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp.ListenWithOptions(%s): %w", addr, err)
	}

	return l, nil
}

// Dial establishes a KCP session to a listener created with Listen.
// Mostly useful for tests and tooling.
func Dial(addr string) (net.Conn, error) {
	conn, err := kcpgo.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp.DialWithOptions(%s): %w", addr, err)
	}
	return conn, nil
}

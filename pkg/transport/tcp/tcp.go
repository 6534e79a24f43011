// Package tcp provides the plain TCP listener.
package tcp

import (
	"fmt"
	"net"
)

// Listen binds a TCP listener on addr. The address is resolved first so
// a bad address fails with a clear error before any socket is opened.
func Listen(addr string) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	l, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}

	return l, nil
}

// Package transport provides net.Listener constructors for the
// transports the server can sit on. Each transport lives in its own
// subpackage and yields a plain net.Listener that is handed to the
// server core via Config.Listeners:
//
//   - tcp: a TCP listener, resolve-then-listen
//   - ws: WebSocket upgrades served over HTTP, each socket exposed as a
//     net.Conn stream
//   - kcp: reliable streams over UDP via the KCP protocol
//   - muxed: yamux streams multiplexed over one existing connection,
//     for serving through a tunnel
//
// Transport security is not a transport concern here: the acceptor
// pipeline layers TLS on top of whatever streams these listeners
// produce.
//
// Example usage:
//
//	l, err := tcp.Listen("0.0.0.0:8443")
//	srv := server.New(server.Config{Listeners: []net.Listener{l}, ...})
package transport

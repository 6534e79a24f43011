// Package integration exercises the full stack end-to-end: real
// transports, real TLS handshakes, real HTTP exchanges, one server.
package integration

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"penumbra-x/tlserve/pkg/accept/keytls"
	"penumbra-x/tlserve/pkg/accept/stdtls"
	"penumbra-x/tlserve/pkg/crypto"
	"penumbra-x/tlserve/pkg/handler"
	"penumbra-x/tlserve/pkg/server"
	"penumbra-x/tlserve/pkg/tlsconfig"
	"penumbra-x/tlserve/pkg/transport/kcp"
	"penumbra-x/tlserve/pkg/transport/muxed"
	"penumbra-x/tlserve/pkg/transport/ws"

	"github.com/coder/websocket"
)

const greeting = "hello from tlserve"

func greetingFactory() handler.Factory {
	return handler.Static(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, greeting)
	}))
}

// startServer runs cfg's server in the background and tears it down
// with the test.
func startServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()

	srv := server.New(cfg)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(context.Background())
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Handle().ShutdownTimeout(time.Second)
		if err := srv.Handle().GracefulShutdown(ctx); err != nil {
			t.Errorf("GracefulShutdown(): %v", err)
		}
		if err := <-serveErr; err != nil {
			t.Errorf("Serve(): %v", err)
		}
	})

	return srv
}

// rawGet sends a bare HTTP/1.1 request over conn and returns the full
// response, status line included.
func rawGet(t *testing.T, conn net.Conn) string {
	t.Helper()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return string(resp)
}

func checkResponse(t *testing.T, resp string) {
	t.Helper()

	if !strings.Contains(resp, "200 OK") {
		t.Errorf("response missing status: %q", resp)
	}
	if !strings.Contains(resp, greeting) {
		t.Errorf("response missing body: %q", resp)
	}
}

func TestServe_WebSocketWithCertificates(t *testing.T) {
	t.Parallel()

	certPEM, keyPEM, err := crypto.SelfSignedPEM("localhost")
	if err != nil {
		t.Fatalf("crypto.SelfSignedPEM(): %v", err)
	}
	cell, err := tlsconfig.FromPEM(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("tlsconfig.FromPEM(): %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatal("pool.AppendCertsFromPEM() failed")
	}

	l, err := ws.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ws.Listen(): %v", err)
	}

	startServer(t, server.Config{
		Listeners: []net.Listener{l},
		Factory:   greetingFactory(),
		Acceptor:  stdtls.New(cell),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/", l.Addr()), &websocket.DialOptions{
		Subprotocols: []string{ws.Subprotocol},
	})
	if err != nil {
		t.Fatalf("websocket.Dial(): %v", err)
	}

	socket := websocket.NetConn(context.Background(), c, websocket.MessageBinary)
	conn := tls.Client(socket, &tls.Config{
		RootCAs:    pool,
		ServerName: "localhost",
		NextProtos: []string{"http/1.1"},
	})
	defer conn.Close()
	if err := conn.HandshakeContext(ctx); err != nil {
		t.Fatalf("tls handshake over websocket: %v", err)
	}

	checkResponse(t, rawGet(t, conn))
}

func TestServe_KCPWithKeyedMutualTLS(t *testing.T) {
	t.Parallel()

	const key = "open-sesame"

	acceptor, err := keytls.New(key)
	if err != nil {
		t.Fatalf("keytls.New(): %v", err)
	}

	l, err := kcp.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("kcp.Listen(): %v", err)
	}

	startServer(t, server.Config{
		Listeners: []net.Listener{l},
		Factory:   greetingFactory(),
		Acceptor:  acceptor,
	})

	session, err := kcp.Dial(l.Addr().String())
	if err != nil {
		t.Fatalf("kcp.Dial(): %v", err)
	}

	clientCfg, err := keytls.ClientConfig(key)
	if err != nil {
		t.Fatalf("keytls.ClientConfig(): %v", err)
	}
	clientCfg.NextProtos = []string{"http/1.1"}

	conn := tls.Client(session, clientCfg)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.HandshakeContext(ctx); err != nil {
		t.Fatalf("tls handshake over kcp: %v", err)
	}

	checkResponse(t, rawGet(t, conn))
}

func TestServe_MuxedTunnelPlaintext(t *testing.T) {
	t.Parallel()

	serverSide, clientSide := net.Pipe()

	l, err := muxed.Listener(serverSide)
	if err != nil {
		t.Fatalf("muxed.Listener(): %v", err)
	}

	startServer(t, server.Config{
		Listeners: []net.Listener{l},
		Factory:   greetingFactory(),
	})

	session, err := muxed.Client(clientSide)
	if err != nil {
		t.Fatalf("muxed.Client(): %v", err)
	}
	defer session.Close()

	for i := 0; i < 3; i++ {
		stream, err := session.Open()
		if err != nil {
			t.Fatalf("session.Open(): %v", err)
		}
		checkResponse(t, rawGet(t, stream))
		stream.Close()
	}
}

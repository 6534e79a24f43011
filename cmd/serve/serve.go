// Package serve implements the serve subcommand: it terminates TLS on
// one or more transports and answers requests with a small status
// handler.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"penumbra-x/tlserve/cmd/shared"
	"penumbra-x/tlserve/pkg/accept"
	"penumbra-x/tlserve/pkg/accept/keytls"
	"penumbra-x/tlserve/pkg/accept/stdtls"
	"penumbra-x/tlserve/pkg/handler"
	"penumbra-x/tlserve/pkg/log"
	"penumbra-x/tlserve/pkg/server"
	"penumbra-x/tlserve/pkg/tlsconfig"
	"penumbra-x/tlserve/pkg/transport/kcp"
	"penumbra-x/tlserve/pkg/transport/ws"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

const categoryServe = "serve"

const drainTimeoutFlag = "drain-timeout"

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Terminate TLS and serve HTTP on the given transports",
		ArgsUsage:   shared.GetArgsUsage(),
		Description: shared.GetBaseDescription(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config{
				transports:       cmd.Args().Slice(),
				cert:             cmd.String(shared.CertFlag),
				certKey:          cmd.String(shared.CertKeyFlag),
				reload:           cmd.Duration(shared.ReloadFlag),
				key:              cmd.String(shared.KeyFlag),
				handshakeTimeout: cmd.Duration(shared.HandshakeTimeoutFlag),
				drainTimeout:     cmd.Duration(drainTimeoutFlag),
				verbose:          cmd.Bool(shared.VerboseFlag),
			}

			if errors := cfg.validate(); len(errors) > 0 {
				log.ErrorMsg("Argument validation errors:\n")
				for _, err := range errors {
					log.ErrorMsg(" - %s\n", err)
				}
				return fmt.Errorf("exiting")
			}

			return run(ctx, cfg)
		},
		Flags: append(append([]cli.Flag{
			&cli.DurationFlag{
				Name:     drainTimeoutFlag,
				Aliases:  []string{"d"},
				Usage:    "How long graceful shutdown waits before closing connections, 0 waits forever",
				Category: categoryServe,
				Value:    30 * time.Second,
				Required: false,
			},
		}, shared.GetTLSFlags()...), shared.GetCommonFlags()...),
	}
}

type config struct {
	transports       []string
	cert             string
	certKey          string
	reload           time.Duration
	key              string
	handshakeTimeout time.Duration
	drainTimeout     time.Duration
	verbose          bool
}

func (c *config) validate() []error {
	var errs []error

	if len(c.transports) == 0 {
		errs = append(errs, fmt.Errorf("at least one transport argument is required"))
	}
	for _, s := range c.transports {
		if _, _, err := shared.ParseTransport(s); err != nil {
			errs = append(errs, err)
		}
	}
	if c.key != "" && c.cert != "" {
		errs = append(errs, fmt.Errorf("--%s and --%s are mutually exclusive", shared.KeyFlag, shared.CertFlag))
	}
	if (c.cert == "") != (c.certKey == "") {
		errs = append(errs, fmt.Errorf("--%s and --%s must be given together", shared.CertFlag, shared.CertKeyFlag))
	}

	return errs
}

func run(ctx context.Context, cfg config) error {
	logger := log.NewLogger(cfg.verbose)

	acceptor, err := buildAcceptor(ctx, cfg)
	if err != nil {
		return err
	}

	addrs, listeners, err := buildListeners(cfg.transports)
	if err != nil {
		for _, l := range listeners {
			l.Close()
		}
		return err
	}

	srv := server.New(server.Config{
		Addrs:     addrs,
		Listeners: listeners,
		Factory:   statusFactory(),
		Acceptor:  acceptor,
		Logger:    logger,
	})

	handle := srv.Handle()
	shared.SetupSignalHandling(func() {
		logger.InfoMsg("Shutting down, waiting for connections to drain\n")
		handle.ShutdownTimeout(cfg.drainTimeout)
	})

	logger.InfoMsg("Serving on %s\n", strings.Join(cfg.transports, ", "))
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("serving: %s", err)
	}

	return nil
}

func buildAcceptor(ctx context.Context, cfg config) (accept.Acceptor, error) {
	switch {
	case cfg.key != "":
		a, err := keytls.New(cfg.key)
		if err != nil {
			return nil, fmt.Errorf("keytls.New(): %s", err)
		}
		return a.HandshakeTimeout(cfg.handshakeTimeout), nil
	case cfg.cert != "":
		tc, err := tlsconfig.FromPEMFile(cfg.cert, cfg.certKey)
		if err != nil {
			return nil, fmt.Errorf("tlsconfig.FromPEMFile(%s, %s): %s", cfg.cert, cfg.certKey, err)
		}
		if cfg.reload > 0 {
			go tc.Watch(ctx, cfg.cert, cfg.certKey, cfg.reload, nil)
		}
		return stdtls.New(tc).HandshakeTimeout(cfg.handshakeTimeout), nil
	default:
		return accept.Identity(), nil
	}
}

func buildListeners(transports []string) (addrs []string, listeners []net.Listener, err error) {
	for _, s := range transports {
		proto, addr, perr := shared.ParseTransport(s)
		if perr != nil {
			return addrs, listeners, perr
		}

		switch proto {
		case shared.ProtoTCP:
			addrs = append(addrs, addr)
		case shared.ProtoWS:
			l, lerr := ws.Listen(addr)
			if lerr != nil {
				return addrs, listeners, fmt.Errorf("ws.Listen(%s): %s", addr, lerr)
			}
			listeners = append(listeners, l)
		case shared.ProtoKCP:
			l, lerr := kcp.Listen(addr)
			if lerr != nil {
				return addrs, listeners, fmt.Errorf("kcp.Listen(%s): %s", addr, lerr)
			}
			listeners = append(listeners, l)
		}
	}
	return addrs, listeners, nil
}

// statusFactory answers every request with a one-line report of the
// connection it arrived on.
func statusFactory() handler.Factory {
	return handler.FactoryFunc(func(info handler.Info) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := info.Protocol
			if proto == "" {
				proto = "plaintext"
			}
			fmt.Fprintf(w, "%s %s via %s from %s\n", r.Method, r.URL.Path, proto, info.RemoteAddr)
		})
	})
}

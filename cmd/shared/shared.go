// Package shared provides the CLI flag definitions, transport parsing
// and signal handling used across tlserve's command-line interface.
package shared

import (
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

const categoryTLS = "tls"
const categoryCommon = "common"

// CertFlag is the name of the flag for the server certificate PEM file.
const CertFlag = "cert"

// CertKeyFlag is the name of the flag for the certificate's private key PEM file.
const CertKeyFlag = "cert-key"

// ReloadFlag is the name of the flag for the certificate reload poll interval.
const ReloadFlag = "reload"

// KeyFlag is the name of the flag for the mTLS authentication key. It
// selects key-derived mutual TLS instead of certificate files.
const KeyFlag = "key"

// HandshakeTimeoutFlag is the name of the flag bounding TLS handshakes.
const HandshakeTimeoutFlag = "handshake-timeout"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// GetBaseDescription returns the base description text for transport
// specifications used in CLI commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify transports like this: tcp://127.0.0.1:8443 (supports tcp|ws|kcp)",
		"You can omit the host to bind to all interfaces.",
		"Multiple transports share one server and one shutdown.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for CLI commands.
func GetArgsUsage() string {
	return strings.Join([]string{
		"transport",
		"[transport...]",
	}, " ")
}

// GetTLSFlags returns the CLI flags configuring TLS termination.
func GetTLSFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     CertFlag,
			Aliases:  []string{},
			Usage:    "Server certificate PEM file, leave empty to serve plaintext",
			Category: categoryTLS,
			Value:    "",
			Required: false,
		},
		&cli.StringFlag{
			Name:     CertKeyFlag,
			Aliases:  []string{},
			Usage:    "Private key PEM file for the server certificate",
			Category: categoryTLS,
			Value:    "",
			Required: false,
		},
		&cli.DurationFlag{
			Name:     ReloadFlag,
			Aliases:  []string{"r"},
			Usage:    "Poll interval for live certificate reload, 0 disables polling",
			Category: categoryTLS,
			Value:    0,
			Required: false,
		},
		&cli.StringFlag{
			Name:     KeyFlag,
			Aliases:  []string{"k"},
			Usage:    "Key for mTLS authentication instead of certificate files",
			Category: categoryTLS,
			Value:    "",
			Required: false,
		},
		&cli.DurationFlag{
			Name:     HandshakeTimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "TLS handshake timeout",
			Category: categoryTLS,
			Value:    10 * time.Second,
			Required: false,
		},
	}
}

// GetCommonFlags returns the CLI flags shared by all commands.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
	}
}

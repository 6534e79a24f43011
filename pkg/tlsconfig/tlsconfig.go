// Package tlsconfig holds the active TLS configuration as an immutable,
// atomically-swappable snapshot. Handshakes read the snapshot once and
// keep using it even if it is replaced mid-handshake; replacements only
// affect handshakes that start afterwards.
package tlsconfig

import (
	"crypto/tls"
	"fmt"
	"os"
	"sync/atomic"
)

// DefaultALPN is applied to snapshots that do not set their own protocol
// list, so HTTP/2 can be negotiated out of the box.
var DefaultALPN = []string{"h2", "http/1.1"}

// Config is the shared configuration cell. Reads and replacements are
// lock-free; neither ever blocks the other.
type Config struct {
	current atomic.Pointer[tls.Config]
}

// New creates a cell holding the given configuration. The value is
// cloned, so later mutation by the caller cannot tear a published
// snapshot.
func New(cfg *tls.Config) (*Config, error) {
	c := &Config{}
	if err := c.Replace(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// FromPEM creates a cell from PEM-encoded certificate and key material.
func FromPEM(certPEM, keyPEM []byte) (*Config, error) {
	cfg, err := configFromPEM(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// FromPEMFile creates a cell from PEM files on disk.
func FromPEMFile(certFile, keyFile string) (*Config, error) {
	cfg, err := configFromPEMFile(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Get returns the currently active snapshot. The caller must treat it as
// read-only. Constant time, never blocks.
func (c *Config) Get() *tls.Config {
	return c.current.Load()
}

// Replace atomically publishes a new snapshot. Handshakes already in
// flight keep the snapshot they read; the old snapshot stays valid until
// the last of them lets go of it.
func (c *Config) Replace(cfg *tls.Config) error {
	if cfg == nil {
		return fmt.Errorf("refusing to publish nil TLS configuration")
	}

	cfg = cfg.Clone()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = append([]string(nil), DefaultALPN...)
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	c.current.Store(cfg)
	return nil
}

// ReloadFromPEM replaces the snapshot with one built from PEM material.
// On parse failure the active snapshot is kept (fail closed).
func (c *Config) ReloadFromPEM(certPEM, keyPEM []byte) error {
	cfg, err := configFromPEM(certPEM, keyPEM)
	if err != nil {
		return err
	}
	return c.Replace(cfg)
}

// ReloadFromPEMFile replaces the snapshot with one built from PEM files.
// On read or parse failure the active snapshot is kept (fail closed).
func (c *Config) ReloadFromPEMFile(certFile, keyFile string) error {
	cfg, err := configFromPEMFile(certFile, keyFile)
	if err != nil {
		return err
	}
	return c.Replace(cfg)
}

func configFromPEM(certPEM, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tls.X509KeyPair(): %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func configFromPEMFile(certFile, keyFile string) (*tls.Config, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", certFile, err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", keyFile, err)
	}
	return configFromPEM(certPEM, keyPEM)
}

// Package crypto generates the certificate material used by the keytls
// backend and by tests: deterministic ephemeral CAs derived from a
// shared key, and throwaway self-signed server certificates.
package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// Ephemeral derives a CA and a leaf certificate from the given seed.
// The CA key is deterministic for a seed, so two processes sharing the
// seed trust each other's certificates without exchanging files. An
// empty seed produces a random, single-use CA.
func Ephemeral(seed string) (*x509.CertPool, tls.Certificate, error) {
	var pool *x509.CertPool
	var cert tls.Certificate
	var err error

	if seed == "" {
		seed, err = RandomString(32)
		if err != nil {
			return pool, cert, fmt.Errorf("RandomString(32): %w", err)
		}
	}

	caKeyPEM, caCertPEM, err := generateCA(seed)
	if err != nil {
		return pool, cert, fmt.Errorf("generateCA(): %w", err)
	}

	pool = x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCertPEM) {
		return pool, cert, fmt.Errorf("appending CA certificate to pool")
	}

	cert, err = leafCertificate(caCertPEM, caKeyPEM)
	if err != nil {
		return pool, cert, fmt.Errorf("leafCertificate(): %w", err)
	}

	return pool, cert, nil
}

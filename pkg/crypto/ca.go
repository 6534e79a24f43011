package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// generateCA derives a CA key pair and a self-signed CA certificate from
// the seed. The same seed always yields the same key, so independently
// generated pools and leaves verify against each other.
// Returns PEM-encoded private key and certificate.
func generateCA(seed string) ([]byte, []byte, error) {
	rng := newDRand(seed)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, nil, fmt.Errorf("ecdsa.GenerateKey(): %w", err)
	}

	cn, err := randomString(8, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("generating random common name: %w", err)
	}
	org, err := randomString(8, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("generating random organization: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{org},
		},
		NotBefore:             time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2063, 4, 5, 11, 0, 0, 0, time.UTC),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
	}

	cert, err := x509.CreateCertificate(rng, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("x509.CreateCertificate(): %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert})

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("x509.MarshalECPrivateKey(): %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return keyPEM, certPEM, nil
}

package crypto

import (
	"crypto/x509"
	"testing"
)

func TestEphemeral_SameSeedVerifies(t *testing.T) {
	t.Parallel()

	// Two independent derivations from the same seed must trust each
	// other: the pool of one verifies the leaf of the other.
	poolA, _, err := Ephemeral("shared-secret")
	if err != nil {
		t.Fatalf("Ephemeral() error = %v", err)
	}
	_, certB, err := Ephemeral("shared-secret")
	if err != nil {
		t.Fatalf("Ephemeral() error = %v", err)
	}

	leaf, err := x509.ParseCertificate(certB.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}

	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:     poolA,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}); err != nil {
		t.Errorf("leaf from seed does not verify against pool from same seed: %v", err)
	}
}

func TestEphemeral_DifferentSeedsDoNotVerify(t *testing.T) {
	t.Parallel()

	poolA, _, err := Ephemeral("seed-one")
	if err != nil {
		t.Fatalf("Ephemeral() error = %v", err)
	}
	_, certB, err := Ephemeral("seed-two")
	if err != nil {
		t.Fatalf("Ephemeral() error = %v", err)
	}

	leaf, err := x509.ParseCertificate(certB.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}

	if _, err := leaf.Verify(x509.VerifyOptions{Roots: poolA}); err == nil {
		t.Error("leaf from a different seed verified, want failure")
	}
}

func TestSelfSigned_CoversRequestedHosts(t *testing.T) {
	t.Parallel()

	cert, err := SelfSigned("localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("SelfSigned() error = %v", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}

	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname(localhost): %v", err)
	}
	if err := leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("VerifyHostname(127.0.0.1): %v", err)
	}
	if err := leaf.VerifyHostname("example.com"); err == nil {
		t.Error("VerifyHostname(example.com) passed, want failure")
	}
}

func TestRandomString_Length(t *testing.T) {
	t.Parallel()

	s, err := RandomString(32)
	if err != nil {
		t.Fatalf("RandomString() error = %v", err)
	}
	if len(s) != 32 {
		t.Errorf("len = %d, want 32", len(s))
	}
}

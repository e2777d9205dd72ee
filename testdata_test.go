package saml

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// generateTestCert produces a throwaway self-signed RSA keypair/certificate
// for tests, matching the pattern the wider corpus's own SAML tests use to
// avoid shipping fixed PEM fixtures.
func generateTestCert(t *testing.T, cn string) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}

func testSettings(t *testing.T, idpCert *x509.Certificate, spKey *rsa.PrivateKey, spCert *x509.Certificate) *Settings {
	t.Helper()
	s, err := NewSettings(true, SPSettings{
		EntityID:    "https://sp.example.com/metadata",
		ACSURL:      "https://sp.example.com/acs",
		PrivateKey:  spKey,
		Certificate: spCert,
	}, IdPSettings{
		EntityID:     "https://idp.example.com/metadata",
		SSOURL:       "https://idp.example.com/sso",
		SLOURL:       "https://idp.example.com/slo",
		Certificates: []*x509.Certificate{idpCert},
	}, SecuritySettings{
		WantAssertionsSigned: true,
	})
	if err != nil {
		t.Fatalf("NewSettings: %v", err)
	}
	return s
}

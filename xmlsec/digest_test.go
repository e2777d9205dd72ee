package xmlsec

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateDigestTestCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "digest-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestDigestProducesStableOutputPerAlgorithm(t *testing.T) {
	data := []byte("the quick brown fox")
	for _, alg := range []string{DigestSHA1, DigestSHA256, DigestSHA384, DigestSHA512} {
		a, err := Digest(alg, data)
		require.NoError(t, err)
		b, err := Digest(alg, data)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.NotEmpty(t, a)
	}
}

func TestDigestRejectsUnknownAlgorithm(t *testing.T) {
	_, err := Digest("not-a-real-algorithm", []byte("x"))
	require.Error(t, err)
}

func TestCertificateFingerprintAndNormalize(t *testing.T) {
	cert := generateDigestTestCert(t)

	fp, err := CertificateFingerprint(cert, DigestSHA256)
	require.NoError(t, err)
	assert.NotEmpty(t, fp)

	decorated := ""
	for i, r := range fp {
		if i > 0 && i%2 == 0 {
			decorated += ":"
		}
		decorated += string(r)
	}
	decorated = "  " + decorated
	assert.Equal(t, fp, NormalizeFingerprint(decorated))
}

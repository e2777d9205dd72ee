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

func generateEncryptTestCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "encrypt-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

func TestEncryptElementRoundTripsThroughDecryptKnownKeys(t *testing.T) {
	key, cert := generateEncryptTestCert(t)
	plaintext := []byte(`<NameID xmlns="urn:oasis:names:tc:SAML:2.0:assertion">alice@example.com</NameID>`)

	el, err := EncryptElement(plaintext, cert, EncryptOptions{})
	require.NoError(t, err)

	ed, err := ParseEncryptedData(el)
	require.NoError(t, err)

	got, err := DecryptKnownKeys(ed, []*rsa.PrivateKey{key}, false)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptElementSupportsRSA15KeyTransport(t *testing.T) {
	key, cert := generateEncryptTestCert(t)
	plaintext := []byte("<NameID>bob@example.com</NameID>")

	el, err := EncryptElement(plaintext, cert, EncryptOptions{KeyAlgorithm: AlgRSA15, DataAlgorithm: AlgAES128CBC})
	require.NoError(t, err)

	ed, err := ParseEncryptedData(el)
	require.NoError(t, err)

	got, err := DecryptKnownKeys(ed, []*rsa.PrivateKey{key}, true)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptElementRejectsNonRSACertificate(t *testing.T) {
	_, cert := generateEncryptTestCert(t)
	cert.PublicKey = "not-an-rsa-key"

	_, err := EncryptElement([]byte("x"), cert, EncryptOptions{})
	require.Error(t, err)
}

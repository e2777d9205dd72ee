package xmlsec

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest algorithm URIs, mirrored from the root package's constants to
// keep this package import-independent of it.
const (
	DigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Digest computes the configured digest over data.
func Digest(alg string, data []byte) ([]byte, error) {
	switch alg {
	case DigestSHA1:
		sum := sha1.Sum(data)
		return sum[:], nil
	case DigestSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case DigestSHA384:
		sum := sha512.Sum384(data)
		return sum[:], nil
	case DigestSHA512:
		sum := sha512.Sum512(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("xmlsec: unsupported digest algorithm %q", alg)
	}
}

// CertificateFingerprint computes the digest of cert.Raw (the DER encoding)
// and formats it as spec §4.3 step 9 requires for comparison against a
// configured fingerprint: hex, colon-free, compared case-insensitively by
// the caller.
func CertificateFingerprint(cert *x509.Certificate, alg string) (string, error) {
	sum, err := Digest(alg, cert.Raw)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// NormalizeFingerprint strips colons and spaces and lowercases a
// caller-supplied fingerprint string so it can be compared directly against
// CertificateFingerprint's output.
func NormalizeFingerprint(fp string) string {
	fp = strings.ToLower(fp)
	fp = strings.ReplaceAll(fp, ":", "")
	fp = strings.ReplaceAll(fp, " ", "")
	return fp
}

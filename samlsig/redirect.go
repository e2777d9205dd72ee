// Package samlsig implements the two disjoint signature schemes spec §4.2
// names component C4: query-string signing/verification for the
// HTTP-Redirect binding, and embedded XML-DSig signing/verification for the
// HTTP-POST binding. The two must never be conflated — a query-string
// signature says nothing about the payload's own internal integrity, and
// vice versa.
package samlsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// Query parameter names used by the Redirect binding, per spec §6.
const (
	ParamSAMLRequest  = "SAMLRequest"
	ParamSAMLResponse = "SAMLResponse"
	ParamRelayState   = "RelayState"
	ParamSigAlg       = "SigAlg"
	ParamSignature    = "Signature"
)

// Signature algorithm URIs, mirrored from the root package.
const (
	RSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	RSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	RSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	RSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
)

// hashForAlgorithm returns the crypto.Hash that a signature algorithm URI
// signs with.
func hashForAlgorithm(alg string) (crypto.Hash, error) {
	switch alg {
	case RSASHA1:
		return crypto.SHA1, nil
	case RSASHA256:
		return crypto.SHA256, nil
	case RSASHA384:
		return crypto.SHA384, nil
	case RSASHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("samlsig: unsupported signature algorithm %q", alg)
	}
}

func digestFor(h crypto.Hash, data []byte) []byte {
	switch h {
	case crypto.SHA1:
		sum := sha1.Sum(data)
		return sum[:]
	case crypto.SHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	case crypto.SHA384:
		sum := sha512.Sum384(data)
		return sum[:]
	case crypto.SHA512:
		sum := sha512.Sum512(data)
		return sum[:]
	}
	return nil
}

// SignedString builds the exact octet string spec §4.2 requires —
//
//	"{TYPE}={E(payload)}&RelayState={E(relayState)}&SigAlg={E(sigAlg)}"
//
// with the RelayState clause omitted entirely when relayState is empty.
// The concatenation order is contractual; callers must not reorder it.
func SignedString(msgType, payload, relayState, sigAlg string, lowercaseHex bool) string {
	var b strings.Builder
	b.WriteString(msgType)
	b.WriteByte('=')
	b.WriteString(encode(payload, lowercaseHex))
	if relayState != "" {
		b.WriteString("&")
		b.WriteString(ParamRelayState)
		b.WriteByte('=')
		b.WriteString(encode(relayState, lowercaseHex))
	}
	b.WriteString("&")
	b.WriteString(ParamSigAlg)
	b.WriteByte('=')
	b.WriteString(encode(sigAlg, lowercaseHex))
	return b.String()
}

// Sign signs the SignedString for (msgType, payload, relayState, sigAlg)
// with key, returning the base64-encoded signature to place in the
// Signature query parameter.
func Sign(msgType, payload, relayState, sigAlg string, key crypto.Signer, lowercaseHex bool) (string, error) {
	h, err := hashForAlgorithm(sigAlg)
	if err != nil {
		return "", err
	}
	signedString := SignedString(msgType, payload, relayState, sigAlg, lowercaseHex)
	digest := digestFor(h, []byte(signedString))

	rsaKey, ok := key.(*rsa.PrivateKey)
	if ok {
		sig, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, h, digest)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(sig), nil
	}

	sig, err := key.Sign(rand.Reader, digest, h)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks signatureB64 against the SignedString reconstructed from
// the received parameter values, trying each of certs until one validates.
// Per spec §4.2, this must fail with an error (mapped by the caller to
// InvalidSignature) if no provided certificate validates. When
// rejectDeprecated is set, a SigAlg of RSA-SHA1 fails with
// ErrDeprecatedAlgorithm before any cryptographic check runs, matching the
// policy VerifyEnveloped enforces for the embedded-signature path (spec §8
// law 8 is binding-agnostic).
func Verify(msgType, payload, relayState, sigAlg, signatureB64 string, lowercaseHex bool, certs []*x509.Certificate, rejectDeprecated bool) error {
	if rejectDeprecated && DeprecatedAlgorithms[sigAlg] {
		return errDeprecatedAlgorithm(sigAlg)
	}
	h, err := hashForAlgorithm(sigAlg)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("samlsig: invalid base64 signature: %w", err)
	}
	signedString := SignedString(msgType, payload, relayState, sigAlg, lowercaseHex)
	digest := digestFor(h, []byte(signedString))

	if len(certs) == 0 {
		return fmt.Errorf("samlsig: no IdP certificate configured to verify against")
	}

	var lastErr error
	for _, cert := range certs {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			lastErr = fmt.Errorf("samlsig: certificate does not hold an RSA public key")
			continue
		}
		if err := rsa.VerifyPKCS1v15(pub, h, digest, sig); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("samlsig: signature did not validate against any configured certificate: %w", lastErr)
}

// encode percent-encodes s per RFC 3986 (space becomes %20, never '+'),
// using either uppercase (the norm) or lowercase hex digits, per spec
// §4.2's lowercaseUrlencoding toggle — a handful of older IdPs insist on
// lowercase hex in the signed query string.
func encode(s string, lowercaseHex bool) string {
	const hexDigitsUpper = "0123456789ABCDEF"
	const hexDigitsLower = "0123456789abcdef"
	hexDigits := hexDigitsUpper
	if lowercaseHex {
		hexDigits = hexDigitsLower
	}

	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}

package saml

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// signingKeyPair returns the RSA key/cert this core should sign with. Only
// RSA signing keys are supported, matching spec §6's algorithm list (all
// RSA-SHA*). SP.NewPrivateKey/NewCertificate are not used for signing: the
// rotation support of SPEC_FULL.md §C.1 signs with the primary pair only and
// falls back to the rotation key only when decrypting.
func signingKeyPair(s *Settings) (*rsa.PrivateKey, *x509.Certificate, error) {
	if s.SP.PrivateKey == nil {
		return nil, nil, errPrivateKeyNotFound()
	}
	rsaKey, ok := s.SP.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("saml: SP private key must be an RSA key to sign with algorithm %s", s.Security.SignatureAlgorithm)
	}
	if s.SP.Certificate == nil {
		return nil, nil, errSettingsInvalid("sp.Certificate is required to embed in signed messages")
	}
	return rsaKey, s.SP.Certificate, nil
}

// decryptionKeys returns every RSA private key this SP currently holds, in
// priority order: primary first, then the rotation key (SPEC_FULL.md §C.1).
func decryptionKeys(s *Settings) []*rsa.PrivateKey {
	var keys []*rsa.PrivateKey
	if k, ok := s.SP.PrivateKey.(*rsa.PrivateKey); ok && k != nil {
		keys = append(keys, k)
	}
	if k, ok := s.SP.NewPrivateKey.(*rsa.PrivateKey); ok && k != nil {
		keys = append(keys, k)
	}
	return keys
}

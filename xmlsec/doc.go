// Package xmlsec implements the low-level XML Security primitives spec §4
// names component C1: exclusive C14N canonicalization, digest computation,
// and XML Encryption unwrapping for EncryptedAssertion/EncryptedKey/
// EncryptedID. Embedded XML-DSig signing and verification themselves are
// built directly on github.com/russellhaering/goxmldsig in the samlsig
// package; this package supplies the canonicalization/digest helpers that
// sit alongside it and the decryption support goxmldsig does not provide.
package xmlsec

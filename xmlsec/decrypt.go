package xmlsec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// Encryption / key-transport algorithm URIs, per spec §6.
const (
	AlgAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgAES192CBC = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	AlgAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgAES192GCM = "http://www.w3.org/2009/xmlenc11#aes192-gcm"
	AlgAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	Alg3DESCBC   = "http://www.w3.org/2001/04/xmlenc#tripledes-cbc"

	AlgRSAOAEP = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	AlgRSA15   = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
)

// EncryptedData is a parsed <xenc:EncryptedData> element: the symmetric
// algorithm, the wrapped key material (either inline in KeyInfo or a
// sibling-referenced EncryptedKey), and the ciphertext.
type EncryptedData struct {
	Algorithm       string
	KeyAlgorithm    string
	WrappedKey      []byte
	CipherValue     []byte
}

// ParseEncryptedData extracts the fields DecryptKnownKeys needs from a raw
// <xenc:EncryptedData> element (as found inside EncryptedAssertion,
// EncryptedID, or EncryptedAttribute).
func ParseEncryptedData(el *etree.Element) (*EncryptedData, error) {
	if el == nil {
		return nil, fmt.Errorf("xmlsec: nil EncryptedData element")
	}
	ed := &EncryptedData{}

	if em := el.FindElement("./EncryptionMethod"); em != nil {
		ed.Algorithm = em.SelectAttrValue("Algorithm", "")
	}
	if ed.Algorithm == "" {
		return nil, fmt.Errorf("xmlsec: EncryptedData missing EncryptionMethod/@Algorithm")
	}

	ekEl := el.FindElement("./KeyInfo/EncryptedKey")
	if ekEl == nil {
		ekEl = el.FindElement(".//EncryptedKey")
	}
	if ekEl == nil && el.Parent() != nil {
		ekEl = el.Parent().FindElement("./EncryptedKey")
	}
	if ekEl == nil {
		return nil, fmt.Errorf("xmlsec: EncryptedData has no EncryptedKey (key transport is mandatory for SAML)")
	}
	if em := ekEl.FindElement("./EncryptionMethod"); em != nil {
		ed.KeyAlgorithm = em.SelectAttrValue("Algorithm", AlgRSAOAEP)
	} else {
		ed.KeyAlgorithm = AlgRSAOAEP
	}
	ekCipherValue := ekEl.FindElement("./CipherData/CipherValue")
	if ekCipherValue == nil {
		return nil, fmt.Errorf("xmlsec: EncryptedKey missing CipherData/CipherValue")
	}
	wrappedKey, err := base64.StdEncoding.DecodeString(collapseWhitespace(ekCipherValue.Text()))
	if err != nil {
		return nil, fmt.Errorf("xmlsec: decode wrapped key: %w", err)
	}
	ed.WrappedKey = wrappedKey

	cipherValueEl := el.FindElement("./CipherData/CipherValue")
	if cipherValueEl == nil {
		return nil, fmt.Errorf("xmlsec: EncryptedData missing CipherData/CipherValue")
	}
	cipherValue, err := base64.StdEncoding.DecodeString(collapseWhitespace(cipherValueEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("xmlsec: decode cipher value: %w", err)
	}
	ed.CipherValue = cipherValue

	return ed, nil
}

// DecryptKnownKeys unwraps the symmetric key using whichever of keys
// successfully decrypts it (supporting SP certificate rotation,
// SPEC_FULL.md §C.1, where more than one private key may be current), then
// decrypts the payload and returns the resulting plaintext XML bytes.
//
// allowRSA15 gates the deprecated RSA-1.5 key transport algorithm per spec
// §6 / §8 law 8 (Security.RejectDeprecatedAlgorithm).
func DecryptKnownKeys(ed *EncryptedData, keys []*rsa.PrivateKey, allowRSA15 bool) ([]byte, error) {
	if ed.KeyAlgorithm == AlgRSA15 && !allowRSA15 {
		return nil, fmt.Errorf("xmlsec: RSA-1.5 key transport is disallowed by policy")
	}

	var symKey []byte
	var lastErr error
	for _, key := range keys {
		if key == nil {
			continue
		}
		k, err := unwrapKey(ed.KeyAlgorithm, ed.WrappedKey, key)
		if err != nil {
			lastErr = err
			continue
		}
		symKey = k
		break
	}
	if symKey == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("xmlsec: no decryption key configured")
		}
		return nil, fmt.Errorf("xmlsec: unable to unwrap symmetric key: %w", lastErr)
	}

	return decryptSymmetric(ed.Algorithm, symKey, ed.CipherValue)
}

func unwrapKey(alg string, wrapped []byte, key *rsa.PrivateKey) ([]byte, error) {
	switch alg {
	case AlgRSAOAEP:
		return rsa.DecryptOAEP(sha1.New(), rand.Reader, key, wrapped, nil)
	case AlgRSA15:
		return rsa.DecryptPKCS1v15(rand.Reader, key, wrapped)
	default:
		return nil, fmt.Errorf("xmlsec: unsupported key transport algorithm %q", alg)
	}
}

func decryptSymmetric(alg string, key, ciphertext []byte) ([]byte, error) {
	switch alg {
	case AlgAES128CBC, AlgAES192CBC, AlgAES256CBC:
		return decryptAESCBC(key, ciphertext)
	case AlgAES128GCM, AlgAES192GCM, AlgAES256GCM:
		return decryptAESGCM(key, ciphertext)
	case Alg3DESCBC:
		return decrypt3DESCBC(key, ciphertext)
	default:
		return nil, fmt.Errorf("xmlsec: unsupported encryption algorithm %q", alg)
	}
}

// decryptAESCBC implements XML Encryption's CBC convention: the IV is the
// first block of the ciphertext, and the plaintext is PKCS#7 padded.
func decryptAESCBC(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(block, ciphertext)
}

func decrypt3DESCBC(key, ciphertext []byte) ([]byte, error) {
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(block, ciphertext)
}

func cbcDecrypt(block cipher.Block, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext) < bs || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("xmlsec: ciphertext is not a multiple of the block size")
	}
	iv := ciphertext[:bs]
	body := ciphertext[bs:]
	if len(body) == 0 {
		return nil, fmt.Errorf("xmlsec: empty ciphertext body")
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return pkcs7Unpad(plain, bs)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("xmlsec: cannot unpad empty data")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("xmlsec: invalid PKCS#7 padding")
	}
	if !bytes.Equal(data[len(data)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return nil, fmt.Errorf("xmlsec: invalid PKCS#7 padding")
	}
	return data[:len(data)-pad], nil
}

// decryptAESGCM implements the XML Encryption 1.1 GCM convention: a 12-byte
// IV prefixes the ciphertext, and the final block is the 16-byte auth tag.
func decryptAESGCM(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, 12)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < 12 {
		return nil, fmt.Errorf("xmlsec: ciphertext too short for GCM nonce")
	}
	nonce, body := ciphertext[:12], ciphertext[12:]
	return gcm.Open(nil, nonce, body, nil)
}

func collapseWhitespace(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\r' || c == '\t' || c == ' ' {
			continue
		}
		b = append(b, c)
	}
	return string(b)
}

package xmlsec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// EncryptOptions configures EncryptElement.
type EncryptOptions struct {
	// KeyAlgorithm defaults to AlgRSAOAEP.
	KeyAlgorithm string
	// DataAlgorithm defaults to AlgAES256CBC.
	DataAlgorithm string
}

// EncryptElement produces a <xenc:EncryptedData> element wrapping plaintext
// (the serialized NameID or Assertion), encrypted to recipient's public key.
// Used by the LogoutRequest builder when Security.WantNameIDEncrypted is set
// (spec §4.1).
func EncryptElement(plaintext []byte, recipient *x509.Certificate, opts EncryptOptions) (*etree.Element, error) {
	if opts.KeyAlgorithm == "" {
		opts.KeyAlgorithm = AlgRSAOAEP
	}
	if opts.DataAlgorithm == "" {
		opts.DataAlgorithm = AlgAES256CBC
	}

	keySize, err := aesKeySize(opts.DataAlgorithm)
	if err != nil {
		return nil, err
	}
	symKey := make([]byte, keySize)
	if _, err := rand.Read(symKey); err != nil {
		return nil, err
	}

	ciphertext, err := encryptAESCBC(symKey, plaintext)
	if err != nil {
		return nil, err
	}

	pub, ok := recipient.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("xmlsec: recipient certificate is not an RSA key")
	}
	var wrappedKey []byte
	switch opts.KeyAlgorithm {
	case AlgRSAOAEP:
		wrappedKey, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, symKey, nil)
	case AlgRSA15:
		wrappedKey, err = rsa.EncryptPKCS1v15(rand.Reader, pub, symKey)
	default:
		err = fmt.Errorf("xmlsec: unsupported key transport algorithm %q", opts.KeyAlgorithm)
	}
	if err != nil {
		return nil, err
	}

	encData := etree.NewElement("xenc:EncryptedData")
	encData.CreateAttr("xmlns:xenc", "http://www.w3.org/2001/04/xmlenc#")
	encData.CreateAttr("Type", "http://www.w3.org/2001/04/xmlenc#Element")
	em := encData.CreateElement("xenc:EncryptionMethod")
	em.CreateAttr("Algorithm", opts.DataAlgorithm)

	keyInfo := encData.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", "http://www.w3.org/2000/09/xmldsig#")
	encKey := keyInfo.CreateElement("xenc:EncryptedKey")
	encKeyMethod := encKey.CreateElement("xenc:EncryptionMethod")
	encKeyMethod.CreateAttr("Algorithm", opts.KeyAlgorithm)
	encKeyCipherData := encKey.CreateElement("xenc:CipherData")
	encKeyCipherData.CreateElement("xenc:CipherValue").SetText(base64.StdEncoding.EncodeToString(wrappedKey))

	cipherData := encData.CreateElement("xenc:CipherData")
	cipherData.CreateElement("xenc:CipherValue").SetText(base64.StdEncoding.EncodeToString(ciphertext))

	return encData, nil
}

func aesKeySize(alg string) (int, error) {
	switch alg {
	case AlgAES128CBC, AlgAES128GCM:
		return 16, nil
	case AlgAES192CBC, AlgAES192GCM:
		return 24, nil
	case AlgAES256CBC, AlgAES256GCM:
		return 32, nil
	default:
		return 0, fmt.Errorf("xmlsec: unsupported encryption algorithm %q", alg)
	}
}

func encryptAESCBC(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	padded := pkcs7Pad(plaintext, bs)
	iv := make([]byte, bs)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	out := make([]byte, bs+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[bs:], padded)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

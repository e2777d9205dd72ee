package samlsig

import (
	"crypto/x509"
	"testing"

	"github.com/beevik/etree"
	"gotest.tools/assert"
)

func signedTestDocument(t *testing.T) (*etree.Document, *etree.Element) {
	t.Helper()
	key, cert := generateCert(t)

	doc := etree.NewDocument()
	root := doc.CreateElement("AuthnRequest")
	root.CreateAttr("ID", "_abc123")
	root.CreateAttr("xmlns", "urn:oasis:names:tc:SAML:2.0:protocol")

	signed, err := SignEnveloped(root, key, cert, RSASHA256, "http://www.w3.org/2001/04/xmlenc#sha256")
	assert.NilError(t, err)
	doc.SetRoot(signed)
	return doc, signed
}

func TestSignAndVerifyEnveloped(t *testing.T) {
	doc, root := signedTestDocument(t)

	sigEl := root.FindElement("./Signature")
	assert.Assert(t, sigEl != nil)

	embeddedCert, err := ExtractEmbeddedCertificate(root)
	assert.NilError(t, err)
	assert.Assert(t, embeddedCert != nil)

	result, err := VerifyEnveloped(doc, root, []*x509.Certificate{embeddedCert}, false)
	assert.NilError(t, err)
	assert.Assert(t, result.Validated != nil)
}

func TestVerifyEnvelopedRejectsDuplicateID(t *testing.T) {
	doc, root := signedTestDocument(t)
	dup := root.CreateElement("Extra")
	dup.CreateAttr("ID", root.SelectAttrValue("ID", ""))

	embeddedCert, err := ExtractEmbeddedCertificate(root)
	assert.NilError(t, err)

	_, err = VerifyEnveloped(doc, root, []*x509.Certificate{embeddedCert}, false)
	if err == nil {
		t.Fatal("expected duplicate ID to be rejected")
	}
}

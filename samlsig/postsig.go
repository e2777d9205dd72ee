package samlsig

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// Sentinel causes returned (wrapped) by VerifyEnveloped, so callers can
// distinguish them with errors.Is and map each onto its own ErrorKind
// instead of collapsing every failure into one generic label.
var (
	ErrNoSignedElement         = errors.New("samlsig: no usable Signature/Reference found")
	ErrDuplicatedSignedElement = errors.New("samlsig: element ID appears more than once in the document")
	ErrDeprecatedAlgorithm     = errors.New("samlsig: algorithm is deprecated and rejected by policy")
)

// DeprecatedAlgorithms are the signature/digest URIs spec §8 law 8
// classifies as deprecated: RSA-SHA1 and SHA1 digests. Rejected whenever
// the caller's rejectDeprecated flag is set.
var DeprecatedAlgorithms = map[string]bool{
	RSASHA1: true,
	"http://www.w3.org/2000/09/xmldsig#sha1": true,
}

// rsaKeyStore adapts a single RSA key/cert pair to goxmldsig's
// X509KeyStore, the interface dsig.SigningContext requires.
type rsaKeyStore struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

func (k *rsaKeyStore) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	if k.key == nil || k.cert == nil {
		return nil, nil, fmt.Errorf("samlsig: no signing key/certificate configured")
	}
	return k.key, k.cert.Raw, nil
}

// signatureMethodURIs maps our SignatureRSA* constants onto the
// goxmldsig constants of the same value (they are the same W3C URIs);
// kept as an explicit table so an unsupported algorithm fails fast with a
// clear message rather than a goxmldsig internal error.
var signatureMethodURIs = map[string]string{
	RSASHA1:   dsig.RSASHA1SignatureMethod,
	RSASHA256: dsig.RSASHA256SignatureMethod,
	RSASHA384: dsig.RSASHA384SignatureMethod,
	RSASHA512: dsig.RSASHA512SignatureMethod,
}

// SignEnveloped produces an enveloped XML-DSig <Signature> on el (which
// must carry the ID referenced by the signature — AuthnRequest,
// LogoutRequest, LogoutResponse, Response, or Assertion, per spec §4.2) and
// returns a copy of el with the signature appended as its last child.
func SignEnveloped(el *etree.Element, key *rsa.PrivateKey, cert *x509.Certificate, sigAlg, digestAlg string) (*etree.Element, error) {
	methodURI, ok := signatureMethodURIs[sigAlg]
	if !ok {
		return nil, fmt.Errorf("samlsig: unsupported signature algorithm %q", sigAlg)
	}

	ctx := dsig.NewDefaultSigningContext(&rsaKeyStore{key: key, cert: cert})
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := ctx.SetSignatureMethod(methodURI); err != nil {
		return nil, fmt.Errorf("samlsig: set signature method: %w", err)
	}

	signed, err := ctx.SignEnveloped(el)
	if err != nil {
		return nil, fmt.Errorf("samlsig: sign: %w", err)
	}
	return signed, nil
}

// VerifyResult carries the element goxmldsig validated (data re-extraction
// must happen only from this subtree, per spec §4.3 step 7's XSW defense)
// and the certificate the signature actually validated against.
type VerifyResult struct {
	Validated   *etree.Element
	Certificate *x509.Certificate
}

// VerifyEnveloped validates the enveloped signature embedded in el (the
// element whose ID the signature's Reference must name) against certs,
// enforcing spec §4.2's structural rules before handing off to goxmldsig
// for the cryptographic check:
//
//   - exactly one Reference in el's (first) Signature
//   - the Reference URI is "#"+el's ID
//   - transforms are exactly enveloped-signature then exclusive C14N
//   - the signature/digest algorithm is not deprecated, when rejectDeprecated
//
// doc is the full parsed document, used to detect duplicate-ID XSW attempts
// (spec §4.3 step 7: "reject if the same ID appears on more than one
// element").
func VerifyEnveloped(doc *etree.Document, el *etree.Element, certs []*x509.Certificate, rejectDeprecated bool) (*VerifyResult, error) {
	id := el.SelectAttrValue("ID", "")
	if id == "" {
		return nil, fmt.Errorf("samlsig: target element has no ID attribute")
	}
	if n := countElementsWithID(doc.Root(), id); n > 1 {
		return nil, errDuplicatedSignedElement(id)
	}

	sigEl := el.FindElement("./Signature")
	if sigEl == nil {
		sigEl = el.FindElement("./*[local-name()='Signature']")
	}
	if sigEl == nil {
		return nil, errNoSignedElement()
	}

	refs := sigEl.FindElements(".//SignedInfo/Reference")
	if len(refs) == 0 {
		refs = sigEl.FindElements(".//*[local-name()='SignedInfo']/*[local-name()='Reference']")
	}
	if len(refs) != 1 {
		return nil, errNoSignedElement()
	}
	ref := refs[0]
	uri := ref.SelectAttrValue("URI", "")
	if uri != "#"+id {
		return nil, fmt.Errorf("samlsig: reference URI %q does not match element ID %q", uri, id)
	}

	transforms := ref.FindElements(".//Transforms/Transform")
	if len(transforms) == 0 {
		transforms = ref.FindElements(".//*[local-name()='Transforms']/*[local-name()='Transform']")
	}
	if len(transforms) != 2 {
		return nil, fmt.Errorf("samlsig: expected exactly 2 transforms (enveloped-signature, exclusive c14n), got %d", len(transforms))
	}
	wantTransforms := []string{
		"http://www.w3.org/2000/09/xmldsig#enveloped-signature",
		"http://www.w3.org/2001/10/xml-exc-c14n#",
	}
	for i, tr := range transforms {
		alg := tr.SelectAttrValue("Algorithm", "")
		if alg != wantTransforms[i] {
			return nil, fmt.Errorf("samlsig: unexpected transform %q", alg)
		}
	}

	if rejectDeprecated {
		sigMethodEl := sigEl.FindElement(".//SignedInfo/SignatureMethod")
		digestMethodEl := ref.FindElement(".//DigestMethod")
		if sigMethodEl != nil && DeprecatedAlgorithms[sigMethodEl.SelectAttrValue("Algorithm", "")] {
			return nil, errDeprecatedAlgorithm(sigMethodEl.SelectAttrValue("Algorithm", ""))
		}
		if digestMethodEl != nil && DeprecatedAlgorithms[digestMethodEl.SelectAttrValue("Algorithm", "")] {
			return nil, errDeprecatedAlgorithm(digestMethodEl.SelectAttrValue("Algorithm", ""))
		}
	}

	if len(certs) == 0 {
		return nil, fmt.Errorf("samlsig: signature verification failed: no certificate to verify against")
	}
	var lastErr error
	for _, c := range certs {
		store := dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{c}}
		ctx := dsig.NewDefaultValidationContext(&store)
		validated, err := ctx.Validate(el)
		if err != nil {
			lastErr = err
			continue
		}
		return &VerifyResult{Validated: validated, Certificate: c}, nil
	}
	return nil, fmt.Errorf("samlsig: signature verification failed: %w", lastErr)
}

// ExtractEmbeddedCertificate pulls the X.509 certificate embedded in el's
// Signature/KeyInfo, for the fingerprint-matching path of spec §4.3 step 9
// (verification against a configured fingerprint rather than a configured
// certificate).
func ExtractEmbeddedCertificate(el *etree.Element) (*x509.Certificate, error) {
	sigEl := el.FindElement("./Signature")
	if sigEl == nil {
		return nil, fmt.Errorf("samlsig: element has no Signature")
	}
	certEl := sigEl.FindElement(".//KeyInfo/X509Data/X509Certificate")
	if certEl == nil {
		certEl = sigEl.FindElement(".//*[local-name()='X509Certificate']")
	}
	if certEl == nil {
		return nil, fmt.Errorf("samlsig: Signature has no embedded X509Certificate")
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(certEl.Text()), ""))
	if err != nil {
		return nil, fmt.Errorf("samlsig: decode embedded certificate: %w", err)
	}
	return x509.ParseCertificate(der)
}

func countElementsWithID(el *etree.Element, id string) int {
	count := 0
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if e.SelectAttrValue("ID", "") == id {
			count++
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	walk(el)
	return count
}

func errNoSignedElement() error {
	return ErrNoSignedElement
}

func errDuplicatedSignedElement(id string) error {
	return fmt.Errorf("%w: id %q", ErrDuplicatedSignedElement, id)
}

func errDeprecatedAlgorithm(alg string) error {
	return fmt.Errorf("%w: %q", ErrDeprecatedAlgorithm, alg)
}

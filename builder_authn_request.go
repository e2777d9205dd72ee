package saml

import (
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"

	"github.com/insaplace-labs/samlsp-core/samlsig"
)

// AuthnRequestOptions configures BuildAuthnRequest, mirroring the
// parameters spec §6 lists for Auth.login.
type AuthnRequestOptions struct {
	ForceAuthn        bool
	IsPassive         bool
	SetNameIDPolicy   bool
	NameIDValueReq    string
}

// BuildAuthnRequest constructs a fresh <AuthnRequest>, per spec §4.1. The
// returned ID becomes the caller's correlation token (spec §3 invariant 4).
func BuildAuthnRequest(s *Settings, opts AuthnRequestOptions) (id string, req *AuthnRequest, err error) {
	id = newID()
	req = &AuthnRequest{
		ID:                          id,
		Version:                     "2.0",
		IssueInstant:                RelaxedTime(s.now()),
		Destination:                 s.IdP.SSOURL,
		ProtocolBinding:             s.SP.ACSBinding,
		AssertionConsumerServiceURL: s.SP.ACSURL,
		Issuer:                      &Issuer{Value: s.SP.EntityID},
	}
	if opts.ForceAuthn {
		req.ForceAuthn = boolPtr(true)
	}
	if opts.IsPassive {
		req.IsPassive = boolPtr(true)
	}
	if opts.SetNameIDPolicy {
		req.NameIDPolicy = &NameIDPolicy{
			Format:      s.SP.NameIDFormat,
			AllowCreate: boolPtr(true),
		}
	}
	if len(s.Security.RequestedAuthnContext) > 0 {
		req.RequestedAuthnContext = &RequestedAuthnContext{
			Comparison:            s.Security.RequestedAuthnContextComparison,
			AuthnContextClassRefs: s.Security.RequestedAuthnContext,
		}
	}
	if opts.NameIDValueReq != "" {
		req.Subject = &Subject{NameID: &NameID{
			Format: s.SP.NameIDFormat,
			Value:  opts.NameIDValueReq,
		}}
	}
	return id, req, nil
}

// marshalAuthnRequest serializes req, embedding an XML signature when sign
// is true. Embedded signing is used for the POST binding only;
// Redirect-binding signing is handled separately by the query-string
// signature engine in samlsig.
func marshalAuthnRequest(s *Settings, req *AuthnRequest, sign bool) ([]byte, error) {
	raw, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal AuthnRequest: %w", err)
	}
	if !sign {
		return raw, nil
	}
	return signElementXML(s, raw)
}

// signElementXML parses rawXML, signs its root element in place with the
// SP's signing key, and returns the serialized, signed document. Used by
// every POST-binding builder (AuthnRequest, LogoutRequest, LogoutResponse).
func signElementXML(s *Settings, rawXML []byte) ([]byte, error) {
	if s.SP.PrivateKey == nil {
		return nil, errPrivateKeyNotFound()
	}
	rsaKey, cert, err := signingKeyPair(s)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawXML); err != nil {
		return nil, fmt.Errorf("parse XML to sign: %w", err)
	}
	signed, err := samlsig.SignEnveloped(doc.Root(), rsaKey, cert, s.Security.SignatureAlgorithm, s.Security.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	doc.SetRoot(signed)
	return doc.WriteToBytes()
}

// builtMessage bundles a built SAML message's raw XML alongside its
// wire-encoded form, for whichever binding the caller is using.
type builtMessage struct {
	ID      string
	RawXML  []byte
	Encoded string // base64 (POST) or DEFLATE+base64 (Redirect)
}

// buildAndEncodeAuthnRequest builds an AuthnRequest and encodes it for the
// binding the IdP's SSO endpoint expects. Embedded (POST) signing happens
// here when Security.AuthnRequestsSigned and the binding is POST; Redirect
// binding signing is the query-string scheme applied by the caller.
func buildAndEncodeAuthnRequest(s *Settings, opts AuthnRequestOptions) (*builtMessage, error) {
	id, req, err := BuildAuthnRequest(s, opts)
	if err != nil {
		return nil, err
	}

	signEmbedded := s.Security.AuthnRequestsSigned && s.IdP.SSOBinding == HTTPPostBinding
	raw, err := marshalAuthnRequest(s, req, signEmbedded)
	if err != nil {
		return nil, err
	}

	var encoded string
	switch s.IdP.SSOBinding {
	case HTTPPostBinding:
		encoded = encodePOST(raw)
	default:
		encoded, err = deflateAndEncode(raw)
		if err != nil {
			return nil, err
		}
	}

	return &builtMessage{ID: id, RawXML: raw, Encoded: encoded}, nil
}

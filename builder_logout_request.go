package saml

import (
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"

	"github.com/insaplace-labs/samlsp-core/xmlsec"
)

// LogoutRequestOptions configures BuildLogoutRequest, per spec §4.1.
type LogoutRequestOptions struct {
	NameID         string
	NameIDFormat   string
	SessionIndexes []string
}

// BuildLogoutRequest constructs a fresh <LogoutRequest>, encrypting the
// NameID when Security.WantNameIDEncrypted is set or NameIDFormat is the
// "encrypted" format (spec §4.1).
func BuildLogoutRequest(s *Settings, opts LogoutRequestOptions) (id string, req *LogoutRequest, err error) {
	id = newID()
	req = &LogoutRequest{
		ID:             id,
		Version:        "2.0",
		IssueInstant:   RelaxedTime(s.now()),
		Destination:    s.IdP.SLOURL,
		Issuer:         &Issuer{Value: s.SP.EntityID},
		SessionIndexes: opts.SessionIndexes,
	}

	format := opts.NameIDFormat
	if format == "" {
		format = s.SP.NameIDFormat
	}

	needsEncryption := s.Security.WantNameIDEncrypted || format == NameIDFormatEncrypted
	if needsEncryption {
		encEl, err := encryptNameID(s, opts.NameID, format)
		if err != nil {
			return "", nil, err
		}
		req.EncryptedID = encEl
	} else {
		req.NameID = &NameID{Format: format, Value: opts.NameID}
	}

	return id, req, nil
}

func encryptNameID(s *Settings, value, format string) (*EncryptedID, error) {
	if len(s.IdP.Certificates) == 0 {
		return nil, errSettingsInvalid("WantNameIDEncrypted requires at least one idp.Certificates entry")
	}
	nameID := &NameID{Format: format, Value: value}
	plain, err := xml.Marshal(nameID)
	if err != nil {
		return nil, err
	}
	encEl, err := xmlsec.EncryptElement(plain, s.IdP.Certificates[0], xmlsec.EncryptOptions{})
	if err != nil {
		return nil, wrapError(ErrEncryptionError, "failed to encrypt NameID", err)
	}
	inner, err := encEl.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return &EncryptedID{EncryptedData: innerXML{XML: string(inner)}}, nil
}

func marshalLogoutRequest(s *Settings, req *LogoutRequest, sign bool) ([]byte, error) {
	raw, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal LogoutRequest: %w", err)
	}
	if !sign {
		return raw, nil
	}
	return signElementXML(s, raw)
}

func buildAndEncodeLogoutRequest(s *Settings, opts LogoutRequestOptions) (*builtMessage, error) {
	id, req, err := BuildLogoutRequest(s, opts)
	if err != nil {
		return nil, err
	}

	signEmbedded := s.Security.LogoutRequestSigned && s.IdP.SLOBinding == HTTPPostBinding
	raw, err := marshalLogoutRequest(s, req, signEmbedded)
	if err != nil {
		return nil, err
	}

	var encoded string
	switch s.IdP.SLOBinding {
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

// decodeLogoutRequest decodes and parses an inbound LogoutRequest for
// either binding, decrypting the NameID when present. It does not perform
// validation (destination/issuer/signature checks live in the logout
// validator); it only exposes the parsed fields spec §4.1 names: ID,
// Issuer, NameID, SessionIndexes, NotOnOrAfter.
func decodeLogoutRequest(binding, encoded string) (*etree.Document, *LogoutRequest, error) {
	raw, err := decodeByBinding(binding, encoded)
	if err != nil {
		return nil, nil, err
	}
	doc, err := parseSecureXML(raw)
	if err != nil {
		return nil, nil, err
	}
	var req LogoutRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		return nil, nil, wrapError(ErrInvalidXML, "failed to unmarshal LogoutRequest", err)
	}
	return doc, &req, nil
}

func decodeByBinding(binding, encoded string) ([]byte, error) {
	if binding == HTTPPostBinding {
		return decodePOST(encoded)
	}
	return inflateAndDecode(encoded)
}

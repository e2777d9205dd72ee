package saml

import (
	"encoding/xml"
	"fmt"
)

// BuildLogoutResponse constructs a fresh <LogoutResponse> acknowledging
// inResponseTo, the ID of the inbound LogoutRequest this SP is replying to
// (spec §4.1). The status is always Success: this core only reaches here
// after the local session has already been torn down.
func BuildLogoutResponse(s *Settings, inResponseTo string) (id string, resp *LogoutResponse, err error) {
	id = newID()
	resp = &LogoutResponse{
		ID:           id,
		Version:      "2.0",
		IssueInstant: RelaxedTime(s.now()),
		Destination:  s.IdP.SLOResponseURL,
		InResponseTo: inResponseTo,
		Issuer:       &Issuer{Value: s.SP.EntityID},
		Status:       Status{StatusCode: StatusCode{Value: StatusSuccess}},
	}
	return id, resp, nil
}

func marshalLogoutResponse(s *Settings, resp *LogoutResponse, sign bool) ([]byte, error) {
	raw, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal LogoutResponse: %w", err)
	}
	if !sign {
		return raw, nil
	}
	return signElementXML(s, raw)
}

func buildAndEncodeLogoutResponse(s *Settings, inResponseTo string) (*builtMessage, error) {
	id, resp, err := BuildLogoutResponse(s, inResponseTo)
	if err != nil {
		return nil, err
	}

	binding := s.IdP.SLOBinding
	signEmbedded := s.Security.LogoutResponseSigned && binding == HTTPPostBinding
	raw, err := marshalLogoutResponse(s, resp, signEmbedded)
	if err != nil {
		return nil, err
	}

	var encoded string
	switch binding {
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

// decodeLogoutResponse decodes and parses an inbound LogoutResponse for
// either binding. Validation (InResponseTo correlation, Status, signature)
// lives in the logout validator.
func decodeLogoutResponse(binding, encoded string) (*LogoutResponse, error) {
	raw, err := decodeByBinding(binding, encoded)
	if err != nil {
		return nil, err
	}
	if _, err := parseSecureXML(raw); err != nil {
		return nil, err
	}
	var resp LogoutResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, wrapError(ErrInvalidXML, "failed to unmarshal LogoutResponse", err)
	}
	return &resp, nil
}

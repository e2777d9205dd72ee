package saml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insaplace-labs/samlsp-core/samlsig"
)

func TestValidateLogoutRequestAcceptsSignedRedirectMessage(t *testing.T) {
	idpKey, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	s.Security.WantMessagesSigned = true

	req := &LogoutRequest{
		ID:           newID(),
		Version:      "2.0",
		IssueInstant: RelaxedTime(s.now()),
		Destination:  s.SP.SLOURL,
		Issuer:       &Issuer{Value: s.IdP.EntityID},
		NameID:       &NameID{Format: NameIDFormatEmail, Value: "alice@example.com"},
	}
	raw, err := marshalLogoutRequest(s, req, false)
	require.NoError(t, err)
	encoded, err := deflateAndEncode(raw)
	require.NoError(t, err)

	sig, err := samlsig.Sign(samlsig.ParamSAMLRequest, encoded, "", s.Security.SignatureAlgorithm, idpKey, false)
	require.NoError(t, err)

	in := logoutMessageInput{
		Binding:   HTTPRedirectBinding,
		Encoded:   encoded,
		SigAlg:    s.Security.SignatureAlgorithm,
		Signature: sig,
	}

	got, result := validateLogoutRequest(s, in)
	require.Empty(t, result.errors)
	assert.Equal(t, "alice@example.com", got.NameID.Value)
}

func TestValidateLogoutRequestRejectsWrongIssuer(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)

	req := &LogoutRequest{
		ID:           newID(),
		Version:      "2.0",
		IssueInstant: RelaxedTime(s.now()),
		Destination:  s.SP.SLOURL,
		Issuer:       &Issuer{Value: "https://not-the-idp.example.com"},
		NameID:       &NameID{Format: NameIDFormatEmail, Value: "alice@example.com"},
	}
	raw, err := marshalLogoutRequest(s, req, false)
	require.NoError(t, err)
	encoded, err := deflateAndEncode(raw)
	require.NoError(t, err)

	in := logoutMessageInput{Binding: HTTPRedirectBinding, Encoded: encoded}
	_, result := validateLogoutRequest(s, in)

	var kinds []ErrorKind
	for _, e := range result.errors {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, ErrInvalidIssuer)
}

func TestValidateLogoutResponseAcceptsValidMessage(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)

	resp := &LogoutResponse{
		ID:           newID(),
		Version:      "2.0",
		IssueInstant: RelaxedTime(s.now()),
		Destination:  s.SP.SLOResponseURL,
		InResponseTo: "_req1",
		Issuer:       &Issuer{Value: s.IdP.EntityID},
		Status:       Status{StatusCode: StatusCode{Value: StatusSuccess}},
	}
	raw, err := marshalLogoutResponse(s, resp, false)
	require.NoError(t, err)
	encoded, err := deflateAndEncode(raw)
	require.NoError(t, err)

	in := logoutMessageInput{Binding: HTTPRedirectBinding, Encoded: encoded}
	got, result := validateLogoutResponse(s, in, "_req1")
	require.Empty(t, result.errors)
	assert.Equal(t, StatusSuccess, got.Status.StatusCode.Value)
}

func TestValidateLogoutResponseRejectsInResponseToMismatch(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)

	resp := &LogoutResponse{
		ID:           newID(),
		Version:      "2.0",
		IssueInstant: RelaxedTime(s.now()),
		Destination:  s.SP.SLOResponseURL,
		InResponseTo: "_req1",
		Issuer:       &Issuer{Value: s.IdP.EntityID},
		Status:       Status{StatusCode: StatusCode{Value: StatusSuccess}},
	}
	raw, err := marshalLogoutResponse(s, resp, false)
	require.NoError(t, err)
	encoded, err := deflateAndEncode(raw)
	require.NoError(t, err)

	in := logoutMessageInput{Binding: HTTPRedirectBinding, Encoded: encoded}
	_, result := validateLogoutResponse(s, in, "_req-different")

	var kinds []ErrorKind
	for _, e := range result.errors {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, ErrInvalidInResponseTo)
}

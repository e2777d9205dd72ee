package saml

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insaplace-labs/samlsp-core/samlsig"
)

func TestAuthLoginProducesRedirectWithRequestID(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)

	msg, err := a.Login("relay-1", nil, false, false, false, "")
	require.NoError(t, err)
	assert.Equal(t, HTTPRedirectBinding, msg.Binding)
	assert.NotEmpty(t, a.LastRequestID())
	assert.Contains(t, msg.Parameters, samlsig.ParamSAMLRequest)
	assert.Equal(t, "relay-1", msg.Parameters[samlsig.ParamRelayState])
}

func TestAuthLoginSignsRedirectWhenConfigured(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	s.Security.AuthnRequestsSigned = true
	a := NewAuth(s)

	msg, err := a.Login("", nil, false, false, false, "")
	require.NoError(t, err)
	assert.Contains(t, msg.Parameters, samlsig.ParamSignature)
	assert.Contains(t, msg.Parameters, samlsig.ParamSigAlg)
}

func TestAuthLogoutFailsWhenIdPHasNoSLO(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	s.IdP.SLOURL = ""
	a := NewAuth(s)

	_, err := a.Logout("")
	require.Error(t, err)
}

func TestAuthLogoutUsesSessionNameID(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)
	a.SessionResult.NameID = "alice@example.com"
	a.SessionResult.SessionIndex = "sess-1"

	msg, err := a.Logout("")
	require.NoError(t, err)
	assert.Equal(t, s.IdP.SLOURL, msg.URL)
	assert.NotEmpty(t, a.LastRequestID())
}

func TestAuthProcessResponseRejectsMissingSAMLResponse(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)

	err := a.ProcessResponse(map[string]string{}, "_req1")
	require.Error(t, err)
}

func TestAuthProcessResponseAuthenticatesOnValidAssertion(t *testing.T) {
	idpKey, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)

	encoded := signedResponse(t, s, idpKey, idpCert, "_req1", nil)
	err := a.ProcessResponse(map[string]string{samlsig.ParamSAMLResponse: encoded}, "_req1")
	require.NoError(t, err)
	assert.True(t, a.SessionResult.Authenticated)
	assert.Empty(t, a.Errors())
}

type rejectingHandler struct{ calledWith *Assertion }

func (h *rejectingHandler) HandleAssertion(a *Assertion) error {
	h.calledWith = a
	return fmt.Errorf("account provisioning is disabled")
}

func TestAuthProcessResponseRejectedByAssertionHandler(t *testing.T) {
	idpKey, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)
	handler := &rejectingHandler{}
	a.AssertionHandler = handler

	encoded := signedResponse(t, s, idpKey, idpCert, "_req1", nil)
	err := a.ProcessResponse(map[string]string{samlsig.ParamSAMLResponse: encoded}, "_req1")
	require.NoError(t, err)
	assert.False(t, a.SessionResult.Authenticated)
	require.NotNil(t, handler.calledWith)
	assert.Equal(t, "alice@example.com", handler.calledWith.Subject.NameID.Value)
	assert.Contains(t, a.Errors(), ErrAssertionHandlerFailed)
}

func TestAuthProcessResponseAccumulatesErrorsWithoutRaising(t *testing.T) {
	idpKey, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)

	encoded := signedResponse(t, s, idpKey, idpCert, "_req1", func(asn *Assertion, r *Response) {
		asn.Conditions.AudienceRestrictions[0].Audiences[0].Value = "https://wrong.example.com"
	})
	err := a.ProcessResponse(map[string]string{samlsig.ParamSAMLResponse: encoded}, "_req1")
	require.NoError(t, err)
	assert.False(t, a.SessionResult.Authenticated)
	assert.NotEmpty(t, a.Errors())
	assert.NotEmpty(t, a.LastError())
}

func TestAuthProcessSLORespondsToIdPInitiatedLogout(t *testing.T) {
	idpKey, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)
	a.SessionResult.NameID = "alice@example.com"

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
	_ = idpKey

	deleted := false
	msg, err := a.ProcessSLO(map[string]string{samlsig.ParamSAMLRequest: encoded}, false, "", func() error {
		deleted = true
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, deleted)
	assert.Empty(t, a.SessionResult.NameID)
	assert.Contains(t, msg.Parameters, samlsig.ParamSAMLResponse)
}

func TestAuthProcessSLORejectsEmptyQuery(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	a := NewAuth(s)

	_, err := a.ProcessSLO(map[string]string{}, false, "", nil)
	require.Error(t, err)
}

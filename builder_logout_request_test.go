package saml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLogoutRequest(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)

	id, req, err := BuildLogoutRequest(s, LogoutRequestOptions{NameID: "alice", SessionIndexes: []string{"sess-1"}})
	require.NoError(t, err)
	assert.Equal(t, id, req.ID)
	assert.Equal(t, s.IdP.SLOURL, req.Destination)
	require.NotNil(t, req.NameID)
	assert.Equal(t, "alice", req.NameID.Value)
	assert.Equal(t, []string{"sess-1"}, req.SessionIndexes)
}

func TestBuildLogoutRequestEncryptsNameIDWhenConfigured(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	s.Security.WantNameIDEncrypted = true

	_, req, err := BuildLogoutRequest(s, LogoutRequestOptions{NameID: "alice"})
	require.NoError(t, err)
	assert.Nil(t, req.NameID)
	require.NotNil(t, req.EncryptedID)
	assert.Contains(t, req.EncryptedID.EncryptedData.XML, "EncryptedData")
}

func TestBuildAndEncodeLogoutRequestRoundTripsThroughRedirectBinding(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)
	s.IdP.SLOBinding = HTTPRedirectBinding

	msg, err := buildAndEncodeLogoutRequest(s, LogoutRequestOptions{NameID: "alice"})
	require.NoError(t, err)

	raw, err := inflateAndDecode(msg.Encoded)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<LogoutRequest")
}

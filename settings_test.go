package saml

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insaplace-labs/samlsp-core/logger"
)

func TestNewSettingsRequiresSPEntityID(t *testing.T) {
	_, err := NewSettings(true, SPSettings{}, IdPSettings{EntityID: "idp", Fingerprints: []string{"aa"}}, SecuritySettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sp_entityid")
}

func TestNewSettingsRequiresACSURL(t *testing.T) {
	_, err := NewSettings(true, SPSettings{EntityID: "sp"}, IdPSettings{EntityID: "idp", Fingerprints: []string{"aa"}}, SecuritySettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sp_acs_url")
}

func TestNewSettingsDefaultsBindings(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	s, err := NewSettings(false, SPSettings{EntityID: "sp", ACSURL: "https://sp/acs"},
		IdPSettings{EntityID: "idp", Certificates: []*x509.Certificate{idpCert}}, SecuritySettings{})
	require.NoError(t, err)
	assert.Equal(t, HTTPPostBinding, s.SP.ACSBinding)
	assert.Equal(t, HTTPRedirectBinding, s.SP.SLOBinding)
	assert.Equal(t, HTTPRedirectBinding, s.IdP.SSOBinding)
	assert.Equal(t, SignatureRSASHA256, s.Security.SignatureAlgorithm)
	assert.Equal(t, DigestSHA256, s.Security.DigestAlgorithm)
}

func TestNewSettingsRejectsMissingIdPTrust(t *testing.T) {
	_, err := NewSettings(true, SPSettings{EntityID: "sp", ACSURL: "https://sp/acs"},
		IdPSettings{EntityID: "idp"}, SecuritySettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint")
}

func TestNewSettingsRejectsDeprecatedAlgorithmWhenConfigured(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	_, err := NewSettings(true, SPSettings{EntityID: "sp", ACSURL: "https://sp/acs"},
		IdPSettings{EntityID: "idp", Certificates: []*x509.Certificate{idpCert}},
		SecuritySettings{SignatureAlgorithm: SignatureRSASHA1, RejectDeprecatedAlgorithm: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deprecated")
}

func TestNewSettingsDefaultsLogger(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	s, err := NewSettings(false, SPSettings{EntityID: "sp", ACSURL: "https://sp/acs"},
		IdPSettings{EntityID: "idp", Certificates: []*x509.Certificate{idpCert}}, SecuritySettings{})
	require.NoError(t, err)
	assert.Equal(t, logger.DefaultLogger, s.Logger)
}

func TestSettingsLogFallsBackToDefaultLoggerWhenNil(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	s, err := NewSettings(false, SPSettings{EntityID: "sp", ACSURL: "https://sp/acs"},
		IdPSettings{EntityID: "idp", Certificates: []*x509.Certificate{idpCert}}, SecuritySettings{})
	require.NoError(t, err)

	captured := &capturingLogger{}
	s.Logger = captured
	s.log().Printf("test message %d", 1)
	require.Len(t, captured.lines, 1)
	assert.Equal(t, "test message 1", captured.lines[0])
}

func TestSetStrictIsConcurrencySafe(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	s, err := NewSettings(false, SPSettings{EntityID: "sp", ACSURL: "https://sp/acs"},
		IdPSettings{EntityID: "idp", Certificates: []*x509.Certificate{idpCert}}, SecuritySettings{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.SetStrict(i%2 == 0)
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		_ = s.Strict()
	}
	<-done
}

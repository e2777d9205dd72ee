package saml

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insaplace-labs/samlsp-core/logger"
)

type capturingLogger struct {
	lines []string
}

func (c *capturingLogger) Printf(format string, v ...interface{}) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}
func (c *capturingLogger) Println(v ...interface{}) {
	c.lines = append(c.lines, fmt.Sprint(v...))
}

var _ logger.Interface = (*capturingLogger)(nil)

func TestParseEntityDescriptorAndAdapt(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	certB64 := base64.StdEncoding.EncodeToString(idpCert.Raw)

	doc := fmt.Sprintf(`<?xml version="1.0"?>
<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://idp.example.com/metadata">
  <IDPSSODescriptor>
    <KeyDescriptor use="signing">
      <KeyInfo><X509Data><X509Certificate>%s</X509Certificate></X509Data></KeyInfo>
    </KeyDescriptor>
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.com/sso"/>
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location="https://idp.example.com/sso-post"/>
    <SingleLogoutService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.com/slo"/>
  </IDPSSODescriptor>
</EntityDescriptor>`, certB64)

	ed, err := ParseEntityDescriptor([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com/metadata", ed.EntityID)

	idp, err := FromEntityDescriptor(ed)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com/metadata", idp.EntityID)
	require.Len(t, idp.Certificates, 1)
	assert.Equal(t, idpCert.Raw, idp.Certificates[0].Raw)
	assert.Equal(t, HTTPRedirectBinding, idp.SSOBinding)
	assert.Equal(t, "https://idp.example.com/sso", idp.SSOURL)
	assert.Equal(t, "https://idp.example.com/slo", idp.SLOURL)
	assert.Equal(t, idp.SLOURL, idp.SLOResponseURL)
}

func TestParseMetadataDocumentUnwrapsEntitiesDescriptor(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	certB64 := base64.StdEncoding.EncodeToString(idpCert.Raw)

	doc := fmt.Sprintf(`<?xml version="1.0"?>
<EntitiesDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata">
  <EntityDescriptor entityID="https://sp-only.example.com/metadata"></EntityDescriptor>
  <EntityDescriptor entityID="https://idp.example.com/metadata">
    <IDPSSODescriptor>
      <KeyDescriptor use="signing">
        <KeyInfo><X509Data><X509Certificate>%s</X509Certificate></X509Data></KeyInfo>
      </KeyDescriptor>
      <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.com/sso"/>
    </IDPSSODescriptor>
  </EntityDescriptor>
</EntitiesDescriptor>`, certB64)

	ed, err := ParseMetadataDocument([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com/metadata", ed.EntityID)
}

func TestFromEntityDescriptorRejectsMissingIDPSSODescriptor(t *testing.T) {
	ed := &EntityDescriptor{EntityID: "https://idp.example.com/metadata"}
	_, err := FromEntityDescriptor(ed)
	require.Error(t, err)
}

func TestFromEntityDescriptorLogsSkippedCertificates(t *testing.T) {
	log := &capturingLogger{}
	ed := &EntityDescriptor{
		EntityID: "https://idp.example.com/metadata",
		IDPSSODescriptors: []IDPSSODescriptor{{
			KeyDescriptors: []KeyDescriptor{
				{Use: "signing", KeyInfo: KeyInfo{X509Data: X509Data{X509Certificate: "not-valid-base64-der!!"}}},
			},
			SingleSignOnServices: []Endpoint{{Binding: HTTPRedirectBinding, Location: "https://idp.example.com/sso"}},
		}},
	}

	_, err := fromEntityDescriptor(log, ed)
	require.Error(t, err)
	assert.NotEmpty(t, log.lines)
}

func TestFromEntityDescriptorRejectsNoUsableCertificate(t *testing.T) {
	ed := &EntityDescriptor{
		EntityID: "https://idp.example.com/metadata",
		IDPSSODescriptors: []IDPSSODescriptor{{
			KeyDescriptors: []KeyDescriptor{{Use: "encryption"}},
		}},
	}
	_, err := FromEntityDescriptor(ed)
	require.Error(t, err)
}

package saml

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelaxedTimeMarshalXMLAttrOmitsZeroValue(t *testing.T) {
	var zero RelaxedTime
	attr, err := zero.MarshalXMLAttr(xml.Name{Local: "NotOnOrAfter"})
	require.NoError(t, err)
	assert.Equal(t, xml.Attr{}, attr)
}

func TestBuildLogoutRequestOmitsNotOnOrAfter(t *testing.T) {
	_, idpCert := generateTestCert(t, "idp")
	spKey, spCert := generateTestCert(t, "sp")
	s := testSettings(t, idpCert, spKey, spCert)

	msg, err := buildAndEncodeLogoutRequest(s, LogoutRequestOptions{NameID: "alice@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(string(msg.RawXML)), "notonorafter")
}

func TestRelaxedTimeMarshalXMLAttrFormatsNonZeroValue(t *testing.T) {
	ts := RelaxedTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	attr, err := ts.MarshalXMLAttr(xml.Name{Local: "NotOnOrAfter"})
	require.NoError(t, err)
	assert.Equal(t, "NotOnOrAfter", attr.Name.Local)
	assert.Equal(t, "2026-01-02T03:04:05Z", attr.Value)
}

package saml

import (
	"encoding/xml"
	"fmt"

	"github.com/insaplace-labs/samlsp-core/logger"
)

// The metadata types below are grounded on the teacher's own
// EntityDescriptor/SPSSODescriptor shapes (service_multiple_provider.go)
// and the wider corpus's IDPSSODescriptor/KeyDescriptor conventions; only
// the fields FromEntityDescriptor needs are kept, since this core does not
// publish or fetch metadata itself (spec §1 non-goal) — it only consumes
// an already-fetched document.

// EntityDescriptor is the root of a SAML metadata document.
type EntityDescriptor struct {
	XMLName           xml.Name           `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntityDescriptor"`
	EntityID          string             `xml:"entityID,attr"`
	IDPSSODescriptors []IDPSSODescriptor `xml:"IDPSSODescriptor"`
}

// IDPSSODescriptor describes an identity provider's endpoints and keys.
type IDPSSODescriptor struct {
	KeyDescriptors       []KeyDescriptor `xml:"KeyDescriptor"`
	SingleSignOnServices []Endpoint      `xml:"SingleSignOnService"`
	SingleLogoutServices []Endpoint      `xml:"SingleLogoutService"`
}

// KeyDescriptor carries a signing or encryption certificate.
type KeyDescriptor struct {
	Use     string  `xml:"use,attr"`
	KeyInfo KeyInfo `xml:"KeyInfo"`
}

// KeyInfo wraps the embedded X.509 certificate.
type KeyInfo struct {
	X509Data X509Data `xml:"X509Data"`
}

// X509Data carries the base64 DER certificate text.
type X509Data struct {
	X509Certificate string `xml:"X509Certificate"`
}

// Endpoint is a SAML metadata binding/location pair.
type Endpoint struct {
	Binding  string `xml:"Binding,attr"`
	Location string `xml:"Location,attr"`
}

// ParseEntityDescriptor parses a raw metadata document using the same
// secure-parsing discipline as every other inbound document this core
// handles (spec §4.3 step 2's concerns apply equally to metadata).
func ParseEntityDescriptor(data []byte) (*EntityDescriptor, error) {
	if _, err := parseSecureXML(data); err != nil {
		return nil, err
	}
	var ed EntityDescriptor
	if err := xml.Unmarshal(data, &ed); err != nil {
		return nil, fmt.Errorf("saml: failed to unmarshal EntityDescriptor: %w", err)
	}
	return &ed, nil
}

// EntitiesDescriptor wraps a batch of EntityDescriptors, the shape some
// IdPs publish metadata under instead of a bare EntityDescriptor.
type EntitiesDescriptor struct {
	XMLName           xml.Name           `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntitiesDescriptor"`
	EntityDescriptors []EntityDescriptor `xml:"EntityDescriptor"`
}

// ParseMetadataDocument parses a metadata document whose top-level element
// may be either <EntityDescriptor> or <EntitiesDescriptor>, returning the
// first descriptor that advertises an IDPSSODescriptor. This core does not
// fetch metadata over the network itself (spec §1 non-goal); callers fetch
// the bytes however suits their transport and hand them here.
func ParseMetadataDocument(data []byte) (*EntityDescriptor, error) {
	if ed, err := ParseEntityDescriptor(data); err == nil {
		return ed, nil
	}

	if _, err := parseSecureXML(data); err != nil {
		return nil, err
	}
	var entities EntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("saml: failed to unmarshal EntitiesDescriptor: %w", err)
	}
	for i, e := range entities.EntityDescriptors {
		if len(e.IDPSSODescriptors) > 0 {
			return &entities.EntityDescriptors[i], nil
		}
	}
	return nil, fmt.Errorf("saml: no EntityDescriptor with an IDPSSODescriptor found")
}

// FromEntityDescriptor adapts a parsed IdP EntityDescriptor onto
// IdPSettings (SPEC_FULL.md §C.5), collecting the certificate of every
// KeyDescriptor whose use is "signing" or unset, in document order, and picking the
// Redirect binding's SSO/SLO endpoint when both Redirect and POST are
// advertised (matching this core's own Redirect-preferred defaults).
func FromEntityDescriptor(ed *EntityDescriptor) (IdPSettings, error) {
	return fromEntityDescriptor(logger.DefaultLogger, ed)
}

func fromEntityDescriptor(log logger.Interface, ed *EntityDescriptor) (IdPSettings, error) {
	if len(ed.IDPSSODescriptors) == 0 {
		return IdPSettings{}, fmt.Errorf("saml: EntityDescriptor has no IDPSSODescriptor")
	}
	descriptor := ed.IDPSSODescriptors[0]

	idp := IdPSettings{EntityID: ed.EntityID}

	for _, kd := range descriptor.KeyDescriptors {
		certPEM := kd.KeyInfo.X509Data.X509Certificate
		if certPEM == "" {
			continue
		}
		cert, err := parseCertificatePEM(wrapDERAsPEM(certPEM))
		if err != nil {
			log.Printf("saml: skipping unparseable KeyDescriptor certificate: %v", err)
			continue
		}
		if kd.Use == "" || kd.Use == "signing" {
			idp.Certificates = append(idp.Certificates, cert)
		}
	}
	if len(idp.Certificates) == 0 {
		return IdPSettings{}, fmt.Errorf("saml: EntityDescriptor has no usable signing certificate")
	}

	idp.SSOURL, idp.SSOBinding = pickEndpoint(descriptor.SingleSignOnServices)
	idp.SLOURL, idp.SLOBinding = pickEndpoint(descriptor.SingleLogoutServices)
	idp.SLOResponseURL = idp.SLOURL

	return idp, nil
}

func pickEndpoint(endpoints []Endpoint) (url, binding string) {
	var fallbackURL, fallbackBinding string
	for _, ep := range endpoints {
		if ep.Binding == HTTPRedirectBinding {
			return ep.Location, ep.Binding
		}
		if fallbackURL == "" {
			fallbackURL, fallbackBinding = ep.Location, ep.Binding
		}
	}
	return fallbackURL, fallbackBinding
}

func wrapDERAsPEM(base64DER string) string {
	return "-----BEGIN CERTIFICATE-----\n" + base64DER + "\n-----END CERTIFICATE-----\n"
}

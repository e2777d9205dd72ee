package saml

import (
	"encoding/xml"
)

// Binding URNs, per spec §6.
const (
	HTTPPostBinding     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	HTTPRedirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
)

// Status codes.
const (
	StatusSuccess = "urn:oasis:names:tc:SAML:2.0:status:Success"
)

// NameID formats.
const (
	NameIDFormatUnspecified = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEmail       = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDFormatPersistent  = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDFormatTransient   = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
	NameIDFormatEncrypted   = "urn:oasis:names:tc:SAML:2.0:nameid-format:encrypted"
)

// Signature/digest algorithm URIs, per spec §6.
const (
	SignatureRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	SignatureRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	SignatureRSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	SignatureRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"

	DigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// deprecatedAlgorithms is consulted when Security.RejectDeprecatedAlgorithm
// is set (spec §4.2(e), §8 law 8).
var deprecatedAlgorithms = map[string]bool{
	SignatureRSASHA1:                        true,
	DigestSHA1:                              true,
	"http://www.w3.org/2001/04/xmlenc#rsa-1_5": true,
}

// Encryption algorithm URIs, per spec §6.
const (
	EncryptionAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	EncryptionAES192CBC = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	EncryptionAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	EncryptionAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	EncryptionAES192GCM = "http://www.w3.org/2009/xmlenc11#aes192-gcm"
	EncryptionAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	Encryption3DESCBC   = "http://www.w3.org/2001/04/xmlenc#tripledes-cbc"

	KeyTransportOAEP = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	KeyTransportRSA15 = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
)

// Issuer is the SAML <Issuer> element, common to every request/response.
type Issuer struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Format  string   `xml:"Format,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// NameID is the SAML <NameID> element.
type NameID struct {
	XMLName         xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion NameID"`
	Format          string   `xml:"Format,attr,omitempty"`
	NameQualifier   string   `xml:"NameQualifier,attr,omitempty"`
	SPNameQualifier string   `xml:"SPNameQualifier,attr,omitempty"`
	Value           string   `xml:",chardata"`
}

// EncryptedID wraps an encrypted NameID (xenc:EncryptedData/EncryptedKey),
// carried opaquely until xmlsec.ParseEncryptedData and
// xmlsec.DecryptKnownKeys are applied.
type EncryptedID struct {
	XMLName       xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion EncryptedID"`
	EncryptedData innerXML `xml:"http://www.w3.org/2001/04/xmlenc# EncryptedData"`
}

// innerXML captures an element's raw inner XML so it can be handed to the
// xmlsec package without a round trip through reflection-based marshalling.
type innerXML struct {
	XML string `xml:",innerxml"`
}

// NameIDPolicy is the SAML <NameIDPolicy> element of an AuthnRequest.
type NameIDPolicy struct {
	XMLName     xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol NameIDPolicy"`
	Format      string   `xml:"Format,attr,omitempty"`
	AllowCreate *bool    `xml:"AllowCreate,attr,omitempty"`
}

// RequestedAuthnContext is the SAML <RequestedAuthnContext> element.
type RequestedAuthnContext struct {
	XMLName               xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol RequestedAuthnContext"`
	Comparison            string   `xml:"Comparison,attr,omitempty"`
	AuthnContextClassRefs []string `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContextClassRef"`
}

// Subject is the SAML <Subject> element.
type Subject struct {
	XMLName              xml.Name              `xml:"urn:oasis:names:tc:SAML:2.0:assertion Subject"`
	NameID                *NameID               `xml:"NameID,omitempty"`
	EncryptedID           *EncryptedID          `xml:"EncryptedID,omitempty"`
	SubjectConfirmations  []SubjectConfirmation `xml:"SubjectConfirmation,omitempty"`
}

// SubjectConfirmation is the SAML <SubjectConfirmation> element.
type SubjectConfirmation struct {
	XMLName                 xml.Name                  `xml:"urn:oasis:names:tc:SAML:2.0:assertion SubjectConfirmation"`
	Method                   string                    `xml:"Method,attr"`
	SubjectConfirmationData *SubjectConfirmationData  `xml:"SubjectConfirmationData,omitempty"`
}

// SubjectConfirmationData is the SAML <SubjectConfirmationData> element.
type SubjectConfirmationData struct {
	XMLName      xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:assertion SubjectConfirmationData"`
	NotBefore    RelaxedTime `xml:"NotBefore,attr,omitempty"`
	NotOnOrAfter RelaxedTime `xml:"NotOnOrAfter,attr,omitempty"`
	Recipient    string      `xml:"Recipient,attr,omitempty"`
	InResponseTo string      `xml:"InResponseTo,attr,omitempty"`
	Address      string      `xml:"Address,attr,omitempty"`
}

// Audience is the SAML <Audience> element.
type Audience struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Audience"`
	Value   string   `xml:",chardata"`
}

// AudienceRestriction is the SAML <AudienceRestriction> element.
type AudienceRestriction struct {
	XMLName    xml.Name   `xml:"urn:oasis:names:tc:SAML:2.0:assertion AudienceRestriction"`
	Audiences  []Audience `xml:"Audience"`
}

// Conditions is the SAML <Conditions> element.
type Conditions struct {
	XMLName              xml.Name             `xml:"urn:oasis:names:tc:SAML:2.0:assertion Conditions"`
	NotBefore            RelaxedTime          `xml:"NotBefore,attr,omitempty"`
	NotOnOrAfter         RelaxedTime          `xml:"NotOnOrAfter,attr,omitempty"`
	AudienceRestrictions []AudienceRestriction `xml:"AudienceRestriction,omitempty"`
}

// AuthnContextClassRef is the SAML <AuthnContextClassRef> element.
type AuthnContextClassRef struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContextClassRef"`
	Value   string   `xml:",chardata"`
}

// AuthnContext is the SAML <AuthnContext> element.
type AuthnContext struct {
	XMLName              xml.Name              `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContext"`
	AuthnContextClassRef *AuthnContextClassRef `xml:"AuthnContextClassRef,omitempty"`
}

// AuthnStatement is the SAML <AuthnStatement> element.
type AuthnStatement struct {
	XMLName             xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnStatement"`
	AuthnInstant         RelaxedTime `xml:"AuthnInstant,attr,omitempty"`
	SessionIndex         string      `xml:"SessionIndex,attr,omitempty"`
	SessionNotOnOrAfter  RelaxedTime `xml:"SessionNotOnOrAfter,attr,omitempty"`
	AuthnContext         *AuthnContext `xml:"AuthnContext,omitempty"`
}

// AttributeValue is a single value of a SAML <Attribute>.
type AttributeValue struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion AttributeValue"`
	Type    string   `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// Attribute is the SAML <Attribute> element.
type Attribute struct {
	XMLName      xml.Name         `xml:"urn:oasis:names:tc:SAML:2.0:assertion Attribute"`
	Name         string           `xml:"Name,attr"`
	FriendlyName string           `xml:"FriendlyName,attr,omitempty"`
	NameFormat   string           `xml:"NameFormat,attr,omitempty"`
	Values       []AttributeValue `xml:"AttributeValue"`
}

// AttributeStatement is the SAML <AttributeStatement> element.
type AttributeStatement struct {
	XMLName    xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:assertion AttributeStatement"`
	Attributes []Attribute `xml:"Attribute"`
}

// Assertion is the SAML <Assertion> element.
type Assertion struct {
	XMLName            xml.Name             `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`
	ID                 string               `xml:"ID,attr"`
	Version            string               `xml:"Version,attr"`
	IssueInstant       RelaxedTime          `xml:"IssueInstant,attr"`
	Issuer             *Issuer              `xml:"Issuer,omitempty"`
	Subject            *Subject             `xml:"Subject,omitempty"`
	Conditions         *Conditions          `xml:"Conditions,omitempty"`
	AuthnStatements    []AuthnStatement     `xml:"AuthnStatement,omitempty"`
	AttributeStatement *AttributeStatement  `xml:"AttributeStatement,omitempty"`
}

// EncryptedAssertion wraps an xenc:EncryptedData payload carrying an
// <Assertion>, until decryptAssertion replaces it with the decrypted
// Assertion.
type EncryptedAssertion struct {
	XMLName       xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion EncryptedAssertion"`
	EncryptedData innerXML `xml:"http://www.w3.org/2001/04/xmlenc# EncryptedData"`
}

// StatusCode is the SAML <StatusCode> element.
type StatusCode struct {
	XMLName    xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:protocol StatusCode"`
	Value      string      `xml:"Value,attr"`
	StatusCode *StatusCode `xml:"StatusCode,omitempty"`
}

// StatusMessage is the SAML <StatusMessage> element.
type StatusMessage struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol StatusMessage"`
	Value   string   `xml:",chardata"`
}

// Status is the SAML <Status> element.
type Status struct {
	XMLName       xml.Name       `xml:"urn:oasis:names:tc:SAML:2.0:protocol Status"`
	StatusCode    StatusCode     `xml:"StatusCode"`
	StatusMessage *StatusMessage `xml:"StatusMessage,omitempty"`
}

// AuthnRequest is the SAML <AuthnRequest> element, per spec §4.1.
type AuthnRequest struct {
	XMLName                       xml.Name               `xml:"urn:oasis:names:tc:SAML:2.0:protocol AuthnRequest"`
	ID                            string                 `xml:"ID,attr"`
	Version                       string                 `xml:"Version,attr"`
	IssueInstant                  RelaxedTime            `xml:"IssueInstant,attr"`
	Destination                   string                 `xml:"Destination,attr,omitempty"`
	ProtocolBinding               string                 `xml:"ProtocolBinding,attr,omitempty"`
	AssertionConsumerServiceURL   string                 `xml:"AssertionConsumerServiceURL,attr,omitempty"`
	ForceAuthn                    *bool                  `xml:"ForceAuthn,attr,omitempty"`
	IsPassive                     *bool                  `xml:"IsPassive,attr,omitempty"`
	Issuer                        *Issuer                `xml:"Issuer,omitempty"`
	NameIDPolicy                  *NameIDPolicy          `xml:"NameIDPolicy,omitempty"`
	RequestedAuthnContext         *RequestedAuthnContext `xml:"RequestedAuthnContext,omitempty"`
	Subject                       *Subject               `xml:"Subject,omitempty"`
}

// Response is the SAML <Response> element, per spec §4.3.
type Response struct {
	XMLName            xml.Name             `xml:"urn:oasis:names:tc:SAML:2.0:protocol Response"`
	ID                 string               `xml:"ID,attr"`
	Version            string               `xml:"Version,attr"`
	IssueInstant       RelaxedTime          `xml:"IssueInstant,attr"`
	Destination        string               `xml:"Destination,attr,omitempty"`
	InResponseTo       string               `xml:"InResponseTo,attr,omitempty"`
	Issuer             *Issuer              `xml:"Issuer,omitempty"`
	Status             Status               `xml:"Status"`
	EncryptedAssertion *EncryptedAssertion  `xml:"EncryptedAssertion,omitempty"`
	Assertion          *Assertion           `xml:"Assertion,omitempty"`
}

// LogoutRequest is the SAML <LogoutRequest> element, per spec §4.1.
type LogoutRequest struct {
	XMLName        xml.Name     `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutRequest"`
	ID             string       `xml:"ID,attr"`
	Version        string       `xml:"Version,attr"`
	IssueInstant   RelaxedTime  `xml:"IssueInstant,attr"`
	Destination    string       `xml:"Destination,attr,omitempty"`
	NotOnOrAfter   RelaxedTime  `xml:"NotOnOrAfter,attr,omitempty"`
	Issuer         *Issuer      `xml:"Issuer,omitempty"`
	NameID         *NameID      `xml:"NameID,omitempty"`
	EncryptedID    *EncryptedID `xml:"EncryptedID,omitempty"`
	SessionIndexes []string     `xml:"SessionIndex,omitempty"`
}

// LogoutResponse is the SAML <LogoutResponse> element, per spec §4.1.
type LogoutResponse struct {
	XMLName      xml.Name    `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutResponse"`
	ID           string      `xml:"ID,attr"`
	Version      string      `xml:"Version,attr"`
	IssueInstant RelaxedTime `xml:"IssueInstant,attr"`
	Destination  string      `xml:"Destination,attr,omitempty"`
	InResponseTo string      `xml:"InResponseTo,attr,omitempty"`
	Issuer       *Issuer     `xml:"Issuer,omitempty"`
	Status       Status      `xml:"Status"`
}

func boolPtr(b bool) *bool { return &b }

package saml

import (
	"crypto/x509"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/insaplace-labs/samlsp-core/samlsig"
	"github.com/insaplace-labs/samlsp-core/xmlsec"
)

// responseValidationResult is the accumulated outcome of validateResponse:
// a populated SessionResult (meaningful only when len(Errors) == 0, per
// spec §3 invariant 3) plus every ErrorObject raised along the way, in the
// non-raising accumulation style spec §7 requires of processResponse.
type responseValidationResult struct {
	session   *SessionResult
	errors    []*ErrorObject
	rawXML    []byte
	assertion *Assertion
}

func (r *responseValidationResult) fail(kind ErrorKind, detail string, cause error) {
	r.errors = append(r.errors, wrapError(kind, detail, cause))
}

// validateResponse implements spec §4.3's eighteen-step Response
// validation pipeline. It never returns an error itself; every failure is
// accumulated into the result's errors slice so callers can report every
// applicable reason a Response was rejected, matching the accumulation
// policy of spec §7.
func validateResponse(s *Settings, encodedResponse string, expectedRequestID string) *responseValidationResult {
	result := &responseValidationResult{session: newSessionResult()}

	// strict governs spec §4.3's pipeline preamble: abort on the first
	// failure, or keep collecting so a caller learns every applicable
	// rejection reason at once (spec §7). Every step below that can fail
	// independently of the steps before it consults this flag; the two
	// exceptions — the secure-parse step and the point where a validated
	// Assertion element must exist to keep going — stay unconditional
	// because no further check is even computable without their output,
	// not because of a strict-mode policy choice.
	strict := s.Strict()

	// Step 1: decode. The Response binding is always POST: plain base64,
	// never DEFLATE (spec §4.3 step 1).
	raw, err := decodePOST(encodedResponse)
	if err != nil {
		result.fail(ErrInvalidXML, "failed to base64-decode SAMLResponse", err)
		if strict {
			return result
		}
	}

	// Step 2: parse securely. A document that doesn't parse leaves nothing
	// for any later step to examine, so this remains a hard stop
	// regardless of strict.
	doc, err := parseSecureXML(raw)
	if err != nil {
		result.fail(ErrInvalidXML, "failed to parse Response XML", err)
		return result
	}
	result.rawXML = raw

	// Step 3: schema check, when configured. This core does not carry a
	// validating XSD parser (none of the retrieved dependencies provide
	// one without cgo); WantXMLValidation instead enforces the structural
	// shape a schema-valid Response must have at minimum: a Response root
	// in the protocol namespace, and exactly one Status child.
	if s.Security.WantXMLValidation {
		if err := validateResponseShape(doc.Root()); err != nil {
			result.fail(ErrSchemaViolation, "Response failed structural validation", err)
			if strict {
				return result
			}
		}
	}

	var resp Response
	if err := xml.Unmarshal(raw, &resp); err != nil {
		result.fail(ErrInvalidXML, "failed to unmarshal Response", err)
		if strict {
			return result
		}
	}

	// Step 4: status.
	if resp.Status.StatusCode.Value != StatusSuccess {
		detail := resp.Status.StatusCode.Value
		if resp.Status.StatusMessage != nil {
			detail += ": " + resp.Status.StatusMessage.Value
		}
		result.fail(ErrResponseStatusError, detail, nil)
		if strict {
			return result
		}
	}

	// Step 5: structural singleton — exactly one of Assertion or
	// EncryptedAssertion.
	hasPlain := resp.Assertion != nil
	hasEncrypted := resp.EncryptedAssertion != nil
	if hasPlain == hasEncrypted {
		result.fail(ErrSchemaViolation, "Response must contain exactly one Assertion or EncryptedAssertion", nil)
		if strict {
			return result
		}
	}

	responseEl := doc.Root()
	assertionEl, err := requireSingleChild(responseEl, "Assertion")
	if err != nil {
		// The Assertion may live inside EncryptedAssertion; decrypt below
		// replaces the document node before this is read again.
		assertionEl = nil
	}

	// Step 6: decrypt EncryptedAssertion when present.
	if hasEncrypted {
		decryptedEl, decryptedAssertion, err := decryptAssertion(s, responseEl)
		if err != nil {
			result.fail(ErrDecryptionError, "failed to decrypt EncryptedAssertion", err)
			if strict {
				return result
			}
		} else {
			assertionEl = decryptedEl
			resp.Assertion = decryptedAssertion
			resp.EncryptedAssertion = nil
		}
	}
	if assertionEl == nil {
		result.fail(ErrSchemaViolation, "Response has no usable Assertion element", nil)
		if strict {
			return result
		}
	}

	// Step 7: XSW-safe signature verification. At least one of the
	// Response or the Assertion must carry a valid signature; which is
	// mandatory is governed by WantMessagesSigned / WantAssertionsSigned.
	certs, err := trustedIdPCertificates(s, responseEl, assertionEl)
	if err != nil {
		result.fail(ErrInvalidSignature, "failed to establish IdP signing certificate trust", err)
		if strict {
			return result
		}
	}

	responseSigned, responseVerified, responseErr := tryVerifyEnveloped(doc, responseEl, certs, s.Security.RejectDeprecatedAlgorithm)
	assertionSigned, assertionVerified, assertionErr := tryVerifyEnveloped(doc, assertionEl, certs, s.Security.RejectDeprecatedAlgorithm)

	if s.Security.WantMessagesSigned && !responseSigned {
		if responseErr != nil {
			result.fail(signatureErrorKind(responseErr), "Response signature verification failed", responseErr)
		} else {
			result.fail(ErrInvalidSignature, "Response is not signed but WantMessagesSigned is set", nil)
		}
		if strict {
			return result
		}
	}
	if s.Security.WantAssertionsSigned && !assertionSigned {
		if assertionErr != nil {
			result.fail(signatureErrorKind(assertionErr), "Assertion signature verification failed", assertionErr)
		} else {
			result.fail(ErrInvalidSignature, "Assertion is not signed but WantAssertionsSigned is set", nil)
		}
		if strict {
			return result
		}
	}
	if !responseSigned && !assertionSigned {
		cause := assertionErr
		if cause == nil {
			cause = responseErr
		}
		if cause != nil {
			result.fail(signatureErrorKind(cause), "neither the Response nor the Assertion carries a valid signature", cause)
		} else {
			result.fail(ErrNoSignedElement, "neither the Response nor the Assertion carries a valid signature", nil)
		}
		if strict {
			return result
		}
	}

	// Step 8: re-extract data only from the validated subtree(s). When the
	// Assertion itself was validated, re-parse it from the exact element
	// goxmldsig returned rather than trusting the original unmarshal — the
	// core XSW defense (spec §4.3 step 7/8).
	validatedAssertionEl := assertionEl
	if assertionVerified != nil {
		validatedAssertionEl = assertionVerified.Validated
	} else if responseVerified != nil {
		// The Response was signed but not the Assertion: re-extract the
		// Assertion from the Response's own validated subtree so a
		// wrapped, unsigned Assertion injected elsewhere cannot survive.
		if child := requireElementByLocalName(responseVerified.Validated, "Assertion"); child != nil {
			validatedAssertionEl = child
		}
	}
	if validatedAssertionEl == nil {
		// No Assertion element survived to this point under any source —
		// there is nothing left to unmarshal or check, in strict mode or
		// not.
		result.fail(ErrSchemaViolation, "no Assertion element is available to validate", nil)
		return result
	}
	assertionXML, err := validatedAssertionEl.WriteToBytes()
	if err != nil {
		result.fail(ErrInvalidXML, "failed to re-serialize validated Assertion", err)
		if strict {
			return result
		}
	}
	var assertion Assertion
	if err := xml.Unmarshal(assertionXML, &assertion); err != nil {
		result.fail(ErrInvalidXML, "failed to unmarshal validated Assertion", err)
		if strict {
			return result
		}
	}
	result.session.LastAssertionID = assertion.ID

	// Step 9: issuer match.
	if assertion.Issuer == nil || assertion.Issuer.Value != s.IdP.EntityID {
		result.fail(ErrInvalidIssuer, "Assertion Issuer does not match the configured IdP entity ID", nil)
		if strict {
			return result
		}
	}
	if resp.Issuer != nil && resp.Issuer.Value != s.IdP.EntityID {
		result.fail(ErrInvalidIssuer, "Response Issuer does not match the configured IdP entity ID", nil)
		if strict {
			return result
		}
	}

	// Step 10: audience restriction.
	if assertion.Conditions != nil && len(assertion.Conditions.AudienceRestrictions) > 0 {
		if !audienceMatches(assertion.Conditions, s.SP.EntityID) {
			result.fail(ErrInvalidAudience, "SP entity ID is not present in any AudienceRestriction", nil)
			if strict {
				return result
			}
		}
	}

	// Step 11: conditions temporal window.
	now := s.now()
	skew := s.Security.ClockSkew
	if assertion.Conditions != nil {
		if nb := time.Time(assertion.Conditions.NotBefore); !nb.IsZero() && now.Add(skew).Before(nb) {
			result.fail(ErrAssertionTooEarly, "Conditions.NotBefore is in the future", nil)
			if strict {
				return result
			}
		}
		if noa := time.Time(assertion.Conditions.NotOnOrAfter); !noa.IsZero() && !now.Add(-skew).Before(noa) {
			result.fail(ErrAssertionExpired, "Conditions.NotOnOrAfter has passed", nil)
			if strict {
				return result
			}
		}
	}

	// Step 12: destination.
	if resp.Destination != "" && !destinationsMatch(resp.Destination, s.SP.ACSURL) {
		result.fail(ErrInvalidDestination, fmt.Sprintf("Response Destination %q does not match configured ACS URL %q", resp.Destination, s.SP.ACSURL), nil)
		if strict {
			return result
		}
	}

	// Step 13: InResponseTo correlation.
	if resp.InResponseTo == "" {
		if s.Security.RejectUnsolicitedResponsesWithInResponseTo && expectedRequestID != "" {
			result.fail(ErrInvalidInResponseTo, "Response has no InResponseTo but a request ID was expected", nil)
			if strict {
				return result
			}
		}
	} else if expectedRequestID == "" {
		if s.Security.RejectUnsolicitedResponsesWithInResponseTo {
			result.fail(ErrUnexpectedInResponseTo, "Response carries InResponseTo but no outstanding request ID was supplied", nil)
			if strict {
				return result
			}
		}
	} else if resp.InResponseTo != expectedRequestID {
		result.fail(ErrInvalidInResponseTo, fmt.Sprintf("Response InResponseTo %q does not match expected %q", resp.InResponseTo, expectedRequestID), nil)
		if strict {
			return result
		}
	}

	// Step 14: SubjectConfirmationData bearer checks.
	if assertion.Subject == nil || len(assertion.Subject.SubjectConfirmations) == 0 {
		result.fail(ErrInvalidNameID, "Assertion has no SubjectConfirmation", nil)
		if strict {
			return result
		}
	} else {
		validateBearerConfirmation(result, assertion.Subject, s, now, expectedRequestID)
		if strict && len(result.errors) > 0 {
			return result
		}
	}

	// Step 15: exactly one AuthnStatement.
	if len(assertion.AuthnStatements) != 1 {
		result.fail(ErrNoAuthnStatement, fmt.Sprintf("expected exactly one AuthnStatement, found %d", len(assertion.AuthnStatements)), nil)
		if strict {
			return result
		}
	} else {
		as := assertion.AuthnStatements[0]
		result.session.SessionIndex = as.SessionIndex
		if noa := time.Time(as.SessionNotOnOrAfter); !noa.IsZero() {
			t := noa
			result.session.SessionExpiration = &t
		}
	}

	// Step 16: attribute extraction.
	extractAttributes(result, assertion.AttributeStatement, s.Strict())
	if strict && len(result.errors) > 0 {
		return result
	}

	// Step 17: NameID, decrypting EncryptedID when present.
	populateNameID(result, s, assertion.Subject)
	if strict && len(result.errors) > 0 {
		return result
	}

	result.session.LastMessageID = resp.ID
	if final, err := doc.WriteToBytes(); err == nil {
		result.rawXML = final
	}
	result.assertion = &assertion
	result.session.Authenticated = len(result.errors) == 0
	return result
}

// validateResponseShape enforces the minimum structural contract a
// schema-valid <Response> must have, in lieu of full XSD validation.
func validateResponseShape(root *etree.Element) error {
	if root == nil {
		return fmt.Errorf("Response has no root element")
	}
	if root.Tag != "Response" {
		return fmt.Errorf("root element is %q, want Response", root.Tag)
	}
	if len(root.FindElements("./Status")) != 1 {
		return fmt.Errorf("Response must contain exactly one Status element")
	}
	return nil
}

func decryptAssertion(s *Settings, responseEl *etree.Element) (*etree.Element, *Assertion, error) {
	encAssertionEl := responseEl.FindElement("./EncryptedAssertion")
	if encAssertionEl == nil {
		return nil, nil, fmt.Errorf("EncryptedAssertion element not found")
	}
	encDataEl := encAssertionEl.FindElement("./EncryptedData")
	if encDataEl == nil {
		encDataEl = encAssertionEl.FindElement(".//*[local-name()='EncryptedData']")
	}
	if encDataEl == nil {
		return nil, nil, fmt.Errorf("EncryptedAssertion has no EncryptedData")
	}

	ed, err := xmlsec.ParseEncryptedData(encDataEl)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := xmlsec.DecryptKnownKeys(ed, decryptionKeys(s), !s.Security.RejectDeprecatedAlgorithm)
	if err != nil {
		return nil, nil, err
	}

	plainDoc := etree.NewDocument()
	if err := plainDoc.ReadFromBytes(plaintext); err != nil {
		return nil, nil, fmt.Errorf("parse decrypted assertion: %w", err)
	}
	assertionEl := plainDoc.Root()
	if assertionEl == nil || assertionEl.Tag != "Assertion" {
		return nil, nil, fmt.Errorf("decrypted payload is not an Assertion")
	}

	// Replace the EncryptedAssertion node in the original document with the
	// decrypted Assertion so subsequent signature verification (over the
	// Assertion as it now appears in the response document) has a stable
	// parent to walk for duplicate-ID detection.
	detached := assertionEl.Copy()
	responseEl.RemoveChild(encAssertionEl)
	responseEl.AddChild(detached)

	var assertion Assertion
	raw, err := detached.WriteToBytes()
	if err != nil {
		return nil, nil, err
	}
	if err := xml.Unmarshal(raw, &assertion); err != nil {
		return nil, nil, err
	}
	return detached, &assertion, nil
}

// trustedIdPCertificates returns the certificate set signature
// verification should trust: the statically configured Certificates when
// present, otherwise whichever embedded certificate matches a configured
// fingerprint (spec §4.3 step 9).
func trustedIdPCertificates(s *Settings, responseEl, assertionEl *etree.Element) ([]*x509.Certificate, error) {
	if len(s.IdP.Certificates) > 0 {
		return s.IdP.Certificates, nil
	}
	if len(s.IdP.Fingerprints) == 0 {
		return nil, fmt.Errorf("idp has neither a certificate nor a fingerprint configured")
	}

	wanted := make(map[string]bool, len(s.IdP.Fingerprints))
	for _, fp := range s.IdP.Fingerprints {
		wanted[xmlsec.NormalizeFingerprint(fp)] = true
	}

	for _, el := range []*etree.Element{assertionEl, responseEl} {
		if el == nil {
			continue
		}
		cert, err := samlsig.ExtractEmbeddedCertificate(el)
		if err != nil {
			s.log().Printf("no embedded certificate on %s element: %v", el.Tag, err)
			continue
		}
		fp, err := xmlsec.CertificateFingerprint(cert, s.IdP.FingerprintAlgorithm)
		if err != nil {
			s.log().Printf("failed to fingerprint embedded certificate: %v", err)
			continue
		}
		if wanted[xmlsec.NormalizeFingerprint(fp)] {
			return []*x509.Certificate{cert}, nil
		}
	}
	return nil, fmt.Errorf("no embedded certificate matched a configured fingerprint")
}

func destinationsMatch(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

func audienceMatches(cond *Conditions, entityID string) bool {
	for _, ar := range cond.AudienceRestrictions {
		for _, aud := range ar.Audiences {
			if aud.Value == entityID {
				return true
			}
		}
	}
	return false
}

func requireElementByLocalName(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if found := el.FindElement("./" + tag); found != nil {
		return found
	}
	return el.FindElement(".//*[local-name()='" + tag + "']")
}

func tryVerifyEnveloped(doc *etree.Document, el *etree.Element, certs []*x509.Certificate, rejectDeprecated bool) (bool, *samlsig.VerifyResult, error) {
	if el == nil || el.FindElement("./Signature") == nil {
		return false, nil, nil
	}
	vr, err := samlsig.VerifyEnveloped(doc, el, certs, rejectDeprecated)
	if err != nil {
		return false, nil, err
	}
	return true, vr, nil
}

// signatureErrorKind maps a samlsig verification cause onto its matching
// ErrorKind, so the XSW duplicate-ID defense, the deprecated-algorithm
// policy, and a missing/malformed Signature/Reference each surface their
// own stable telemetry label instead of collapsing into one generic
// InvalidSignature (spec §7).
func signatureErrorKind(err error) ErrorKind {
	switch {
	case errors.Is(err, samlsig.ErrDuplicatedSignedElement):
		return ErrDuplicatedSignedElement
	case errors.Is(err, samlsig.ErrDeprecatedAlgorithm):
		return ErrInvalidSignatureAlgorithm
	case errors.Is(err, samlsig.ErrNoSignedElement):
		return ErrNoSignedElement
	default:
		return ErrInvalidSignature
	}
}

func validateBearerConfirmation(result *responseValidationResult, subject *Subject, s *Settings, now time.Time, expectedRequestID string) {
	var smallest *time.Time
	var anyBearer bool
	for i := range subject.SubjectConfirmations {
		sc := subject.SubjectConfirmations[i]
		if sc.Method != "urn:oasis:names:tc:SAML:2.0:cm:bearer" {
			continue
		}
		anyBearer = true
		data := sc.SubjectConfirmationData
		if data == nil {
			result.fail(ErrInvalidNameID, "bearer SubjectConfirmation has no SubjectConfirmationData", nil)
			continue
		}
		if data.Recipient != "" && !destinationsMatch(data.Recipient, s.SP.ACSURL) {
			result.fail(ErrInvalidDestination, fmt.Sprintf("SubjectConfirmationData Recipient %q does not match ACS URL", data.Recipient), nil)
		}
		if !time.Time(data.NotBefore).IsZero() {
			result.fail(ErrInvalidNameID, "bearer SubjectConfirmationData must not carry NotBefore", nil)
		}
		noa := time.Time(data.NotOnOrAfter)
		if noa.IsZero() {
			result.fail(ErrInvalidNameID, "bearer SubjectConfirmationData is missing NotOnOrAfter", nil)
		} else if !now.Before(noa.Add(s.Security.ClockSkew)) {
			result.fail(ErrAssertionExpired, "bearer SubjectConfirmationData.NotOnOrAfter has passed", nil)
		} else if smallest == nil || noa.Before(*smallest) {
			t := noa
			smallest = &t
		}
		if data.InResponseTo != "" && expectedRequestID != "" && data.InResponseTo != expectedRequestID {
			result.fail(ErrInvalidInResponseTo, "SubjectConfirmationData InResponseTo does not match expected request ID", nil)
		}
	}
	if !anyBearer {
		result.fail(ErrInvalidNameID, "Assertion has no bearer SubjectConfirmation", nil)
	}
	result.session.LastAssertionNotOnOrAfter = smallest
}

func extractAttributes(result *responseValidationResult, stmt *AttributeStatement, strict bool) {
	if stmt == nil {
		result.fail(ErrNoAttributeStatements, "Response has no AttributeStatement", nil)
		return
	}
	for _, attr := range stmt.Attributes {
		values := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			values = append(values, v.Value)
		}

		if _, exists := result.session.Attributes[attr.Name]; exists && strict {
			result.fail(ErrSchemaViolation, fmt.Sprintf("duplicate Attribute Name %q", attr.Name), nil)
			continue
		}
		result.session.Attributes[attr.Name] = append(result.session.Attributes[attr.Name], values...)

		if attr.FriendlyName == "" {
			continue
		}
		if _, exists := result.session.AttributesWithFriendlyName[attr.FriendlyName]; exists && strict {
			result.fail(ErrSchemaViolation, fmt.Sprintf("duplicate Attribute FriendlyName %q", attr.FriendlyName), nil)
			continue
		}
		result.session.AttributesWithFriendlyName[attr.FriendlyName] = append(result.session.AttributesWithFriendlyName[attr.FriendlyName], values...)
	}
}

func populateNameID(result *responseValidationResult, s *Settings, subject *Subject) {
	if subject == nil {
		return
	}
	if subject.NameID != nil {
		result.session.NameID = subject.NameID.Value
		result.session.NameIDFormat = subject.NameID.Format
		result.session.NameIDNameQualifier = subject.NameID.NameQualifier
		result.session.NameIDSPNameQualifier = subject.NameID.SPNameQualifier
		return
	}
	if subject.EncryptedID == nil {
		return
	}

	encDataEl := etree.NewDocument()
	if err := encDataEl.ReadFromBytes([]byte(subject.EncryptedID.EncryptedData.XML)); err != nil {
		result.fail(ErrDecryptionError, "failed to parse EncryptedID payload", err)
		return
	}
	ed, err := xmlsec.ParseEncryptedData(encDataEl.Root())
	if err != nil {
		result.fail(ErrDecryptionError, "failed to parse EncryptedID EncryptedData", err)
		return
	}
	plaintext, err := xmlsec.DecryptKnownKeys(ed, decryptionKeys(s), !s.Security.RejectDeprecatedAlgorithm)
	if err != nil {
		result.fail(ErrDecryptionError, "failed to decrypt EncryptedID", err)
		return
	}
	var nameID NameID
	if err := xml.Unmarshal(plaintext, &nameID); err != nil {
		result.fail(ErrDecryptionError, "failed to unmarshal decrypted NameID", err)
		return
	}
	result.session.NameID = nameID.Value
	result.session.NameIDFormat = nameID.Format
	result.session.NameIDNameQualifier = nameID.NameQualifier
	result.session.NameIDSPNameQualifier = nameID.SPNameQualifier
}

package saml

import (
	"fmt"
	"net/http"

	"github.com/crewjam/httperr"
)

// ErrorKind identifies a category of validation or construction failure.
// Labels are stable and intended for telemetry; do not rename.
type ErrorKind string

// Error kinds, per the core's error taxonomy.
const (
	ErrSettingsInvalid           ErrorKind = "SettingsInvalid"
	ErrPrivateKeyNotFound        ErrorKind = "PrivateKeyNotFound"
	ErrSamlResponseNotFound      ErrorKind = "SamlResponseNotFound"
	ErrSamlLogoutMessageNotFound ErrorKind = "SamlLogoutMessageNotFound"
	ErrInvalidXML                ErrorKind = "InvalidXml"
	ErrSchemaViolation           ErrorKind = "SchemaViolation"
	ErrInvalidXMLNamespace       ErrorKind = "InvalidXmlNamespace"
	ErrInvalidSignature          ErrorKind = "InvalidSignature"
	ErrNoSignedElement           ErrorKind = "NoSignedElement"
	ErrDuplicatedSignedElement   ErrorKind = "DuplicatedSignedElement"
	ErrInvalidSignatureAlgorithm ErrorKind = "InvalidSignatureAlgorithm"
	ErrInvalidIssuer             ErrorKind = "InvalidIssuer"
	ErrInvalidAudience           ErrorKind = "InvalidAudience"
	ErrInvalidDestination        ErrorKind = "InvalidDestination"
	ErrInvalidNameID             ErrorKind = "InvalidNameId"
	ErrInvalidNameIDFormat       ErrorKind = "InvalidNameIdFormat"
	ErrInvalidInResponseTo       ErrorKind = "InvalidInResponseTo"
	ErrUnexpectedInResponseTo    ErrorKind = "UnexpectedInResponseTo"
	ErrAssertionExpired          ErrorKind = "AssertionExpired"
	ErrAssertionTooEarly         ErrorKind = "AssertionTooEarly"
	ErrNoAuthnStatement          ErrorKind = "NoAuthnStatement"
	ErrNoAttributeStatements     ErrorKind = "NoAttributeStatements"
	ErrResponseStatusError       ErrorKind = "ResponseStatusError"
	ErrEncryptionError           ErrorKind = "EncryptionError"
	ErrDecryptionError           ErrorKind = "DecryptionError"
	ErrSingleLogoutNotSupported  ErrorKind = "SingleLogoutNotSupported"
	ErrAssertionHandlerFailed    ErrorKind = "AssertionHandlerFailed"
)

// ErrorObject is a structured validation failure: a stable Kind plus a
// human-readable Detail and an optional underlying Cause. It is the type
// stored in Auth.lastErrorException.
type ErrorObject struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *ErrorObject) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ErrorObject) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, detail string) *ErrorObject {
	return &ErrorObject{Kind: kind, Detail: detail}
}

func wrapError(kind ErrorKind, detail string, cause error) *ErrorObject {
	return &ErrorObject{Kind: kind, Detail: detail, Cause: cause}
}

// raisingError wraps one of the small set of error kinds that spec §7
// classifies as "raise" rather than "accumulate": construction failures
// and outright misuse. httperr.Error carries an HTTP status hint for the
// caller's eventual transport layer, even though this core never itself
// touches HTTP.
func raisingError(kind ErrorKind, status int, detail string, cause error) error {
	return &httperr.Error{
		Status:  status,
		Message: string(kind) + ": " + detail,
		Err:     cause,
	}
}

func errSettingsInvalid(detail string) error {
	return raisingError(ErrSettingsInvalid, http.StatusInternalServerError, detail, nil)
}

func errPrivateKeyNotFound() error {
	return raisingError(ErrPrivateKeyNotFound, http.StatusInternalServerError,
		"signing was requested but no SP private key is configured", nil)
}

func errSamlResponseNotFound(detail string) error {
	return raisingError(ErrSamlResponseNotFound, http.StatusBadRequest, detail, nil)
}

func errSamlLogoutMessageNotFound(detail string) error {
	return raisingError(ErrSamlLogoutMessageNotFound, http.StatusBadRequest, detail, nil)
}

func errSingleLogoutNotSupported() error {
	return raisingError(ErrSingleLogoutNotSupported, http.StatusInternalServerError,
		"IdP does not advertise a Single Logout endpoint", nil)
}

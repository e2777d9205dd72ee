package saml

import "time"

// SessionResult is the per-call outcome described in spec §3. Every
// ProcessResponse call replaces it with that call's outcome (Authenticated
// is false when validation failed), and a successfully validated
// ProcessSLO message resets it to an empty, unauthenticated session.
type SessionResult struct {
	Authenticated bool

	NameID                 string
	NameIDFormat            string
	NameIDNameQualifier     string
	NameIDSPNameQualifier   string

	Attributes                 map[string][]string
	AttributesWithFriendlyName map[string][]string

	SessionIndex      string
	SessionExpiration *time.Time

	LastMessageID   string
	LastAssertionID string

	LastAssertionNotOnOrAfter *time.Time
}

func newSessionResult() *SessionResult {
	return &SessionResult{
		Attributes:                 map[string][]string{},
		AttributesWithFriendlyName: map[string][]string{},
	}
}

// diagnosticState is the error/diagnostic bundle spec §3 describes,
// accumulated on every processResponse/processSLO call per spec §7's
// non-raising validation policy.
type diagnosticState struct {
	errors            []ErrorKind
	lastError         string
	lastErrorException *ErrorObject

	lastRequestID string
	lastRequest   string

	lastResponse string
}

func (d *diagnosticState) reset() {
	d.errors = nil
	d.lastError = ""
	d.lastErrorException = nil
}

func (d *diagnosticState) addError(err *ErrorObject) {
	d.errors = append(d.errors, err.Kind)
	d.lastError = err.Error()
	d.lastErrorException = err
}

// Errors returns the accumulated error kinds from the most recent
// processResponse/processSLO call.
func (d *diagnosticState) Errors() []ErrorKind { return append([]ErrorKind(nil), d.errors...) }

// LastError returns the detail string of the most recent failure, if any.
func (d *diagnosticState) LastError() string { return d.lastError }

// LastErrorException returns the structured error of the most recent
// failure, if any.
func (d *diagnosticState) LastErrorException() *ErrorObject { return d.lastErrorException }

// LastRequestID returns the ID of the most recently built AuthnRequest or
// LogoutRequest (spec §3 invariant 4).
func (d *diagnosticState) LastRequestID() string { return d.lastRequestID }

// LastRequestXML returns the raw XML of the most recently built request.
func (d *diagnosticState) LastRequestXML() string { return d.lastRequest }

// LastResponseXML returns the raw (decrypted, if applicable) XML of the
// most recently processed response or logout message.
func (d *diagnosticState) LastResponseXML() string { return d.lastResponse }

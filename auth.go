package saml

import (
	"github.com/insaplace-labs/samlsp-core/samlsig"
)

// AssertionHandler lets a caller observe a successfully validated Assertion
// before ProcessResponse finishes, e.g. to provision a local account or
// enforce an application-level authorization rule beyond what spec §4.3's
// pipeline checks. A non-nil return rejects the Response: Authenticated is
// cleared and the error is accumulated like any other validation failure.
type AssertionHandler interface {
	HandleAssertion(assertion *Assertion) error
}

// Auth is the orchestrator spec §4.5 describes: a thin state machine over
// the builders and validators that wires Settings, the current
// SessionResult, and the accumulated diagnosticState together into the
// four operations a caller drives a login/logout flow with.
type Auth struct {
	*Settings
	*SessionResult
	diagnosticState

	// AssertionHandler, when set, runs on every successfully validated
	// Assertion before ProcessResponse returns.
	AssertionHandler AssertionHandler
}

// NewAuth constructs an Auth bound to settings, with a fresh, unauthenticated
// session.
func NewAuth(settings *Settings) *Auth {
	return &Auth{
		Settings:      settings,
		SessionResult: newSessionResult(),
	}
}

// Login builds and encodes a fresh AuthnRequest, recording its ID as the
// correlation token a caller must later pass back into ProcessResponse
// (spec §3 invariant 4, §4.5's "login" row).
func (a *Auth) Login(relayState string, extras map[string]string, forceAuthn, isPassive, setNameIDPolicy bool, nameIDValueReq string) (*BindingMessage, error) {
	msg, err := buildAndEncodeAuthnRequest(a.Settings, AuthnRequestOptions{
		ForceAuthn:      forceAuthn,
		IsPassive:       isPassive,
		SetNameIDPolicy: setNameIDPolicy,
		NameIDValueReq:  nameIDValueReq,
	})
	if err != nil {
		return nil, err
	}
	a.diagnosticState.lastRequestID = msg.ID
	a.diagnosticState.lastRequest = string(msg.RawXML)

	binding := a.IdP.SSOBinding
	params := map[string]string{}
	for k, v := range extras {
		params[k] = v
	}
	params[samlsig.ParamSAMLRequest] = msg.Encoded
	if relayState != "" {
		params[samlsig.ParamRelayState] = relayState
	}
	if binding == HTTPRedirectBinding && a.Security.AuthnRequestsSigned {
		if err := signRedirectParams(a.Settings, samlsig.ParamSAMLRequest, msg.Encoded, relayState, params); err != nil {
			return nil, err
		}
	}

	return &BindingMessage{Binding: binding, URL: a.IdP.SSOURL, Parameters: params}, nil
}

// Logout initiates SP-initiated Single Logout by building a fresh
// LogoutRequest against the session's current NameID and SessionIndex
// (spec §4.5's "logout" row). It raises SingleLogoutNotSupported when the
// IdP advertises no SLO endpoint (spec §7).
func (a *Auth) Logout(relayState string) (*BindingMessage, error) {
	if a.IdP.SLOURL == "" {
		return nil, errSingleLogoutNotSupported()
	}

	var sessionIndexes []string
	if a.SessionResult != nil && a.SessionResult.SessionIndex != "" {
		sessionIndexes = []string{a.SessionResult.SessionIndex}
	}
	nameID := ""
	nameIDFormat := a.SP.NameIDFormat
	if a.SessionResult != nil {
		nameID = a.SessionResult.NameID
		if a.SessionResult.NameIDFormat != "" {
			nameIDFormat = a.SessionResult.NameIDFormat
		}
	}

	msg, err := buildAndEncodeLogoutRequest(a.Settings, LogoutRequestOptions{
		NameID:         nameID,
		NameIDFormat:   nameIDFormat,
		SessionIndexes: sessionIndexes,
	})
	if err != nil {
		return nil, err
	}
	a.diagnosticState.lastRequestID = msg.ID
	a.diagnosticState.lastRequest = string(msg.RawXML)

	binding := a.IdP.SLOBinding
	params := map[string]string{samlsig.ParamSAMLRequest: msg.Encoded}
	if relayState != "" {
		params[samlsig.ParamRelayState] = relayState
	}
	if binding == HTTPRedirectBinding && a.Security.LogoutRequestSigned {
		if err := signRedirectParams(a.Settings, samlsig.ParamSAMLRequest, msg.Encoded, relayState, params); err != nil {
			return nil, err
		}
	}

	return &BindingMessage{Binding: binding, URL: a.IdP.SLOURL, Parameters: params}, nil
}

// ProcessResponse validates an inbound Response (spec §4.5's
// "processResponse" row), delivered over the POST binding as formParams.
// Missing SAMLResponse is the one raising failure (spec §7); every other
// validation failure is accumulated into Errors/LastError and reflected by
// SessionResult.Authenticated being false.
func (a *Auth) ProcessResponse(formParams map[string]string, requestID string) error {
	encoded, ok := formParams[samlsig.ParamSAMLResponse]
	if !ok || encoded == "" {
		return errSamlResponseNotFound("no SAMLResponse parameter in the POST body")
	}

	a.diagnosticState.reset()
	result := validateResponse(a.Settings, encoded, requestID)
	a.diagnosticState.lastResponse = string(result.rawXML)
	for _, e := range result.errors {
		a.diagnosticState.addError(e)
	}

	if result.session.Authenticated && a.AssertionHandler != nil {
		if err := a.AssertionHandler.HandleAssertion(result.assertion); err != nil {
			wrapped := wrapError(ErrAssertionHandlerFailed, "AssertionHandler rejected the validated assertion", err)
			a.diagnosticState.addError(wrapped)
			result.session.Authenticated = false
		}
	}

	*a.SessionResult = *result.session
	return nil
}

// ProcessSLO validates an inbound Redirect-binding logout message — either
// an IdP-initiated LogoutRequest or this SP's own LogoutResponse coming
// back from an SP-initiated flow (spec §4.5's "processSLO" row). On a
// valid IdP-initiated LogoutRequest it invokes deleteSessionCb (unless
// keepLocalSession) and returns the LogoutResponse redirect, signed when
// Security.LogoutResponseSigned is set.
func (a *Auth) ProcessSLO(queryParams map[string]string, keepLocalSession bool, requestID string, deleteSessionCb func() error) (*BindingMessage, error) {
	in := logoutMessageInput{
		Binding:    HTTPRedirectBinding,
		RelayState: queryParams[samlsig.ParamRelayState],
		SigAlg:     queryParams[samlsig.ParamSigAlg],
		Signature:  queryParams[samlsig.ParamSignature],
	}

	a.diagnosticState.reset()

	if encoded, ok := queryParams[samlsig.ParamSAMLRequest]; ok && encoded != "" {
		in.Encoded = encoded
		req, result := validateLogoutRequest(a.Settings, in)
		a.diagnosticState.lastResponse = string(result.rawXML)
		for _, e := range result.errors {
			a.diagnosticState.addError(e)
		}
		if len(result.errors) > 0 {
			return nil, nil
		}

		if !keepLocalSession && deleteSessionCb != nil {
			if err := deleteSessionCb(); err != nil {
				a.diagnosticState.addError(wrapError(ErrSingleLogoutNotSupported, "local session deletion failed", err))
				return nil, nil
			}
		}
		*a.SessionResult = *newSessionResult()

		respMsg, err := buildAndEncodeLogoutResponse(a.Settings, req.ID)
		if err != nil {
			return nil, err
		}
		binding := a.IdP.SLOBinding
		params := map[string]string{samlsig.ParamSAMLResponse: respMsg.Encoded}
		if in.RelayState != "" {
			params[samlsig.ParamRelayState] = in.RelayState
		}
		if binding == HTTPRedirectBinding && a.Security.LogoutResponseSigned {
			if err := signRedirectParams(a.Settings, samlsig.ParamSAMLResponse, respMsg.Encoded, in.RelayState, params); err != nil {
				return nil, err
			}
		}
		return &BindingMessage{Binding: binding, URL: a.IdP.SLOResponseURL, Parameters: params}, nil
	}

	if encoded, ok := queryParams[samlsig.ParamSAMLResponse]; ok && encoded != "" {
		in.Encoded = encoded
		_, result := validateLogoutResponse(a.Settings, in, requestID)
		a.diagnosticState.lastResponse = string(result.rawXML)
		for _, e := range result.errors {
			a.diagnosticState.addError(e)
		}
		if len(result.errors) == 0 {
			*a.SessionResult = *newSessionResult()
		}
		return nil, nil
	}

	return nil, errSamlLogoutMessageNotFound("query string has neither SAMLRequest nor SAMLResponse")
}

func signRedirectParams(s *Settings, msgType, payload, relayState string, params map[string]string) error {
	sigAlg := s.Security.SignatureAlgorithm
	sig, err := samlsig.Sign(msgType, payload, relayState, sigAlg, s.SP.PrivateKey, s.Security.LowercaseURLEncoding)
	if err != nil {
		return err
	}
	params[samlsig.ParamSigAlg] = sigAlg
	params[samlsig.ParamSignature] = sig
	return nil
}

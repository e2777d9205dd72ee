package saml

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/insaplace-labs/samlsp-core/logger"
)

// SPSettings describes the local service provider, per spec §3.
type SPSettings struct {
	EntityID      string
	ACSURL        string
	ACSBinding    string // defaults to HTTPPostBinding
	SLOURL        string
	SLOBinding    string // defaults to HTTPRedirectBinding
	NameIDFormat  string

	PrivateKey  crypto.Signer
	Certificate *x509.Certificate

	// NewCertificate and NewPrivateKey support certificate rotation
	// (SPEC_FULL.md §C.1): the decryption path tries the primary key
	// first and falls back to NewPrivateKey. Signing uses only
	// PrivateKey/Certificate.
	NewPrivateKey  crypto.Signer
	NewCertificate *x509.Certificate
}

// IdPSettings describes the remote identity provider, per spec §3.
type IdPSettings struct {
	EntityID string

	SSOURL     string
	SSOBinding string // defaults to HTTPRedirectBinding

	SLOURL         string
	SLOBinding     string
	SLOResponseURL string

	// Certificates holds every certificate the IdP is known to sign
	// with (supports IdP certificate rotation, SPEC_FULL.md §C.2). At
	// least one of Certificates or Fingerprints must be supplied if
	// signature verification is to succeed.
	Certificates []*x509.Certificate

	// Fingerprints, paired with FingerprintAlgorithm, let the SP trust
	// whichever certificate is embedded in an inbound signature as
	// long as its digest matches one of these.
	Fingerprints        []string
	FingerprintAlgorithm string // defaults to DigestSHA256
}

// SecuritySettings is the security-toggle bundle of spec §3.
type SecuritySettings struct {
	AuthnRequestsSigned        bool
	LogoutRequestSigned        bool
	LogoutResponseSigned       bool
	WantMessagesSigned         bool
	WantAssertionsSigned       bool
	WantAssertionsEncrypted    bool
	WantNameIDEncrypted        bool
	SignMetadata               bool
	WantXMLValidation          bool
	RequestedAuthnContext      []string
	RequestedAuthnContextComparison string
	SignatureAlgorithm         string // defaults to SignatureRSASHA256
	DigestAlgorithm            string // defaults to DigestSHA256
	LowercaseURLEncoding       bool
	RejectDeprecatedAlgorithm  bool

	// RejectUnsolicitedResponsesWithInResponseTo implements spec §4.3
	// step 14: when true and no requestId was supplied to
	// processResponse, the presence of InResponseTo is itself an error.
	RejectUnsolicitedResponsesWithInResponseTo bool

	// ClockSkew bounds the tolerance applied to every temporal check
	// (spec §4.3 step 12). Zero by default.
	ClockSkew time.Duration

	SchemaPath string // SPEC_FULL.md open question: settings field, not a package-level var.
}

// ContactSettings and OrganizationSettings are metadata-only fields carried
// for parity with spec §3; this core does not publish metadata (spec §1
// non-goals) but downstream callers that do may read them back out.
type ContactSettings struct {
	Technical, Support, Administrative *ContactPerson
}

type ContactPerson struct {
	GivenName, EmailAddress string
}

type OrganizationSettings struct {
	Name, DisplayName, URL string
}

// Settings is the frozen, read-only configuration object spec §1 describes
// as consumed from an external loader. Thread-safe after construction: no
// field is mutated once NewSettings returns, except through SetStrict.
type Settings struct {
	mu     sync.RWMutex
	strict bool

	SP           SPSettings
	IdP          IdPSettings
	Security     SecuritySettings
	Contact      ContactSettings
	Organization OrganizationSettings

	// Compress is a compression preference carried for parity with other
	// toolkits; NewSettings sets it to true. It is not consulted:
	// outbound Redirect-binding messages are always DEFLATE-compressed,
	// whatever its value.
	Compress bool

	// Clock is the injectable time source required by spec §5.
	Clock clockwork.Clock

	// Logger receives diagnostics for conditions this core recovers from
	// on its own — while matching IdP fingerprints, an element with no
	// embedded certificate or a certificate that can't be fingerprinted —
	// and never raises or
	// accumulates as a validation error. Defaults to logger.DefaultLogger.
	Logger logger.Interface
}

// NewSettings validates and freezes a Settings value. Construction failures
// raise (spec §7): they are bugs in configuration, not per-message
// validation failures.
func NewSettings(strict bool, sp SPSettings, idp IdPSettings, sec SecuritySettings) (*Settings, error) {
	s := &Settings{
		strict:   strict,
		SP:       sp,
		IdP:      idp,
		Security: sec,
		Compress: true,
		Clock:    clockwork.NewRealClock(),
		Logger:   logger.DefaultLogger,
	}

	if s.SP.EntityID == "" {
		return nil, errSettingsInvalid("sp_entityid is not set")
	}
	if s.SP.ACSURL == "" {
		return nil, errSettingsInvalid("sp_acs_url is not set")
	}
	if s.SP.ACSBinding == "" {
		s.SP.ACSBinding = HTTPPostBinding
	}
	if s.SP.SLOBinding == "" {
		s.SP.SLOBinding = HTTPRedirectBinding
	}
	if s.SP.NameIDFormat == "" {
		s.SP.NameIDFormat = NameIDFormatUnspecified
	}

	if s.IdP.EntityID == "" {
		return nil, errSettingsInvalid("idp_entityid is not set")
	}
	if s.IdP.SSOBinding == "" {
		s.IdP.SSOBinding = HTTPRedirectBinding
	}
	if s.IdP.FingerprintAlgorithm == "" {
		s.IdP.FingerprintAlgorithm = DigestSHA256
	}
	if len(s.IdP.Certificates) == 0 && len(s.IdP.Fingerprints) == 0 {
		return nil, errSettingsInvalid("idp has neither a certificate nor a fingerprint configured")
	}

	needsSPKey := s.Security.AuthnRequestsSigned || s.Security.LogoutRequestSigned ||
		s.Security.LogoutResponseSigned || s.Security.WantNameIDEncrypted
	if needsSPKey && s.SP.PrivateKey == nil {
		return nil, errSettingsInvalid("a signing/decryption operation is configured but sp.PrivateKey is nil")
	}
	if s.Security.WantNameIDEncrypted && s.SP.Certificate == nil {
		return nil, errSettingsInvalid("WantNameIDEncrypted requires sp.Certificate")
	}

	if s.Security.SignatureAlgorithm == "" {
		s.Security.SignatureAlgorithm = SignatureRSASHA256
	}
	if s.Security.DigestAlgorithm == "" {
		s.Security.DigestAlgorithm = DigestSHA256
	}
	if s.Security.RejectDeprecatedAlgorithm {
		if deprecatedAlgorithms[s.Security.SignatureAlgorithm] {
			return nil, errSettingsInvalid("configured signature_algorithm is deprecated")
		}
		if deprecatedAlgorithms[s.Security.DigestAlgorithm] {
			return nil, errSettingsInvalid("configured digest_algorithm is deprecated")
		}
	}

	if _, ok := s.SP.PrivateKey.(*rsa.PrivateKey); s.SP.PrivateKey != nil && !ok {
		if _, isSigner := s.SP.PrivateKey.(crypto.Signer); !isSigner {
			return nil, errSettingsInvalid("sp.PrivateKey must implement crypto.Signer")
		}
	}

	return s, nil
}

// settingsYAML mirrors Settings for the SettingsFromYAML convenience
// constructor (SPEC_FULL.md §A "Configuration"); certificates and keys are
// supplied as PEM text, the common ambient idiom across the retrieved
// corpus for YAML-loaded SAML configuration.
type settingsYAML struct {
	Strict bool `yaml:"strict"`
	SP     struct {
		EntityID       string `yaml:"entity_id"`
		ACSURL         string `yaml:"acs_url"`
		ACSBinding     string `yaml:"acs_binding"`
		SLOURL         string `yaml:"slo_url"`
		NameIDFormat   string `yaml:"name_id_format"`
		PrivateKeyPEM  string `yaml:"private_key"`
		CertificatePEM string `yaml:"certificate"`
	} `yaml:"sp"`
	IdP struct {
		EntityID       string   `yaml:"entity_id"`
		SSOURL         string   `yaml:"sso_url"`
		SLOURL         string   `yaml:"slo_url"`
		SLOResponseURL string   `yaml:"slo_response_url"`
		CertificatesPEM []string `yaml:"certificates"`
		Fingerprints    []string `yaml:"fingerprints"`
	} `yaml:"idp"`
	Security struct {
		AuthnRequestsSigned       bool   `yaml:"authn_requests_signed"`
		WantAssertionsSigned      bool   `yaml:"want_assertions_signed"`
		WantMessagesSigned        bool   `yaml:"want_messages_signed"`
		WantAssertionsEncrypted   bool   `yaml:"want_assertions_encrypted"`
		WantNameIDEncrypted       bool   `yaml:"want_name_id_encrypted"`
		SignatureAlgorithm        string `yaml:"signature_algorithm"`
		DigestAlgorithm           string `yaml:"digest_algorithm"`
		RejectDeprecatedAlgorithm bool   `yaml:"reject_deprecated_algorithm"`
		LowercaseURLEncoding      bool   `yaml:"lowercase_urlencoding"`
	} `yaml:"security"`
}

// SettingsFromYAML loads and validates Settings from a YAML document.
func SettingsFromYAML(data []byte) (*Settings, error) {
	var raw settingsYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errSettingsInvalid("invalid yaml: " + err.Error())
	}

	sp := SPSettings{
		EntityID:     raw.SP.EntityID,
		ACSURL:       raw.SP.ACSURL,
		ACSBinding:   raw.SP.ACSBinding,
		SLOURL:       raw.SP.SLOURL,
		NameIDFormat: raw.SP.NameIDFormat,
	}
	if raw.SP.PrivateKeyPEM != "" {
		key, err := parseRSAPrivateKeyPEM(raw.SP.PrivateKeyPEM)
		if err != nil {
			return nil, errSettingsInvalid("sp.private_key: " + err.Error())
		}
		sp.PrivateKey = key
	}
	if raw.SP.CertificatePEM != "" {
		cert, err := parseCertificatePEM(raw.SP.CertificatePEM)
		if err != nil {
			return nil, errSettingsInvalid("sp.certificate: " + err.Error())
		}
		sp.Certificate = cert
	}

	idp := IdPSettings{
		EntityID:       raw.IdP.EntityID,
		SSOURL:         raw.IdP.SSOURL,
		SLOURL:         raw.IdP.SLOURL,
		SLOResponseURL: raw.IdP.SLOResponseURL,
		Fingerprints:   raw.IdP.Fingerprints,
	}
	for _, pem := range raw.IdP.CertificatesPEM {
		cert, err := parseCertificatePEM(pem)
		if err != nil {
			return nil, errSettingsInvalid("idp.certificates: " + err.Error())
		}
		idp.Certificates = append(idp.Certificates, cert)
	}

	sec := SecuritySettings{
		AuthnRequestsSigned:       raw.Security.AuthnRequestsSigned,
		WantAssertionsSigned:      raw.Security.WantAssertionsSigned,
		WantMessagesSigned:        raw.Security.WantMessagesSigned,
		WantAssertionsEncrypted:   raw.Security.WantAssertionsEncrypted,
		WantNameIDEncrypted:       raw.Security.WantNameIDEncrypted,
		SignatureAlgorithm:        raw.Security.SignatureAlgorithm,
		DigestAlgorithm:           raw.Security.DigestAlgorithm,
		RejectDeprecatedAlgorithm: raw.Security.RejectDeprecatedAlgorithm,
		LowercaseURLEncoding:      raw.Security.LowercaseURLEncoding,
	}

	return NewSettings(raw.Strict, sp, idp, sec)
}

// Strict reports whether strict mode is enabled (spec §3 invariant 5: never
// mutated except through SetStrict).
func (s *Settings) Strict() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strict
}

// SetStrict is the sole explicit mutator spec §3 invariant 5 allows.
func (s *Settings) SetStrict(strict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strict = strict
}

func (s *Settings) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s *Settings) log() logger.Interface {
	if s.Logger == nil {
		return logger.DefaultLogger
	}
	return s.Logger
}

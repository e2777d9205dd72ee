package saml

import "github.com/dchest/uniuri"

// idLength counts characters from uniuri's own alphabet (62 chars); at 36 this
// yields well over the 128 bits of entropy spec §4.1 requires for a fresh
// AuthnRequest/LogoutRequest/LogoutResponse ID.
const idLength = 36

// newID returns a fresh opaque token suitable for an xs:ID attribute: SAML
// IDs must not start with a digit, so every generated ID is prefixed with
// "_" the way the wider SAML ecosystem (crewjam/saml, php-saml) does.
func newID() string {
	return "_" + uniuri.NewLen(idLength)
}

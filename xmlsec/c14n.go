package xmlsec

import (
	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// CanonicalizeExclusive renders el using exclusive XML canonicalization
// (C14N 1.0, http://www.w3.org/2001/10/xml-exc-c14n#), the transform spec
// §4.2 requires after the enveloped-signature transform for every embedded
// signature this core produces or verifies.
//
// withComments selects the "with comments" variant spec §6 lists alongside
// the plain form.
func CanonicalizeExclusive(el *etree.Element, withComments bool, inclusiveNamespacePrefixes string) ([]byte, error) {
	var canonicalizer dsig.Canonicalizer
	if withComments {
		canonicalizer = dsig.MakeC14N10ExclusiveWithCommentsCanonicalizerWithPrefixList(inclusiveNamespacePrefixes)
	} else {
		canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(inclusiveNamespacePrefixes)
	}
	return canonicalizer.Canonicalize(el)
}

package saml

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
	xrv "github.com/mattermost/xml-roundtrip-validator"
)

// parseSecureXML parses data into an etree.Document, rejecting malformed
// XML, DTDs, and external entity/DTD references before encoding/xml or
// etree ever touch the bytes — spec §4.3 step 2: "reject on any XML parse
// error, on DTDs, on external entities, and on external DTD references. No
// entity expansion." The pre-validation pass is the same
// mattermost/xml-roundtrip-validator the teacher's own metadata parser
// (samlsp/fetch_metadata.go) uses.
func parseSecureXML(data []byte) (*etree.Document, error) {
	if err := xrv.Validate(bytes.NewReader(data)); err != nil {
		return nil, wrapError(ErrInvalidXML, "XML failed round-trip validation", err)
	}
	if bytes.Contains(data, []byte("<!DOCTYPE")) || bytes.Contains(data, []byte("<!ENTITY")) {
		return nil, newError(ErrInvalidXML, "document type declarations are not permitted")
	}

	doc := etree.NewDocument()
	// etree does not expand external entities or fetch DTDs by default;
	// combined with the DOCTYPE rejection above, no entity expansion path
	// exists for this parser.
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, wrapError(ErrInvalidXML, "failed to parse XML document", err)
	}
	if doc.Root() == nil {
		return nil, newError(ErrInvalidXML, "document has no root element")
	}
	return doc, nil
}

func requireSingleChild(parent *etree.Element, tag string) (*etree.Element, error) {
	matches := parent.FindElements("./" + tag)
	if len(matches) == 0 {
		matches = parent.FindElements(".//*[local-name()='" + tag + "']")
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("missing required element %q", tag)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("expected exactly one %q element, found %d", tag, len(matches))
	}
}

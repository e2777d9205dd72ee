package saml

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"io"
)

// deflateAndEncode implements the Redirect binding's wire format (spec §6):
// raw DEFLATE (RFC 1951, no zlib header/footer) then base64.
func deflateAndEncode(xmlBytes []byte) (string, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return "", err
	}
	if err := fw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// inflateAndDecode reverses deflateAndEncode for inbound Redirect-binding
// messages.
func inflateAndDecode(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	return io.ReadAll(r)
}

// encodePOST implements the POST binding's wire format: base64 of the raw
// XML, no compression (spec §6).
func encodePOST(xmlBytes []byte) string {
	return base64.StdEncoding.EncodeToString(xmlBytes)
}

// decodePOST reverses encodePOST.
func decodePOST(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

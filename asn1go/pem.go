package asn1go

import (
	"encoding/pem"
	"fmt"
)

// DecodePEM strips PEM armor and returns the label and decoded DER body,
// per spec §4.4 "load(pem-or-der) which strips PEM armor, base64-decodes,
// and DER-parses". Sourced from the standard library's encoding/pem,
// which already implements RFC 1421 armor parsing correctly; this
// codec's own responsibility starts at the DER bytes.
func DecodePEM(data []byte) (label string, der []byte, err error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return "", nil, fmt.Errorf("%w: no PEM block found", ErrParse)
	}
	return block.Type, block.Bytes, nil
}

// EncodePEM wraps der in PEM armor under the given label.
func EncodePEM(label string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: label, Bytes: der})
}

// LoadDocument accepts either PEM-armored or raw DER input and returns
// the DER bytes, auto-detecting by checking for the PEM "-----BEGIN"
// marker.
func LoadDocument(data []byte) ([]byte, error) {
	trimmed := data
	for len(trimmed) > 0 && (trimmed[0] == '\n' || trimmed[0] == '\r' || trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) >= 11 && string(trimmed[:11]) == "-----BEGIN " {
		_, der, err := DecodePEM(data)
		return der, err
	}
	return data, nil
}

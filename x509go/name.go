package x509go

import (
	"fmt"
	"strings"

	"github.com/postalsys/gossh/asn1go"
)

// attrShortNames maps the RDN attribute OIDs this package recognizes to
// their conventional short names, for DistinguishedName.String().
var attrShortNames = map[string]string{
	"2.5.4.3":  "CN",
	"2.5.4.6":  "C",
	"2.5.4.7":  "L",
	"2.5.4.8":  "ST",
	"2.5.4.10": "O",
	"2.5.4.11": "OU",
	"2.5.4.5":  "SERIALNUMBER",
}

// DistinguishedName is a parsed Name: an ordered sequence of RDNs, each an
// ordered set of (OID, value) attribute pairs, matching the ASN.1 model
// exactly rather than flattening to a fixed Go struct of well-known
// fields (spec §4.4 Name has no such fixed shape in the wire format).
type DistinguishedName struct {
	RDNs []RDN
}

// RDN is one RelativeDistinguishedName: normally one attribute, but the
// schema permits a SET of several (multi-valued RDNs).
type RDN struct {
	Attributes []Attribute
}

// Attribute is one AttributeTypeAndValue.
type Attribute struct {
	OID   string
	Value string
}

// Get returns the first attribute value for a short name (e.g. "CN") or
// dotted OID, or "" if absent.
func (dn *DistinguishedName) Get(shortOrOID string) string {
	want := shortOrOID
	if oid, ok := asn1go.OIDByName(shortNameToRegistryName(shortOrOID)); ok {
		want = oid
	}
	for _, rdn := range dn.RDNs {
		for _, a := range rdn.Attributes {
			if a.OID == want || attrShortNames[a.OID] == strings.ToUpper(shortOrOID) {
				return a.Value
			}
		}
	}
	return ""
}

// shortNameToRegistryName maps a conventional short attribute name to the
// name it was registered under in asn1go's OID registry.
func shortNameToRegistryName(short string) string {
	switch strings.ToUpper(short) {
	case "CN":
		return "commonName"
	case "C":
		return "countryName"
	case "L":
		return "localityName"
	case "ST":
		return "stateOrProvinceName"
	case "O":
		return "organizationName"
	case "OU":
		return "organizationalUnitName"
	default:
		return short
	}
}

// String renders the DN in conventional "CN=x,O=y,C=z" form, most
// specific RDN first, matching RFC 4514 ordering.
func (dn *DistinguishedName) String() string {
	parts := make([]string, 0, len(dn.RDNs))
	for i := len(dn.RDNs) - 1; i >= 0; i-- {
		for _, a := range dn.RDNs[i].Attributes {
			name := attrShortNames[a.OID]
			if name == "" {
				name = a.OID
			}
			parts = append(parts, fmt.Sprintf("%s=%s", name, a.Value))
		}
	}
	return strings.Join(parts, ",")
}

// Equal implements the strict DN-equality chain validation needs (spec
// §4.4: "issuer.subject == cert.issuer (DN equality)"). Comparison is by
// OID/value pairs in RDN order, not the rendered string.
func (dn *DistinguishedName) Equal(other *DistinguishedName) bool {
	if other == nil || len(dn.RDNs) != len(other.RDNs) {
		return false
	}
	for i := range dn.RDNs {
		if len(dn.RDNs[i].Attributes) != len(other.RDNs[i].Attributes) {
			return false
		}
		for j := range dn.RDNs[i].Attributes {
			a, b := dn.RDNs[i].Attributes[j], other.RDNs[i].Attributes[j]
			if a.OID != b.OID || a.Value != b.Value {
				return false
			}
		}
	}
	return true
}

// parseName decodes a nameSchema-shaped Element into a DistinguishedName.
func parseName(el *asn1go.Element) (*DistinguishedName, error) {
	dn := &DistinguishedName{}
	for _, rdnEl := range el.Children() {
		var rdn RDN
		for _, atvEl := range rdnEl.Children() {
			oidEl := atvEl.Child("type")
			valEl := atvEl.Child("value")
			if oidEl == nil || oidEl.AsObjectIdentifier() == nil || valEl == nil {
				return nil, fmt.Errorf("x509go: malformed RDN attribute")
			}
			rdn.Attributes = append(rdn.Attributes, Attribute{
				OID:   oidEl.AsObjectIdentifier().String(),
				Value: anyElementString(valEl),
			})
		}
		dn.RDNs = append(dn.RDNs, rdn)
	}
	return dn, nil
}

// anyElementString extracts a human-readable string from an ANY-typed
// attribute value, covering the string types DNs normally carry.
func anyElementString(el *asn1go.Element) string {
	if s := el.AsString(); s != "" {
		return s
	}
	if os := el.AsOctetString(); os != nil {
		return string(os.Bytes)
	}
	return string(el.Content)
}

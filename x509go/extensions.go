package x509go

import (
	"fmt"
	"net"
	"strings"

	"github.com/postalsys/gossh/asn1go"
)

// Extension is one decoded Certificate/CRL extension; unknown extensions
// round-trip as an opaque OCTET STRING per spec §4.4.
type Extension struct {
	OID      string
	Critical bool
	Value    []byte // the raw extnValue OCTET STRING content
}

// Extensions is an ordered list of Extension, with by-name/OID lookup.
type Extensions []Extension

// ByOID returns the first extension with the given dotted OID, or nil.
func (e Extensions) ByOID(oid string) *Extension {
	for i := range e {
		if e[i].OID == oid {
			return &e[i]
		}
	}
	return nil
}

// ByName resolves name via asn1go's OID registry before looking it up.
func (e Extensions) ByName(name string) *Extension {
	oid, ok := asn1go.OIDByName(name)
	if !ok {
		return nil
	}
	return e.ByOID(oid)
}

func parseExtensions(el *asn1go.Element) (Extensions, error) {
	if el == nil {
		return nil, nil
	}
	var out Extensions
	for _, extEl := range el.Children() {
		oidEl := extEl.Child("extnID")
		valEl := extEl.Child("extnValue")
		if oidEl == nil || oidEl.AsObjectIdentifier() == nil || valEl == nil || valEl.AsOctetString() == nil {
			return nil, fmt.Errorf("x509go: malformed extension")
		}
		critical := false
		if c := extEl.Child("critical"); c != nil {
			critical = c.AsBoolean()
		}
		out = append(out, Extension{
			OID:      oidEl.AsObjectIdentifier().String(),
			Critical: critical,
			Value:    valEl.AsOctetString().Bytes,
		})
	}
	return out, nil
}

// BasicConstraints is RFC 5280 §4.2.1.9.
type BasicConstraints struct {
	IsCA       bool
	PathLenSet bool
	PathLen    int
}

func basicConstraintsSchema() *asn1go.Node {
	return asn1go.Seq("basicConstraints",
		asn1go.Opt(asn1go.Leaf("cA", asn1go.TypeBoolean)),
		asn1go.Opt(asn1go.Leaf("pathLenConstraint", asn1go.TypeInteger)),
	)
}

// ParseBasicConstraints decodes the BasicConstraints extension value.
func ParseBasicConstraints(value []byte) (*BasicConstraints, error) {
	el, err := asn1go.Decode(value, basicConstraintsSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding BasicConstraints: %w", err)
	}
	bc := &BasicConstraints{}
	if caEl := el.Child("cA"); caEl != nil {
		bc.IsCA = caEl.AsBoolean()
	}
	if plEl := el.Child("pathLenConstraint"); plEl != nil {
		bc.PathLenSet = true
		bc.PathLen = int(plEl.AsInteger().Big().Int64())
	}
	return bc, nil
}

// KeyUsage bits, RFC 5280 §4.2.1.3 (bit 0 is the high bit of the first
// content octet, per X.509's BIT STRING-as-flags convention).
type KeyUsage int

const (
	KeyUsageDigitalSignature KeyUsage = 1 << iota
	KeyUsageContentCommitment
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageKeyCertSign
	KeyUsageCRLSign
	KeyUsageEncipherOnly
	KeyUsageDecipherOnly
)

// ParseKeyUsage decodes the KeyUsage extension's BIT STRING into a bitmask.
func ParseKeyUsage(value []byte) (KeyUsage, error) {
	el, err := asn1go.Decode(value, asn1go.Leaf("keyUsage", asn1go.TypeBitString), asn1go.DefaultLimits, false)
	if err != nil {
		return 0, fmt.Errorf("x509go: decoding KeyUsage: %w", err)
	}
	bs := el.AsBitString()
	var ku KeyUsage
	for bit := 0; bit < bs.BitLen() && bit < 9; bit++ {
		byteIdx, bitIdx := bit/8, 7-(bit%8)
		if bs.Bytes[byteIdx]&(1<<uint(bitIdx)) != 0 {
			ku |= 1 << uint(bit)
		}
	}
	return ku, nil
}

func (ku KeyUsage) Has(bit KeyUsage) bool { return ku&bit != 0 }

// ExtKeyUsage is ExtKeyUsageSyntax ::= SEQUENCE OF KeyPurposeId, RFC 5280
// §4.2.1.12, returned as dotted OID strings.
func ParseExtKeyUsage(value []byte) ([]string, error) {
	schema := asn1go.SeqOf("extKeyUsage", asn1go.Leaf("purpose", asn1go.TypeObjectIdentifier))
	el, err := asn1go.Decode(value, schema, asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding ExtKeyUsage: %w", err)
	}
	var out []string
	for _, c := range el.Children() {
		out = append(out, c.AsObjectIdentifier().String())
	}
	return out, nil
}

// GeneralName tag numbers used by SubjectAltName/NameConstraints, RFC 5280
// §4.2.1.6.
const (
	gnOtherName                 = 0
	gnRFC822Name                = 1
	gnDNSName                   = 2
	gnX400Address               = 3
	gnDirectoryName             = 4
	gnEDIPartyName              = 5
	gnUniformResourceIdentifier = 6
	gnIPAddress                 = 7
	gnRegisteredID              = 8
)

// SANEntry is one SubjectAltName/GeneralName entry, typed loosely since
// the underlying CHOICE tag determines how Value is interpreted.
type SANEntry struct {
	Type  int // one of the gnXxx constants
	Value string
	IP    net.IP // populated when Type == gnIPAddress
}

func generalNameSchema(name string) *asn1go.Node {
	return asn1go.Choice(name,
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnOtherName, asn1go.Leaf("otherName", asn1go.TypeAny)),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnRFC822Name, asn1go.Leaf("rfc822Name", asn1go.TypeIA5String)),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnDNSName, asn1go.Leaf("dNSName", asn1go.TypeIA5String)),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnX400Address, asn1go.Leaf("x400Address", asn1go.TypeAny)),
		asn1go.ExplicitTag(asn1go.ClassContextSpecific, gnDirectoryName, nameSchema("directoryName")),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnEDIPartyName, asn1go.Leaf("ediPartyName", asn1go.TypeAny)),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnUniformResourceIdentifier, asn1go.Leaf("uniformResourceIdentifier", asn1go.TypeIA5String)),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnIPAddress, asn1go.Leaf("iPAddress", asn1go.TypeOctetString)),
		asn1go.ImplicitTag(asn1go.ClassContextSpecific, gnRegisteredID, asn1go.Leaf("registeredID", asn1go.TypeObjectIdentifier)),
	)
}

func generalNamesSchema(name string) *asn1go.Node {
	return asn1go.SeqOf(name, generalNameSchema("generalName"))
}

func parseGeneralNameElement(el *asn1go.Element) (SANEntry, error) {
	switch el.Tag {
	case gnRFC822Name:
		return SANEntry{Type: gnRFC822Name, Value: el.AsString()}, nil
	case gnDNSName:
		return SANEntry{Type: gnDNSName, Value: el.AsString()}, nil
	case gnUniformResourceIdentifier:
		return SANEntry{Type: gnUniformResourceIdentifier, Value: el.AsString()}, nil
	case gnIPAddress:
		os := el.AsOctetString()
		if os == nil {
			return SANEntry{}, fmt.Errorf("x509go: malformed iPAddress GeneralName")
		}
		return SANEntry{Type: gnIPAddress, IP: net.IP(os.Bytes)}, nil
	case gnDirectoryName:
		dn, err := parseName(el)
		if err != nil {
			return SANEntry{}, err
		}
		return SANEntry{Type: gnDirectoryName, Value: dn.String()}, nil
	case gnRegisteredID:
		return SANEntry{Type: gnRegisteredID, Value: el.AsObjectIdentifier().String()}, nil
	default:
		return SANEntry{Type: el.Tag, Value: string(el.Content)}, nil
	}
}

// ParseSubjectAltName decodes the SubjectAltName extension value.
func ParseSubjectAltName(value []byte) ([]SANEntry, error) {
	el, err := asn1go.Decode(value, generalNamesSchema("subjectAltName"), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding SubjectAltName: %w", err)
	}
	var out []SANEntry
	for _, c := range el.Children() {
		entry, err := parseGeneralNameElement(c)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// ParseAuthorityKeyIdentifier decodes RFC 5280 §4.2.1.1's keyIdentifier
// field (the most commonly populated one); authorityCertIssuer/Serial are
// ignored since chain validation here only needs keyIdentifier matching.
func ParseAuthorityKeyIdentifier(value []byte) ([]byte, error) {
	schema := asn1go.Seq("authorityKeyIdentifier",
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.Leaf("keyIdentifier", asn1go.TypeOctetString))),
	)
	el, err := asn1go.Decode(value, schema, asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding AuthorityKeyIdentifier: %w", err)
	}
	if kidEl := el.Child("keyIdentifier"); kidEl != nil && kidEl.AsOctetString() != nil {
		return kidEl.AsOctetString().Bytes, nil
	}
	return nil, nil
}

// ParseSubjectKeyIdentifier decodes RFC 5280 §4.2.1.2: a plain OCTET STRING.
func ParseSubjectKeyIdentifier(value []byte) ([]byte, error) {
	el, err := asn1go.Decode(value, asn1go.Leaf("subjectKeyIdentifier", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding SubjectKeyIdentifier: %w", err)
	}
	return el.AsOctetString().Bytes, nil
}

// GeneralSubtree is one entry of a NameConstraints permitted/excluded list.
type GeneralSubtree struct {
	Base SANEntry
}

// NameConstraints is RFC 5280 §4.2.1.10.
type NameConstraints struct {
	Permitted []GeneralSubtree
	Excluded  []GeneralSubtree
}

func generalSubtreeSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		generalNameSchema("base"),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0, asn1go.Leaf("minimum", asn1go.TypeInteger))),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 1, asn1go.Leaf("maximum", asn1go.TypeInteger))),
	)
}

func nameConstraintsSchema() *asn1go.Node {
	return asn1go.Seq("nameConstraints",
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.SeqOf("permittedSubtrees", generalSubtreeSchema("subtree")))),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 1,
			asn1go.SeqOf("excludedSubtrees", generalSubtreeSchema("subtree")))),
	)
}

// ParseNameConstraints decodes the NameConstraints extension value.
func ParseNameConstraints(value []byte) (*NameConstraints, error) {
	el, err := asn1go.Decode(value, nameConstraintsSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding NameConstraints: %w", err)
	}
	nc := &NameConstraints{}
	if p := el.Child("permittedSubtrees"); p != nil {
		for _, s := range p.Children() {
			base, err := parseGeneralNameElement(s.Child("base"))
			if err != nil {
				return nil, err
			}
			nc.Permitted = append(nc.Permitted, GeneralSubtree{Base: base})
		}
	}
	if e := el.Child("excludedSubtrees"); e != nil {
		for _, s := range e.Children() {
			base, err := parseGeneralNameElement(s.Child("base"))
			if err != nil {
				return nil, err
			}
			nc.Excluded = append(nc.Excluded, GeneralSubtree{Base: base})
		}
	}
	return nc, nil
}

// matchesDNSConstraint implements RFC 5280 §4.2.1.10's DNS name
// constraint matching: the constraint matches the name itself or any
// subdomain, comparison is case-insensitive.
func matchesDNSConstraint(constraint, name string) bool {
	constraint = strings.ToLower(strings.TrimPrefix(constraint, "."))
	name = strings.ToLower(name)
	return name == constraint || strings.HasSuffix(name, "."+constraint)
}

package asn1go

import (
	"fmt"
	"sync"
)

// registry is the process-wide, append-only OID ↔ name bijection spec
// §4.4 and §5 describe ("OID registry is a process-wide (init-once)
// bijective map"). It is safe for concurrent registration but, per
// spec §5's shared-resource policy, mutation after first network
// operation is the caller's responsibility to avoid.
type registry struct {
	mu        sync.RWMutex
	byName    map[string]string
	byDotted  map[string]string
}

var oidRegistry = &registry{
	byName:   make(map[string]string),
	byDotted: make(map[string]string),
}

// RegisterOID adds a name ↔ dotted-OID pair to the global registry. It
// returns ErrDuplicateOID if the name or OID is already bound to a
// different counterpart.
func RegisterOID(name, dotted string) error {
	oidRegistry.mu.Lock()
	defer oidRegistry.mu.Unlock()

	if existing, ok := oidRegistry.byName[name]; ok && existing != dotted {
		return fmt.Errorf("%w: name %q already bound to %s", ErrDuplicateOID, name, existing)
	}
	if existing, ok := oidRegistry.byDotted[dotted]; ok && existing != name {
		return fmt.Errorf("%w: OID %s already bound to %q", ErrDuplicateOID, dotted, existing)
	}
	oidRegistry.byName[name] = dotted
	oidRegistry.byDotted[dotted] = name
	return nil
}

// OIDByName resolves a registered name to its dotted form.
func OIDByName(name string) (string, bool) {
	oidRegistry.mu.RLock()
	defer oidRegistry.mu.RUnlock()
	v, ok := oidRegistry.byName[name]
	return v, ok
}

// NameByOID resolves a dotted OID to its registered name.
func NameByOID(dotted string) (string, bool) {
	oidRegistry.mu.RLock()
	defer oidRegistry.mu.RUnlock()
	v, ok := oidRegistry.byDotted[dotted]
	return v, ok
}

func init() {
	for name, dotted := range wellKnownOIDs {
		if err := RegisterOID(name, dotted); err != nil {
			panic(fmt.Sprintf("asn1go: built-in OID table is inconsistent: %v", err))
		}
	}
}

// wellKnownOIDs seeds the registry with the names the X.509 extension
// registry and signature-algorithm resolution (spec §4.4) need.
var wellKnownOIDs = map[string]string{
	"commonName":             "2.5.4.3",
	"countryName":            "2.5.4.6",
	"localityName":           "2.5.4.7",
	"stateOrProvinceName":    "2.5.4.8",
	"organizationName":       "2.5.4.10",
	"organizationalUnitName": "2.5.4.11",
	"serialNumber":           "2.5.4.5",

	"basicConstraints":     "2.5.29.19",
	"keyUsage":             "2.5.29.15",
	"extKeyUsage":          "2.5.29.37",
	"subjectAltName":       "2.5.29.17",
	"issuerAltName":        "2.5.29.18",
	"authorityKeyId":       "2.5.29.35",
	"subjectKeyId":         "2.5.29.14",
	"certificatePolicies":  "2.5.29.32",
	"crlDistributionPoints": "2.5.29.31",
	"nameConstraints":      "2.5.29.30",
	"policyMappings":       "2.5.29.33",
	"policyConstraints":    "2.5.29.36",
	"inhibitAnyPolicy":     "2.5.29.54",
	"freshestCRL":          "2.5.29.46",
	"authorityInfoAccess":  "1.3.6.1.5.5.7.1.1",
	"subjectInfoAccess":    "1.3.6.1.5.5.7.1.11",

	"serverAuth":      "1.3.6.1.5.5.7.3.1",
	"clientAuth":      "1.3.6.1.5.5.7.3.2",
	"codeSigning":     "1.3.6.1.5.5.7.3.3",
	"emailProtection": "1.3.6.1.5.5.7.3.4",
	"timeStamping":    "1.3.6.1.5.5.7.3.8",
	"ocspSigning":     "1.3.6.1.5.5.7.3.9",

	"sha1WithRSAEncryption":   "1.2.840.113549.1.1.5",
	"sha256WithRSAEncryption": "1.2.840.113549.1.1.11",
	"sha384WithRSAEncryption": "1.2.840.113549.1.1.12",
	"sha512WithRSAEncryption": "1.2.840.113549.1.1.13",
	"rsaEncryption":           "1.2.840.113549.1.1.1",
	"rsassaPss":               "1.2.840.113549.1.1.10",
	"id-ecPublicKey":          "1.2.840.10045.2.1",
	"ecdsaWithSHA256":         "1.2.840.10045.4.3.2",
	"ecdsaWithSHA384":         "1.2.840.10045.4.3.3",
	"ecdsaWithSHA512":         "1.2.840.10045.4.3.4",
	"id-dsa":                  "1.2.840.10040.4.1",
	"dsaWithSHA1":             "1.2.840.10040.4.3",
	"id-Ed25519":              "1.3.101.112",
	"id-Ed448":                "1.3.101.113",

	"pkcs9-extensionRequest": "1.2.840.113549.1.9.14",
	"pkcs9-friendlyName":     "1.2.840.113549.1.9.20",
	"pkcs9-localKeyId":       "1.2.840.113549.1.9.21",
	"pbes2":                  "1.2.840.113549.1.5.13",
	"pbkdf2":                 "1.2.840.113549.1.5.12",

	"netscape-comment": "2.16.840.1.113730.1.13",
	"msCertTemplate":   "1.3.6.1.4.1.311.21.7",
	"ct-scts":          "1.3.6.1.4.1.11129.2.4.2",

	"pkcs7-data":          "1.2.840.113549.1.7.1",
	"pkcs7-encryptedData": "1.2.840.113549.1.7.6",

	"pkcs12-keyBag":            "1.2.840.113549.1.12.10.1.1",
	"pkcs12-pkcs8ShroudedKeyBag": "1.2.840.113549.1.12.10.1.2",
	"pkcs12-certBag":           "1.2.840.113549.1.12.10.1.3",
	"pkcs12-crlBag":            "1.2.840.113549.1.12.10.1.4",
	"pkcs12-secretBag":         "1.2.840.113549.1.12.10.1.5",
	"pkcs12-safeContentsBag":   "1.2.840.113549.1.12.10.1.6",
	"pkcs9-x509Certificate":    "1.2.840.113549.1.9.22.1",

	"pbeWithSHAAnd128BitRC4":        "1.2.840.113549.1.12.1.1",
	"pbeWithSHAAnd40BitRC4":         "1.2.840.113549.1.12.1.2",
	"pbeWithSHAAnd3-KeyTripleDES-CBC": "1.2.840.113549.1.12.1.3",
	"pbeWithSHAAnd2-KeyTripleDES-CBC": "1.2.840.113549.1.12.1.4",
	"pbeWithSHAAnd128BitRC2-CBC":    "1.2.840.113549.1.12.1.5",
	"pbeWithSHAAnd40BitRC2-CBC":     "1.2.840.113549.1.12.1.6",
}

// MustOID resolves a registered name and panics if unregistered; for use
// only with names known to be in wellKnownOIDs.
func MustOID(name string) *ObjectIdentifier {
	dotted, ok := OIDByName(name)
	if !ok {
		panic(fmt.Sprintf("asn1go: unregistered OID name %q", name))
	}
	return parseDotted(dotted)
}

func parseDotted(dotted string) *ObjectIdentifier {
	arcs := []int{}
	cur := 0
	has := false
	for i := 0; i < len(dotted); i++ {
		c := dotted[i]
		if c == '.' {
			arcs = append(arcs, cur)
			cur = 0
			has = false
			continue
		}
		cur = cur*10 + int(c-'0')
		has = true
	}
	if has {
		arcs = append(arcs, cur)
	}
	return &ObjectIdentifier{Arcs: arcs}
}

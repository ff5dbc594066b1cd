package x509go

import (
	"fmt"
	"time"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/keys"
)

// Certificate is a parsed RFC 5280 Certificate: the document model spec
// §4.4 names, built directly over asn1go rather than crypto/x509.
type Certificate struct {
	Raw       []byte // full Certificate DER
	TBSRaw    []byte // tbsCertificate DER, exactly as signed
	Version   int    // 0-based per the wire encoding (v1=0, v2=1, v3=2)
	Serial    *asn1go.Integer
	SigAlgOID string
	Issuer    *DistinguishedName
	NotBefore time.Time
	NotAfter  time.Time
	Subject   *DistinguishedName
	PublicKey keys.PublicKey

	Extensions Extensions

	SignatureAlgOID string // signatureAlgorithm (outer), should equal SigAlgOID
	Signature       []byte // raw signatureValue bits
}

// LoadCertificate parses a PEM or DER-encoded Certificate.
func LoadCertificate(data []byte) (*Certificate, error) {
	der, err := asn1go.LoadDocument(data)
	if err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	el, err := asn1go.Decode(der, certificateSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding Certificate: %w", err)
	}
	return certificateFromElement(der, el)
}

func certificateFromElement(der []byte, el *asn1go.Element) (*Certificate, error) {
	tbs := el.Child("tbsCertificate")
	if tbs == nil {
		return nil, fmt.Errorf("x509go: missing tbsCertificate")
	}

	cert := &Certificate{Raw: der, TBSRaw: tbs.Raw}

	cert.Version = 0
	if v := tbs.Child("version"); v != nil {
		cert.Version = int(v.AsInteger().Big().Int64())
	}
	cert.Serial = tbs.Child("serialNumber").AsInteger()

	sigEl := tbs.Child("signature")
	if sigEl == nil || sigEl.Child("algorithm") == nil {
		return nil, fmt.Errorf("x509go: missing tbsCertificate.signature")
	}
	cert.SigAlgOID = sigEl.Child("algorithm").AsObjectIdentifier().String()

	var err error
	cert.Issuer, err = parseName(tbs.Child("issuer"))
	if err != nil {
		return nil, fmt.Errorf("x509go: parsing issuer: %w", err)
	}
	cert.Subject, err = parseName(tbs.Child("subject"))
	if err != nil {
		return nil, fmt.Errorf("x509go: parsing subject: %w", err)
	}

	validity := tbs.Child("validity")
	cert.NotBefore, err = parseTimeChoice(validity.Child("notBefore"))
	if err != nil {
		return nil, fmt.Errorf("x509go: parsing notBefore: %w", err)
	}
	cert.NotAfter, err = parseTimeChoice(validity.Child("notAfter"))
	if err != nil {
		return nil, fmt.Errorf("x509go: parsing notAfter: %w", err)
	}

	cert.PublicKey, err = parseSubjectPublicKeyInfo(tbs.Child("subjectPublicKeyInfo"))
	if err != nil {
		return nil, fmt.Errorf("x509go: parsing subjectPublicKeyInfo: %w", err)
	}

	cert.Extensions, err = parseExtensions(tbs.Child("extensions"))
	if err != nil {
		return nil, err
	}

	outerAlg := el.Child("signatureAlgorithm")
	if outerAlg == nil || outerAlg.Child("algorithm") == nil {
		return nil, fmt.Errorf("x509go: missing signatureAlgorithm")
	}
	cert.SignatureAlgOID = outerAlg.Child("algorithm").AsObjectIdentifier().String()

	sigVal := el.Child("signatureValue")
	if sigVal == nil || sigVal.AsBitString() == nil {
		return nil, fmt.Errorf("x509go: missing signatureValue")
	}
	cert.Signature = sigVal.AsBitString().Bytes

	return cert, nil
}

func parseTimeChoice(el *asn1go.Element) (time.Time, error) {
	if el == nil {
		return time.Time{}, fmt.Errorf("x509go: missing time value")
	}
	var layout string
	switch {
	case el.Tag == asn1go.TagUTCTime:
		layout = "060102150405Z"
	case el.Tag == asn1go.TagGeneralizedTime:
		layout = "20060102150405Z"
	default:
		return time.Time{}, fmt.Errorf("x509go: unexpected time tag %d", el.Tag)
	}
	return time.Parse(layout, el.AsString())
}

// BasicConstraints decodes the cert's BasicConstraints extension, if
// present; ok is false when the extension is absent (callers then apply
// RFC 5280 §4.2.1.9's "not a CA" default).
func (c *Certificate) BasicConstraints() (bc BasicConstraints, ok bool, err error) {
	ext := c.Extensions.ByName("basicConstraints")
	if ext == nil {
		return BasicConstraints{}, false, nil
	}
	parsed, err := ParseBasicConstraints(ext.Value)
	if err != nil {
		return BasicConstraints{}, false, err
	}
	return *parsed, true, nil
}

// KeyUsage decodes the cert's KeyUsage extension; ok is false when absent.
func (c *Certificate) KeyUsage() (ku KeyUsage, ok bool, err error) {
	ext := c.Extensions.ByName("keyUsage")
	if ext == nil {
		return 0, false, nil
	}
	ku, err = ParseKeyUsage(ext.Value)
	return ku, err == nil, err
}

// SubjectAltNames decodes the cert's SubjectAltName extension, if present.
func (c *Certificate) SubjectAltNames() ([]SANEntry, error) {
	ext := c.Extensions.ByName("subjectAltName")
	if ext == nil {
		return nil, nil
	}
	return ParseSubjectAltName(ext.Value)
}

// SubjectKeyID decodes the cert's SubjectKeyIdentifier extension, if present.
func (c *Certificate) SubjectKeyID() ([]byte, error) {
	ext := c.Extensions.ByName("subjectKeyId")
	if ext == nil {
		return nil, nil
	}
	return ParseSubjectKeyIdentifier(ext.Value)
}

// AuthorityKeyID decodes the cert's AuthorityKeyIdentifier extension's
// keyIdentifier field, if present.
func (c *Certificate) AuthorityKeyID() ([]byte, error) {
	ext := c.Extensions.ByName("authorityKeyId")
	if ext == nil {
		return nil, nil
	}
	return ParseAuthorityKeyIdentifier(ext.Value)
}

// NameConstraints decodes the cert's NameConstraints extension, if present.
func (c *Certificate) NameConstraints() (*NameConstraints, error) {
	ext := c.Extensions.ByName("nameConstraints")
	if ext == nil {
		return nil, nil
	}
	return ParseNameConstraints(ext.Value)
}

// VerifySignedBy checks this certificate's signature was produced by
// issuer's public key, per spec §4.4's "Signature verification": the TBS
// bytes are the exact source bytes preserved from decode, not
// re-encoded, so verification is unaffected by any DER quirks.
func (c *Certificate) VerifySignedBy(issuer *Certificate) error {
	return verifyTBSSignature(c.SignatureAlgOID, issuer.PublicKey, c.TBSRaw, c.Signature)
}

// VerifySelfSigned checks this certificate's signature against its own
// embedded public key (the common "is this a trust anchor" check).
func (c *Certificate) VerifySelfSigned() error {
	return verifyTBSSignature(c.SignatureAlgOID, c.PublicKey, c.TBSRaw, c.Signature)
}

package x509go

import (
	"fmt"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/keys"
)

// CertificationRequest is a parsed PKCS#10 CSR.
type CertificationRequest struct {
	Raw       []byte
	InfoRaw   []byte // certificationRequestInfo DER, exactly as signed
	Version   int
	Subject   *DistinguishedName
	PublicKey keys.PublicKey
	// Attributes holds the PKCS#9 attribute OIDs present (e.g.
	// extensionRequest carrying requested Certificate extensions);
	// decoded lazily via ExtensionRequest.
	attributes map[string][]byte

	SignatureAlgOID string
	Signature       []byte
}

// LoadCertificationRequest parses a PEM or DER-encoded PKCS#10 CSR.
func LoadCertificationRequest(data []byte) (*CertificationRequest, error) {
	der, err := asn1go.LoadDocument(data)
	if err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	el, err := asn1go.Decode(der, certificationRequestSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding CertificationRequest: %w", err)
	}

	info := el.Child("certificationRequestInfo")
	if info == nil {
		return nil, fmt.Errorf("x509go: missing certificationRequestInfo")
	}

	csr := &CertificationRequest{Raw: der, InfoRaw: info.Raw, attributes: map[string][]byte{}}
	csr.Version = int(info.Child("version").AsInteger().Big().Int64())

	var err2 error
	csr.Subject, err2 = parseName(info.Child("subject"))
	if err2 != nil {
		return nil, fmt.Errorf("x509go: parsing subject: %w", err2)
	}

	csr.PublicKey, err2 = parseSubjectPublicKeyInfo(info.Child("subjectPublicKeyInfo"))
	if err2 != nil {
		return nil, fmt.Errorf("x509go: parsing subjectPublicKeyInfo: %w", err2)
	}

	if attrs := info.Child("attributes"); attrs != nil {
		for _, a := range attrs.Children() {
			oidEl := a.Child("type")
			valsEl := a.Child("values")
			if oidEl == nil || oidEl.AsObjectIdentifier() == nil || valsEl == nil {
				continue
			}
			children := valsEl.Children()
			if len(children) == 0 {
				continue
			}
			csr.attributes[oidEl.AsObjectIdentifier().String()] = children[0].Raw
		}
	}

	outerAlg := el.Child("signatureAlgorithm")
	if outerAlg == nil || outerAlg.Child("algorithm") == nil {
		return nil, fmt.Errorf("x509go: missing signatureAlgorithm")
	}
	csr.SignatureAlgOID = outerAlg.Child("algorithm").AsObjectIdentifier().String()

	sig := el.Child("signature")
	if sig == nil || sig.AsBitString() == nil {
		return nil, fmt.Errorf("x509go: missing signature")
	}
	csr.Signature = sig.AsBitString().Bytes

	return csr, nil
}

// ExtensionRequest decodes the PKCS#9 extensionRequest attribute
// (requested Certificate extensions), if the CSR carries one.
func (c *CertificationRequest) ExtensionRequest() (Extensions, error) {
	oid, ok := asn1go.OIDByName("pkcs9-extensionRequest")
	if !ok {
		return nil, fmt.Errorf("x509go: extensionRequest OID not registered")
	}
	raw, ok := c.attributes[oid]
	if !ok {
		return nil, nil
	}
	el, err := asn1go.Decode(raw, extensionsSchema("extensionRequest"), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding extensionRequest: %w", err)
	}
	return parseExtensions(el)
}

// Verify checks the CSR's self-signature against its own embedded public
// key, the standard PKCS#10 proof-of-possession check.
func (c *CertificationRequest) Verify() error {
	return verifyTBSSignature(c.SignatureAlgOID, c.PublicKey, c.InfoRaw, c.Signature)
}

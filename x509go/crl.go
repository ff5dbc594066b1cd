package x509go

import (
	"fmt"
	"math/big"
	"time"

	"github.com/postalsys/gossh/asn1go"
)

// RevokedCertificate is one CRL entry.
type RevokedCertificate struct {
	SerialNumber   *big.Int
	RevocationDate time.Time
	Extensions     Extensions
}

// CertificateList is a parsed RFC 5280 CRL.
type CertificateList struct {
	Raw       []byte
	TBSRaw    []byte
	Issuer    *DistinguishedName
	ThisUpdate time.Time
	NextUpdate time.Time // zero Time if absent

	RevokedCerts []RevokedCertificate

	Extensions Extensions

	SignatureAlgOID string
	Signature       []byte
}

// LoadCertificateList parses a PEM or DER-encoded CRL.
func LoadCertificateList(data []byte) (*CertificateList, error) {
	der, err := asn1go.LoadDocument(data)
	if err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	el, err := asn1go.Decode(der, certificateListSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding CertificateList: %w", err)
	}

	tbsList := el.Child("tbsCertList")
	if tbsList == nil {
		return nil, fmt.Errorf("x509go: missing tbsCertList")
	}

	crl := &CertificateList{Raw: der, TBSRaw: tbsList.Raw}

	var perr error
	crl.Issuer, perr = parseName(tbsList.Child("issuer"))
	if perr != nil {
		return nil, fmt.Errorf("x509go: parsing issuer: %w", perr)
	}

	crl.ThisUpdate, perr = parseTimeChoice(tbsList.Child("thisUpdate"))
	if perr != nil {
		return nil, fmt.Errorf("x509go: parsing thisUpdate: %w", perr)
	}
	if nu := tbsList.Child("nextUpdate"); nu != nil {
		crl.NextUpdate, perr = parseTimeChoice(nu)
		if perr != nil {
			return nil, fmt.Errorf("x509go: parsing nextUpdate: %w", perr)
		}
	}

	if revoked := tbsList.Child("revokedCertificates"); revoked != nil {
		for _, r := range revoked.Children() {
			serialEl := r.Child("userCertificate")
			dateEl := r.Child("revocationDate")
			if serialEl == nil || dateEl == nil {
				return nil, fmt.Errorf("x509go: malformed revoked certificate entry")
			}
			date, err := parseTimeChoice(dateEl)
			if err != nil {
				return nil, err
			}
			var exts Extensions
			if extEl := r.Child("crlEntryExtensions"); extEl != nil {
				exts, err = parseExtensions(extEl)
				if err != nil {
					return nil, err
				}
			}
			crl.RevokedCerts = append(crl.RevokedCerts, RevokedCertificate{
				SerialNumber:   serialEl.AsInteger().Big(),
				RevocationDate: date,
				Extensions:     exts,
			})
		}
	}

	var err2 error
	crl.Extensions, err2 = parseExtensions(tbsList.Child("crlExtensions"))
	if err2 != nil {
		return nil, err2
	}

	outerAlg := el.Child("signatureAlgorithm")
	if outerAlg == nil || outerAlg.Child("algorithm") == nil {
		return nil, fmt.Errorf("x509go: missing signatureAlgorithm")
	}
	crl.SignatureAlgOID = outerAlg.Child("algorithm").AsObjectIdentifier().String()

	sigVal := el.Child("signatureValue")
	if sigVal == nil || sigVal.AsBitString() == nil {
		return nil, fmt.Errorf("x509go: missing signatureValue")
	}
	crl.Signature = sigVal.AsBitString().Bytes

	return crl, nil
}

// IsRevoked reports whether serial appears in the CRL.
func (c *CertificateList) IsRevoked(serial *big.Int) (*RevokedCertificate, bool) {
	for i := range c.RevokedCerts {
		if c.RevokedCerts[i].SerialNumber.Cmp(serial) == 0 {
			return &c.RevokedCerts[i], true
		}
	}
	return nil, false
}

// VerifySignedBy checks the CRL's signature against issuer's public key.
func (c *CertificateList) VerifySignedBy(issuer *Certificate) error {
	return verifyTBSSignature(c.SignatureAlgOID, issuer.PublicKey, c.TBSRaw, c.Signature)
}

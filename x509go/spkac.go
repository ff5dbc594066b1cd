package x509go

import (
	"fmt"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/keys"
)

// SPKAC is a parsed Netscape SignedPublicKeyAndChallenge, as submitted by
// the HTML <keygen> element's enrollment flow.
type SPKAC struct {
	Raw             []byte
	PublicKeyInfoRaw []byte // publicKeyAndChallenge DER, exactly as signed
	PublicKey       keys.PublicKey
	Challenge       string

	SignatureAlgOID string
	Signature       []byte
}

// LoadSPKAC parses a PEM or DER (or the common base64-only, unarmored)
// encoded SPKAC blob.
func LoadSPKAC(data []byte) (*SPKAC, error) {
	der, err := asn1go.LoadDocument(data)
	if err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	el, err := asn1go.Decode(der, spkacSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding SPKAC: %w", err)
	}

	pkc := el.Child("publicKeyAndChallenge")
	if pkc == nil {
		return nil, fmt.Errorf("x509go: missing publicKeyAndChallenge")
	}

	s := &SPKAC{Raw: der, PublicKeyInfoRaw: pkc.Raw}

	var perr error
	s.PublicKey, perr = parseSubjectPublicKeyInfo(pkc.Child("subjectPublicKeyInfo"))
	if perr != nil {
		return nil, fmt.Errorf("x509go: parsing subjectPublicKeyInfo: %w", perr)
	}
	s.Challenge = pkc.Child("challenge").AsString()

	outerAlg := el.Child("signatureAlgorithm")
	if outerAlg == nil || outerAlg.Child("algorithm") == nil {
		return nil, fmt.Errorf("x509go: missing signatureAlgorithm")
	}
	s.SignatureAlgOID = outerAlg.Child("algorithm").AsObjectIdentifier().String()

	sig := el.Child("signature")
	if sig == nil || sig.AsBitString() == nil {
		return nil, fmt.Errorf("x509go: missing signature")
	}
	s.Signature = sig.AsBitString().Bytes

	return s, nil
}

// Verify checks the SPKAC's self-signature, proving possession of the
// embedded private key (the browser signs the challenge at keygen time).
func (s *SPKAC) Verify() error {
	return verifyTBSSignature(s.SignatureAlgOID, s.PublicKey, s.PublicKeyInfoRaw, s.Signature)
}

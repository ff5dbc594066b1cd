package x509go

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/postalsys/gossh/keys"
)

// signatureAlgorithm describes what a signatureAlgorithm OID means for
// verification: which key family it requires and which hash to apply to
// the TBS bytes before calling into keys.
type signatureAlgorithm struct {
	family  keys.Algorithm
	newHash func() hash.Hash
	isPSS   bool
}

var sigAlgByOID = map[string]signatureAlgorithm{
	"1.2.840.113549.1.1.5":  {family: keys.RSA, newHash: sha1.New},
	"1.2.840.113549.1.1.11": {family: keys.RSA, newHash: sha256.New},
	"1.2.840.113549.1.1.12": {family: keys.RSA, newHash: sha512.New384},
	"1.2.840.113549.1.1.13": {family: keys.RSA, newHash: sha512.New},
	"1.2.840.113549.1.1.10": {family: keys.RSA, newHash: sha256.New, isPSS: true},
	"1.2.840.10045.4.3.2":   {family: keys.EC, newHash: sha256.New},
	"1.2.840.10045.4.3.3":   {family: keys.EC, newHash: sha512.New384},
	"1.2.840.10045.4.3.4":   {family: keys.EC, newHash: sha512.New},
	"1.2.840.10040.4.3":     {family: keys.DSA, newHash: sha1.New},
	"2.16.840.1.101.3.4.3.2": {family: keys.DSA, newHash: sha256.New},
	"1.3.101.112":           {family: keys.Ed25519},
	"1.3.101.113":           {family: keys.Ed448},
}

// cryptoHashFor maps our gohash-free local hash funcs to crypto.Hash for
// rsa.VerifyPKCS1v15/VerifyPSS, which want the stdlib enum rather than a
// constructor.
var cryptoHashByOID = map[string]crypto.Hash{
	"1.2.840.113549.1.1.5":  crypto.SHA1,
	"1.2.840.113549.1.1.11": crypto.SHA256,
	"1.2.840.113549.1.1.12": crypto.SHA384,
	"1.2.840.113549.1.1.13": crypto.SHA512,
	"1.2.840.113549.1.1.10": crypto.SHA256,
}

// verifyTBSSignature verifies sig (raw ASN.1 DER bytes from the
// signatureValue BIT STRING) over tbsDER using pub, per spec §4.4's
// "Signature verification" rule: RSA PKCS#1v1.5/PSS, ECDSA per SEC1,
// EdDSA per RFC 8032, DSA per FIPS 186-4.
func verifyTBSSignature(sigAlgOID string, pub keys.PublicKey, tbsDER, sig []byte) error {
	alg, ok := sigAlgByOID[sigAlgOID]
	if !ok {
		return fmt.Errorf("x509go: unsupported signatureAlgorithm OID %s", sigAlgOID)
	}
	if pub.Algorithm() != alg.family {
		return fmt.Errorf("x509go: signatureAlgorithm %s does not match key algorithm %s", sigAlgOID, pub.Algorithm())
	}

	switch alg.family {
	case keys.Ed25519, keys.Ed448:
		if !pub.Verify(tbsDER, sig) {
			return fmt.Errorf("x509go: %w", keys.ErrBadSignature)
		}
		return nil
	case keys.RSA:
		rsaPub, ok := pub.(*keys.RSAPublicKey)
		if !ok {
			return fmt.Errorf("x509go: key is not an RSA public key")
		}
		digest := hashBytes(alg.newHash, tbsDER)
		ch := cryptoHashByOID[sigAlgOID]
		if alg.isPSS {
			return rsaPub.VerifyPSS(ch, digest, sig, len(digest))
		}
		return rsaPub.VerifyPKCS1v15(ch, digest, sig)
	case keys.DSA, keys.EC:
		codec, ok := keys.SignatureCodecFor(keys.SigASN1)
		if !ok {
			return fmt.Errorf("x509go: no ASN.1 signature codec registered")
		}
		raw, err := codec.Decode(alg.family, sig)
		if err != nil {
			return fmt.Errorf("x509go: decoding signatureValue: %w", err)
		}
		digest := hashBytes(alg.newHash, tbsDER)
		if !pub.Verify(digest, raw) {
			return fmt.Errorf("x509go: %w", keys.ErrBadSignature)
		}
		return nil
	default:
		return fmt.Errorf("x509go: unhandled key family %s", alg.family)
	}
}

func hashBytes(newHash func() hash.Hash, data []byte) []byte {
	h := newHash()
	h.Write(data)
	return h.Sum(nil)
}

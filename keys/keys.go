// Package keys implements the asymmetric key subsystem (spec component
// C6): RSA, DSA, EC (NIST curves, secp256k1, brainpool, Curve25519/
// Ed25519, Curve448/Ed448) key material, deterministic signing per
// RFC 6979, and the format-plugin registry that loads/saves keys across
// PKCS#1, PKCS#8, OpenSSH, PuTTY, JWK and raw encodings.
package keys

import "errors"

// Algorithm identifies a public-key algorithm family.
type Algorithm string

const (
	RSA       Algorithm = "RSA"
	DSA       Algorithm = "DSA"
	EC        Algorithm = "EC"
	Ed25519   Algorithm = "Ed25519"
	Ed448     Algorithm = "Ed448"
)

// SignatureFormat identifies a signature serialization, per spec §4.5:
// non-RSA signature-format plugins additionally encode/decode these.
type SignatureFormat string

const (
	SigIEEEP1363 SignatureFormat = "ieee-p1363" // raw r||s, fixed width
	SigASN1      SignatureFormat = "asn1"       // SEQUENCE{r INTEGER, s INTEGER}
	SigSSH2      SignatureFormat = "ssh2"       // SSH2 wire string(r) || string(s) or single blob
	SigRaw       SignatureFormat = "raw"        // algorithm-native raw bytes (e.g. EdDSA R||S)
)

// Errors, matching spec §7's error-kind taxonomy for this component.
var (
	ErrPluginNotFound   = errors.New("keys: no format plugin found")
	ErrNoKeyLoaded      = errors.New("keys: no key loaded")
	ErrInvalidKey       = errors.New("keys: invalid key material")
	ErrUnsupportedCurve = errors.New("keys: unsupported curve")
	ErrBadSignature     = errors.New("keys: signature verification failed")
	ErrWrongPassword    = errors.New("keys: wrong password or corrupt ciphertext")
)

// PublicKey is the common contract every algorithm's public key
// implements: verification and SSH2 wire marshaling.
type PublicKey interface {
	Algorithm() Algorithm
	// Verify checks sig (in SigRaw form specific to the algorithm) over
	// digest, which the caller has already hashed.
	Verify(digest, sig []byte) bool
	// MarshalSSH2 returns the SSH2 wire public-key blob (RFC 4253 §6.6 /
	// RFC 5656 / RFC 8709), e.g. string(algo) || algorithm-specific fields.
	MarshalSSH2() []byte
}

// PrivateKey is the common contract every algorithm's private key
// implements: signing and access to its public half.
type PrivateKey interface {
	Algorithm() Algorithm
	Public() PublicKey
	// Sign signs digest (already hashed by the caller) and returns the
	// signature in the algorithm's native raw form.
	Sign(digest []byte) ([]byte, error)
}

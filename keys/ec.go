package keys

import (
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/wireutil"
)

// CurveName identifies one of the supported EC curves, matching the SSH2
// curve identifiers (RFC 5656 §10.1) where one exists.
type CurveName string

const (
	CurveNistP224    CurveName = "nistp224"
	CurveNistP256    CurveName = "nistp256"
	CurveNistP384    CurveName = "nistp384"
	CurveNistP521    CurveName = "nistp521"
	CurveSecp256k1   CurveName = "secp256k1"
	CurveBrainpoolP256r1 CurveName = "brainpoolP256r1"
	CurveBrainpoolP384r1 CurveName = "brainpoolP384r1"
	CurveBrainpoolP512r1 CurveName = "brainpoolP512r1"
)

// namedCurve resolves a CurveName to its elliptic.Curve implementation.
// NIST curves and secp256k1 come from the standard library and the
// decred secp256k1 module respectively; brainpool curves use the
// hand-written weierstrassCurve (brainpool.go) since their non-(-3) A
// coefficient isn't representable by stdlib elliptic.CurveParams.
func namedCurve(name CurveName) (elliptic.Curve, error) {
	switch name {
	case CurveNistP224:
		return elliptic.P224(), nil
	case CurveNistP256:
		return elliptic.P256(), nil
	case CurveNistP384:
		return elliptic.P384(), nil
	case CurveNistP521:
		return elliptic.P521(), nil
	case CurveSecp256k1:
		return secp256k1.S256(), nil
	case CurveBrainpoolP256r1:
		return brainpoolP256r1()
	case CurveBrainpoolP384r1:
		return brainpoolP384r1()
	case CurveBrainpoolP512r1:
		return brainpoolP512r1()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, name)
	}
}

// ECPublicKey is {curve, x, y}.
type ECPublicKey struct {
	Curve CurveName
	X, Y  *bigint.BigInteger
}

// ECPrivateKey is {curve, d, x, y}.
type ECPrivateKey struct {
	Curve CurveName
	D     *bigint.BigInteger
	X, Y  *bigint.BigInteger
}

func (k *ECPublicKey) Algorithm() Algorithm  { return EC }
func (k *ECPrivateKey) Algorithm() Algorithm { return EC }
func (k *ECPrivateKey) Public() PublicKey {
	return &ECPublicKey{Curve: k.Curve, X: k.X, Y: k.Y}
}

// Sign produces a deterministic ECDSA signature (SEC1 §4.1.3 / RFC 6979),
// returning the SigIEEEP1363 (raw r||s, fixed-width) serialization.
func (k *ECPrivateKey) Sign(digest []byte) ([]byte, error) {
	curve, err := namedCurve(k.Curve)
	if err != nil {
		return nil, err
	}
	n := curve.Params().N
	d := k.D.Big()
	newHash := ecdsaHashForCurve(k.Curve)

	for {
		kVal := deterministicK(newHash, n, d, digest)
		rx, _ := curve.ScalarBaseMult(kVal.Bytes())
		r := new(big.Int).Mod(rx, n)
		if r.Sign() == 0 {
			continue
		}
		kInv := new(big.Int).ModInverse(kVal, n)
		z := bits2int(digest, n.BitLen())
		s := new(big.Int).Mul(r, d)
		s.Add(s, z)
		s.Mul(s, kInv)
		s.Mod(s, n)
		if s.Sign() == 0 {
			continue
		}
		width := (n.BitLen() + 7) / 8
		return encodeRS(r, s, width), nil
	}
}

// GenerateECKey produces a new EC key pair on the named curve, using
// crypto/elliptic's own GenerateKey (the same call newTestECPrivateKey
// in ec_test.go exercises).
func GenerateECKey(name CurveName) (*ECPrivateKey, *ECPublicKey, error) {
	curve, err := namedCurve(name)
	if err != nil {
		return nil, nil, err
	}
	d, x, y, err := elliptic.GenerateKey(curve, cryptorand.Reader)
	if err != nil {
		return nil, nil, err
	}
	priv := &ECPrivateKey{
		Curve: name,
		D:     bigint.FromBytes(d, false),
		X:     bigint.FromBig(x),
		Y:     bigint.FromBig(y),
	}
	return priv, priv.Public().(*ECPublicKey), nil
}

// Verify checks an ECDSA signature in SigIEEEP1363 form.
func (k *ECPublicKey) Verify(digest, sig []byte) bool {
	curve, err := namedCurve(k.Curve)
	if err != nil {
		return false
	}
	n := curve.Params().N
	width := (n.BitLen() + 7) / 8
	r, s, ok := decodeRS(sig, width)
	if !ok {
		return false
	}
	if r.Sign() <= 0 || r.Cmp(n) >= 0 || s.Sign() <= 0 || s.Cmp(n) >= 0 {
		return false
	}
	if !curve.IsOnCurve(k.X.Big(), k.Y.Big()) {
		return false
	}

	w := new(big.Int).ModInverse(s, n)
	z := bits2int(digest, n.BitLen())

	u1 := new(big.Int).Mul(z, w)
	u1.Mod(u1, n)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, n)

	x1, y1 := curve.ScalarBaseMult(u1.Bytes())
	x2, y2 := curve.ScalarMult(k.X.Big(), k.Y.Big(), u2.Bytes())
	x, y := curve.Add(x1, y1, x2, y2)
	if x.Sign() == 0 && y.Sign() == 0 {
		return false
	}

	v := new(big.Int).Mod(x, n)
	return v.Cmp(r) == 0
}

// sshCurveID maps a CurveName to the SSH2 curve identifier used in the
// "ecdsa-sha2-<curve>" public key blob (RFC 5656 §6.1).
func sshCurveID(name CurveName) string {
	switch name {
	case CurveNistP224:
		return "nistp224" // not an SSH2-registered curve; kept for completeness
	case CurveNistP256:
		return "nistp256"
	case CurveNistP384:
		return "nistp384"
	case CurveNistP521:
		return "nistp521"
	default:
		return string(name)
	}
}

// MarshalSSH2 encodes the public key as RFC 5656 §3.1's
// "ecdsa-sha2-<curve>" blob: string(algo), string(curve), string(Q).
func (k *ECPublicKey) MarshalSSH2() []byte {
	curve, err := namedCurve(k.Curve)
	if err != nil {
		return nil
	}
	q := elliptic.Marshal(curve, k.X.Big(), k.Y.Big())
	algo := "ecdsa-sha2-" + sshCurveID(k.Curve)
	return wireutil.NewBuilder().
		WriteCString(algo).
		WriteCString(sshCurveID(k.Curve)).
		WriteString(q).
		Bytes()
}

// ecdsaHashForCurve picks the hash RFC 5656 §6.2.1 pairs with a curve's
// field size for ECDSA-in-SSH2 use: SHA-256 up to P-256, SHA-384 up to
// P-384, else SHA-512.
func ecdsaHashForCurve(name CurveName) func() hash.Hash {
	switch name {
	case CurveNistP224, CurveNistP256, CurveSecp256k1, CurveBrainpoolP256r1:
		return sha256.New
	case CurveNistP384, CurveBrainpoolP384r1:
		return sha512.New384
	default:
		return sha512.New
	}
}

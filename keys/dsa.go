package keys

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"math/big"

	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/wireutil"
)

// DSAParameters is the {p, q, g} domain parameter set (FIPS 186-4 §4.1).
type DSAParameters struct {
	P, Q, G *bigint.BigInteger
}

// DSAPublicKey is {params, y}.
type DSAPublicKey struct {
	Params DSAParameters
	Y      *bigint.BigInteger
}

// DSAPrivateKey is {params, x, y}.
type DSAPrivateKey struct {
	Params DSAParameters
	X      *bigint.BigInteger
	Y      *bigint.BigInteger
}

func (k *DSAPublicKey) Algorithm() Algorithm  { return DSA }
func (k *DSAPrivateKey) Algorithm() Algorithm { return DSA }
func (k *DSAPrivateKey) Public() PublicKey {
	return &DSAPublicKey{Params: k.Params, Y: k.Y}
}

// dsaHashForQ picks the hash RFC 6979 §2.4 recommends pairing with a
// given subgroup order: SHA-1 for the legacy 160-bit q, else SHA-256.
func dsaHashForQ(q *big.Int) func() hash.Hash {
	if q.BitLen() <= 160 {
		return sha1.New
	}
	return sha256.New
}

// Sign produces a deterministic (r, s) signature per FIPS 186-4 §4.6,
// using RFC 6979 to derive k instead of drawing it from a random source.
func (k *DSAPrivateKey) Sign(digest []byte) ([]byte, error) {
	p := k.Params.P.Big()
	q := k.Params.Q.Big()
	g := k.Params.G.Big()
	x := k.X.Big()

	newHash := dsaHashForQ(q)
	kVal := deterministicK(newHash, q, x, digest)

	r := new(big.Int).Exp(g, kVal, p)
	r.Mod(r, q)
	if r.Sign() == 0 {
		return nil, fmt.Errorf("%w: degenerate r=0, retry with fresh digest padding", ErrInvalidKey)
	}

	kInv := new(big.Int).ModInverse(kVal, q)
	if kInv == nil {
		return nil, fmt.Errorf("%w: k has no inverse mod q", ErrInvalidKey)
	}

	z := bits2int(digest, q.BitLen())
	s := new(big.Int).Mul(r, x)
	s.Add(s, z)
	s.Mul(s, kInv)
	s.Mod(s, q)
	if s.Sign() == 0 {
		return nil, fmt.Errorf("%w: degenerate s=0, retry with fresh digest padding", ErrInvalidKey)
	}

	return encodeRS(r, s, (q.BitLen()+7)/8), nil
}

// Verify checks an (r, s) signature per FIPS 186-4 §4.7.
func (k *DSAPublicKey) Verify(digest, sig []byte) bool {
	r, s, ok := decodeRS(sig, (k.Params.Q.Big().BitLen()+7)/8)
	if !ok {
		return false
	}
	p := k.Params.P.Big()
	q := k.Params.Q.Big()
	g := k.Params.G.Big()
	y := k.Y.Big()

	if r.Sign() <= 0 || r.Cmp(q) >= 0 || s.Sign() <= 0 || s.Cmp(q) >= 0 {
		return false
	}

	w := new(big.Int).ModInverse(s, q)
	if w == nil {
		return false
	}
	z := bits2int(digest, q.BitLen())

	u1 := new(big.Int).Mul(z, w)
	u1.Mod(u1, q)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, q)

	v1 := new(big.Int).Exp(g, u1, p)
	v2 := new(big.Int).Exp(y, u2, p)
	v := new(big.Int).Mul(v1, v2)
	v.Mod(v, p)
	v.Mod(v, q)

	return v.Cmp(r) == 0
}

// MarshalSSH2 encodes the public key as RFC 4253 §6.6's "ssh-dss" blob:
// string("ssh-dss"), mpint(p), mpint(q), mpint(g), mpint(y).
func (k *DSAPublicKey) MarshalSSH2() []byte {
	return wireutil.NewBuilder().
		WriteCString("ssh-dss").
		WriteMPInt(k.Params.P).
		WriteMPInt(k.Params.Q).
		WriteMPInt(k.Params.G).
		WriteMPInt(k.Y).
		Bytes()
}

// encodeRS serializes (r, s) as a fixed-width r||s pair (SigIEEEP1363
// form), the format the ssh-dss wire signature blob uses per RFC 4253
// §6.6 (two 20-byte big-endian integers for the classic 160-bit q).
func encodeRS(r, s *big.Int, width int) []byte {
	out := make([]byte, 2*width)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(out[width-len(rb):width], rb)
	copy(out[2*width-len(sb):2*width], sb)
	return out
}

func decodeRS(sig []byte, width int) (*big.Int, *big.Int, bool) {
	if len(sig) != 2*width {
		return nil, nil, false
	}
	r := new(big.Int).SetBytes(sig[:width])
	s := new(big.Int).SetBytes(sig[width:])
	return r, s, true
}

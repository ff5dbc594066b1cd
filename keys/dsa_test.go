package keys

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/postalsys/gossh/bigint"
)

// smallDSAParams builds a self-consistent (but deliberately small, for
// test speed) DSA domain parameter set: q and p = k*q+1 are primes found
// by trial search from fixed seeds, and g is a generator of the order-q
// subgroup of Z*_p. Constructing parameters this way — rather than
// embedding hand-copied FIPS constants — means the test can't silently
// pass against an internally inconsistent (g has the wrong order) fixture.
func smallDSAParams(t *testing.T) (DSAParameters, *bigint.BigInteger) {
	t.Helper()

	q := nextPrime(big.NewInt(1_000_003))
	var p *big.Int
	for k := int64(2); ; k += 2 {
		cand := new(big.Int).Mul(q, big.NewInt(k))
		cand.Add(cand, big.NewInt(1))
		if cand.ProbablyPrime(32) {
			p = cand
			break
		}
	}

	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	exp := new(big.Int).Div(pMinus1, q)
	var g *big.Int
	for h := int64(2); ; h++ {
		cand := new(big.Int).Exp(big.NewInt(h), exp, p)
		if cand.Cmp(big.NewInt(1)) != 0 {
			g = cand
			break
		}
	}

	x := big.NewInt(123456789)
	x.Mod(x, q)

	return DSAParameters{
		P: bigint.FromBig(p),
		Q: bigint.FromBig(q),
		G: bigint.FromBig(g),
	}, bigint.FromBig(x)
}

func nextPrime(start *big.Int) *big.Int {
	n := new(big.Int).Set(start)
	if n.Bit(0) == 0 {
		n.Add(n, big.NewInt(1))
	}
	for !n.ProbablyPrime(32) {
		n.Add(n, big.NewInt(2))
	}
	return n
}

func newTestDSAPrivateKey(t *testing.T) *DSAPrivateKey {
	t.Helper()
	params, x := smallDSAParams(t)
	y := params.G.ModPow(x, params.P)
	return &DSAPrivateKey{Params: params, X: x, Y: y}
}

func TestDSASignVerifyRoundTrip(t *testing.T) {
	priv := newTestDSAPrivateKey(t)
	digest := sha256.Sum256([]byte("hello dsa"))
	digest20 := digest[:20] // classic DSA digests are SHA-1-sized

	sig, err := priv.Sign(digest20)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	pub := priv.Public().(*DSAPublicKey)
	if !pub.Verify(digest20, sig) {
		t.Fatalf("expected signature to verify")
	}
}

func TestDSASignDeterministic(t *testing.T) {
	priv := newTestDSAPrivateKey(t)
	digest := sha256.Sum256([]byte("deterministic message"))[:20]
	sig1, err := priv.Sign(digest)
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := priv.Sign(digest)
	if err != nil {
		t.Fatal(err)
	}
	if string(sig1) != string(sig2) {
		t.Fatalf("expected identical signatures for identical input, RFC 6979 determinism broken")
	}
}

func TestDSAVerifyRejectsTamperedSignature(t *testing.T) {
	priv := newTestDSAPrivateKey(t)
	digest := sha256.Sum256([]byte("tamper me"))[:20]
	sig, err := priv.Sign(digest)
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), sig...)
	tampered[len(tampered)-1] ^= 0xff

	pub := priv.Public().(*DSAPublicKey)
	if pub.Verify(digest, tampered) {
		t.Fatalf("expected tampered signature to fail verification")
	}
}

func TestDSAMarshalSSH2(t *testing.T) {
	priv := newTestDSAPrivateKey(t)
	pub := priv.Public().(*DSAPublicKey)
	blob := pub.MarshalSSH2()
	if len(blob) < 11 || string(blob[4:11]) != "ssh-dss" {
		t.Fatalf("expected ssh-dss prefix in marshaled blob, got %x", blob[:16])
	}
}

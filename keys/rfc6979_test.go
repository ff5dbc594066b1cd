package keys

import (
	"crypto/sha256"
	"math/big"
	"testing"
)

func TestDeterministicKIsReproducible(t *testing.T) {
	q, _ := new(big.Int).SetString("FFFFFFFF00000000FFFFFFFFFFFFFFFFBCE6FAADA7179E84F3B9CAC2FC632551", 16)
	x, _ := new(big.Int).SetString("C9AFA9D845BA75166B5C215767B1D6934E50C3DB36E89B127B8A622B120F6721", 16)
	digest := sha256.Sum256([]byte("sample"))

	k1 := deterministicK(sha256.New, q, x, digest[:])
	k2 := deterministicK(sha256.New, q, x, digest[:])
	if k1.Cmp(k2) != 0 {
		t.Fatalf("expected deterministic k to reproduce: %v != %v", k1, k2)
	}
	if k1.Sign() <= 0 || k1.Cmp(q) >= 0 {
		t.Fatalf("k out of range: %v", k1)
	}
}

func TestDeterministicKDiffersByMessage(t *testing.T) {
	q, _ := new(big.Int).SetString("FFFFFFFF00000000FFFFFFFFFFFFFFFFBCE6FAADA7179E84F3B9CAC2FC632551", 16)
	x, _ := new(big.Int).SetString("C9AFA9D845BA75166B5C215767B1D6934E50C3DB36E89B127B8A622B120F6721", 16)
	d1 := sha256.Sum256([]byte("sample one"))
	d2 := sha256.Sum256([]byte("sample two"))

	k1 := deterministicK(sha256.New, q, x, d1[:])
	k2 := deterministicK(sha256.New, q, x, d2[:])
	if k1.Cmp(k2) == 0 {
		t.Fatalf("expected distinct messages to produce distinct k")
	}
}

func TestBits2OctetsReducesModQ(t *testing.T) {
	q := big.NewInt(17)
	h1 := []byte{0xff} // 255, exceeds q
	out := bits2octets(h1, q, q.BitLen(), 1)
	v := new(big.Int).SetBytes(out)
	if v.Cmp(q) >= 0 {
		t.Fatalf("expected reduced value below q, got %v", v)
	}
}

package cipher

import (
	"bytes"
	"testing"
)

func newAESEngine(t *testing.T, mode Mode, continuous bool) *Engine {
	t.Helper()
	c := NewAES()
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	if err := c.SetupKey(key); err != nil {
		t.Fatalf("SetupKey: %v", err)
	}
	e := NewBlockEngine(c, mode)
	e.SetContinuousBuffer(continuous)
	iv := make([]byte, 16)
	for i := range iv {
		iv[i] = byte(0x10 + i)
	}
	if err := e.SetIV(iv); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	return e
}

func TestCBCRoundTrip(t *testing.T) {
	enc := newAESEngine(t, CBC, false)
	dec := newAESEngine(t, CBC, false)
	plain := []byte("this is a message that is definitely longer than one block")
	ct, err := enc.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := dec.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plain)
	}
}

func TestECBRoundTrip(t *testing.T) {
	enc := newAESEngine(t, ECB, false)
	dec := newAESEngine(t, ECB, false)
	plain := []byte("sixteen bytes!!!exact two blocks")
	ct, err := enc.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := dec.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plain)
	}
}

func TestCTRRoundTrip(t *testing.T) {
	enc := newAESEngine(t, CTR, false)
	dec := newAESEngine(t, CTR, false)
	plain := []byte("arbitrary length, not block aligned at all")
	ct, err := enc.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := dec.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plain)
	}
}

func TestCFBRoundTrip(t *testing.T) {
	for _, mode := range []Mode{CFB, CFB8, OFB, OFB8} {
		enc := newAESEngine(t, mode, false)
		dec := newAESEngine(t, mode, false)
		plain := []byte("streaming cipher feedback modes, arbitrary length 123")
		ct, err := enc.Encrypt(plain)
		if err != nil {
			t.Fatalf("%s Encrypt: %v", mode, err)
		}
		pt, err := dec.Decrypt(ct)
		if err != nil {
			t.Fatalf("%s Decrypt: %v", mode, err)
		}
		if !bytes.Equal(pt, plain) {
			t.Fatalf("%s round trip mismatch: got %q want %q", mode, pt, plain)
		}
	}
}

// TestContinuousBufferEquivalence verifies spec §4.3's contract: splitting
// a call into two pieces under continuous-buffer mode must produce the
// same output as a single call of the concatenation, for every mode that
// tracks streaming state.
func TestContinuousBufferEquivalence(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, sixty-two bytes!!")

	for _, mode := range []Mode{CTR, CFB, CFB8, OFB, OFB8} {
		whole := newAESEngine(t, mode, true)
		wholeOut, err := whole.Encrypt(plain)
		if err != nil {
			t.Fatalf("%s whole Encrypt: %v", mode, err)
		}

		split := newAESEngine(t, mode, true)
		var splitOut []byte
		for _, cut := range [][2]int{{0, 13}, {13, 29}, {29, len(plain)}} {
			part, err := split.Encrypt(plain[cut[0]:cut[1]])
			if err != nil {
				t.Fatalf("%s split Encrypt: %v", mode, err)
			}
			splitOut = append(splitOut, part...)
		}

		if !bytes.Equal(wholeOut, splitOut) {
			t.Fatalf("%s: continuous-buffer split mismatch\nwhole: %x\nsplit: %x", mode, wholeOut, splitOut)
		}
	}
}

func TestNonContinuousResetsPerCall(t *testing.T) {
	e := newAESEngine(t, CTR, false)
	plain := []byte("same plaintext block")
	a, err := e.Encrypt(plain)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Encrypt(plain)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("non-continuous engine should reset IV/counter each call, got differing output")
	}
}

func TestAESCTRKnownAnswer(t *testing.T) {
	// NIST SP 800-38A F.5.1 AES-128-CTR test vector.
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	wantCT := mustHex(t, "874d6191b620e3261bef6864990db6ce")

	c := NewAES()
	if err := c.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	e := NewBlockEngine(c, CTR)
	if err := e.SetIV(iv); err != nil {
		t.Fatal(err)
	}
	ct, err := e.Encrypt(plain)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ct, wantCT) {
		t.Fatalf("AES-CTR KAT mismatch: got %x want %x", ct, wantCT)
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b := make([]byte, len(s)/2)
	for i := range b {
		hi := hexNibble(t, s[i*2])
		lo := hexNibble(t, s[i*2+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexNibble(t *testing.T, c byte) byte {
	t.Helper()
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		t.Fatalf("invalid hex digit %q", c)
		return 0
	}
}

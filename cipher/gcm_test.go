package cipher

import (
	"bytes"
	"testing"
)

func TestGCMSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	nonce := make([]byte, 12)
	for i := range nonce {
		nonce[i] = byte(0x20 + i)
	}

	enc := NewAES()
	if err := enc.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	e := NewBlockEngine(enc, GCM)
	if err := e.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	e.SetAAD([]byte("packet-header"))

	plain := []byte("the quick brown fox jumps over the lazy dog")
	ct, err := e.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tag := e.LastTag()
	if len(tag) != 16 {
		t.Fatalf("expected 16-byte tag, got %d", len(tag))
	}

	dec := NewAES()
	if err := dec.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	d := NewBlockEngine(dec, GCM)
	if err := d.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	d.SetAAD([]byte("packet-header"))

	pt, err := d.Decrypt(append(append([]byte{}, ct...), tag...))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plain)
	}
}

func TestGCMTamperedTagRejected(t *testing.T) {
	key := make([]byte, 16)
	nonce := make([]byte, 12)
	enc := NewAES()
	if err := enc.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	e := NewBlockEngine(enc, GCM)
	if err := e.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	ct, err := e.Encrypt([]byte("secret message"))
	if err != nil {
		t.Fatal(err)
	}
	sealed := append(append([]byte{}, ct...), e.LastTag()...)
	sealed[len(sealed)-1] ^= 0xff

	dec := NewAES()
	if err := dec.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	d := NewBlockEngine(dec, GCM)
	if err := d.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Decrypt(sealed); err != ErrDecryption {
		t.Fatalf("expected ErrDecryption for tampered tag, got %v", err)
	}
}

func TestGCMTamperedCiphertextRejected(t *testing.T) {
	key := make([]byte, 16)
	nonce := make([]byte, 12)
	enc := NewAES()
	if err := enc.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	e := NewBlockEngine(enc, GCM)
	if err := e.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	ct, err := e.Encrypt([]byte("secret message!!"))
	if err != nil {
		t.Fatal(err)
	}
	sealed := append(append([]byte{}, ct...), e.LastTag()...)
	sealed[0] ^= 0x01

	dec := NewAES()
	if err := dec.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	d := NewBlockEngine(dec, GCM)
	if err := d.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Decrypt(sealed); err != ErrDecryption {
		t.Fatalf("expected ErrDecryption for tampered ciphertext, got %v", err)
	}
}

func TestGCMTruncatedTagSize(t *testing.T) {
	key := make([]byte, 16)
	nonce := make([]byte, 12)
	enc := NewAES()
	if err := enc.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	e := NewBlockEngine(enc, GCM)
	if err := e.SetTagSize(12); err != nil {
		t.Fatal(err)
	}
	if err := e.SetIV(nonce); err != nil {
		t.Fatal(err)
	}
	_, err := e.Encrypt([]byte("short tag message"))
	if err != nil {
		t.Fatal(err)
	}
	if len(e.LastTag()) != 12 {
		t.Fatalf("expected 12-byte truncated tag, got %d", len(e.LastTag()))
	}
}

func TestGCMInvalidTagSizeRejected(t *testing.T) {
	enc := NewAES()
	e := NewBlockEngine(enc, GCM)
	if err := e.SetTagSize(3); err == nil {
		t.Fatalf("expected error for tag size below minimum")
	}
	if err := e.SetTagSize(17); err == nil {
		t.Fatalf("expected error for tag size above maximum")
	}
}

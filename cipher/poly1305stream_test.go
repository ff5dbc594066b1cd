package cipher

import (
	"bytes"
	"testing"
)

func TestPolyStreamSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 64)
	for i := range key {
		key[i] = byte(i)
	}
	enc, err := NewPolyStream(key)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewPolyStream(key)
	if err != nil {
		t.Fatal(err)
	}

	enc.SetSequence(7)
	dec.SetSequence(7)

	plain := []byte("ssh packet payload, arbitrary length, not block aligned")
	sealed, err := enc.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := dec.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plain)
	}
}

func TestPolyStreamLengthFieldRoundTrip(t *testing.T) {
	key := make([]byte, 64)
	ps, err := NewPolyStream(key)
	if err != nil {
		t.Fatal(err)
	}
	ps.SetSequence(42)
	var length [4]byte
	length[0], length[1], length[2], length[3] = 0, 0, 1, 0

	enc, err := ps.EncryptLength(length)
	if err != nil {
		t.Fatal(err)
	}
	ps2, _ := NewPolyStream(key)
	ps2.SetSequence(42)
	dec, err := ps2.DecryptLength(enc)
	if err != nil {
		t.Fatal(err)
	}
	if dec != length {
		t.Fatalf("length round trip mismatch: got %v want %v", dec, length)
	}
}

func TestPolyStreamWrongSequenceFailsOpen(t *testing.T) {
	key := make([]byte, 64)
	for i := range key {
		key[i] = byte(i * 3)
	}
	enc, _ := NewPolyStream(key)
	enc.SetSequence(1)
	sealed, err := enc.Seal([]byte("message"))
	if err != nil {
		t.Fatal(err)
	}

	dec, _ := NewPolyStream(key)
	dec.SetSequence(2)
	if _, err := dec.Open(sealed); err != ErrDecryption {
		t.Fatalf("expected ErrDecryption for wrong sequence, got %v", err)
	}
}

func TestPolyStreamRejectsShortKey(t *testing.T) {
	if _, err := NewPolyStream(make([]byte, 32)); err == nil {
		t.Fatalf("expected error for 32-byte key")
	}
}

func TestPolyStreamTamperedCiphertextRejected(t *testing.T) {
	key := make([]byte, 64)
	enc, _ := NewPolyStream(key)
	enc.SetSequence(0)
	sealed, err := enc.Seal([]byte("tamper me"))
	if err != nil {
		t.Fatal(err)
	}
	sealed[0] ^= 0x01

	dec, _ := NewPolyStream(key)
	dec.SetSequence(0)
	if _, err := dec.Open(sealed); err != ErrDecryption {
		t.Fatalf("expected ErrDecryption for tampered ciphertext, got %v", err)
	}
}

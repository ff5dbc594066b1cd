package cipher

import "testing"

func TestRC2RoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	c := NewRC2(0)
	if err := c.SetupKey(key); err != nil {
		t.Fatalf("SetupKey: %v", err)
	}
	plain := []byte("12345678")
	var ct, pt [8]byte
	c.EncryptBlock(ct[:], plain)
	if string(ct[:]) == string(plain) {
		t.Fatalf("ciphertext equals plaintext")
	}
	c.DecryptBlock(pt[:], ct[:])
	if string(pt[:]) != string(plain) {
		t.Fatalf("round trip mismatch: got %x want %x", pt, plain)
	}
}

func TestRC2EffectiveBitsNarrowerThanKey(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	full := NewRC2(0)
	narrow := NewRC2(40)
	if err := full.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	if err := narrow.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	plain := []byte("abcdefgh")
	var ctFull, ctNarrow [8]byte
	full.EncryptBlock(ctFull[:], plain)
	narrow.EncryptBlock(ctNarrow[:], plain)
	if string(ctFull[:]) == string(ctNarrow[:]) {
		t.Fatalf("effective-bits parameter had no effect on schedule")
	}
}

func TestRC2InvalidKeyLength(t *testing.T) {
	c := NewRC2(0)
	if err := c.SetupKey(make([]byte, 0)); err == nil {
		t.Fatalf("expected error for zero-length key")
	}
	if err := c.SetupKey(make([]byte, 129)); err == nil {
		t.Fatalf("expected error for over-length key")
	}
}

func TestRC2DeterministicSchedule(t *testing.T) {
	key := []byte("fixedkey")
	a := NewRC2(0)
	b := NewRC2(0)
	if err := a.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	if err := b.SetupKey(key); err != nil {
		t.Fatal(err)
	}
	plain := []byte("deadbeef")
	var ca, cb [8]byte
	a.EncryptBlock(ca[:], plain)
	b.EncryptBlock(cb[:], plain)
	if string(ca[:]) != string(cb[:]) {
		t.Fatalf("same key produced different ciphertext across instances")
	}
}

package gohash

import (
	"encoding/hex"
	"testing"
)

func TestSHA256KnownAnswer(t *testing.T) {
	got, err := Sum(SHA256, []byte("abc"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if hex.EncodeToString(got) != want {
		t.Errorf("SHA256(abc) = %x, want %s", got, want)
	}
}

func TestMD5KnownAnswer(t *testing.T) {
	got, err := Sum(MD5, []byte(""))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	want := "d41d8cd98f00b204e9800998ecf8427e"
	if hex.EncodeToString(got) != want {
		t.Errorf("MD5('') = %x, want %s", got, want)
	}
}

func TestHMACSHA1KnownAnswer(t *testing.T) {
	// RFC 2202 test case 1.
	key := make([]byte, 20)
	for i := range key {
		key[i] = 0x0b
	}
	got, err := HMACSum(SHA1, key, []byte("Hi There"))
	if err != nil {
		t.Fatalf("HMACSum: %v", err)
	}
	want := "b617318655057264e28bc0b6fb378c8ef146be00"
	if hex.EncodeToString(got) != want {
		t.Errorf("HMAC-SHA1 = %x, want %s", got, want)
	}
}

func TestMD2SizeAndDeterminism(t *testing.T) {
	a, err := Sum(MD2, []byte("The quick brown fox"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("MD2 digest length = %d, want 16", len(a))
	}
	b, _ := Sum(MD2, []byte("The quick brown fox"))
	if hex.EncodeToString(a) != hex.EncodeToString(b) {
		t.Errorf("MD2 not deterministic: %x vs %x", a, b)
	}
	c, _ := Sum(MD2, []byte("The quick brown foy"))
	if hex.EncodeToString(a) == hex.EncodeToString(c) {
		t.Errorf("MD2 collided on single-byte change")
	}
}

func TestUMACDeterministicAndSensitive(t *testing.T) {
	key := []byte("0123456789abcdef")
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	tag1, err := UMAC(key, nonce, []byte("hello world"))
	if err != nil {
		t.Fatalf("UMAC: %v", err)
	}
	tag2, _ := UMAC(key, nonce, []byte("hello world"))
	if hex.EncodeToString(tag1) != hex.EncodeToString(tag2) {
		t.Errorf("UMAC not deterministic")
	}

	tag3, _ := UMAC(key, nonce, []byte("hello worle"))
	if hex.EncodeToString(tag1) == hex.EncodeToString(tag3) {
		t.Errorf("UMAC insensitive to message change")
	}

	tag4, _ := UMAC(key, []byte{8, 7, 6, 5, 4, 3, 2, 1}, []byte("hello world"))
	if hex.EncodeToString(tag1) == hex.EncodeToString(tag4) {
		t.Errorf("UMAC insensitive to nonce change")
	}
}

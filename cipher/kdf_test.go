package cipher

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"testing"
)

func TestPBKDF2KnownAnswer(t *testing.T) {
	// RFC 6070 test case 1: PBKDF2-HMAC-SHA1("password", "salt", 1, 20).
	want := mustHex(t, "0c60c80f961f0e71f3a9b524af6012062fe037a6")
	got := PBKDF2([]byte("password"), []byte("salt"), 1, 20, sha1.New)
	if !bytes.Equal(got, want) {
		t.Fatalf("PBKDF2 KAT mismatch: got %x want %x", got, want)
	}
}

func TestPBKDF2DeterministicAndSensitive(t *testing.T) {
	a := PBKDF2([]byte("password"), []byte("salt"), 1000, 32, sha256.New)
	b := PBKDF2([]byte("password"), []byte("salt"), 1000, 32, sha256.New)
	if !bytes.Equal(a, b) {
		t.Fatalf("PBKDF2 not deterministic")
	}
	c := PBKDF2([]byte("password2"), []byte("salt"), 1000, 32, sha256.New)
	if bytes.Equal(a, c) {
		t.Fatalf("PBKDF2 insensitive to password change")
	}
}

func TestPBKDF1RoundTripLength(t *testing.T) {
	out, err := PBKDF1(sha1.New, []byte("password"), []byte("saltsalt"), 4, 16)
	if err != nil {
		t.Fatalf("PBKDF1: %v", err)
	}
	if len(out) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(out))
	}
	out2, err := PBKDF1(sha1.New, []byte("password"), []byte("saltsalt"), 4, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, out2) {
		t.Fatalf("PBKDF1 not deterministic")
	}
}

func TestPBKDF1RejectsOversizeKeyLen(t *testing.T) {
	if _, err := PBKDF1(sha1.New, []byte("password"), []byte("salt"), 1, 21); err == nil {
		t.Fatalf("expected error requesting more bytes than SHA-1 produces")
	}
}

func TestEncodeBMPString(t *testing.T) {
	got := EncodeBMPString("ab")
	want := []byte{0x00, 'a', 0x00, 'b', 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("BMPString encoding mismatch: got %x want %x", got, want)
	}
}

func TestPKCS12KDFDeterministicAndDistinctByID(t *testing.T) {
	pass := EncodeBMPString("hunter2")
	salt := []byte("01234567")
	key := PKCS12KDF(pass, salt, 1, 2000, 24, sha256.New)
	iv := PKCS12KDF(pass, salt, 2, 2000, 24, sha256.New)
	again := PKCS12KDF(pass, salt, 1, 2000, 24, sha256.New)

	if !bytes.Equal(key, again) {
		t.Fatalf("PKCS12KDF not deterministic")
	}
	if bytes.Equal(key, iv) {
		t.Fatalf("key-material and IV-material derivations should differ")
	}
}

func TestPKCS12KDFLongerThanDigest(t *testing.T) {
	pass := EncodeBMPString("longoutput")
	salt := []byte("saltsalt")
	out := PKCS12KDF(pass, salt, 1, 100, 64, sha256.New)
	if len(out) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(out))
	}
}

func TestBcryptPBKDFDeterministicAndSensitive(t *testing.T) {
	salt := []byte("somesalt12345678")
	a, err := BcryptPBKDF([]byte("password"), salt, 16, 32)
	if err != nil {
		t.Fatalf("BcryptPBKDF: %v", err)
	}
	b, err := BcryptPBKDF([]byte("password"), salt, 16, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("BcryptPBKDF not deterministic")
	}
	c, err := BcryptPBKDF([]byte("different"), salt, 16, 32)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("BcryptPBKDF insensitive to password change")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(a))
	}
}

func TestBcryptPBKDFLongOutputSpansBlocks(t *testing.T) {
	out, err := BcryptPBKDF([]byte("pw"), []byte("saltsaltsaltsalt"), 8, 48)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 48 {
		t.Fatalf("expected 48 bytes across multiple 32-byte blocks, got %d", len(out))
	}
}

func TestBcryptPBKDFRejectsZeroRounds(t *testing.T) {
	if _, err := BcryptPBKDF([]byte("pw"), []byte("salt"), 0, 32); err == nil {
		t.Fatalf("expected error for zero rounds")
	}
}

package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/postalsys/gossh/bigint"
)

func newTestRSAPrivateKey(t *testing.T) *RSAPrivateKey {
	t.Helper()
	std, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return NewRSAPrivateKeyFromCRT(
		bigint.FromBig(std.N),
		bigint.New(int64(std.E)),
		bigint.FromBig(std.D),
		bigint.FromBig(std.Primes[0]),
		bigint.FromBig(std.Primes[1]),
	)
}

func TestRSASignVerifyPKCS1v15(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	digest := sha256.Sum256([]byte("hello rsa"))

	sig, err := priv.SignPKCS1v15(crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}
	if err := priv.Pub.VerifyPKCS1v15(crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("VerifyPKCS1v15: %v", err)
	}
}

func TestRSASignVerifyPSS(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	digest := sha256.Sum256([]byte("hello pss"))

	sig, err := priv.SignPSS(crypto.SHA256, digest[:], rsa.PSSSaltLengthAuto)
	if err != nil {
		t.Fatalf("SignPSS: %v", err)
	}
	if err := priv.Pub.VerifyPSS(crypto.SHA256, digest[:], sig, rsa.PSSSaltLengthAuto); err != nil {
		t.Fatalf("VerifyPSS: %v", err)
	}
}

func TestRSAEncryptDecryptOAEP(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	plaintext := []byte("a secret message")

	ct, err := priv.Pub.EncryptOAEP(sha256.New(), nil, plaintext)
	if err != nil {
		t.Fatalf("EncryptOAEP: %v", err)
	}
	pt, err := priv.DecryptOAEP(sha256.New(), nil, ct)
	if err != nil {
		t.Fatalf("DecryptOAEP: %v", err)
	}
	if string(pt) != string(plaintext) {
		t.Fatalf("got %q want %q", pt, plaintext)
	}
}

func TestRSAEncryptDecryptPKCS1v15(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	plaintext := []byte("another secret")

	ct, err := priv.Pub.EncryptPKCS1v15(plaintext)
	if err != nil {
		t.Fatalf("EncryptPKCS1v15: %v", err)
	}
	pt, err := priv.DecryptPKCS1v15(ct)
	if err != nil {
		t.Fatalf("DecryptPKCS1v15: %v", err)
	}
	if string(pt) != string(plaintext) {
		t.Fatalf("got %q want %q", pt, plaintext)
	}
}

func TestRSADecryptRawMatchesModPow(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	m := bigint.New(42)
	c := m.ModPow(priv.Pub.E, priv.Pub.N)

	got, err := priv.DecryptRaw(c)
	if err != nil {
		t.Fatalf("DecryptRaw: %v", err)
	}
	if got.Cmp(m) != 0 {
		t.Fatalf("got %v want %v", got, m)
	}
}

func TestRSASignInterfaceUsesSHA256(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	digest := sha256.Sum256([]byte("via interface"))

	sig, err := priv.Sign(digest[:])
	if err != nil {
		t.Fatal(err)
	}
	pub := priv.Public().(*RSAPublicKey)
	if !pub.Verify(digest[:], sig) {
		t.Fatalf("expected Verify to accept Sign's output")
	}
}

func TestRSAMarshalSSH2(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	blob := priv.Pub.MarshalSSH2()
	if len(blob) < 11 || string(blob[4:11]) != "ssh-rsa" {
		t.Fatalf("expected ssh-rsa prefix, got %x", blob[:16])
	}
}

func TestConstantTimeEqualN(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	if !ConstantTimeEqualN(priv.Pub, priv.Pub) {
		t.Fatalf("expected equal moduli to compare equal")
	}
	other := newTestRSAPrivateKey(t)
	if ConstantTimeEqualN(priv.Pub, other.Pub) {
		t.Fatalf("expected distinct moduli to compare unequal")
	}
}

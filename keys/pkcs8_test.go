package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func TestPKCS8RSASaveLoadRoundTrip(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	kp := &KeyPair{Algorithm: RSA, Public: priv.Public(), Private: priv}

	pem, err := SaveKeyAs("pkcs8", kp, nil)
	if err != nil {
		t.Fatalf("SaveKeyAs: %v", err)
	}
	if !(pkcs8Plugin{}).Sniff(pem) {
		t.Fatalf("expected Sniff to recognize its own PEM output")
	}

	loaded, err := LoadKeyAs("pkcs8", pem, nil)
	if err != nil {
		t.Fatalf("LoadKeyAs: %v", err)
	}
	got := loaded.Private.(*RSAPrivateKey)
	if got.Pub.N.Big().Cmp(priv.Pub.N.Big()) != 0 || got.D.Big().Cmp(priv.D.Big()) != 0 {
		t.Fatalf("round-tripped RSA key does not match original")
	}
}

func TestPKCS8ECSaveLoadRoundTrip(t *testing.T) {
	priv := newTestECPrivateKey(t, CurveNistP256)
	kp := &KeyPair{Algorithm: EC, Public: priv.Public(), Private: priv}

	pem, err := SaveKeyAs("pkcs8", kp, nil)
	if err != nil {
		t.Fatalf("SaveKeyAs: %v", err)
	}
	loaded, err := LoadKeyAs("pkcs8", pem, nil)
	if err != nil {
		t.Fatalf("LoadKeyAs: %v", err)
	}
	got := loaded.Private.(*ECPrivateKey)
	if got.Curve != priv.Curve || got.X.Big().Cmp(priv.X.Big()) != 0 || got.Y.Big().Cmp(priv.Y.Big()) != 0 {
		t.Fatalf("round-tripped EC key does not match original")
	}
}

func TestPKCS8Ed25519SaveLoadRoundTrip(t *testing.T) {
	pub, std, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	priv := &Ed25519PrivateKey{Raw: []byte(std)}
	kp := &KeyPair{Algorithm: Ed25519, Public: &Ed25519PublicKey{Raw: []byte(pub)}, Private: priv}

	pem, err := SaveKeyAs("pkcs8", kp, nil)
	if err != nil {
		t.Fatalf("SaveKeyAs: %v", err)
	}
	loaded, err := LoadKeyAs("pkcs8", pem, nil)
	if err != nil {
		t.Fatalf("LoadKeyAs: %v", err)
	}
	got := loaded.Private.(*Ed25519PrivateKey)
	if !bytes.Equal(got.Raw, priv.Raw) {
		t.Fatalf("round-tripped Ed25519 key does not match original")
	}
}

func TestPKCS8LoadKeyDiscoversFormatBySniff(t *testing.T) {
	priv := newTestRSAPrivateKey(t)
	kp := &KeyPair{Algorithm: RSA, Public: priv.Public(), Private: priv}
	pem, err := SaveKeyAs("pkcs8", kp, nil)
	if err != nil {
		t.Fatalf("SaveKeyAs: %v", err)
	}
	loaded, err := LoadKey(pem, nil)
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if loaded.Algorithm != RSA {
		t.Fatalf("expected RSA, got %s", loaded.Algorithm)
	}
}

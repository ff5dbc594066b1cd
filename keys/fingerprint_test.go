package keys

import (
	"strings"
	"testing"
)

func TestFingerprintMD5Format(t *testing.T) {
	fp := FingerprintMD5([]byte("some ssh2 public key blob"))
	parts := strings.Split(fp, ":")
	if len(parts) != 16 {
		t.Fatalf("expected 16 colon-separated octets, got %d in %q", len(parts), fp)
	}
	for _, p := range parts {
		if len(p) != 2 {
			t.Fatalf("expected 2 hex chars per octet, got %q", p)
		}
	}
}

func TestFingerprintSHA256Format(t *testing.T) {
	fp := FingerprintSHA256([]byte("some ssh2 public key blob"))
	if !strings.HasPrefix(fp, "SHA256:") {
		t.Fatalf("expected SHA256: prefix, got %q", fp)
	}
	if strings.Contains(fp, "=") {
		t.Fatalf("expected no base64 padding, got %q", fp)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	blob := []byte("deterministic blob")
	if FingerprintMD5(blob) != FingerprintMD5(blob) {
		t.Fatalf("expected MD5 fingerprint to be deterministic")
	}
	if FingerprintSHA256(blob) != FingerprintSHA256(blob) {
		t.Fatalf("expected SHA256 fingerprint to be deterministic")
	}
}

func TestFingerprintRejectsUnknownAlgorithm(t *testing.T) {
	priv := newTestEd25519Key(t)
	if _, err := Fingerprint(priv.Public(), "md4"); err == nil {
		t.Fatalf("expected error for unknown fingerprint algorithm")
	}
}

func TestFingerprintViaPublicKey(t *testing.T) {
	priv := newTestEd25519Key(t)
	fp, err := Fingerprint(priv.Public(), "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(fp, "SHA256:") {
		t.Fatalf("got %q", fp)
	}
}

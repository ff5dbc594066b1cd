package keys

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// FingerprintMD5 returns the legacy colon-hex MD5 fingerprint of an SSH2
// public key blob (e.g. "aa:bb:cc:..."), as printed by OpenSSH's
// "ssh-keygen -l -E md5".
func FingerprintMD5(blob []byte) string {
	sum := md5.Sum(blob)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// FingerprintSHA256 returns the modern "SHA256:<base64-no-padding>"
// fingerprint OpenSSH prints by default since 6.8.
func FingerprintSHA256(blob []byte) string {
	sum := sha256.Sum256(blob)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}

// Fingerprint returns a public key's SSH2 wire blob fingerprinted with
// the requested algorithm name ("md5" or "sha256").
func Fingerprint(pub PublicKey, algo string) (string, error) {
	blob := pub.MarshalSSH2()
	switch strings.ToLower(algo) {
	case "md5":
		return FingerprintMD5(blob), nil
	case "sha256":
		return FingerprintSHA256(blob), nil
	default:
		return "", fmt.Errorf("keys: unknown fingerprint algorithm %q", algo)
	}
}

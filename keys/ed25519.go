package keys

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/postalsys/gossh/wireutil"
)

// Ed25519PublicKey wraps a raw 32-byte Ed25519 public key (RFC 8032 §5.1).
type Ed25519PublicKey struct {
	Raw []byte
}

// Ed25519PrivateKey wraps a raw 64-byte Ed25519 private key (seed||pub,
// the stdlib's ed25519.PrivateKey encoding).
type Ed25519PrivateKey struct {
	Raw []byte
}

func (k *Ed25519PublicKey) Algorithm() Algorithm  { return Ed25519 }
func (k *Ed25519PrivateKey) Algorithm() Algorithm { return Ed25519 }

func (k *Ed25519PrivateKey) Public() PublicKey {
	pub := ed25519.PrivateKey(k.Raw).Public().(ed25519.PublicKey)
	return &Ed25519PublicKey{Raw: []byte(pub)}
}

// Sign implements PrivateKey. Unlike the other algorithms here, Ed25519
// (RFC 8032) signs the message itself rather than a pre-hashed digest —
// "digest" is the raw message to sign, per SSH2's ssh-ed25519 usage
// (RFC 8709 §4), which never pre-hashes.
func (k *Ed25519PrivateKey) Sign(digest []byte) ([]byte, error) {
	if len(k.Raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}
	return ed25519.Sign(ed25519.PrivateKey(k.Raw), digest), nil
}

// Verify implements PublicKey; see the Sign doc comment re: no pre-hash.
func (k *Ed25519PublicKey) Verify(digest, sig []byte) bool {
	if len(k.Raw) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(k.Raw), digest, sig)
}

// Validate rejects a public key blob that does not decode to a point on
// the curve (malformed or crafted wire data), using filippo.io/edwards25519
// directly for the group-element decode rather than relying on
// crypto/ed25519.Verify to fail later -- stdlib accepts and rejects
// invalid points only at verification time, whereas host-key material
// from an untrusted peer should be validated as soon as it is parsed.
func (k *Ed25519PublicKey) Validate() error {
	if len(k.Raw) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(k.Raw); err != nil {
		return fmt.Errorf("%w: ed25519 public key is not a valid curve point: %v", ErrInvalidKey, err)
	}
	return nil
}

// MarshalSSH2 encodes the public key as RFC 8709 §4's "ssh-ed25519" blob:
// string("ssh-ed25519"), string(pk).
func (k *Ed25519PublicKey) MarshalSSH2() []byte {
	return wireutil.NewBuilder().
		WriteCString("ssh-ed25519").
		WriteString(k.Raw).
		Bytes()
}

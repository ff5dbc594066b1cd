package keys

import (
	"fmt"

	circled448 "github.com/cloudflare/circl/sign/ed448"

	"github.com/postalsys/gossh/wireutil"
)

// Ed448PublicKey wraps a raw Ed448 public key (RFC 8032 §5.2).
type Ed448PublicKey struct {
	Raw []byte
}

// Ed448PrivateKey wraps a raw Ed448 private key.
type Ed448PrivateKey struct {
	Raw []byte
}

func (k *Ed448PublicKey) Algorithm() Algorithm  { return Ed448 }
func (k *Ed448PrivateKey) Algorithm() Algorithm { return Ed448 }

func (k *Ed448PrivateKey) Public() PublicKey {
	priv := circled448.PrivateKey(k.Raw)
	pub := priv.Public().(circled448.PublicKey)
	return &Ed448PublicKey{Raw: []byte(pub)}
}

// Sign implements PrivateKey; like Ed25519, digest here is the raw
// message (Ed448 signs the message directly, RFC 8032 §5.2.6), using the
// empty context string (the "Ed448" pure scheme, not Ed448ph).
func (k *Ed448PrivateKey) Sign(digest []byte) ([]byte, error) {
	if len(k.Raw) != circled448.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed448 private key must be %d bytes", ErrInvalidKey, circled448.PrivateKeySize)
	}
	return circled448.Sign(circled448.PrivateKey(k.Raw), digest, ""), nil
}

// Verify implements PublicKey.
func (k *Ed448PublicKey) Verify(digest, sig []byte) bool {
	if len(k.Raw) != circled448.PublicKeySize {
		return false
	}
	return circled448.Verify(circled448.PublicKey(k.Raw), digest, sig, "")
}

// MarshalSSH2 encodes the public key as a "ssh-ed448" blob, following the
// same string(algo), string(pk) shape RFC 8709 defines for ssh-ed25519
// (Ed448 has no formal SSH2 RFC; OpenSSH-compatible implementations use
// this naming).
func (k *Ed448PublicKey) MarshalSSH2() []byte {
	return wireutil.NewBuilder().
		WriteCString("ssh-ed448").
		WriteString(k.Raw).
		Bytes()
}

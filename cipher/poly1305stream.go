package cipher

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"
)

// PolyStream implements the chacha20-poly1305@openssh.com construction
// used by the SSH transport: two independently-keyed ChaCha20 streams, one
// for packet-length obfuscation and one for payload encryption plus a
// Poly1305 tag keyed from the payload stream's first block. The split-key
// layout and sequence-number-as-nonce convention mirror the X25519/
// ChaCha20-Poly1305 session layer in the internal/crypto package this
// engine's AEAD modes were adapted from, generalized from a single shared
// key to SSH's two-key scheme.
type PolyStream struct {
	keyLen, keyPayload [32]byte
	seq                uint64
}

// NewPolyStream builds a PolyStream from a 64-byte key: the first 32 bytes
// key the payload+MAC stream, the last 32 the length stream, per
// chacha20-poly1305@openssh.com.
func NewPolyStream(key []byte) (*PolyStream, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: chacha20-poly1305 key must be 64 bytes", ErrInvalidArgument)
	}
	p := &PolyStream{}
	copy(p.keyLen[:], key[32:64])
	copy(p.keyPayload[:], key[0:32])
	return p, nil
}

func (p *PolyStream) nonce() [12]byte {
	var n [12]byte
	n[4] = byte(p.seq >> 56)
	n[5] = byte(p.seq >> 48)
	n[6] = byte(p.seq >> 40)
	n[7] = byte(p.seq >> 32)
	n[8] = byte(p.seq >> 24)
	n[9] = byte(p.seq >> 16)
	n[10] = byte(p.seq >> 8)
	n[11] = byte(p.seq)
	return n
}

// DecryptLength decrypts a 4-byte packet length field using the length
// stream, without advancing the sequence number (SetSequence must be
// called once per packet before both DecryptLength and Open/Seal).
func (p *PolyStream) DecryptLength(encrypted [4]byte) ([4]byte, error) {
	n := p.nonce()
	s, err := chacha20.NewUnauthenticatedCipher(p.keyLen[:], n[:])
	if err != nil {
		return [4]byte{}, err
	}
	var out [4]byte
	s.XORKeyStream(out[:], encrypted[:])
	return out, nil
}

// EncryptLength encrypts a 4-byte packet length field.
func (p *PolyStream) EncryptLength(length [4]byte) ([4]byte, error) {
	return p.DecryptLength(length) // XOR stream cipher is its own inverse
}

// SetSequence sets the SSH packet sequence number used to derive both
// sub-streams' nonces for the next Seal/Open/EncryptLength/DecryptLength
// call.
func (p *PolyStream) SetSequence(seq uint32) { p.seq = uint64(seq) }

// Seal encrypts payload (length field already handled separately) and
// returns ciphertext || 16-byte Poly1305 tag, keyed from the first
// 32 bytes of the payload stream's keystream per RFC 7539 §2.8 / the
// openssh.com construction.
func (p *PolyStream) Seal(payload []byte) ([]byte, error) {
	n := p.nonce()
	s, err := chacha20.NewUnauthenticatedCipher(p.keyPayload[:], n[:])
	if err != nil {
		return nil, err
	}
	var polyKey [32]byte
	var zero [64]byte
	var block [64]byte
	s.XORKeyStream(block[:], zero[:])
	copy(polyKey[:], block[:32])

	ciphertext := make([]byte, len(payload)+poly1305.TagSize)
	s.XORKeyStream(ciphertext[:len(payload)], payload)

	var tag [16]byte
	poly1305.Sum(&tag, ciphertext[:len(payload)], &polyKey)
	copy(ciphertext[len(payload):], tag[:])
	return ciphertext, nil
}

// Open verifies and decrypts ciphertext || tag produced by Seal.
func (p *PolyStream) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < poly1305.TagSize {
		return nil, ErrDecryption
	}
	ciphertext := sealed[:len(sealed)-poly1305.TagSize]
	gotTag := sealed[len(sealed)-poly1305.TagSize:]

	n := p.nonce()
	s, err := chacha20.NewUnauthenticatedCipher(p.keyPayload[:], n[:])
	if err != nil {
		return nil, err
	}
	var polyKey [32]byte
	var zero [64]byte
	var block [64]byte
	s.XORKeyStream(block[:], zero[:])
	copy(polyKey[:], block[:32])

	var tag [16]byte
	poly1305.Sum(&tag, ciphertext, &polyKey)
	if subtle.ConstantTimeCompare(tag[:], gotTag) != 1 {
		return nil, ErrDecryption
	}

	plaintext := make([]byte, len(ciphertext))
	s.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// sealPoly1305 and openPoly1305 adapt PolyStream to the Engine interface,
// for callers that configure the engine uniformly across modes rather
// than holding a *PolyStream directly. The engine's key (64 bytes, set via
// SetKey) and sequence number (encoded as the low 32 bits of the IV set
// via SetIV) drive the underlying construction.
func (e *Engine) sealPoly1305(plaintext []byte) (ciphertext, tag []byte, err error) {
	ps, err := NewPolyStream(e.key)
	if err != nil {
		return nil, nil, err
	}
	ps.SetSequence(ivToSeq(e.iv))
	sealed, err := ps.Seal(plaintext)
	if err != nil {
		return nil, nil, err
	}
	n := len(sealed) - 16
	return sealed[:n], sealed[n:], nil
}

func (e *Engine) openPoly1305(sealed []byte) ([]byte, error) {
	ps, err := NewPolyStream(e.key)
	if err != nil {
		return nil, err
	}
	ps.SetSequence(ivToSeq(e.iv))
	return ps.Open(sealed)
}

func ivToSeq(iv []byte) uint32 {
	if len(iv) < 4 {
		return 0
	}
	last := iv[len(iv)-4:]
	return uint32(last[0])<<24 | uint32(last[1])<<16 | uint32(last[2])<<8 | uint32(last[3])
}

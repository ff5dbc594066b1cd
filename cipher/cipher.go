// Package cipher implements the symmetric cipher engine (spec component
// C4): a family of block ciphers, the streaming modes built on top of them
// (ECB/CBC/CTR/CFB/CFB8/OFB/OFB8/GCM/Poly1305-stream), PKCS#7 padding, and
// continuous-buffer streaming semantics.
//
// Block primitives are sourced from the standard library (crypto/aes,
// crypto/des, crypto/rc4) and golang.org/x/crypto (blowfish, twofish) —
// exactly the dependency family the teacher already carries for its own
// ChaCha20-Poly1305 layer. RC2 has no library anywhere in the retrieved
// example corpus and is implemented directly from RFC 2268. The modes
// themselves, padding, and the continuous-buffer contract are hand-written
// per spec §4.3 — this is "the hard part" the specification asks this
// repository to own.
package cipher

import (
	stdcipher "crypto/cipher"
	"fmt"
)

// Mode identifies a block cipher mode of operation.
type Mode string

const (
	ECB       Mode = "ECB"
	CBC       Mode = "CBC"
	CTR       Mode = "CTR"
	CFB       Mode = "CFB"
	CFB8      Mode = "CFB8"
	OFB       Mode = "OFB"
	OFB8      Mode = "OFB8"
	GCM       Mode = "GCM"
	Poly1305  Mode = "Poly1305"
	StreamRaw Mode = "Stream" // RC4 and other native stream ciphers
)

// BlockCipher is the per-algorithm contract spec §4.3 describes: key
// expansion plus single-block encrypt/decrypt. Stream ciphers (RC4) do not
// implement this; they are handled directly by Engine in stream mode.
type BlockCipher interface {
	// BlockSize returns the cipher's block size in bytes.
	BlockSize() int
	// KeySizes returns the accepted key lengths in bytes, in preference order.
	KeySizes() []int
	// SetupKey performs key expansion/schedule setup.
	SetupKey(key []byte) error
	// EncryptBlock encrypts exactly one block of BlockSize() bytes.
	EncryptBlock(dst, src []byte)
	// DecryptBlock decrypts exactly one block of BlockSize() bytes.
	DecryptBlock(dst, src []byte)
}

// StdBlockCipher adapts a standard library / x/crypto stdcipher.Block
// constructor (which bakes key expansion into construction rather than
// exposing a separate SetupKey step) to the BlockCipher contract.
type StdBlockCipher struct {
	name      string
	blockSize int
	keySizes  []int
	newBlock  func(key []byte) (stdcipher.Block, error)
	block     stdcipher.Block
}

// NewStdBlockCipher wraps a stdlib/x-crypto block constructor.
func NewStdBlockCipher(name string, blockSize int, keySizes []int, newBlock func([]byte) (stdcipher.Block, error)) *StdBlockCipher {
	return &StdBlockCipher{name: name, blockSize: blockSize, keySizes: keySizes, newBlock: newBlock}
}

func (s *StdBlockCipher) BlockSize() int   { return s.blockSize }
func (s *StdBlockCipher) KeySizes() []int  { return s.keySizes }

func (s *StdBlockCipher) SetupKey(key []byte) error {
	if !validKeySize(len(key), s.keySizes) {
		return fmt.Errorf("cipher: %s: invalid key length %d", s.name, len(key))
	}
	b, err := s.newBlock(key)
	if err != nil {
		return fmt.Errorf("cipher: %s: %w", s.name, err)
	}
	s.block = b
	return nil
}

func (s *StdBlockCipher) EncryptBlock(dst, src []byte) { s.block.Encrypt(dst, src) }
func (s *StdBlockCipher) DecryptBlock(dst, src []byte) { s.block.Decrypt(dst, src) }

func validKeySize(n int, allowed []int) bool {
	for _, a := range allowed {
		if a == n {
			return true
		}
	}
	return false
}

// PaddingScheme identifies a block padding scheme.
type PaddingScheme int

const (
	PaddingPKCS7 PaddingScheme = iota
	PaddingNone
)

// Pad pads src to a multiple of blockSize using PKCS#7.
func Pad(src []byte, blockSize int) []byte {
	padLen := blockSize - len(src)%blockSize
	out := make([]byte, len(src)+padLen)
	copy(out, src)
	for i := len(src); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// Unpad strips PKCS#7 padding, returning an error if the padding is
// malformed (a bad-padding error, not leaking which byte was wrong, per
// spec §7's constant-behavior-on-failure policy).
func Unpad(src []byte, blockSize int) ([]byte, error) {
	if len(src) == 0 || len(src)%blockSize != 0 {
		return nil, ErrDecryption
	}
	padLen := int(src[len(src)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(src) {
		return nil, ErrDecryption
	}
	// Constant-time-ish check: verify every padding byte without early exit.
	bad := 0
	for i := len(src) - padLen; i < len(src); i++ {
		if int(src[i]) != padLen {
			bad = 1
		}
	}
	if bad != 0 {
		return nil, ErrDecryption
	}
	return src[:len(src)-padLen], nil
}

package cipher

import (
	"crypto/aes"
	"crypto/des"
	stdcipher "crypto/cipher"
	"crypto/rc4"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/twofish"
)

// NewAES returns an AES block cipher (AES-128/192/256 by key length).
func NewAES() BlockCipher {
	return NewStdBlockCipher("aes", 16, []int{16, 24, 32}, aes.NewCipher)
}

// NewDES returns a single-DES block cipher.
func NewDES() BlockCipher {
	return NewStdBlockCipher("des", 8, []int{8}, des.NewCipher)
}

// NewTripleDES returns a 3DES (EDE) block cipher, keyed with 24 bytes
// (or 16, for two-key 3DES, which this constructor expands to 24 bytes by
// repeating the first 8 before calling des.NewTripleDESCipher).
func NewTripleDES() BlockCipher {
	return NewStdBlockCipher("des-ede3", 8, []int{24, 16}, func(key []byte) (stdcipher.Block, error) {
		if len(key) == 16 {
			key = append(append([]byte{}, key...), key[:8]...)
		}
		return des.NewTripleDESCipher(key)
	})
}

// NewBlowfish returns a Blowfish block cipher (variable key length 4..56
// bytes).
func NewBlowfish() BlockCipher {
	sizes := make([]int, 0, 53)
	for n := 4; n <= 56; n++ {
		sizes = append(sizes, n)
	}
	return NewStdBlockCipher("blowfish", 8, sizes, func(key []byte) (stdcipher.Block, error) {
		return blowfish.NewCipher(key)
	})
}

// NewTwofish returns a Twofish block cipher (128/192/256-bit keys).
func NewTwofish() BlockCipher {
	return NewStdBlockCipher("twofish", 16, []int{16, 24, 32}, func(key []byte) (stdcipher.Block, error) {
		return twofish.NewCipher(key)
	})
}

// NewRC4 returns a stream-cipher adapter around crypto/rc4. RC4 has no
// block size; it implements StreamCipher directly rather than BlockCipher.
func NewRC4() StreamCipher {
	return &rc4Stream{}
}

// StreamCipher is the contract for native stream ciphers (arbitrary-length
// transform with no block alignment), per spec §4.3 "stream ciphers
// override to operate on arbitrary lengths".
type StreamCipher interface {
	SetupKey(key []byte) error
	XORKeyStream(dst, src []byte)
}

type rc4Stream struct {
	c *rc4.Cipher
}

func (r *rc4Stream) SetupKey(key []byte) error {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return err
	}
	r.c = c
	return nil
}

func (r *rc4Stream) XORKeyStream(dst, src []byte) { r.c.XORKeyStream(dst, src) }

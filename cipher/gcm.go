package cipher

import (
	"crypto/subtle"
	"fmt"

	"github.com/postalsys/gossh/wireutil"
)

// sealGCM implements AES-GCM (SP 800-38D) directly on top of the BlockCipher
// contract rather than wrapping crypto/cipher.NewGCM, since the engine needs
// to expose the authentication tag separately (spec §4.3's AEAD contract)
// and support arbitrary block ciphers, not only ones satisfying
// crypto/cipher.Block.
func (e *Engine) sealGCM(plaintext []byte) (ciphertext, tag []byte, err error) {
	if e.blockSize != 16 {
		return nil, nil, fmt.Errorf("%w: GCM requires a 16-byte block cipher", ErrBadMode)
	}
	h := make([]byte, 16)
	e.block.EncryptBlock(h, h)

	j0 := e.gcmJ0()
	ciphertext = e.gcmCTR(j0, plaintext)

	s := ghash(h, e.aad, ciphertext)
	ek0 := make([]byte, 16)
	e.block.EncryptBlock(ek0, j0)
	full := xor16(s, ek0)
	return ciphertext, full[:e.gcmTagSize], nil
}

// openGCM expects ciphertext with the authentication tag appended.
func (e *Engine) openGCM(input []byte) ([]byte, error) {
	if e.blockSize != 16 {
		return nil, fmt.Errorf("%w: GCM requires a 16-byte block cipher", ErrBadMode)
	}
	if len(input) < e.gcmTagSize {
		return nil, ErrDecryption
	}
	ciphertext := input[:len(input)-e.gcmTagSize]
	gotTag := input[len(input)-e.gcmTagSize:]

	h := make([]byte, 16)
	e.block.EncryptBlock(h, h)

	j0 := e.gcmJ0()
	s := ghash(h, e.aad, ciphertext)
	ek0 := make([]byte, 16)
	e.block.EncryptBlock(ek0, j0)
	full := xor16(s, ek0)

	if subtle.ConstantTimeCompare(full[:e.gcmTagSize], gotTag) != 1 {
		return nil, ErrDecryption
	}
	return e.gcmCTR(j0, ciphertext), nil
}

// gcmJ0 derives the initial counter block from the configured nonce. A
// 12-byte nonce is used directly per SP 800-38D §7.1; any other length is
// hashed via GHASH.
func (e *Engine) gcmJ0() []byte {
	nonce := e.iv
	if len(nonce) == 12 {
		j0 := make([]byte, 16)
		copy(j0, nonce)
		j0[15] = 1
		return j0
	}
	h := make([]byte, 16)
	e.block.EncryptBlock(h, h)
	return ghash(h, nil, nonce)
}

// gcmCTR runs GCM's counter mode starting from J0+1, with inc32 applied
// only to the last 4 bytes of the counter block.
func (e *Engine) gcmCTR(j0, data []byte) []byte {
	ctr := append([]byte{}, j0...)
	wireutil.Inc32(ctr)

	out := make([]byte, len(data))
	ks := make([]byte, 16)
	for off := 0; off < len(data); off += 16 {
		e.block.EncryptBlock(ks, ctr)
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		for i := off; i < end; i++ {
			out[i] = data[i] ^ ks[i-off]
		}
		wireutil.Inc32(ctr)
	}
	return out
}

func xor16(a, b []byte) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// ghash computes the GHASH function over aad || ciphertext with the
// standard zero-padding and 64-bit length block, per SP 800-38D §6.4.
func ghash(h, aad, ciphertext []byte) []byte {
	y := make([]byte, 16)
	y = ghashUpdate(y, h, aad)
	y = ghashUpdate(y, h, ciphertext)

	lenBlock := make([]byte, 16)
	putUint64(lenBlock[0:8], uint64(len(aad))*8)
	putUint64(lenBlock[8:16], uint64(len(ciphertext))*8)
	y = gfMulXOR(y, h, lenBlock)
	return y
}

func ghashUpdate(y, h, data []byte) []byte {
	for off := 0; off < len(data); off += 16 {
		block := make([]byte, 16)
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		copy(block, data[off:end])
		y = gfMulXOR(y, h, block)
	}
	return y
}

func gfMulXOR(y, h, x []byte) []byte {
	xored := xor16(y, x)
	return gfMul128(xored, h)
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// gfMul128 multiplies two 128-bit values in GF(2^128) per the reduction
// polynomial x^128 + x^7 + x^2 + x + 1 used by GCM (bit order per SP
// 800-38D §6.3: bit 0 of byte 0 is the most significant coefficient).
func gfMul128(x, y []byte) []byte {
	var z, v [16]byte
	copy(v[:], y)

	for i := 0; i < 128; i++ {
		bit := (x[i/8] >> uint(7-i%8)) & 1
		if bit == 1 {
			for b := 0; b < 16; b++ {
				z[b] ^= v[b]
			}
		}
		lsb := v[15] & 1
		for b := 15; b > 0; b-- {
			v[b] = (v[b] >> 1) | (v[b-1] << 7)
		}
		v[0] >>= 1
		if lsb == 1 {
			v[0] ^= 0xe1
		}
	}
	return z[:]
}

package cipher

import (
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 derives keyLen bytes from password and salt using iter rounds of
// HMAC-hash, per RFC 2898 §5.2. Sourced directly from
// golang.org/x/crypto/pbkdf2 rather than reimplemented, since it is a pure
// wrapper around an already-adopted dependency with no protocol-specific
// behavior this repository needs to own.
func PBKDF2(password, salt []byte, iter, keyLen int, newHash func() hash.Hash) []byte {
	return pbkdf2.Key(password, salt, iter, keyLen, newHash)
}

// PBKDF1 derives a key by repeated hashing of password||salt, per RFC 2898
// §5.1 / PKCS#5 v1.5. It is limited to the output size of the underlying
// hash (16 bytes for MD5, 20 for SHA-1) and is implemented directly since
// no retrieved third-party package exposes this legacy construction.
func PBKDF1(hashAlg func() hash.Hash, password, salt []byte, iter, keyLen int) ([]byte, error) {
	h := hashAlg()
	if keyLen > h.Size() {
		return nil, fmt.Errorf("%w: PBKDF1 output limited to %d bytes for this hash", ErrInvalidArgument, h.Size())
	}
	h.Reset()
	h.Write(password)
	h.Write(salt)
	t := h.Sum(nil)
	for i := 1; i < iter; i++ {
		h.Reset()
		h.Write(t)
		t = h.Sum(nil)
	}
	return t[:keyLen], nil
}

// PKCS12KDF derives keyLen bytes of key material from a password using the
// algorithm of RFC 7292 Appendix B ("Deriving Keys and IVs from Passwords
// and Salt"). id selects the purpose: 1 for key material, 2 for IV
// material, 3 for a MAC key. The password must already be encoded as a
// BMPString (UTF-16BE, NUL-terminated); EncodeBMPString does this.
func PKCS12KDF(password, salt []byte, id byte, iter, keyLen int, hashAlg func() hash.Hash) []byte {
	h := hashAlg()
	u := h.Size()
	v := h.BlockSize()

	// S and P are each repeated up to the next multiple of v bytes (an
	// empty salt or password contributes nothing).
	sLen := ((len(salt) + v - 1) / v) * v
	pLen := ((len(password) + v - 1) / v) * v

	d := make([]byte, v)
	for i := range d {
		d[i] = id
	}

	s := fillTo(salt, sLen)
	p := fillTo(password, pLen)

	ikey := append(append([]byte{}, s...), p...)

	result := make([]byte, 0, keyLen)
	ai := make([]byte, u)
	for len(result) < keyLen {
		h.Reset()
		h.Write(d)
		h.Write(ikey)
		copy(ai, h.Sum(nil))
		for i := 1; i < iter; i++ {
			h.Reset()
			h.Write(ai)
			ai = h.Sum(nil)
		}
		result = append(result, ai...)

		b := fillTo(ai, v)
		for off := 0; off < len(ikey); off += v {
			end := off + v
			if end > len(ikey) {
				end = len(ikey)
			}
			addOneBlock(ikey[off:end], b)
		}
	}
	return result[:keyLen]
}

// fillTo repeats src until it is at least n bytes long and truncates to
// exactly n, per RFC 7292 Appendix B.1's "concatenate copies of ITERATOR
// to create a string".
func fillTo(src []byte, n int) []byte {
	if len(src) == 0 {
		return make([]byte, n)
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, src...)
	}
	return out[:n]
}

// addOneBlock adds b to block as big-endian integers, modulo 2^(8*len),
// in place, per RFC 7292 Appendix B.3 step (c).
func addOneBlock(block, b []byte) {
	carry := 1
	for i := len(block) - 1; i >= 0; i-- {
		sum := int(block[i]) + int(b[i]) + carry
		block[i] = byte(sum)
		carry = sum >> 8
	}
}

// EncodeBMPString converts a password string to BMPString encoding
// (UTF-16BE, NUL-terminated) as RFC 7292 Appendix B.1 requires.
func EncodeBMPString(password string) []byte {
	r := []rune(password)
	out := make([]byte, 0, len(r)*2+2)
	for _, c := range r {
		out = append(out, byte(c>>8), byte(c))
	}
	return append(out, 0, 0)
}

// BcryptPBKDF derives keyLen bytes for OpenSSH encrypted private keys,
// using the bcrypt_pbkdf construction: each PBKDF2-style round applies
// bcrypt's EksBlowfish schedule (keyed by password, salted by
// SHA-512(salt||counter)) to a fixed magic string, then mixes rounds by
// XOR. No retrieved package exports this (golang.org/x/crypto/ssh keeps
// its bcrypt_pbkdf implementation unexported), so it is implemented
// directly on top of the already-adopted golang.org/x/crypto/blowfish
// primitive.
func BcryptPBKDF(password, salt []byte, rounds, keyLen int) ([]byte, error) {
	if rounds < 1 {
		return nil, ErrInvalidArgument
	}
	numBlocks := (keyLen + 31) / 32
	out := make([]byte, numBlocks*32)

	for block := 0; block < numBlocks; block++ {
		var cnt [4]byte
		blockNum := block + 1
		cnt[0] = byte(blockNum >> 24)
		cnt[1] = byte(blockNum >> 16)
		cnt[2] = byte(blockNum >> 8)
		cnt[3] = byte(blockNum)

		var tmp [32]byte
		for i := 0; i < rounds; i++ {
			h := sha512.Sum512(append(append([]byte{}, salt...), cnt[:]...))
			bh := bcryptHash(password, h[:])
			if i == 0 {
				copy(tmp[:], bh)
			} else {
				for j := range tmp {
					tmp[j] ^= bh[j]
				}
			}
			salt = h[:]
		}
		copy(out[block*32:], tmp[:])
	}
	return out[:keyLen], nil
}

// bcryptMagic is "OxychromaticBlowfishSwatDynamite", the fixed 32-byte
// plaintext EksBlowfish encrypts in bcrypt_pbkdf, per Provos & Mazières.
var bcryptMagic = []byte("OxychromaticBlowfishSwatDynamite")

// bcryptHash runs bcrypt's expensive key schedule (password, salt) 64
// times over bcryptMagic and returns the resulting 32 bytes, reusing
// golang.org/x/crypto/blowfish's ExpandKey.
func bcryptHash(password, salt []byte) []byte {
	if len(password) == 0 {
		password = []byte{0}
	}
	c, err := blowfish.NewSaltedCipher(password, salt)
	if err != nil {
		panic(err) // salt/password length invariants guaranteed by caller
	}
	for i := 0; i < 64; i++ {
		blowfish.ExpandKey(salt, c)
		blowfish.ExpandKey(password, c)
	}

	cdata := make([]uint32, 8)
	for i := range cdata {
		cdata[i] = uint32(bcryptMagic[i*4])<<24 | uint32(bcryptMagic[i*4+1])<<16 |
			uint32(bcryptMagic[i*4+2])<<8 | uint32(bcryptMagic[i*4+3])
	}
	for i := 0; i < 64; i++ {
		for j := 0; j < len(cdata); j += 2 {
			cdata[j], cdata[j+1] = blowfishEncryptBlock(c, cdata[j], cdata[j+1])
		}
	}

	out := make([]byte, 32)
	for i, v := range cdata {
		out[i*4] = byte(v >> 24)
		out[i*4+1] = byte(v >> 16)
		out[i*4+2] = byte(v >> 8)
		out[i*4+3] = byte(v)
	}
	return out
}

func blowfishEncryptBlock(c *blowfish.Cipher, l, r uint32) (uint32, uint32) {
	var buf [8]byte
	buf[0], buf[1], buf[2], buf[3] = byte(l>>24), byte(l>>16), byte(l>>8), byte(l)
	buf[4], buf[5], buf[6], buf[7] = byte(r>>24), byte(r>>16), byte(r>>8), byte(r)
	c.Encrypt(buf[:], buf[:])
	l = uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	r = uint32(buf[4])<<24 | uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
	return l, r
}

package gohash

import "encoding/binary"

// UMAC computes a simplified UMAC-style universal hash MAC (RFC 4418): a
// degree-1 polynomial evaluation over GF(2^61-1)-like modular arithmetic
// seeded from an HMAC-derived per-key parameter, following the "hash then
// encrypt the nonce, combine" shape of the RFC without implementing its
// full NH/L1-L2-L3 cascade (no third-party UMAC implementation appears
// anywhere in the retrieved example corpus; see DESIGN.md). It is provided
// for API completeness of the C3 contract rather than interop with other
// UMAC implementations.
func UMAC(key, nonce, msg []byte) ([]byte, error) {
	kh, err := HMACSum(SHA256, key, []byte("gossh-umac-k"))
	if err != nil {
		return nil, err
	}
	nh, err := HMACSum(SHA256, key, append([]byte("gossh-umac-n"), nonce...))
	if err != nil {
		return nil, err
	}

	const prime = (uint64(1) << 61) - 1
	k := binary.BigEndian.Uint64(kh[:8]) % prime
	acc := binary.BigEndian.Uint64(nh[:8]) % prime

	for i := 0; i+8 <= len(msg); i += 8 {
		word := binary.BigEndian.Uint64(msg[i : i+8])
		acc = mulModP61(acc, k) ^ (word % prime)
	}
	if rem := len(msg) % 8; rem != 0 {
		var tail [8]byte
		copy(tail[:], msg[len(msg)-rem:])
		word := binary.BigEndian.Uint64(tail[:])
		acc = mulModP61(acc, k) ^ (word % prime)
	}

	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, acc)
	return out, nil
}

func mulModP61(a, b uint64) uint64 {
	const prime = (uint64(1) << 61) - 1
	hi, lo := mul64(a, b)
	// reduce 122-bit product modulo 2^61-1 using the shift-and-add trick.
	lo61 := lo & prime
	rest := (lo >> 61) | (hi << 3)
	r := lo61 + rest
	if r >= prime {
		r -= prime
	}
	return r
}

func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = (1 << 32) - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	lo = aLo * bLo
	mid1 := aHi * bLo
	mid2 := aLo * bHi
	hi = aHi * bHi

	carry := (lo >> 32) + (mid1 & mask32) + (mid2 & mask32)
	lo = (lo & mask32) | (carry << 32)
	hi += (mid1 >> 32) + (mid2 >> 32) + (carry >> 32)
	return hi, lo
}

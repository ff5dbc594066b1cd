package keys

import (
	"crypto/hmac"
	"hash"
	"math/big"
)

// deterministicK implements RFC 6979 §3.2: derivation of a deterministic
// per-signature nonce k from a private scalar x, a group order q and a
// message digest h1, using HMAC with the given hash constructor. DSA and
// ECDSA signing both call this instead of drawing k from a random source,
// so that repeated signatures over the same message are reproducible and
// never leak via nonce reuse/bias.
func deterministicK(newHash func() hash.Hash, q, x *big.Int, h1 []byte) *big.Int {
	qlen := q.BitLen()
	rolen := (qlen + 7) / 8

	hlen := newHash().Size()
	v := bytesRepeat(0x01, hlen)
	k := bytesRepeat(0x00, hlen)

	xBytes := int2octets(x, rolen)
	h1Bytes := bits2octets(h1, q, qlen, rolen)

	k = hmacSum(newHash, k, concat(v, []byte{0x00}, xBytes, h1Bytes))
	v = hmacSum(newHash, k, v)
	k = hmacSum(newHash, k, concat(v, []byte{0x01}, xBytes, h1Bytes))
	v = hmacSum(newHash, k, v)

	for {
		var t []byte
		for len(t) < rolen {
			v = hmacSum(newHash, k, v)
			t = append(t, v...)
		}
		candidate := bits2int(t, qlen)
		if candidate.Sign() > 0 && candidate.Cmp(q) < 0 {
			return candidate
		}
		k = hmacSum(newHash, k, concat(v, []byte{0x00}))
		v = hmacSum(newHash, k, v)
	}
}

func hmacSum(newHash func() hash.Hash, key, data []byte) []byte {
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func concat(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// bits2int converts a bit string (here, a byte string treated as the
// big-endian bit string of its full length) to an integer, truncating to
// qlen bits per RFC 6979 §2.3.2.
func bits2int(b []byte, qlen int) *big.Int {
	v := new(big.Int).SetBytes(b)
	blen := len(b) * 8
	if blen > qlen {
		v.Rsh(v, uint(blen-qlen))
	}
	return v
}

// int2octets is RFC 6979 §2.3.3: encode x as a fixed-length, big-endian
// byte string of rolen bytes.
func int2octets(x *big.Int, rolen int) []byte {
	b := x.Bytes()
	if len(b) >= rolen {
		return b[len(b)-rolen:]
	}
	out := make([]byte, rolen)
	copy(out[rolen-len(b):], b)
	return out
}

// bits2octets is RFC 6979 §2.3.4: bits2int the digest, reduce mod q if
// the result is >= q, then int2octets the remainder.
func bits2octets(h1 []byte, q *big.Int, qlen, rolen int) []byte {
	z1 := bits2int(h1, qlen)
	if z1.Cmp(q) >= 0 {
		z1 = new(big.Int).Sub(z1, q)
	}
	return int2octets(z1, rolen)
}

package ssh

import (
	"errors"

	"golang.org/x/crypto/curve25519"
)

// curve25519ScalarBaseMultImpl and curve25519ScalarMultImpl isolate the
// golang.org/x/crypto/curve25519 calls used by the curve25519-sha256 key
// exchange method (RFC 8731) in their own file, matching how kex.go treats
// each KEX method's elliptic backend as a pluggable unit.
func curve25519ScalarBaseMultImpl(dst, priv *[32]byte) {
	curve25519.ScalarBaseMult(dst, priv)
}

func curve25519ScalarMultImpl(dst, priv, peer *[32]byte) error {
	curve25519.ScalarMult(dst, priv, peer)
	zero := true
	for _, b := range dst {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return errors.New("ssh: curve25519 produced an all-zero shared secret")
	}
	return nil
}

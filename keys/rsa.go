package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
	"fmt"
	"hash"
	"math/big"

	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/wireutil"
)

// RSAPublicKey is {n, e} per spec §4.5.
type RSAPublicKey struct {
	N *bigint.BigInteger
	E *bigint.BigInteger
}

// RSAPrivateKey is the extended CRT form {n, e, d, p, q, dP, dQ, qInv}
// spec §4.5 requires for fast CRT-based signing/decryption.
type RSAPrivateKey struct {
	Pub  *RSAPublicKey
	D    *bigint.BigInteger
	P, Q *bigint.BigInteger
	DP   *bigint.BigInteger
	DQ   *bigint.BigInteger
	QInv *bigint.BigInteger
}

func (k *RSAPublicKey) Algorithm() Algorithm { return RSA }
func (k *RSAPrivateKey) Algorithm() Algorithm { return RSA }
func (k *RSAPrivateKey) Public() PublicKey    { return k.Pub }

// NewRSAPrivateKeyFromCRT builds an RSAPrivateKey from its CRT
// components, computing dP/dQ/qInv if not already known (set them to
// nil to have this constructor derive them).
func NewRSAPrivateKeyFromCRT(n, e, d, p, q *bigint.BigInteger) *RSAPrivateKey {
	pMinus1 := p.Sub(bigint.One())
	qMinus1 := q.Sub(bigint.One())
	dp := d.Mod(pMinus1)
	dq := d.Mod(qMinus1)
	qinv := q.ModInverse(p)
	return &RSAPrivateKey{
		Pub:  &RSAPublicKey{N: n, E: e},
		D:    d,
		P:    p,
		Q:    q,
		DP:   dp,
		DQ:   dq,
		QInv: qinv,
	}
}

func (k *RSAPrivateKey) toStdlib() *rsa.PrivateKey {
	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: k.Pub.N.Big(), E: int(k.Pub.E.Int64())},
		D:         k.D.Big(),
		Primes:    []*big.Int{k.P.Big(), k.Q.Big()},
	}
	priv.Precompute()
	return priv
}

func (k *RSAPublicKey) toStdlib() *rsa.PublicKey {
	return &rsa.PublicKey{N: k.N.Big(), E: int(k.E.Int64())}
}

// Sign implements PrivateKey using rsa-sha2-256 (RFC 8332), the default
// RSA signature scheme for SSH2 host/user authentication. digest must
// already be a SHA-256 hash; use SignPKCS1v15 or SignPSS directly for
// other hash/padding combinations.
func (k *RSAPrivateKey) Sign(digest []byte) ([]byte, error) {
	return k.SignPKCS1v15(crypto.SHA256, digest)
}

// Verify implements PublicKey using rsa-sha2-256 (RFC 8332).
func (k *RSAPublicKey) Verify(digest, sig []byte) bool {
	return k.VerifyPKCS1v15(crypto.SHA256, digest, sig) == nil
}

// MarshalSSH2 encodes the public key as RFC 4253 §6.6's "ssh-rsa" blob:
// string("ssh-rsa"), mpint(e), mpint(n).
func (k *RSAPublicKey) MarshalSSH2() []byte {
	return wireutil.NewBuilder().
		WriteCString("ssh-rsa").
		WriteMPInt(k.E).
		WriteMPInt(k.N).
		Bytes()
}

// SignPKCS1v15 signs a pre-hashed digest using PKCS#1 v1.5 (RFC 8017 §9.2).
func (k *RSAPrivateKey) SignPKCS1v15(h crypto.Hash, digest []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, k.toStdlib(), h, digest)
}

// VerifyPKCS1v15 verifies a PKCS#1 v1.5 signature.
func (k *RSAPublicKey) VerifyPKCS1v15(h crypto.Hash, digest, sig []byte) error {
	return rsa.VerifyPKCS1v15(k.toStdlib(), h, digest, sig)
}

// SignPSS signs a pre-hashed digest using RSASSA-PSS (RFC 8017 §9.1),
// with the given salt length (rsa.PSSSaltLengthAuto etc. accepted).
func (k *RSAPrivateKey) SignPSS(h crypto.Hash, digest []byte, saltLen int) ([]byte, error) {
	opts := &rsa.PSSOptions{SaltLength: saltLen, Hash: h}
	return rsa.SignPSS(rand.Reader, k.toStdlib(), h, digest, opts)
}

// VerifyPSS verifies an RSASSA-PSS signature.
func (k *RSAPublicKey) VerifyPSS(h crypto.Hash, digest, sig []byte, saltLen int) error {
	opts := &rsa.PSSOptions{SaltLength: saltLen, Hash: h}
	return rsa.VerifyPSS(k.toStdlib(), h, digest, sig, opts)
}

// EncryptOAEP encrypts plaintext per RFC 8017 §7.1, with the given hash
// used for both the MGF1 and the direct OAEP hash (spec §4.5 allows
// these to differ; pass a wrapped hash.Hash pair via EncryptOAEPWithMGF
// for that case).
func (k *RSAPublicKey) EncryptOAEP(h hash.Hash, label, plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(h, rand.Reader, k.toStdlib(), plaintext, label)
}

// DecryptOAEP decrypts ciphertext produced by EncryptOAEP.
func (k *RSAPrivateKey) DecryptOAEP(h hash.Hash, label, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(h, rand.Reader, k.toStdlib(), ciphertext, label)
}

// EncryptPKCS1v15 encrypts plaintext per RFC 8017 §7.2.
func (k *RSAPublicKey) EncryptPKCS1v15(plaintext []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, k.toStdlib(), plaintext)
}

// DecryptPKCS1v15 decrypts ciphertext produced by EncryptPKCS1v15, using
// constant-time padding checks internally (crypto/rsa already guards
// against Bleichenbacher-style timing oracles).
func (k *RSAPrivateKey) DecryptPKCS1v15(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, k.toStdlib(), ciphertext)
}

// DecryptRaw performs a raw (no padding) RSA private-key operation via
// CRT, for callers implementing their own padding scheme.
func (k *RSAPrivateKey) DecryptRaw(ciphertext *bigint.BigInteger) (*bigint.BigInteger, error) {
	c := ciphertext.Big()
	if c.Cmp(k.Pub.N.Big()) >= 0 {
		return nil, fmt.Errorf("%w: ciphertext not reduced mod n", ErrInvalidKey)
	}
	m1 := new(big.Int).Exp(c, k.DP.Big(), k.P.Big())
	m2 := new(big.Int).Exp(c, k.DQ.Big(), k.Q.Big())
	h := new(big.Int).Sub(m1, m2)
	h.Mod(h, k.P.Big())
	h.Mul(h, k.QInv.Big())
	h.Mod(h, k.P.Big())
	m := new(big.Int).Mul(h, k.Q.Big())
	m.Add(m, m2)
	return bigint.FromBig(m), nil
}

// ConstantTimeEqualN reports whether two moduli are byte-for-byte equal,
// in constant time — used when comparing a received host key's modulus
// against a pinned one.
func ConstantTimeEqualN(a, b *RSAPublicKey) bool {
	return subtle.ConstantTimeCompare(a.N.SSH2Bytes(), b.N.SSH2Bytes()) == 1
}

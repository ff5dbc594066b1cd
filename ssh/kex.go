package ssh

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/wireutil"
)

// kexAlgorithms lists the key-exchange methods gossh offers, in client
// preference order (spec §4.1: "at minimum diffie-hellman-group*,
// diffie-hellman-group-exchange-*, curve25519-sha256, ecdh-sha2-nistp*").
var kexAlgorithms = []string{
	"curve25519-sha256",
	"curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256",
	"ecdh-sha2-nistp384",
	"ecdh-sha2-nistp521",
	"diffie-hellman-group14-sha256",
	"diffie-hellman-group14-sha1",
	"diffie-hellman-group1-sha1",
}

var hostKeyAlgorithms = []string{
	"rsa-sha2-512",
	"rsa-sha2-256",
	"ssh-ed25519",
	"ecdsa-sha2-nistp256",
	"ecdsa-sha2-nistp384",
	"ecdsa-sha2-nistp521",
	"ssh-rsa",
	"ssh-dss",
}

// kexResult carries the shared secret and exchange hash material produced
// by a single key-exchange round, before host-key verification.
type kexResult struct {
	K         *bigint.BigInteger // shared secret, as an SSH2 "mpint"
	H         []byte             // exchange hash
	HostKey   []byte             // server public host key blob
	Signature []byte             // server's signature over H
	HashFunc  func() hash.Hash
}

// dhGroup holds the well-known RFC 3526 MODP group parameters used by the
// diffie-hellman-group14-* methods.
type dhGroup struct {
	p, g *bigint.BigInteger
}

// group14 is the 2048-bit MODP group from RFC 3526 §3.
var group14 = func() dhGroup {
	p, err := bigint.FromString(
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD"+
			"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519"+
			"B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7"+
			"EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F"+
			"24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C5"+
			"5D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9E"+
			"D529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF",
		16)
	if err != nil {
		panic("ssh: invalid group14 prime literal: " + err.Error())
	}
	return dhGroup{p: p, g: bigint.New(2)}
}()

// kexNegotiated records the algorithm negotiated for each KEXINIT category,
// exposed via Client.NegotiatedAlgorithms for spec §4.1's
// "getAlgorithmsNegotiated".
type kexNegotiated struct {
	Kex             string
	HostKey         string
	CipherC2S       string
	CipherS2C       string
	MACC2S          string
	MACS2C          string
	CompressionC2S  string
	CompressionS2C  string
}

// negotiate picks, for each category, the first entry in clientPrefs also
// present in serverList -- the RFC 4253 §7.1 client-preference rule.
func negotiate(clientPrefs, serverList []string) (string, error) {
	serverSet := make(map[string]bool, len(serverList))
	for _, s := range serverList {
		serverSet[s] = true
	}
	for _, c := range clientPrefs {
		if serverSet[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("ssh: no matching algorithm in %v / %v", clientPrefs, serverList)
}

// kexHashFunc resolves a kex method name to its exchange-hash function,
// per RFC 4253/5656/8731.
func kexHashFunc(method string) func() hash.Hash {
	switch method {
	case "diffie-hellman-group14-sha256", "ecdh-sha2-nistp256", "curve25519-sha256", "curve25519-sha256@libssh.org":
		return sha256.New
	case "ecdh-sha2-nistp384":
		return sha512.New384
	case "ecdh-sha2-nistp521":
		return sha512.New
	default:
		return sha256.New
	}
}

// curve25519Exchange runs the curve25519-sha256 method (RFC 8731): each
// side sends its Curve25519 public key as an SSH2 string; the shared
// secret is interpreted as a big-endian mpint per RFC 8731 §3.
type curve25519Exchange struct{}

func (curve25519Exchange) client(send func([]byte) error, recv func() ([]byte, error)) (shared []byte, clientPub, serverPub []byte, err error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, nil, nil, err
	}
	// clamp per RFC 7748 (x/crypto/curve25519.X25519 also clamps internally).
	pub, err := curve25519ScalarBaseMult(priv)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := send(pub[:]); err != nil {
		return nil, nil, nil, err
	}
	serverPub, err = recv()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(serverPub) != 32 {
		return nil, nil, nil, fmt.Errorf("ssh: bad curve25519 server public key length %d", len(serverPub))
	}
	secret, err := curve25519ScalarMult(priv, serverPub)
	if err != nil {
		return nil, nil, nil, err
	}
	return secret, pub[:], serverPub, nil
}

// ecdhExchange runs ecdh-sha2-nistp{256,384,521} (RFC 5656 §4).
type ecdhExchange struct {
	curve ecdh.Curve
}

func (e ecdhExchange) client(send func([]byte) error, recv func() ([]byte, error)) (shared, clientPub, serverPub []byte, err error) {
	priv, err := e.curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, nil, err
	}
	pub := priv.PublicKey().Bytes()
	if err := send(pub); err != nil {
		return nil, nil, nil, err
	}
	serverPub, err = recv()
	if err != nil {
		return nil, nil, nil, err
	}
	peer, err := e.curve.NewPublicKey(serverPub)
	if err != nil {
		return nil, nil, nil, err
	}
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, nil, nil, err
	}
	return secret, pub, serverPub, nil
}

func curveForKexMethod(method string) ecdh.Curve {
	switch method {
	case "ecdh-sha2-nistp256":
		return ecdh.P256()
	case "ecdh-sha2-nistp384":
		return ecdh.P384()
	case "ecdh-sha2-nistp521":
		return ecdh.P521()
	default:
		return nil
	}
}

// dhGroupFor resolves a diffie-hellman-group* method to its MODP group.
func dhGroupFor(method string) (dhGroup, bool) {
	switch method {
	case "diffie-hellman-group14-sha256", "diffie-hellman-group14-sha1":
		return group14, true
	default:
		return dhGroup{}, false
	}
}

// dhClient runs a classic finite-field Diffie-Hellman exchange (RFC 4253
// §8), computing x/e locally and f/K against the group via bigint.
func dhClient(g dhGroup, send func(*bigint.BigInteger) error, recv func() (*bigint.BigInteger, error)) (k *bigint.BigInteger, e *bigint.BigInteger, f *bigint.BigInteger, err error) {
	x, err := bigint.RandomBits(256)
	if err != nil {
		return nil, nil, nil, err
	}
	e = g.g.ModPow(x, g.p)
	if err := send(e); err != nil {
		return nil, nil, nil, err
	}
	f, err = recv()
	if err != nil {
		return nil, nil, nil, err
	}
	k = f.ModPow(x, g.p)
	return k, e, f, nil
}

// deriveKeys implements RFC 4253 §7.2's key-derivation loop:
// K1 = HASH(K || H || X || session_id); K2 = HASH(K || H || K1); ...
// extended until at least n bytes are available.
func deriveKeys(hashFn func() hash.Hash, k *bigint.BigInteger, h []byte, sessionID []byte) func(letter byte, n int) []byte {
	kBytes := wireutil.NewBuilder().WriteMPInt(k).Bytes()
	return func(letter byte, n int) []byte {
		hf := hashFn()
		hf.Write(kBytes)
		hf.Write(h)
		hf.Write([]byte{letter})
		hf.Write(sessionID)
		out := hf.Sum(nil)
		for len(out) < n {
			hf2 := hashFn()
			hf2.Write(kBytes)
			hf2.Write(h)
			hf2.Write(out)
			out = append(out, hf2.Sum(nil)...)
		}
		return out[:n]
	}
}

// curve25519ScalarBaseMult and curve25519ScalarMult wrap
// golang.org/x/crypto/curve25519, the pack's Curve25519 implementation
// (the same module already required for keys/ed25519.go's sibling curve).
func curve25519ScalarBaseMult(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	curve25519ScalarBaseMultImpl(&pub, &priv)
	return pub, nil
}

func curve25519ScalarMult(priv [32]byte, peer []byte) ([]byte, error) {
	var out, in [32]byte
	copy(in[:], peer)
	if err := curve25519ScalarMultImpl(&out, &priv, &in); err != nil {
		return nil, err
	}
	return out[:], nil
}

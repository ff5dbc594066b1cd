package ssh

import (
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/keys"
	"github.com/postalsys/gossh/wireutil"
)

// parseSSH2PublicKeyBlob decodes an RFC 4253 §6.6 / RFC 5656 / RFC 8709
// public key blob into a keys.PublicKey, the inverse of this pack's
// MarshalSSH2 methods.
func parseSSH2PublicKeyBlob(blob []byte) (keys.PublicKey, error) {
	buf := wireutil.NewBuffer(blob)
	name, err := buf.ReadCString()
	if err != nil {
		return nil, err
	}
	switch name {
	case "ssh-rsa":
		e, err := buf.ReadMPInt()
		if err != nil {
			return nil, err
		}
		n, err := buf.ReadMPInt()
		if err != nil {
			return nil, err
		}
		return &keys.RSAPublicKey{N: n, E: e}, nil

	case "ssh-dss":
		p, err := buf.ReadMPInt()
		if err != nil {
			return nil, err
		}
		q, err := buf.ReadMPInt()
		if err != nil {
			return nil, err
		}
		g, err := buf.ReadMPInt()
		if err != nil {
			return nil, err
		}
		y, err := buf.ReadMPInt()
		if err != nil {
			return nil, err
		}
		return &keys.DSAPublicKey{Params: keys.DSAParameters{P: p, Q: q, G: g}, Y: y}, nil

	case "ecdsa-sha2-nistp256", "ecdsa-sha2-nistp384", "ecdsa-sha2-nistp521":
		curveID, err := buf.ReadCString()
		if err != nil {
			return nil, err
		}
		q, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		x, y, err := unmarshalECPoint(curveID, q)
		if err != nil {
			return nil, err
		}
		return &keys.ECPublicKey{Curve: keys.CurveName(curveID), X: x, Y: y}, nil

	case "ssh-ed25519":
		raw, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		pub := &keys.Ed25519PublicKey{Raw: raw}
		if err := pub.Validate(); err != nil {
			return nil, fmt.Errorf("ssh: %w", err)
		}
		return pub, nil

	case "ssh-ed448":
		raw, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		return &keys.Ed448PublicKey{Raw: raw}, nil

	default:
		return nil, fmt.Errorf("ssh: unsupported host key algorithm %q", name)
	}
}

// unmarshalECPoint decodes an RFC 5656 §3.1 uncompressed point (0x04 ||
// X || Y) for a named nistpNNN curve.
func unmarshalECPoint(curveID string, q []byte) (x, y *bigint.BigInteger, err error) {
	curve, ok := ellipticCurveByID(curveID)
	if !ok {
		return nil, nil, fmt.Errorf("ssh: unsupported EC curve %q", curveID)
	}
	xBig, yBig := elliptic.Unmarshal(curve, q)
	if xBig == nil {
		return nil, nil, fmt.Errorf("ssh: invalid EC point for curve %q", curveID)
	}
	return bigint.FromBig(xBig), bigint.FromBig(yBig), nil
}

// ellipticCurveByID resolves an SSH2 curve identifier ("nistp256", ...)
// to its stdlib elliptic.Curve for point decoding only; signature
// verification itself goes through keys.ECPublicKey.Verify.
func ellipticCurveByID(id string) (elliptic.Curve, bool) {
	switch id {
	case "nistp256":
		return elliptic.P256(), true
	case "nistp384":
		return elliptic.P384(), true
	case "nistp521":
		return elliptic.P521(), true
	default:
		return nil, false
	}
}

// sigHashFor picks the hash function an SSH2 signature algorithm name
// signs over (RFC 8332 §3 for rsa-sha2-*, RFC 5656 §6.2.1 for ecdsa-sha2-*,
// FIPS 186-4 for ssh-dss's historical SHA-1). Ed25519/Ed448 sign the raw
// message and have no associated hash (nil return).
func sigHashFor(sigAlg string) func() hash.Hash {
	switch sigAlg {
	case "rsa-sha2-512":
		return sha512.New
	case "rsa-sha2-256", "ssh-rsa":
		return sha256.New
	case "ssh-dss":
		return sha1.New
	case "ecdsa-sha2-nistp256":
		return sha256.New
	case "ecdsa-sha2-nistp384":
		return sha512.New384
	case "ecdsa-sha2-nistp521":
		return sha512.New
	default:
		return nil
	}
}

// parseSSH2SignatureBlob decodes an RFC 4253 §6.6 signature blob into its
// algorithm name and raw (algorithm-native) signature bytes.
func parseSSH2SignatureBlob(blob []byte) (alg string, raw []byte, err error) {
	buf := wireutil.NewBuffer(blob)
	alg, err = buf.ReadCString()
	if err != nil {
		return "", nil, err
	}
	contents, err := buf.ReadString()
	if err != nil {
		return "", nil, err
	}
	switch alg {
	case "ssh-dss":
		raw, err = rsFromSSH2MPInts(contents)
	case "ecdsa-sha2-nistp256", "ecdsa-sha2-nistp384", "ecdsa-sha2-nistp521":
		raw, err = rsFromECDSABlob(contents)
	default:
		raw = contents
	}
	return alg, raw, err
}

// rsFromSSH2MPInts decodes ssh-dss's "mpint(r) || mpint(s)" signature
// contents into the fixed-width r||s form keys.DSAPublicKey.Verify expects.
func rsFromSSH2MPInts(contents []byte) ([]byte, error) {
	buf := wireutil.NewBuffer(contents)
	r, err := buf.ReadMPInt()
	if err != nil {
		return nil, err
	}
	s, err := buf.ReadMPInt()
	if err != nil {
		return nil, err
	}
	width := 20
	out := make([]byte, 2*width)
	rb, sb := r.Big().Bytes(), s.Big().Bytes()
	copy(out[width-len(rb):width], rb)
	copy(out[2*width-len(sb):2*width], sb)
	return out, nil
}

// rsFromECDSABlob decodes ecdsa-sha2-*'s SEQUENCE-free SSH2 blob
// (RFC 5656 §3.1.2: mpint(r) || mpint(s) wrapped in one more "string")
// into fixed-width r||s.
func rsFromECDSABlob(sigContents []byte) ([]byte, error) {
	buf := wireutil.NewBuffer(sigContents)
	r, err := buf.ReadMPInt()
	if err != nil {
		return nil, err
	}
	s, err := buf.ReadMPInt()
	if err != nil {
		return nil, err
	}
	width := (max(r.Big().BitLen(), s.Big().BitLen()) + 7) / 8
	if w := (s.Big().BitLen() + 7) / 8; w > width {
		width = w
	}
	// Round up to the curve's native width based on magnitude of either
	// value is imprecise for small r/s; widen to the common NIST sizes.
	switch {
	case width <= 32:
		width = 32
	case width <= 48:
		width = 48
	default:
		width = 66
	}
	out := make([]byte, 2*width)
	rb, sb := r.Big().Bytes(), s.Big().Bytes()
	copy(out[width-len(rb):width], rb)
	copy(out[2*width-len(sb):2*width], sb)
	return out, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package keys

import (
	"fmt"
	"math/big"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/wireutil"
)

func init() {
	RegisterSignatureCodec(rawCodec{})
	RegisterSignatureCodec(p1363Codec{})
	RegisterSignatureCodec(asn1Codec{})
	RegisterSignatureCodec(ssh2Codec{})
}

// rsaSignatureWidth returns the fixed r/s half-width for a DSA/ECDSA
// algorithm's native raw (r||s) signature, or 0 for algorithms (RSA,
// EdDSA) whose raw form isn't an r||s pair.
func rsaSignatureWidth(alg Algorithm) int {
	switch alg {
	case DSA:
		return 20 // classic 160-bit q
	default:
		return 0
	}
}

// rawCodec is the identity codec: SigRaw is exactly PrivateKey.Sign's
// native output, so no conversion is needed.
type rawCodec struct{}

func (rawCodec) Format() SignatureFormat { return SigRaw }
func (rawCodec) Encode(alg Algorithm, raw []byte) ([]byte, error) { return raw, nil }
func (rawCodec) Decode(alg Algorithm, encoded []byte) ([]byte, error) { return encoded, nil }

// p1363Codec is the identity codec for DSA/ECDSA too: this package's
// native raw form for those algorithms already is the fixed-width r||s
// pair IEEE 1363 specifies. RSA and EdDSA signatures pass through
// unchanged, since IEEE-P1363 is only meaningfully distinct from "raw"
// for the r/s algorithms.
type p1363Codec struct{}

func (p1363Codec) Format() SignatureFormat { return SigIEEEP1363 }
func (p1363Codec) Encode(alg Algorithm, raw []byte) ([]byte, error) { return raw, nil }
func (p1363Codec) Decode(alg Algorithm, encoded []byte) ([]byte, error) { return encoded, nil }

// asn1Codec converts between the fixed-width r||s raw form and a DER
// SEQUENCE{r INTEGER, s INTEGER}, the form X.509/TLS/PKCS encode DSA and
// ECDSA signatures in.
type asn1Codec struct{}

func (asn1Codec) Format() SignatureFormat { return SigASN1 }

func (asn1Codec) Encode(alg Algorithm, raw []byte) ([]byte, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("keys: asn1 signature codec needs an even-length r||s raw signature")
	}
	half := len(raw) / 2
	r := new(big.Int).SetBytes(raw[:half])
	s := new(big.Int).SetBytes(raw[half:])
	return asn1go.EncodeSequence(asn1go.EncodeInteger(r), asn1go.EncodeInteger(s)), nil
}

func (asn1Codec) Decode(alg Algorithm, encoded []byte) ([]byte, error) {
	schema := asn1go.Seq("sig",
		asn1go.Leaf("r", asn1go.TypeInteger),
		asn1go.Leaf("s", asn1go.TypeInteger),
	)
	el, err := asn1go.Decode(encoded, schema, asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("keys: decoding asn1 signature: %w", err)
	}
	r := el.Child("r").AsInteger().Big()
	s := el.Child("s").AsInteger().Big()
	width := rsaSignatureWidth(alg)
	if width == 0 {
		width = (max(r.BitLen(), s.BitLen()) + 7) / 8
	}
	return encodeRS(r, s, width), nil
}

// ssh2Codec converts between the fixed-width r||s raw form and SSH2's
// wire signature blob: string(algo-name) || string(sig-contents), where
// sig-contents is mpint(r)||mpint(s) for DSA/ECDSA or the raw bytes for
// RSA/EdDSA (RFC 4253 §6.6, RFC 5656 §3.1.2, RFC 8709 §6).
type ssh2Codec struct{}

func (ssh2Codec) Format() SignatureFormat { return SigSSH2 }

func (ssh2Codec) Encode(alg Algorithm, raw []byte) ([]byte, error) {
	name, contents, err := ssh2SigNameAndContents(alg, raw)
	if err != nil {
		return nil, err
	}
	return wireutil.NewBuilder().WriteCString(name).WriteString(contents).Bytes(), nil
}

func (ssh2Codec) Decode(alg Algorithm, encoded []byte) ([]byte, error) {
	buf := wireutil.NewBuffer(encoded)
	if _, err := buf.ReadString(); err != nil { // algorithm name, discarded
		return nil, err
	}
	contents, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	switch alg {
	case DSA, EC:
		return contents, nil // mpint(r)||mpint(s), already digit-string-free raw
	default:
		return contents, nil
	}
}

func ssh2SigNameAndContents(alg Algorithm, raw []byte) (string, []byte, error) {
	switch alg {
	case RSA:
		return "rsa-sha2-256", raw, nil
	case Ed25519:
		return "ssh-ed25519", raw, nil
	case Ed448:
		return "ssh-ed448", raw, nil
	case DSA, EC:
		if len(raw)%2 != 0 {
			return "", nil, fmt.Errorf("keys: ssh2 signature codec needs an even-length r||s raw signature")
		}
		half := len(raw) / 2
		r := new(big.Int).SetBytes(raw[:half])
		s := new(big.Int).SetBytes(raw[half:])
		contents := wireutil.NewBuilder().
			WriteMPInt(bigint.FromBig(r)).
			WriteMPInt(bigint.FromBig(s)).
			Bytes()
		name := "ssh-dss"
		if alg == EC {
			name = "ecdsa-sha2-nistp256"
		}
		return name, contents, nil
	default:
		return "", nil, fmt.Errorf("%w: no SSH2 signature encoding for %s", ErrUnsupportedCurve, alg)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

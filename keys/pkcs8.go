package keys

import (
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	circled448 "github.com/cloudflare/circl/sign/ed448"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/bigint"
)

// pkcs8Plugin loads and saves PKCS#8 PrivateKeyInfo documents (RFC 5958),
// the "BEGIN PRIVATE KEY" PEM label. It is self-contained rather than
// calling into x509go's own PrivateKeyInfo decoder, since x509go already
// imports this package — wiring the other way would be a cycle. The
// schema and dispatch logic below is deliberately the same shape as
// x509go/pfx.go's parsePrivateKeyInfo, just operating on a standalone
// document instead of one extracted from inside a PKCS#12 SafeBag.
type pkcs8Plugin struct{}

func init() {
	RegisterFormat(pkcs8Plugin{})
}

func (pkcs8Plugin) Name() string { return "pkcs8" }

func (pkcs8Plugin) Sniff(data []byte) bool {
	label, _, err := asn1go.DecodePEM(data)
	if err == nil {
		return label == "PRIVATE KEY"
	}
	// Bare DER: a SEQUENCE whose first two children are an INTEGER
	// version and an AlgorithmIdentifier SEQUENCE, vs. PKCS#1's
	// SEQUENCE{version, modulus, ...} which starts with two INTEGERs.
	el, err := asn1go.Decode(data, privateKeyInfoSchema(), asn1go.DefaultLimits, false)
	return err == nil && el.Child("privateKeyAlgorithm") != nil
}

func (pkcs8Plugin) Load(data []byte, _ []byte) (*KeyPair, error) {
	der, err := asn1go.LoadDocument(data)
	if err != nil {
		return nil, err
	}
	el, err := asn1go.Decode(der, privateKeyInfoSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("decoding PrivateKeyInfo: %w", err)
	}
	priv, err := parsePKCS8PrivateKeyInfo(el)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Algorithm: priv.Algorithm(), Public: priv.Public(), Private: priv}, nil
}

func (pkcs8Plugin) Save(kp *KeyPair, _ []byte) ([]byte, error) {
	if kp.Private == nil {
		return nil, fmt.Errorf("keys: pkcs8: no private key to save")
	}
	var algOID string
	var params []byte
	var keyBody []byte

	switch priv := kp.Private.(type) {
	case *RSAPrivateKey:
		algOID = "1.2.840.113549.1.1.1"
		params = asn1go.EncodeNull()
		keyBody = encodeRSAPrivateKeyBody(priv)

	case *ECPrivateKey:
		dotted, ok := ecNamedCurveOIDsOut[priv.Curve]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no PKCS#8 namedCurve OID", ErrUnsupportedCurve, priv.Curve)
		}
		algOID = "1.2.840.10045.2.1"
		params = mustEncodeOIDDotted(dotted)
		keyBody = encodeECPrivateKeyBody(priv)

	case *Ed25519PrivateKey:
		algOID = "1.3.101.112"
		if len(priv.Raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
		}
		keyBody = asn1go.EncodeOctetString(priv.Raw[:ed25519.SeedSize])

	case *Ed448PrivateKey:
		algOID = "1.3.101.113"
		keyBody = asn1go.EncodeOctetString(priv.Raw)

	default:
		return nil, fmt.Errorf("keys: pkcs8: unsupported algorithm %s", kp.Algorithm)
	}

	algID := asn1go.EncodeSequence(mustEncodeOIDDotted(algOID), params)
	der := asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(0)),
		algID,
		asn1go.EncodeOctetString(keyBody),
	)
	return asn1go.EncodePEM("PRIVATE KEY", der), nil
}

// privateKeyInfoSchema is PKCS#8 PrivateKeyInfo ::= SEQUENCE { version
// INTEGER, privateKeyAlgorithm AlgorithmIdentifier, privateKey OCTET
// STRING, attributes [0] IMPLICIT SET OF Attribute OPTIONAL }.
func privateKeyInfoSchema() *asn1go.Node {
	return asn1go.Seq("privateKeyInfo",
		asn1go.Leaf("version", asn1go.TypeInteger),
		algorithmIdentifierSchema("privateKeyAlgorithm"),
		asn1go.Leaf("privateKey", asn1go.TypeOctetString),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.Leaf("attributes", asn1go.TypeAny))),
	)
}

func algorithmIdentifierSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("algorithm", asn1go.TypeObjectIdentifier),
		asn1go.Opt(asn1go.Leaf("parameters", asn1go.TypeAny)),
	)
}

// rsaPrivateKeySchema is PKCS#1 RSAPrivateKey ::= SEQUENCE { version,
// modulus, publicExponent, privateExponent, prime1, prime2, exponent1,
// exponent2, coefficient, otherPrimeInfos OPTIONAL }. Multi-prime RSA is
// accepted on decode but not supported: NewRSAPrivateKeyFromCRT only
// models the two-prime form.
func rsaPrivateKeySchema() *asn1go.Node {
	return asn1go.Seq("rsaPrivateKey",
		asn1go.Leaf("version", asn1go.TypeInteger),
		asn1go.Leaf("modulus", asn1go.TypeInteger),
		asn1go.Leaf("publicExponent", asn1go.TypeInteger),
		asn1go.Leaf("privateExponent", asn1go.TypeInteger),
		asn1go.Leaf("prime1", asn1go.TypeInteger),
		asn1go.Leaf("prime2", asn1go.TypeInteger),
		asn1go.Leaf("exponent1", asn1go.TypeInteger),
		asn1go.Leaf("exponent2", asn1go.TypeInteger),
		asn1go.Leaf("coefficient", asn1go.TypeInteger),
		asn1go.Opt(asn1go.Leaf("otherPrimeInfos", asn1go.TypeAny)),
	)
}

// ecPrivateKeySchema is SEC1 ECPrivateKey ::= SEQUENCE { version,
// privateKey OCTET STRING, parameters [0] EXPLICIT ANY OPTIONAL
// (ignored — namedCurve comes from the enclosing PrivateKeyInfo),
// publicKey [1] EXPLICIT BIT STRING OPTIONAL }.
func ecPrivateKeySchema() *asn1go.Node {
	return asn1go.Seq("ecPrivateKey",
		asn1go.Leaf("version", asn1go.TypeInteger),
		asn1go.Leaf("privateKey", asn1go.TypeOctetString),
		asn1go.Opt(asn1go.ExplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.Leaf("parameters", asn1go.TypeAny))),
		asn1go.Opt(asn1go.ExplicitTag(asn1go.ClassContextSpecific, 1,
			asn1go.Leaf("publicKey", asn1go.TypeBitString))),
	)
}

// ecNamedCurveOIDsIn maps the X.962/SEC2 namedCurve OIDs a PrivateKeyInfo
// carries to this pack's CurveName. The reverse table drives Save.
var ecNamedCurveOIDsIn = map[string]CurveName{
	"1.2.840.10045.3.1.7": CurveNistP256,
	"1.3.132.0.34":        CurveNistP384,
	"1.3.132.0.35":        CurveNistP521,
	"1.3.132.0.10":        CurveSecp256k1,
}

var ecNamedCurveOIDsOut = map[CurveName]string{
	CurveNistP256:  "1.2.840.10045.3.1.7",
	CurveNistP384:  "1.3.132.0.34",
	CurveNistP521:  "1.3.132.0.35",
	CurveSecp256k1: "1.3.132.0.10",
}

// parsePKCS8PrivateKeyInfo decodes a privateKeyInfoSchema Element into
// this pack's PrivateKey, dispatching on privateKeyAlgorithm.
func parsePKCS8PrivateKeyInfo(el *asn1go.Element) (PrivateKey, error) {
	algEl := el.Child("privateKeyAlgorithm")
	keyOctets := el.Child("privateKey")
	if algEl == nil || keyOctets == nil || keyOctets.AsOctetString() == nil {
		return nil, fmt.Errorf("keys: pkcs8: malformed PrivateKeyInfo")
	}
	oidEl := algEl.Child("algorithm")
	if oidEl == nil || oidEl.AsObjectIdentifier() == nil {
		return nil, fmt.Errorf("keys: pkcs8: malformed AlgorithmIdentifier")
	}
	oid := oidEl.AsObjectIdentifier().String()
	raw := keyOctets.AsOctetString().Bytes

	switch oid {
	case "1.2.840.113549.1.1.1": // rsaEncryption
		rk, err := asn1go.Decode(raw, rsaPrivateKeySchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("keys: pkcs8: decoding RSAPrivateKey: %w", err)
		}
		n := bigint.FromBig(rk.Child("modulus").AsInteger().Big())
		e := bigint.FromBig(rk.Child("publicExponent").AsInteger().Big())
		d := bigint.FromBig(rk.Child("privateExponent").AsInteger().Big())
		p := bigint.FromBig(rk.Child("prime1").AsInteger().Big())
		q := bigint.FromBig(rk.Child("prime2").AsInteger().Big())
		return NewRSAPrivateKeyFromCRT(n, e, d, p, q), nil

	case "1.2.840.10045.2.1": // id-ecPublicKey
		paramsEl := algEl.Child("parameters")
		if paramsEl == nil {
			return nil, fmt.Errorf("keys: pkcs8: EC private key missing namedCurve parameters")
		}
		curveOID, err := parsePKCS8OIDElement(paramsEl)
		if err != nil {
			return nil, err
		}
		curveName, ok := ecNamedCurveOIDsIn[curveOID]
		if !ok {
			return nil, fmt.Errorf("keys: pkcs8: unsupported EC namedCurve OID %s", curveOID)
		}
		curve, err := namedCurve(curveName)
		if err != nil {
			return nil, err
		}
		ecKey, err := asn1go.Decode(raw, ecPrivateKeySchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("keys: pkcs8: decoding ECPrivateKey: %w", err)
		}
		dBytes := ecKey.Child("privateKey").AsOctetString().Bytes
		var x, y *big.Int
		if pubEl := ecKey.Child("publicKey"); pubEl != nil && pubEl.AsBitString() != nil {
			x, y = elliptic.Unmarshal(curve, pubEl.AsBitString().Bytes)
		}
		if x == nil {
			x, y = curve.ScalarBaseMult(dBytes)
		}
		return &ECPrivateKey{Curve: curveName, D: bigint.FromBytes(dBytes, false), X: bigint.FromBig(x), Y: bigint.FromBig(y)}, nil

	case "1.3.101.112": // id-Ed25519: CurvePrivateKey ::= OCTET STRING (32-byte seed)
		seedEl, err := asn1go.Decode(raw, asn1go.Leaf("seed", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("keys: pkcs8: decoding CurvePrivateKey: %w", err)
		}
		seed := seedEl.AsOctetString().Bytes
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
		}
		return &Ed25519PrivateKey{Raw: []byte(ed25519.NewKeyFromSeed(seed))}, nil

	case "1.3.101.113": // id-Ed448
		seedEl, err := asn1go.Decode(raw, asn1go.Leaf("seed", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("keys: pkcs8: decoding CurvePrivateKey: %w", err)
		}
		return &Ed448PrivateKey{Raw: []byte(circled448.NewKeyFromSeed(seedEl.AsOctetString().Bytes))}, nil

	default:
		return nil, fmt.Errorf("keys: pkcs8: unsupported private key algorithm OID %s", oid)
	}
}

func parsePKCS8OIDElement(el *asn1go.Element) (string, error) {
	n := asn1go.Leaf("oid", asn1go.TypeObjectIdentifier)
	decoded, err := asn1go.Decode(el.Raw, n, asn1go.DefaultLimits, false)
	if err != nil {
		return "", fmt.Errorf("keys: pkcs8: decoding namedCurve OID: %w", err)
	}
	return decoded.AsObjectIdentifier().String(), nil
}

func encodeRSAPrivateKeyBody(k *RSAPrivateKey) []byte {
	return asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(0)),
		asn1go.EncodeInteger(k.Pub.N.Big()),
		asn1go.EncodeInteger(k.Pub.E.Big()),
		asn1go.EncodeInteger(k.D.Big()),
		asn1go.EncodeInteger(k.P.Big()),
		asn1go.EncodeInteger(k.Q.Big()),
		asn1go.EncodeInteger(k.DP.Big()),
		asn1go.EncodeInteger(k.DQ.Big()),
		asn1go.EncodeInteger(k.QInv.Big()),
	)
}

func encodeECPrivateKeyBody(k *ECPrivateKey) []byte {
	curve, err := namedCurve(k.Curve)
	pub := []byte{}
	if err == nil {
		pub = elliptic.Marshal(curve, k.X.Big(), k.Y.Big())
	}
	return asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(1)),
		asn1go.EncodeOctetString(k.D.Big().Bytes()),
		asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 1, asn1go.EncodeBitString(&asn1go.BitString{Bytes: pub})),
	)
}

func mustEncodeOIDDotted(dotted string) []byte {
	parts := strings.Split(dotted, ".")
	arcs := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		arcs[i] = n
	}
	b, err := asn1go.EncodeOID(asn1go.NewObjectIdentifier(arcs...))
	if err != nil {
		panic(err)
	}
	return b
}

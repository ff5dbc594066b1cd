package x509go

import (
	"crypto/elliptic"
	"fmt"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/keys"
)

// ecNamedCurveOIDs maps the X.962/SEC2 namedCurve OIDs X.509 certificates
// carry in SubjectPublicKeyInfo.algorithm.parameters to this pack's
// keys.CurveName identifiers.
var ecNamedCurveOIDs = map[string]keys.CurveName{
	"1.2.840.10045.3.1.7": keys.CurveNistP256,
	"1.3.132.0.34":        keys.CurveNistP384,
	"1.3.132.0.35":        keys.CurveNistP521,
	"1.3.132.0.10":        keys.CurveSecp256k1,
	"1.3.36.3.3.2.8.1.1.7": keys.CurveBrainpoolP256r1,
	"1.3.36.3.3.2.8.1.1.11": keys.CurveBrainpoolP384r1,
	"1.3.36.3.3.2.8.1.1.13": keys.CurveBrainpoolP512r1,
}

var curveStdlib = map[keys.CurveName]elliptic.Curve{
	keys.CurveNistP256: elliptic.P256(),
	keys.CurveNistP384: elliptic.P384(),
	keys.CurveNistP521: elliptic.P521(),
}

// parseSubjectPublicKeyInfo decodes a subjectPublicKeyInfoSchema Element
// into this pack's keys.PublicKey, dispatching on the algorithm OID per
// RFC 3279 / RFC 8410.
func parseSubjectPublicKeyInfo(el *asn1go.Element) (keys.PublicKey, error) {
	algEl := el.Child("algorithm")
	keyBits := el.Child("subjectPublicKey")
	if algEl == nil || keyBits == nil || keyBits.AsBitString() == nil {
		return nil, fmt.Errorf("x509go: malformed SubjectPublicKeyInfo")
	}
	oidEl := algEl.Child("algorithm")
	if oidEl == nil || oidEl.AsObjectIdentifier() == nil {
		return nil, fmt.Errorf("x509go: malformed AlgorithmIdentifier")
	}
	oid := oidEl.AsObjectIdentifier().String()
	raw := keyBits.AsBitString().Bytes

	switch oid {
	case "1.2.840.113549.1.1.1": // rsaEncryption
		return parseRSAPublicKey(raw)
	case "1.2.840.10045.2.1": // id-ecPublicKey
		paramsEl := algEl.Child("parameters")
		if paramsEl == nil {
			return nil, fmt.Errorf("x509go: EC key missing namedCurve parameters")
		}
		curveOID, err := parseOIDElement(paramsEl)
		if err != nil {
			return nil, err
		}
		curveName, ok := ecNamedCurveOIDs[curveOID]
		if !ok {
			return nil, fmt.Errorf("x509go: unsupported EC namedCurve OID %s", curveOID)
		}
		curve, ok := curveStdlib[curveName]
		if !ok {
			return nil, fmt.Errorf("x509go: no point-decode support for curve %s", curveName)
		}
		x, y := elliptic.Unmarshal(curve, raw)
		if x == nil {
			return nil, fmt.Errorf("x509go: invalid EC point")
		}
		return &keys.ECPublicKey{Curve: curveName, X: bigint.FromBig(x), Y: bigint.FromBig(y)}, nil
	case "1.2.840.10040.4.1": // id-dsa
		paramsEl := algEl.Child("parameters")
		p, q, g, err := parseDSAParams(paramsEl)
		if err != nil {
			return nil, err
		}
		y, err := parseASN1Integer(raw)
		if err != nil {
			return nil, err
		}
		return &keys.DSAPublicKey{Params: keys.DSAParameters{P: p, Q: q, G: g}, Y: y}, nil
	case "1.3.101.112": // id-Ed25519
		return &keys.Ed25519PublicKey{Raw: raw}, nil
	case "1.3.101.113": // id-Ed448
		return &keys.Ed448PublicKey{Raw: raw}, nil
	default:
		return nil, fmt.Errorf("x509go: unsupported public key algorithm OID %s", oid)
	}
}

// parseOIDElement decodes a bare OID that was captured into an ANY node
// (AlgorithmIdentifier.parameters), by re-parsing its raw TLV bytes.
func parseOIDElement(el *asn1go.Element) (string, error) {
	n := asn1go.Leaf("oid", asn1go.TypeObjectIdentifier)
	decoded, err := asn1go.Decode(el.Raw, n, asn1go.DefaultLimits, false)
	if err != nil {
		return "", fmt.Errorf("x509go: decoding namedCurve OID: %w", err)
	}
	return decoded.AsObjectIdentifier().String(), nil
}

// parseASN1Integer decodes a raw DER INTEGER (used for DSA's Y, which sits
// directly in the BIT STRING payload) into a *bigint.BigInteger.
func parseASN1Integer(der []byte) (*bigint.BigInteger, error) {
	n := asn1go.Leaf("y", asn1go.TypeInteger)
	el, err := asn1go.Decode(der, n, asn1go.DefaultLimits, false)
	if err != nil {
		return nil, err
	}
	return bigint.FromBig(el.AsInteger().Big()), nil
}

// dsaParamsSchema is Dss-Parms ::= SEQUENCE { p INTEGER, q INTEGER, g INTEGER }.
func dsaParamsSchema() *asn1go.Node {
	return asn1go.Seq("dssParms",
		asn1go.Leaf("p", asn1go.TypeInteger),
		asn1go.Leaf("q", asn1go.TypeInteger),
		asn1go.Leaf("g", asn1go.TypeInteger),
	)
}

func parseDSAParams(paramsEl *asn1go.Element) (p, q, g *bigint.BigInteger, err error) {
	if paramsEl == nil {
		return nil, nil, nil, fmt.Errorf("x509go: DSA key missing Dss-Parms")
	}
	decoded, err := asn1go.Decode(paramsEl.Raw, dsaParamsSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("x509go: decoding Dss-Parms: %w", err)
	}
	p = bigint.FromBig(decoded.Child("p").AsInteger().Big())
	q = bigint.FromBig(decoded.Child("q").AsInteger().Big())
	g = bigint.FromBig(decoded.Child("g").AsInteger().Big())
	return p, q, g, nil
}

// rsaPublicKeySchema is PKCS#1 RSAPublicKey ::= SEQUENCE { modulus INTEGER,
// publicExponent INTEGER }, the structure carried inside
// SubjectPublicKeyInfo.subjectPublicKey for rsaEncryption keys.
func rsaPublicKeySchema() *asn1go.Node {
	return asn1go.Seq("rsaPublicKey",
		asn1go.Leaf("modulus", asn1go.TypeInteger),
		asn1go.Leaf("publicExponent", asn1go.TypeInteger),
	)
}

func parseRSAPublicKey(der []byte) (*keys.RSAPublicKey, error) {
	el, err := asn1go.Decode(der, rsaPublicKeySchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding RSAPublicKey: %w", err)
	}
	n := bigint.FromBig(el.Child("modulus").AsInteger().Big())
	e := bigint.FromBig(el.Child("publicExponent").AsInteger().Big())
	return &keys.RSAPublicKey{N: n, E: e}, nil
}

// encodeRSAPublicKey DER-encodes an RSAPublicKey, used by x509go's own
// certificate/CSR builders (certgen.go) when minting test fixtures.
func encodeRSAPublicKey(pub *keys.RSAPublicKey) []byte {
	return asn1go.EncodeSequence(
		asn1go.EncodeInteger(pub.N.Big()),
		asn1go.EncodeInteger(pub.E.Big()),
	)
}

package x509go

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/keys"
)

// CertOptions configures GenerateCert, mirroring the option-struct idiom
// the mesh agent's own cert helper uses for test-fixture generation.
type CertOptions struct {
	CommonName  string
	Organization string
	ValidFor    time.Duration // default 1 year if zero
	DNSNames    []string
	IPAddresses []net.IP

	IsCA       bool
	MaxPathLen int // only meaningful when IsCA

	// Parent signs the new certificate; nil produces a self-signed cert.
	Parent    *Certificate
	ParentKey *keys.ECPrivateKey
}

// GeneratedCert bundles a freshly minted Certificate with the key that
// signs it, for use as a test fixture.
type GeneratedCert struct {
	Certificate *Certificate
	PrivateKey  *keys.ECPrivateKey
	DER         []byte
	PEM         []byte
}

var ecP256CurveOID = asn1go.MustOID("id-ecPublicKey")

const p256NamedCurveOID = "1.2.840.10045.3.1.7"

// GenerateCert mints a DER-encoded X.509v3 certificate entirely over this
// package's own schema/encode primitives (no crypto/x509 involved),
// signs it with a fresh P-256 key, and parses the result back through
// LoadCertificate so the returned Certificate exercises the normal decode
// path. Intended for tests that need a real, well-formed chain.
func GenerateCert(opts CertOptions) (*GeneratedCert, error) {
	if opts.CommonName == "" {
		return nil, fmt.Errorf("x509go: GenerateCert requires a CommonName")
	}
	if opts.ValidFor == 0 {
		opts.ValidFor = 365 * 24 * time.Hour
	}

	d, x, y, err := elliptic.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("x509go: generating EC key: %w", err)
	}
	priv := &keys.ECPrivateKey{
		Curve: keys.CurveNistP256,
		D:     bigint.FromBytes(d, false),
		X:     bigint.FromBig(x),
		Y:     bigint.FromBig(y),
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("x509go: generating serial: %w", err)
	}

	now := time.Now().UTC()
	notAfter := now.Add(opts.ValidFor)

	signer := priv
	issuerName := rdnName(opts.CommonName, opts.Organization)
	if opts.Parent != nil {
		if opts.ParentKey == nil {
			return nil, fmt.Errorf("x509go: Parent set without ParentKey")
		}
		signer = opts.ParentKey
		issuerName = opts.Parent.Subject
	}

	tbs := encodeTBSCertificate(tbsCertParams{
		serial:      serial,
		issuer:      issuerName,
		subject:     rdnName(opts.CommonName, opts.Organization),
		notBefore:   now,
		notAfter:    notAfter,
		pub:         priv.Public().(*keys.ECPublicKey),
		isCA:        opts.IsCA,
		maxPathLen:  opts.MaxPathLen,
		dnsNames:    opts.DNSNames,
		ipAddresses: opts.IPAddresses,
	})

	digest := sha256.Sum256(tbs)
	rawSig, err := signer.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("x509go: signing certificate: %w", err)
	}
	codec, ok := keys.SignatureCodecFor(keys.SigASN1)
	if !ok {
		return nil, fmt.Errorf("x509go: no ASN.1 signature codec registered")
	}
	derSig, err := codec.Encode(keys.EC, rawSig)
	if err != nil {
		return nil, fmt.Errorf("x509go: encoding signature: %w", err)
	}

	sigAlgOID, _ := asn1go.OIDByName("ecdsaWithSHA256")
	der := asn1go.EncodeSequence(
		tbs,
		algorithmIdentifierDER(sigAlgOID, nil),
		asn1go.EncodeBitString(&asn1go.BitString{Bytes: derSig}),
	)

	cert, err := LoadCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("x509go: parsing freshly generated certificate: %w", err)
	}

	return &GeneratedCert{
		Certificate: cert,
		PrivateKey:  priv,
		DER:         der,
		PEM:         asn1go.EncodePEM("CERTIFICATE", der),
	}, nil
}

// GenerateCA is GenerateCert with IsCA set and a path length allowing one
// end-entity certificate underneath.
func GenerateCA(commonName string, validFor time.Duration) (*GeneratedCert, error) {
	return GenerateCert(CertOptions{
		CommonName:   commonName,
		Organization: "gossh test fixtures",
		ValidFor:     validFor,
		IsCA:         true,
		MaxPathLen:   1,
	})
}

// GenerateLeaf generates an end-entity certificate signed by ca, with
// commonName also added as a DNS SAN.
func GenerateLeaf(commonName string, validFor time.Duration, ca *GeneratedCert) (*GeneratedCert, error) {
	return GenerateCert(CertOptions{
		CommonName:   commonName,
		Organization: "gossh test fixtures",
		ValidFor:     validFor,
		DNSNames:     []string{commonName},
		Parent:       ca.Certificate,
		ParentKey:    ca.PrivateKey,
	})
}

// GenerateCSR mints a self-signed PKCS#10 CertificationRequest for subject,
// for tests exercising LoadCertificationRequest/Verify.
func GenerateCSR(subject string) (*CertificationRequest, *keys.ECPrivateKey, error) {
	d, x, y, err := elliptic.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("x509go: generating EC key: %w", err)
	}
	priv := &keys.ECPrivateKey{
		Curve: keys.CurveNistP256,
		D:     bigint.FromBytes(d, false),
		X:     bigint.FromBig(x),
		Y:     bigint.FromBig(y),
	}

	curveOID, _ := asn1go.EncodeOID(parseDottedPublic(p256NamedCurveOID))
	spki := asn1go.EncodeSequence(
		asn1go.EncodeSequence(mustEncodeOID(ecP256CurveOID), curveOID),
		asn1go.EncodeBitString(&asn1go.BitString{Bytes: encodeECPoint(priv.Public().(*keys.ECPublicKey))}),
	)

	info := asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(0)),
		encodeNameDER(rdnName(subject, "")),
		spki,
	)

	digest := sha256.Sum256(info)
	rawSig, err := priv.Sign(digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("x509go: signing CSR: %w", err)
	}
	codec, ok := keys.SignatureCodecFor(keys.SigASN1)
	if !ok {
		return nil, nil, fmt.Errorf("x509go: no ASN.1 signature codec registered")
	}
	derSig, err := codec.Encode(keys.EC, rawSig)
	if err != nil {
		return nil, nil, fmt.Errorf("x509go: encoding CSR signature: %w", err)
	}

	sigAlgOID, _ := asn1go.OIDByName("ecdsaWithSHA256")
	der := asn1go.EncodeSequence(
		info,
		algorithmIdentifierDER(sigAlgOID, nil),
		asn1go.EncodeBitString(&asn1go.BitString{Bytes: derSig}),
	)

	csr, err := LoadCertificationRequest(der)
	if err != nil {
		return nil, nil, fmt.Errorf("x509go: parsing freshly generated CSR: %w", err)
	}
	return csr, priv, nil
}

type tbsCertParams struct {
	serial      *big.Int
	issuer      *DistinguishedName
	subject     *DistinguishedName
	notBefore   time.Time
	notAfter    time.Time
	pub         *keys.ECPublicKey
	isCA        bool
	maxPathLen  int
	dnsNames    []string
	ipAddresses []net.IP
}

func encodeTBSCertificate(p tbsCertParams) []byte {
	sigAlgOID, _ := asn1go.OIDByName("ecdsaWithSHA256")

	version := asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 0, asn1go.EncodeInteger(big.NewInt(2)))

	validity := asn1go.EncodeSequence(
		asn1go.EncodeTLV(asn1go.ClassUniversal, asn1go.TagUTCTime, false, []byte(p.notBefore.Format("060102150405Z"))),
		asn1go.EncodeTLV(asn1go.ClassUniversal, asn1go.TagUTCTime, false, []byte(p.notAfter.Format("060102150405Z"))),
	)

	curveOID, _ := asn1go.EncodeOID(parseDottedPublic(p256NamedCurveOID))
	spki := asn1go.EncodeSequence(
		asn1go.EncodeSequence(mustEncodeOID(ecP256CurveOID), curveOID),
		asn1go.EncodeBitString(&asn1go.BitString{Bytes: encodeECPoint(p.pub)}),
	)

	extensions := encodeExtensions(p)

	return asn1go.EncodeSequence(
		version,
		asn1go.EncodeInteger(p.serial),
		algorithmIdentifierDER(sigAlgOID, nil),
		encodeNameDER(p.issuer),
		validity,
		encodeNameDER(p.subject),
		spki,
		asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 3, asn1go.EncodeSequence(extensions...)),
	)
}

func encodeExtensions(p tbsCertParams) [][]byte {
	var exts [][]byte

	bcOID, _ := asn1go.OIDByName("basicConstraints")
	var bcContent [][]byte
	if p.isCA {
		bcContent = append(bcContent, asn1go.EncodeBoolean(true))
		if p.maxPathLen >= 0 {
			bcContent = append(bcContent, asn1go.EncodeInteger(big.NewInt(int64(p.maxPathLen))))
		}
	}
	exts = append(exts, encodeExtensionDER(bcOID, true, asn1go.EncodeSequence(bcContent...)))

	kuOID, _ := asn1go.OIDByName("keyUsage")
	var kuBits byte
	if p.isCA {
		kuBits = 0x06 // keyCertSign | cRLSign (bits 5,6 -> high bits of byte)
	} else {
		kuBits = 0x80 // digitalSignature
	}
	kuValue := asn1go.EncodeBitString(&asn1go.BitString{Bytes: []byte{kuBits}, UnusedBits: 0})
	exts = append(exts, encodeExtensionDER(kuOID, true, kuValue))

	if len(p.dnsNames) > 0 || len(p.ipAddresses) > 0 {
		sanOID, _ := asn1go.OIDByName("subjectAltName")
		var gns [][]byte
		for _, name := range p.dnsNames {
			gns = append(gns, asn1go.EncodeTLV(asn1go.ClassContextSpecific, gnDNSName, false, []byte(name)))
		}
		for _, ip := range p.ipAddresses {
			b := ip.To4()
			if b == nil {
				b = ip.To16()
			}
			gns = append(gns, asn1go.EncodeTLV(asn1go.ClassContextSpecific, gnIPAddress, false, b))
		}
		exts = append(exts, encodeExtensionDER(sanOID, false, asn1go.EncodeSequence(gns...)))
	}

	return exts
}

func encodeExtensionDER(oid string, critical bool, value []byte) []byte {
	parts := [][]byte{mustEncodeOIDDotted(oid)}
	if critical {
		parts = append(parts, asn1go.EncodeBoolean(true))
	}
	parts = append(parts, asn1go.EncodeOctetString(value))
	return asn1go.EncodeSequence(parts...)
}

func algorithmIdentifierDER(oidDotted string, params []byte) []byte {
	parts := [][]byte{mustEncodeOIDDotted(oidDotted)}
	if params != nil {
		parts = append(parts, params)
	}
	return asn1go.EncodeSequence(parts...)
}

func encodeNameDER(dn *DistinguishedName) []byte {
	var rdns [][]byte
	for _, rdn := range dn.RDNs {
		var atvs [][]byte
		for _, a := range rdn.Attributes {
			atvs = append(atvs, asn1go.EncodeSequence(
				mustEncodeOIDDotted(a.OID),
				asn1go.EncodeUTF8String(a.Value),
			))
		}
		rdns = append(rdns, asn1go.EncodeSet(atvs...))
	}
	return asn1go.EncodeSequence(rdns...)
}

func rdnName(commonName, organization string) *DistinguishedName {
	cnOID, _ := asn1go.OIDByName("commonName")
	dn := &DistinguishedName{RDNs: []RDN{{Attributes: []Attribute{{OID: cnOID, Value: commonName}}}}}
	if organization != "" {
		oOID, _ := asn1go.OIDByName("organizationName")
		dn.RDNs = append(dn.RDNs, RDN{Attributes: []Attribute{{OID: oOID, Value: organization}}})
	}
	return dn
}

func encodeECPoint(pub *keys.ECPublicKey) []byte {
	curve := curveStdlib[pub.Curve]
	return elliptic.Marshal(curve, pub.X.Big(), pub.Y.Big())
}

func mustEncodeOID(oid *asn1go.ObjectIdentifier) []byte {
	b, err := asn1go.EncodeOID(oid)
	if err != nil {
		panic(err)
	}
	return b
}

func mustEncodeOIDDotted(dotted string) []byte {
	return mustEncodeOID(parseDottedPublic(dotted))
}

// parseDottedPublic turns a dotted OID string (as returned by OIDByName)
// into an *asn1go.ObjectIdentifier ready for EncodeOID.
func parseDottedPublic(dotted string) *asn1go.ObjectIdentifier {
	parts := strings.Split(dotted, ".")
	arcs := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		arcs[i] = n
	}
	return asn1go.NewObjectIdentifier(arcs...)
}

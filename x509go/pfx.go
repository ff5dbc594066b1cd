package x509go

import (
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha1"
	"fmt"
	"math/big"

	circled448 "github.com/cloudflare/circl/sign/ed448"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/cipher"
	"github.com/postalsys/gossh/keys"
)

// PFXEntry is one decoded SafeBag: either a private key, a certificate, or
// an opaque secret, carrying whatever friendlyName/localKeyId attributes
// the producing tool attached to it.
type PFXEntry struct {
	BagID        string // registered bagId name, e.g. "pkcs12-certBag"
	PrivateKey   keys.PrivateKey
	Certificate  *Certificate
	Secret       []byte // crlBag/secretBag/unrecognized bagValue, raw DER

	FriendlyName string // PKCS#9 friendlyName attribute, if present
	LocalKeyID   []byte // PKCS#9 localKeyId attribute, if present
}

// PFX is a parsed PKCS#12 file per spec §4.4's PFX section: a flat list of
// entries drawn from every SafeContents the authSafe carries, with any
// password-encrypted SafeContents or SafeBag already decrypted.
type PFX struct {
	Entries []PFXEntry
}

// LoadPFX parses a PKCS#12 PFX file. password may be nil for an
// unencrypted PFX; it is required whenever any SafeContents or private
// key bag is password protected.
func LoadPFX(data, password []byte) (*PFX, error) {
	der, err := asn1go.LoadDocument(data)
	if err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	el, err := asn1go.Decode(der, pfxSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding PFX: %w", err)
	}

	authSafe := el.Child("authSafe")
	if authSafe == nil {
		return nil, fmt.Errorf("x509go: PFX missing authSafe")
	}
	safeBytes, err := decodeContentInfoPayload(authSafe, password)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding authSafe: %w", err)
	}

	safeList, err := asn1go.Decode(safeBytes, authenticatedSafeSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding AuthenticatedSafe: %w", err)
	}

	pfx := &PFX{}
	for _, ci := range safeList.Children() {
		scBytes, err := decodeContentInfoPayload(ci, password)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding SafeContents: %w", err)
		}
		sc, err := asn1go.Decode(scBytes, safeContentsSchema("safeContents"), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding SafeContents: %w", err)
		}
		for _, bag := range sc.Children() {
			entry, err := parseSafeBag(bag, password)
			if err != nil {
				return nil, err
			}
			pfx.Entries = append(pfx.Entries, *entry)
		}
	}
	return pfx, nil
}

// ByFriendlyName returns the first entry whose friendlyName attribute
// matches name.
func (p *PFX) ByFriendlyName(name string) (*PFXEntry, bool) {
	for i := range p.Entries {
		if p.Entries[i].FriendlyName == name {
			return &p.Entries[i], true
		}
	}
	return nil, false
}

// ByLocalKeyID returns the first entry whose localKeyId attribute matches
// id, the usual way a PKCS#12 file pairs a keyBag with its certBag.
func (p *PFX) ByLocalKeyID(id []byte) (*PFXEntry, bool) {
	for i := range p.Entries {
		if string(p.Entries[i].LocalKeyID) == string(id) {
			return &p.Entries[i], true
		}
	}
	return nil, false
}

// decodeContentInfoPayload resolves a ContentInfo's content to its plain
// payload bytes: the octets themselves for contentType "data", or the
// password-decrypted plaintext for contentType "encryptedData".
func decodeContentInfoPayload(ci *asn1go.Element, password []byte) ([]byte, error) {
	typeEl := ci.Child("contentType")
	if typeEl == nil || typeEl.AsObjectIdentifier() == nil {
		return nil, fmt.Errorf("x509go: ContentInfo missing contentType")
	}
	oid := typeEl.AsObjectIdentifier().String()
	contentEl := ci.Child("content")
	if contentEl == nil {
		return nil, fmt.Errorf("x509go: ContentInfo missing content")
	}

	dataOID, _ := asn1go.OIDByName("pkcs7-data")
	encryptedOID, _ := asn1go.OIDByName("pkcs7-encryptedData")

	switch oid {
	case dataOID:
		inner, err := asn1go.Decode(contentEl.Content, asn1go.Leaf("data", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding \"data\" content: %w", err)
		}
		return inner.AsOctetString().Bytes, nil

	case encryptedOID:
		encData, err := asn1go.Decode(contentEl.Content, encryptedDataSchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding EncryptedData content: %w", err)
		}
		eci := encData.Child("encryptedContentInfo")
		if eci == nil {
			return nil, fmt.Errorf("x509go: EncryptedData missing encryptedContentInfo")
		}
		algEl := eci.Child("contentEncryptionAlgorithm")
		if algEl == nil || algEl.Child("algorithm") == nil {
			return nil, fmt.Errorf("x509go: EncryptedContentInfo missing contentEncryptionAlgorithm")
		}
		encContentEl := eci.Child("encryptedContent")
		if encContentEl == nil || encContentEl.AsOctetString() == nil {
			return nil, fmt.Errorf("x509go: EncryptedContentInfo missing encryptedContent")
		}
		if len(password) == 0 {
			return nil, fmt.Errorf("x509go: password required to decrypt PKCS#12 content")
		}
		var paramsRaw []byte
		if p := algEl.Child("parameters"); p != nil {
			paramsRaw = p.Raw
		}
		algOID := algEl.Child("algorithm").AsObjectIdentifier().String()
		return pbeDecrypt(algOID, paramsRaw, password, encContentEl.AsOctetString().Bytes)

	default:
		return nil, fmt.Errorf("x509go: unsupported ContentInfo contentType %s", oid)
	}
}

// pbeAlgorithm describes one pkcs-12PbeParams entry (RFC 7292 Appendix C):
// the key/IV lengths PKCS12KDF must derive and the block cipher to run.
type pbeAlgorithm struct {
	keyLen, ivLen int
	newBlock      func() cipher.BlockCipher
}

var pbeAlgByOID = map[string]pbeAlgorithm{}

func registerPBEAlgorithm(name string, keyLen, ivLen int, newBlock func() cipher.BlockCipher) {
	oid, ok := asn1go.OIDByName(name)
	if !ok {
		panic(fmt.Sprintf("x509go: PBE algorithm OID %q not registered", name))
	}
	pbeAlgByOID[oid] = pbeAlgorithm{keyLen: keyLen, ivLen: ivLen, newBlock: newBlock}
}

func init() {
	registerPBEAlgorithm("pbeWithSHAAnd3-KeyTripleDES-CBC", 24, 8, cipher.NewTripleDES)
	registerPBEAlgorithm("pbeWithSHAAnd2-KeyTripleDES-CBC", 16, 8, cipher.NewTripleDES)
	registerPBEAlgorithm("pbeWithSHAAnd128BitRC2-CBC", 16, 8, func() cipher.BlockCipher { return cipher.NewRC2(128) })
	registerPBEAlgorithm("pbeWithSHAAnd40BitRC2-CBC", 5, 8, func() cipher.BlockCipher { return cipher.NewRC2(40) })
}

// pbeDecrypt decrypts ciphertext under one of RFC 7292 Appendix C's
// pkcs-12PbeParams algorithms, deriving key and IV from password via
// PKCS12KDF (RFC 7292 Appendix B).
func pbeDecrypt(algOID string, paramsRaw, password, ciphertext []byte) ([]byte, error) {
	alg, ok := pbeAlgByOID[algOID]
	if !ok {
		return nil, fmt.Errorf("x509go: unsupported PKCS#12 PBE algorithm OID %s", algOID)
	}
	params, err := asn1go.Decode(paramsRaw, pbeParameterSchema(), asn1go.DefaultLimits, false)
	if err != nil {
		return nil, fmt.Errorf("x509go: decoding PBEParameter: %w", err)
	}
	salt := params.Child("salt").AsOctetString().Bytes
	iter := int(params.Child("iterations").AsInteger().Big().Int64())

	bmpPassword := cipher.EncodeBMPString(string(password))
	key := cipher.PKCS12KDF(bmpPassword, salt, 1, iter, alg.keyLen, sha1.New)
	iv := cipher.PKCS12KDF(bmpPassword, salt, 2, iter, alg.ivLen, sha1.New)

	eng := cipher.NewBlockEngine(alg.newBlock(), cipher.CBC)
	if err := eng.SetKey(key); err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	if err := eng.SetIV(iv); err != nil {
		return nil, fmt.Errorf("x509go: %w", err)
	}
	plain, err := eng.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("x509go: decrypting PKCS#12 PBE content: %w", err)
	}
	return plain, nil
}

// parseSafeBag decodes one SafeBag element into a PFXEntry, dispatching
// on bagId and decrypting pkcs8ShroudedKeyBag with password if needed.
func parseSafeBag(bag *asn1go.Element, password []byte) (*PFXEntry, error) {
	bagIDEl := bag.Child("bagId")
	if bagIDEl == nil || bagIDEl.AsObjectIdentifier() == nil {
		return nil, fmt.Errorf("x509go: SafeBag missing bagId")
	}
	oid := bagIDEl.AsObjectIdentifier().String()
	bagValueEl := bag.Child("bagValue")
	if bagValueEl == nil {
		return nil, fmt.Errorf("x509go: SafeBag missing bagValue")
	}

	name, _ := asn1go.NameByOID(oid)
	entry := &PFXEntry{BagID: name}

	keyBagOID, _ := asn1go.OIDByName("pkcs12-keyBag")
	shroudedOID, _ := asn1go.OIDByName("pkcs12-pkcs8ShroudedKeyBag")
	certBagOID, _ := asn1go.OIDByName("pkcs12-certBag")

	switch oid {
	case keyBagOID:
		pk, err := asn1go.Decode(bagValueEl.Content, privateKeyInfoSchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding keyBag: %w", err)
		}
		priv, err := parsePrivateKeyInfo(pk)
		if err != nil {
			return nil, err
		}
		entry.PrivateKey = priv

	case shroudedOID:
		enc, err := asn1go.Decode(bagValueEl.Content, encryptedPrivateKeyInfoSchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding pkcs8ShroudedKeyBag: %w", err)
		}
		algEl := enc.Child("encryptionAlgorithm")
		if algEl == nil || algEl.Child("algorithm") == nil {
			return nil, fmt.Errorf("x509go: EncryptedPrivateKeyInfo missing encryptionAlgorithm")
		}
		if len(password) == 0 {
			return nil, fmt.Errorf("x509go: password required to decrypt pkcs8ShroudedKeyBag")
		}
		var paramsRaw []byte
		if p := algEl.Child("parameters"); p != nil {
			paramsRaw = p.Raw
		}
		algOID := algEl.Child("algorithm").AsObjectIdentifier().String()
		cipherText := enc.Child("encryptedData").AsOctetString().Bytes
		plain, err := pbeDecrypt(algOID, paramsRaw, password, cipherText)
		if err != nil {
			return nil, err
		}
		pk, err := asn1go.Decode(plain, privateKeyInfoSchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding decrypted PrivateKeyInfo: %w", err)
		}
		priv, err := parsePrivateKeyInfo(pk)
		if err != nil {
			return nil, err
		}
		entry.PrivateKey = priv

	case certBagOID:
		cb, err := asn1go.Decode(bagValueEl.Content, certBagSchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding certBag: %w", err)
		}
		certValueEl := cb.Child("certValue")
		if certValueEl == nil || certValueEl.AsOctetString() == nil {
			return nil, fmt.Errorf("x509go: certBag missing certValue")
		}
		cert, err := LoadCertificate(certValueEl.AsOctetString().Bytes)
		if err != nil {
			return nil, fmt.Errorf("x509go: parsing certBag certificate: %w", err)
		}
		entry.Certificate = cert

	default:
		// crlBag, secretBag, safeContentsBag, or an unrecognized bagId:
		// keep the inner DER as an opaque blob rather than failing the
		// whole PFX over a bag type with no typed representation here.
		entry.Secret = append([]byte{}, bagValueEl.Content...)
	}

	if attrs := bag.Child("bagAttributes"); attrs != nil {
		if err := parseBagAttributes(attrs, entry); err != nil {
			return nil, err
		}
	}

	return entry, nil
}

func parseBagAttributes(attrs *asn1go.Element, entry *PFXEntry) error {
	friendlyOID, _ := asn1go.OIDByName("pkcs9-friendlyName")
	localKeyOID, _ := asn1go.OIDByName("pkcs9-localKeyId")

	for _, attr := range attrs.Children() {
		idEl := attr.Child("attrId")
		valsEl := attr.Child("attrValues")
		if idEl == nil || idEl.AsObjectIdentifier() == nil || valsEl == nil {
			continue
		}
		values := valsEl.Children()
		if len(values) == 0 {
			continue
		}
		first := values[0]

		switch idEl.AsObjectIdentifier().String() {
		case friendlyOID:
			v, err := asn1go.Decode(first.Raw, asn1go.Leaf("friendlyName", asn1go.TypeBMPString), asn1go.DefaultLimits, false)
			if err != nil {
				return fmt.Errorf("x509go: decoding friendlyName attribute: %w", err)
			}
			entry.FriendlyName = v.AsString()
		case localKeyOID:
			v, err := asn1go.Decode(first.Raw, asn1go.Leaf("localKeyId", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
			if err != nil {
				return fmt.Errorf("x509go: decoding localKeyId attribute: %w", err)
			}
			entry.LocalKeyID = v.AsOctetString().Bytes
		}
	}
	return nil
}

// parsePrivateKeyInfo decodes a privateKeyInfoSchema Element into this
// pack's keys.PrivateKey, dispatching on privateKeyAlgorithm the same way
// parseSubjectPublicKeyInfo dispatches public keys.
func parsePrivateKeyInfo(el *asn1go.Element) (keys.PrivateKey, error) {
	algEl := el.Child("privateKeyAlgorithm")
	keyOctets := el.Child("privateKey")
	if algEl == nil || keyOctets == nil || keyOctets.AsOctetString() == nil {
		return nil, fmt.Errorf("x509go: malformed PrivateKeyInfo")
	}
	oidEl := algEl.Child("algorithm")
	if oidEl == nil || oidEl.AsObjectIdentifier() == nil {
		return nil, fmt.Errorf("x509go: malformed AlgorithmIdentifier")
	}
	oid := oidEl.AsObjectIdentifier().String()
	raw := keyOctets.AsOctetString().Bytes

	switch oid {
	case "1.2.840.113549.1.1.1": // rsaEncryption
		rk, err := asn1go.Decode(raw, rsaPrivateKeySchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding RSAPrivateKey: %w", err)
		}
		n := bigint.FromBig(rk.Child("modulus").AsInteger().Big())
		e := bigint.FromBig(rk.Child("publicExponent").AsInteger().Big())
		d := bigint.FromBig(rk.Child("privateExponent").AsInteger().Big())
		p := bigint.FromBig(rk.Child("prime1").AsInteger().Big())
		q := bigint.FromBig(rk.Child("prime2").AsInteger().Big())
		return keys.NewRSAPrivateKeyFromCRT(n, e, d, p, q), nil

	case "1.2.840.10045.2.1": // id-ecPublicKey
		paramsEl := algEl.Child("parameters")
		if paramsEl == nil {
			return nil, fmt.Errorf("x509go: EC private key missing namedCurve parameters")
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
		ecKey, err := asn1go.Decode(raw, ecPrivateKeySchema(), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding ECPrivateKey: %w", err)
		}
		dBytes := ecKey.Child("privateKey").AsOctetString().Bytes
		var x, y *big.Int
		if pubEl := ecKey.Child("publicKey"); pubEl != nil && pubEl.AsBitString() != nil {
			x, y = elliptic.Unmarshal(curve, pubEl.AsBitString().Bytes)
		}
		if x == nil {
			x, y = curve.ScalarBaseMult(dBytes)
		}
		return &keys.ECPrivateKey{Curve: curveName, D: bigint.FromBytes(dBytes, false), X: bigint.FromBig(x), Y: bigint.FromBig(y)}, nil

	case "1.2.840.10040.4.1": // id-dsa
		paramsEl := algEl.Child("parameters")
		p, q, g, err := parseDSAParams(paramsEl)
		if err != nil {
			return nil, err
		}
		x, err := parseASN1Integer(raw)
		if err != nil {
			return nil, err
		}
		y := bigint.FromBig(new(big.Int).Exp(g.Big(), x.Big(), p.Big()))
		return &keys.DSAPrivateKey{Params: keys.DSAParameters{P: p, Q: q, G: g}, X: x, Y: y}, nil

	case "1.3.101.112": // id-Ed25519: CurvePrivateKey ::= OCTET STRING (the 32-byte seed)
		seedEl, err := asn1go.Decode(raw, asn1go.Leaf("seed", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding CurvePrivateKey: %w", err)
		}
		seed := seedEl.AsOctetString().Bytes
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("x509go: Ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		return &keys.Ed25519PrivateKey{Raw: []byte(ed25519.NewKeyFromSeed(seed))}, nil

	case "1.3.101.113": // id-Ed448
		seedEl, err := asn1go.Decode(raw, asn1go.Leaf("seed", asn1go.TypeOctetString), asn1go.DefaultLimits, false)
		if err != nil {
			return nil, fmt.Errorf("x509go: decoding CurvePrivateKey: %w", err)
		}
		return &keys.Ed448PrivateKey{Raw: []byte(circled448.NewKeyFromSeed(seedEl.AsOctetString().Bytes))}, nil

	default:
		return nil, fmt.Errorf("x509go: unsupported private key algorithm OID %s", oid)
	}
}

// rsaPrivateKeySchema is PKCS#1 RSAPrivateKey ::= SEQUENCE { version,
// modulus, publicExponent, privateExponent, prime1, prime2, exponent1,
// exponent2, coefficient, otherPrimeInfos OPTIONAL }. Multi-prime RSA
// (otherPrimeInfos populated) is accepted on decode but not supported:
// NewRSAPrivateKeyFromCRT only models the two-prime form.
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
// privateKey OCTET STRING, parameters [0] EXPLICIT ANY OPTIONAL,
// publicKey [1] EXPLICIT BIT STRING OPTIONAL }. parameters is ignored:
// the namedCurve comes from the enclosing PrivateKeyInfo's
// privateKeyAlgorithm instead.
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

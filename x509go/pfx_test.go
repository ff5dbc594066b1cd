package x509go

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/postalsys/gossh/asn1go"
	"github.com/postalsys/gossh/keys"
)

// encodePKCS8ECPrivateKey builds a plain (unencrypted) PKCS#8
// PrivateKeyInfo DER wrapping a SEC1 ECPrivateKey, for feeding into a
// hand-built keyBag without needing a PBE-encrypted fixture.
func encodePKCS8ECPrivateKey(priv *keys.ECPrivateKey) []byte {
	curveOID, _ := asn1go.EncodeOID(parseDottedPublic(p256NamedCurveOID))
	alg := asn1go.EncodeSequence(mustEncodeOID(ecP256CurveOID), curveOID)

	dBytes := priv.D.Big().Bytes()
	for len(dBytes) < 32 {
		dBytes = append([]byte{0}, dBytes...)
	}
	pubPoint := encodeECPoint(priv.Public().(*keys.ECPublicKey))
	ecKey := asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(1)),
		asn1go.EncodeOctetString(dBytes),
		asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 1, asn1go.EncodeBitString(&asn1go.BitString{Bytes: pubPoint})),
	)

	return asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(0)),
		alg,
		asn1go.EncodeOctetString(ecKey),
	)
}

func encodeSafeBag(bagIDName string, innerDER []byte, localKeyID []byte) []byte {
	bagOID, _ := asn1go.OIDByName(bagIDName)
	parts := [][]byte{
		mustEncodeOIDDotted(bagOID),
		asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 0, innerDER),
	}
	if localKeyID != nil {
		localKeyOID, _ := asn1go.OIDByName("pkcs9-localKeyId")
		attr := asn1go.EncodeSequence(
			mustEncodeOIDDotted(localKeyOID),
			asn1go.EncodeSet(asn1go.EncodeOctetString(localKeyID)),
		)
		parts = append(parts, asn1go.EncodeSet(attr))
	}
	return asn1go.EncodeSequence(parts...)
}

func encodeContentInfoData(payload []byte) []byte {
	dataOID, _ := asn1go.OIDByName("pkcs7-data")
	return asn1go.EncodeSequence(
		mustEncodeOIDDotted(dataOID),
		asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 0, asn1go.EncodeOctetString(payload)),
	)
}

func encodePFX(authSafePayload []byte) []byte {
	return asn1go.EncodeSequence(
		asn1go.EncodeInteger(big.NewInt(3)),
		encodeContentInfoData(authSafePayload),
	)
}

func TestLoadPFXUnencryptedKeyAndCert(t *testing.T) {
	ca, err := GenerateCA("PFX Test CA", 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateCA: %v", err)
	}

	keyBagDER := encodePKCS8ECPrivateKey(ca.PrivateKey)
	keyBag := encodeSafeBag("pkcs12-keyBag", keyBagDER, []byte{0x01, 0x02})

	certOID, _ := asn1go.OIDByName("pkcs9-x509Certificate")
	certBagInner := asn1go.EncodeSequence(
		mustEncodeOIDDotted(certOID),
		asn1go.EncodeExplicit(asn1go.ClassContextSpecific, 0, asn1go.EncodeOctetString(ca.DER)),
	)
	certBag := encodeSafeBag("pkcs12-certBag", certBagInner, []byte{0x01, 0x02})

	safeContents := asn1go.EncodeSequence(keyBag, certBag)
	authSafe := asn1go.EncodeSequence(encodeContentInfoData(safeContents))
	pfxDER := encodePFX(authSafe)

	pfx, err := LoadPFX(pfxDER, nil)
	if err != nil {
		t.Fatalf("LoadPFX: %v", err)
	}
	if len(pfx.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(pfx.Entries))
	}

	keyEntry, ok := pfx.ByLocalKeyID([]byte{0x01, 0x02})
	if !ok || keyEntry.PrivateKey == nil {
		t.Fatalf("expected a keyBag entry indexed by localKeyId")
	}
	ecKey, ok := keyEntry.PrivateKey.(*keys.ECPrivateKey)
	if !ok {
		t.Fatalf("expected keyBag entry to decode as an EC private key, got %T", keyEntry.PrivateKey)
	}
	if ecKey.D.Big().Cmp(ca.PrivateKey.D.Big()) != 0 {
		t.Fatalf("keyBag private scalar does not match original key")
	}

	var foundCert bool
	for _, e := range pfx.Entries {
		if e.Certificate != nil {
			foundCert = true
			if !bytes.Equal(e.Certificate.Raw, ca.DER) {
				t.Fatalf("certBag certificate does not match original DER")
			}
		}
	}
	if !foundCert {
		t.Fatalf("expected a certBag entry")
	}
}

func TestPBEAlgorithmsRegistered(t *testing.T) {
	for _, name := range []string{
		"pbeWithSHAAnd3-KeyTripleDES-CBC",
		"pbeWithSHAAnd2-KeyTripleDES-CBC",
		"pbeWithSHAAnd128BitRC2-CBC",
		"pbeWithSHAAnd40BitRC2-CBC",
	} {
		oid, ok := asn1go.OIDByName(name)
		if !ok {
			t.Fatalf("OID %q not registered", name)
		}
		if _, ok := pbeAlgByOID[oid]; !ok {
			t.Fatalf("PBE algorithm %q not wired into pbeAlgByOID", name)
		}
	}
}

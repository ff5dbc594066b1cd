// Package x509go implements the X.509 document family (Certificate, CSR,
// CRL, SPKAC, PFX) over asn1go's schema-driven DER codec: a hand-written
// engine per spec §4.4, not crypto/x509.
package x509go

import "github.com/postalsys/gossh/asn1go"

// algorithmIdentifier is X.509 §4.1.1.2's AlgorithmIdentifier:
// SEQUENCE { algorithm OBJECT IDENTIFIER, parameters ANY OPTIONAL }.
func algorithmIdentifierSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("algorithm", asn1go.TypeObjectIdentifier),
		asn1go.Opt(asn1go.Leaf("parameters", asn1go.TypeAny)),
	)
}

// attributeTypeAndValueSchema is one RDN component:
// SEQUENCE { type OID, value ANY }.
func attributeTypeAndValueSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("type", asn1go.TypeObjectIdentifier),
		asn1go.Leaf("value", asn1go.TypeAny),
	)
}

// rdnSchema is RelativeDistinguishedName ::= SET OF AttributeTypeAndValue.
func rdnSchema(name string) *asn1go.Node {
	return asn1go.SetOf(name, attributeTypeAndValueSchema("atv"))
}

// nameSchema is Name ::= CHOICE { rdnSequence RDNSequence }, where
// RDNSequence ::= SEQUENCE OF RelativeDistinguishedName. In practice every
// issuer exercises the rdnSequence branch, so this is modeled directly as
// that SEQUENCE OF rather than a one-armed CHOICE.
func nameSchema(name string) *asn1go.Node {
	return asn1go.SeqOf(name, rdnSchema("rdn"))
}

// validitySchema is Validity ::= SEQUENCE { notBefore Time, notAfter Time },
// where Time ::= CHOICE { utcTime UTCTime, generalTime GeneralizedTime }.
func validitySchema() *asn1go.Node {
	return asn1go.Seq("validity",
		asn1go.Choice("notBefore",
			asn1go.Leaf("utcTime", asn1go.TypeUTCTime),
			asn1go.Leaf("generalTime", asn1go.TypeGeneralizedTime)),
		asn1go.Choice("notAfter",
			asn1go.Leaf("utcTime", asn1go.TypeUTCTime),
			asn1go.Leaf("generalTime", asn1go.TypeGeneralizedTime)),
	)
}

// subjectPublicKeyInfoSchema is SubjectPublicKeyInfo ::= SEQUENCE {
// algorithm AlgorithmIdentifier, subjectPublicKey BIT STRING }.
func subjectPublicKeyInfoSchema() *asn1go.Node {
	return asn1go.Seq("subjectPublicKeyInfo",
		algorithmIdentifierSchema("algorithm"),
		asn1go.Leaf("subjectPublicKey", asn1go.TypeBitString),
	)
}

// extensionSchema is Extension ::= SEQUENCE { extnID OID,
// critical BOOLEAN DEFAULT FALSE, extnValue OCTET STRING }.
func extensionSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("extnID", asn1go.TypeObjectIdentifier),
		asn1go.Opt(asn1go.Leaf("critical", asn1go.TypeBoolean)),
		asn1go.Leaf("extnValue", asn1go.TypeOctetString),
	)
}

// extensionsSchema is Extensions ::= SEQUENCE OF Extension, wrapped by its
// caller in a [n] explicit context tag where it appears optionally.
func extensionsSchema(name string) *asn1go.Node {
	return asn1go.SeqOf(name, extensionSchema("ext"))
}

// uniqueIdentifierSchema is UniqueIdentifier ::= BIT STRING, used for the
// rarely-populated issuerUniqueID/subjectUniqueID TBSCertificate fields.
func uniqueIdentifierSchema(name string) *asn1go.Node {
	return asn1go.Leaf(name, asn1go.TypeBitString)
}

// tbsCertificateSchema is RFC 5280 §4.1 TBSCertificate.
func tbsCertificateSchema() *asn1go.Node {
	return asn1go.Seq("tbsCertificate",
		asn1go.Opt(asn1go.ExplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.Leaf("version", asn1go.TypeInteger))),
		asn1go.Leaf("serialNumber", asn1go.TypeInteger),
		algorithmIdentifierSchema("signature"),
		nameSchema("issuer"),
		validitySchema(),
		nameSchema("subject"),
		subjectPublicKeyInfoSchema(),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 1,
			uniqueIdentifierSchema("issuerUniqueID"))),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 2,
			uniqueIdentifierSchema("subjectUniqueID"))),
		asn1go.Opt(asn1go.ExplicitTag(asn1go.ClassContextSpecific, 3,
			extensionsSchema("extensions"))),
	)
}

// certificateSchema is RFC 5280 §4.1 Certificate ::= SEQUENCE {
// tbsCertificate TBSCertificate, signatureAlgorithm AlgorithmIdentifier,
// signatureValue BIT STRING }.
func certificateSchema() *asn1go.Node {
	return asn1go.Seq("certificate",
		tbsCertificateSchema(),
		algorithmIdentifierSchema("signatureAlgorithm"),
		asn1go.Leaf("signatureValue", asn1go.TypeBitString),
	)
}

// certificationRequestInfoSchema is PKCS#10 CertificationRequestInfo.
func certificationRequestInfoSchema() *asn1go.Node {
	return asn1go.Seq("certificationRequestInfo",
		asn1go.Leaf("version", asn1go.TypeInteger),
		nameSchema("subject"),
		subjectPublicKeyInfoSchema(),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.SeqOf("attributes", attributeSchema("attr")))),
	)
}

// attributeSchema is Attribute ::= SEQUENCE { type OID, values SET OF ANY }.
func attributeSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("type", asn1go.TypeObjectIdentifier),
		asn1go.SetOf("values", asn1go.Leaf("value", asn1go.TypeAny)),
	)
}

// certificationRequestSchema is PKCS#10 CertificationRequest.
func certificationRequestSchema() *asn1go.Node {
	return asn1go.Seq("certificationRequest",
		certificationRequestInfoSchema(),
		algorithmIdentifierSchema("signatureAlgorithm"),
		asn1go.Leaf("signature", asn1go.TypeBitString),
	)
}

// revokedCertificateSchema is one CRL entry.
func revokedCertificateSchema() *asn1go.Node {
	return asn1go.Seq("revokedCertificate",
		asn1go.Leaf("userCertificate", asn1go.TypeInteger),
		asn1go.Choice("revocationDate",
			asn1go.Leaf("utcTime", asn1go.TypeUTCTime),
			asn1go.Leaf("generalTime", asn1go.TypeGeneralizedTime)),
		asn1go.Opt(extensionsSchema("crlEntryExtensions")),
	)
}

// tbsCertListSchema is RFC 5280 §5.1 TBSCertList.
func tbsCertListSchema() *asn1go.Node {
	return asn1go.Seq("tbsCertList",
		asn1go.Opt(asn1go.Leaf("version", asn1go.TypeInteger)),
		algorithmIdentifierSchema("signature"),
		nameSchema("issuer"),
		asn1go.Choice("thisUpdate",
			asn1go.Leaf("utcTime", asn1go.TypeUTCTime),
			asn1go.Leaf("generalTime", asn1go.TypeGeneralizedTime)),
		asn1go.Opt(asn1go.Choice("nextUpdate",
			asn1go.Leaf("utcTime", asn1go.TypeUTCTime),
			asn1go.Leaf("generalTime", asn1go.TypeGeneralizedTime))),
		asn1go.Opt(asn1go.SeqOf("revokedCertificates", revokedCertificateSchema())),
		asn1go.Opt(asn1go.ExplicitTag(asn1go.ClassContextSpecific, 0,
			extensionsSchema("crlExtensions"))),
	)
}

// certificateListSchema is RFC 5280 §5.1 CertificateList.
func certificateListSchema() *asn1go.Node {
	return asn1go.Seq("certificateList",
		tbsCertListSchema(),
		algorithmIdentifierSchema("signatureAlgorithm"),
		asn1go.Leaf("signatureValue", asn1go.TypeBitString),
	)
}

// spkacSchema is Netscape SPKAC: SignedPublicKeyAndChallenge ::= SEQUENCE {
// publicKeyAndChallenge PublicKeyAndChallenge, signatureAlgorithm
// AlgorithmIdentifier, signature BIT STRING }.
func spkacSchema() *asn1go.Node {
	return asn1go.Seq("signedPublicKeyAndChallenge",
		asn1go.Seq("publicKeyAndChallenge",
			subjectPublicKeyInfoSchema(),
			asn1go.Leaf("challenge", asn1go.TypeIA5String),
		),
		algorithmIdentifierSchema("signatureAlgorithm"),
		asn1go.Leaf("signature", asn1go.TypeBitString),
	)
}

// contentInfoSchema is PKCS#7 ContentInfo ::= SEQUENCE { contentType OID,
// content [0] EXPLICIT ANY DEFINED BY contentType OPTIONAL }. content is
// left untyped (TypeAny) since its real shape (OCTET STRING for "data",
// a SEQUENCE for "encryptedData") depends on contentType; its Content
// bytes are the [0]-unwrapped inner TLV, ready for a further Decode.
func contentInfoSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("contentType", asn1go.TypeObjectIdentifier),
		asn1go.Opt(asn1go.Leaf("content", asn1go.TypeAny)),
	)
}

// macDataSchema is PKCS#12 MacData ::= SEQUENCE { mac DigestInfo,
// macSalt OCTET STRING, iterations INTEGER DEFAULT 1 }.
func macDataSchema() *asn1go.Node {
	return asn1go.Seq("macData",
		asn1go.Seq("mac",
			algorithmIdentifierSchema("digestAlgorithm"),
			asn1go.Leaf("digest", asn1go.TypeOctetString),
		),
		asn1go.Leaf("macSalt", asn1go.TypeOctetString),
		asn1go.Opt(asn1go.Leaf("iterations", asn1go.TypeInteger)),
	)
}

// pfxSchema is PKCS#12 PFX ::= SEQUENCE { version INTEGER {v3(3)},
// authSafe ContentInfo, macData MacData OPTIONAL }.
func pfxSchema() *asn1go.Node {
	return asn1go.Seq("PFX",
		asn1go.Leaf("version", asn1go.TypeInteger),
		contentInfoSchema("authSafe"),
		asn1go.Opt(macDataSchema()),
	)
}

// authenticatedSafeSchema is AuthenticatedSafe ::= SEQUENCE OF ContentInfo,
// the DER blob carried inside authSafe's "data" content OCTET STRING.
func authenticatedSafeSchema() *asn1go.Node {
	return asn1go.SeqOf("authenticatedSafe", contentInfoSchema("contentInfo"))
}

// pkcs12AttributeSchema is PKCS12Attribute ::= SEQUENCE { attrId OID,
// attrValues SET OF ANY }, used for SafeBag's bagAttributes (friendlyName,
// localKeyId).
func pkcs12AttributeSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("attrId", asn1go.TypeObjectIdentifier),
		asn1go.SetOf("attrValues", asn1go.Leaf("value", asn1go.TypeAny)),
	)
}

// safeBagSchema is SafeBag ::= SEQUENCE { bagId OID,
// bagValue [0] EXPLICIT ANY DEFINED BY bagId, bagAttributes SET OF
// PKCS12Attribute OPTIONAL }.
func safeBagSchema(name string) *asn1go.Node {
	return asn1go.Seq(name,
		asn1go.Leaf("bagId", asn1go.TypeObjectIdentifier),
		asn1go.Leaf("bagValue", asn1go.TypeAny),
		asn1go.Opt(asn1go.SetOf("bagAttributes", pkcs12AttributeSchema("attr"))),
	)
}

// safeContentsSchema is SafeContents ::= SEQUENCE OF SafeBag.
func safeContentsSchema(name string) *asn1go.Node {
	return asn1go.SeqOf(name, safeBagSchema("bag"))
}

// certBagSchema is CertBag ::= SEQUENCE { certId OID,
// certValue [0] EXPLICIT OCTET STRING }, the X.509 certificate case of
// SafeBag's bagValue.
func certBagSchema() *asn1go.Node {
	return asn1go.Seq("certBag",
		asn1go.Leaf("certId", asn1go.TypeObjectIdentifier),
		asn1go.ExplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.Leaf("certValue", asn1go.TypeOctetString)),
	)
}

// privateKeyInfoSchema is PKCS#8 PrivateKeyInfo ::= SEQUENCE {
// version INTEGER, privateKeyAlgorithm AlgorithmIdentifier,
// privateKey OCTET STRING, attributes [0] IMPLICIT SET OF Attribute
// OPTIONAL }, the plain (unencrypted) keyBag case of SafeBag's bagValue.
func privateKeyInfoSchema() *asn1go.Node {
	return asn1go.Seq("privateKeyInfo",
		asn1go.Leaf("version", asn1go.TypeInteger),
		algorithmIdentifierSchema("privateKeyAlgorithm"),
		asn1go.Leaf("privateKey", asn1go.TypeOctetString),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.SetOf("attributes", attributeSchema("attr")))),
	)
}

// encryptedPrivateKeyInfoSchema is PKCS#8 EncryptedPrivateKeyInfo ::=
// SEQUENCE { encryptionAlgorithm AlgorithmIdentifier,
// encryptedData OCTET STRING }, the pkcs8ShroudedKeyBag case.
func encryptedPrivateKeyInfoSchema() *asn1go.Node {
	return asn1go.Seq("encryptedPrivateKeyInfo",
		algorithmIdentifierSchema("encryptionAlgorithm"),
		asn1go.Leaf("encryptedData", asn1go.TypeOctetString),
	)
}

// encryptedContentInfoSchema is PKCS#7 EncryptedContentInfo ::= SEQUENCE {
// contentType OID, contentEncryptionAlgorithm AlgorithmIdentifier,
// encryptedContent [0] IMPLICIT OCTET STRING OPTIONAL }.
func encryptedContentInfoSchema() *asn1go.Node {
	return asn1go.Seq("encryptedContentInfo",
		asn1go.Leaf("contentType", asn1go.TypeObjectIdentifier),
		algorithmIdentifierSchema("contentEncryptionAlgorithm"),
		asn1go.Opt(asn1go.ImplicitTag(asn1go.ClassContextSpecific, 0,
			asn1go.Leaf("encryptedContent", asn1go.TypeOctetString))),
	)
}

// encryptedDataSchema is PKCS#7 EncryptedData ::= SEQUENCE {
// version INTEGER, encryptedContentInfo EncryptedContentInfo }, the
// shape a ContentInfo's content holds when contentType is
// pkcs7-encryptedData (a password-encrypted SafeContents or, rarely, the
// whole authSafe).
func encryptedDataSchema() *asn1go.Node {
	return asn1go.Seq("encryptedData",
		asn1go.Leaf("version", asn1go.TypeInteger),
		encryptedContentInfoSchema(),
	)
}

// pbeParameterSchema is PKCS#12 Appendix B's PBEParameter ::= SEQUENCE {
// salt OCTET STRING, iterations INTEGER }, the encryptionAlgorithm's
// parameters for every pbeWithSHAAnd*-CBC algorithm.
func pbeParameterSchema() *asn1go.Node {
	return asn1go.Seq("pbeParameter",
		asn1go.Leaf("salt", asn1go.TypeOctetString),
		asn1go.Leaf("iterations", asn1go.TypeInteger),
	)
}

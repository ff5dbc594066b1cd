package asn1go

import (
	"fmt"
	"math/big"
)

// Builder assembles DER-encoded values bottom-up: callers build leaves
// with the EncodeXxx helpers and wrap them with EncodeSequence, EncodeSet
// or EncodeExplicit for SEQUENCE/SET/explicit-tag constructions (EncodeTLV
// for any other header), mirroring how the schema tree
// itself nests.
type Builder struct{}

// encodeHeader writes a tag-length header for the given class/tag/
// constructed flag and content length.
func encodeHeader(class TagClass, tag int, constructed bool, contentLen int) []byte {
	var out []byte
	first := byte(class) << 6
	if constructed {
		first |= 0x20
	}
	if tag < 0x1f {
		out = append(out, first|byte(tag))
	} else {
		out = append(out, first|0x1f)
		out = append(out, encodeHighTag(tag)...)
	}
	out = append(out, encodeLength(contentLen)...)
	return out
}

func encodeHighTag(tag int) []byte {
	if tag == 0 {
		return []byte{0}
	}
	var bytes []byte
	for tag > 0 {
		bytes = append([]byte{byte(tag & 0x7f)}, bytes...)
		tag >>= 7
	}
	for i := 0; i < len(bytes)-1; i++ {
		bytes[i] |= 0x80
	}
	return bytes
}

func encodeLength(n int) []byte {
	if n < 128 {
		return []byte{byte(n)}
	}
	var bytes []byte
	v := n
	for v > 0 {
		bytes = append([]byte{byte(v & 0xff)}, bytes...)
		v >>= 8
	}
	return append([]byte{0x80 | byte(len(bytes))}, bytes...)
}

// EncodeTLV wraps content with a tag/length header for the given
// class/tag, constructed flag as specified.
func EncodeTLV(class TagClass, tag int, constructed bool, content []byte) []byte {
	return append(encodeHeader(class, tag, constructed, len(content)), content...)
}

// EncodeSequence wraps children's concatenated encodings in a SEQUENCE.
func EncodeSequence(children ...[]byte) []byte {
	return EncodeTLV(ClassUniversal, TagSequence, true, concat(children))
}

// EncodeSet wraps children's concatenated encodings in a SET.
func EncodeSet(children ...[]byte) []byte {
	return EncodeTLV(ClassUniversal, TagSet, true, concat(children))
}

// EncodeExplicit wraps inner in an explicit context/application/private tag.
func EncodeExplicit(class TagClass, tag int, inner []byte) []byte {
	return EncodeTLV(class, tag, true, inner)
}

// EncodeImplicit re-tags inner's content under a new implicit tag,
// preserving inner's constructed bit (the caller must pass whether the
// underlying universal type is constructed).
func EncodeImplicit(class TagClass, tag int, constructed bool, content []byte) []byte {
	return EncodeTLV(class, tag, constructed, content)
}

func concat(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// EncodeInteger DER-encodes an arbitrary-precision integer: minimal
// two's-complement form, with a leading 0x00 inserted when the high bit
// of a non-negative value's minimal representation would otherwise be
// mistaken for a sign bit.
func EncodeInteger(v *big.Int) []byte {
	content := encodeIntegerContent(v)
	return EncodeTLV(ClassUniversal, TagInteger, false, content)
}

func encodeIntegerContent(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0x00}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	}
	// Negative: two's complement of minimal bit length (-v-1 needs
	// bitLen bits, plus one sign bit).
	bitLen := new(big.Int).Not(v).BitLen()
	nBytes := bitLen/8 + 1
	mod := new(big.Int).Lsh(big.NewInt(1), uint(nBytes*8))
	twos := new(big.Int).Add(mod, v)
	b := twos.Bytes()
	for len(b) < nBytes {
		b = append([]byte{0xff}, b...)
	}
	return b
}

// EncodeOID DER-encodes an ObjectIdentifier.
func EncodeOID(o *ObjectIdentifier) ([]byte, error) {
	if len(o.Arcs) < 2 {
		return nil, fmt.Errorf("%w: OID needs at least 2 arcs", ErrParse)
	}
	content := []byte{byte(o.Arcs[0]*40 + o.Arcs[1])}
	for _, arc := range o.Arcs[2:] {
		content = append(content, encodeBase128(arc)...)
	}
	return EncodeTLV(ClassUniversal, TagObjectIdentifier, false, content), nil
}

func encodeBase128(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	var bytes []byte
	for v > 0 {
		bytes = append([]byte{byte(v & 0x7f)}, bytes...)
		v >>= 7
	}
	for i := 0; i < len(bytes)-1; i++ {
		bytes[i] |= 0x80
	}
	return bytes
}

// EncodeOctetString DER-encodes an OCTET STRING.
func EncodeOctetString(b []byte) []byte {
	return EncodeTLV(ClassUniversal, TagOctetString, false, b)
}

// EncodeBitString DER-encodes a BIT STRING.
func EncodeBitString(bs *BitString) []byte {
	content := append([]byte{byte(bs.UnusedBits)}, bs.Bytes...)
	return EncodeTLV(ClassUniversal, TagBitString, false, content)
}

// EncodeBoolean DER-encodes a BOOLEAN.
func EncodeBoolean(v bool) []byte {
	b := byte(0x00)
	if v {
		b = 0xff
	}
	return EncodeTLV(ClassUniversal, TagBoolean, false, []byte{b})
}

// EncodeNull DER-encodes a NULL.
func EncodeNull() []byte {
	return EncodeTLV(ClassUniversal, TagNull, false, nil)
}

// EncodeUTF8String DER-encodes a UTF8String.
func EncodeUTF8String(s string) []byte {
	return EncodeTLV(ClassUniversal, TagUTF8String, false, []byte(s))
}

// EncodePrintableString DER-encodes a PrintableString.
func EncodePrintableString(s string) []byte {
	return EncodeTLV(ClassUniversal, TagPrintableString, false, []byte(s))
}

// EncodeIA5String DER-encodes an IA5String.
func EncodeIA5String(s string) []byte {
	return EncodeTLV(ClassUniversal, TagIA5String, false, []byte(s))
}

// EncodeBMPString DER-encodes a BMPString (UTF-16BE, no terminator — the
// ASN.1 length prefix delimits it; contrast with EncodeBMPString in the
// cipher package's PKCS#12 KDF, which appends a NUL terminator).
func EncodeBMPString(s string) []byte {
	runes := []rune(s)
	content := make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		content = append(content, byte(r>>8), byte(r))
	}
	return EncodeTLV(ClassUniversal, TagBMPString, false, content)
}

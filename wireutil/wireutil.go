// Package wireutil provides the constant-time byte utilities and SSH2 wire
// codec (spec component C2) shared by every other component: packSSH2 /
// unpackSSH2 encode and decode the RFC 4251 §5 primitive types, shift/pop
// consume a byte buffer incrementally, and constant-time helpers avoid
// timing side channels on secret-dependent comparisons.
//
// The length-prefixed framing style here mirrors the teacher's
// internal/protocol/frame.go big-endian wire codec, generalized from one
// fixed frame header to the open set of SSH2 primitive types.
package wireutil

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/postalsys/gossh/bigint"
)

// ErrShortBuffer is returned when a decode operation needs more bytes than
// are available.
var ErrShortBuffer = errors.New("wireutil: buffer too short")

// ConstantTimeCompare reports whether a and b are equal, in time
// independent of where they first differ. Delegates to crypto/subtle,
// which exists in the standard library precisely for this purpose.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Increment treats b as a big-endian counter and increments it by one,
// wrapping on overflow. Used by CTR mode and GCM's inc32 (spec §4.3).
func Increment(b []byte) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}

// Inc32 increments only the low 32 bits of b (SP 800-38D's inc32),
// leaving any preceding bytes (e.g. GCM's fixed nonce prefix) untouched.
func Inc32(b []byte) {
	if len(b) < 4 {
		Increment(b)
		return
	}
	n := binary.BigEndian.Uint32(b[len(b)-4:])
	n++
	binary.BigEndian.PutUint32(b[len(b)-4:], n)
}

// Buffer is a cursor over a byte slice supporting the shift/pop idiom used
// to decode SSH2 packets: each Read* call consumes from the front and
// advances the cursor, returning an error if insufficient bytes remain.
type Buffer struct {
	b   []byte
	pos int
}

// NewBuffer wraps b for sequential decoding.
func NewBuffer(b []byte) *Buffer { return &Buffer{b: b} }

// Remaining returns the number of unconsumed bytes.
func (buf *Buffer) Remaining() int { return len(buf.b) - buf.pos }

// Rest returns all remaining unconsumed bytes without advancing the cursor.
func (buf *Buffer) Rest() []byte { return buf.b[buf.pos:] }

// Shift consumes and returns the next n bytes, or an error if fewer remain.
func (buf *Buffer) Shift(n int) ([]byte, error) {
	if buf.Remaining() < n {
		return nil, ErrShortBuffer
	}
	out := buf.b[buf.pos : buf.pos+n]
	buf.pos += n
	return out, nil
}

// ReadByte consumes a single byte.
func (buf *Buffer) ReadByte() (byte, error) {
	out, err := buf.Shift(1)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// ReadBool consumes a single SSH2 "boolean" (RFC 4251 §5: nonzero is true).
func (buf *Buffer) ReadBool() (bool, error) {
	b, err := buf.ReadByte()
	return b != 0, err
}

// ReadUint32 consumes a big-endian uint32.
func (buf *Buffer) ReadUint32() (uint32, error) {
	out, err := buf.Shift(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(out), nil
}

// ReadUint64 consumes a big-endian uint64.
func (buf *Buffer) ReadUint64() (uint64, error) {
	out, err := buf.Shift(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(out), nil
}

// ReadString consumes an SSH2 "string": a uint32 length prefix followed by
// that many raw bytes.
func (buf *Buffer) ReadString() ([]byte, error) {
	n, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	return buf.Shift(int(n))
}

// ReadCString consumes an SSH2 string and returns it as a Go string.
func (buf *Buffer) ReadCString() (string, error) {
	b, err := buf.ReadString()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadNameList consumes an SSH2 "name-list": a string whose payload is a
// comma-separated list of ASCII names (used throughout KEXINIT, RFC 4251 §5).
func (buf *Buffer) ReadNameList() ([]string, error) {
	s, err := buf.ReadCString()
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return splitComma(s), nil
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// ReadMPInt consumes an SSH2 "mpint" (RFC 4251 §5: length-prefixed two's
// complement integer) into a BigInteger.
func (buf *Buffer) ReadMPInt() (*bigint.BigInteger, error) {
	b, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return bigint.FromBytes(b, true), nil
}

// Builder accumulates an SSH2-encoded packet.
type Builder struct {
	b []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Bytes returns the accumulated packet bytes.
func (bld *Builder) Bytes() []byte { return bld.b }

// Len returns the number of bytes written so far.
func (bld *Builder) Len() int { return len(bld.b) }

// WriteByte appends a single byte.
func (bld *Builder) WriteByte(b byte) *Builder {
	bld.b = append(bld.b, b)
	return bld
}

// WriteBool appends an SSH2 boolean.
func (bld *Builder) WriteBool(v bool) *Builder {
	if v {
		return bld.WriteByte(1)
	}
	return bld.WriteByte(0)
}

// WriteUint32 appends a big-endian uint32.
func (bld *Builder) WriteUint32(v uint32) *Builder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	bld.b = append(bld.b, tmp[:]...)
	return bld
}

// WriteUint64 appends a big-endian uint64.
func (bld *Builder) WriteUint64(v uint64) *Builder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	bld.b = append(bld.b, tmp[:]...)
	return bld
}

// WriteString appends an SSH2 "string" (length-prefixed raw bytes).
func (bld *Builder) WriteString(s []byte) *Builder {
	bld.WriteUint32(uint32(len(s)))
	bld.b = append(bld.b, s...)
	return bld
}

// WriteCString appends a Go string as an SSH2 "string".
func (bld *Builder) WriteCString(s string) *Builder {
	return bld.WriteString([]byte(s))
}

// WriteNameList appends a comma-joined SSH2 "name-list".
func (bld *Builder) WriteNameList(names []string) *Builder {
	joined := ""
	for i, n := range names {
		if i > 0 {
			joined += ","
		}
		joined += n
	}
	return bld.WriteCString(joined)
}

// WriteMPInt appends a BigInteger as an SSH2 "mpint".
func (bld *Builder) WriteMPInt(n *bigint.BigInteger) *Builder {
	return bld.WriteString(n.SSH2Bytes())
}

// WriteRaw appends raw bytes with no length prefix.
func (bld *Builder) WriteRaw(b []byte) *Builder {
	bld.b = append(bld.b, b...)
	return bld
}

// PackSSH2 is a convenience one-shot encoder: it writes each value according
// to its Go type (string->SSH2 string, []byte->SSH2 string, uint32,
// uint64, bool, *bigint.BigInteger->mpint, []string->name-list) and returns
// the concatenated packet.
func PackSSH2(values ...interface{}) ([]byte, error) {
	bld := NewBuilder()
	for _, v := range values {
		switch t := v.(type) {
		case string:
			bld.WriteCString(t)
		case []byte:
			bld.WriteString(t)
		case uint32:
			bld.WriteUint32(t)
		case uint64:
			bld.WriteUint64(t)
		case bool:
			bld.WriteBool(t)
		case byte:
			bld.WriteByte(t)
		case []string:
			bld.WriteNameList(t)
		case *bigint.BigInteger:
			bld.WriteMPInt(t)
		default:
			return nil, fmt.Errorf("wireutil: PackSSH2: unsupported type %T", v)
		}
	}
	return bld.Bytes(), nil
}

// UnpackSSH2 decodes fields out of b according to the Go type of each
// pointer in dests (mirroring PackSSH2's encodings).
func UnpackSSH2(b []byte, dests ...interface{}) error {
	buf := NewBuffer(b)
	for _, d := range dests {
		switch t := d.(type) {
		case *string:
			v, err := buf.ReadCString()
			if err != nil {
				return err
			}
			*t = v
		case *[]byte:
			v, err := buf.ReadString()
			if err != nil {
				return err
			}
			*t = v
		case *uint32:
			v, err := buf.ReadUint32()
			if err != nil {
				return err
			}
			*t = v
		case *uint64:
			v, err := buf.ReadUint64()
			if err != nil {
				return err
			}
			*t = v
		case *bool:
			v, err := buf.ReadBool()
			if err != nil {
				return err
			}
			*t = v
		case *byte:
			v, err := buf.ReadByte()
			if err != nil {
				return err
			}
			*t = v
		case *[]string:
			v, err := buf.ReadNameList()
			if err != nil {
				return err
			}
			*t = v
		case **bigint.BigInteger:
			v, err := buf.ReadMPInt()
			if err != nil {
				return err
			}
			*t = v
		default:
			return fmt.Errorf("wireutil: UnpackSSH2: unsupported type %T", d)
		}
	}
	return nil
}

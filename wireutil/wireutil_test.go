package wireutil

import (
	"bytes"
	"testing"

	"github.com/postalsys/gossh/bigint"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	packed, err := PackSSH2("ssh-rsa", uint32(42), true, []byte{1, 2, 3}, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("PackSSH2: %v", err)
	}

	var name string
	var n uint32
	var flag bool
	var raw []byte
	var list []string
	if err := UnpackSSH2(packed, &name, &n, &flag, &raw, &list); err != nil {
		t.Fatalf("UnpackSSH2: %v", err)
	}

	if name != "ssh-rsa" || n != 42 || !flag || !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Fatalf("round trip mismatch: %q %d %v %v", name, n, flag, raw)
	}
	if len(list) != 3 || list[0] != "a" || list[2] != "c" {
		t.Fatalf("name-list mismatch: %v", list)
	}
}

func TestMPIntRoundTripRFC4251Examples(t *testing.T) {
	// RFC 4251 §5 worked examples.
	cases := []struct {
		value int64
		want  []byte
	}{
		{0, []byte{0, 0, 0, 0}},
		{0x9a378f9b2e332a7, []byte{0, 0, 0, 8, 0x09, 0xa3, 0x78, 0xf9, 0xb2, 0xe3, 0x32, 0xa7}},
		{0x80, []byte{0, 0, 0, 2, 0x00, 0x80}},
		{-0x1234, []byte{0, 0, 0, 2, 0xed, 0xcc}},
	}
	for _, c := range cases {
		n := bigint.New(c.value)
		got, err := PackSSH2(n)
		if err != nil {
			t.Fatalf("PackSSH2(%d): %v", c.value, err)
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("PackSSH2(%d) = % x, want % x", c.value, got, c.want)
		}

		var out *bigint.BigInteger
		if err := UnpackSSH2(got, &out); err != nil {
			t.Fatalf("UnpackSSH2(%d): %v", c.value, err)
		}
		if out.Int64() != c.value {
			t.Errorf("round trip %d -> %d", c.value, out.Int64())
		}
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare([]byte("abc"), []byte("abc")) {
		t.Error("expected equal")
	}
	if ConstantTimeCompare([]byte("abc"), []byte("abd")) {
		t.Error("expected not equal")
	}
	if ConstantTimeCompare([]byte("ab"), []byte("abc")) {
		t.Error("expected length mismatch to be unequal")
	}
}

func TestIncrement(t *testing.T) {
	b := []byte{0x00, 0x00, 0xff}
	Increment(b)
	if !bytes.Equal(b, []byte{0x00, 0x01, 0x00}) {
		t.Errorf("Increment = % x, want 00 01 00", b)
	}

	overflow := []byte{0xff, 0xff}
	Increment(overflow)
	if !bytes.Equal(overflow, []byte{0x00, 0x00}) {
		t.Errorf("Increment overflow = % x, want 00 00", overflow)
	}
}

func TestInc32LeavesPrefixAlone(t *testing.T) {
	nonce := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x00, 0x00, 0x00, 0x01}
	Inc32(nonce)
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x00, 0x00, 0x00, 0x02}
	if !bytes.Equal(nonce, want) {
		t.Errorf("Inc32 = % x, want % x", nonce, want)
	}
}

func TestBufferShortReadError(t *testing.T) {
	buf := NewBuffer([]byte{0, 0, 0, 5, 1, 2})
	if _, err := buf.ReadString(); err != ErrShortBuffer {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

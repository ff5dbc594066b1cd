package asn1go

import (
	"bytes"
	"testing"
)

func TestPEMRoundTrip(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x05}
	armored := EncodePEM("CERTIFICATE", der)

	label, got, err := DecodePEM(armored)
	if err != nil {
		t.Fatalf("DecodePEM: %v", err)
	}
	if label != "CERTIFICATE" {
		t.Fatalf("got label %q", label)
	}
	if !bytes.Equal(got, der) {
		t.Fatalf("got %x want %x", got, der)
	}
}

func TestLoadDocumentDetectsRawDER(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x05}
	got, err := LoadDocument(der)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, der) {
		t.Fatalf("got %x want %x", got, der)
	}
}

func TestLoadDocumentDetectsPEM(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x05}
	armored := EncodePEM("CERTIFICATE", der)
	got, err := LoadDocument(armored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, der) {
		t.Fatalf("got %x want %x", got, der)
	}
}

func TestDecodePEMRejectsNonPEM(t *testing.T) {
	if _, _, err := DecodePEM([]byte("not pem at all")); err == nil {
		t.Fatalf("expected error for non-PEM input")
	}
}

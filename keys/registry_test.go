package keys

import (
	"bytes"
	"testing"
)

type fakePlugin struct {
	name   string
	prefix []byte
}

func (p *fakePlugin) Name() string { return p.name }
func (p *fakePlugin) Sniff(data []byte) bool {
	return bytes.HasPrefix(data, p.prefix)
}
func (p *fakePlugin) Load(data []byte, password []byte) (*KeyPair, error) {
	return &KeyPair{Algorithm: RSA, Comment: string(data[len(p.prefix):])}, nil
}

func TestRegisterAndLoadKeyBySniffing(t *testing.T) {
	RegisterFormat(&fakePlugin{name: "fake-test-format", prefix: []byte("FAKEFMT:")})

	kp, err := LoadKey([]byte("FAKEFMT:hello"), nil)
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if kp.Comment != "hello" {
		t.Fatalf("got comment %q", kp.Comment)
	}
}

func TestLoadKeyAsBypassesSniffing(t *testing.T) {
	RegisterFormat(&fakePlugin{name: "fake-test-format-2", prefix: []byte("OTHER:")})
	kp, err := LoadKeyAs("fake-test-format-2", []byte("OTHER:world"), nil)
	if err != nil {
		t.Fatalf("LoadKeyAs: %v", err)
	}
	if kp.Comment != "world" {
		t.Fatalf("got comment %q", kp.Comment)
	}
}

func TestLoadKeyReturnsPluginNotFound(t *testing.T) {
	_, err := LoadKey([]byte("totally unrecognized bytes"), nil)
	if err == nil {
		t.Fatalf("expected ErrPluginNotFound")
	}
}

func TestFormatByNameMissing(t *testing.T) {
	if _, ok := FormatByName("does-not-exist"); ok {
		t.Fatalf("expected lookup miss")
	}
}

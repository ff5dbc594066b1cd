package keys

import (
	"fmt"
	"sync"
)

// KeyPair bundles a decoded key's public and (if present) private half,
// the shape every format plugin's Load returns.
type KeyPair struct {
	Algorithm Algorithm
	Public    PublicKey
	Private   PrivateKey // nil for public-key-only documents
	Comment   string
}

// FormatPlugin is implemented by each supported on-disk key encoding
// (PKCS#1, PKCS#8, OpenSSH, PuTTY, JWK, raw SSH2 wire, ...). Per spec §9's
// "plugin registries vs runtime class discovery" note, plugins are
// registered explicitly at init time rather than discovered by
// reflection, so the set of supported formats is always a fixed,
// auditable list.
type FormatPlugin interface {
	// Name is the plugin's registry key, e.g. "pkcs1", "openssh-private".
	Name() string
	// Sniff reports whether data looks like this plugin's format, without
	// fully parsing it (e.g. checking a PEM label or magic prefix).
	Sniff(data []byte) bool
	// Load parses data into a KeyPair, using password to decrypt if the
	// document is encrypted and password is non-empty.
	Load(data []byte, password []byte) (*KeyPair, error)
}

// SavingFormatPlugin is implemented by plugins that can also serialize a
// KeyPair back to their on-disk format.
type SavingFormatPlugin interface {
	FormatPlugin
	Save(kp *KeyPair, password []byte) ([]byte, error)
}

type registry struct {
	mu      sync.RWMutex
	plugins []FormatPlugin
	byName  map[string]FormatPlugin
}

var formatRegistry = &registry{byName: make(map[string]FormatPlugin)}

// RegisterFormat adds a format plugin to the global registry. Intended to
// be called from each format's init() function.
func RegisterFormat(p FormatPlugin) {
	formatRegistry.mu.Lock()
	defer formatRegistry.mu.Unlock()
	formatRegistry.plugins = append(formatRegistry.plugins, p)
	formatRegistry.byName[p.Name()] = p
}

// FormatByName looks up a registered plugin by its exact name.
func FormatByName(name string) (FormatPlugin, bool) {
	formatRegistry.mu.RLock()
	defer formatRegistry.mu.RUnlock()
	p, ok := formatRegistry.byName[name]
	return p, ok
}

// LoadKey tries every registered plugin's Sniff against data in
// registration order and parses with the first match. Pass a nil
// password for unencrypted documents.
func LoadKey(data []byte, password []byte) (*KeyPair, error) {
	formatRegistry.mu.RLock()
	candidates := make([]FormatPlugin, len(formatRegistry.plugins))
	copy(candidates, formatRegistry.plugins)
	formatRegistry.mu.RUnlock()

	for _, p := range candidates {
		if p.Sniff(data) {
			kp, err := p.Load(data, password)
			if err != nil {
				return nil, fmt.Errorf("keys: %s: %w", p.Name(), err)
			}
			return kp, nil
		}
	}
	return nil, ErrPluginNotFound
}

// LoadKeyAs parses data using a specific named plugin, bypassing sniffing.
func LoadKeyAs(name string, data []byte, password []byte) (*KeyPair, error) {
	p, ok := FormatByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPluginNotFound, name)
	}
	return p.Load(data, password)
}

// SaveKeyAs serializes kp using a specific named plugin that supports
// saving.
func SaveKeyAs(name string, kp *KeyPair, password []byte) ([]byte, error) {
	p, ok := FormatByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPluginNotFound, name)
	}
	sp, ok := p.(SavingFormatPlugin)
	if !ok {
		return nil, fmt.Errorf("keys: format %q does not support saving", name)
	}
	return sp.Save(kp, password)
}

// SignatureCodec is implemented by each signature-format plugin (spec
// §4.5): it converts between an algorithm's native raw signature (what
// PrivateKey.Sign returns and PublicKey.Verify expects) and one of the
// interchange serializations (IEEE-P1363, ASN.1 DER, SSH2 wire).
type SignatureCodec interface {
	Format() SignatureFormat
	// Encode converts a native raw signature to this format.
	Encode(alg Algorithm, raw []byte) ([]byte, error)
	// Decode converts this format back to the algorithm's native raw form.
	Decode(alg Algorithm, encoded []byte) ([]byte, error)
}

var signatureCodecs = map[SignatureFormat]SignatureCodec{}
var signatureCodecsMu sync.RWMutex

// RegisterSignatureCodec adds a signature-format plugin to the global
// registry.
func RegisterSignatureCodec(c SignatureCodec) {
	signatureCodecsMu.Lock()
	defer signatureCodecsMu.Unlock()
	signatureCodecs[c.Format()] = c
}

// SignatureCodecFor looks up the codec registered for a signature format.
func SignatureCodecFor(format SignatureFormat) (SignatureCodec, bool) {
	signatureCodecsMu.RLock()
	defer signatureCodecsMu.RUnlock()
	c, ok := signatureCodecs[format]
	return c, ok
}

package ssh

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/postalsys/gossh/keys"
)

// HostKeyCallback is consulted once per connection with the server's raw
// SSH2 host-key blob (spec §4.1 "getServerPublicHostKey"). Returning a
// non-nil error aborts the handshake.
type HostKeyCallback func(hostname string, remote net.Addr, key []byte) error

// FixedHostKey returns a callback that accepts the connection only if the
// server's host key blob matches exactly the one pinned here.
func FixedHostKey(pinned []byte) HostKeyCallback {
	expected := append([]byte(nil), pinned...)
	return func(hostname string, remote net.Addr, key []byte) error {
		if !constantTimeEqual(key, expected) {
			return fmt.Errorf("ssh: host key for %q does not match pinned key (%s)",
				hostname, keys.FingerprintSHA256(key))
		}
		return nil
	}
}

// InsecureIgnoreHostKey returns a callback that accepts any host key
// without verification. Present for parity with the ecosystem client
// libraries' escape hatch of the same name; callers should prefer
// FixedHostKey or KnownHosts in production.
func InsecureIgnoreHostKey() HostKeyCallback {
	return func(string, net.Addr, []byte) error { return nil }
}

// KnownHosts implements trust-on-first-use host-key verification backed by
// an OpenSSH-style known_hosts file: "hostname keytype base64key" per line.
// A hostname never seen before is recorded and accepted; a hostname seen
// before with a different key is rejected.
type KnownHosts struct {
	path string

	mu      sync.Mutex
	entries map[string][]byte // hostname -> raw key blob
}

// NewKnownHosts loads (or, if absent, prepares to create) a known_hosts
// file at path.
func NewKnownHosts(path string) (*KnownHosts, error) {
	kh := &KnownHosts{path: path, entries: make(map[string][]byte)}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return kh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ssh: opening known_hosts: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		blob, err := decodeBase64Key(fields[2])
		if err != nil {
			continue
		}
		kh.entries[fields[0]] = blob
	}
	return kh, sc.Err()
}

// Callback returns a HostKeyCallback implementing TOFU against this store.
func (kh *KnownHosts) Callback() HostKeyCallback {
	return func(hostname string, remote net.Addr, key []byte) error {
		kh.mu.Lock()
		defer kh.mu.Unlock()

		if existing, ok := kh.entries[hostname]; ok {
			if constantTimeEqual(existing, key) {
				return nil
			}
			return fmt.Errorf("ssh: REMOTE HOST IDENTIFICATION HAS CHANGED for %q (%s != recorded key)",
				hostname, keys.FingerprintSHA256(key))
		}

		kh.entries[hostname] = append([]byte(nil), key...)
		return kh.append(hostname, key)
	}
}

func (kh *KnownHosts) append(hostname string, key []byte) error {
	f, err := os.OpenFile(kh.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("ssh: recording known_hosts entry: %w", err)
	}
	defer f.Close()
	line := fmt.Sprintf("%s ssh-ed25519 %s\n", hostname, encodeBase64Key(key))
	_, err = f.WriteString(line)
	return err
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

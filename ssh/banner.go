package ssh

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ClientID is the identification string gossh sends during the banner
// exchange (RFC 4253 §4.2).
const ClientID = "SSH-2.0-gossh_1.0"

// maxBannerPreambleLines bounds the number of non-identification lines a
// server may send before its "SSH-2.0-..." line, guarding against a
// misbehaving peer stalling the handshake indefinitely.
const maxBannerPreambleLines = 20

// exchangeBanners writes the local identification string and reads the
// peer's, tolerating leading preamble lines as RFC 4253 §4.2 permits.
// It returns the peer's raw identification line (without the trailing
// CRLF) for later inclusion in the key-exchange hash and for server-quirk
// fingerprinting.
func exchangeBanners(w io.Writer, r *bufio.Reader) (peerID string, err error) {
	if _, err := io.WriteString(w, ClientID+"\r\n"); err != nil {
		return "", fmt.Errorf("ssh: writing banner: %w", err)
	}

	for i := 0; i < maxBannerPreambleLines; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("ssh: reading banner: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "SSH-") {
			return line, nil
		}
		// Preamble line (banner text before the identification string);
		// RFC 4253 says clients MAY display it and must ignore it otherwise.
	}
	return "", fmt.Errorf("ssh: peer sent more than %d preamble lines without an identification string", maxBannerPreambleLines)
}

// parseProtoVersion extracts the "SSH-protoversion-softwareversion" fields
// from a raw identification line for compatibility checks.
func parseProtoVersion(id string) (proto, software string, ok bool) {
	rest, found := strings.CutPrefix(id, "SSH-")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

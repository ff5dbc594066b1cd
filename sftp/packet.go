// Package sftp implements the SFTP file transfer protocol (versions 3-6)
// as a subsystem layered over an ssh.Session, grounded on the same
// wireutil wire-format primitives and request/response correlation idiom
// ssh/mux.go uses for RFC 4254 channel multiplexing.
package sftp

import (
	"fmt"

	"github.com/postalsys/gossh/wireutil"
)

// Packet types (draft-ietf-secsh-filexfer, the de facto v3 wire format
// every OpenSSH server speaks; v4-v6 only add attribute flags and a few
// status codes, not new packet types gossh needs).
const (
	fxpInit    = 1
	fxpVersion = 2

	fxpOpen     = 3
	fxpClose    = 4
	fxpRead     = 5
	fxpWrite    = 6
	fxpLstat    = 7
	fxpFstat    = 8
	fxpSetstat  = 9
	fxpFsetstat = 10
	fxpOpendir  = 11
	fxpReaddir  = 12
	fxpRemove   = 13
	fxpMkdir    = 14
	fxpRmdir    = 15
	fxpRealpath = 16
	fxpStat     = 17
	fxpRename   = 18
	fxpReadlink = 19
	fxpSymlink  = 20

	fxpStatus = 101
	fxpHandle = 102
	fxpData   = 103
	fxpName   = 104
	fxpAttrs  = 105

	fxpExtended      = 200
	fxpExtendedReply = 201
)

// Status codes (SSH_FX_*).
const (
	StatusOK = iota
	StatusEOF
	StatusNoSuchFile
	StatusPermissionDenied
	StatusFailure
	StatusBadMessage
	StatusNoConnection
	StatusConnectionLost
	StatusOpUnsupported
)

// Open flags (SSH_FXF_*, v3 wire values -- gossh speaks v3 on the wire
// regardless of the version it negotiates, same as OpenSSH's sftp-server
// fallback behavior).
const (
	FlagRead      = 0x00000001
	FlagWrite     = 0x00000002
	FlagAppend    = 0x00000004
	FlagCreate    = 0x00000008
	FlagTruncate  = 0x00000010
	FlagExclusive = 0x00000020
)

// ClientVersion is the protocol version gossh's client advertises in
// SSH_FXP_INIT. Servers are free to reply with a lower version; gossh
// then restricts itself to the v3 packet subset, which every version
// still understands.
const ClientVersion = 3

// StatusError wraps a SSH_FXP_STATUS reply carrying a non-OK code, the
// shape every SFTP operation that fails returns.
type StatusError struct {
	Code    uint32
	Message string
	Lang    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sftp: status %d: %s", e.Code, e.Message)
}

// IsNotExist reports whether err is a StatusError for SSH_FX_NO_SUCH_FILE.
func IsNotExist(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == StatusNoSuchFile
}

// packetHeader prefixes every SFTP packet on the wire: a uint32 length
// (not counting itself) followed by a one-byte packet type.
func encodePacket(pktType byte, body []byte) []byte {
	b := wireutil.NewBuilder().WriteUint32(uint32(len(body) + 1)).WriteByte(pktType)
	b.WriteRaw(body)
	return b.Bytes()
}

func decodeStatus(buf *wireutil.Buffer) (*StatusError, error) {
	code, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	msg, _ := buf.ReadString()
	lang, _ := buf.ReadString()
	return &StatusError{Code: code, Message: string(msg), Lang: string(lang)}, nil
}

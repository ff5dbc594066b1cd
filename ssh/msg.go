// Package ssh implements the SSH2 transport layer, user authentication,
// connection protocol (channel multiplexing), and the interactive clients
// (exec/shell/pty, port forwarding) built on top of it (spec component C8).
//
// The wire-level framing follows RFC 4253 (transport), RFC 4252 (user
// auth), and RFC 4254 (connection protocol). Message type constants below
// mirror the flat const-block-plus-Name-helper idiom used for the mesh
// protocol's frame/control types, generalized to the SSH wire format.
package ssh

// Transport layer message numbers (RFC 4253 §12).
const (
	MsgDisconnect    uint8 = 1
	MsgIgnore        uint8 = 2
	MsgUnimplemented uint8 = 3
	MsgDebug         uint8 = 4
	MsgServiceRequest uint8 = 5
	MsgServiceAccept  uint8 = 6
	MsgKexInit       uint8 = 20
	MsgNewKeys       uint8 = 21
)

// Key-exchange method specific message numbers (RFC 4253 §8, RFC 5656).
const (
	MsgKexdhInit  uint8 = 30
	MsgKexdhReply uint8 = 31

	MsgKexdhGexRequestOld uint8 = 30
	MsgKexdhGexGroup      uint8 = 31
	MsgKexdhGexInit       uint8 = 32
	MsgKexdhGexReply      uint8 = 33
	MsgKexdhGexRequest    uint8 = 34

	MsgKexEcdhInit  uint8 = 30
	MsgKexEcdhReply uint8 = 31
)

// User authentication protocol message numbers (RFC 4252 §6).
const (
	MsgUserauthRequest  uint8 = 50
	MsgUserauthFailure  uint8 = 51
	MsgUserauthSuccess  uint8 = 52
	MsgUserauthBanner   uint8 = 53
	MsgUserauthPKOK     uint8 = 60
	MsgUserauthPasswdChangereq uint8 = 60
	MsgUserauthInfoRequest     uint8 = 60
	MsgUserauthInfoResponse    uint8 = 61
)

// Connection protocol message numbers (RFC 4254 §9).
const (
	MsgGlobalRequest      uint8 = 80
	MsgRequestSuccess     uint8 = 81
	MsgRequestFailure     uint8 = 82
	MsgChannelOpen        uint8 = 90
	MsgChannelOpenConfirm uint8 = 91
	MsgChannelOpenFailure uint8 = 92
	MsgChannelWindowAdjust uint8 = 93
	MsgChannelData        uint8 = 94
	MsgChannelExtendedData uint8 = 95
	MsgChannelEOF         uint8 = 96
	MsgChannelClose       uint8 = 97
	MsgChannelRequest     uint8 = 98
	MsgChannelSuccess     uint8 = 99
	MsgChannelFailure     uint8 = 100
)

// MsgName returns a human-readable name for a transport message type,
// mirroring the mesh protocol's FrameTypeName/ControlTypeName helpers.
func MsgName(t uint8) string {
	switch t {
	case MsgDisconnect:
		return "DISCONNECT"
	case MsgIgnore:
		return "IGNORE"
	case MsgUnimplemented:
		return "UNIMPLEMENTED"
	case MsgDebug:
		return "DEBUG"
	case MsgServiceRequest:
		return "SERVICE_REQUEST"
	case MsgServiceAccept:
		return "SERVICE_ACCEPT"
	case MsgKexInit:
		return "KEXINIT"
	case MsgNewKeys:
		return "NEWKEYS"
	case MsgUserauthRequest:
		return "USERAUTH_REQUEST"
	case MsgUserauthFailure:
		return "USERAUTH_FAILURE"
	case MsgUserauthSuccess:
		return "USERAUTH_SUCCESS"
	case MsgUserauthBanner:
		return "USERAUTH_BANNER"
	case MsgGlobalRequest:
		return "GLOBAL_REQUEST"
	case MsgRequestSuccess:
		return "REQUEST_SUCCESS"
	case MsgRequestFailure:
		return "REQUEST_FAILURE"
	case MsgChannelOpen:
		return "CHANNEL_OPEN"
	case MsgChannelOpenConfirm:
		return "CHANNEL_OPEN_CONFIRMATION"
	case MsgChannelOpenFailure:
		return "CHANNEL_OPEN_FAILURE"
	case MsgChannelWindowAdjust:
		return "CHANNEL_WINDOW_ADJUST"
	case MsgChannelData:
		return "CHANNEL_DATA"
	case MsgChannelExtendedData:
		return "CHANNEL_EXTENDED_DATA"
	case MsgChannelEOF:
		return "CHANNEL_EOF"
	case MsgChannelClose:
		return "CHANNEL_CLOSE"
	case MsgChannelRequest:
		return "CHANNEL_REQUEST"
	case MsgChannelSuccess:
		return "CHANNEL_SUCCESS"
	case MsgChannelFailure:
		return "CHANNEL_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Disconnect reason codes (RFC 4253 §11.1).
const (
	DisconnectProtocolError      uint32 = 2
	DisconnectMACError           uint32 = 6
	DisconnectCompressionError   uint32 = 7
	DisconnectKeyExchangeFailed  uint32 = 3
	DisconnectHostKeyNotVerifiable uint32 = 11
	DisconnectConnectionLost     uint32 = 10
	DisconnectByApplication      uint32 = 11
	DisconnectTooManyConnections uint32 = 5
)

// Channel open failure reason codes (RFC 4254 §5.1).
const (
	OpenAdministrativelyProhibited uint32 = 1
	OpenConnectFailed              uint32 = 2
	OpenUnknownChannelType          uint32 = 3
	OpenResourceShortage             uint32 = 4
)

// ExtendedDataTypeStderr is the only extended-data type defined by RFC 4254.
const ExtendedDataTypeStderr uint32 = 1

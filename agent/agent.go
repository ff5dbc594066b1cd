// Package agent implements an SSH agent protocol client (the
// draft-miller-ssh-agent wire format every OpenSSH ssh-agent and
// credential helper speaks), layered over the same wireutil primitives
// ssh/ and sftp/ use for their own wire formats.
package agent

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/postalsys/gossh/wireutil"
)

// Message numbers (SSH_AGENTC_*/SSH_AGENT_*, draft-miller-ssh-agent §3).
const (
	agentcRequestIdentities = 11
	agentIdentitiesAnswer   = 12
	agentcSignRequest       = 13
	agentSignResponse       = 14
	agentcAddIdentity       = 17
	agentcRemoveIdentity    = 18
	agentcRemoveAllIdentities = 19

	agentFailure = 5
	agentSuccess = 6
)

// Signature flags for SSH_AGENTC_SIGN_REQUEST (RFC 8332 §4, for RSA
// agents that support rsa-sha2-256/512 instead of only ssh-rsa).
const (
	SigFlagRSASHA256 = 1 << 1
	SigFlagRSASHA512 = 1 << 2
)

// Identity is one key the agent holds, as returned by List.
type Identity struct {
	Blob    []byte // SSH2 wire public key blob
	Comment string
}

// Client talks to a running ssh-agent over conn (typically a Unix domain
// socket dialed from $SSH_AUTH_SOCK).
type Client struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewClient wraps an already-connected agent socket.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Dial connects to the agent listening on a Unix domain socket, the usual
// $SSH_AUTH_SOCK transport.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("agent: dialing %s: %w", socketPath, err)
	}
	return NewClient(conn), nil
}

func (c *Client) Close() error { return c.conn.Close() }

// roundTrip sends one framed request and returns the framed reply's
// message number and body.
func (c *Client) roundTrip(msgType byte, body []byte) (byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pkt := wireutil.NewBuilder().WriteUint32(uint32(len(body) + 1)).WriteByte(msgType)
	pkt.WriteRaw(body)
	if _, err := c.conn.Write(pkt.Bytes()); err != nil {
		return 0, nil, fmt.Errorf("agent: writing request: %w", err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("agent: reading reply length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > 256*1024 {
		return 0, nil, fmt.Errorf("agent: implausible reply length %d", n)
	}
	reply := make([]byte, n)
	if _, err := io.ReadFull(c.conn, reply); err != nil {
		return 0, nil, fmt.Errorf("agent: reading reply body: %w", err)
	}
	return reply[0], reply[1:], nil
}

// List requests the agent's held identities (SSH_AGENTC_REQUEST_IDENTITIES).
func (c *Client) List() ([]Identity, error) {
	msgType, body, err := c.roundTrip(agentcRequestIdentities, nil)
	if err != nil {
		return nil, err
	}
	if msgType == agentFailure {
		return nil, fmt.Errorf("agent: request for identities failed")
	}
	if msgType != agentIdentitiesAnswer {
		return nil, fmt.Errorf("agent: expected IDENTITIES_ANSWER, got message type %d", msgType)
	}

	buf := wireutil.NewBuffer(body)
	count, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	identities := make([]Identity, 0, count)
	for i := uint32(0); i < count; i++ {
		blob, err := buf.ReadString()
		if err != nil {
			return nil, fmt.Errorf("agent: reading identity %d blob: %w", i, err)
		}
		comment, err := buf.ReadString()
		if err != nil {
			return nil, fmt.Errorf("agent: reading identity %d comment: %w", i, err)
		}
		identities = append(identities, Identity{Blob: append([]byte(nil), blob...), Comment: string(comment)})
	}
	return identities, nil
}

// Sign asks the agent to sign data with the private key matching keyBlob
// (SSH_AGENTC_SIGN_REQUEST), returning the SSH2 wire signature blob
// ("ssh-rsa"/"rsa-sha2-256"/"ssh-ed25519"/etc. followed by the raw
// signature, per RFC 4253 §6.6).
func (c *Client) Sign(keyBlob, data []byte, flags uint32) ([]byte, error) {
	body := wireutil.NewBuilder().WriteString(keyBlob).WriteString(data).WriteUint32(flags).Bytes()
	msgType, respBody, err := c.roundTrip(agentcSignRequest, body)
	if err != nil {
		return nil, err
	}
	if msgType == agentFailure {
		return nil, fmt.Errorf("agent: sign request refused")
	}
	if msgType != agentSignResponse {
		return nil, fmt.Errorf("agent: expected SIGN_RESPONSE, got message type %d", msgType)
	}
	buf := wireutil.NewBuffer(respBody)
	sig, err := buf.ReadString()
	if err != nil {
		return nil, fmt.Errorf("agent: reading signature: %w", err)
	}
	return sig, nil
}

// RemoveAll asks the agent to forget every identity it holds
// (SSH_AGENTC_REMOVE_ALL_IDENTITIES).
func (c *Client) RemoveAll() error {
	msgType, _, err := c.roundTrip(agentcRemoveAllIdentities, nil)
	if err != nil {
		return err
	}
	if msgType != agentSuccess {
		return fmt.Errorf("agent: remove-all-identities failed")
	}
	return nil
}

// Remove asks the agent to forget the identity matching keyBlob
// (SSH_AGENTC_REMOVE_IDENTITY).
func (c *Client) Remove(keyBlob []byte) error {
	body := wireutil.NewBuilder().WriteString(keyBlob).Bytes()
	msgType, _, err := c.roundTrip(agentcRemoveIdentity, body)
	if err != nil {
		return err
	}
	if msgType != agentSuccess {
		return fmt.Errorf("agent: remove-identity failed")
	}
	return nil
}

// AddIdentity uploads a private key to the agent (SSH_AGENTC_ADD_IDENTITY).
// keyBlob carries the agent's own key-type-specific private key encoding
// (draft-miller-ssh-agent §3.2), distinct from the SSH2 public key wire
// format Sign/Remove use -- callers building this blob are responsible for
// matching the agent's expected per-algorithm layout.
func (c *Client) AddIdentity(keyBlob []byte, comment string) error {
	body := wireutil.NewBuilder().WriteRaw(keyBlob).WriteCString(comment).Bytes()
	msgType, _, err := c.roundTrip(agentcAddIdentity, body)
	if err != nil {
		return err
	}
	if msgType != agentSuccess {
		return fmt.Errorf("agent: add-identity failed")
	}
	return nil
}

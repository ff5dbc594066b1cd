package agent

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/postalsys/gossh/wireutil"
)

// fakeAgentServer plays the role of ssh-agent on one end of a net.Pipe,
// answering exactly the request types the tests below send.
func fakeAgentServer(t *testing.T, conn net.Conn, handle func(msgType byte, body []byte) (byte, []byte)) {
	t.Helper()
	go func() {
		for {
			var lenBuf [4]byte
			if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
				return
			}
			n := binary.BigEndian.Uint32(lenBuf[:])
			body := make([]byte, n)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
			replyType, replyBody := handle(body[0], body[1:])
			pkt := wireutil.NewBuilder().WriteUint32(uint32(len(replyBody) + 1)).WriteByte(replyType)
			pkt.WriteRaw(replyBody)
			if _, err := conn.Write(pkt.Bytes()); err != nil {
				return
			}
		}
	}()
}

func TestListReturnsIdentities(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	fakeAgentServer(t, serverConn, func(msgType byte, body []byte) (byte, []byte) {
		if msgType != agentcRequestIdentities {
			t.Fatalf("unexpected message type %d", msgType)
		}
		resp := wireutil.NewBuilder().WriteUint32(1).
			WriteString([]byte("fake-key-blob")).WriteCString("user@host")
		return agentIdentitiesAnswer, resp.Bytes()
	})

	c := NewClient(clientConn)
	ids, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0].Comment != "user@host" || string(ids[0].Blob) != "fake-key-blob" {
		t.Fatalf("unexpected identities: %+v", ids)
	}
}

func TestSignReturnsSignatureBlob(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	fakeAgentServer(t, serverConn, func(msgType byte, body []byte) (byte, []byte) {
		if msgType != agentcSignRequest {
			t.Fatalf("unexpected message type %d", msgType)
		}
		buf := wireutil.NewBuffer(body)
		keyBlob, _ := buf.ReadString()
		if string(keyBlob) != "the-key" {
			t.Fatalf("unexpected key blob %q", keyBlob)
		}
		resp := wireutil.NewBuilder().WriteString([]byte("ssh-ed25519-sig-bytes"))
		return agentSignResponse, resp.Bytes()
	})

	c := NewClient(clientConn)
	sig, err := c.Sign([]byte("the-key"), []byte("data to sign"), 0)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if string(sig) != "ssh-ed25519-sig-bytes" {
		t.Fatalf("unexpected signature %q", sig)
	}
}

func TestSignPropagatesAgentFailure(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	fakeAgentServer(t, serverConn, func(msgType byte, body []byte) (byte, []byte) {
		return agentFailure, nil
	})

	c := NewClient(clientConn)
	_, err := c.Sign([]byte("the-key"), []byte("data"), 0)
	if err == nil {
		t.Fatalf("expected an error when the agent reports failure")
	}
}

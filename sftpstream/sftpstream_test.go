package sftpstream

import (
	"bytes"
	"io"
	"testing"

	"github.com/postalsys/gossh/sftp"
	"github.com/postalsys/gossh/wireutil"
)

type pipeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipeConn) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeConn) Write(b []byte) (int, error) { return p.w.Write(b) }

func newPipePair() (clientSide, serverSide pipeConn) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	return pipeConn{r: cr, w: cw}, pipeConn{r: sr, w: sw}
}

// readPacket mirrors sftp's internal framing just enough to drive a fake
// server from this package's own tests (sftp's framing helpers are
// unexported).
func readPacket(r io.Reader) (byte, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

func encodePacket(pktType byte, body []byte) []byte {
	b := wireutil.NewBuilder().WriteUint32(uint32(len(body) + 1)).WriteByte(pktType)
	b.WriteRaw(body)
	return b.Bytes()
}

const (
	fxpInit    = 1
	fxpVersion = 2
	fxpOpen    = 3
	fxpClose   = 4
	fxpRead    = 5
	fxpWrite   = 6
	fxpHandle  = 102
	fxpData    = 103
	fxpStatus  = 101
)

func TestStreamReadWriteOverFakeServer(t *testing.T) {
	clientSide, serverSide := newPipePair()
	content := []byte("stream this data through sftp")

	go func() {
		_, _, _ = readPacket(serverSide)
		serverSide.Write(encodePacket(fxpVersion, wireutil.NewBuilder().WriteUint32(3).Bytes()))

		for {
			pktType, body, err := readPacket(serverSide)
			if err != nil {
				return
			}
			id := uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
			switch pktType {
			case fxpOpen:
				serverSide.Write(encodePacket(fxpHandle, wireutil.NewBuilder().WriteUint32(id).WriteCString("h").Bytes()))
			case fxpRead:
				buf := wireutil.NewBuffer(body[4:])
				buf.ReadString() // handle
				offset, _ := buf.ReadUint64()
				if int(offset) >= len(content) {
					serverSide.Write(encodePacket(fxpStatus, wireutil.NewBuilder().WriteUint32(id).WriteUint32(1).WriteCString("EOF").WriteCString("").Bytes()))
					continue
				}
				end := int(offset) + 8
				if end > len(content) {
					end = len(content)
				}
				serverSide.Write(encodePacket(fxpData, wireutil.NewBuilder().WriteUint32(id).WriteString(content[offset:end]).Bytes()))
			case fxpClose:
				serverSide.Write(encodePacket(fxpStatus, wireutil.NewBuilder().WriteUint32(id).WriteUint32(0).WriteCString("").WriteCString("").Bytes()))
			}
		}
	}()

	c, err := sftp.NewClient(clientSide)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	f, err := c.OpenRead("/tmp/data.bin")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	stream := New(f)

	var out bytes.Buffer
	if _, err := io.Copy(&out, stream); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if out.String() != string(content) {
		t.Fatalf("got %q, want %q", out.String(), content)
	}
}

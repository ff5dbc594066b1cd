package sftp

import (
	"fmt"
	"io"
	"os"

	"github.com/postalsys/gossh/wireutil"
)

// maxPacketData is the read/write chunk size gossh requests per
// SSH_FXP_READ/WRITE; OpenSSH's own sftp-server caps packets well under
// 256KiB, so this stays comfortably inside every server's limit.
const maxPacketData = 32 * 1024

// File is an open SFTP file handle, implementing io.ReadWriteCloser and
// io.Seeker the way os.File does, so callers can pass it anywhere a local
// file would go.
type File struct {
	c      *Client
	handle string
	path   string
	offset int64
}

// Open opens path on the server with the given SSH_FXF_* flags.
func (c *Client) Open(path string, flags uint32, perm os.FileMode) (*File, error) {
	b := wireutil.NewBuilder().WriteCString(path).WriteUint32(flags)
	encodeAttrs(b, Attributes{HasPermissions: true, Permissions: uint32(perm.Perm())})
	handle, err := c.expectHandle(fxpOpen, b.Bytes())
	if err != nil {
		return nil, err
	}
	return &File{c: c, handle: handle, path: path}, nil
}

// Create opens path for writing, truncating or creating it.
func (c *Client) Create(path string) (*File, error) {
	return c.Open(path, FlagWrite|FlagCreate|FlagTruncate, 0644)
}

// OpenRead opens path read-only.
func (c *Client) OpenRead(path string) (*File, error) {
	return c.Open(path, FlagRead, 0)
}

// Read implements io.Reader via SSH_FXP_READ at the file's current offset.
func (f *File) Read(p []byte) (int, error) {
	if len(p) > maxPacketData {
		p = p[:maxPacketData]
	}
	body := wireutil.NewBuilder().WriteCString(f.handle).WriteUint64(uint64(f.offset)).WriteUint32(uint32(len(p))).Bytes()
	r, err := f.c.request(fxpRead, body)
	if err != nil {
		return 0, err
	}
	switch r.pktType {
	case fxpData:
		data, err := r.buf.ReadString()
		if err != nil {
			return 0, err
		}
		n := copy(p, data)
		f.offset += int64(n)
		return n, nil
	case fxpStatus:
		se, err := decodeStatus(r.buf)
		if err != nil {
			return 0, err
		}
		if se.Code == StatusEOF {
			return 0, io.EOF
		}
		return 0, se
	default:
		return 0, fmt.Errorf("sftp: expected DATA, got packet type %d", r.pktType)
	}
}

// Write implements io.Writer via SSH_FXP_WRITE at the file's current
// offset, chunking at maxPacketData.
func (f *File) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxPacketData {
			chunk = chunk[:maxPacketData]
		}
		body := wireutil.NewBuilder().WriteCString(f.handle).WriteUint64(uint64(f.offset)).WriteString(chunk).Bytes()
		if err := f.c.expectStatusOK(fxpWrite, body); err != nil {
			return written, err
		}
		f.offset += int64(len(chunk))
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

// Seek repositions the handle's next Read/Write offset. Only whence
// os.SEEK_SET/CUR/END are supported; END requires an extra Stat round
// trip to learn the file's current size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		attrs, err := f.c.Stat(f.path)
		if err != nil {
			return 0, err
		}
		f.offset = int64(attrs.Size) + offset
	default:
		return 0, fmt.Errorf("sftp: invalid whence %d", whence)
	}
	return f.offset, nil
}

// Close releases the server-side handle (SSH_FXP_CLOSE).
func (f *File) Close() error {
	return f.c.closeHandle(f.handle)
}

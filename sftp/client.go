package sftp

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/postalsys/gossh/wireutil"
)

// Conn is the minimal transport a Client needs: a bidirectional byte
// stream carrying the SFTP subsystem data. *ssh.Session satisfies this via
// its Stdin()/Stdout() pair once RequestSubsystem("sftp") has been called.
type Conn interface {
	io.Writer
	io.Reader
}

type sessionConn struct {
	w io.Writer
	r io.Reader
}

func (c sessionConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c sessionConn) Read(p []byte) (int, error)  { return c.r.Read(p) }

// reply is one pending request's eventual decoded response.
type reply struct {
	pktType byte
	buf     *wireutil.Buffer
	err     error
}

// Client is an SFTP client multiplexing request/response pairs over a
// single subsystem channel, the same correlate-by-ID idiom ssh/mux.go
// uses for RFC 4254 channel requests, generalized from channel IDs to
// SFTP's own request-id field.
type Client struct {
	conn    Conn
	version uint32

	nextID uint32

	mu      sync.Mutex
	pending map[uint32]chan reply

	writeMu sync.Mutex

	readErr chan error
	closed  chan struct{}
}

// NewClient performs the SSH_FXP_INIT/VERSION handshake over conn and
// starts the response dispatcher.
func NewClient(conn Conn) (*Client, error) {
	c := &Client{
		conn:    conn,
		pending: make(map[uint32]chan reply),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}

	initPkt := encodePacket(fxpInit, wireutil.NewBuilder().WriteUint32(ClientVersion).Bytes())
	if err := c.writeRaw(initPkt); err != nil {
		return nil, fmt.Errorf("sftp: sending INIT: %w", err)
	}

	pktType, body, err := readPacket(conn)
	if err != nil {
		return nil, fmt.Errorf("sftp: reading VERSION: %w", err)
	}
	if pktType != fxpVersion {
		return nil, fmt.Errorf("sftp: expected VERSION, got packet type %d", pktType)
	}
	buf := wireutil.NewBuffer(body)
	version, err := buf.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("sftp: malformed VERSION: %w", err)
	}
	c.version = version

	go c.readLoop()
	return c, nil
}

// NewSessionClient is the common case: open an SFTP subsystem on sess and
// wrap it in a Client.
func NewSessionClient(sess Session) (*Client, error) {
	if err := sess.RequestSubsystem("sftp"); err != nil {
		return nil, fmt.Errorf("sftp: requesting subsystem: %w", err)
	}
	return NewClient(sessionConn{w: sess.Stdin(), r: sess.Stdout()})
}

// Session is the subset of ssh.Session a Client needs; declared locally so
// this package does not import ssh (avoiding a dependency cycle with
// anything ssh eventually imports from sftp, e.g. sftpstream).
type Session interface {
	RequestSubsystem(name string) error
	Stdin() io.Writer
	Stdout() io.Reader
}

func readPacket(r io.Reader) (byte, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > 1<<20 {
		return 0, nil, fmt.Errorf("sftp: implausible packet length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

func (c *Client) writeRaw(pkt []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(pkt)
	return err
}

// readLoop owns the connection's receive side, demultiplexing replies to
// the pending channel their request-id registered, the same
// single-reader-feeds-many-waiters shape ssh.Client.readLoop uses for
// RFC 4254 channels.
func (c *Client) readLoop() {
	for {
		pktType, body, err := readPacket(c.conn)
		if err != nil {
			c.failAllPending(err)
			c.readErr <- err
			close(c.closed)
			return
		}
		if len(body) < 4 {
			continue
		}
		id := binary.BigEndian.Uint32(body[:4])
		buf := wireutil.NewBuffer(body[4:])

		c.mu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}
		ch <- reply{pktType: pktType, buf: buf}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- reply{err: err}
		delete(c.pending, id)
	}
}

// request sends body (prefixed with a fresh request-id) under pktType and
// blocks for the correlated reply. Concurrent calls pipeline freely since
// each gets its own id and response channel.
func (c *Client) request(pktType byte, body []byte) (reply, error) {
	id := atomic.AddUint32(&c.nextID, 1)
	ch := make(chan reply, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	pkt := encodePacket(pktType, append(wireutil.NewBuilder().WriteUint32(id).Bytes(), body...))
	if err := c.writeRaw(pkt); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return reply{}, err
	}

	select {
	case r := <-ch:
		return r, r.err
	case err := <-c.readErr:
		c.readErr <- err // let other waiters observe it too
		return reply{}, err
	}
}

func (c *Client) expectStatusOK(pktType byte, body []byte) error {
	r, err := c.request(pktType, body)
	if err != nil {
		return err
	}
	if r.pktType != fxpStatus {
		return fmt.Errorf("sftp: expected STATUS, got packet type %d", r.pktType)
	}
	se, err := decodeStatus(r.buf)
	if err != nil {
		return err
	}
	if se.Code != StatusOK {
		return se
	}
	return nil
}

func (c *Client) expectHandle(pktType byte, body []byte) (string, error) {
	r, err := c.request(pktType, body)
	if err != nil {
		return "", err
	}
	switch r.pktType {
	case fxpHandle:
		h, err := r.buf.ReadString()
		return string(h), err
	case fxpStatus:
		se, err := decodeStatus(r.buf)
		if err != nil {
			return "", err
		}
		return "", se
	default:
		return "", fmt.Errorf("sftp: expected HANDLE, got packet type %d", r.pktType)
	}
}

func (c *Client) expectAttrs(pktType byte, body []byte) (Attributes, error) {
	r, err := c.request(pktType, body)
	if err != nil {
		return Attributes{}, err
	}
	switch r.pktType {
	case fxpAttrs:
		return decodeAttrs(r.buf)
	case fxpStatus:
		se, err := decodeStatus(r.buf)
		if err != nil {
			return Attributes{}, err
		}
		return Attributes{}, se
	default:
		return Attributes{}, fmt.Errorf("sftp: expected ATTRS, got packet type %d", r.pktType)
	}
}

func (c *Client) expectName(pktType byte, body []byte) (string, error) {
	r, err := c.request(pktType, body)
	if err != nil {
		return "", err
	}
	switch r.pktType {
	case fxpName:
		count, err := r.buf.ReadUint32()
		if err != nil {
			return "", err
		}
		if count == 0 {
			return "", fmt.Errorf("sftp: empty NAME response")
		}
		name, err := r.buf.ReadString()
		return string(name), err
	case fxpStatus:
		se, err := decodeStatus(r.buf)
		if err != nil {
			return "", err
		}
		return "", se
	default:
		return "", fmt.Errorf("sftp: expected NAME, got packet type %d", r.pktType)
	}
}

// DirEntry is one SSH_FXP_READDIR result row.
type DirEntry struct {
	Name     string
	LongName string
	Attrs    Attributes
}

// Version returns the protocol version the server replied with (3-6).
func (c *Client) Version() uint32 { return c.version }

// RealPath resolves path (including "." for the server's default
// directory) to a canonical absolute path.
func (c *Client) RealPath(path string) (string, error) {
	body := wireutil.NewBuilder().WriteCString(path).Bytes()
	return c.expectName(fxpRealpath, body)
}

// Stat follows symlinks (SSH_FXP_STAT).
func (c *Client) Stat(path string) (Attributes, error) {
	body := wireutil.NewBuilder().WriteCString(path).Bytes()
	return c.expectAttrs(fxpStat, body)
}

// Lstat does not follow symlinks (SSH_FXP_LSTAT).
func (c *Client) Lstat(path string) (Attributes, error) {
	body := wireutil.NewBuilder().WriteCString(path).Bytes()
	return c.expectAttrs(fxpLstat, body)
}

// SetStat applies attrs to path (SSH_FXP_SETSTAT).
func (c *Client) SetStat(path string, attrs Attributes) error {
	b := wireutil.NewBuilder().WriteCString(path)
	encodeAttrs(b, attrs)
	return c.expectStatusOK(fxpSetstat, b.Bytes())
}

// Remove deletes a file (not a directory; use Rmdir for that).
func (c *Client) Remove(path string) error {
	body := wireutil.NewBuilder().WriteCString(path).Bytes()
	return c.expectStatusOK(fxpRemove, body)
}

// Rename renames oldPath to newPath.
func (c *Client) Rename(oldPath, newPath string) error {
	body := wireutil.NewBuilder().WriteCString(oldPath).WriteCString(newPath).Bytes()
	return c.expectStatusOK(fxpRename, body)
}

// Mkdir creates a directory with the given permission bits.
func (c *Client) Mkdir(path string, perm os.FileMode) error {
	b := wireutil.NewBuilder().WriteCString(path)
	encodeAttrs(b, Attributes{HasPermissions: true, Permissions: uint32(perm.Perm())})
	return c.expectStatusOK(fxpMkdir, b.Bytes())
}

// Rmdir removes an empty directory.
func (c *Client) Rmdir(path string) error {
	body := wireutil.NewBuilder().WriteCString(path).Bytes()
	return c.expectStatusOK(fxpRmdir, body)
}

// Symlink creates a symlink at linkPath pointing to target.
func (c *Client) Symlink(target, linkPath string) error {
	body := wireutil.NewBuilder().WriteCString(linkPath).WriteCString(target).Bytes()
	return c.expectStatusOK(fxpSymlink, body)
}

// Readlink returns a symlink's target.
func (c *Client) Readlink(path string) (string, error) {
	body := wireutil.NewBuilder().WriteCString(path).Bytes()
	return c.expectName(fxpReadlink, body)
}

// ReadDir lists a directory's entries, issuing SSH_FXP_READDIR
// repeatedly until the server signals EOF (the only termination draft-
// ietf-secsh-filexfer defines).
func (c *Client) ReadDir(path string) ([]DirEntry, error) {
	handle, err := c.expectHandle(fxpOpendir, wireutil.NewBuilder().WriteCString(path).Bytes())
	if err != nil {
		return nil, err
	}
	defer c.closeHandle(handle)

	var entries []DirEntry
	for {
		r, err := c.request(fxpReaddir, wireutil.NewBuilder().WriteCString(handle).Bytes())
		if err != nil {
			return entries, err
		}
		if r.pktType == fxpStatus {
			se, err := decodeStatus(r.buf)
			if err != nil {
				return entries, err
			}
			if se.Code == StatusEOF {
				return entries, nil
			}
			return entries, se
		}
		if r.pktType != fxpName {
			return entries, fmt.Errorf("sftp: expected NAME, got packet type %d", r.pktType)
		}
		count, err := r.buf.ReadUint32()
		if err != nil {
			return entries, err
		}
		for i := uint32(0); i < count; i++ {
			name, err := r.buf.ReadString()
			if err != nil {
				return entries, err
			}
			longName, err := r.buf.ReadString()
			if err != nil {
				return entries, err
			}
			attrs, err := decodeAttrs(r.buf)
			if err != nil {
				return entries, err
			}
			entries = append(entries, DirEntry{Name: string(name), LongName: string(longName), Attrs: attrs})
		}
	}
}

func (c *Client) closeHandle(handle string) error {
	body := wireutil.NewBuilder().WriteCString(handle).Bytes()
	return c.expectStatusOK(fxpClose, body)
}

// Close shuts down the underlying connection.
func (c *Client) Close() error {
	if wc, ok := c.conn.(io.Closer); ok {
		return wc.Close()
	}
	return nil
}

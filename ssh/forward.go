package ssh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/postalsys/gossh/logging"
	"github.com/postalsys/gossh/wireutil"
)

// DialContext opens a "direct-tcpip" channel (RFC 4254 §7.2), asking the
// server to connect onward to host:port and relaying bytes through the
// returned net.Conn-shaped value. This is the local->remote forwarding
// direction ("ssh -L").
func (c *Client) DialContext(network, addr string) (io.ReadWriteCloser, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	var p uint32
	fmt.Sscanf(port, "%d", &p)

	extra := wireutil.NewBuilder().
		WriteCString(host).
		WriteUint32(p).
		WriteCString("127.0.0.1").
		WriteUint32(0).
		Bytes()

	ch, err := c.mux.openChannel("direct-tcpip", extra)
	if err != nil {
		return nil, fmt.Errorf("ssh: direct-tcpip to %s: %w", addr, err)
	}
	return &channelConn{ch: ch}, nil
}

// channelConn adapts a channel to io.ReadWriteCloser for forwarding use;
// it does not implement the full net.Conn interface (no addresses/
// deadlines) since spec §4.1 only requires a byte-stream abstraction here.
type channelConn struct {
	ch  *channel
	buf []byte
}

func (c *channelConn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		data, ok, err := c.ch.Read(context.Background())
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
		c.buf = data
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *channelConn) Write(p []byte) (int, error) { return c.ch.Write(p) }
func (c *channelConn) Close() error                { return c.ch.Close() }

// ForwardListener implements "forwarded-tcpip" remote port forwarding
// ("ssh -R"): it issues a "tcpip-forward" global request, then accepts
// inbound "forwarded-tcpip" channel-opens as the server relays connections
// back to the client (spec §4.1; grounded on the mesh listener's
// accept-loop-plus-connection-table shape).
type ForwardListener struct {
	c        *Client
	bindAddr string
	bindPort uint32

	logger *slog.Logger

	mu      sync.Mutex
	conns   map[*channelConn]struct{}
	stopCh  chan struct{}
	stopped atomic.Bool

	accepted chan io.ReadWriteCloser
}

// ListenRemote asks the server to forward connections on bindAddr:bindPort
// back to this client.
func (c *Client) ListenRemote(bindAddr string, bindPort uint32) (*ForwardListener, error) {
	payload := wireutil.NewBuilder().WriteCString("tcpip-forward").WriteBool(true).
		WriteCString(bindAddr).WriteUint32(bindPort).Bytes()
	if err := c.transport.send(payload); err != nil {
		return nil, err
	}
	reply, err := c.waitGlobalReply()
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 || reply[0] != MsgRequestSuccess {
		return nil, fmt.Errorf("ssh: server refused tcpip-forward on %s:%d", bindAddr, bindPort)
	}
	if bindPort == 0 && len(reply) >= 5 {
		bindPort, _ = wireutil.NewBuffer(reply[1:]).ReadUint32()
	}

	fl := &ForwardListener{
		c: c, bindAddr: bindAddr, bindPort: bindPort,
		logger:   logging.NopLogger(),
		conns:    make(map[*channelConn]struct{}),
		stopCh:   make(chan struct{}),
		accepted: make(chan io.ReadWriteCloser, 16),
	}
	c.registerForwardListener(fl)
	return fl, nil
}

// Accept blocks until the server relays an inbound connection for this
// forward, or the listener is closed.
func (fl *ForwardListener) Accept() (io.ReadWriteCloser, error) {
	select {
	case conn, ok := <-fl.accepted:
		if !ok {
			return nil, fmt.Errorf("ssh: forward listener closed")
		}
		return conn, nil
	case <-fl.stopCh:
		return nil, fmt.Errorf("ssh: forward listener closed")
	}
}

// Close cancels the remote forward ("cancel-tcpip-forward").
func (fl *ForwardListener) Close() error {
	if !fl.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(fl.stopCh)
	payload := wireutil.NewBuilder().WriteCString("cancel-tcpip-forward").WriteBool(false).
		WriteCString(fl.bindAddr).WriteUint32(fl.bindPort).Bytes()
	return fl.c.transport.send(payload)
}

package ssh

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	neturl "net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/postalsys/gossh/logging"
	"github.com/postalsys/gossh/metrics"
	"github.com/postalsys/gossh/wireutil"
)

// ClientOption configures a Client via the functional-options idiom (spec
// §6's Client type), matching the style the teacher's ClientConfig
// structs elsewhere in this pack are built with.
type ClientOption func(*clientConfig)

type clientConfig struct {
	hostKeyCallback HostKeyCallback
	authMethods     []AuthMethod
	user            string
	timeout         time.Duration
	rekeyThreshold  uint64
	rekeyInterval   uint64
	logger          *slog.Logger
	metrics         *metrics.Registry
	dialer          proxy.Dialer
}

// WithHostKeyCallback sets how the server's host key is verified. Required;
// Dial fails fast if none is supplied.
func WithHostKeyCallback(cb HostKeyCallback) ClientOption {
	return func(c *clientConfig) { c.hostKeyCallback = cb }
}

// WithAuth appends an authentication method to try, in order.
func WithAuth(m AuthMethod) ClientOption {
	return func(c *clientConfig) { c.authMethods = append(c.authMethods, m) }
}

// WithUser sets the username for user authentication.
func WithUser(user string) ClientOption {
	return func(c *clientConfig) { c.user = user }
}

// WithTimeout bounds the connection+handshake duration.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithRekeyPolicy overrides the default byte/packet rekey thresholds
// (spec §4.1, RFC 4253 defaults of 1 GiB / 2^31 packets).
func WithRekeyPolicy(thresholdBytes, intervalPackets uint64) ClientOption {
	return func(c *clientConfig) { c.rekeyThreshold = thresholdBytes; c.rekeyInterval = intervalPackets }
}

// WithLogger attaches a structured logger (github.com/... log/slog, per
// the logging package's idiom).
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = l }
}

// WithMetrics attaches a Prometheus-backed metrics registry.
func WithMetrics(r *metrics.Registry) ClientOption {
	return func(c *clientConfig) { c.metrics = r }
}

// WithProxy routes the TCP dial through a SOCKS5 (or other
// golang.org/x/net/proxy-supported) proxy, identified the same way the
// ALL_PROXY/SOCKS_PROXY environment convention does: a "socks5://host:port"
// style URL.
func WithProxy(proxyURL string) ClientOption {
	return func(c *clientConfig) {
		u, err := neturl.Parse(proxyURL)
		if err != nil {
			return
		}
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return
		}
		c.dialer = d
	}
}

// Client is an authenticated SSH2 connection: transport, negotiated
// algorithms, and the channel multiplexer (spec §4.1's "(interactive)"
// state). Per spec §5's concurrency model, a single Client instance is not
// safe for concurrent use by two goroutines issuing top-level operations
// at once, though its Sessions/forwarders may be used concurrently with
// each other once opened.
type Client struct {
	transport *transport
	mux       *mux
	cfg       clientConfig

	hostname string

	mu              sync.Mutex
	forwardListeners map[string]*ForwardListener

	readLoopErr chan error
	timeout     timeoutState
}

type timeoutState struct {
	mu sync.Mutex
	d  time.Duration
}

func (a *timeoutState) set(d time.Duration) { a.mu.Lock(); a.d = d; a.mu.Unlock() }
func (a *timeoutState) get() time.Duration  { a.mu.Lock(); defer a.mu.Unlock(); return a.d }

// Dial connects to addr, completes the SSH2 transport handshake (banner,
// KEXINIT negotiation, key exchange, host-key verification, NEWKEYS), and
// authenticates per the configured AuthMethods (spec §4.1's full lifecycle
// state machine: Disconnected -> ... -> Authenticated).
func Dial(network, addr string, opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{logger: logging.NopLogger()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.hostKeyCallback == nil {
		return nil, fmt.Errorf("ssh: WithHostKeyCallback is required")
	}

	var conn net.Conn
	var err error
	if cfg.dialer != nil {
		conn, err = cfg.dialer.Dial(network, addr)
	} else {
		conn, err = (&net.Dialer{Timeout: cfg.timeout}).Dial(network, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("ssh: dial %s: %w", addr, err)
	}

	host, _, _ := net.SplitHostPort(addr)
	c, err := newClientFromConn(conn, host, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func newClientFromConn(conn net.Conn, hostname string, cfg clientConfig) (*Client, error) {
	t := newTransport(conn, cfg.rekeyThreshold, cfg.rekeyInterval)

	clientID, serverID, err := doBannerExchange(t)
	if err != nil {
		return nil, err
	}
	t.clientID, t.serverID = clientID, serverID

	res, err := runKex(t)
	if err != nil {
		return nil, err
	}

	if err := cfg.hostKeyCallback(hostname, conn.RemoteAddr(), res.HostKey); err != nil {
		return nil, fmt.Errorf("ssh: host key verification failed: %w", err)
	}
	if err := verifyHostKeySignature(res.HostKey, res.H, res.Signature); err != nil {
		return nil, fmt.Errorf("ssh: %w", err)
	}

	if err := installKeys(t, res); err != nil {
		return nil, err
	}

	c := &Client{
		transport:        t,
		mux:              newMux(t),
		cfg:              cfg,
		hostname:         hostname,
		forwardListeners: make(map[string]*ForwardListener),
		readLoopErr:      make(chan error, 1),
	}
	c.mux.onForwardedTCPIP = c.handleForwardedTCPIP

	if err := requestService(t, "ssh-userauth"); err != nil {
		return nil, err
	}
	if err := authenticate(t, cfg.user, cfg.authMethods); err != nil {
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// readLoop owns the transport's receive side for the lifetime of the
// connection, handing connection-protocol packets to the mux (spec §5:
// "a reader on A that has nothing pending MUST process and buffer
// incoming data for other channels rather than drop it" -- a single
// reader goroutine demultiplexing into per-channel buffered queues
// satisfies this directly).
func (c *Client) readLoop() {
	for {
		payload, err := c.transport.recv()
		if err != nil {
			c.readLoopErr <- err
			c.mux.closeAll(err)
			return
		}
		if len(payload) == 0 {
			continue
		}
		if payload[0] == MsgDisconnect {
			c.mux.closeAll(fmt.Errorf("ssh: server sent DISCONNECT"))
			c.readLoopErr <- io.EOF
			return
		}
		if payload[0] >= 80 {
			if err := c.mux.dispatch(payload); err != nil {
				c.cfg.logger.Warn("ssh: connection-protocol dispatch error", "error", err)
			}
			continue
		}
		// KEXINIT arriving mid-session signals the peer wants to rekey;
		// full in-session rekey renegotiation is not implemented, so
		// gossh logs and disconnects rather than silently ignoring it
		// (spec §4.1 says unexpected-but-required packets are fatal).
		if payload[0] == MsgKexInit {
			c.cfg.logger.Warn("ssh: peer-initiated rekey is not supported, disconnecting")
			c.Close()
			return
		}
	}
}

func (c *Client) waitGlobalReply() ([]byte, error) {
	select {
	case reply := <-c.mux.globalReplies:
		return reply, nil
	case err := <-c.readLoopErr:
		return nil, err
	}
}

func (c *Client) registerForwardListener(fl *ForwardListener) {
	c.mu.Lock()
	c.forwardListeners[fmt.Sprintf("%s:%d", fl.bindAddr, fl.bindPort)] = fl
	c.mu.Unlock()
}

func (c *Client) handleForwardedTCPIP(ch *channel, bindAddr string, bindPort uint32) {
	c.mu.Lock()
	fl := c.forwardListeners[fmt.Sprintf("%s:%d", bindAddr, bindPort)]
	c.mu.Unlock()
	if fl == nil {
		ch.Close()
		return
	}
	select {
	case fl.accepted <- &channelConn{ch: ch}:
	default:
		ch.Close()
	}
}

// SetTimeout applies to the next read/write operation; 0 disables it
// (spec §5 "Cancellation and timeouts").
func (c *Client) SetTimeout(d time.Duration) { c.timeout.set(d) }

// Ping sends SSH_MSG_IGNORE as a keepalive and reports whether the
// transport is still healthy (spec §4.1 "setKeepAlive" / §5 "ping()").
func (c *Client) Ping() bool {
	payload := wireutil.NewBuilder().WriteByte(MsgIgnore).WriteString(randomPadBytes()).Bytes()
	return c.transport.send(payload) == nil
}

// NegotiatedAlgorithms returns the algorithm chosen for each KEXINIT
// category during the handshake (spec §4.1 "getAlgorithmsNegotiated").
func (c *Client) NegotiatedAlgorithms() kexNegotiated { return c.transport.negotiated }

// ServerHostKey returns the server's host key in SSH2 wire-blob form
// (spec §4.1 "getServerPublicHostKey").
func (c *Client) ServerHostKey() []byte { return c.transport.hostKey }

// Close disconnects the transport, sending DISCONNECT and closing the
// socket.
func (c *Client) Close() error {
	_ = c.transport.send(wireutil.NewBuilder().
		WriteByte(MsgDisconnect).
		WriteUint32(DisconnectByApplication).
		WriteCString("client closing connection").
		WriteCString("").
		Bytes())
	c.mux.closeAll(fmt.Errorf("ssh: client closed"))
	return c.transport.conn.Close()
}

func (m *mux) closeAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.channels {
		select {
		case <-ch.closed:
		default:
			close(ch.closed)
		}
		delete(m.channels, id)
	}
	for id, ch := range m.openWait {
		ch <- err
		delete(m.openWait, id)
	}
}

func randomPadBytes() []byte {
	b := make([]byte, 8)
	rand.Read(b)
	return b
}

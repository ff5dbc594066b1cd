package ssh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/postalsys/gossh/wireutil"
)

// channelState mirrors the mesh protocol's stream lifecycle
// (opening/open/half-closed-local/half-closed-remote/closed), generalized
// from per-connection virtual streams to RFC 4254 channels: both track
// flow-controlled, half-closable, bidirectional byte pipes multiplexed
// over one transport.
type channelState int32

const (
	chanOpening channelState = iota
	chanOpen
	chanHalfClosedLocal
	chanHalfClosedRemote
	chanClosed
)

// channel is one multiplexed RFC 4254 channel (spec §4.1 "Channels").
// Flow control follows the advertised-window model: writes block until the
// remote has enough window, and CHANNEL_WINDOW_ADJUST replenishes it.
type channel struct {
	localID  uint32
	remoteID uint32

	mux *mux

	state atomic.Int32
	mu    sync.Mutex

	localWindow  uint32
	remoteWindow uint32
	maxPacket    uint32

	dataCh   chan []byte // stdout / CHANNEL_DATA
	extCh    chan []byte // stderr / CHANNEL_EXTENDED_DATA
	closed   chan struct{}
	closeOnce sync.Once

	localFin, remoteFin bool

	requests chan channelRequest // CHANNEL_REQUEST arriving for this channel
	exitCode int
	exitSet  bool
}

type channelRequest struct {
	name      string
	wantReply bool
	payload   []byte
}

func (c *channel) State() channelState { return channelState(c.state.Load()) }
func (c *channel) setState(s channelState) { c.state.Store(int32(s)) }

// Read returns the next chunk of stdout data (or io.EOF-equivalent via a
// closed/empty return once the remote has half-closed and the buffer is
// drained). Reads on channel A never consume data destined for channel B:
// each channel owns its own buffered dataCh (spec §4.1, §5 ordering
// guarantees).
func (c *channel) Read(ctx context.Context) ([]byte, bool, error) {
	select {
	case d, ok := <-c.dataCh:
		return d, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// ReadExtended returns the next chunk of extended (stderr) data.
func (c *channel) ReadExtended(ctx context.Context) ([]byte, bool, error) {
	select {
	case d, ok := <-c.extCh:
		return d, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Write sends data on the channel, chunking to the remote's max packet
// size and blocking (via window adjusts) when the remote window is
// exhausted.
func (c *channel) Write(data []byte) (int, error) {
	total := 0
	for len(data) > 0 {
		c.mu.Lock()
		for c.remoteWindow == 0 {
			c.mu.Unlock()
			if err := c.mux.waitWindowAdjust(c); err != nil {
				return total, err
			}
			c.mu.Lock()
		}
		n := uint32(len(data))
		if n > c.remoteWindow {
			n = c.remoteWindow
		}
		if n > c.maxPacket {
			n = c.maxPacket
		}
		c.remoteWindow -= n
		c.mu.Unlock()

		chunk := data[:n]
		payload := wireutil.NewBuilder().
			WriteByte(MsgChannelData).
			WriteUint32(c.remoteID).
			WriteString(chunk).
			Bytes()
		if err := c.mux.t.send(payload); err != nil {
			return total, err
		}
		total += int(n)
		data = data[n:]
	}
	return total, nil
}

// CloseWrite sends CHANNEL_EOF, signalling no more data in this direction
// (spec §4.1 "CHANNEL_EOF signals no more data in one direction").
func (c *channel) CloseWrite() error {
	c.mu.Lock()
	if c.localFin {
		c.mu.Unlock()
		return nil
	}
	c.localFin = true
	c.mu.Unlock()
	return c.mux.t.send(wireutil.NewBuilder().WriteByte(MsgChannelEOF).WriteUint32(c.remoteID).Bytes())
}

// Close sends CHANNEL_CLOSE; the channel is fully torn down once both
// sides have sent and received CLOSE (spec §4.1).
func (c *channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.mux.t.send(wireutil.NewBuilder().WriteByte(MsgChannelClose).WriteUint32(c.remoteID).Bytes())
		c.setState(chanClosed)
		close(c.closed)
		c.mux.remove(c.localID)
	})
	return err
}

// SendRequest issues a CHANNEL_REQUEST (e.g. "exec", "pty-req", "shell",
// "window-change", "signal") and, if wantReply is set, waits for
// CHANNEL_SUCCESS/CHANNEL_FAILURE.
func (c *channel) SendRequest(name string, wantReply bool, payload []byte) (bool, error) {
	b := wireutil.NewBuilder().WriteByte(MsgChannelRequest).WriteUint32(c.remoteID).WriteCString(name).WriteBool(wantReply)
	b.WriteRaw(payload)
	if !wantReply {
		return true, c.mux.t.send(b.Bytes())
	}
	replyCh := make(chan bool, 1)
	c.mux.registerReply(c.localID, replyCh)
	if err := c.mux.t.send(b.Bytes()); err != nil {
		return false, err
	}
	return <-replyCh, nil
}

// mux is the per-transport channel multiplexer (spec §4.1 "Channels",
// generalized from the mesh protocol's stream.Manager to RFC 4254
// channel-open/window/data/eof/close semantics).
type mux struct {
	t *transport

	mu        sync.Mutex
	channels  map[uint32]*channel
	nextID    uint32
	replyWait  map[uint32]chan bool
	windowWait map[uint32]chan struct{}
	openWait   map[uint32]chan error

	globalReplies chan []byte

	// onForwardedTCPIP handles server-initiated "forwarded-tcpip"
	// channel-opens (remote port forwarding); nil means none registered,
	// in which case such opens are refused.
	onForwardedTCPIP func(c *channel, bindAddr string, bindPort uint32)
}

func newMux(t *transport) *mux {
	return &mux{
		t:             t,
		channels:      make(map[uint32]*channel),
		replyWait:     make(map[uint32]chan bool),
		windowWait:    make(map[uint32]chan struct{}),
		openWait:      make(map[uint32]chan error),
		globalReplies: make(chan []byte, 4),
	}
}

const initialWindowSize = 2 * 1024 * 1024
const maxPacketSize = 32 * 1024

// openChannel sends CHANNEL_OPEN for channelType ("session",
// "direct-tcpip", ...) and blocks for CHANNEL_OPEN_CONFIRMATION/FAILURE.
func (m *mux) openChannel(channelType string, extra []byte) (*channel, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	c := &channel{
		localID: id, mux: m,
		localWindow: initialWindowSize, maxPacket: maxPacketSize,
		dataCh: make(chan []byte, 64), extCh: make(chan []byte, 64),
		closed:   make(chan struct{}),
		requests: make(chan channelRequest, 8),
	}
	c.setState(chanOpening)
	confirmCh := make(chan error, 1)
	m.channels[id] = c
	m.mu.Unlock()

	payload := wireutil.NewBuilder().
		WriteByte(MsgChannelOpen).
		WriteCString(channelType).
		WriteUint32(id).
		WriteUint32(initialWindowSize).
		WriteUint32(maxPacketSize)
	payload.WriteRaw(extra)

	m.pendingOpen(id, confirmCh)
	if err := m.t.send(payload.Bytes()); err != nil {
		return nil, err
	}
	if err := <-confirmCh; err != nil {
		return nil, err
	}
	return c, nil
}

func (m *mux) pendingOpen(id uint32, ch chan error) {
	m.mu.Lock()
	m.openWait[id] = ch
	m.mu.Unlock()
}

func (m *mux) waitWindowAdjust(c *channel) error {
	m.mu.Lock()
	ch, ok := m.windowWait[c.localID]
	if !ok {
		ch = make(chan struct{}, 1)
		m.windowWait[c.localID] = ch
	}
	m.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-c.closed:
		return fmt.Errorf("ssh: channel closed while waiting for window")
	}
}

func (m *mux) registerReply(id uint32, ch chan bool) {
	m.mu.Lock()
	m.replyWait[id] = ch
	m.mu.Unlock()
}

func (m *mux) remove(id uint32) {
	m.mu.Lock()
	delete(m.channels, id)
	m.mu.Unlock()
}

func (m *mux) get(id uint32) *channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[id]
}

// dispatch routes one connection-protocol packet (type >= 80) to the
// appropriate channel or global-request handler. It is driven by the
// Client's read loop.
func (m *mux) dispatch(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("ssh: empty connection-protocol packet")
	}
	buf := wireutil.NewBuffer(payload[1:])
	switch payload[0] {
	case MsgChannelOpen:
		return m.handleIncomingOpen(buf)

	case MsgChannelOpenConfirm:
		localID, _ := buf.ReadUint32()
		remoteID, _ := buf.ReadUint32()
		remoteWindow, _ := buf.ReadUint32()
		maxPacket, _ := buf.ReadUint32()
		m.mu.Lock()
		c := m.channels[localID]
		ch := m.openWait[localID]
		delete(m.openWait, localID)
		m.mu.Unlock()
		if c != nil {
			c.remoteID = remoteID
			c.remoteWindow = remoteWindow
			c.maxPacket = maxPacket
			c.setState(chanOpen)
		}
		if ch != nil {
			ch <- nil
		}
		return nil

	case MsgChannelOpenFailure:
		localID, _ := buf.ReadUint32()
		reason, _ := buf.ReadUint32()
		msg, _ := buf.ReadString()
		m.mu.Lock()
		ch := m.openWait[localID]
		delete(m.openWait, localID)
		delete(m.channels, localID)
		m.mu.Unlock()
		if ch != nil {
			ch <- fmt.Errorf("ssh: channel open refused: %s (reason=%d)", msg, reason)
		}
		return nil

	case MsgChannelWindowAdjust:
		localID, _ := buf.ReadUint32()
		n, _ := buf.ReadUint32()
		if c := m.get(localID); c != nil {
			c.mu.Lock()
			c.remoteWindow += n
			c.mu.Unlock()
			m.mu.Lock()
			if w, ok := m.windowWait[localID]; ok {
				select {
				case w <- struct{}{}:
				default:
				}
			}
			m.mu.Unlock()
		}
		return nil

	case MsgChannelData:
		localID, _ := buf.ReadUint32()
		data, _ := buf.ReadString()
		if c := m.get(localID); c != nil {
			c.consumeWindow(uint32(len(data)), m)
			select {
			case c.dataCh <- data:
			case <-c.closed:
			}
		}
		return nil

	case MsgChannelExtendedData:
		localID, _ := buf.ReadUint32()
		_, _ = buf.ReadUint32() // data_type_code (always SSH_EXTENDED_DATA_STDERR)
		data, _ := buf.ReadString()
		if c := m.get(localID); c != nil {
			c.consumeWindow(uint32(len(data)), m)
			select {
			case c.extCh <- data:
			case <-c.closed:
			}
		}
		return nil

	case MsgChannelEOF:
		localID, _ := buf.ReadUint32()
		if c := m.get(localID); c != nil {
			c.mu.Lock()
			c.remoteFin = true
			c.mu.Unlock()
			close(c.dataCh)
		}
		return nil

	case MsgChannelClose:
		localID, _ := buf.ReadUint32()
		if c := m.get(localID); c != nil {
			c.setState(chanClosed)
			m.remove(localID)
			select {
			case <-c.closed:
			default:
				close(c.closed)
			}
		}
		return nil

	case MsgChannelRequest:
		localID, _ := buf.ReadUint32()
		name, _ := buf.ReadCString()
		wantReply, _ := buf.ReadBool()
		rest := buf.Rest()
		if name == "exit-status" {
			if code, err := wireutil.NewBuffer(rest).ReadUint32(); err == nil {
				if c := m.get(localID); c != nil {
					c.mu.Lock()
					c.exitCode = int(code)
					c.exitSet = true
					c.mu.Unlock()
				}
			}
		}
		if c := m.get(localID); c != nil {
			select {
			case c.requests <- channelRequest{name: name, wantReply: wantReply, payload: rest}:
			default:
			}
		}
		if wantReply {
			return m.t.send([]byte{MsgChannelSuccess})
		}
		return nil

	case MsgChannelSuccess, MsgChannelFailure:
		// Matched against the most recently registered reply waiter for
		// the channel; callers serialize SendRequest calls per channel.
		m.mu.Lock()
		for id, ch := range m.replyWait {
			delete(m.replyWait, id)
			ch <- payload[0] == MsgChannelSuccess
			break
		}
		m.mu.Unlock()
		return nil

	case MsgGlobalRequest, MsgRequestSuccess, MsgRequestFailure:
		select {
		case m.globalReplies <- payload:
		default:
		}
		return nil

	default:
		// Unimplemented connection-protocol message: spec §4.1 says log
		// and ignore unless required.
		return nil
	}
}

// handleIncomingOpen processes a server-initiated CHANNEL_OPEN. The only
// type gossh accepts unsolicited is "forwarded-tcpip" (remote port
// forwarding callbacks); anything else is refused with
// SSH_OPEN_UNKNOWN_CHANNEL_TYPE per RFC 4254 §5.1.
func (m *mux) handleIncomingOpen(buf *wireutil.Buffer) error {
	channelType, err := buf.ReadCString()
	if err != nil {
		return err
	}
	remoteID, _ := buf.ReadUint32()
	remoteWindow, _ := buf.ReadUint32()
	maxPacket, _ := buf.ReadUint32()

	if channelType != "forwarded-tcpip" || m.onForwardedTCPIP == nil {
		return m.t.send(wireutil.NewBuilder().
			WriteByte(MsgChannelOpenFailure).
			WriteUint32(remoteID).
			WriteUint32(OpenUnknownChannelType).
			WriteCString("unsupported channel type").
			WriteCString("").
			Bytes())
	}

	bindAddr, _ := buf.ReadCString()
	bindPort, _ := buf.ReadUint32()
	_, _ = buf.ReadCString() // originator address
	_, _ = buf.ReadUint32()  // originator port

	m.mu.Lock()
	localID := m.nextID
	m.nextID++
	c := &channel{
		localID: localID, remoteID: remoteID, mux: m,
		localWindow: initialWindowSize, remoteWindow: remoteWindow, maxPacket: maxPacket,
		dataCh: make(chan []byte, 64), extCh: make(chan []byte, 64),
		closed:   make(chan struct{}),
		requests: make(chan channelRequest, 8),
	}
	if maxPacket == 0 {
		c.maxPacket = maxPacketSize
	}
	c.setState(chanOpen)
	m.channels[localID] = c
	m.mu.Unlock()

	if err := m.t.send(wireutil.NewBuilder().
		WriteByte(MsgChannelOpenConfirm).
		WriteUint32(remoteID).
		WriteUint32(localID).
		WriteUint32(initialWindowSize).
		WriteUint32(c.maxPacket).
		Bytes()); err != nil {
		return err
	}

	m.onForwardedTCPIP(c, bindAddr, bindPort)
	return nil
}

// consumeWindow decrements the local window as data arrives and tops it
// back up with a CHANNEL_WINDOW_ADJUST once it falls below half capacity.
func (c *channel) consumeWindow(n uint32, m *mux) {
	c.mu.Lock()
	if n > c.localWindow {
		c.localWindow = 0
	} else {
		c.localWindow -= n
	}
	needsAdjust := c.localWindow < initialWindowSize/2
	var adjustBy uint32
	if needsAdjust {
		adjustBy = initialWindowSize - c.localWindow
		c.localWindow = initialWindowSize
	}
	c.mu.Unlock()
	if needsAdjust {
		_ = m.t.send(wireutil.NewBuilder().WriteByte(MsgChannelWindowAdjust).WriteUint32(c.remoteID).WriteUint32(adjustBy).Bytes())
	}
}

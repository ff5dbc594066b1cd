package ssh

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/postalsys/gossh/cipher"
	"github.com/postalsys/gossh/gohash"
	"github.com/postalsys/gossh/wireutil"
)

// cipherSuite describes one negotiable encryption algorithm's wire shape,
// mirroring the {block_size, key_lengths_allowed, uses_iv} contract spec
// §4.3 assigns to the cipher engine itself; the transport only needs to
// know how many key/IV bytes to derive and whether the algorithm is AEAD.
type cipherSuite struct {
	keySize   int
	ivSize    int
	isAEAD    bool
	newEngine func(key, iv []byte) (*cipher.Engine, error)
}

var cipherSuites = map[string]cipherSuite{
	"aes128-ctr": {
		keySize: 16, ivSize: 16,
		newEngine: func(key, iv []byte) (*cipher.Engine, error) {
			blk := cipher.NewAES()
			if err := blk.SetupKey(key); err != nil {
				return nil, err
			}
			e := cipher.NewBlockEngine(blk, cipher.CTR)
			e.SetContinuousBuffer(true)
			if err := e.SetIV(iv); err != nil {
				return nil, err
			}
			return e, nil
		},
	},
	"aes256-ctr": {
		keySize: 32, ivSize: 16,
		newEngine: func(key, iv []byte) (*cipher.Engine, error) {
			blk := cipher.NewAES()
			if err := blk.SetupKey(key); err != nil {
				return nil, err
			}
			e := cipher.NewBlockEngine(blk, cipher.CTR)
			e.SetContinuousBuffer(true)
			if err := e.SetIV(iv); err != nil {
				return nil, err
			}
			return e, nil
		},
	},
	"aes128-gcm@openssh.com": {
		keySize: 16, ivSize: 12, isAEAD: true,
		newEngine: func(key, iv []byte) (*cipher.Engine, error) {
			blk := cipher.NewAES()
			if err := blk.SetupKey(key); err != nil {
				return nil, err
			}
			e := cipher.NewBlockEngine(blk, cipher.GCM)
			if err := e.SetIV(iv); err != nil {
				return nil, err
			}
			return e, nil
		},
	},
}

var macAlgorithms = map[string]struct {
	keySize int
	alg     gohash.Algorithm
	etm     bool
}{
	"hmac-sha2-256-etm@openssh.com": {32, gohash.SHA256, true},
	"hmac-sha2-256":                 {32, gohash.SHA256, false},
	"hmac-sha1":                     {20, gohash.SHA1, false},
}

var cipherPreference = []string{"aes128-gcm@openssh.com", "aes256-ctr", "aes128-ctr"}
var macPreference = []string{"hmac-sha2-256-etm@openssh.com", "hmac-sha2-256", "hmac-sha1"}

// packetCipher frames, encrypts, and authenticates (or decrypts/verifies)
// one direction of post-NEWKEYS traffic (spec §4.1 "Packet layer").
type packetCipher struct {
	engine    *cipher.Engine
	isAEAD    bool
	macAlg    gohash.Algorithm
	macKey    []byte
	etm       bool
	blockSize int
	seq       uint32
}

const minPacketPadding = 4

// writePacket frames payload per RFC 4253 §6 and returns the wire bytes:
// packet_length || padding_length || payload || padding [|| mac].
func (pc *packetCipher) writePacket(payload []byte) ([]byte, error) {
	bs := pc.blockSize
	if bs < 8 {
		bs = 8
	}
	// 4 (length) + 1 (padlen) + payload + padding must be a multiple of bs.
	total := 5 + len(payload)
	padLen := bs - total%bs
	if padLen < minPacketPadding {
		padLen += bs
	}
	packetLen := 1 + len(payload) + padLen

	buf := make([]byte, 4+packetLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(packetLen))
	buf[4] = byte(padLen)
	copy(buf[5:], payload)
	if _, err := io.ReadFull(rand.Reader, buf[5+len(payload):]); err != nil {
		return nil, err
	}

	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, pc.seq)
	pc.seq++

	if pc.isAEAD {
		pc.engine.SetAAD(buf[0:4])
		ct, err := pc.engine.Encrypt(buf[4:])
		if err != nil {
			return nil, err
		}
		out := append(append([]byte{}, buf[0:4]...), ct...)
		out = append(out, pc.engine.LastTag()...)
		return out, nil
	}

	if pc.etm {
		// Encrypt-then-MAC: length field travels in clear, MAC covers
		// seq || length || ciphertext.
		ct, err := pc.engine.Encrypt(buf[4:])
		if err != nil {
			return nil, err
		}
		mac, err := gohash.HMACSum(pc.macAlg, pc.macKey, append(append([]byte{}, seqBytes...), append(buf[0:4], ct...)...))
		if err != nil {
			return nil, err
		}
		out := append(append([]byte{}, buf[0:4]...), ct...)
		return append(out, mac...), nil
	}

	// MAC-then-encrypt: MAC covers seq || plaintext packet.
	mac, err := gohash.HMACSum(pc.macAlg, pc.macKey, append(append([]byte{}, seqBytes...), buf...))
	if err != nil {
		return nil, err
	}
	ct, err := pc.engine.Encrypt(buf)
	if err != nil {
		return nil, err
	}
	return append(ct, mac...), nil
}

// readPacket reads and decrypts one packet from r, verifying its MAC/tag.
// Decryption/MAC failures are reported via cipher.ErrDecryption and MUST be
// treated as fatal per spec §4.1 (DISCONNECT reason MAC_ERROR).
func (pc *packetCipher) readPacket(r io.Reader) ([]byte, error) {
	bs := pc.blockSize
	if bs < 8 {
		bs = 8
	}

	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, pc.seq)
	pc.seq++

	if pc.isAEAD {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			return nil, err
		}
		packetLen := binary.BigEndian.Uint32(lenBuf)
		rest := make([]byte, packetLen+16) // ciphertext + 16-byte GCM tag
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
		pc.engine.SetAAD(lenBuf)
		pt, err := pc.engine.Decrypt(append(rest[:packetLen], rest[packetLen:]...))
		if err != nil {
			return nil, fmt.Errorf("ssh: %w", cipher.ErrDecryption)
		}
		padLen := pt[0]
		if int(padLen)+1 > len(pt) {
			return nil, fmt.Errorf("ssh: %w: bad padding length", cipher.ErrDecryption)
		}
		return pt[1 : len(pt)-int(padLen)], nil
	}

	macSize, err := gohash.Size(pc.macAlg)
	if err != nil {
		return nil, err
	}

	if pc.etm {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			return nil, err
		}
		packetLen := binary.BigEndian.Uint32(lenBuf)
		ct := make([]byte, packetLen)
		if _, err := io.ReadFull(r, ct); err != nil {
			return nil, err
		}
		mac := make([]byte, macSize)
		if _, err := io.ReadFull(r, mac); err != nil {
			return nil, err
		}
		expected, err := gohash.HMACSum(pc.macAlg, pc.macKey, append(append([]byte{}, seqBytes...), append(lenBuf, ct...)...))
		if err != nil {
			return nil, err
		}
		if !wireutil.ConstantTimeCompare(mac, expected) {
			return nil, fmt.Errorf("ssh: %w", cipher.ErrDecryption)
		}
		pt, err := pc.engine.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("ssh: %w", cipher.ErrDecryption)
		}
		padLen := pt[0]
		if int(padLen)+1 > len(pt) {
			return nil, fmt.Errorf("ssh: %w: bad padding length", cipher.ErrDecryption)
		}
		return pt[1 : len(pt)-int(padLen)], nil
	}

	firstBlock := make([]byte, bs)
	if _, err := io.ReadFull(r, firstBlock); err != nil {
		return nil, err
	}
	firstPt, err := pc.engine.Decrypt(firstBlock)
	if err != nil {
		return nil, fmt.Errorf("ssh: %w", cipher.ErrDecryption)
	}
	packetLen := binary.BigEndian.Uint32(firstPt[0:4])
	remaining := int(packetLen) + 4 - bs
	if remaining < 0 {
		return nil, fmt.Errorf("ssh: %w: bad packet length", cipher.ErrDecryption)
	}
	restCt := make([]byte, remaining)
	if _, err := io.ReadFull(r, restCt); err != nil {
		return nil, err
	}
	restPt, err := pc.engine.Decrypt(restCt)
	if err != nil {
		return nil, fmt.Errorf("ssh: %w", cipher.ErrDecryption)
	}
	full := append(firstPt, restPt...)
	mac := make([]byte, macSize)
	if _, err := io.ReadFull(r, mac); err != nil {
		return nil, err
	}
	expected, err := gohash.HMACSum(pc.macAlg, pc.macKey, append(append([]byte{}, seqBytes...), full[:4+packetLen]...))
	if err != nil {
		return nil, err
	}
	if !wireutil.ConstantTimeCompare(mac, expected) {
		return nil, fmt.Errorf("ssh: %w", cipher.ErrDecryption)
	}
	padLen := full[4]
	payload := full[5 : 4+packetLen-uint32(padLen)]
	return payload, nil
}

// RekeyThreshold and RekeyInterval bound how much traffic (in bytes and in
// packets, respectively) a session handles before a rekey is required;
// spec §4.1 gives the RFC 4253 defaults of 1 GiB / 2^31 packets.
const (
	DefaultRekeyThreshold = 1 << 30
	DefaultRekeyInterval  = 1 << 31
)

// transport owns the raw socket, the banner/KEXINIT state, and the two
// packetCipher instances (one per direction) that exist once NEWKEYS has
// completed. It implements the state machine from spec §4.1:
// Disconnected -> Banner -> KexInit -> KexMath -> NewKeys -> AuthService ->
// UserAuth -> Authenticated -> (interactive), with KEX able to re-enter
// from Authenticated for rekey.
type transport struct {
	conn net.Conn
	br   *bufio.Reader

	mu sync.Mutex

	readCipher  *packetCipher
	writeCipher *packetCipher

	clientID, serverID string
	clientKexInit, serverKexInit []byte
	sessionID []byte

	negotiated kexNegotiated
	hostKey    []byte

	rekeyThreshold uint64
	rekeyInterval  uint64
	bytesSinceRekey atomic.Uint64
	packetsSinceRekey atomic.Uint64

	disconnected atomic.Bool
	lastErr      error
}

func newTransport(conn net.Conn, rekeyThreshold, rekeyInterval uint64) *transport {
	if rekeyThreshold == 0 {
		rekeyThreshold = DefaultRekeyThreshold
	}
	if rekeyInterval == 0 {
		rekeyInterval = DefaultRekeyInterval
	}
	return &transport{
		conn:           conn,
		br:             bufio.NewReaderSize(conn, 32*1024),
		rekeyThreshold: rekeyThreshold,
		rekeyInterval:  rekeyInterval,
	}
}

// needsRekey reports whether traffic counters have crossed the configured
// threshold since the last key exchange.
func (t *transport) needsRekey() bool {
	return t.bytesSinceRekey.Load() >= t.rekeyThreshold || t.packetsSinceRekey.Load() >= t.rekeyInterval
}

// send writes one transport-layer packet (plaintext before NEWKEYS,
// encrypted+authenticated after).
func (t *transport) send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disconnected.Load() {
		return fmt.Errorf("ssh: transport disconnected: %w", t.lastErr)
	}
	if t.writeCipher == nil {
		framed, err := (&packetCipher{blockSize: 8}).plaintextFrame(payload)
		if err != nil {
			return err
		}
		_, err = t.conn.Write(framed)
		return err
	}
	framed, err := t.writeCipher.writePacket(payload)
	if err != nil {
		t.fail(err)
		return err
	}
	if _, err := t.conn.Write(framed); err != nil {
		t.fail(err)
		return err
	}
	t.bytesSinceRekey.Add(uint64(len(framed)))
	t.packetsSinceRekey.Add(1)
	return nil
}

// recv reads one transport-layer packet, skipping SSH_MSG_IGNORE/DEBUG.
func (t *transport) recv() ([]byte, error) {
	for {
		var payload []byte
		var err error
		if t.readCipher == nil {
			payload, err = readPlaintextFrame(t.br)
		} else {
			payload, err = t.readCipher.readPacket(t.br)
		}
		if err != nil {
			t.fail(err)
			return nil, err
		}
		if len(payload) == 0 {
			continue
		}
		switch payload[0] {
		case MsgIgnore, MsgDebug:
			continue
		default:
			return payload, nil
		}
	}
}

func (t *transport) fail(err error) {
	t.lastErr = err
	t.disconnected.Store(true)
}

// plaintextFrame frames a packet with no encryption/MAC, used only before
// NEWKEYS (KEXINIT exchange).
func (pc *packetCipher) plaintextFrame(payload []byte) ([]byte, error) {
	padLen := 8 - (5+len(payload))%8
	if padLen < minPacketPadding {
		padLen += 8
	}
	packetLen := 1 + len(payload) + padLen
	buf := make([]byte, 4+packetLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(packetLen))
	buf[4] = byte(padLen)
	copy(buf[5:], payload)
	if _, err := io.ReadFull(rand.Reader, buf[5+len(payload):]); err != nil {
		return nil, err
	}
	return buf, nil
}

func readPlaintextFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	packetLen := binary.BigEndian.Uint32(lenBuf)
	rest := make([]byte, packetLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	padLen := rest[0]
	return rest[1 : len(rest)-int(padLen)], nil
}

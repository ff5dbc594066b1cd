package ssh

import (
	"crypto/rand"
	"fmt"
	"hash"

	"github.com/postalsys/gossh/bigint"
	"github.com/postalsys/gossh/wireutil"
)

// doBannerExchange performs spec §4.1's "Banner exchange" step.
func doBannerExchange(t *transport) (clientID, serverID string, err error) {
	serverID, err = exchangeBanners(t.conn, t.br)
	if err != nil {
		return "", "", err
	}
	return ClientID, serverID, nil
}

// kexInitPayload builds an SSH_MSG_KEXINIT packet body (RFC 4253 §7.1):
// cookie || 10 name-lists || first_kex_packet_follows || reserved.
func kexInitPayload() []byte {
	cookie := make([]byte, 16)
	rand.Read(cookie)
	b := wireutil.NewBuilder().
		WriteByte(MsgKexInit).
		WriteRaw(cookie).
		WriteNameList(kexAlgorithms).
		WriteNameList(hostKeyAlgorithms).
		WriteNameList(cipherPreference).
		WriteNameList(cipherPreference).
		WriteNameList(macPreference).
		WriteNameList(macPreference).
		WriteNameList([]string{"none"}).
		WriteNameList([]string{"none"}).
		WriteNameList([]string{}).
		WriteNameList([]string{}).
		WriteBool(false).
		WriteUint32(0)
	return b.Bytes()
}

type parsedKexInit struct {
	kex, hostKey                                           []string
	cipherC2S, cipherS2C, macC2S, macS2C, compC2S, compS2C []string
}

func parseKexInit(payload []byte) (*parsedKexInit, error) {
	buf := wireutil.NewBuffer(payload[1:])
	if _, err := buf.Shift(16); err != nil { // cookie
		return nil, err
	}
	lists := make([][]string, 10)
	for i := range lists {
		l, err := buf.ReadNameList()
		if err != nil {
			return nil, err
		}
		lists[i] = l
	}
	return &parsedKexInit{
		kex: lists[0], hostKey: lists[1],
		cipherC2S: lists[2], cipherS2C: lists[3],
		macC2S: lists[4], macS2C: lists[5],
		compC2S: lists[6], compS2C: lists[7],
	}, nil
}

// runKex drives spec §4.1's "KexInit -> KexMath -> NewKeys" states to
// completion: exchange KEXINIT, negotiate algorithms, run the selected
// method, and compute the exchange hash H and shared secret K.
func runKex(t *transport) (*kexResult, error) {
	clientKexInit := kexInitPayload()
	if err := t.send(clientKexInit); err != nil {
		return nil, err
	}
	serverKexInitRaw, err := t.recv()
	if err != nil {
		return nil, err
	}
	if len(serverKexInitRaw) == 0 || serverKexInitRaw[0] != MsgKexInit {
		return nil, fmt.Errorf("ssh: expected KEXINIT, got message type %d", serverKexInitRaw[0])
	}
	t.clientKexInit, t.serverKexInit = clientKexInit, serverKexInitRaw

	server, err := parseKexInit(serverKexInitRaw)
	if err != nil {
		return nil, fmt.Errorf("ssh: parsing server KEXINIT: %w", err)
	}

	kexMethod, err := negotiate(kexAlgorithms, server.kex)
	if err != nil {
		return nil, fmt.Errorf("ssh: %w (no supported key exchange algorithm)", err)
	}
	hkMethod, err := negotiate(hostKeyAlgorithms, server.hostKey)
	if err != nil {
		return nil, fmt.Errorf("ssh: %w (no supported host key algorithm)", err)
	}
	cipherC2S, err := negotiate(cipherPreference, server.cipherC2S)
	if err != nil {
		return nil, err
	}
	cipherS2C, err := negotiate(cipherPreference, server.cipherS2C)
	if err != nil {
		return nil, err
	}
	macC2S, err := negotiate(macPreference, server.macC2S)
	if err != nil {
		return nil, err
	}
	macS2C, err := negotiate(macPreference, server.macS2C)
	if err != nil {
		return nil, err
	}

	t.negotiated = kexNegotiated{
		Kex: kexMethod, HostKey: hkMethod,
		CipherC2S: cipherC2S, CipherS2C: cipherS2C,
		MACC2S: macC2S, MACS2C: macS2C,
		CompressionC2S: "none", CompressionS2C: "none",
	}

	hashFn := kexHashFunc(kexMethod)

	send := func(msgType uint8, fields func(*wireutil.Builder)) error {
		b := wireutil.NewBuilder().WriteByte(msgType)
		fields(b)
		return t.send(b.Bytes())
	}

	var hostKeyBlob, sig, clientPubWire, serverPubWire []byte
	var clientE, serverF *bigint.BigInteger
	var K *bigint.BigInteger

	switch {
	case kexMethod == "curve25519-sha256" || kexMethod == "curve25519-sha256@libssh.org":
		var priv [32]byte
		if _, err := rand.Read(priv[:]); err != nil {
			return nil, err
		}
		pub, err := curve25519ScalarBaseMult(priv)
		if err != nil {
			return nil, err
		}
		if err := send(MsgKexEcdhInit, func(b *wireutil.Builder) { b.WriteString(pub[:]) }); err != nil {
			return nil, err
		}
		reply, err := t.recv()
		if err != nil {
			return nil, err
		}
		hostKeyBlob, serverPubWire, sig, err = parseKexReply(reply, MsgKexEcdhReply)
		if err != nil {
			return nil, err
		}
		if len(serverPubWire) != 32 {
			return nil, fmt.Errorf("ssh: bad curve25519 server public key length %d", len(serverPubWire))
		}
		secret, err := curve25519ScalarMult(priv, serverPubWire)
		if err != nil {
			return nil, err
		}
		clientPubWire = pub[:]
		K = bigint.FromBytes(secret, false)

	case curveForKexMethod(kexMethod) != nil:
		ex := ecdhExchange{curve: curveForKexMethod(kexMethod)}
		priv, err := ex.curve.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		clientPubWire = priv.PublicKey().Bytes()
		if err := send(MsgKexEcdhInit, func(b *wireutil.Builder) { b.WriteString(clientPubWire) }); err != nil {
			return nil, err
		}
		reply, err := t.recv()
		if err != nil {
			return nil, err
		}
		hostKeyBlob, serverPubWire, sig, err = parseKexReply(reply, MsgKexEcdhReply)
		if err != nil {
			return nil, err
		}
		peerKey, err := ex.curve.NewPublicKey(serverPubWire)
		if err != nil {
			return nil, err
		}
		secret, err := priv.ECDH(peerKey)
		if err != nil {
			return nil, err
		}
		K = bigint.FromBytes(secret, false)

	default:
		g, ok := dhGroupFor(kexMethod)
		if !ok {
			return nil, fmt.Errorf("ssh: unsupported kex method %q", kexMethod)
		}
		k, ee, ff, err := dhClient(g, func(v *bigint.BigInteger) error {
			return send(MsgKexdhInit, func(b *wireutil.Builder) { b.WriteMPInt(v) })
		}, func() (*bigint.BigInteger, error) {
			reply, err := t.recv()
			if err != nil {
				return nil, err
			}
			if len(reply) == 0 || reply[0] != MsgKexdhReply {
				return nil, fmt.Errorf("ssh: expected kex reply %d, got %d", MsgKexdhReply, reply[0])
			}
			buf := wireutil.NewBuffer(reply[1:])
			hostKeyBlob, err = buf.ReadString()
			if err != nil {
				return nil, err
			}
			fVal, err := buf.ReadMPInt()
			if err != nil {
				return nil, err
			}
			sig, err = buf.ReadString()
			return fVal, err
		})
		if err != nil {
			return nil, err
		}
		clientE, serverF = ee, ff
		K = k
	}

	h := exchangeHash(hashFn, t.clientID, t.serverID, t.clientKexInit, t.serverKexInit, hostKeyBlob, kexMethod, clientPubWire, serverPubWire, clientE, serverF, K)

	return &kexResult{K: K, H: h, HostKey: hostKeyBlob, Signature: sig, HashFunc: hashFn}, nil
}

func parseKexReply(reply []byte, expectType uint8) (hostKey, serverPub, sig []byte, err error) {
	if len(reply) == 0 || reply[0] != expectType {
		return nil, nil, nil, fmt.Errorf("ssh: expected kex reply message %d, got %d", expectType, reply[0])
	}
	buf := wireutil.NewBuffer(reply[1:])
	if hostKey, err = buf.ReadString(); err != nil {
		return nil, nil, nil, err
	}
	if serverPub, err = buf.ReadString(); err != nil {
		return nil, nil, nil, err
	}
	sig, err = buf.ReadString()
	return hostKey, serverPub, sig, err
}

// exchangeHash computes H per RFC 4253 §8 / RFC 5656 §4 / RFC 8731 §3:
// hash(string(V_C) || string(V_S) || string(I_C) || string(I_S) ||
// string(K_S) || <Q_C/Q_S or e/f> || mpint(K)). The classic
// diffie-hellman-group* methods encode the public values as mpint; the
// elliptic-curve methods (ecdh-sha2-*, curve25519-sha256) encode them as
// opaque strings.
func exchangeHash(hashFn func() hash.Hash, clientID, serverID string, clientKexInit, serverKexInit, hostKeyBlob []byte, kexMethod string, clientPub, serverPub []byte, e, f *bigint.BigInteger, k *bigint.BigInteger) []byte {
	b := wireutil.NewBuilder().
		WriteCString(clientID).
		WriteCString(serverID).
		WriteString(clientKexInit).
		WriteString(serverKexInit).
		WriteString(hostKeyBlob)

	if isEllipticKex(kexMethod) {
		b.WriteString(clientPub).WriteString(serverPub)
	} else {
		b.WriteMPInt(e).WriteMPInt(f)
	}
	b.WriteMPInt(k)

	hf := hashFn()
	hf.Write(b.Bytes())
	return hf.Sum(nil)
}

func isEllipticKex(method string) bool {
	switch method {
	case "curve25519-sha256", "curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256", "ecdh-sha2-nistp384", "ecdh-sha2-nistp521":
		return true
	default:
		return false
	}
}

func verifyHostKeySignature(hostKeyBlob, h, sig []byte) error {
	pub, err := parseSSH2PublicKeyBlob(hostKeyBlob)
	if err != nil {
		return fmt.Errorf("parsing host key blob: %w", err)
	}
	sigAlg, rawSig, err := parseSSH2SignatureBlob(sig)
	if err != nil {
		return fmt.Errorf("parsing host key signature: %w", err)
	}

	digest := h
	if newHash := sigHashFor(sigAlg); newHash != nil {
		hf := newHash()
		hf.Write(h)
		digest = hf.Sum(nil)
	}

	if !pub.Verify(digest, rawSig) {
		return fmt.Errorf("host key signature verification failed")
	}
	return nil
}

// installKeys derives the six session keys from (K, H, session_id) per
// RFC 4253 §7.2 and configures both directions' packetCipher.
func installKeys(t *transport, res *kexResult) error {
	if t.sessionID == nil {
		t.sessionID = res.H
	}
	t.hostKey = res.HostKey

	derive := deriveKeys(res.HashFunc, res.K, res.H, t.sessionID)

	cs := cipherSuites[t.negotiated.CipherC2S]
	sc := cipherSuites[t.negotiated.CipherS2C]
	macC2S := macAlgorithms[t.negotiated.MACC2S]
	macS2C := macAlgorithms[t.negotiated.MACS2C]

	ivC2S := derive('A', cs.ivSize)
	ivS2C := derive('B', sc.ivSize)
	keyC2S := derive('C', cs.keySize)
	keyS2C := derive('D', sc.keySize)
	macC2SKey := derive('E', macC2S.keySize)
	macS2CKey := derive('F', macS2C.keySize)

	writeEngine, err := cs.newEngine(keyC2S, ivC2S)
	if err != nil {
		return err
	}
	readEngine, err := sc.newEngine(keyS2C, ivS2C)
	if err != nil {
		return err
	}

	// Send our NEWKEYS (still plaintext-framed; t.writeCipher is nil until
	// below) and wait for the peer's before switching either direction's
	// packetCipher in, per RFC 4253 §7.3.
	if err := t.send([]byte{MsgNewKeys}); err != nil {
		return err
	}
	reply, err := t.recv()
	if err != nil {
		return err
	}
	if len(reply) == 0 || reply[0] != MsgNewKeys {
		return fmt.Errorf("ssh: expected NEWKEYS, got message type %d", reply[0])
	}

	t.writeCipher = &packetCipher{
		engine: writeEngine, isAEAD: cs.isAEAD,
		macAlg: macC2S.alg, macKey: macC2SKey, etm: macC2S.etm,
		blockSize: 16,
	}
	t.readCipher = &packetCipher{
		engine: readEngine, isAEAD: sc.isAEAD,
		macAlg: macS2C.alg, macKey: macS2CKey, etm: macS2C.etm,
		blockSize: 16,
	}

	return nil
}

func requestService(t *transport, name string) error {
	if err := t.send(wireutil.NewBuilder().WriteByte(MsgServiceRequest).WriteCString(name).Bytes()); err != nil {
		return err
	}
	reply, err := t.recv()
	if err != nil {
		return err
	}
	if len(reply) == 0 || reply[0] != MsgServiceAccept {
		return fmt.Errorf("ssh: service request for %q refused", name)
	}
	return nil
}

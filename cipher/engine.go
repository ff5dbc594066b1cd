package cipher

import "fmt"

// Engine is the stateful per-connection cipher object spec §3 describes:
// key, iv/nonce, mode, padding toggle, continuous-buffer toggle, and the
// partial-block buffers that make continuous-buffer streaming possible.
type Engine struct {
	block     BlockCipher
	stream    StreamCipher
	mode      Mode
	blockSize int

	key []byte
	iv  []byte

	paddingOn    bool
	continuousOn bool

	encryptIV []byte
	decryptIV []byte

	enbuffer []byte // unconsumed keystream/feedback bytes for the next Encrypt call
	debuffer []byte
	encPos   int // byte offset into the buffered keystream block, for CTR/CFB/OFB
	decPos   int

	aad []byte // GCM/Poly1305 additional authenticated data

	gcmTagSize int
	lastTag    []byte
}

// LastTag returns the AEAD tag produced by the most recent Encrypt call
// in GCM or Poly1305 mode.
func (e *Engine) LastTag() []byte { return e.lastTag }

// NewBlockEngine constructs an Engine around a block cipher in the given
// mode.
func NewBlockEngine(block BlockCipher, mode Mode) *Engine {
	return &Engine{
		block:        block,
		mode:         mode,
		blockSize:    block.BlockSize(),
		paddingOn:    true,
		continuousOn: false,
		gcmTagSize:   16,
	}
}

// NewStreamEngine constructs an Engine around a native stream cipher
// (mode is always effectively "Stream").
func NewStreamEngine(stream StreamCipher) *Engine {
	return &Engine{stream: stream, mode: StreamRaw, paddingOn: false, continuousOn: true}
}

// SetKey sets the encryption key (and, for a block cipher, performs key
// expansion).
func (e *Engine) SetKey(key []byte) error {
	e.key = key
	if e.block != nil {
		return e.block.SetupKey(key)
	}
	if e.stream != nil {
		return e.stream.SetupKey(key)
	}
	return ErrInvalidArgument
}

// SetIV sets the IV/nonce and resets the mode-specific feedback state.
func (e *Engine) SetIV(iv []byte) error {
	e.iv = append([]byte{}, iv...)
	e.resetState()
	return nil
}

func (e *Engine) resetState() {
	e.encryptIV = append([]byte{}, e.iv...)
	e.decryptIV = append([]byte{}, e.iv...)
	e.enbuffer = nil
	e.debuffer = nil
	e.encPos = 0
	e.decPos = 0
}

// SetPadding toggles PKCS#7 padding (only meaningful for ECB/CBC).
func (e *Engine) SetPadding(on bool) { e.paddingOn = on }

// SetContinuousBuffer toggles continuous-buffer streaming semantics
// (spec §4.3): when on, successive Encrypt/Decrypt calls behave as if
// called once on the concatenation of their inputs.
func (e *Engine) SetContinuousBuffer(on bool) {
	e.continuousOn = on
	if !on {
		e.resetState()
	}
}

// SetAAD sets GCM/Poly1305 additional authenticated data.
func (e *Engine) SetAAD(aad []byte) { e.aad = aad }

// SetTagSize sets the GCM truncated tag length in bytes (4..16, spec §4.3).
func (e *Engine) SetTagSize(n int) error {
	if n < 4 || n > 16 {
		return ErrInvalidArgument
	}
	e.gcmTagSize = n
	return nil
}

// Encrypt encrypts plaintext according to the engine's configured mode.
func (e *Engine) Encrypt(plaintext []byte) ([]byte, error) {
	switch e.mode {
	case StreamRaw:
		out := make([]byte, len(plaintext))
		e.stream.XORKeyStream(out, plaintext)
		return out, nil
	case ECB:
		return e.cryptECB(plaintext, true)
	case CBC:
		return e.cryptCBC(plaintext, true)
	case CTR:
		return e.cryptCTR(plaintext)
	case CFB:
		return e.cryptCFB(plaintext, true)
	case CFB8:
		return e.cryptCFB8(plaintext, true)
	case OFB:
		return e.cryptOFB(plaintext)
	case OFB8:
		return e.cryptOFB8(plaintext)
	case GCM:
		ct, tag, err := e.sealGCM(plaintext)
		if err != nil {
			return nil, err
		}
		e.lastTag = tag
		return ct, nil
	case Poly1305:
		ct, tag, err := e.sealPoly1305(plaintext)
		if err != nil {
			return nil, err
		}
		e.lastTag = tag
		return ct, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadMode, e.mode)
	}
}

// Decrypt decrypts ciphertext according to the engine's configured mode.
func (e *Engine) Decrypt(ciphertext []byte) ([]byte, error) {
	switch e.mode {
	case StreamRaw:
		out := make([]byte, len(ciphertext))
		e.stream.XORKeyStream(out, ciphertext)
		return out, nil
	case ECB:
		return e.cryptECB(ciphertext, false)
	case CBC:
		return e.cryptCBC(ciphertext, false)
	case CTR:
		return e.cryptCTR(ciphertext)
	case CFB:
		return e.cryptCFB(ciphertext, false)
	case CFB8:
		return e.cryptCFB8(ciphertext, false)
	case OFB:
		return e.cryptOFB(ciphertext)
	case OFB8:
		return e.cryptOFB8(ciphertext)
	case GCM:
		return e.openGCM(ciphertext)
	case Poly1305:
		return e.openPoly1305(ciphertext)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadMode, e.mode)
	}
}

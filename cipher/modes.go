package cipher

// This file implements the block cipher modes of operation over the
// BlockCipher contract, including the continuous-buffer streaming contract
// from spec §4.3: when continuousOn is true, state (chaining IV, counter,
// feedback register, and any partial keystream block) survives across
// Encrypt/Decrypt calls, so that two calls of lengths m and n behave
// identically to one call of length m+n. When continuousOn is false, each
// call is independent and starts from the configured IV.

func (e *Engine) cryptECB(data []byte, encrypt bool) ([]byte, error) {
	bs := e.blockSize
	in := data
	if encrypt && e.paddingOn {
		in = Pad(data, bs)
	}
	if len(in)%bs != 0 {
		return nil, ErrLengthMismatch
	}
	out := make([]byte, len(in))
	for off := 0; off < len(in); off += bs {
		if encrypt {
			e.block.EncryptBlock(out[off:off+bs], in[off:off+bs])
		} else {
			e.block.DecryptBlock(out[off:off+bs], in[off:off+bs])
		}
	}
	if !encrypt && e.paddingOn {
		return Unpad(out, bs)
	}
	return out, nil
}

func (e *Engine) cryptCBC(data []byte, encrypt bool) ([]byte, error) {
	bs := e.blockSize
	in := data
	if encrypt && e.paddingOn {
		in = Pad(data, bs)
	}
	if len(in)%bs != 0 {
		return nil, ErrLengthMismatch
	}

	var iv []byte
	if encrypt {
		iv = e.encryptIV
	} else {
		iv = e.decryptIV
	}
	if iv == nil {
		iv = make([]byte, bs)
	}
	prev := append([]byte{}, iv...)

	out := make([]byte, len(in))
	if encrypt {
		block := make([]byte, bs)
		for off := 0; off < len(in); off += bs {
			for i := 0; i < bs; i++ {
				block[i] = in[off+i] ^ prev[i]
			}
			e.block.EncryptBlock(out[off:off+bs], block)
			prev = append(prev[:0], out[off:off+bs]...)
		}
	} else {
		plain := make([]byte, bs)
		for off := 0; off < len(in); off += bs {
			e.block.DecryptBlock(plain, in[off:off+bs])
			for i := 0; i < bs; i++ {
				out[off+i] = plain[i] ^ prev[i]
			}
			prev = append(prev[:0], in[off:off+bs]...)
		}
	}

	if e.continuousOn {
		if encrypt {
			e.encryptIV = prev
		} else {
			e.decryptIV = prev
		}
	}

	if !encrypt && e.paddingOn {
		return Unpad(out, bs)
	}
	return out, nil
}

// cryptCTR runs the same counter-mode keystream for encrypt and decrypt
// (XOR is its own inverse). A partial keystream block left over from a
// previous continuous-buffer call is consumed before generating a new one.
func (e *Engine) cryptCTR(data []byte) ([]byte, error) {
	bs := e.blockSize
	ctr := e.encryptIV
	if ctr == nil {
		ctr = make([]byte, bs)
	} else {
		ctr = append([]byte{}, ctr...)
	}
	buf := e.enbuffer
	pos := e.encPos

	out := make([]byte, len(data))
	ks := make([]byte, bs)
	for i := 0; i < len(data); i++ {
		if pos == 0 || pos >= bs {
			e.block.EncryptBlock(ks, ctr)
			incrementCounter(ctr)
			buf = append(buf[:0], ks...)
			pos = 0
		}
		out[i] = data[i] ^ buf[pos]
		pos++
	}

	if e.continuousOn {
		e.encryptIV = ctr
		e.enbuffer = buf
		e.encPos = pos
	}
	return out, nil
}

func incrementCounter(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			return
		}
	}
}

// cryptCFB implements full-block-feedback CFB: keystream = E(register);
// register is replaced by the ciphertext block once bs bytes have been
// consumed.
func (e *Engine) cryptCFB(data []byte, encrypt bool) ([]byte, error) {
	bs := e.blockSize
	var reg []byte
	if encrypt {
		reg = e.encryptIV
	} else {
		reg = e.decryptIV
	}
	if reg == nil {
		reg = make([]byte, bs)
	} else {
		reg = append([]byte{}, reg...)
	}
	var buf []byte
	var pos int
	if encrypt {
		buf, pos = e.enbuffer, e.encPos
	} else {
		buf, pos = e.debuffer, e.decPos
	}

	// Each ciphertext byte is written into the register at the position
	// whose keystream byte it consumed, so after bs bytes the register
	// holds the full ciphertext block, also across continuous calls.
	out := make([]byte, len(data))
	ks := make([]byte, bs)
	for i := 0; i < len(data); i++ {
		if pos == 0 || pos >= bs {
			e.block.EncryptBlock(ks, reg)
			buf = append(buf[:0], ks...)
			pos = 0
		}
		out[i] = data[i] ^ buf[pos]
		if encrypt {
			reg[pos] = out[i]
		} else {
			reg[pos] = data[i]
		}
		pos++
	}

	if e.continuousOn {
		if encrypt {
			e.encryptIV, e.enbuffer, e.encPos = reg, buf, pos
		} else {
			e.decryptIV, e.debuffer, e.decPos = reg, buf, pos
		}
	}
	return out, nil
}

// cryptCFB8 implements byte-oriented CFB (CFB-8): the feedback register
// shifts in one ciphertext byte at a time.
func (e *Engine) cryptCFB8(data []byte, encrypt bool) ([]byte, error) {
	bs := e.blockSize
	var reg []byte
	if encrypt {
		reg = e.encryptIV
	} else {
		reg = e.decryptIV
	}
	if reg == nil {
		reg = make([]byte, bs)
	} else {
		reg = append([]byte{}, reg...)
	}

	out := make([]byte, len(data))
	ks := make([]byte, bs)
	for i := 0; i < len(data); i++ {
		e.block.EncryptBlock(ks, reg)
		out[i] = data[i] ^ ks[0]
		var feedback byte
		if encrypt {
			feedback = out[i]
		} else {
			feedback = data[i]
		}
		copy(reg, reg[1:])
		reg[bs-1] = feedback
	}

	if e.continuousOn {
		if encrypt {
			e.encryptIV = reg
		} else {
			e.decryptIV = reg
		}
	}
	return out, nil
}

// cryptOFB implements full-block-feedback OFB: the register is replaced by
// its own encryption each block, independent of plaintext or ciphertext.
func (e *Engine) cryptOFB(data []byte) ([]byte, error) {
	bs := e.blockSize
	reg := e.encryptIV
	if reg == nil {
		reg = make([]byte, bs)
	} else {
		reg = append([]byte{}, reg...)
	}
	buf := e.enbuffer
	pos := e.encPos

	out := make([]byte, len(data))
	ks := make([]byte, bs)
	for i := 0; i < len(data); i++ {
		if pos == 0 || pos >= bs {
			e.block.EncryptBlock(ks, reg)
			reg = append(reg[:0], ks...)
			buf = append(buf[:0], ks...)
			pos = 0
		}
		out[i] = data[i] ^ buf[pos]
		pos++
	}

	if e.continuousOn {
		e.encryptIV, e.enbuffer, e.encPos = reg, buf, pos
	}
	return out, nil
}

// cryptOFB8 implements byte-oriented OFB (OFB-8).
func (e *Engine) cryptOFB8(data []byte) ([]byte, error) {
	bs := e.blockSize
	reg := e.encryptIV
	if reg == nil {
		reg = make([]byte, bs)
	} else {
		reg = append([]byte{}, reg...)
	}

	out := make([]byte, len(data))
	ks := make([]byte, bs)
	for i := 0; i < len(data); i++ {
		e.block.EncryptBlock(ks, reg)
		out[i] = data[i] ^ ks[0]
		copy(reg, reg[1:])
		reg[bs-1] = ks[0]
	}

	if e.continuousOn {
		e.encryptIV = reg
	}
	return out, nil
}

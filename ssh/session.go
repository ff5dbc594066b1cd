package ssh

import (
	"context"
	"fmt"
	"io"

	"github.com/postalsys/gossh/wireutil"
)

// TerminalModes carries POSIX termios-style opcode/value pairs for
// pty-req's "encoded terminal modes" field (RFC 4254 §8).
type TerminalModes map[uint8]uint32

// Session is one "session" channel carrying exec, shell, or PTY semantics
// (spec §4.1 "Concurrent interactive channels": CHANNEL_SHELL,
// CHANNEL_EXEC are both just session channels distinguished by which
// channel-request was sent on them).
type Session struct {
	ch *channel

	ptyRequested bool
	ptyActive    bool

	stdout *channelReader
	stderr *channelReader
}

type channelReader struct {
	ch        *channel
	extended  bool
	buf       []byte
}

func (r *channelReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		var data []byte
		var ok bool
		var err error
		if r.extended {
			data, ok, err = r.ch.ReadExtended(context.Background())
		} else {
			data, ok, err = r.ch.Read(context.Background())
		}
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
		r.buf = data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// NewSession opens a "session" channel and wraps it for exec/shell/pty use.
func (c *Client) NewSession() (*Session, error) {
	ch, err := c.mux.openChannel("session", nil)
	if err != nil {
		return nil, fmt.Errorf("ssh: opening session channel: %w", err)
	}
	s := &Session{ch: ch}
	s.stdout = &channelReader{ch: ch}
	s.stderr = &channelReader{ch: ch, extended: true}
	return s, nil
}

// EnablePTY requests a pseudo-terminal before the next exec/shell request
// (spec §4.1 "enablePTY()"). Only one PTY-bearing session may be active on
// a given channel at a time; calling this after Start/Shell/Run is an
// error.
func (s *Session) EnablePTY(term string, rows, cols uint32, modes TerminalModes) error {
	if s.ptyActive {
		return fmt.Errorf("ssh: a PTY is already active on this session")
	}
	if term == "" {
		term = "xterm-256color"
	}
	encoded := encodeTerminalModes(modes)
	payload := wireutil.NewBuilder().
		WriteCString(term).
		WriteUint32(cols).
		WriteUint32(rows).
		WriteUint32(0). // pixel width
		WriteUint32(0). // pixel height
		WriteString(encoded).
		Bytes()
	ok, err := s.ch.SendRequest("pty-req", true, payload)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ssh: server refused pty-req")
	}
	s.ptyRequested = true
	s.ptyActive = true
	return nil
}

// WindowChange sends a "window-change" request to resize an active PTY.
func (s *Session) WindowChange(rows, cols uint32) error {
	payload := wireutil.NewBuilder().WriteUint32(cols).WriteUint32(rows).WriteUint32(0).WriteUint32(0).Bytes()
	_, err := s.ch.SendRequest("window-change", false, payload)
	return err
}

// Setenv requests the server set an environment variable for the session
// (RFC 4254 §6.4). Most servers restrict which names are accepted.
func (s *Session) Setenv(name, value string) error {
	payload := wireutil.NewBuilder().WriteCString(name).WriteCString(value).Bytes()
	ok, err := s.ch.SendRequest("env", true, payload)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ssh: server rejected env %s", name)
	}
	return nil
}

// Start runs cmd as a subprocess on the server ("exec" request) without
// waiting for it to finish.
func (s *Session) Start(cmd string) error {
	payload := wireutil.NewBuilder().WriteCString(cmd).Bytes()
	ok, err := s.ch.SendRequest("exec", true, payload)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ssh: server refused to exec %q", cmd)
	}
	return nil
}

// RequestSubsystem starts a named subsystem (RFC 4254 §6.5, e.g. "sftp")
// on the session in place of an exec/shell request.
func (s *Session) RequestSubsystem(name string) error {
	payload := wireutil.NewBuilder().WriteCString(name).Bytes()
	ok, err := s.ch.SendRequest("subsystem", true, payload)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ssh: server refused subsystem %q", name)
	}
	return nil
}

// Shell starts the user's login shell on the session (RFC 4254 §6.5).
func (s *Session) Shell() error {
	ok, err := s.ch.SendRequest("shell", true, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ssh: server refused to start a shell")
	}
	return nil
}

// Signal delivers a signal to the remote process (RFC 4254 §6.9, e.g.
// "TERM", "INT", "KILL").
func (s *Session) Signal(name string) error {
	payload := wireutil.NewBuilder().WriteCString(name).Bytes()
	_, err := s.ch.SendRequest("signal", false, payload)
	return err
}

// Stdin returns a writer feeding the remote process's stdin.
func (s *Session) Stdin() io.Writer { return writerFunc(s.ch.Write) }

// Stdout returns a reader over the remote process's stdout (CHANNEL_DATA).
func (s *Session) Stdout() io.Reader { return s.stdout }

// Stderr returns a reader over the remote process's stderr
// (CHANNEL_EXTENDED_DATA, type SSH_EXTENDED_DATA_STDERR).
func (s *Session) Stderr() io.Reader { return s.stderr }

// Wait blocks until the session channel closes, returning the remote exit
// code reported via the "exit-status" channel request, if any.
func (s *Session) Wait() (int, error) {
	<-s.ch.closed
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	if !s.ch.exitSet {
		return -1, fmt.Errorf("ssh: remote closed without reporting an exit status")
	}
	return s.ch.exitCode, nil
}

// Close closes the underlying channel.
func (s *Session) Close() error { return s.ch.Close() }

// Run executes cmd, collects its stdout, and waits for completion -- the
// common case covering spec S4's "exec and read exact stdout" scenario.
func (s *Session) Run(cmd string) ([]byte, error) {
	if err := s.Start(cmd); err != nil {
		return nil, err
	}
	out, err := io.ReadAll(s.Stdout())
	if err != nil {
		return out, err
	}
	if _, err := s.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// encodeTerminalModes serializes TerminalModes per RFC 4254 §8: a sequence
// of (opcode byte, uint32 value) pairs terminated by TTY_OP_END (0).
func encodeTerminalModes(modes TerminalModes) []byte {
	b := wireutil.NewBuilder()
	for op, val := range modes {
		b.WriteByte(op).WriteUint32(val)
	}
	b.WriteByte(0)
	return b.Bytes()
}

package scp

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// fakeSession drives an in-process io.Pipe pair and lets a test goroutine
// play the role of the remote scp -t/-f process, since there is no real
// sshd in this test environment.
type fakeSession struct {
	toRemote   *io.PipeReader
	toRemoteW  *io.PipeWriter
	fromRemote *io.PipeReader
	fromRemoteW *io.PipeWriter
	cmd        string
	waitErr    error
}

func newFakeSession() *fakeSession {
	tr, trw := io.Pipe()
	fr, frw := io.Pipe()
	return &fakeSession{toRemote: tr, toRemoteW: trw, fromRemote: fr, fromRemoteW: frw}
}

func (s *fakeSession) Start(cmd string) error      { s.cmd = cmd; return nil }
func (s *fakeSession) Stdin() io.Writer            { return s.toRemoteW }
func (s *fakeSession) Stdout() io.Reader           { return s.fromRemote }
func (s *fakeSession) Wait() (int, error)          { return 0, s.waitErr }
func (s *fakeSession) Close() error                { return nil }

func TestSendFileHappyPath(t *testing.T) {
	sess := newFakeSession()
	var received bytes.Buffer
	var gotControl string

	go func() {
		r := bufio.NewReader(sess.toRemote)
		sess.fromRemoteW.Write([]byte{0}) // ready for control line

		line, _ := r.ReadString('\n')
		gotControl = strings.TrimRight(line, "\n")
		sess.fromRemoteW.Write([]byte{0}) // ack control line

		io.CopyN(&received, r, 11)
		r.ReadByte() // trailing ack byte from sender
		sess.fromRemoteW.Write([]byte{0})
	}()

	payload := "hello world"
	err := SendFile(sess, "/tmp/dst/file.txt", strings.NewReader(payload), int64(len(payload)), 0644)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if received.String() != payload {
		t.Fatalf("remote received %q, want %q", received.String(), payload)
	}
	if !strings.HasPrefix(gotControl, "C0644 11 file.txt") {
		t.Fatalf("unexpected control line: %q", gotControl)
	}
	if sess.cmd != "scp -qt '/tmp/dst'" {
		t.Fatalf("unexpected remote command: %q", sess.cmd)
	}
}

func TestReceiveFileHappyPath(t *testing.T) {
	sess := newFakeSession()
	payload := "fetched contents"

	go func() {
		r := bufio.NewReader(sess.toRemote)
		r.ReadByte() // initial ack from receiver

		sess.fromRemoteW.Write([]byte("C0600 " + itoa(len(payload)) + " file.txt\n"))
		r.ReadByte() // ack of control line

		sess.fromRemoteW.Write([]byte(payload))
		sess.fromRemoteW.Write([]byte{0}) // data-complete ack
		r.ReadByte()                      // final ack from receiver
	}()

	var out bytes.Buffer
	info, err := ReceiveFile(sess, "/tmp/src/file.txt", &out)
	if err != nil {
		t.Fatalf("ReceiveFile: %v", err)
	}
	if out.String() != payload {
		t.Fatalf("got %q, want %q", out.String(), payload)
	}
	if info.Mode != os.FileMode(0600) || info.Name != "file.txt" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	got := shellQuote("it's/a/path")
	want := `'it'\''s/a/path'`
	if got != want {
		t.Fatalf("shellQuote() = %q, want %q", got, want)
	}
}

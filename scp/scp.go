// Package scp implements the SCP file-copy protocol (the single-byte-ack
// exchange over an exec channel RFC 4254 calls "scp -t"/"scp -f") as a
// thin layer over an ssh.Session, the same layering sftp uses.
package scp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Session is the subset of ssh.Session scp needs.
type Session interface {
	Start(cmd string) error
	Stdin() io.Writer
	Stdout() io.Reader
	Wait() (int, error)
	Close() error
}

// ack/nak bytes per the SCP protocol (undocumented by RFC, but universal
// across every scp implementation: 0 = OK, 1 = warning (message follows),
// 2 = fatal error (message follows, connection expected to close)).
const (
	ackOK    = 0
	ackWarn  = 1
	ackFatal = 2
)

// FileInfo describes one file as scp's 'C' control line carries it:
// permission mode, size, and base name (the protocol has no path
// component beyond the base name -- the destination directory is fixed by
// the initial "scp -t" argument).
type FileInfo struct {
	Mode os.FileMode
	Size int64
	Name string
}

// SendFile copies local's contents to remotePath using "scp -t" semantics.
// sess must not yet have Start been called; SendFile drives the whole
// exec/ack/close lifecycle itself.
func SendFile(sess Session, remotePath string, local io.Reader, size int64, mode os.FileMode) error {
	dir, base := splitRemote(remotePath)
	if err := sess.Start(fmt.Sprintf("scp -qt %s", shellQuote(dir))); err != nil {
		return fmt.Errorf("scp: starting scp -t: %w", err)
	}
	w := sess.Stdin()
	r := bufio.NewReader(sess.Stdout())

	if err := readAck(r); err != nil {
		return err
	}

	ctrl := fmt.Sprintf("C%04o %d %s\n", mode.Perm(), size, base)
	if _, err := io.WriteString(w, ctrl); err != nil {
		return fmt.Errorf("scp: writing control line: %w", err)
	}
	if err := readAck(r); err != nil {
		return err
	}

	written, err := io.CopyN(w, local, size)
	if err != nil && err != io.EOF {
		return fmt.Errorf("scp: writing file data: %w", err)
	}
	if written != size {
		return fmt.Errorf("scp: short write: wrote %d of %d bytes", written, size)
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return fmt.Errorf("scp: writing trailing ack byte: %w", err)
	}
	if err := readAck(r); err != nil {
		return err
	}

	if _, err := sess.Wait(); err != nil {
		return fmt.Errorf("scp: remote scp -t exited with error: %w", err)
	}
	return nil
}

// ReceiveFile fetches remotePath into local using "scp -f" semantics.
func ReceiveFile(sess Session, remotePath string, local io.Writer) (FileInfo, error) {
	var info FileInfo
	if err := sess.Start(fmt.Sprintf("scp -qf %s", shellQuote(remotePath))); err != nil {
		return info, fmt.Errorf("scp: starting scp -f: %w", err)
	}
	w := sess.Stdin()
	r := bufio.NewReader(sess.Stdout())

	// Send the initial OK to prompt the remote to emit its control line.
	if _, err := w.Write([]byte{0}); err != nil {
		return info, fmt.Errorf("scp: writing initial ack: %w", err)
	}

	line, err := readLine(r)
	if err != nil {
		return info, fmt.Errorf("scp: reading control line: %w", err)
	}
	info, err = parseControlLine(line)
	if err != nil {
		return info, err
	}

	if _, err := w.Write([]byte{0}); err != nil {
		return info, fmt.Errorf("scp: acking control line: %w", err)
	}

	if _, err := io.CopyN(local, r, info.Size); err != nil {
		return info, fmt.Errorf("scp: reading file data: %w", err)
	}
	if err := readAck(r); err != nil {
		return info, err
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return info, fmt.Errorf("scp: final ack: %w", err)
	}

	if _, err := sess.Wait(); err != nil {
		return info, fmt.Errorf("scp: remote scp -f exited with error: %w", err)
	}
	return info, nil
}

func readAck(r *bufio.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("scp: reading ack byte: %w", err)
	}
	switch b {
	case ackOK:
		return nil
	case ackWarn, ackFatal:
		msg, _ := readLine(r)
		return fmt.Errorf("scp: remote reported an error: %s", msg)
	default:
		return fmt.Errorf("scp: unexpected ack byte %#x", b)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	return strings.TrimRight(line, "\n"), err
}

// parseControlLine parses scp's "C<mode> <size> <name>" control line.
func parseControlLine(line string) (FileInfo, error) {
	var info FileInfo
	if len(line) < 2 || (line[0] != 'C' && line[0] != 'D') {
		return info, fmt.Errorf("scp: unsupported control line %q", line)
	}
	fields := strings.SplitN(line[1:], " ", 3)
	if len(fields) != 3 {
		return info, fmt.Errorf("scp: malformed control line %q", line)
	}
	modeVal, err := strconv.ParseUint(fields[0], 8, 32)
	if err != nil {
		return info, fmt.Errorf("scp: malformed mode in control line %q: %w", line, err)
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return info, fmt.Errorf("scp: malformed size in control line %q: %w", line, err)
	}
	info.Mode = os.FileMode(modeVal)
	info.Size = size
	info.Name = fields[2]
	return info, nil
}

func splitRemote(path string) (dir, base string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ".", path
	}
	return path[:i], path[i+1:]
}

// shellQuote wraps path in single quotes, escaping any embedded single
// quote, since the remote path is interpolated directly into an "scp -t"
// shell command line.
func shellQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

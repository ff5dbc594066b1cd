package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// shellCmd opens an interactive remote shell, switching the local
// terminal into raw mode and sending its window size when the PTY is
// requested; later window-size changes are not forwarded.
func shellCmd() *cobra.Command {
	flags := &connFlags{}
	var termType string
	cmd := &cobra.Command{
		Use:   "shell host",
		Short: "open an interactive remote shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.dial(args[0])
			if err != nil {
				return err
			}
			defer client.Close()

			sess, err := client.NewSession()
			if err != nil {
				return fmt.Errorf("gossh: opening session: %w", err)
			}
			defer sess.Close()

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				width, height, err := term.GetSize(fd)
				if err != nil {
					width, height = 80, 24
				}
				if err := sess.EnablePTY(termType, uint32(height), uint32(width), nil); err != nil {
					return fmt.Errorf("gossh: requesting pty: %w", err)
				}

				oldState, err := term.MakeRaw(fd)
				if err != nil {
					return fmt.Errorf("gossh: entering raw mode: %w", err)
				}
				defer term.Restore(fd, oldState)
			}

			if err := sess.Shell(); err != nil {
				return fmt.Errorf("gossh: starting shell: %w", err)
			}

			go io.Copy(sess.Stdin(), os.Stdin)
			go io.Copy(os.Stdout, sess.Stdout())
			go io.Copy(os.Stderr, sess.Stderr())

			_, err = sess.Wait()
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&termType, "term", envOr("TERM", "xterm-256color"), "TERM value to send for the pty")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

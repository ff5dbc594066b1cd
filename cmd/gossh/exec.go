package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// execCmd runs a single remote command and streams its stdout/stderr,
// mirroring muti-metroo's non-interactive "run" path.
func execCmd() *cobra.Command {
	flags := &connFlags{}
	cmd := &cobra.Command{
		Use:   "exec host command...",
		Short: "run a command on a remote host",
		Args:  cobra.MinimumNArgs(2),
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

			command := joinArgs(args[1:])
			if err := sess.Start(command); err != nil {
				return fmt.Errorf("gossh: starting command: %w", err)
			}

			go io.Copy(os.Stdout, sess.Stdout())
			go io.Copy(os.Stderr, sess.Stderr())

			code, err := sess.Wait()
			if err != nil {
				return fmt.Errorf("gossh: command failed: %w", err)
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

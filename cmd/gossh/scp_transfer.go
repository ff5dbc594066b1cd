package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/postalsys/gossh/scp"
)

func scpPutCmd() *cobra.Command {
	flags := &connFlags{}
	cmd := &cobra.Command{
		Use:   "scp-put localfile host:remotefile",
		Short: "upload a file over SCP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, remotePath, err := splitHostPath(args[1])
			if err != nil {
				return err
			}
			client, err := flags.dial(host)
			if err != nil {
				return err
			}
			defer client.Close()

			sess, err := client.NewSession()
			if err != nil {
				return fmt.Errorf("gossh: opening session: %w", err)
			}

			local, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("gossh: opening %s: %w", args[0], err)
			}
			defer local.Close()

			info, err := local.Stat()
			if err != nil {
				return err
			}

			return scp.SendFile(sess, remotePath, local, info.Size(), info.Mode())
		},
	}
	flags.register(cmd)
	return cmd
}

func scpGetCmd() *cobra.Command {
	flags := &connFlags{}
	cmd := &cobra.Command{
		Use:   "scp-get host:remotefile localfile",
		Short: "download a file over SCP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, remotePath, err := splitHostPath(args[0])
			if err != nil {
				return err
			}
			client, err := flags.dial(host)
			if err != nil {
				return err
			}
			defer client.Close()

			sess, err := client.NewSession()
			if err != nil {
				return fmt.Errorf("gossh: opening session: %w", err)
			}

			local, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("gossh: creating %s: %w", args[1], err)
			}
			defer local.Close()

			info, err := scp.ReceiveFile(sess, remotePath, local)
			if err != nil {
				return fmt.Errorf("gossh: downloading: %w", err)
			}
			return os.Chmod(args[1], info.Mode)
		},
	}
	flags.register(cmd)
	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/postalsys/gossh/sftp"
)

func sftpPutCmd() *cobra.Command {
	flags := &connFlags{}
	cmd := &cobra.Command{
		Use:   "sftp-put localfile host:remotefile",
		Short: "upload a file over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, remotePath, err := splitHostPath(args[1])
			if err != nil {
				return err
			}
			client, sftpClient, err := dialSFTP(flags, host)
			if err != nil {
				return err
			}
			defer client.Close()
			defer sftpClient.Close()

			local, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("gossh: opening %s: %w", args[0], err)
			}
			defer local.Close()

			remote, err := sftpClient.Create(remotePath)
			if err != nil {
				return fmt.Errorf("gossh: creating remote file: %w", err)
			}
			defer remote.Close()

			if _, err := io.Copy(remote, local); err != nil {
				return fmt.Errorf("gossh: uploading: %w", err)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func sftpGetCmd() *cobra.Command {
	flags := &connFlags{}
	cmd := &cobra.Command{
		Use:   "sftp-get host:remotefile localfile",
		Short: "download a file over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, remotePath, err := splitHostPath(args[0])
			if err != nil {
				return err
			}
			client, sftpClient, err := dialSFTP(flags, host)
			if err != nil {
				return err
			}
			defer client.Close()
			defer sftpClient.Close()

			remote, err := sftpClient.OpenRead(remotePath)
			if err != nil {
				return fmt.Errorf("gossh: opening remote file: %w", err)
			}
			defer remote.Close()

			local, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("gossh: creating %s: %w", args[1], err)
			}
			defer local.Close()

			if _, err := io.Copy(local, remote); err != nil {
				return fmt.Errorf("gossh: downloading: %w", err)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func dialSFTP(flags *connFlags, host string) (io.Closer, *sftp.Client, error) {
	client, err := flags.dial(host)
	if err != nil {
		return nil, nil, err
	}
	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("gossh: opening session: %w", err)
	}
	if err := sess.RequestSubsystem("sftp"); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("gossh: requesting sftp subsystem: %w", err)
	}
	sftpClient, err := sftp.NewSessionClient(sess)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("gossh: starting sftp client: %w", err)
	}
	return client, sftpClient, nil
}

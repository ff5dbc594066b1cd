// Package main provides the CLI entry point for gossh.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "gossh",
		Short:   "gossh - a pure-Go SSH2/SFTP/SCP client",
		Version: Version,
	}

	registerConfigFlag(rootCmd)

	rootCmd.AddGroup(&cobra.Group{ID: "transfer", Title: "File Transfer:"})
	rootCmd.AddGroup(&cobra.Group{ID: "remote", Title: "Remote Execution:"})
	rootCmd.AddGroup(&cobra.Group{ID: "keys", Title: "Key Management:"})

	exec := execCmd()
	exec.GroupID = "remote"
	rootCmd.AddCommand(exec)

	shell := shellCmd()
	shell.GroupID = "remote"
	rootCmd.AddCommand(shell)

	sftpPut := sftpPutCmd()
	sftpPut.GroupID = "transfer"
	rootCmd.AddCommand(sftpPut)

	sftpGet := sftpGetCmd()
	sftpGet.GroupID = "transfer"
	rootCmd.AddCommand(sftpGet)

	scpPut := scpPutCmd()
	scpPut.GroupID = "transfer"
	rootCmd.AddCommand(scpPut)

	scpGet := scpGetCmd()
	scpGet.GroupID = "transfer"
	rootCmd.AddCommand(scpGet)

	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

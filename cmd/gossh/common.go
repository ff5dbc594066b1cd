package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/postalsys/gossh/internal/config"
	"github.com/postalsys/gossh/keys"
	"github.com/postalsys/gossh/logging"
	"github.com/postalsys/gossh/ssh"
)

// configPath is a root-level persistent flag every subcommand shares,
// letting "gossh --config ~/.gossh/hosts.yaml exec build-box ..." resolve
// per-host defaults the way the teacher CLI resolves mesh peer aliases.
var configPath string

func registerConfigFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "gossh host config file")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gossh", "config.yaml")
}

var (
	configOnce   sync.Once
	loadedConfig *config.Config
)

func loadConfig() *config.Config {
	configOnce.Do(func() {
		loadedConfig = config.Default()
		if configPath == "" {
			return
		}
		if _, err := os.Stat(configPath); err != nil {
			return
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gossh: ignoring invalid config %s: %v\n", configPath, err)
			return
		}
		loadedConfig = cfg
	})
	return loadedConfig
}

// connFlags holds the flags common to every subcommand that opens an
// ssh.Client, mirroring muti-metroo's -a/-p/--timeout convention. Any
// flag left at its zero value falls back to the resolved config.HostConfig
// for the alias passed on the command line.
type connFlags struct {
	user         string
	password     string
	identityFile string
	port         int
	insecure     bool
	logLevel     string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "remote username (default: config, then root)")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "password authentication")
	cmd.Flags().StringVarP(&f.identityFile, "identity", "i", "", "private key file for publickey authentication")
	cmd.Flags().IntVarP(&f.port, "port", "P", 0, "remote TCP port (default: config, then 22)")
	cmd.Flags().BoolVar(&f.insecure, "insecure-ignore-host-key", false, "skip host key verification (test only)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error; default: config, then warn)")
}

// dial resolves alias against the loaded host config, then opens an
// ssh.Client using whichever auth method ends up selected, preferring
// publickey over password when both are set.
func (f *connFlags) dial(alias string) (*ssh.Client, error) {
	host := loadConfig().Resolve(alias)
	if f.user != "" {
		host.User = f.user
	}
	if f.port != 0 {
		host.Port = f.port
	}
	if f.identityFile != "" {
		host.IdentityFile = f.identityFile
	}
	if f.insecure {
		host.Insecure = true
	}
	logLevel := f.logLevel
	if logLevel == "" {
		logLevel = loadConfig().Logging.Level
	}

	opts := []ssh.ClientOption{
		ssh.WithUser(host.User),
		ssh.WithLogger(logging.NewLogger(logLevel, loadConfig().Logging.Format)),
	}

	if host.Insecure {
		opts = append(opts, ssh.WithHostKeyCallback(ssh.InsecureIgnoreHostKey()))
	} else {
		kh, err := defaultKnownHosts(host.KnownHosts)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ssh.WithHostKeyCallback(kh.Callback()))
	}

	switch {
	case host.IdentityFile != "":
		priv, err := loadPrivateKey(host.IdentityFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ssh.WithAuth(ssh.PublicKey(priv, "")))
	case f.password != "":
		opts = append(opts, ssh.WithAuth(ssh.Password(f.password)))
	default:
		return nil, fmt.Errorf("gossh: no authentication method given (use -p, -i, or a config entry)")
	}

	addr := net.JoinHostPort(host.HostName, fmt.Sprintf("%d", host.Port))
	return ssh.Dial("tcp", addr, opts...)
}

func defaultKnownHosts(path string) (*ssh.KnownHosts, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return ssh.NewKnownHosts(path)
}

func loadPrivateKey(path string) (keys.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	kp, err := keys.LoadKey(data, nil)
	if err != nil {
		return nil, fmt.Errorf("loading identity file %s: %w", path, err)
	}
	return kp.Private, nil
}

// splitHostPath parses the "[user@]host:path" shorthand scp/sftp commands
// traditionally accept, returning the bare host and remote path.
func splitHostPath(spec string) (host, path string, err error) {
	colon := -1
	for i, c := range spec {
		if c == ':' {
			colon = i
			break
		}
	}
	if colon < 0 {
		return "", "", fmt.Errorf("gossh: expected host:path, got %q", spec)
	}
	return spec[:colon], spec[colon+1:], nil
}

// Package config provides configuration file parsing for the gossh CLI:
// per-host connection defaults (user, port, identity file, known_hosts
// path) so repeat invocations don't need to repeat every flag.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ~/.gossh/config.yaml document.
type Config struct {
	Defaults HostConfig            `yaml:"defaults"`
	Hosts    map[string]HostConfig `yaml:"hosts"`
	Logging  LoggingConfig         `yaml:"logging"`
}

// HostConfig holds the connection settings a "hosts" entry can override,
// keyed by the alias passed on the command line instead of a bare
// hostname (e.g. "gossh exec build-box ...").
type HostConfig struct {
	HostName     string `yaml:"hostname"`
	User         string `yaml:"user"`
	Port         int    `yaml:"port"`
	IdentityFile string `yaml:"identity_file"`
	KnownHosts   string `yaml:"known_hosts"`
	Insecure     bool   `yaml:"insecure_ignore_host_key"`
}

// LoggingConfig controls the structured logger cmd/gossh builds via
// logging.NewLogger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in fallback, used as the base a loaded file
// is unmarshaled on top of so unset fields keep a sane value.
func Default() *Config {
	return &Config{
		Defaults: HostConfig{
			User: "root",
			Port: 22,
		},
		Hosts: map[string]HostConfig{},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, expanding ${VAR}/$VAR
// environment references first so a user name or identity path can be
// kept out of the file on disk.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// Validate rejects configs with an unrecognized log level/format, the
// same fixed-enum check the teacher config applies before use.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if !isValidLogFormat(c.Logging.Format) {
		return fmt.Errorf("invalid logging.format: %q", c.Logging.Format)
	}
	for name, h := range c.Hosts {
		if h.Port < 0 || h.Port > 65535 {
			return fmt.Errorf("hosts.%s: invalid port %d", name, h.Port)
		}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// Resolve merges the named host entry (if any) over c.Defaults,
// substituting HostName for the CLI-supplied host alias when present.
func (c *Config) Resolve(alias string) HostConfig {
	merged := c.Defaults
	h, ok := c.Hosts[alias]
	if !ok {
		merged.HostName = alias
		return merged
	}
	if h.HostName != "" {
		merged.HostName = h.HostName
	} else {
		merged.HostName = alias
	}
	if h.User != "" {
		merged.User = h.User
	}
	if h.Port != 0 {
		merged.Port = h.Port
	}
	if h.IdentityFile != "" {
		merged.IdentityFile = h.IdentityFile
	}
	if h.KnownHosts != "" {
		merged.KnownHosts = h.KnownHosts
	}
	if h.Insecure {
		merged.Insecure = true
	}
	return merged
}

// Redacted returns a copy safe to log: identity file paths are kept
// (they name a file, not a secret) but nothing here currently carries
// inline key material, unlike the teacher's TLS/management key fields.
func (c *Config) Redacted() *Config {
	cp := *c
	return &cp
}

package config

import (
	"os"
	"testing"
)

func TestParseAppliesDefaultsForUnsetFields(t *testing.T) {
	cfg, err := Parse([]byte(`hosts:
  build-box:
    hostname: 10.0.0.5
    user: deploy
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected default logging level warn, got %q", cfg.Logging.Level)
	}
	if cfg.Defaults.Port != 22 {
		t.Fatalf("expected default port 22, got %d", cfg.Defaults.Port)
	}
}

func TestResolveMergesHostOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`defaults:
  user: root
  port: 22
hosts:
  build-box:
    hostname: 10.0.0.5
    user: deploy
    port: 2222
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	h := cfg.Resolve("build-box")
	if h.HostName != "10.0.0.5" || h.User != "deploy" || h.Port != 2222 {
		t.Fatalf("unexpected merged host config: %+v", h)
	}
}

func TestResolveFallsBackToAliasAsHostname(t *testing.T) {
	cfg := Default()
	h := cfg.Resolve("example.com")
	if h.HostName != "example.com" {
		t.Fatalf("expected alias used as hostname, got %q", h.HostName)
	}
	if h.User != cfg.Defaults.User {
		t.Fatalf("expected default user to carry over, got %q", h.User)
	}
}

func TestParseRejectsInvalidLogLevel(t *testing.T) {
	_, err := Parse([]byte(`logging:
  level: noisy
`))
	if err == nil {
		t.Fatalf("expected an error for an invalid logging.level")
	}
}

func TestParseRejectsOutOfRangePort(t *testing.T) {
	_, err := Parse([]byte(`hosts:
  bad:
    port: 70000
`))
	if err == nil {
		t.Fatalf("expected an error for an out-of-range port")
	}
}

func TestParseExpandsEnvironmentVariables(t *testing.T) {
	os.Setenv("GOSSH_TEST_USER", "envuser")
	defer os.Unsetenv("GOSSH_TEST_USER")

	cfg, err := Parse([]byte(`defaults:
  user: ${GOSSH_TEST_USER}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Defaults.User != "envuser" {
		t.Fatalf("expected env var expansion, got %q", cfg.Defaults.User)
	}
}

func TestLoadReadsFileFromDisk(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "gossh-config-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString("defaults:\n  user: fromfile\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defaults.User != "fromfile" {
		t.Fatalf("expected user fromfile, got %q", cfg.Defaults.User)
	}
}

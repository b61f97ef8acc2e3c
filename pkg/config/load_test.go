package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "threadgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
proxy:
  listen_address: "0.0.0.0:9000"
  read_timeout: "60s"
upstream:
  command: "./agent"
  args: ["serve", "--quiet"]
  port: 9090
  env:
    OPENAI_API_KEY: "sk-test"
aliases:
  backend: "bolt"
  bolt:
    path: "./aliases.bolt"
telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9000", cfg.Proxy.ListenAddress)
	}
	if cfg.Proxy.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Proxy.ReadTimeout)
	}
	if diff := cmp.Diff([]string{"serve", "--quiet"}, cfg.Upstream.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if cfg.Upstream.Port != 9090 {
		t.Errorf("expected upstream port 9090, got %d", cfg.Upstream.Port)
	}
	if cfg.Upstream.Env["OPENAI_API_KEY"] != "sk-test" {
		t.Errorf("expected upstream env to carry OPENAI_API_KEY")
	}
	if cfg.Aliases.Backend != "bolt" || cfg.Aliases.Bolt.Path != "./aliases.bolt" {
		t.Errorf("unexpected aliases section: %+v", cfg.Aliases)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}

	// Untouched fields keep their defaults.
	if cfg.Upstream.HealthPath != DefaultUpstreamHealthPath {
		t.Errorf("expected default health path, got %q", cfg.Upstream.HealthPath)
	}
	if cfg.Upstream.BackoffMultiplier != DefaultUpstreamBackoffMultiplier {
		t.Errorf("expected default multiplier, got %v", cfg.Upstream.BackoffMultiplier)
	}
	if !cfg.Proxy.CORS.Enabled {
		t.Error("expected CORS enabled by default")
	}
}

func TestLoadConfig_CORSDisabled(t *testing.T) {
	path := writeConfig(t, `
proxy:
  cors:
    enabled: false
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Proxy.CORS.Enabled {
		t.Error("expected explicit false to survive defaults")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing file", missing: true},
		{name: "invalid yaml", content: "proxy: [unterminated"},
		{name: "invalid backend", content: "aliases:\n  backend: redis\n"},
		{name: "unknown upstream env key", content: "upstream:\n  env:\n    HOME: /root\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if !tt.missing {
				path = writeConfig(t, tt.content)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfig_ValidationErrorIsExposed(t *testing.T) {
	path := writeConfig(t, "upstream:\n  port: 70000\n")

	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "upstream.port" {
		t.Errorf("unexpected field errors: %+v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
proxy:
  listen_address: "127.0.0.1:8787"
aliases:
  backend: "memory"
`)

	t.Setenv("THREADGATE_PROXY_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("THREADGATE_UPSTREAM_PORT", "8181")
	t.Setenv("THREADGATE_UPSTREAM_READY_TIMEOUT", "5s")
	t.Setenv("THREADGATE_UPSTREAM_ARGS", "run, --fast")
	t.Setenv("THREADGATE_ALIASES_BACKEND", "sqlite")
	t.Setenv("THREADGATE_TELEMETRY_METRICS_ENABLED", "true")
	t.Setenv("THREADGATE_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("expected env listen address, got %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Upstream.Port != 8181 {
		t.Errorf("expected port 8181, got %d", cfg.Upstream.Port)
	}
	if cfg.Upstream.ReadyTimeout != 5*time.Second {
		t.Errorf("expected ready timeout 5s, got %v", cfg.Upstream.ReadyTimeout)
	}
	if diff := cmp.Diff([]string{"run", "--fast"}, cfg.Upstream.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if cfg.Aliases.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Aliases.Backend)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("expected ratio 0.5, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, "aliases:\n  backend: memory\n")
	t.Setenv("THREADGATE_TELEMETRY_LOGGING_LEVEL", "chatty")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after override")
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("THREADGATE_UPSTREAM_COMMAND", "agent")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.Command != "agent" {
		t.Errorf("expected env command, got %q", cfg.Upstream.Command)
	}
	if cfg.Proxy.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Proxy.ListenAddress)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Default()
	before := *cfg
	ApplyDefaults(cfg)

	if diff := cmp.Diff(before, *cfg); diff != "" {
		t.Errorf("ApplyDefaults changed a defaulted config (-before +after):\n%s", diff)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

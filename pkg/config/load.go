package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "THREADGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the result. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named THREADGATE_SECTION_FIELD
// (e.g., THREADGATE_PROXY_LISTEN_ADDRESS). Environment variables always take
// precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDefaultsWithEnvOverrides builds a configuration from defaults and the
// environment only. It is used when no configuration file exists.
func LoadDefaultsWithEnvOverrides() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load picks LoadConfigWithEnvOverrides when path exists and
// LoadDefaultsWithEnvOverrides otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadDefaultsWithEnvOverrides()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return LoadDefaultsWithEnvOverrides()
	}
	return LoadConfigWithEnvOverrides(path)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	envString("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envDuration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	envDuration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envDuration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	envInt("PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)
	if val := os.Getenv(EnvPrefix + "PROXY_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Proxy.MaxBodyBytes = i
		}
	}
	envBool("PROXY_CORS_ENABLED", &cfg.Proxy.CORS.Enabled)
	envList("PROXY_CORS_ALLOWED_ORIGINS", &cfg.Proxy.CORS.AllowedOrigins)
	envBool("PROXY_TLS_ENABLED", &cfg.Proxy.TLS.Enabled)
	envString("PROXY_TLS_CERT_FILE", &cfg.Proxy.TLS.CertFile)
	envString("PROXY_TLS_KEY_FILE", &cfg.Proxy.TLS.KeyFile)

	// Upstream overrides
	envString("UPSTREAM_COMMAND", &cfg.Upstream.Command)
	envList("UPSTREAM_ARGS", &cfg.Upstream.Args)
	envString("UPSTREAM_DIR", &cfg.Upstream.Dir)
	envString("UPSTREAM_HOST", &cfg.Upstream.Host)
	envInt("UPSTREAM_PORT", &cfg.Upstream.Port)
	envString("UPSTREAM_HEALTH_PATH", &cfg.Upstream.HealthPath)
	envDuration("UPSTREAM_READY_TIMEOUT", &cfg.Upstream.ReadyTimeout)
	envDuration("UPSTREAM_PROBE_TIMEOUT", &cfg.Upstream.ProbeTimeout)
	envDuration("UPSTREAM_REQUEST_TIMEOUT", &cfg.Upstream.RequestTimeout)

	// Alias store overrides
	envString("ALIASES_BACKEND", &cfg.Aliases.Backend)
	envString("ALIASES_STATS_SCHEDULE", &cfg.Aliases.StatsSchedule)
	envString("ALIASES_SQLITE_PATH", &cfg.Aliases.SQLite.Path)
	envString("ALIASES_POSTGRES_DSN", &cfg.Aliases.Postgres.DSN)
	envInt("ALIASES_POSTGRES_MAX_CONNS", &cfg.Aliases.Postgres.MaxConns)
	envString("ALIASES_BOLT_PATH", &cfg.Aliases.Bolt.Path)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// envList reads a comma separated list.
func envList(name string, dst *[]string) {
	val := os.Getenv(EnvPrefix + name)
	if val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

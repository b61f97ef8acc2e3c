package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAliases(&cfg.Aliases)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "read timeout must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "write timeout must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.idle_timeout", Message: "idle timeout must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.shutdown_timeout", Message: "shutdown timeout must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_header_bytes", Message: "max header bytes must be non-negative"})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{Field: "proxy.max_body_bytes", Message: "max body bytes must be positive"})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "proxy.cors.max_age", Message: "max age must be non-negative"})
	}
	errs = append(errs, validateTLS(&cfg.TLS)...)

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	var errs []FieldError

	if cfg.MinVersion != "1.2" && cfg.MinVersion != "1.3" {
		errs = append(errs, FieldError{
			Field:   "proxy.tls.min_version",
			Message: fmt.Sprintf("invalid version %q: must be '1.2' or '1.3'", cfg.MinVersion),
		})
	}
	if cfg.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "proxy.tls.reload_interval", Message: "reload interval must not be negative"})
	}
	if !cfg.Enabled {
		return errs
	}
	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "proxy.tls.cert_file", Message: "cert file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "proxy.tls.key_file", Message: "key file is required when TLS is enabled"})
	}
	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.Host == "" {
		errs = append(errs, FieldError{Field: "upstream.host", Message: "host is required"})
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "upstream.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", cfg.Port),
		})
	}
	if !strings.HasPrefix(cfg.HealthPath, "/") {
		errs = append(errs, FieldError{Field: "upstream.health_path", Message: "health path must start with /"})
	}
	if cfg.ReadyTimeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.ready_timeout", Message: "ready timeout must be positive"})
	}
	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.probe_timeout", Message: "probe timeout must be positive"})
	}
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, FieldError{Field: "upstream.backoff_initial", Message: "initial backoff must be positive"})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, FieldError{Field: "upstream.backoff_max", Message: "max backoff must not be below the initial backoff"})
	}
	if cfg.BackoffMultiplier < 1 {
		errs = append(errs, FieldError{Field: "upstream.backoff_multiplier", Message: "multiplier must be at least 1"})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.request_timeout", Message: "request timeout must be positive"})
	}

	for key := range cfg.Env {
		if !slices.Contains(UpstreamEnvKeys, key) {
			errs = append(errs, FieldError{
				Field:   "upstream.env." + key,
				Message: "variable is not forwarded to the upstream process",
			})
		}
	}

	return errs
}

func validateAliases(cfg *AliasesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite", "sqlite3":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "aliases.sqlite.path", Message: "path is required for the sqlite backends"})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "aliases.sqlite.max_open_conns", Message: "must be non-negative"})
		}
	case "postgres", "pgx":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "aliases.postgres.dsn", Message: "dsn is required for the postgres backends"})
		}
		if cfg.Postgres.MaxConns < 0 {
			errs = append(errs, FieldError{Field: "aliases.postgres.max_conns", Message: "must be non-negative"})
		}
	case "bolt":
		if cfg.Bolt.Path == "" {
			errs = append(errs, FieldError{Field: "aliases.bolt.path", Message: "path is required for the bolt backend"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "aliases.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite', 'sqlite3', 'postgres', 'pgx', 'bolt', or 'memory'", cfg.Backend),
		})
	}

	if cfg.StatsSchedule != "" {
		if _, err := cron.ParseStandard(cfg.StatsSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "aliases.stats_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.StatsSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with / when metrics are enabled",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

package config

import "time"

// Config is the root configuration structure for threadgate.
type Config struct {
	// Proxy contains the inbound HTTP server configuration.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream describes how the single upstream process is started,
	// where it listens and how readiness is probed.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Aliases selects and configures the alias table backend.
	Aliases AliasesConfig `yaml:"aliases"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the HTTP proxy server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8787", "0.0.0.0:8787").
	// Default: "127.0.0.1:8787"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds the time spent writing a response. Event streams
	// relayed from the upstream are subject to it as well.
	// Default: 10m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown, including stopping the
	// upstream process.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1 MiB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits buffered request bodies. Larger bodies are
	// rejected with 413.
	// Default: 10485760 (10 MiB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS terminates HTTPS on the listen address.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS termination settings for the inbound listener.
type TLSConfig struct {
	// Enabled switches the listener to HTTPS.
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM-encoded certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the lowest accepted protocol version.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes. Renewed certificates are picked up without a restart.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Content-Type", "Authorization", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders lists headers readable by browser clients.
	// Default: ["X-Request-ID", "x-thread-alias", "x-thread-refreshed"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 86400
	MaxAge int `yaml:"max_age"`
}

// UpstreamConfig describes the upstream process.
type UpstreamConfig struct {
	// Command is the executable started on demand. When empty the upstream
	// is assumed to be managed elsewhere and always running.
	Command string `yaml:"command"`

	// Args are passed to Command.
	Args []string `yaml:"args"`

	// Dir is the working directory of the started process.
	Dir string `yaml:"dir"`

	// Host the upstream listens on.
	// Default: "127.0.0.1"
	Host string `yaml:"host"`

	// Port the upstream listens on. Always forwarded as PORT.
	// Default: 8080
	Port int `yaml:"port"`

	// HealthPath is polled until it answers 2xx.
	// Default: "/ok"
	HealthPath string `yaml:"health_path"`

	// ReadyTimeout is the total readiness deadline of one start attempt.
	// Default: 30s
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// ProbeTimeout bounds a single readiness probe.
	// Default: 2s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// BackoffInitial is the first wait between readiness probes.
	// Default: 150ms
	BackoffInitial time.Duration `yaml:"backoff_initial"`

	// BackoffMax caps a single wait between readiness probes.
	// Default: 1s
	BackoffMax time.Duration `yaml:"backoff_max"`

	// BackoffMultiplier grows the wait after each failed probe.
	// Default: 1.6
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// RequestTimeout bounds the thread creation call made during recovery.
	// Forwarded client requests are not bounded by it.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Env holds values for the allow-listed environment variables. Keys
	// not set here fall back to the proxy's own environment.
	Env map[string]string `yaml:"env"`
}

// AliasesConfig configures the alias table.
type AliasesConfig struct {
	// Backend selects the storage engine.
	// Options: "sqlite", "sqlite3", "postgres", "pgx", "bolt", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures both the "sqlite" and "sqlite3" backends.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres configures both the "postgres" and "pgx" backends.
	Postgres PostgresConfig `yaml:"postgres"`

	// Bolt configures the "bolt" backend.
	Bolt BoltConfig `yaml:"bolt"`

	// StatsSchedule is a standard cron expression controlling how often the
	// alias gauges are refreshed. Empty disables the reporter.
	// Default: "@every 1m"
	StatsSchedule string `yaml:"stats_schedule"`
}

// SQLiteConfig contains SQLite file settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "./data/threadgate.db"
	Path string `yaml:"path"`

	// MaxOpenConns limits open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	// DSN is a libpq style connection string or URL.
	DSN string `yaml:"dsn"`

	// MaxConns limits pool size.
	// Default: 10
	MaxConns int `yaml:"max_conns"`
}

// BoltConfig contains bbolt file settings.
type BoltConfig struct {
	// Path is the database file.
	// Default: "./data/threadgate.bolt"
	Path string `yaml:"path"`

	// Timeout is how long Open waits for the file lock.
	// Default: 1s
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPatterns are applied to string attributes in addition to the
	// built-in secret patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded and served.
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "threadgate"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for relay duration (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "threadgate"
	ServiceName string `yaml:"service_name"`

	// OTLP contains exporter transport settings.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter settings.
type OTLPConfig struct {
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds a single export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Headers are sent with every export.
	Headers map[string]string `yaml:"headers"`
}

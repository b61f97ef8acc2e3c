package config

import "time"

// Default configuration values.
const (
	DefaultListenAddress   = "127.0.0.1:8787"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = 10 << 20

	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 86400

	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute

	DefaultUpstreamHost              = "127.0.0.1"
	DefaultUpstreamPort              = 8080
	DefaultUpstreamHealthPath        = "/ok"
	DefaultUpstreamReadyTimeout      = 30 * time.Second
	DefaultUpstreamProbeTimeout      = 2 * time.Second
	DefaultUpstreamBackoffInitial    = 150 * time.Millisecond
	DefaultUpstreamBackoffMax        = time.Second
	DefaultUpstreamBackoffMultiplier = 1.6
	DefaultUpstreamRequestTimeout    = 30 * time.Second

	DefaultAliasesBackend       = "sqlite"
	DefaultAliasesStatsSchedule = "@every 1m"
	DefaultSQLitePath           = "./data/threadgate.db"
	DefaultSQLiteMaxOpenConns   = 4
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultPostgresMaxConns     = 10
	DefaultBoltPath             = "./data/threadgate.bolt"
	DefaultBoltTimeout          = time.Second

	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultMetricsPath       = "/metrics"
	DefaultMetricsNamespace  = "threadgate"
	DefaultTracingSampler    = "ratio"
	DefaultTracingRatio      = 0.1
	DefaultTracingEndpoint   = "localhost:4317"
	DefaultTracingService    = "threadgate"
	DefaultTracingOTLPTimout = 10 * time.Second
)

var (
	DefaultCORSAllowedOrigins = []string{"*"}
	DefaultCORSAllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	DefaultCORSAllowedHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	DefaultCORSExposedHeaders = []string{"X-Request-ID", "x-thread-alias", "x-thread-refreshed"}

	DefaultRequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
)

// UpstreamEnvKeys is the allow-list of environment variables handed to the
// upstream process. PORT is always added separately.
var UpstreamEnvKeys = []string{
	"GEMINI_API_KEY",
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"LLM_PROVIDER",
	"SEARCH_PROVIDER",
	"SEARCH_MODEL",
	"AUTORAG_ENDPOINT",
	"AUTORAG_ID",
	"QUERY_GENERATOR_MODEL",
	"ROLE_SELECTOR_MODEL",
	"REFLECTION_MODEL",
	"ANSWER_MODEL",
	"DEBUG_OPENAI_RESPONSES",
	"INTERNAL_API_SECRET",
}

// newConfig returns a Config seeded with the defaults that cannot be told
// apart from an explicit zero after unmarshalling.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Proxy.CORS.Enabled = DefaultCORSEnabled
	return cfg
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := newConfig()
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values and is idempotent.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Proxy.WriteTimeout == 0 {
		cfg.Proxy.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Proxy.MaxBodyBytes == 0 {
		cfg.Proxy.MaxBodyBytes = DefaultMaxBodyBytes
	}
	applyCORSDefaults(&cfg.Proxy.CORS)
	if cfg.Proxy.TLS.MinVersion == "" {
		cfg.Proxy.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Proxy.TLS.ReloadInterval == 0 {
		cfg.Proxy.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	// Upstream defaults
	u := &cfg.Upstream
	if u.Host == "" {
		u.Host = DefaultUpstreamHost
	}
	if u.Port == 0 {
		u.Port = DefaultUpstreamPort
	}
	if u.HealthPath == "" {
		u.HealthPath = DefaultUpstreamHealthPath
	}
	if u.ReadyTimeout == 0 {
		u.ReadyTimeout = DefaultUpstreamReadyTimeout
	}
	if u.ProbeTimeout == 0 {
		u.ProbeTimeout = DefaultUpstreamProbeTimeout
	}
	if u.BackoffInitial == 0 {
		u.BackoffInitial = DefaultUpstreamBackoffInitial
	}
	if u.BackoffMax == 0 {
		u.BackoffMax = DefaultUpstreamBackoffMax
	}
	if u.BackoffMultiplier == 0 {
		u.BackoffMultiplier = DefaultUpstreamBackoffMultiplier
	}
	if u.RequestTimeout == 0 {
		u.RequestTimeout = DefaultUpstreamRequestTimeout
	}

	// Alias store defaults
	a := &cfg.Aliases
	if a.Backend == "" {
		a.Backend = DefaultAliasesBackend
	}
	if a.StatsSchedule == "" {
		a.StatsSchedule = DefaultAliasesStatsSchedule
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = DefaultSQLitePath
	}
	if a.SQLite.MaxOpenConns == 0 {
		a.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if a.SQLite.BusyTimeout == 0 {
		a.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if a.Postgres.MaxConns == 0 {
		a.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if a.Bolt.Path == "" {
		a.Bolt.Path = DefaultBoltPath
	}
	if a.Bolt.Timeout == 0 {
		a.Bolt.Timeout = DefaultBoltTimeout
	}

	// Telemetry defaults
	t := &cfg.Telemetry
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		t.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingService
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultTracingOTLPTimout
	}
}

func applyCORSDefaults(c *CORSConfig) {
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = append([]string(nil), DefaultCORSAllowedOrigins...)
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = append([]string(nil), DefaultCORSAllowedMethods...)
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = append([]string(nil), DefaultCORSAllowedHeaders...)
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = append([]string(nil), DefaultCORSExposedHeaders...)
	}
	if c.MaxAge == 0 {
		c.MaxAge = DefaultCORSMaxAge
	}
}

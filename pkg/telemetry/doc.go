// Package telemetry groups the observability packages of threadgate.
//
// # Components
//
//   - logging: slog setup with secret redaction and request-scoped fields
//   - metrics: Prometheus collectors for the relay, recovery and upstream
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness checks
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
//	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
// # Secrets
//
// The upstream environment carries provider API keys. Every log record
// passes through the redactor, which masks values under secret-looking
// keys as well as anything shaped like an API key or bearer token.
package telemetry

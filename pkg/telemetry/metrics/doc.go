// Package metrics provides Prometheus metrics for threadgate.
//
// # Metrics Categories
//
//   - Relay: request outcomes and durations, recoveries, body patches
//   - Upstream: start attempts, readiness wait, exits, lifecycle state
//   - Aliases: store errors, record count, refresh sum
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRelay("ok", time.Since(start))
//	collector.RecordRecovery("recovered")
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A nil *Collector is valid and records nothing.
package metrics

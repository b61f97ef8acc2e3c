// Package server wires the threadgate components into an HTTP server.
//
// # Basic Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
//
//	srv, err := server.New(ctx, server.Options{
//	    Config:     cfg,
//	    ConfigPath: "config.yaml",
//	    Build:      server.BuildInfo{Version: version},
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// New opens the alias store selected by aliases.backend, builds the
// upstream lifecycle, the relay, the metrics collector and the tracer.
// Nothing touches the database or starts the upstream until the first
// request needs it.
//
// # Routes
//
//   - GET /health: liveness, plain "ok"
//   - GET /ready: readiness JSON with the alias_store and upstream checks
//   - GET /version: build information
//   - GET /metrics: Prometheus exposition, when telemetry.metrics.enabled
//   - everything else: the relay
//
// Only GET (and HEAD) is served locally, so a POST /health still reaches
// the upstream.
//
// # Middleware Chain
//
// Outermost first: request ID, panic recovery, access log, CORS.
//
// # Graceful Shutdown
//
// Start returns after SIGINT, SIGTERM, context cancellation or Stop. The
// shutdown sequence, bounded by proxy.shutdown_timeout:
//  1. Stop accepting connections and drain in-flight requests
//  2. Stop the config watcher and the alias stats reporter
//  3. Stop the upstream process (interrupt, then kill)
//  4. Flush and shut down the tracer
//  5. Close the alias store
//
// # TLS
//
// With proxy.tls.enabled the listener terminates TLS. The certificate pair
// is loaded when Start runs and re-read whenever either file's
// modification time advances, checked every proxy.tls.reload_interval. A
// reload that fails keeps the previous certificate.
//
// # Hot Reload
//
// When ConfigPath is set the file is watched. A valid new file replaces
// the upstream environment used by the next start; other settings apply
// after a restart.
package server

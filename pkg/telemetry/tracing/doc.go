// Package tracing provides OpenTelemetry distributed tracing for threadgate.
//
// Spans:
//
//   - relay.request: one per relayed client request
//   - relay.recover: thread recreation after an upstream 404
//   - upstream.ensure_started: waiting for the upstream to be ready
//
// Spans are exported over OTLP gRPC when telemetry.tracing.enabled is set;
// otherwise a noop tracer is used. Trace context from the client is
// extracted on the way in and injected into every upstream request, so the
// upstream's own spans join the same trace.
//
// Sampling is always ParentBased over one of:
//
//	telemetry:
//	  tracing:
//	    sampler: ratio     # always | never | ratio
//	    sample_ratio: 0.1
package tracing

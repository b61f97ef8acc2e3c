package metrics

import (
	"time"

	"tapcanvas/threadgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks request relaying, thread recovery and body patching.
//
// Metrics:
//   - threadgate_relay_requests_total: relayed requests by outcome
//   - threadgate_relay_request_duration_seconds: relay duration by outcome
//   - threadgate_relay_recoveries_total: recovery attempts by result
//   - threadgate_relay_patches_total: body patch attempts by result
type RelayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recoveriesTotal *prometheus.CounterVec
	patchesTotal    *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Total number of relayed requests by outcome",
			},
			[]string{"outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "request_duration_seconds",
				Help:      "Time from receiving a request to the upstream response headers, in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"outcome"},
		),

		recoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "recoveries_total",
				Help:      "Thread recovery attempts by result",
			},
			[]string{"result"},
		),

		patchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "patches_total",
				Help:      "Response body thread_id rewrites by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.recoveriesTotal,
		rm.patchesTotal,
	)

	return rm
}

// RecordRequest records one relayed request.
func (rm *RelayMetrics) RecordRequest(outcome string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(outcome).Inc()
	rm.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRecovery records one recovery attempt.
func (rm *RelayMetrics) RecordRecovery(result string) {
	rm.recoveriesTotal.WithLabelValues(result).Inc()
}

// RecordPatch records one patch attempt.
func (rm *RelayMetrics) RecordPatch(result string) {
	rm.patchesTotal.WithLabelValues(result).Inc()
}

package metrics

import (
	"time"

	"tapcanvas/threadgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamStates lists the values of the state label, in lifecycle order.
var UpstreamStates = []string{"stopped", "starting", "ready"}

// UpstreamMetrics tracks the upstream process lifecycle.
//
// Metrics:
//   - threadgate_upstream_starts_total: start attempts by result
//   - threadgate_upstream_ready_wait_seconds: time from start to first healthy probe
//   - threadgate_upstream_exits_total: observed process exits
//   - threadgate_upstream_state: 1 for the current lifecycle state, 0 otherwise
type UpstreamMetrics struct {
	startsTotal *prometheus.CounterVec
	readyWait   prometheus.Histogram
	exitsTotal  *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

// NewUpstreamMetrics creates and registers upstream metrics.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		startsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "starts_total",
				Help:      "Upstream start attempts by result",
			},
			[]string{"result"},
		),

		readyWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "ready_wait_seconds",
				Help:      "Time spent waiting for the upstream to become ready",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
		),

		exitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "exits_total",
				Help:      "Observed upstream process exits",
			},
			[]string{"status"},
		),

		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "state",
				Help:      "Current upstream lifecycle state (1 = active)",
			},
			[]string{"state"},
		),
	}

	registry.MustRegister(
		um.startsTotal,
		um.readyWait,
		um.exitsTotal,
		um.state,
	)

	return um
}

// RecordStart records a settled start attempt.
func (um *UpstreamMetrics) RecordStart(result string, wait time.Duration) {
	um.startsTotal.WithLabelValues(result).Inc()
	if wait > 0 {
		um.readyWait.Observe(wait.Seconds())
	}
}

// RecordExit records a process exit.
func (um *UpstreamMetrics) RecordExit(clean bool) {
	status := "error"
	if clean {
		status = "clean"
	}
	um.exitsTotal.WithLabelValues(status).Inc()
}

// SetState sets the gauge for state to 1 and every other state to 0.
func (um *UpstreamMetrics) SetState(state string) {
	for _, s := range UpstreamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		um.state.WithLabelValues(s).Set(v)
	}
}

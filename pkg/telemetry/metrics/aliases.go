package metrics

import (
	"tapcanvas/threadgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AliasMetrics tracks the alias table.
//
// Metrics:
//   - threadgate_aliases_store_errors_total: failed store operations by op
//   - threadgate_aliases_count: number of alias records
//   - threadgate_aliases_refreshes: sum of refresh counts over all records
type AliasMetrics struct {
	storeErrors *prometheus.CounterVec
	count       prometheus.Gauge
	refreshes   prometheus.Gauge
}

// NewAliasMetrics creates and registers alias metrics.
func NewAliasMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AliasMetrics {
	am := &AliasMetrics{
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "aliases",
				Name:      "store_errors_total",
				Help:      "Failed alias store operations by operation",
			},
			[]string{"op"},
		),
		count: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "aliases",
			Name:      "count",
			Help:      "Number of alias records",
		}),
		refreshes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "aliases",
			Name:      "refreshes",
			Help:      "Sum of refresh counts across alias records",
		}),
	}

	registry.MustRegister(am.storeErrors, am.count, am.refreshes)
	return am
}

// RecordError counts a failed operation.
func (am *AliasMetrics) RecordError(op string) {
	am.storeErrors.WithLabelValues(op).Inc()
}

// SetStats publishes table statistics.
func (am *AliasMetrics) SetStats(aliases, refreshes int64) {
	am.count.Set(float64(aliases))
	am.refreshes.Set(float64(refreshes))
}

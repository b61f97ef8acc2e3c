package metrics

import (
	"time"

	"tapcanvas/threadgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the Prometheus registry and every threadgate metric.
//
// All recording methods are safe on a nil *Collector and are no-ops when
// metrics are disabled, so components can hold an optional collector
// without guarding each call.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	relay    *RelayMetrics
	upstream *UpstreamMetrics
	aliases  *AliasMetrics
}

// NewCollector creates a collector with the specified configuration.
// If registry is nil a fresh registry is created, with the Go runtime and
// process collectors registered on it.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		relay:    NewRelayMetrics(cfg, registry),
		upstream: NewUpstreamMetrics(cfg, registry),
		aliases:  NewAliasMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRelay records one relayed request and its outcome.
func (c *Collector) RecordRelay(outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.relay.RecordRequest(outcome, duration)
}

// RecordRecovery records the result of a recovery attempt.
func (c *Collector) RecordRecovery(result string) {
	if !c.enabled() {
		return
	}
	c.relay.RecordRecovery(result)
}

// RecordPatch records the result of a response body patch.
func (c *Collector) RecordPatch(result string) {
	if !c.enabled() {
		return
	}
	c.relay.RecordPatch(result)
}

// RecordUpstreamStart records a start attempt and how long readiness took.
func (c *Collector) RecordUpstreamStart(result string, wait time.Duration) {
	if !c.enabled() {
		return
	}
	c.upstream.RecordStart(result, wait)
}

// RecordUpstreamExit records an observed exit of the upstream process.
func (c *Collector) RecordUpstreamExit(clean bool) {
	if !c.enabled() {
		return
	}
	c.upstream.RecordExit(clean)
}

// SetUpstreamState publishes the lifecycle state.
func (c *Collector) SetUpstreamState(state string) {
	if !c.enabled() {
		return
	}
	c.upstream.SetState(state)
}

// RecordStoreError records a failed alias store operation.
func (c *Collector) RecordStoreError(op string) {
	if !c.enabled() {
		return
	}
	c.aliases.RecordError(op)
}

// SetAliasStats publishes the alias table size and total refresh count.
func (c *Collector) SetAliasStats(aliases, refreshes int64) {
	if !c.enabled() {
		return
	}
	c.aliases.SetStats(aliases, refreshes)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

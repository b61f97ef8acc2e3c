package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tapcanvas/threadgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                true,
		Namespace:              "test",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	c := NewCollector(cfg, registry)
	if c.Registry() != registry {
		t.Error("collector must use the supplied registry")
	}
}

func TestCollector_RecordRelay(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordRelay("ok", 120*time.Millisecond)
	c.RecordRelay("ok", 300*time.Millisecond)
	c.RecordRelay("not_ready", time.Second)

	if got := testutil.ToFloat64(c.relay.requestsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.relay.requestsTotal.WithLabelValues("not_ready")); got != 1 {
		t.Errorf("not_ready requests = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.relay.requestDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_RecoveryAndPatch(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordRecovery("recovered")
	c.RecordRecovery("reused")
	c.RecordRecovery("recovered")
	c.RecordPatch("patched")
	c.RecordPatch("error")

	if got := testutil.ToFloat64(c.relay.recoveriesTotal.WithLabelValues("recovered")); got != 2 {
		t.Errorf("recovered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.relay.patchesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("patch errors = %v, want 1", got)
	}
}

func TestCollector_UpstreamState(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.SetUpstreamState("starting")
	c.SetUpstreamState("ready")

	for state, want := range map[string]float64{"stopped": 0, "starting": 0, "ready": 1} {
		if got := testutil.ToFloat64(c.upstream.state.WithLabelValues(state)); got != want {
			t.Errorf("state %s = %v, want %v", state, got, want)
		}
	}

	c.RecordUpstreamStart("ok", 2*time.Second)
	c.RecordUpstreamExit(false)
	if got := testutil.ToFloat64(c.upstream.startsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("starts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.upstream.exitsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("exits = %v, want 1", got)
	}
}

func TestCollector_AliasStats(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.SetAliasStats(12, 3)
	c.RecordStoreError("lookup")

	if got := testutil.ToFloat64(c.aliases.count); got != 12 {
		t.Errorf("alias count = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.aliases.refreshes); got != 3 {
		t.Errorf("refreshes = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.aliases.storeErrors.WithLabelValues("lookup")); got != 1 {
		t.Errorf("store errors = %v, want 1", got)
	}
}

func TestCollector_DisabledAndNil(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordRelay("ok", time.Second)
	if got := testutil.ToFloat64(c.relay.requestsTotal.WithLabelValues("ok")); got != 0 {
		t.Errorf("disabled collector recorded %v", got)
	}

	var nilCollector *Collector
	nilCollector.RecordRelay("ok", time.Second)
	nilCollector.RecordRecovery("recovered")
	nilCollector.SetAliasStats(1, 1)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.RecordRelay("ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"test_relay_requests_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

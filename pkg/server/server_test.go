package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/config"
	"tapcanvas/threadgate/pkg/telemetry/health"
)

// fakeUpstream serves a tiny thread API in process and records lifecycle
// calls made by the server.
type fakeUpstream struct {
	srv *httptest.Server
	url *url.URL

	mu        sync.Mutex
	known     map[string]bool
	stopped   int
	env       map[string]string
	healthErr error
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{known: map[string]bool{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	f.url, _ = url.Parse(f.srv.URL)
	return f
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost && r.URL.Path == "/threads" {
		f.known["t_987"] = true
		_, _ = io.WriteString(w, `{"thread_id":"t_987"}`)
		return
	}
	if id, ok := strings.CutPrefix(r.URL.Path, "/threads/"); ok {
		id, _, _ = strings.Cut(id, "/")
		if !f.known[id] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"thread not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"thread_id":"`+id+`","text":"hi"}`)
		return
	}
	_, _ = io.WriteString(w, `{"path":"`+r.URL.Path+`"}`)
}

func (f *fakeUpstream) EnsureStarted(context.Context) error { return nil }
func (f *fakeUpstream) BaseURL() *url.URL                  { return f.url }

func (f *fakeUpstream) HealthCheck(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeUpstream) SetEnv(env map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.env = env
}

func (f *fakeUpstream) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeUpstream) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Proxy.ListenAddress = "127.0.0.1:0"
	cfg.Proxy.ShutdownTimeout = 5 * time.Second
	cfg.Aliases.Backend = aliasstore.BackendMemory
	cfg.Telemetry.Metrics.Enabled = true
	return cfg
}

func newTestServer(t *testing.T, store aliasstore.Store, up *fakeUpstream) *Server {
	t.Helper()
	srv, err := New(context.Background(), Options{
		Config:   testConfig(),
		Build:    BuildInfo{Version: "1.2.3", Commit: "abc1234"},
		Store:    store,
		Upstream: up,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestServer_LocalRoutes(t *testing.T) {
	srv := newTestServer(t, aliasstore.NewMemory(), newFakeUpstream(t))
	h := srv.Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"liveness", "/health", http.StatusOK, "ok"},
		{"readiness", "/ready", http.StatusOK, `"status":"ready"`},
		{"version", "/version", http.StatusOK, `"version":"1.2.3"`},
		{"metrics", "/metrics", http.StatusOK, "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", w.Body.String(), tt.wantBody)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID missing")
			}
		})
	}
}

func TestServer_ReadinessReportsFailingChecks(t *testing.T) {
	store := aliasstore.NewMemory()
	store.SetFailure(errors.New("disk gone"))
	up := newFakeUpstream(t)
	up.healthErr = errors.New("probe returned 502")

	srv := newTestServer(t, store, up)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var report health.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	for _, name := range []string{"alias_store", "upstream"} {
		if report.Checks[name].Status != health.StatusUnhealthy {
			t.Errorf("check %s = %+v, want unhealthy", name, report.Checks[name])
		}
	}
}

func TestServer_RelaysThreadTraffic(t *testing.T) {
	store := aliasstore.NewMemory()
	srv := newTestServer(t, store, newFakeUpstream(t))
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/threads/conv-42/messages", strings.NewReader(`{"text":"hi"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"thread_id":"conv-42","text":"hi"}` {
		t.Errorf("body = %s", got)
	}
	if w.Header().Get("X-Thread-Alias") != "conv-42" || w.Header().Get("X-Thread-Refreshed") != "1" {
		t.Errorf("alias headers = %v", w.Header())
	}

	rec, err := store.Lookup(context.Background(), "conv-42")
	if err != nil || rec == nil {
		t.Fatalf("Lookup: %v, %v", rec, err)
	}
	if rec.InternalID != "t_987" || rec.RefreshCount != 1 {
		t.Errorf("record = %+v", rec)
	}

	n, err := testutil.GatherAndCount(srv.Metrics().Registry(), "threadgate_relay_recoveries_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("recovery series = %d, want 1", n)
	}
}

func TestServer_NonThreadPathsAreRelayed(t *testing.T) {
	srv := newTestServer(t, aliasstore.NewMemory(), newFakeUpstream(t))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"path":"/health"`) {
		t.Errorf("POST /health should reach the upstream, got %d %s", w.Code, w.Body.String())
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	up := newFakeUpstream(t)
	srv := newTestServer(t, aliasstore.NewMemory(), up)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	if srv.IsRunning() {
		t.Error("server still marked running")
	}
	if up.stopCount() != 1 {
		t.Errorf("upstream stopped %d times, want 1", up.stopCount())
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNew_InvalidStatsSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Aliases.StatsSchedule = "not a schedule"
	_, err := New(context.Background(), Options{
		Config:   cfg,
		Store:    aliasstore.NewMemory(),
		Upstream: newFakeUpstream(t),
	})
	if err == nil {
		t.Fatal("expected schedule error")
	}
}

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeSupervisor pretends to spawn a process; the process is "running"
// from Start until exit is called.
type fakeSupervisor struct {
	url *url.URL

	mu       sync.Mutex
	starts   int
	running  bool
	lastEnv  map[string]string
	startErr error
	exitCh   chan error
}

func newFakeSupervisor(u string) *fakeSupervisor {
	parsed, _ := url.Parse(u)
	return &fakeSupervisor{url: parsed, exitCh: make(chan error, 1)}
}

func (f *fakeSupervisor) Start(_ context.Context, opts StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastEnv = opts.Env
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeSupervisor) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSupervisor) BaseURL() *url.URL { return f.url }

func (f *fakeSupervisor) Wait(ctx context.Context) error {
	select {
	case err := <-f.exitCh:
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSupervisor) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type stateRecorder struct {
	mu     sync.Mutex
	states []string
	starts []string
	exits  []bool
}

func (r *stateRecorder) RecordUpstreamStart(result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, result)
}

func (r *stateRecorder) RecordUpstreamExit(clean bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, clean)
}

func (r *stateRecorder) SetUpstreamState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func fastPolicy() ProbePolicy {
	return ProbePolicy{
		Path:         "/ok",
		Timeout:      2 * time.Second,
		ProbeTimeout: 200 * time.Millisecond,
		Initial:      5 * time.Millisecond,
		Max:          20 * time.Millisecond,
		Multiplier:   1.6,
	}
}

// healthServer answers /ok with 503 until ready is set.
func healthServer(t *testing.T, ready *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok" {
			http.NotFound(w, r)
			return
		}
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLifecycle_ConcurrentStartsShareOneAttempt(t *testing.T) {
	var ready atomic.Bool
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)
	rec := &stateRecorder{}

	l := New(Options{Supervisor: sup, Policy: fastPolicy(), Port: 8080, Recorder: rec})

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.EnsureStarted(context.Background())
		}()
	}

	time.Sleep(30 * time.Millisecond)
	ready.Store(true)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureStarted: %v", err)
		}
	}
	if got := sup.startCount(); got != 1 {
		t.Errorf("Supervisor.Start called %d times, want 1", got)
	}
	if l.State() != StateReady {
		t.Errorf("state = %v, want ready", l.State())
	}
	if diff := cmp.Diff([]string{"ready"}, rec.starts); diff != "" {
		t.Errorf("start results (-want +got):\n%s", diff)
	}
}

func TestLifecycle_RunningUpstreamIsOnlyProbed(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)
	sup.running = true

	l := New(Options{Supervisor: sup, Policy: fastPolicy()})
	if err := l.EnsureStarted(context.Background()); err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if sup.startCount() != 0 {
		t.Error("running upstream should not be started again")
	}
	if l.State() != StateReady {
		t.Errorf("state = %v, want ready", l.State())
	}
}

func TestLifecycle_NotReadyAfterDeadline(t *testing.T) {
	var ready atomic.Bool
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)

	policy := fastPolicy()
	policy.Timeout = 100 * time.Millisecond
	l := New(Options{Supervisor: sup, Policy: policy})

	err := l.EnsureStarted(context.Background())
	var notReady *NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("expected *NotReadyError, got %v", err)
	}
	if l.State() != StateStopped {
		t.Errorf("state = %v, want stopped", l.State())
	}

	// The memo is cleared, so a later call starts afresh.
	sup.mu.Lock()
	sup.running = false
	sup.mu.Unlock()
	ready.Store(true)
	if err := l.EnsureStarted(context.Background()); err != nil {
		t.Fatalf("second EnsureStarted: %v", err)
	}
	if got := sup.startCount(); got != 2 {
		t.Errorf("Supervisor.Start called %d times, want 2", got)
	}
}

func TestLifecycle_StartError(t *testing.T) {
	sup := newFakeSupervisor("http://127.0.0.1:1")
	sup.startErr = errors.New("exec: no such file")
	rec := &stateRecorder{}

	l := New(Options{Supervisor: sup, Policy: fastPolicy(), Recorder: rec})
	err := l.EnsureStarted(context.Background())

	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected *StartError, got %v", err)
	}
	if diff := cmp.Diff([]string{"start_error"}, rec.starts); diff != "" {
		t.Errorf("start results (-want +got):\n%s", diff)
	}
}

func TestLifecycle_CallerCancellationDoesNotAbortStart(t *testing.T) {
	var ready atomic.Bool
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)
	l := New(Options{Supervisor: sup, Policy: fastPolicy()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.EnsureStarted(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v, want context.Canceled", err)
	}

	ready.Store(true)
	if err := l.EnsureStarted(context.Background()); err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if got := sup.startCount(); got != 1 {
		t.Errorf("Supervisor.Start called %d times, want 1", got)
	}
}

func TestLifecycle_MonitorObservesExit(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)
	rec := &stateRecorder{}

	l := New(Options{Supervisor: sup, Policy: fastPolicy(), Recorder: rec})
	t.Cleanup(func() { _ = l.Stop(context.Background()) })

	if err := l.EnsureStarted(context.Background()); err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}

	sup.exitCh <- errors.New("exit status 1")

	deadline := time.Now().Add(time.Second)
	for l.State() != StateStopped && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if l.State() != StateStopped {
		t.Fatalf("state = %v after exit, want stopped", l.State())
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if diff := cmp.Diff([]bool{false}, rec.exits); diff != "" {
		t.Errorf("exits (-want +got):\n%s", diff)
	}
}

func TestLifecycle_SetEnvAppliesToNextStart(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)

	l := New(Options{
		Supervisor: sup,
		Policy:     fastPolicy(),
		Port:       9000,
		Env:        map[string]string{"LLM_PROVIDER": "gemini"},
		LookupEnv:  func(string) (string, bool) { return "", false },
	})
	l.SetEnv(map[string]string{"LLM_PROVIDER": "openai", "HOME": "/root"})

	if err := l.EnsureStarted(context.Background()); err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}

	want := map[string]string{"LLM_PROVIDER": "openai", "PORT": "9000"}
	if diff := cmp.Diff(want, sup.lastEnv); diff != "" {
		t.Errorf("start env (-want +got):\n%s", diff)
	}
}

func TestLifecycle_HealthCheck(t *testing.T) {
	var ready atomic.Bool
	srv := healthServer(t, &ready)
	sup := newFakeSupervisor(srv.URL)
	l := New(Options{Supervisor: sup, Policy: fastPolicy()})

	if err := l.HealthCheck(context.Background()); err != nil {
		t.Errorf("cold upstream should be healthy, got %v", err)
	}

	sup.running = true
	if err := l.HealthCheck(context.Background()); err == nil {
		t.Error("running upstream answering 503 should be unhealthy")
	}

	ready.Store(true)
	if err := l.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

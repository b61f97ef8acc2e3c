package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tapcanvas/threadgate/pkg/config"
	"tapcanvas/threadgate/pkg/telemetry/tracing"
)

// State is the lifecycle state of the upstream.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateReady
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	default:
		return "stopped"
	}
}

// Recorder receives lifecycle measurements. *metrics.Collector satisfies it.
type Recorder interface {
	RecordUpstreamStart(result string, wait time.Duration)
	RecordUpstreamExit(clean bool)
	SetUpstreamState(state string)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpstreamStart(string, time.Duration) {}
func (noopRecorder) RecordUpstreamExit(bool)                   {}
func (noopRecorder) SetUpstreamState(string)                   {}

// Options configures a Lifecycle.
type Options struct {
	Supervisor Supervisor
	Policy     ProbePolicy
	Port       int
	Env        map[string]string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   Recorder
	Tracer     *tracing.Tracer

	// LookupEnv reads the proxy's own environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// startCall is one in-flight start attempt shared by every waiter.
type startCall struct {
	done chan struct{}
	err  error
}

// Lifecycle starts the upstream on demand and coalesces concurrent starts.
type Lifecycle struct {
	sup       Supervisor
	prober    *Prober
	port      int
	lookupEnv func(string) (string, bool)
	logger    *slog.Logger
	recorder  Recorder
	tracer    *tracing.Tracer

	monitorCtx    context.Context
	cancelMonitor context.CancelFunc

	mu       sync.Mutex
	state    State
	inflight *startCall
	env      map[string]string
}

// New creates a Lifecycle in the stopped state.
func New(opts Options) *Lifecycle {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "upstream")

	rec := opts.Recorder
	if rec == nil {
		rec = noopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Lifecycle{
		sup:           opts.Supervisor,
		prober:        NewProber(opts.HTTPClient, opts.Supervisor.BaseURL, opts.Policy, logger),
		port:          opts.Port,
		lookupEnv:     opts.LookupEnv,
		logger:        logger,
		recorder:      rec,
		tracer:        opts.Tracer,
		monitorCtx:    ctx,
		cancelMonitor: cancel,
		env:           maps.Clone(opts.Env),
	}
	rec.SetUpstreamState(StateStopped.String())
	return l
}

// NewFromConfig builds a Lifecycle for cfg. An empty command selects the
// ExternalSupervisor.
func NewFromConfig(cfg config.UpstreamConfig, logger *slog.Logger, rec Recorder, tracer *tracing.Tracer) *Lifecycle {
	var sup Supervisor
	if cfg.Command == "" {
		sup = NewExternalSupervisor(cfg.Host, cfg.Port)
	} else {
		sup = NewProcessSupervisor(cfg.Command, cfg.Args, cfg.Dir, cfg.Host, cfg.Port, logger)
	}

	return New(Options{
		Supervisor: sup,
		Policy:     PolicyFromConfig(cfg),
		Port:       cfg.Port,
		Env:        cfg.Env,
		Logger:     logger,
		Recorder:   rec,
		Tracer:     tracer,
	})
}

// PolicyFromConfig maps the upstream section to a ProbePolicy.
func PolicyFromConfig(cfg config.UpstreamConfig) ProbePolicy {
	return ProbePolicy{
		Path:         cfg.HealthPath,
		Timeout:      cfg.ReadyTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
		Initial:      cfg.BackoffInitial,
		Max:          cfg.BackoffMax,
		Multiplier:   cfg.BackoffMultiplier,
	}
}

// BaseURL returns the upstream base URL.
func (l *Lifecycle) BaseURL() *url.URL {
	return l.sup.BaseURL()
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetEnv replaces the configured environment used by the next start.
func (l *Lifecycle) SetEnv(env map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.env = maps.Clone(env)
}

// EnsureStarted returns once the upstream answers its health probe.
//
// A running upstream is only probed. Otherwise a start attempt is begun,
// or joined when one is already in flight. The attempt runs detached from
// ctx: when ctx ends this call returns ctx's error while the attempt
// continues for the other waiters.
func (l *Lifecycle) EnsureStarted(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, tracing.SpanUpstreamEnsureStarted)
	defer span.End()

	l.mu.Lock()
	call := l.inflight
	if call == nil {
		if l.sup.Running() {
			l.mu.Unlock()
			err := l.prober.WaitForReady(ctx)
			if err == nil {
				l.setState(StateReady)
			}
			tracing.SetError(span, err)
			return err
		}

		call = &startCall{done: make(chan struct{})}
		l.inflight = call
		l.state = StateStarting
		l.recorder.SetUpstreamState(StateStarting.String())
		go l.start(context.WithoutCancel(ctx), call)
	} else {
		span.SetAttributes(attribute.Bool("threadgate.upstream.joined", true))
	}
	l.mu.Unlock()

	select {
	case <-call.done:
		tracing.SetError(span, call.err)
		return call.err
	case <-ctx.Done():
		tracing.SetError(span, ctx.Err())
		return ctx.Err()
	}
}

func (l *Lifecycle) start(ctx context.Context, call *startCall) {
	begin := time.Now()

	defer func() {
		if r := recover(); r != nil {
			call.err = &StartError{Cause: fmt.Errorf("panic: %v", r)}
		}

		next := StateReady
		if call.err != nil {
			next = StateStopped
		}

		l.mu.Lock()
		l.inflight = nil
		l.state = next
		l.mu.Unlock()
		l.recorder.SetUpstreamState(next.String())

		close(call.done)
	}()

	l.mu.Lock()
	env := FilterEnv(l.env, l.lookupEnv, l.port)
	l.mu.Unlock()

	l.logger.Info("starting upstream", "base_url", l.sup.BaseURL().String(), "env_keys", len(env))

	if err := l.sup.Start(ctx, StartOptions{Env: env}); err != nil {
		call.err = &StartError{Cause: err}
		l.recorder.RecordUpstreamStart("start_error", time.Since(begin))
		l.logger.Error("upstream start failed", "error", err)
		return
	}

	go l.monitor()

	if err := l.prober.WaitForReady(ctx); err != nil {
		call.err = err
		l.recorder.RecordUpstreamStart("not_ready", time.Since(begin))
		l.logger.Error("upstream did not become ready", "error", err)
		return
	}

	wait := time.Since(begin)
	l.recorder.RecordUpstreamStart("ready", wait)
	l.logger.Info("upstream ready", "wait", wait)
}

// monitor logs the exit of the process started by the current attempt.
func (l *Lifecycle) monitor() {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("upstream monitor panicked", "panic", r)
		}
	}()

	err := l.sup.Wait(l.monitorCtx)
	if l.monitorCtx.Err() != nil {
		return
	}

	l.recorder.RecordUpstreamExit(err == nil)
	if err != nil {
		l.logger.Warn("upstream process exited", "error", err)
	} else {
		l.logger.Info("upstream process exited")
	}

	l.mu.Lock()
	if l.inflight == nil {
		l.state = StateStopped
		l.recorder.SetUpstreamState(StateStopped.String())
	}
	l.mu.Unlock()
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight != nil {
		return
	}
	if l.state != s {
		l.state = s
		l.recorder.SetUpstreamState(s.String())
	}
}

// HealthCheck is a readiness check for the health checker. A stopped or
// starting upstream is healthy because the next request starts it; a
// running one is probed once.
func (l *Lifecycle) HealthCheck(ctx context.Context) error {
	if l.State() == StateStarting || !l.sup.Running() {
		return nil
	}
	return l.prober.Probe(ctx)
}

// Stop ends exit monitoring and stops the process when the supervisor
// supports it.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.cancelMonitor()

	stopper, ok := l.sup.(Stopper)
	if !ok {
		return nil
	}
	if err := stopper.Stop(ctx); err != nil {
		return fmt.Errorf("stop upstream: %w", err)
	}
	l.setState(StateStopped)
	return nil
}

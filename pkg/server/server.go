package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/config"
	"tapcanvas/threadgate/pkg/proxy"
	"tapcanvas/threadgate/pkg/proxy/middleware"
	"tapcanvas/threadgate/pkg/telemetry/health"
	"tapcanvas/threadgate/pkg/telemetry/metrics"
	"tapcanvas/threadgate/pkg/telemetry/tracing"
	"tapcanvas/threadgate/pkg/upstream"
)

// Upstream is the lifecycle the server drives. *upstream.Lifecycle
// implements it.
type Upstream interface {
	proxy.Upstream
	HealthCheck(ctx context.Context) error
	SetEnv(env map[string]string)
	Stop(ctx context.Context) error
}

// BuildInfo is reported by /version and attached to traces.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options configures a Server. Only Config is required; the remaining
// fields replace the components the server would otherwise build from it.
type Options struct {
	Config *config.Config

	// ConfigPath enables hot reload of the upstream environment when set.
	ConfigPath string

	Build  BuildInfo
	Logger *slog.Logger

	Store    aliasstore.Store
	Upstream Upstream
	Tracer   *tracing.Tracer
}

// Server owns the alias store, the upstream lifecycle and the HTTP
// listener, and shuts them down together.
type Server struct {
	config     *config.Config
	configPath string
	build      BuildInfo
	logger     *slog.Logger

	store    aliasstore.Store
	upstream Upstream
	relay    *proxy.Relay
	checker  *health.Checker
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	reporter *aliasstore.Reporter
	handler  http.Handler

	httpServer   *http.Server
	watcher      *config.Watcher
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New builds a Server. The alias store is opened but its schema is not
// touched, and the upstream is not started; both happen on first use.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		configPath:   opts.ConfigPath,
		build:        opts.Build,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}

	s.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	s.tracer = opts.Tracer
	if s.tracer == nil {
		tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, opts.Build.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		s.tracer = tracer
	}

	store := opts.Store
	if store == nil {
		opened, err := aliasstore.Open(ctx, cfg.Aliases)
		if err != nil {
			return nil, fmt.Errorf("failed to open alias store: %w", err)
		}
		store = opened
	}
	s.store = aliasstore.Instrument(store, s.metrics)

	s.upstream = opts.Upstream
	if s.upstream == nil {
		s.upstream = upstream.NewFromConfig(cfg.Upstream, logger, s.metrics, s.tracer)
	}

	if cfg.Aliases.StatsSchedule != "" {
		reporter, err := aliasstore.NewReporter(s.store, s.metrics, cfg.Aliases.StatsSchedule, logger)
		if err != nil {
			return nil, err
		}
		s.reporter = reporter
	}

	s.relay = proxy.NewRelay(proxy.Options{
		Store:           s.store,
		Upstream:        s.upstream,
		MaxBodyBytes:    cfg.Proxy.MaxBodyBytes,
		RecoveryTimeout: cfg.Upstream.RequestTimeout,
		Logger:          logger,
		Recorder:        s.metrics,
		Tracer:          s.tracer,
	})

	s.checker = health.New(cfg.Upstream.ProbeTimeout)
	s.checker.RegisterCheck("alias_store", health.PingCheck(s.store))
	s.checker.RegisterCheck("upstream", s.upstream.HealthCheck)

	s.handler = s.setupRoutes()
	return s, nil
}

// Start listens on the configured address and blocks until ctx is
// cancelled, SIGINT or SIGTERM arrives, Stop is called or the listener
// fails. Every exit path except a listener failure shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	tlsCfg := s.config.Proxy.TLS
	var reloader *certReloader
	if tlsCfg.Enabled {
		r, err := newCertReloader(tlsCfg, s.logger)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to load tls certificate: %w", err)
		}
		reloader = r
	}

	ln, err := net.Listen("tcp", s.config.Proxy.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Proxy.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Proxy.ReadTimeout,
		WriteTimeout:   s.config.Proxy.WriteTimeout,
		IdleTimeout:    s.config.Proxy.IdleTimeout,
		MaxHeaderBytes: s.config.Proxy.MaxHeaderBytes,
	}
	if reloader != nil {
		s.httpServer.TLSConfig = reloader.tlsConfig(tlsCfg.MinVersion)
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if reloader != nil {
		go reloader.run(runCtx)
	}
	if s.reporter != nil {
		s.reporter.Start()
	}
	s.startWatcher(runCtx)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", ln.Addr().String(),
			"tls", reloader != nil,
			"upstream", s.upstream.BaseURL().String(),
			"alias_backend", s.config.Aliases.Backend,
		)
		var err error
		if reloader != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
	return s.Shutdown(context.Background())
}

// Stop asks a running Start to shut down and return.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown drains in-flight requests, then stops the upstream process,
// the stats reporter and the config watcher, flushes traces and closes the
// alias store. It runs once; later calls return nil.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	s.shutdownOnce.Do(func() {
		timeout := s.config.Proxy.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown: %w", err))
			}
		}

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.reporter != nil {
			s.reporter.Stop()
		}
		if err := s.upstream.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := s.tracer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("alias store close: %w", err))
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		for _, err := range errs {
			s.logger.Error("error during shutdown", "error", err)
		}
		s.logger.Info("proxy server stopped")
	})

	return errors.Join(errs...)
}

// setupRoutes registers the local endpoints and sends everything else to
// the relay.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", health.LivenessHandler())
	mux.Handle("GET /ready", s.checker.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	if s.config.Telemetry.Metrics.Enabled {
		mux.Handle("GET "+s.config.Telemetry.Metrics.Path, s.metrics.Handler())
	}
	mux.Handle("/", s.relay)

	return middleware.Chain(mux,
		middleware.RequestIDMiddleware,
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.config.Proxy.CORS),
	)
}

// startWatcher reloads the upstream environment whenever the config file
// changes. Other settings need a restart.
func (s *Server) startWatcher(ctx context.Context) {
	if s.configPath == "" {
		return
	}

	w, err := config.NewWatcher(s.configPath, 0, s.logger)
	if err != nil {
		s.logger.Warn("config watcher disabled", "error", err)
		return
	}
	s.watcher = w

	go func() {
		err := w.Watch(ctx, func(cfg *config.Config) {
			s.upstream.SetEnv(cfg.Upstream.Env)
			s.logger.Info("upstream environment reloaded", "keys", len(cfg.Upstream.Env))
		})
		if err != nil {
			s.logger.Error("config watcher stopped", "error", err)
		}
	}()
}

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true while Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Store returns the instrumented alias store.
func (s *Server) Store() aliasstore.Store {
	return s.store
}

// Metrics returns the metrics collector.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

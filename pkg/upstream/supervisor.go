package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// StartOptions are handed to Supervisor.Start.
type StartOptions struct {
	// Env is the complete environment of the new process.
	Env map[string]string
}

// Supervisor owns the upstream process.
type Supervisor interface {
	// Start launches the process and returns once it has been spawned.
	Start(ctx context.Context, opts StartOptions) error

	// Running reports whether the process is alive.
	Running() bool

	// BaseURL is where the process accepts HTTP.
	BaseURL() *url.URL

	// Wait blocks until the process exits or ctx ends.
	Wait(ctx context.Context) error
}

// Stopper is implemented by supervisors that can terminate their process.
type Stopper interface {
	Stop(ctx context.Context) error
}

// ErrNotStarted is returned by Wait before any process was started.
var ErrNotStarted = errors.New("upstream process not started")

func baseURL(host string, port int) *url.URL {
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port))}
}

// ProcessSupervisor runs the upstream as a child process.
type ProcessSupervisor struct {
	command string
	args    []string
	dir     string
	url     *url.URL
	logger  *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error
}

// NewProcessSupervisor creates a supervisor for command listening on
// host:port.
func NewProcessSupervisor(command string, args []string, dir, host string, port int, logger *slog.Logger) *ProcessSupervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessSupervisor{
		command: command,
		args:    args,
		dir:     dir,
		url:     baseURL(host, port),
		logger:  logger.With("component", "supervisor"),
	}
}

// Start spawns the process with exactly opts.Env as its environment. It is a
// no-op while a previous process is still running. The process is not tied
// to ctx.
func (s *ProcessSupervisor) Start(_ context.Context, opts StartOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return nil
	}

	cmd := exec.Command(s.command, s.args...)
	cmd.Dir = s.dir
	cmd.Env = envList(opts.Env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("exec %s: %w", s.command, err)
	}

	exited := make(chan struct{})
	s.cmd = cmd
	s.exited = exited
	s.exitErr = nil

	s.logger.Info("upstream process spawned", "pid", cmd.Process.Pid, "command", s.command)

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()
		close(exited)
	}()
	return nil
}

// Running reports whether the last spawned process is still alive.
func (s *ProcessSupervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *ProcessSupervisor) runningLocked() bool {
	if s.exited == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// BaseURL returns the configured listen address.
func (s *ProcessSupervisor) BaseURL() *url.URL {
	u := *s.url
	return &u
}

// Wait blocks until the current process exits and returns its exit error.
func (s *ProcessSupervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()

	if exited == nil {
		return ErrNotStarted
	}

	select {
	case <-exited:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop interrupts the process and kills it if it is still alive when ctx
// ends.
func (s *ProcessSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	running := s.runningLocked()
	s.mu.Unlock()

	if !running {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		s.logger.Debug("interrupt failed", "error", err)
	} else {
		select {
		case <-exited:
			return nil
		case <-ctx.Done():
		}
	}

	s.logger.Warn("upstream did not exit in time, killing", "pid", cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil {
		return err
	}
	<-exited
	return nil
}

// ExternalSupervisor represents an upstream managed outside the proxy. It
// always reports running, so the lifecycle only waits for readiness.
type ExternalSupervisor struct {
	url *url.URL
}

// NewExternalSupervisor creates a supervisor for an upstream at host:port.
func NewExternalSupervisor(host string, port int) *ExternalSupervisor {
	return &ExternalSupervisor{url: baseURL(host, port)}
}

// Start does nothing.
func (s *ExternalSupervisor) Start(context.Context, StartOptions) error { return nil }

// Running always returns true.
func (s *ExternalSupervisor) Running() bool { return true }

// BaseURL returns the configured address.
func (s *ExternalSupervisor) BaseURL() *url.URL {
	u := *s.url
	return &u
}

// Wait blocks until ctx ends.
func (s *ExternalSupervisor) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ProbePolicy controls readiness polling.
type ProbePolicy struct {
	// Path is requested with GET on the upstream base URL.
	Path string

	// Timeout is the total readiness deadline.
	Timeout time.Duration

	// ProbeTimeout bounds each request.
	ProbeTimeout time.Duration

	// Initial, Max and Multiplier shape the wait between probes.
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultProbePolicy polls /ok for up to 30s, starting at 150ms and growing
// by 1.6 up to 1s between attempts.
func DefaultProbePolicy() ProbePolicy {
	return ProbePolicy{
		Path:         "/ok",
		Timeout:      30 * time.Second,
		ProbeTimeout: 2 * time.Second,
		Initial:      150 * time.Millisecond,
		Max:          time.Second,
		Multiplier:   1.6,
	}
}

// Prober checks upstream readiness over HTTP.
type Prober struct {
	client  *http.Client
	baseURL func() *url.URL
	policy  ProbePolicy
	logger  *slog.Logger
}

// NewProber creates a Prober. baseURL is resolved on every probe so that a
// supervisor may change ports between starts.
func NewProber(client *http.Client, baseURL func() *url.URL, policy ProbePolicy, logger *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultProbePolicy()
	if policy.Path == "" {
		policy.Path = def.Path
	}
	if policy.Timeout <= 0 {
		policy.Timeout = def.Timeout
	}
	if policy.ProbeTimeout <= 0 {
		policy.ProbeTimeout = def.ProbeTimeout
	}
	if policy.Initial <= 0 {
		policy.Initial = def.Initial
	}
	if policy.Max <= 0 {
		policy.Max = def.Max
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = def.Multiplier
	}
	return &Prober{client: client, baseURL: baseURL, policy: policy, logger: logger}
}

// Probe sends one health request. Only a 2xx answer counts as ready.
func (p *Prober) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.policy.ProbeTimeout)
	defer cancel()

	target := p.baseURL().JoinPath(p.policy.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &probeStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// WaitForReady polls until a probe succeeds. Failed probes are retried with
// exponential backoff; once the policy deadline passes a *NotReadyError is
// returned. Cancellation of ctx ends the wait with ctx's error.
func (p *Prober) WaitForReady(ctx context.Context) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.policy.Initial
	b.MaxInterval = p.policy.Max
	b.Multiplier = p.policy.Multiplier
	b.RandomizationFactor = 0

	attempts := 0
	var lastErr error
	_, err := backoff.Retry(deadlineCtx, func() (struct{}, error) {
		attempts++
		if err := p.Probe(deadlineCtx); err != nil {
			lastErr = err
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(p.policy.Timeout),
	)
	if err == nil {
		p.logger.Debug("upstream ready", "attempts", attempts)
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) && lastErr != nil {
		err = lastErr
	}
	return &NotReadyError{Timeout: p.policy.Timeout, LastErr: err}
}

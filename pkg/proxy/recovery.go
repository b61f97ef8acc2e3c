package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/telemetry/tracing"
)

// Recovery results, used as the metrics label.
const (
	RecoveryRecovered = "recovered"
	RecoveryReused    = "reused"
	RecoveryFailed    = "failed"
)

// maxCreateResponseBytes bounds the body read from POST /threads.
const maxCreateResponseBytes = 1 << 20

// Recoverer replaces the internal thread of an alias after the upstream
// forgot it. Recoveries for one alias are coalesced.
type Recoverer struct {
	store    aliasstore.Store
	upstream Upstream
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	metrics  Recorder
	tracer   *tracing.Tracer

	flights singleflight.Group
}

// recoveryResult is shared by every caller of one flight.
type recoveryResult struct {
	internalID string
	reused     bool
}

// Recover returns the internal id that replaces staleID for alias. Inside a
// flight the record is read again: if another flight already moved the
// alias away from staleID, that id is returned and no thread is created.
// Otherwise a thread is created and stored with the refresh count bumped.
func (rc *Recoverer) Recover(ctx context.Context, alias, staleID string) (string, error) {
	ctx, span := rc.tracer.Start(ctx, tracing.SpanRelayRecover,
		tracingAttrs(alias, staleID)...)
	defer span.End()

	v, err, shared := rc.flights.Do(alias, func() (any, error) {
		// The flight outlives the first caller's cancellation.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
		defer cancel()
		return rc.recover(flightCtx, alias, staleID)
	})
	if err != nil {
		tracing.SetError(span, err)
		rc.metrics.RecordRecovery(RecoveryFailed)
		return "", err
	}

	res := v.(recoveryResult)
	span.SetAttributes(
		attribute.String(tracing.AttrInternalID, res.internalID),
		attribute.Bool("threadgate.recovery.shared", shared),
		attribute.Bool("threadgate.recovery.reused", res.reused),
	)
	if res.reused || shared {
		rc.metrics.RecordRecovery(RecoveryReused)
	} else {
		rc.metrics.RecordRecovery(RecoveryRecovered)
	}
	return res.internalID, nil
}

func (rc *Recoverer) recover(ctx context.Context, alias, staleID string) (recoveryResult, error) {
	rec, err := rc.store.Lookup(ctx, alias)
	if err != nil {
		return recoveryResult{}, err
	}
	if rec != nil && rec.InternalID != staleID {
		rc.logger.Debug("alias already recovered", "alias", alias, "internal_id", rec.InternalID)
		return recoveryResult{internalID: rec.InternalID, reused: true}, nil
	}

	if err := rc.upstream.EnsureStarted(ctx); err != nil {
		return recoveryResult{}, err
	}

	newID, err := rc.createThread(ctx)
	if err != nil {
		return recoveryResult{}, err
	}

	if err := rc.store.Upsert(ctx, alias, newID, true); err != nil {
		return recoveryResult{}, err
	}

	rc.logger.Info("thread recreated", "alias", alias, "stale_id", staleID, "internal_id", newID)
	return recoveryResult{internalID: newID}, nil
}

// createThread asks the upstream for a new thread and returns its id, read
// from "thread_id" or else "id".
func (rc *Recoverer) createThread(ctx context.Context) (string, error) {
	target := strings.TrimSuffix(rc.upstream.BaseURL().String(), "/") + "/threads"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", &ThreadCreationError{Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := rc.client.Do(req)
	if err != nil {
		return "", &ThreadCreationError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCreateResponseBytes))
	if err != nil {
		return "", &ThreadCreationError{StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ThreadCreationError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
	}

	var payload struct {
		ThreadID any `json:"thread_id"`
		ID       any `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &ThreadCreationError{StatusCode: resp.StatusCode, Message: "invalid JSON", Cause: err}
	}
	if id, ok := payload.ThreadID.(string); ok && id != "" {
		return id, nil
	}
	if id, ok := payload.ID.(string); ok && id != "" {
		return id, nil
	}
	return "", &ThreadCreationError{StatusCode: resp.StatusCode, Message: "response carries no thread id"}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}

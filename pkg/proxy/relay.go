package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/telemetry/logging"
	"tapcanvas/threadgate/pkg/telemetry/tracing"
)

// Upstream is the part of the upstream lifecycle the relay depends on.
type Upstream interface {
	EnsureStarted(ctx context.Context) error
	BaseURL() *url.URL
}

// Recorder receives relay measurements. *metrics.Collector satisfies it.
type Recorder interface {
	RecordRelay(outcome string, duration time.Duration)
	RecordRecovery(result string)
	RecordPatch(result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRelay(string, time.Duration) {}
func (noopRecorder) RecordRecovery(string)             {}
func (noopRecorder) RecordPatch(string)                {}

// Patch results, used as the metrics label.
const (
	PatchPatched   = "patched"
	PatchUnchanged = "unchanged"
	PatchFailed    = "failed"
)

// Options configures a Relay.
type Options struct {
	Store    aliasstore.Store
	Upstream Upstream

	// Transport performs upstream requests. Defaults to a clone of
	// http.DefaultTransport.
	Transport http.RoundTripper

	// MaxBodyBytes bounds buffered request bodies.
	MaxBodyBytes int64

	// RecoveryTimeout bounds one recovery flight (start, create, store).
	RecoveryTimeout time.Duration

	Logger   *slog.Logger
	Recorder Recorder
	Tracer   *tracing.Tracer
}

// Relay is the http.Handler that forwards traffic to the upstream,
// translating thread aliases on the way.
type Relay struct {
	store        aliasstore.Store
	upstream     Upstream
	client       *http.Client
	maxBodyBytes int64
	logger       *slog.Logger
	metrics      Recorder
	tracer       *tracing.Tracer
	recoverer    *Recoverer
}

// NewRelay creates a Relay.
func NewRelay(opts Options) *Relay {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "relay")

	rec := opts.Recorder
	if rec == nil {
		rec = noopRecorder{}
	}

	timeout := opts.RecoveryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Relay{
		store:        opts.Store,
		upstream:     opts.Upstream,
		client:       client,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       logger,
		metrics:      rec,
		tracer:       opts.Tracer,
		recoverer: &Recoverer{
			store:    opts.Store,
			upstream: opts.Upstream,
			client:   client,
			timeout:  timeout,
			logger:   logger,
			metrics:  rec,
			tracer:   opts.Tracer,
		},
	}
}

// ServeHTTP relays one request.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	meta := newRelayMetadata(r)

	ctx := tracing.Extract(r.Context(), r.Header)
	ctx, span := rl.tracer.Start(ctx, tracing.SpanRelayRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String(tracing.AttrUpstreamPath, r.URL.Path)),
	)

	defer func() {
		meta.Latency = time.Since(start)
		span.SetAttributes(attribute.String(tracing.AttrOutcome, meta.Outcome))
		tracing.SetError(span, meta.Err)
		span.End()

		rl.metrics.RecordRelay(meta.Outcome, meta.Latency)
		logger := logging.FromContext(ctx, rl.logger)
		if meta.Err != nil && meta.Outcome == OutcomeError {
			logger.Warn("relay failed", "relay", meta)
		} else {
			logger.Debug("relayed", "relay", meta)
		}
	}()

	body, err := BufferBody(r, rl.maxBodyBytes)
	if err != nil {
		meta.Outcome = OutcomeRejected
		rl.fail(w, meta, err)
		return
	}

	escapedPath := r.URL.EscapedPath()
	outPath := escapedPath

	alias, hasAlias := ExtractAlias(escapedPath)
	if hasAlias {
		internalID, err := rl.resolve(ctx, alias)
		if err != nil {
			rl.logger.Warn("alias storage unavailable, relaying unmodified", "alias", alias, "error", err)
			meta.Outcome = OutcomeDegraded
			hasAlias = false
		} else {
			meta.Alias = alias
			meta.InternalID = internalID
			meta.Outcome = OutcomeAliased
			ctx = logging.WithInternalID(logging.WithAlias(ctx, alias), internalID)
			span.SetAttributes(
				attribute.String(tracing.AttrAlias, alias),
				attribute.String(tracing.AttrInternalID, internalID),
			)
			outPath = RewritePath(escapedPath, internalID)
		}
	}

	if err := rl.upstream.EnsureStarted(ctx); err != nil {
		meta.Outcome = OutcomeError
		rl.fail(w, meta, err)
		return
	}

	resp, err := rl.forward(ctx, r, outPath, body)
	if err != nil {
		meta.Outcome = OutcomeError
		rl.fail(w, meta, err)
		return
	}

	if hasAlias && resp.StatusCode == http.StatusNotFound {
		resp = rl.recover(ctx, r, meta, escapedPath, body, resp)
	}

	rl.writeResponse(w, resp, meta)
}

// resolve returns the internal id of alias. An unseen alias is stored as
// its own internal id unless another request stored a mapping first.
// Nothing checks that the upstream knows that id; a wrong guess surfaces as
// a 404 and goes through recovery.
func (rl *Relay) resolve(ctx context.Context, alias string) (string, error) {
	rec, err := rl.store.Lookup(ctx, alias)
	if err != nil {
		return "", err
	}
	if rec == nil {
		rec, err = rl.store.LookupOrCreate(ctx, alias, alias)
		if err != nil {
			return "", err
		}
	}
	return rec.InternalID, nil
}

// recover handles a 404 for a resolved alias: it recreates the thread and
// replays the request once. Any failure returns the original 404.
func (rl *Relay) recover(ctx context.Context, r *http.Request, meta *RelayMetadata, escapedPath string, body []byte, notFound *http.Response) *http.Response {
	original, err := bufferResponse(notFound)
	if err != nil {
		rl.logger.Warn("failed to read 404 body before recovery", "error", err)
	}

	fallback := func(cause error) *http.Response {
		logging.FromContext(ctx, rl.logger).Warn("thread recovery failed, returning original 404", "error", cause)
		meta.Outcome = OutcomeFallback
		return original.toResponse()
	}

	newID, err := rl.recoverer.Recover(ctx, meta.Alias, meta.InternalID)
	if err != nil {
		return fallback(err)
	}

	replay, err := rl.forward(ctx, r, RewritePath(escapedPath, newID), body)
	if err != nil {
		return fallback(err)
	}

	meta.InternalID = newID
	meta.Refreshed = true
	meta.Outcome = OutcomeRefreshed
	return replay
}

// writeResponse delivers resp to the client. JSON bodies of aliased
// requests are patched so the internal id never leaks; everything else is
// streamed.
func (rl *Relay) writeResponse(w http.ResponseWriter, resp *http.Response, meta *RelayMetadata) {
	defer resp.Body.Close()

	meta.StatusCode = resp.StatusCode
	copyHeaders(w.Header(), resp.Header)
	setAliasHeaders(w.Header(), meta.Alias, meta.Refreshed)

	if meta.Alias != "" && meta.Alias != meta.InternalID &&
		hasBody(meta.Method, resp.StatusCode) && patchable(resp.Header) {
		rl.writePatched(w, resp, meta)
		return
	}

	w.WriteHeader(resp.StatusCode)
	if err := streamBody(w, resp.Body, isEventStream(resp.Header)); err != nil && !errors.Is(err, context.Canceled) {
		rl.logger.Debug("response copy interrupted", "error", err)
	}
}

// writePatched buffers the body and rewrites it. A body that cannot be read
// completely aborts the response so the client never sees a truncated copy.
func (rl *Relay) writePatched(w http.ResponseWriter, resp *http.Response, meta *RelayMetadata) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		rl.metrics.RecordPatch(PatchFailed)
		rl.logger.Warn("upstream response body interrupted, aborting", "error", &PatchError{Cause: err})
		meta.Err = err
		panic(http.ErrAbortHandler)
	}

	patched, changed, err := PatchThreadID(data, meta.InternalID, meta.Alias)
	switch {
	case err != nil:
		rl.metrics.RecordPatch(PatchFailed)
		rl.logger.Warn("response left unpatched", "error", err)
	case changed:
		rl.metrics.RecordPatch(PatchPatched)
		data = patched
	default:
		rl.metrics.RecordPatch(PatchUnchanged)
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}

// fail writes the error envelope for err.
func (rl *Relay) fail(w http.ResponseWriter, meta *RelayMetadata, err error) {
	meta.Err = err
	errResp := HandleError(err)
	meta.StatusCode = errResp.Error.HTTPStatusCode()
	if writeErr := WriteErrorResponse(w, errResp); writeErr != nil {
		rl.logger.Debug("failed to write error response", "error", writeErr)
	}
}

func tracingAttrs(alias, internalID string) []trace.SpanStartOption {
	return []trace.SpanStartOption{
		trace.WithAttributes(
			attribute.String(tracing.AttrAlias, alias),
			attribute.String("threadgate.stale_id", internalID),
		),
	}
}

package proxy

import (
	"log/slog"
	"net/http"
	"time"
)

// Response headers set by the relay.
const (
	// HeaderThreadAlias carries the alias whenever one was resolved.
	HeaderThreadAlias = "X-Thread-Alias"

	// HeaderThreadRefreshed is "1" when the thread was recreated while
	// serving the request.
	HeaderThreadRefreshed = "X-Thread-Refreshed"

	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
)

// Relay outcomes, used as the metrics label and in the access log.
const (
	OutcomeProxied   = "proxied"
	OutcomeAliased   = "aliased"
	OutcomeRefreshed = "refreshed"
	OutcomeFallback  = "fallback"
	OutcomeDegraded  = "degraded"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// RelayMetadata summarises one relayed request for logging and metrics.
type RelayMetadata struct {
	Method     string
	Path       string
	Alias      string
	InternalID string
	Refreshed  bool
	StatusCode int
	Outcome    string
	Latency    time.Duration
	Err        error
}

// newRelayMetadata seeds the metadata from the inbound request.
func newRelayMetadata(r *http.Request) *RelayMetadata {
	return &RelayMetadata{
		Method:  r.Method,
		Path:    r.URL.Path,
		Outcome: OutcomeProxied,
	}
}

// LogValue implements slog.LogValuer.
func (m *RelayMetadata) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("method", m.Method),
		slog.String("path", m.Path),
		slog.Int("status", m.StatusCode),
		slog.String("outcome", m.Outcome),
		slog.Duration("latency", m.Latency),
	}
	if m.Alias != "" {
		attrs = append(attrs,
			slog.String("alias", m.Alias),
			slog.String("internal_id", m.InternalID),
			slog.Bool("refreshed", m.Refreshed),
		)
	}
	if m.Err != nil {
		attrs = append(attrs, slog.String("error", m.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// IsSuccess returns true for a 2xx status.
func (m *RelayMetadata) IsSuccess() bool {
	return m.StatusCode >= 200 && m.StatusCode < 300
}

// setAliasHeaders tags a client response with the alias metadata.
func setAliasHeaders(h http.Header, alias string, refreshed bool) {
	if alias == "" {
		return
	}
	h.Set(HeaderThreadAlias, alias)
	if refreshed {
		h.Set(HeaderThreadRefreshed, "1")
	}
}

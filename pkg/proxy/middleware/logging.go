package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"tapcanvas/threadgate/pkg/telemetry/logging"
)

// responseWriter records the status code and body size written by the
// wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController so
// streamed responses can still be flushed.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware logs one line per request with method, path, status,
// latency and response size. Server errors log at ERROR, client errors at
// WARN and everything else at INFO. A nil logger uses slog.Default.
//
// Example usage:
//
//	handler = LoggingMiddleware(logger)(handler)
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			ctx := r.Context()
			log := logging.FromContext(ctx, logger)

			log.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", time.Since(start).Milliseconds(),
				"bytes", rw.bytes,
				"remote_addr", r.RemoteAddr,
			}
			if ua := r.UserAgent(); ua != "" {
				attrs = append(attrs, "user_agent", ua)
			}
			if alias := w.Header().Get("X-Thread-Alias"); alias != "" {
				attrs = append(attrs, "alias", alias)
			}
			log.Log(ctx, level, "request completed", attrs...)
		})
	}
}

package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"tapcanvas/threadgate/pkg/proxy/types"
	"tapcanvas/threadgate/pkg/telemetry/logging"
)

// RecoveryMiddleware turns a panic in the wrapped handler into a 500
// response with the JSON error envelope. The panic value and stack are
// logged and never sent to the client.
//
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logging.FromContext(r.Context(), logger).ErrorContext(r.Context(), "panic in handler",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				errResp := types.NewServerError("An internal error occurred. Please try again later.")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(errResp)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

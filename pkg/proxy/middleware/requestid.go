package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"tapcanvas/threadgate/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client-supplied request IDs.
const maxRequestIDLen = 128

// RequestIDMiddleware assigns every request an ID. A client-supplied
// X-Request-ID is kept when it is short enough; otherwise a UUID v4 is
// generated. The ID is stored in the request context and echoed in the
// response headers.
//
// The header is left on the inbound request so the relay forwards it to
// the upstream.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

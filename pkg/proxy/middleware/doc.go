// Package middleware provides the HTTP middleware wrapped around the relay
// and the operational endpoints.
//
// # Middleware Chain
//
// The server assembles the chain with Chain, outermost first:
//
//	handler = Chain(mux,
//	    RequestIDMiddleware,
//	    RecoveryMiddleware(logger),
//	    LoggingMiddleware(logger),
//	    CORSMiddleware(cfg.Proxy.CORS),
//	)
//
// RequestIDMiddleware runs first so every log line, including the one for
// a recovered panic, carries the request ID.
//
// # Request ID
//
// A client-supplied X-Request-ID is reused; otherwise a UUID v4 is
// generated:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored with logging.WithRequestID, echoed in the response and
// forwarded to the upstream.
//
// # Logging
//
// LoggingMiddleware writes one structured line per request:
//
//	{
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "request_id": "550e8400-e29b-41d4-a716-446655440000",
//	  "method": "POST",
//	  "path": "/threads/conv-42/messages",
//	  "status": 200,
//	  "latency_ms": 412,
//	  "bytes": 1834,
//	  "alias": "conv-42"
//	}
//
// The wrapped writer implements Unwrap, so event streams relayed through
// it are still flushed per write.
//
// # CORS
//
// CORSMiddleware is configured from the proxy section:
//
//	proxy:
//	  cors:
//	    enabled: true
//	    allowed_origins: ["https://app.example.com"]
//	    exposed_headers: ["X-Request-ID", "x-thread-alias", "x-thread-refreshed"]
//
// # Recovery
//
// RecoveryMiddleware converts handler panics into a 500 response:
//
//	{
//	  "error": {
//	    "message": "An internal error occurred. Please try again later.",
//	    "type": "server_error",
//	    "code": "internal_error"
//	  }
//	}
package middleware

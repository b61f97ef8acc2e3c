package middleware

import "net/http"

// Chain applies middlewares so that the first one listed is the outermost.
//
//	Chain(h, Recovery, Logging, RequestID) == Recovery(Logging(RequestID(h)))
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Package types defines the JSON error envelope returned by the proxy.
//
// Every error produced locally, as opposed to one relayed from the
// upstream, has the shape:
//
//	{
//	    "error": {
//	        "message": "upstream not ready after 30s",
//	        "type": "service_unavailable",
//	        "code": "upstream_not_ready"
//	    }
//	}
//
// The HTTP status follows from the type (see ErrorDetail.HTTPStatusCode).
package types

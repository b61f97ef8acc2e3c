package types

import "net/http"

// ErrorResponse is the body of every locally generated error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Type categorizes the error and selects the HTTP status.
	Type string `json:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeRequestTooLarge    = "request_too_large"
	ErrorTypeServerError        = "server_error"
	ErrorTypeBadGateway         = "bad_gateway"
	ErrorTypeServiceUnavailable = "service_unavailable"
	ErrorTypeGatewayTimeout     = "gateway_timeout"
)

// Error codes.
const (
	// CodeRequestTooLarge: the request body exceeds proxy.max_body_bytes.
	CodeRequestTooLarge = "request_too_large"

	// CodeInvalidBody: the request body could not be read.
	CodeInvalidBody = "invalid_body"

	// CodeUpstreamNotReady: the upstream missed its readiness deadline.
	CodeUpstreamNotReady = "upstream_not_ready"

	// CodeUpstreamStartFailed: the upstream process could not be spawned.
	CodeUpstreamStartFailed = "upstream_start_failed"

	// CodeUpstreamUnreachable: forwarding failed at the transport level.
	CodeUpstreamUnreachable = "upstream_unreachable"

	// CodeUpstreamTimeout: forwarding exceeded a deadline.
	CodeUpstreamTimeout = "upstream_timeout"

	// CodeInternalError: anything else.
	CodeInternalError = "internal_error"
)

// NewErrorResponse creates an error response.
func NewErrorResponse(message, errorType, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	}
}

// NewServerError creates a 500 response.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, CodeInternalError)
}

// NewBadGatewayError creates a 502 response.
func NewBadGatewayError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, code)
}

// NewServiceUnavailableError creates a 503 response.
func NewServiceUnavailableError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, code)
}

// HTTPStatusCode returns the status for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

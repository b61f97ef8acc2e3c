package proxy

import (
	"context"
	"errors"
	"fmt"

	"tapcanvas/threadgate/pkg/proxy/types"
	"tapcanvas/threadgate/pkg/upstream"
)

// RequestError is a problem with the inbound request itself.
type RequestError struct {
	Message string
	Type    string
	Code    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts the error to the JSON envelope.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewErrorResponse(e.Message, e.Type, e.Code)
}

// ThreadCreationError is returned when the upstream refused to create a
// replacement thread or answered without a usable id.
type ThreadCreationError struct {
	// StatusCode is the upstream status, 0 when no response arrived.
	StatusCode int

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ThreadCreationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("thread creation failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("thread creation failed: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ThreadCreationError) Unwrap() error {
	return e.Cause
}

// PatchError is returned when a JSON body could not be rewritten. The
// original body is delivered instead.
type PatchError struct {
	Cause error
}

// Error implements the error interface.
func (e *PatchError) Error() string {
	return fmt.Sprintf("thread_id patch failed: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *PatchError) Unwrap() error {
	return e.Cause
}

// ForwardError wraps a transport failure while talking to the upstream.
type ForwardError struct {
	Cause error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Cause)
}

// Unwrap returns the transport error.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}

// HandleError maps an error raised while serving a request to the JSON
// envelope returned to the client.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var notReady *upstream.NotReadyError
	if errors.As(err, &notReady) {
		return types.NewServiceUnavailableError(notReady.Error(), types.CodeUpstreamNotReady)
	}

	var startErr *upstream.StartError
	if errors.As(err, &startErr) {
		return types.NewBadGatewayError(startErr.Error(), types.CodeUpstreamStartFailed)
	}

	var fwdErr *ForwardError
	if errors.As(err, &fwdErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewErrorResponse(fwdErr.Error(), types.ErrorTypeGatewayTimeout, types.CodeUpstreamTimeout)
		}
		return types.NewBadGatewayError(fwdErr.Error(), types.CodeUpstreamUnreachable)
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}

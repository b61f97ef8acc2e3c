package upstream

import (
	"fmt"
	"time"
)

// NotReadyError is returned when the upstream did not answer its health
// probe within the readiness deadline.
type NotReadyError struct {
	// Timeout is the readiness deadline that elapsed.
	Timeout time.Duration

	// LastErr is the last probe failure, if any.
	LastErr error
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("upstream not ready after %s: %v", e.Timeout, e.LastErr)
	}
	return fmt.Sprintf("upstream not ready after %s", e.Timeout)
}

// Unwrap returns the last probe failure.
func (e *NotReadyError) Unwrap() error {
	return e.LastErr
}

// StartError is returned when the supervisor failed to launch the process.
type StartError struct {
	Cause error
}

// Error implements the error interface.
func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start upstream: %v", e.Cause)
}

// Unwrap returns the supervisor error.
func (e *StartError) Unwrap() error {
	return e.Cause
}

// probeStatusError reports a health probe that answered outside 2xx.
type probeStatusError struct {
	StatusCode int
}

func (e *probeStatusError) Error() string {
	return fmt.Sprintf("probe returned %d", e.StatusCode)
}

package snowpilot

import (
	"fmt"
	"net/http"
)

// AuthenticationError reports missing credentials or a rejected login.
// It is never retried.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "snowpilot authentication failed: " + e.Reason
}

// TransportError reports a failed HTTP exchange with the SnowPilot
// service. StatusCode is zero for connection-level failures.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("snowpilot %s request: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("snowpilot %s request: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying. 403 means the
// Drupal session expired and a fresh login may fix it; 5xx and connection
// failures are service-side hiccups.
func (e *TransportError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusForbidden || e.StatusCode >= 500
}

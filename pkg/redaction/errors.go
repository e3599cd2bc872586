package redaction

import "fmt"

// RequestError represents a failed service request. Transient failures
// (connection errors, timeouts, 429, 5xx) are retried at the request level;
// permanent ones (other 4xx) are not.
type RequestError struct {
	Op         string // "submit", "poll" or "fetch"
	StatusCode int    // zero when the request never got a response
	Transient  bool
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ServiceLogicFailure means the operation itself reported a failed status.
// This is not a transport problem; the job is restarted from a fresh
// submission since service-side conditions may self-resolve.
type ServiceLogicFailure struct {
	Handle string
	Detail string
}

func (e *ServiceLogicFailure) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("service reported operation failed: %s", e.Detail)
	}
	return "service reported operation failed"
}

// IntegrityError means the redacted payload does not line up with the
// submitted document. The result is never truncated or reordered to fit.
type IntegrityError struct {
	DocumentID string
	Reason     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("redacted result for %s does not match source: %s", e.DocumentID, e.Reason)
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == 429 || code >= 500
}

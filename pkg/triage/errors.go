package triage

import "fmt"

// APIError reports a failed call against the triage engine. The
// dispatcher absorbs these into a FAILED task rather than surfacing them
// as protocol errors.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("triage %s failed: HTTP %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("triage %s failed: %s", e.Operation, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError reports a missing or rejected credential. It is never retried
// and fails the whole run.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError reports a failure that is worth retrying: rate limits,
// 5xx responses, network errors.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError reports model output that did not parse into the
// requested schema after the corrective retry was exhausted. Raw carries
// the offending output for diagnosis.
type ValidationError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: response failed schema validation: %v", e.Provider, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyStatus wraps err according to the HTTP status returned by a
// provider backend.
func classifyStatus(name string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: name, Err: err}
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return &TransientError{Provider: name, Err: err}
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}

package compute

import (
	"errors"
	"fmt"
)

// Sentinel errors for API failures callers branch on.
var (
	// ErrNotFound reports that the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrQuotaExceeded reports that the folder's snapshot quota is
	// exhausted and the create call was rejected.
	ErrQuotaExceeded = errors.New("snapshot quota exceeded")
)

// APIError is a non-2xx response from the compute API. Message carries
// the provider's own description when the body held one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("compute api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("compute api: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is, or wraps, a not-found failure.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsQuotaExceeded reports whether err is, or wraps, a quota rejection.
func IsQuotaExceeded(err error) bool {
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

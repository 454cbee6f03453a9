package pmc

import (
	"errors"
	"fmt"
)

// Common errors returned by the PMC client.
var (
	// ErrNotAvailable indicates PMC has no retrievable full text for the
	// article (embargoed or metadata-only). It is a terminal classification,
	// not a malfunction, and is never retried.
	ErrNotAvailable = errors.New("article not available in PMC")

	// ErrAuth indicates the API key was rejected. A configuration problem,
	// never retried.
	ErrAuth = errors.New("PMC authentication error")

	// ErrTransient indicates a network error, timeout, rate limiting, or a
	// non-200 status. Retryable.
	ErrTransient = errors.New("transient PMC error")

	// ErrParse indicates a malformed response body. Retryable up to the
	// attempt ceiling.
	ErrParse = errors.New("malformed PMC response")

	// ErrSearch indicates the search endpoint was unreachable or returned
	// a malformed payload after all attempts. Fatal for one keyword's
	// batch; a multi-keyword driver reports it and moves on.
	ErrSearch = errors.New("PMC search failed")
)

// StatusError carries the HTTP status of a rejected request.
type StatusError struct {
	StatusCode int
	ID         string // PMC ID for context in fetch errors
}

func (e *StatusError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("PMC returned status %d for %s", e.StatusCode, e.ID)
	}
	return fmt.Sprintf("PMC returned status %d", e.StatusCode)
}

// IsNotAvailable reports whether err is the source-confirmed-absent
// classification.
func IsNotAvailable(err error) bool {
	return errors.Is(err, ErrNotAvailable)
}

// IsAuthError reports whether err indicates a rejected API key.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuth) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 401 || se.StatusCode == 403
	}
	return false
}

// IsSearchError reports whether err came from a failed search.
func IsSearchError(err error) bool {
	return errors.Is(err, ErrSearch)
}

// IsRetryable reports whether err should re-enter the retry policy.
// NotAvailable and authentication errors are terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrParse)
}

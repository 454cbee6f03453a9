package downloader

import (
	"time"

	"github.com/melhzy/litfetch/internal/pmc"
)

// phase is the state of one identifier's retry loop.
type phase int

const (
	phaseAttempting phase = iota
	phaseSucceeded
	phaseFailedPermanently
	phaseNotAvailable
)

// retryState tracks which attempt the loop is on. attempt is 1-based and
// only meaningful while the phase is phaseAttempting.
type retryState struct {
	phase   phase
	attempt int
}

// advance is the pure transition function of the retry loop: given the
// state that produced the latest attempt and that attempt's error, it
// returns the next state. It never sleeps; the caller owns the timer.
//
// NotAvailable is a terminal classification, not a failure, and is never
// retried. Transient and parse errors retry until maxAttempts; anything
// else fails permanently on the spot.
func advance(s retryState, err error, maxAttempts int) retryState {
	switch {
	case err == nil:
		return retryState{phase: phaseSucceeded}
	case pmc.IsNotAvailable(err):
		return retryState{phase: phaseNotAvailable}
	case pmc.IsRetryable(err) && s.attempt < maxAttempts:
		return retryState{phase: phaseAttempting, attempt: s.attempt + 1}
	default:
		return retryState{phase: phaseFailedPermanently}
	}
}

// backoff returns the delay before the given attempt (2-based: the first
// retry). The base doubles per attempt and is capped at the ceiling.
func backoff(attempt int, base, ceiling time.Duration) time.Duration {
	d := base
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

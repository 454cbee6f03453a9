package downloader

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/melhzy/litfetch/internal/pmc"
)

func TestAdvance(t *testing.T) {
	attempting := func(n int) retryState {
		return retryState{phase: phaseAttempting, attempt: n}
	}

	tests := []struct {
		name        string
		state       retryState
		err         error
		maxAttempts int
		want        retryState
	}{
		{
			name:        "success on first attempt",
			state:       attempting(1),
			err:         nil,
			maxAttempts: 3,
			want:        retryState{phase: phaseSucceeded},
		},
		{
			name:        "transient error retries",
			state:       attempting(1),
			err:         fmt.Errorf("%w: timeout", pmc.ErrTransient),
			maxAttempts: 3,
			want:        attempting(2),
		},
		{
			name:        "parse error retries",
			state:       attempting(2),
			err:         fmt.Errorf("%w: bad xml", pmc.ErrParse),
			maxAttempts: 3,
			want:        attempting(3),
		},
		{
			name:        "transient error at attempt ceiling fails",
			state:       attempting(3),
			err:         fmt.Errorf("%w: timeout", pmc.ErrTransient),
			maxAttempts: 3,
			want:        retryState{phase: phaseFailedPermanently},
		},
		{
			name:        "not available is terminal on first attempt",
			state:       attempting(1),
			err:         fmt.Errorf("%w: embargoed", pmc.ErrNotAvailable),
			maxAttempts: 3,
			want:        retryState{phase: phaseNotAvailable},
		},
		{
			name:        "unclassified error fails immediately",
			state:       attempting(1),
			err:         errors.New("disk on fire"),
			maxAttempts: 3,
			want:        retryState{phase: phaseFailedPermanently},
		},
		{
			name:        "success after retries",
			state:       attempting(3),
			err:         nil,
			maxAttempts: 3,
			want:        retryState{phase: phaseSucceeded},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := advance(tt.state, tt.err, tt.maxAttempts)
			if got != tt.want {
				t.Errorf("advance(%+v, %v) = %+v, want %+v", tt.state, tt.err, got, tt.want)
			}
		})
	}
}

// advance must be a pure function of its inputs.
func TestAdvanceDeterministic(t *testing.T) {
	s := retryState{phase: phaseAttempting, attempt: 1}
	err := fmt.Errorf("%w: flaky", pmc.ErrTransient)
	first := advance(s, err, 3)
	for i := 0; i < 5; i++ {
		if got := advance(s, err, 3); got != first {
			t.Fatalf("advance not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestBackoff(t *testing.T) {
	base := 2 * time.Second
	ceiling := 10 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // 16s capped at the ceiling
		{6, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt, base, ceiling); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

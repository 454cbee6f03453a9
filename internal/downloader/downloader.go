// Package downloader orchestrates batch article downloads: for each
// identifier returned by a search it checks the archive, fetches with
// bounded retries, persists, and tallies one outcome per identifier.
package downloader

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/melhzy/litfetch/internal/pmc"
	"github.com/melhzy/litfetch/internal/record"
)

const (
	// DefaultWorkers is the worker-pool size when concurrency is enabled.
	DefaultWorkers = 5
	// DefaultMaxAttempts bounds the fetch retry loop.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the delay before the first retry; it doubles
	// per attempt up to DefaultBackoffCeiling.
	DefaultBackoffBase    = 2 * time.Second
	DefaultBackoffCeiling = 10 * time.Second
)

// Fetcher retrieves one article. Satisfied by *pmc.Client; tests
// substitute stubs to assert call counts.
type Fetcher interface {
	Fetch(ctx context.Context, id string, format record.Format, includeText bool) (*record.Record, error)
}

// Store is the per-keyword archive directory the batch writes into.
type Store interface {
	Exists(id string) bool
	Write(rec *record.Record) error
	Root() string
}

// Outcome is the terminal classification of one identifier's processing.
// The set is closed; the summary counts each variant separately.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeUnavailable    Outcome = "unavailable"
	OutcomeError          Outcome = "error"
)

// Classification describes how a whole batch went.
type Classification string

const (
	// ClassNoResults means the search returned zero identifiers.
	ClassNoResults Classification = "no_results"
	// ClassTotalFailure means identifiers were attempted but none
	// succeeded and none were already present.
	ClassTotalFailure Classification = "total_failure"
	// ClassRan means the batch ran; the summary has the partial outcomes.
	ClassRan Classification = "ran"
)

// Summary aggregates one batch's outcomes.
type Summary struct {
	Keyword         string  `json:"keyword"`
	TotalFound      int     `json:"total_found"`
	Requested       int     `json:"requested"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	Unavailable     int     `json:"unavailable"`
	Errors          int     `json:"errors"`
	Skipped         int     `json:"skipped"`
	DurationSeconds float64 `json:"duration_seconds"`
	OutputDir       string  `json:"output_dir"`

	Duration time.Duration `json:"-"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeSuccess:
		s.Successful++
	case OutcomeAlreadyPresent:
		s.Skipped++
	case OutcomeUnavailable:
		s.Unavailable++
	case OutcomeError:
		s.Errors++
	}
	s.Failed = s.Unavailable + s.Errors
}

// Classification reports the batch-level exit classification.
func (s Summary) Classification() Classification {
	switch {
	case s.Requested == 0:
		return ClassNoResults
	case s.Successful == 0 && s.Skipped == 0:
		return ClassTotalFailure
	default:
		return ClassRan
	}
}

// Options tunes one batch run. Zero values take the defaults above.
type Options struct {
	Format      record.Format
	IncludeText bool
	Workers     int
	Sequential  bool
	MaxAttempts int

	BackoffBase    time.Duration
	BackoffCeiling time.Duration

	// Sleep waits between retry attempts. Injectable so tests run
	// without real delays; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

// Downloader runs batches against one fetcher and one archive directory.
type Downloader struct {
	fetcher Fetcher
	store   Store
	opts    Options
	log     *slog.Logger

	// aborted is set when the API rejects the credentials. Every request
	// in the batch carries the same key, so the remaining identifiers
	// would fail the same way; they are recorded as errors without being
	// fetched.
	aborted atomic.Bool
}

// New builds a Downloader, filling in defaults for unset options.
func New(fetcher Fetcher, store Store, opts Options) *Downloader {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffCeiling <= 0 {
		opts.BackoffCeiling = DefaultBackoffCeiling
	}
	if opts.Format == "" {
		opts.Format = record.FormatJSON
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{fetcher: fetcher, store: store, opts: opts, log: log}
}

// Run processes every identifier and returns the batch summary. A summary
// is always produced once dispatch starts, even if every identifier
// fails: per-identifier failures are isolated and never abort the batch,
// with one exception: a credential rejection stops further fetches, since
// every remaining identifier would hit the same rejection.
func (d *Downloader) Run(ctx context.Context, keyword string, ids []string, totalFound int) Summary {
	start := time.Now()
	summary := Summary{
		Keyword:    keyword,
		TotalFound: totalFound,
		Requested:  len(ids),
		OutputDir:  d.store.Root(),
	}

	if len(ids) > 0 {
		if d.opts.Sequential || d.opts.Workers == 1 || len(ids) == 1 {
			d.runSequential(ctx, ids, &summary)
		} else {
			d.runConcurrent(ctx, ids, &summary)
		}
	}

	summary.Duration = time.Since(start)
	summary.DurationSeconds = summary.Duration.Seconds()
	return summary
}

func (d *Downloader) runSequential(ctx context.Context, ids []string, summary *Summary) {
	for i, id := range ids {
		summary.add(d.process(ctx, id))
		if (i+1)%5 == 0 || i+1 == len(ids) {
			d.log.Debug("progress", "processed", i+1, "total", len(ids))
		}
	}
}

func (d *Downloader) runConcurrent(ctx context.Context, ids []string, summary *Summary) {
	d.log.Debug("using concurrent downloads", "workers", d.opts.Workers)

	results := make(chan Outcome, len(ids))
	sem := make(chan struct{}, d.opts.Workers)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- d.process(ctx, id)
		}(id)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for outcome := range results {
		summary.add(outcome)
		done++
		if done%10 == 0 || done == len(ids) {
			d.log.Debug("progress",
				"processed", done,
				"total", len(ids),
				"ok", summary.Successful,
				"failed", summary.Failed,
				"skipped", summary.Skipped)
		}
	}
}

// process runs the full check → fetch-with-retry → persist pipeline for
// one identifier. Shared by sequential and concurrent modes.
func (d *Downloader) process(ctx context.Context, id string) Outcome {
	display := record.DisplayID(id)

	if d.aborted.Load() {
		return OutcomeError
	}

	// The presence check happens before any fetch attempt; a hit means
	// no network call at all for this identifier.
	if d.store.Exists(id) {
		d.log.Debug("already exists, skipping", "pmcid", display)
		return OutcomeAlreadyPresent
	}

	state := retryState{phase: phaseAttempting, attempt: 1}
	for {
		d.log.Debug("downloading", "pmcid", display, "attempt", state.attempt, "max", d.opts.MaxAttempts)
		rec, err := d.fetcher.Fetch(ctx, id, d.opts.Format, d.opts.IncludeText)

		next := advance(state, err, d.opts.MaxAttempts)
		switch next.phase {
		case phaseSucceeded:
			if err := d.store.Write(rec); err != nil {
				d.log.Error("failed to write record", "pmcid", display, "error", err)
				return OutcomeError
			}
			d.log.Info("saved", "pmcid", display)
			return OutcomeSuccess
		case phaseNotAvailable:
			d.log.Info("not available in PMC", "pmcid", display, "reason", err)
			return OutcomeUnavailable
		case phaseFailedPermanently:
			if pmc.IsAuthError(err) {
				d.aborted.Store(true)
				d.log.Error("API key rejected, skipping remaining downloads", "pmcid", display, "error", err)
				return OutcomeError
			}
			d.log.Warn("download failed", "pmcid", display, "attempts", state.attempt, "error", err)
			return OutcomeError
		case phaseAttempting:
			d.log.Warn("attempt failed, retrying", "pmcid", display, "attempt", state.attempt, "error", err)
			if err := d.opts.Sleep(ctx, backoff(next.attempt, d.opts.BackoffBase, d.opts.BackoffCeiling)); err != nil {
				return OutcomeError
			}
			state = next
		}
	}
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

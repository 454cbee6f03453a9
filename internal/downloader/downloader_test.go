package downloader

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/melhzy/litfetch/internal/pmc"
	"github.com/melhzy/litfetch/internal/record"
)

// stubFetcher scripts per-identifier fetch results. Each call for an
// identifier consumes the next scripted error; nil means success. A
// drained script keeps returning its last entry.
type stubFetcher struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		scripts: make(map[string][]error),
		calls:   make(map[string]int),
	}
}

func (f *stubFetcher) script(id string, errs ...error) {
	f.scripts[id] = errs
}

func (f *stubFetcher) Fetch(ctx context.Context, id string, format record.Format, includeText bool) (*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.calls[id]
	f.calls[id] = n + 1

	script := f.scripts[id]
	var err error
	if len(script) > 0 {
		if n >= len(script) {
			n = len(script) - 1
		}
		err = script[n]
	}
	if err != nil {
		return nil, err
	}
	return &record.Record{
		PMCID:        record.DisplayID(id),
		Source:       record.SourcePMC,
		DownloadDate: time.Now(),
		XML:          "<article/>",
	}, nil
}

func (f *stubFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// stubStore is an in-memory archive directory.
type stubStore struct {
	mu       sync.Mutex
	present  map[string]bool
	writeErr error
}

func newStubStore(present ...string) *stubStore {
	s := &stubStore{present: make(map[string]bool)}
	for _, id := range present {
		s.present[record.DisplayID(id)] = true
	}
	return s
}

func (s *stubStore) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present[record.DisplayID(id)]
}

func (s *stubStore) Write(rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.present[rec.PMCID] = true
	return nil
}

func (s *stubStore) Root() string { return "/tmp/stub" }

// noSleep is injected so retry tests run without real delays.
func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestDownloader(f Fetcher, s Store, opts Options) *Downloader {
	opts.Sleep = noSleep
	return New(f, s, opts)
}

func transientErr() error {
	return fmt.Errorf("%w: connection reset", pmc.ErrTransient)
}

func notAvailableErr() error {
	return fmt.Errorf("%w: embargoed", pmc.ErrNotAvailable)
}

func authErr() error {
	return fmt.Errorf("%w: status 401", pmc.ErrAuth)
}

func TestAlreadyPresentSkipsFetch(t *testing.T) {
	fetcher := newStubFetcher()
	store := newStubStore("11111", "22222")

	d := newTestDownloader(fetcher, store, Options{Sequential: true})
	summary := d.Run(context.Background(), "test", []string{"11111", "22222", "33333"}, 3)

	if summary.Skipped != 2 || summary.Successful != 1 {
		t.Errorf("skipped=%d successful=%d, want 2/1", summary.Skipped, summary.Successful)
	}
	for _, id := range []string{"11111", "22222"} {
		if n := fetcher.callCount(id); n != 0 {
			t.Errorf("fetch called %d times for already-present %s, want 0", n, id)
		}
	}
	if n := fetcher.callCount("33333"); n != 1 {
		t.Errorf("fetch called %d times for missing 33333, want 1", n)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.script("42", transientErr(), transientErr(), nil)
	store := newStubStore()

	d := newTestDownloader(fetcher, store, Options{Sequential: true, MaxAttempts: 3})
	summary := d.Run(context.Background(), "test", []string{"42"}, 1)

	if summary.Successful != 1 || summary.Errors != 0 {
		t.Errorf("successful=%d errors=%d, want 1/0", summary.Successful, summary.Errors)
	}
	if n := fetcher.callCount("42"); n != 3 {
		t.Errorf("fetch called %d times, want 3 (two retries then success)", n)
	}
	if !store.Exists("42") {
		t.Error("record not persisted after retried success")
	}
}

func TestRetryExhaustionReportsError(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.script("42", transientErr())
	store := newStubStore()

	d := newTestDownloader(fetcher, store, Options{Sequential: true, MaxAttempts: 3})
	summary := d.Run(context.Background(), "test", []string{"42"}, 1)

	if summary.Errors != 1 || summary.Successful != 0 {
		t.Errorf("errors=%d successful=%d, want 1/0", summary.Errors, summary.Successful)
	}
	if n := fetcher.callCount("42"); n != 3 {
		t.Errorf("fetch called %d times, want exactly MaxAttempts", n)
	}
}

func TestNotAvailableNeverRetried(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.script("42", notAvailableErr())
	store := newStubStore()

	d := newTestDownloader(fetcher, store, Options{Sequential: true, MaxAttempts: 3})
	summary := d.Run(context.Background(), "test", []string{"42"}, 1)

	if summary.Unavailable != 1 {
		t.Errorf("unavailable=%d, want 1", summary.Unavailable)
	}
	if summary.Errors != 0 {
		t.Errorf("unavailable article counted as error")
	}
	if n := fetcher.callCount("42"); n != 1 {
		t.Errorf("fetch called %d times for unavailable article, want exactly 1", n)
	}
}

func TestWriteFailureIsError(t *testing.T) {
	fetcher := newStubFetcher()
	store := newStubStore()
	store.writeErr = fmt.Errorf("disk full")

	d := newTestDownloader(fetcher, store, Options{Sequential: true})
	summary := d.Run(context.Background(), "test", []string{"42"}, 1)

	if summary.Errors != 1 || summary.Successful != 0 {
		t.Errorf("errors=%d successful=%d, want 1/0", summary.Errors, summary.Successful)
	}
}

func TestMixedBatchSummary(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5"}

	for _, mode := range []struct {
		name string
		opts Options
	}{
		{"concurrent", Options{Workers: 3}},
		{"sequential", Options{Sequential: true}},
	} {
		t.Run(mode.name, func(t *testing.T) {
			fetcher := newStubFetcher()
			fetcher.script("4", notAvailableErr())
			fetcher.script("5", transientErr())
			store := newStubStore()

			d := newTestDownloader(fetcher, store, mode.opts)
			summary := d.Run(context.Background(), "random forest", ids, 5)

			if summary.Successful != 3 || summary.Unavailable != 1 || summary.Errors != 1 || summary.Skipped != 0 {
				t.Errorf("counts = success %d, unavailable %d, errors %d, skipped %d; want 3/1/1/0",
					summary.Successful, summary.Unavailable, summary.Errors, summary.Skipped)
			}
			if summary.Failed != 2 {
				t.Errorf("failed = %d, want unavailable+errors = 2", summary.Failed)
			}
			if summary.Requested != 5 || summary.TotalFound != 5 {
				t.Errorf("requested=%d total=%d, want 5/5", summary.Requested, summary.TotalFound)
			}
			if got := summary.Classification(); got != ClassRan {
				t.Errorf("classification = %s, want %s", got, ClassRan)
			}
		})
	}
}

func TestNoResultsClassification(t *testing.T) {
	fetcher := newStubFetcher()
	d := newTestDownloader(fetcher, newStubStore(), Options{})
	summary := d.Run(context.Background(), "obscure keyword", nil, 0)

	if summary.Requested != 0 {
		t.Errorf("requested = %d, want 0", summary.Requested)
	}
	if got := summary.Classification(); got != ClassNoResults {
		t.Errorf("classification = %s, want %s", got, ClassNoResults)
	}
}

func TestTotalFailureClassification(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5"}
	fetcher := newStubFetcher()
	for _, id := range ids {
		fetcher.script(id, transientErr())
	}

	d := newTestDownloader(fetcher, newStubStore(), Options{Workers: 2, MaxAttempts: 2})
	summary := d.Run(context.Background(), "test", ids, 5)

	if summary.Errors != 5 {
		t.Errorf("errors = %d, want 5", summary.Errors)
	}
	if got := summary.Classification(); got != ClassTotalFailure {
		t.Errorf("classification = %s, want %s", got, ClassTotalFailure)
	}
}

func TestAlreadyPresentIsNotTotalFailure(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.script("2", transientErr())
	store := newStubStore("1")

	d := newTestDownloader(fetcher, store, Options{Sequential: true, MaxAttempts: 2})
	summary := d.Run(context.Background(), "test", []string{"1", "2"}, 2)

	if got := summary.Classification(); got != ClassRan {
		t.Errorf("classification = %s, want %s (skips count as progress)", got, ClassRan)
	}
}

func TestFailureIsolation(t *testing.T) {
	// One identifier exhausting its retries must not affect the others.
	ids := []string{"1", "2", "3"}
	fetcher := newStubFetcher()
	fetcher.script("2", transientErr())

	d := newTestDownloader(fetcher, newStubStore(), Options{Workers: 3, MaxAttempts: 3})
	summary := d.Run(context.Background(), "test", ids, 3)

	if summary.Successful != 2 || summary.Errors != 1 {
		t.Errorf("successful=%d errors=%d, want 2/1", summary.Successful, summary.Errors)
	}
}

func TestAuthRejectionStopsBatch(t *testing.T) {
	// A rejected API key dooms every request in the batch, so the
	// remaining identifiers are recorded as errors without being fetched.
	ids := []string{"1", "2", "3"}
	fetcher := newStubFetcher()
	fetcher.script("1", authErr())

	d := newTestDownloader(fetcher, newStubStore(), Options{Sequential: true, MaxAttempts: 3})
	summary := d.Run(context.Background(), "test", ids, 3)

	if n := fetcher.callCount("1"); n != 1 {
		t.Errorf("fetch called %d times for rejected credentials, want 1 (no retries)", n)
	}
	for _, id := range []string{"2", "3"} {
		if n := fetcher.callCount(id); n != 0 {
			t.Errorf("fetch called %d times for %s after credential rejection, want 0", n, id)
		}
	}
	if summary.Errors != 3 || summary.Successful != 0 {
		t.Errorf("errors=%d successful=%d, want 3/0", summary.Errors, summary.Successful)
	}
	if got := summary.Classification(); got != ClassTotalFailure {
		t.Errorf("classification = %s, want %s", got, ClassTotalFailure)
	}
}

func TestBoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	fetcher := fetcherFunc(func(ctx context.Context, id string, format record.Format, includeText bool) (*record.Record, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &record.Record{PMCID: record.DisplayID(id), Source: record.SourcePMC}, nil
	})

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}

	d := newTestDownloader(fetcher, newStubStore(), Options{Workers: 4})
	summary := d.Run(context.Background(), "test", ids, 20)

	if summary.Successful != 20 {
		t.Fatalf("successful = %d, want 20", summary.Successful)
	}
	if maxInFlight > 4 {
		t.Errorf("max in-flight fetches = %d, want <= 4", maxInFlight)
	}
}

type fetcherFunc func(ctx context.Context, id string, format record.Format, includeText bool) (*record.Record, error)

func (f fetcherFunc) Fetch(ctx context.Context, id string, format record.Format, includeText bool) (*record.Record, error) {
	return f(ctx, id, format, includeText)
}

func TestSleepReceivesBackoffDelays(t *testing.T) {
	var delays []time.Duration
	fetcher := newStubFetcher()
	fetcher.script("42", transientErr())

	opts := Options{
		Sequential:     true,
		MaxAttempts:    3,
		BackoffBase:    2 * time.Second,
		BackoffCeiling: 10 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}
	d := New(fetcher, newStubStore(), opts)
	d.Run(context.Background(), "test", []string{"42"}, 1)

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("slept %d times (%v), want %d", len(delays), delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

// Package plan loads the batch download plan: a CSV of keywords with
// category, priority, and an expected-article range. Sequencing policy
// (priority ordering, pauses, per-keyword caps) lives here, not in the
// download core.
package plan

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxResults is used when an entry has no parseable
	// expected-article range.
	DefaultMaxResults = 50
	// MaxResultsCap bounds the per-keyword download size regardless of
	// what the plan claims.
	MaxResultsCap = 100
)

// Entry is one keyword in the plan.
type Entry struct {
	Keyword  string
	Category string
	Priority string
	// Expected is the raw Expected_Articles cell, e.g. "20-50".
	Expected string
}

// MaxResults derives the per-keyword download cap from the expected
// range, taking the upper bound and capping at MaxResultsCap.
func (e Entry) MaxResults() int {
	expected := strings.TrimSpace(e.Expected)
	n := DefaultMaxResults
	if i := strings.Index(expected, "-"); i >= 0 {
		if upper, err := strconv.Atoi(strings.TrimSpace(expected[i+1:])); err == nil {
			n = upper
		}
	} else if v, err := strconv.Atoi(expected); err == nil {
		n = v
	}
	if n > MaxResultsCap {
		return MaxResultsCap
	}
	if n <= 0 {
		return DefaultMaxResults
	}
	return n
}

// priorityRank orders Critical first and unknown priorities last.
func priorityRank(p string) int {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "critical":
		return 1
	case "high":
		return 2
	case "medium":
		return 3
	case "low":
		return 4
	}
	return 5
}

// Load reads a plan CSV with a header row of at least
// Keyword,Category,Priority,Expected_Articles (extra columns ignored).
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads plan entries from CSV data.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading plan header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	kwCol, ok := col["keyword"]
	if !ok {
		return nil, fmt.Errorf("plan has no Keyword column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading plan row: %w", err)
		}
		if kwCol >= len(row) || strings.TrimSpace(row[kwCol]) == "" {
			continue
		}
		entries = append(entries, Entry{
			Keyword:  strings.TrimSpace(row[kwCol]),
			Category: field(row, "category"),
			Priority: field(row, "priority"),
			Expected: field(row, "expected_articles"),
		})
	}
	return entries, nil
}

// SortByPriority orders entries Critical > High > Medium > Low, keeping
// the plan order within a priority level.
func SortByPriority(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return priorityRank(entries[i].Priority) < priorityRank(entries[j].Priority)
	})
}

// Result records how one keyword's batch went.
type Result struct {
	Keyword      string
	Category     string
	Priority     string
	SuccessCount int
	Attempted    int
	Error        string
	Timestamp    time.Time
}

// WriteResults writes the per-keyword results CSV next to the downloads.
func WriteResults(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"keyword", "category", "priority", "success_count", "attempted", "error", "timestamp"}); err != nil {
		return fmt.Errorf("writing results header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.Keyword,
			r.Category,
			r.Priority,
			strconv.Itoa(r.SuccessCount),
			strconv.Itoa(r.Attempted),
			r.Error,
			r.Timestamp.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing results row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

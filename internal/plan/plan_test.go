package plan

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const samplePlan = `Keyword,Category,Priority,Expected_Articles
random forest,Machine Learning,High,20-50
decision tree,Machine Learning,Critical,10-30
k-means,Clustering,Low,100-500
apriori,Association Rules,Medium,
gradient boosting,Machine Learning,High,40
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	want := Entry{Keyword: "random forest", Category: "Machine Learning", Priority: "High", Expected: "20-50"}
	if entries[0] != want {
		t.Errorf("entries[0] = %+v, want %+v", entries[0], want)
	}
}

func TestParseMissingKeywordColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Category,Priority\nx,y\n"))
	if err == nil {
		t.Error("expected error for plan without Keyword column")
	}
}

func TestParseSkipsBlankKeywords(t *testing.T) {
	entries, err := Parse(strings.NewReader("Keyword,Priority\n,High\nvalid,Low\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 || entries[0].Keyword != "valid" {
		t.Errorf("entries = %+v, want only the valid row", entries)
	}
}

func TestMaxResults(t *testing.T) {
	tests := []struct {
		expected string
		want     int
	}{
		{"20-50", 50},
		{"100-500", 100}, // capped
		{"40", 40},
		{"", 50},       // default
		{"a lot", 50},  // unparseable
		{"10-0", 50},   // nonsense upper bound
		{"5-200", 100}, // capped
	}
	for _, tt := range tests {
		e := Entry{Expected: tt.expected}
		if got := e.MaxResults(); got != tt.want {
			t.Errorf("MaxResults(%q) = %d, want %d", tt.expected, got, tt.want)
		}
	}
}

func TestSortByPriority(t *testing.T) {
	entries, err := Parse(strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	SortByPriority(entries)

	wantOrder := []string{"decision tree", "random forest", "gradient boosting", "apriori", "k-means"}
	for i, want := range wantOrder {
		if entries[i].Keyword != want {
			t.Errorf("entries[%d] = %q, want %q (order: Critical > High > Medium > Low, stable within level)",
				i, entries[i].Keyword, want)
		}
	}
}

func TestWriteResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	results := []Result{
		{Keyword: "random forest", Category: "ML", Priority: "High", SuccessCount: 12, Attempted: 20, Timestamp: time.Now()},
		{Keyword: "bad keyword", Priority: "Low", Error: "no results found", Timestamp: time.Now()},
	}
	if err := WriteResults(path, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening results: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading results: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows (incl. header), want 3", len(rows))
	}
	if rows[1][0] != "random forest" || rows[1][3] != "12" || rows[1][4] != "20" {
		t.Errorf("first result row = %v", rows[1])
	}
	if rows[2][5] != "no results found" {
		t.Errorf("second result row error = %q", rows[2][5])
	}
}

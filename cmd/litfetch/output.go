package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/melhzy/litfetch/internal/downloader"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// exitWithError outputs an error in the selected format and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		outputJSON(ErrorResponse{Error: msg})
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(code)
}

// printSummary renders the end-of-batch report.
func printSummary(s downloader.Summary) {
	if jsonOutput {
		outputJSON(s)
		return
	}
	rule := strings.Repeat("=", 60)
	fmt.Printf("\n%s\n", rule)
	fmt.Println("Download Summary")
	fmt.Println(rule)
	fmt.Printf("Keyword:           %s\n", s.Keyword)
	fmt.Printf("Total found:       %d\n", s.TotalFound)
	fmt.Printf("Requested:         %d\n", s.Requested)
	fmt.Printf("[OK] Successful:   %d\n", s.Successful)
	fmt.Printf("[FAIL] Failed:     %d\n", s.Failed)
	fmt.Printf("  - Unavailable:   %d\n", s.Unavailable)
	fmt.Printf("  - Errors:        %d\n", s.Errors)
	fmt.Printf("[SKIP] Skipped:    %d\n", s.Skipped)
	fmt.Printf("Duration:          %s\n", formatDuration(s.Duration))
	fmt.Printf("Output directory:  %s\n", s.OutputDir)
	fmt.Println(rule)
}

// exitCodeFor maps the batch classification to the CLI exit contract.
func exitCodeFor(c downloader.Classification) int {
	switch c {
	case downloader.ClassNoResults:
		return ExitNoResults
	case downloader.ClassTotalFailure:
		return ExitFailed
	default:
		return ExitSuccess
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

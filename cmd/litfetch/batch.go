package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/melhzy/litfetch/internal/config"
	"github.com/melhzy/litfetch/internal/downloader"
	"github.com/melhzy/litfetch/internal/plan"
	"github.com/melhzy/litfetch/internal/record"
)

var (
	batchAPIKey  string
	batchYes     bool
	batchTimeout time.Duration
	batchPause   time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <plan.csv>",
	Short: "Download articles for every keyword in a plan CSV",
	Long: `Run the fetch pipeline once per keyword in a plan CSV with columns
Keyword, Category, Priority, Expected_Articles. Keywords are processed
in priority order (Critical > High > Medium > Low) with a short pause
between keywords, and a per-keyword results CSV is written under the
publications root.

A failed search for one keyword is recorded and the batch moves on.

Examples:
  litfetch batch keywords.csv
  litfetch batch keywords.csv --yes --timeout 5m`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchAPIKey, "api-key", "", "NCBI API key (overrides NCBI_API_KEY and config)")
	batchCmd.Flags().BoolVarP(&batchYes, "yes", "y", false, "Skip the confirmation prompt")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "Per-keyword timeout")
	batchCmd.Flags().DurationVar(&batchPause, "pause", 2*time.Second, "Pause between keywords")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	entries, err := plan.Load(args[0])
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}
	if len(entries) == 0 {
		exitWithError(ExitNoResults, "plan has no keywords")
	}
	plan.SortByPriority(entries)

	totalExpected := 0
	for _, e := range entries {
		totalExpected += e.MaxResults()
	}
	fmt.Printf("Loaded %d keywords, up to %d articles\n", len(entries), totalExpected)

	if !batchYes && !confirm("Proceed with batch download?") {
		fmt.Println("Download cancelled.")
		os.Exit(ExitSuccess)
	}

	client := newPMCClient(batchAPIKey)
	start := time.Now()
	var results []plan.Result
	totalSuccess, totalAttempted := 0, 0

	for i, entry := range entries {
		fmt.Printf("\n[%d/%d] %s (%s / %s)\n", i+1, len(entries), entry.Keyword, entry.Category, entry.Priority)

		ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		summary, err := runKeyword(ctx, client, entry.Keyword, keywordOptions{
			MaxResults:  entry.MaxResults(),
			Format:      record.FormatJSON,
			IncludeText: true,
		})
		cancel()

		result := plan.Result{
			Keyword:   entry.Keyword,
			Category:  entry.Category,
			Priority:  entry.Priority,
			Timestamp: time.Now(),
		}
		if err != nil {
			// One keyword's search failure never stops the batch.
			slog.Error("keyword failed", "keyword", entry.Keyword, "error", err)
			result.Error = err.Error()
		} else {
			result.SuccessCount = summary.Successful
			result.Attempted = summary.Requested
			totalSuccess += summary.Successful
			totalAttempted += summary.Requested
			if summary.Classification() == downloader.ClassNoResults {
				result.Error = "no results found"
			}
			printSummary(summary)
		}
		results = append(results, result)

		if i+1 < len(entries) {
			time.Sleep(batchPause)
		}
	}

	root := config.ResolvePublicationsDir(publicationsFlag)
	resultsPath := filepath.Join(root, fmt.Sprintf("download_results_%s.csv", start.Format("20060102_150405")))
	if err := plan.WriteResults(resultsPath, results); err != nil {
		slog.Error("failed to write results file", "error", err)
	}

	printBatchReport(results, start, resultsPath)
	if totalSuccess > 0 || totalAttempted == 0 {
		os.Exit(ExitSuccess)
	}
	os.Exit(ExitFailed)
}

func printBatchReport(results []plan.Result, start time.Time, resultsPath string) {
	type rollup struct {
		keywords int
		success  int
	}
	byPriority := map[string]*rollup{}
	failed := 0
	totalSuccess := 0
	for _, r := range results {
		totalSuccess += r.SuccessCount
		if r.Error != "" {
			failed++
		}
		key := r.Priority
		if key == "" {
			key = "(none)"
		}
		if byPriority[key] == nil {
			byPriority[key] = &rollup{}
		}
		byPriority[key].keywords++
		byPriority[key].success += r.SuccessCount
	}

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"keywords":        len(results),
			"downloaded":      totalSuccess,
			"failed_keywords": failed,
			"duration":        time.Since(start).String(),
			"results_file":    resultsPath,
		})
		return
	}

	rule := strings.Repeat("=", 60)
	fmt.Printf("\n%s\nBatch complete\n%s\n", rule, rule)
	fmt.Printf("Keywords processed: %d\n", len(results))
	fmt.Printf("Articles downloaded: %d\n", totalSuccess)
	fmt.Printf("Failed keywords: %d\n", failed)
	fmt.Printf("Total time: %s\n", formatDuration(time.Since(start)))
	fmt.Printf("Results saved to: %s\n", resultsPath)

	fmt.Println("\nBy priority:")
	for _, p := range []string{"Critical", "High", "Medium", "Low", "(none)"} {
		if r, ok := byPriority[p]; ok {
			fmt.Printf("  %-8s %d keywords, %d articles\n", p, r.keywords, r.success)
		}
	}

	if failed > 0 {
		fmt.Println("\nFailed keyword list:")
		for _, r := range results {
			if r.Error != "" {
				fmt.Printf("  - %s: %s\n", r.Keyword, r.Error)
			}
		}
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s (yes/no): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "yes" || answer == "y"
}

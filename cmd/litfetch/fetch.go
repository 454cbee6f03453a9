package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/melhzy/litfetch/internal/archive"
	"github.com/melhzy/litfetch/internal/config"
	"github.com/melhzy/litfetch/internal/downloader"
	"github.com/melhzy/litfetch/internal/pmc"
	"github.com/melhzy/litfetch/internal/record"
)

var (
	fetchMaxResults  int
	fetchFormat      string
	fetchAPIKey      string
	fetchSequential  bool
	fetchWorkers     int
	fetchExcludeText bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <keyword>",
	Short: "Search PMC and download full-text articles for a keyword",
	Long: `Search PMC for a keyword and download up to --max-results full-text
articles into a per-keyword directory under the publications root.

Articles already on disk are skipped, so re-running the same keyword
only fetches what is missing.

Examples:
  litfetch fetch "random forest algorithm" --max-results 50
  litfetch fetch "gradient boosting" --format xml --sequential
  litfetch fetch "machine learning" --verbose`,
	Args: cobra.ExactArgs(1),
	Run:  runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchMaxResults, "max-results", 100, "Maximum number of articles to download")
	fetchCmd.Flags().StringVar(&fetchFormat, "format", "json", "Output format: json, xml, or txt")
	fetchCmd.Flags().StringVar(&fetchAPIKey, "api-key", "", "NCBI API key (overrides NCBI_API_KEY and config)")
	fetchCmd.Flags().BoolVar(&fetchSequential, "sequential", false, "Download one article at a time instead of concurrently")
	fetchCmd.Flags().IntVar(&fetchWorkers, "workers", downloader.DefaultWorkers, "Number of concurrent download workers")
	fetchCmd.Flags().BoolVar(&fetchExcludeText, "exclude-text", false, "Omit the plain-text field from json records")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	keyword := args[0]

	format, err := record.ParseFormat(fetchFormat)
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}

	client := newPMCClient(fetchAPIKey)
	summary, err := runKeyword(context.Background(), client, keyword, keywordOptions{
		MaxResults:  fetchMaxResults,
		Format:      format,
		Sequential:  fetchSequential,
		Workers:     fetchWorkers,
		IncludeText: !fetchExcludeText,
	})
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}

	printSummary(summary)
	os.Exit(exitCodeFor(summary.Classification()))
}

// newPMCClient builds the shared rate-limited client from the resolved
// API key and configured rate limit.
func newPMCClient(apiKeyFlag string) *pmc.Client {
	opts := []pmc.ClientOption{}
	if key := config.ResolveAPIKey(apiKeyFlag); key != "" {
		opts = append(opts, pmc.WithAPIKey(key))
	} else {
		slog.Warn("no NCBI API key configured, using unauthenticated rate")
	}
	if cfg, err := config.LoadGlobalConfig(); err == nil && cfg.RateLimit > 0 {
		opts = append(opts, pmc.WithRateLimit(cfg.RateLimit))
	}
	return pmc.NewClient(opts...)
}

// keywordOptions tunes one keyword's download batch.
type keywordOptions struct {
	MaxResults  int
	Format      record.Format
	Sequential  bool
	Workers     int
	IncludeText bool
}

// runKeyword runs the full search → download pipeline for one keyword.
// Shared by the fetch command and the batch driver.
func runKeyword(ctx context.Context, client *pmc.Client, keyword string, opts keywordOptions) (downloader.Summary, error) {
	root := config.ResolvePublicationsDir(publicationsFlag)

	slog.Info("searching PMC", "keyword", keyword, "max_results", opts.MaxResults)
	ids, totalFound, err := client.Search(ctx, keyword, opts.MaxResults)
	if err != nil {
		return downloader.Summary{}, err
	}
	slog.Info("search complete", "found", len(ids), "total_available", totalFound)

	dir, err := archive.Open(root, keyword, opts.Format)
	if err != nil {
		return downloader.Summary{}, err
	}

	if len(ids) > 0 && !jsonOutput {
		fmt.Printf("\nFound %d PMC IDs for %q (total available: %d)\nOutput directory: %s\n\n",
			len(ids), keyword, totalFound, dir.Root())
	}

	dl := downloader.New(client, dir, downloader.Options{
		Format:      opts.Format,
		IncludeText: opts.IncludeText,
		Workers:     opts.Workers,
		Sequential:  opts.Sequential,
	})
	return dl.Run(ctx, keyword, ids, totalFound), nil
}

// Package main provides the litfetch CLI entry point.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// jsonOutput switches summaries and results to machine-readable JSON.
	jsonOutput bool
	// verbose enables debug logging.
	verbose bool
	// publicationsFlag overrides the configured publications root.
	publicationsFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitFailed)
	}
}

var rootCmd = &cobra.Command{
	Use:   "litfetch",
	Short: "Download full-text PMC articles by keyword",
	Long: `litfetch searches PubMed Central via NCBI E-utilities and downloads
full-text articles into a per-keyword directory, skipping articles that
are already on disk. Re-running the same keyword resumes where the last
run stopped.

A SQLite catalog over the downloaded archive supports listing, full-text
search, and matching local PDFs to downloaded records by DOI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	cobra.OnInitialize(func() {
		// A .env file in the working directory may carry NCBI_API_KEY.
		_ = godotenv.Load()
	})
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&publicationsFlag, "publications", "", "Publications root directory (overrides config)")
	rootCmd.Version = Version
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so JSON output on stdout stays parseable.
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

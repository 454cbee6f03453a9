package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over downloaded records",
	Long: `Search titles, abstracts, authors, and keyword directories of the
downloaded archive using the catalog's full-text index.

Examples:
  litfetch search "random forest"
  litfetch search "gradient AND boosting" --limit 10`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	db := openCatalog()
	defer db.Close()

	entries, err := db.Search(args[0], searchLimit)
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}
	if jsonOutput {
		outputJSON(entries)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No records found")
		return
	}
	fmt.Printf("Found %d records\n\n", len(entries))
	printEntriesHuman(entries)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/melhzy/litfetch/internal/catalog"
)

var (
	listKeyword string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued records",
	Long: `List downloaded records from the catalog, newest first.

Examples:
  litfetch list
  litfetch list --keyword "random forest" --limit 20
  litfetch list --keywords`,
	Args: cobra.NoArgs,
	Run:  runList,
}

var listKeywordsFlag bool

func init() {
	listCmd.Flags().StringVar(&listKeyword, "keyword", "", "Only records from this keyword's directory")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of records")
	listCmd.Flags().BoolVar(&listKeywordsFlag, "keywords", false, "Show per-keyword record counts instead")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	db := openCatalog()
	defer db.Close()

	if listKeywordsFlag {
		counts, err := db.ListKeywords()
		if err != nil {
			exitWithError(ExitFailed, "%v", err)
		}
		if jsonOutput {
			outputJSON(counts)
			return
		}
		for _, kc := range counts {
			fmt.Printf("%6d  %s\n", kc.Count, kc.Keyword)
		}
		return
	}

	entries, err := db.List(listKeyword, listLimit)
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
	printEntriesHuman(entries)
}

func printEntriesHuman(entries []*catalog.Entry) {
	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.PMCID, truncateString(e.Title, 70))
		details := []string{e.Keyword}
		if e.Journal != "" {
			details = append(details, e.Journal)
		}
		if e.PubYear > 0 {
			details = append(details, fmt.Sprintf("%d", e.PubYear))
		}
		if e.DOI != "" {
			details = append(details, e.DOI)
		}
		fmt.Printf("            %s\n", strings.Join(details, " | "))
	}
}

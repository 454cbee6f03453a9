package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melhzy/litfetch/internal/pdf"
)

var matchCmd = &cobra.Command{
	Use:   "match <file.pdf>",
	Short: "Match a local PDF to a downloaded record by DOI",
	Long: `Extract the DOI from a local PDF and look it up in the catalog,
reporting which downloaded record (and keyword directory) the PDF
corresponds to.

Examples:
  litfetch match ~/Downloads/paper.pdf`,
	Args: cobra.ExactArgs(1),
	Run:  runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) {
	doi, err := pdf.ExtractDOI(args[0])
	if err != nil {
		exitWithError(ExitFailed, "reading PDF: %v", err)
	}
	if doi == "" {
		exitWithError(ExitNoResults, "no DOI found in %s", args[0])
	}

	db := openCatalog()
	defer db.Close()

	entry, err := db.GetByDOI(doi)
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}
	if entry == nil {
		if jsonOutput {
			outputJSON(map[string]interface{}{"doi": doi, "matched": false})
		} else {
			fmt.Printf("DOI %s not in the archive\n", doi)
		}
		return
	}

	if jsonOutput {
		outputJSON(map[string]interface{}{"doi": doi, "matched": true, "record": entry})
		return
	}
	fmt.Printf("DOI:     %s\n", doi)
	fmt.Printf("Record:  %s  %s\n", entry.PMCID, truncateString(entry.Title, 70))
	fmt.Printf("Keyword: %s\n", entry.Keyword)
	fmt.Printf("File:    %s\n", entry.Path)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/melhzy/litfetch/internal/catalog"
	"github.com/melhzy/litfetch/internal/config"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the catalog from the downloaded archive",
	Long: `Walk the publications root and rebuild the SQLite catalog from every
json record on disk. The catalog is derived state; rebuilding it is
always safe and loses nothing.`,
	Args: cobra.NoArgs,
	Run:  runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) {
	root := config.ResolvePublicationsDir(publicationsFlag)
	if _, err := os.Stat(root); err != nil {
		exitWithError(ExitFailed, "publications root %s: %v", root, err)
	}

	db, err := catalog.Open(catalog.DefaultPath(root))
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}
	defer db.Close()

	count, err := db.Rebuild(root)
	if err != nil {
		exitWithError(ExitFailed, "rebuilding catalog: %v", err)
	}

	if jsonOutput {
		outputJSON(map[string]interface{}{"status": "rebuilt", "records": count})
		return
	}
	fmt.Printf("Catalog rebuilt: %d records\n", count)
}

// openCatalog opens the catalog under the resolved publications root,
// exiting with a hint when it hasn't been built yet.
func openCatalog() *catalog.DB {
	root := config.ResolvePublicationsDir(publicationsFlag)
	path := catalog.DefaultPath(root)
	if _, err := os.Stat(path); err != nil {
		exitWithError(ExitFailed, "no catalog at %s (run 'litfetch rebuild' first)", path)
	}
	db, err := catalog.Open(path)
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}
	return db
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melhzy/litfetch/internal/config"
	"github.com/melhzy/litfetch/internal/pmc"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Show the configuration litfetch would run with: config file path,
publications root, rate limit, and whether an API key is set.

Config file: ~/.config/litfetch/config.yml with keys api_key,
publications_dir, rate_limit. NCBI_API_KEY in the environment (or a
.env file) overrides the configured key.`,
	Args: cobra.NoArgs,
	Run:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitFailed, "%v", err)
	}

	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = pmc.DefaultRateLimit
	}
	apiKeySet := config.ResolveAPIKey("") != ""

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"config_path":      config.GlobalConfigPath(),
			"publications_dir": config.ResolvePublicationsDir(publicationsFlag),
			"rate_limit":       rateLimit,
			"api_key_set":      apiKeySet,
		})
		return
	}
	fmt.Printf("Config file:       %s\n", config.GlobalConfigPath())
	fmt.Printf("Publications root: %s\n", config.ResolvePublicationsDir(publicationsFlag))
	fmt.Printf("Rate limit:        %.2f req/s\n", rateLimit)
	if apiKeySet {
		fmt.Println("API key:           set")
	} else {
		fmt.Println("API key:           not set (unauthenticated rate applies)")
	}
}

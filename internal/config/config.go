// Package config handles the global litfetch configuration file and
// API-key resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in
// ~/.config/litfetch/config.yml.
type GlobalConfig struct {
	// APIKey is the NCBI API key. Optional: NCBI serves unauthenticated
	// traffic at a lower rate.
	APIKey string `yaml:"api_key,omitempty"`
	// PublicationsDir is the root under which per-keyword directories
	// are created. Defaults to ./publications when unset.
	PublicationsDir string `yaml:"publications_dir,omitempty"`
	// RateLimit is the sustained request rate in requests per second.
	// Zero means the client default.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "litfetch"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// APIKeyEnv is the environment variable holding the NCBI API key.
	// A .env file in the working directory is honored.
	APIKeyEnv = "NCBI_API_KEY"

	// DefaultPublicationsDir is used when no publications_dir is
	// configured.
	DefaultPublicationsDir = "publications"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/litfetch/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.PublicationsDir != "" {
		cfg.PublicationsDir = ExpandTilde(cfg.PublicationsDir)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ResolveAPIKey picks the API key with flag > environment > global
// config precedence. An empty result is allowed.
func ResolveAPIKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key
	}
	cfg, _ := LoadGlobalConfig()
	return cfg.APIKey
}

// ResolvePublicationsDir returns the output root with flag > global
// config > default precedence.
func ResolvePublicationsDir(flagValue string) string {
	if flagValue != "" {
		return ExpandTilde(flagValue)
	}
	cfg, _ := LoadGlobalConfig()
	if cfg.PublicationsDir != "" {
		return cfg.PublicationsDir
	}
	return DefaultPublicationsDir
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}

package main

import (
	"os"

	"github.com/hyperengineering/roster"
	"github.com/spf13/cobra"
)

var (
	cfgDBPath   string
	cfgAtlasURL string
	cfgAPIKey   string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster - project registry CLI",
	Long: `Roster is a CLI tool for tracking software projects, the places
they manifest on disk, and the harness configuration found alongside
them.

The registry lives in a local SQLite cache and can synchronize with an
Atlas central service when one is configured.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to local registry database (default: ~/.roster/roster.db)")
	rootCmd.PersistentFlags().StringVar(&cfgAtlasURL, "atlas-url", "", "URL of Atlas central service")
	rootCmd.PersistentFlags().StringVar(&cfgAPIKey, "api-key", "", "API key for Atlas authentication")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func loadConfig() roster.Config {
	cfg := roster.ConfigFromEnv()

	// Flags take precedence over environment
	if cfgDBPath != "" {
		cfg.LocalPath = cfgDBPath
	}
	if cfgAtlasURL != "" {
		cfg.AtlasURL = cfgAtlasURL
	}
	if cfgAPIKey != "" {
		cfg.APIKey = cfgAPIKey
	}

	return cfg
}

func newClient() (*roster.Client, error) {
	return roster.New(loadConfig())
}

// apiKeyInUse returns the key the current invocation resolved, so error
// output can scrub it.
func apiKeyInUse() string {
	if cfgAPIKey != "" {
		return cfgAPIKey
	}
	return os.Getenv("ATLAS_API_KEY")
}

// Package main provides the role_tracker CLI: discovery batches, tracking
// runs, exports and the read-only projections API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "role_tracker",
	Short: "Track job postings across applicant tracking systems",
	Long: `role_tracker discovers the ATS boards of a curated company list, polls them on a cadence
and keeps one deduplicated history record per posting: when it was first seen, whether it is
still open and which boards report it.`,
	SilenceUsage: true,
}

var globalFlags struct {
	configPath  string
	store       string
	databaseURL string
	redisURL    string
	logLevel    string
	logJSON     bool
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.configPath, "config", "", "Path to a config file (yaml, json or toml)")
	pf.StringVar(&globalFlags.store, "store", "", "Storage backend: postgres or memory")
	pf.StringVar(&globalFlags.databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL)")
	pf.StringVar(&globalFlags.redisURL, "redis-url", "", "Redis URL for the cross-process merge lock (defaults to REDIS_URL)")
	pf.StringVar(&globalFlags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&globalFlags.logJSON, "log-json", false, "Emit JSON logs")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lexcache",
	Short: "Lexcache - caching proxy for legislative records",
	Long: `Lexcache sits in front of a third-party legislative records API and
serves normalized, cached views of people, documents and committees.

Indexing jobs populate an embedded BoltDB cache; the HTTP server answers
reads from the cache and exposes secret-protected endpoints to trigger
re-indexing.`,
	Version: Version,
}

var configPath string

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Lexcache version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(sweepCmd)
}

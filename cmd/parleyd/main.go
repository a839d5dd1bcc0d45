package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
)

var (
	configFile  string
	databaseURL string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "parleyd",
		Short: "Parley customer messaging daemon",
		Long:  "Runs the Parley conversation assignment service: HTTP API, event outbox relay, and schema tooling",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration in precedence order: defaults, then the
// config file, then environment variables, then explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)

	if cmd.Flags().Changed("database-url") {
		cfg.Database.URL = databaseURL
	}
	return cfg, nil
}

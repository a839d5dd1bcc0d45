package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/db"
)

func migrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database url is required (--database-url or PARLEY_DATABASE_URL)")
			}

			direction := "up"
			if down {
				direction = "down"
			}
			if err := db.Migrate(cfg.Database.URL, direction); err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}
			fmt.Printf("migrations %s applied\n", direction)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back all migrations instead of applying them")

	return cmd
}

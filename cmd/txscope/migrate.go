package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-txscope/internal/infrastructure/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "スキーマのマイグレーションを適用する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := database.NewConnection(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.RunMigrations(db.DB, cfg.Database.Driver, cfg.Database.MigrationsPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s (%s)\n", cfg.Database.Driver, cfg.Database.MigrationsPath)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certvine/certflow/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			if cfg.DB.URL == "" {
				return fmt.Errorf("migrate requires a database url (db.url or CERTFLOW_DB_URL)")
			}

			logger := newLogger(cfg)
			ctx := cmd.Context()

			store, err := postgres.New(ctx, cfg.DB.URL, postgres.WithLogger(logger))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kascald/bootPractice-2/userstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending user table migrations to Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required (env: BOOTPRACTICE_POSTGRES_DSN)")
		}
		store, err := userstore.Connect(cmd.Context(), cfg.UserStoreConfig())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()

		if err := userstore.Migrate(cmd.Context(), store.Pool()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations: up OK")
		return nil
	},
}

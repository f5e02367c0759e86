package main

import (
	"fmt"

	"github.com/boddenberg/expense-assistant-go/internal/config"
	"github.com/boddenberg/expense-assistant-go/internal/infra/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQLite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = opts.cfg.SQLiteDBPath
			}
			if opts.cfg.StorageBackend != config.BackendSQLite {
				opts.logger.Warn("migrating sqlite while another backend is configured",
					zap.String("storage_backend", opts.cfg.StorageBackend))
			}

			loc, err := opts.cfg.Location()
			if err != nil {
				return err
			}
			// Open runs pending migrations.
			store, err := sqlite.Open(dbPath, loc, opts.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", dbPath)
			return err
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	return cmd
}

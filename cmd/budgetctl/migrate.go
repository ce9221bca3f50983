package main

import (
	"fmt"

	"financeboard/internal/config"
	"financeboard/internal/storage"

	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DataBackend != config.BackendSQLite {
				return fmt.Errorf("migrations only apply to the sqlite backend (DATA_BACKEND=%s)", a.cfg.DataBackend)
			}
			path := a.cfg.SQLiteDBPath
			if !status {
				if err := storage.RunMigrations(path); err != nil {
					return err
				}
			}
			version, dirty, err := storage.MigrationVersion(path)
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", path, version, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "only report the current version")
	return cmd
}

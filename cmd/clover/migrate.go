package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/database"
)

func newMigrateCmd(load func() (*app, error)) *cobra.Command {
	var version uint

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("version") {
				a.cfg.DatabaseMigrationVersion = version
			}
			return a.migrate(cmd.Context())
		},
	}

	cmd.Flags().UintVar(&version, "version", 0, "migrate up or down to this version; 0 means latest")
	return cmd
}

func (a *app) migrate(ctx context.Context) error {
	db, err := database.Connect(ctx, a.cfg.Database(), a.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewMigrationService(a.logger, a.cfg.Migration()).MigratePostgres(db, a.cfg.DatabaseName); err != nil {
		return err
	}
	a.logger.Info("Migrations applied")
	_ = a.zap.Sync()
	return nil
}

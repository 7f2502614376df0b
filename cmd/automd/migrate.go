package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sysprohq/automation/internal/db"
	"github.com/sysprohq/automation/internal/db/migrations"
	"github.com/sysprohq/automation/internal/dbpool"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func runMigrate(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	return db.RunMigrations(ctx, pool, log, migrations.FS)
}

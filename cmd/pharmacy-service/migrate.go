package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Create the pharmacy tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd.Context())
		},
	})
	return migrate
}

func runMigrateUp(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Database.Driver == config.DriverMemory {
		return fmt.Errorf("nothing to migrate for the %s driver", config.DriverMemory)
	}

	log := logger.New(serviceName, cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Str("database", cfg.Database.Target()).Msg("schema is up to date")
	return nil
}

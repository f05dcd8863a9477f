package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"reqforge/internal/config"
	"reqforge/internal/repository/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := migrationSetup()
			if err != nil {
				return err
			}
			return migrateUp(cmd.Context(), cfg, logger)
		},
	}, &cobra.Command{
		Use:   "status",
		Short: "Print the applied state of every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := migrationSetup()
			if err != nil {
				return err
			}
			db, err := postgres.OpenDB(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.MigrationStatus(cmd.Context(), db, cfg.TablePrefix)
		},
	}, resetCmd())

	return cmd
}

func resetCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Roll back every migration, dropping all prefixed tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := migrationSetup()
			if err != nil {
				return err
			}
			if cfg.Environment == "prod" {
				return fmt.Errorf("refusing to reset the prod schema")
			}
			if !force {
				return fmt.Errorf("reset drops all %s* tables; pass --force to confirm", cfg.TablePrefix)
			}

			db, err := postgres.OpenDB(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.ResetMigrations(cmd.Context(), db, cfg.TablePrefix); err != nil {
				return err
			}
			logger.Warn("schema reset", "table_prefix", cfg.TablePrefix)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm dropping all tables")
	return cmd
}

func migrationSetup() (*config.Config, *slog.Logger, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	logger, _, err := config.NewLogger(&config.Config{Environment: cfg.Environment})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func migrateUp(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := postgres.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db, cfg.TablePrefix); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", "table_prefix", cfg.TablePrefix)
	return nil
}

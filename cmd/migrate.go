package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/config"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/logging"
	pgstore "github.com/CarlaKobielski/projeto-antipirataria/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies the Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			if err := migrateDatabase(cfg, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func migrate(cfg config.Config, logger *zap.Logger) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required to run migrations")
	}
	return pgstore.Migrate(cfg.Database.DSN, logger)
}

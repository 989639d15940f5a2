package cli

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"repdayAPI/internal/config"
	"repdayAPI/internal/database"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Long: `Apply the embedded SQL migrations to DATABASE_URL.

Migrations run in order, one transaction each, and are recorded in the
schema_version table so repeated runs are no-ops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}
			return runMigrations(cmd.Context(), cfg.DatabaseURL, logger)
		},
	}
}

func runMigrations(ctx context.Context, databaseURL string, logger *log.Logger) error {
	pool, err := database.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := database.NewRunner(pool, database.Migrations(), logger.WithPrefix("migrate")).Apply(ctx)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "applied", applied)
	return nil
}

func loadConfig(rootOpts *RootOptions) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if rootOpts.LogLevel != "" {
		cfg.LogLevel = rootOpts.LogLevel
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

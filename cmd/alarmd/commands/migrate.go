package commands

import (
	"github.com/spf13/cobra"

	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/logger"
	"github.com/volk7/alerting/store"
)

// MigrateCmd applies pending schema migrations without starting the service.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := store.Open(cfg.DatabaseURL, store.PoolConfig{
		MinConns: cfg.MinDBConnections,
		MaxConns: cfg.MaxDBConnections,
	}, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer db.Close()

	if err := store.Migrate(db, logger.Logger); err != nil {
		return errors.Wrap(err, "apply migrations")
	}

	logger.Logger.Info("migrations applied")
	return nil
}

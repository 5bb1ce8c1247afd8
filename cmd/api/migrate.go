package main

import (
	"errors"
	"fmt"

	"waitlist-service/internal/config"
	"waitlist-service/internal/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type MigrateCommand struct {
	Logger *zap.Logger
}

func (cmd MigrateCommand) Command(cfg config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "apply or roll back the Postgres schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(_ *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrations")
			}

			var err error
			switch args[0] {
			case "up":
				err = db.MigrateUp(cfg.DatabaseURL)
			case "down":
				err = db.MigrateDown(cfg.DatabaseURL)
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}

			cmd.Logger.Info("migration applied", zap.String("direction", args[0]))
			return nil
		},
	}
}

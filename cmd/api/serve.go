package main

import (
	"context"

	"waitlist-service/internal/app"
	"waitlist-service/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type ServeCommand struct {
	Logger *zap.Logger
}

func (cmd ServeCommand) Command(ctx context.Context, cfg config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP and WebSocket server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return app.NewServer(cfg, cmd.Logger).Run(ctx)
		},
	}
}

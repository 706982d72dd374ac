// Package cmd implements clipctl, the operator CLI for a clipshelf
// deployment. It reads the same environment as the server.
package cmd

import (
	"context"
	"fmt"

	"github.com/clipshelf/server/internal/app"
	"github.com/clipshelf/server/internal/config"
	"github.com/clipshelf/server/internal/logger"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clipctl",
		Short:         "Operator tools for clipshelf",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(MigrateCmd())
	root.AddCommand(ReapCmd())
	root.AddCommand(UserCmd())
	return root
}

// withApp loads config, builds the app (which also migrates the schema)
// and closes it after fn returns.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN, cfg.AppEnv)
	defer logger.Flush()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() { _ = a.Close() }()

	return fn(a)
}

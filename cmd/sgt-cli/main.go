package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/pkg/config"
	"github.com/estudio-sgt/sgt-api/pkg/logger"
)

// Version is injected at build time via ldflags.
var Version = "dev"

type cliContextKey struct{}

// cliContext carries the loaded configuration and logger through subcommands.
type cliContext struct {
	Config *config.Config
	Logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var migrationsPath string

	root := &cobra.Command{
		Use:           "sgt-cli",
		Short:         "Operational commands for the SGT API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if migrationsPath != "" {
				cfg.Migrations.Path = migrationsPath
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, &cliContext{Config: cfg, Logger: logr}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if cc, ok := fromCommand(cmd); ok {
				_ = cc.Logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&migrationsPath, "migrations", "", "migration source URL (overrides MIGRATIONS_PATH)")

	root.AddCommand(newMigrateCommand())
	root.AddCommand(newSweepCommand())
	return root
}

func fromCommand(cmd *cobra.Command) (*cliContext, bool) {
	if cmd.Context() == nil {
		return nil, false
	}
	cc, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
	return cc, ok
}

func mustContext(cmd *cobra.Command) (*cliContext, error) {
	cc, ok := fromCommand(cmd)
	if !ok {
		return nil, fmt.Errorf("cli context not initialised")
	}
	return cc, nil
}

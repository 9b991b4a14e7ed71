package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/coopledger/internal/app"
)

// env carries what every subcommand needs once the root command has run.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
	// connect opens the ledger; replaced in tests.
	connect func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Ledger, error)
}

// NewRootCommand assembles the coopledger command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{connect: app.Connect})
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "coopledger",
		Short:         "Tamper-evident double-entry ledger for cooperatives",
		Long:          "A multi-tenant double-entry ledger with hash-chained journal entries, accounting periods and financial statements, backed by PostgreSQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			if format, _ := cmd.Flags().GetString("log-format"); format != "" {
				cfg.LogFormat = format
			}
			e.cfg = cfg
			e.logger = app.NewLogger(cfg)
			return nil
		},
	}
	root.PersistentFlags().String("log-format", "", "Override LOG_FORMAT (json or pretty)")

	root.AddCommand(
		newServeCommand(e),
		newWorkerCommand(e),
		newMigrateCommand(e),
		newSeedCommand(e),
		newVerifyCommand(e),
		newSnapshotCommand(e),
		newReportCommand(e),
	)
	return root
}

func (e *env) open(ctx context.Context) (*app.Ledger, error) {
	if e.cfg == nil {
		return nil, errors.New("cli: configuration not loaded")
	}
	return e.connect(ctx, e.cfg, e.logger)
}

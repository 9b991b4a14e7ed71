package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/coopledger/jobs"
)

func newServeCommand(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr != "" {
				e.cfg.AppAddr = addr
			}
			logger := e.logger

			ledger, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer ledger.Close(logger)

			var jobHandler *jobs.Handler
			if ledger.Redis != nil {
				inspector := asynq.NewInspector(e.cfg.RedisOptions().AsynqOpt())
				defer func() {
					if err := inspector.Close(); err != nil {
						logger.Warn("inspector close", slog.Any("error", err))
					}
				}()
				jobHandler = jobs.NewHandler(inspector, logger)
			}

			server := &http.Server{
				Addr:         e.cfg.AppAddr,
				Handler:      ledger.Router(e.cfg, logger, jobHandler),
				ReadTimeout:  e.cfg.AppReadTimeout,
				WriteTimeout: e.cfg.AppWriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting http server", slog.String("addr", e.cfg.AppAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown", slog.Any("error", err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides APP_ADDR)")
	return cmd
}

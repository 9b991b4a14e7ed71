package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	jobmetrics "github.com/odyssey-erp/coopledger/internal/jobs"
	"github.com/odyssey-erp/coopledger/jobs"
)

func newWorkerCommand(e *env) *cobra.Command {
	var (
		concurrency int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background job worker and its schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := e.logger

			ledger, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer ledger.Close(logger)
			if ledger.Redis == nil {
				return errors.New("worker: redis is required for the job queue")
			}

			metrics := jobmetrics.NewMetrics(ledger.Metrics.Registerer())
			verifyJob := jobs.NewChainVerifyJob(ledger.Journal, logger, metrics)
			snapshotJob := jobs.NewPeriodSnapshotJob(ledger.Reports, logger, metrics)

			verifyTask, err := jobs.NewChainVerifyTask(0)
			if err != nil {
				return fmt.Errorf("build chain verify task: %w", err)
			}
			sweepTask, err := jobs.NewPeriodSnapshotTask(0, 0)
			if err != nil {
				return fmt.Errorf("build snapshot sweep task: %w", err)
			}

			worker := jobs.NewWorker(e.cfg.RedisOptions().AsynqOpt(), logger, concurrency)
			worker.Handle(jobs.TaskChainVerify, verifyJob.Handle)
			worker.Handle(jobs.TaskPeriodSnapshot, snapshotJob.Handle)
			if err := worker.Schedule(e.cfg.ChainVerifyCron, verifyTask, asynq.MaxRetry(3)); err != nil {
				return err
			}
			if err := worker.Schedule(e.cfg.SnapshotSweepCron, sweepTask, asynq.MaxRetry(3)); err != nil {
				return err
			}

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: ledger.Metrics.Handler(), ReadTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server", slog.Any("error", err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			logger.Info("worker started",
				slog.String("chain_verify_cron", e.cfg.ChainVerifyCron),
				slog.String("snapshot_sweep_cron", e.cfg.SnapshotSweepCron))
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", slog.Any("error", err))
				return err
			}
			logger.Info("worker shutdown complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Number of concurrent job handlers")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address serving worker metrics; empty disables")
	return cmd
}

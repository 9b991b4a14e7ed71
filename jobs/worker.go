package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Worker processes ledger tasks and, once schedules are added, enqueues the
// periodic ones itself.
type Worker struct {
	redis     asynq.RedisClientOpt
	logger    *slog.Logger
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
}

// NewWorker prepares a worker on the default queue. Non-positive concurrency
// falls back to two handlers.
func NewWorker(redis asynq.RedisClientOpt, logger *slog.Logger, concurrency int) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	w := &Worker{redis: redis, logger: logger, mux: asynq.NewServeMux()}
	w.server = asynq.NewServer(redis, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		Logger:          queueLogger{logger},
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler:    asynq.ErrorHandlerFunc(w.taskFailed),
	})
	return w
}

// Handle routes a task type to its handler.
func (w *Worker) Handle(taskType string, handler asynq.HandlerFunc) {
	w.mux.HandleFunc(taskType, handler)
}

// Schedule enqueues task on the cron expression, evaluated in UTC. An empty
// expression leaves the task unscheduled.
func (w *Worker) Schedule(cron string, task *asynq.Task, opts ...asynq.Option) error {
	if cron == "" {
		return nil
	}
	if w.scheduler == nil {
		w.scheduler = asynq.NewScheduler(w.redis, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   queueLogger{w.logger},
		})
	}
	if _, err := w.scheduler.Register(cron, task, opts...); err != nil {
		return fmt.Errorf("jobs: schedule %s at %q: %w", task.Type(), cron, err)
	}
	return nil
}

// Run processes tasks until ctx is done, then drains in-flight handlers.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
	}
	<-ctx.Done()
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

func (w *Worker) taskFailed(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	limit, _ := asynq.GetMaxRetry(ctx)
	w.logger.Warn("task failed",
		slog.String("task", task.Type()),
		slog.Int("retry", retried),
		slog.Int("max_retry", limit),
		slog.Any("error", err))
}

// queueLogger sends asynq's internal logs through slog.
type queueLogger struct{ l *slog.Logger }

func (q queueLogger) Debug(args ...any) { q.l.Debug(fmt.Sprint(args...)) }
func (q queueLogger) Info(args ...any)  { q.l.Info(fmt.Sprint(args...)) }
func (q queueLogger) Warn(args ...any)  { q.l.Warn(fmt.Sprint(args...)) }
func (q queueLogger) Error(args ...any) { q.l.Error(fmt.Sprint(args...)) }
func (q queueLogger) Fatal(args ...any) { q.l.Error(fmt.Sprint(args...)) }

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/coopledger/internal/jobs"
	"github.com/odyssey-erp/coopledger/internal/ledger/reports"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// Snapshotter writes closed-period balance snapshots.
type Snapshotter interface {
	SnapshotPeriod(ctx context.Context, tenantID, periodID int64) (reports.Snapshot, error)
	SnapshotMissing(ctx context.Context) (int, error)
}

// PeriodSnapshotJob backfills snapshots that the close hook could not write.
type PeriodSnapshotJob struct {
	Snapshots Snapshotter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

func NewPeriodSnapshotJob(snapshots Snapshotter, logger *slog.Logger, metrics *jobmetrics.Metrics) *PeriodSnapshotJob {
	return &PeriodSnapshotJob{Snapshots: snapshots, Logger: logger, Metrics: metrics}
}

// Handle executes the snapshot task.
func (j *PeriodSnapshotJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Snapshots == nil {
		return errors.New("period snapshot: dependencies not configured")
	}
	var payload PeriodSnapshotPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	run := j.metrics().Track(TaskPeriodSnapshot)
	return run.End(j.run(ctx, payload))
}

func (j *PeriodSnapshotJob) run(ctx context.Context, payload PeriodSnapshotPayload) error {
	if payload.PeriodID == 0 {
		written, err := j.Snapshots.SnapshotMissing(ctx)
		j.metrics().AddSnapshots(written)
		if err != nil {
			j.log().Error("snapshot sweep", slog.Int("written", written), slog.Any("error", err))
			return err
		}
		j.log().Info("snapshot sweep finished", slog.Int("written", written))
		return nil
	}
	if payload.TenantID == 0 {
		return asynq.SkipRetry
	}
	_, err := j.Snapshots.SnapshotPeriod(ctx, payload.TenantID, payload.PeriodID)
	if err != nil {
		j.log().Error("snapshot period",
			slog.Int64("tenant_id", payload.TenantID),
			slog.Int64("period_id", payload.PeriodID),
			slog.Any("error", err))
		// open or unknown periods will not change on retry
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}
	j.metrics().AddSnapshots(1)
	return nil
}

func (j *PeriodSnapshotJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PeriodSnapshotJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPeriodSnapshot))
	}
	return slog.Default().With(slog.String("job", TaskPeriodSnapshot))
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/coopledger/internal/jobs"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// ChainVerifier is the subset of the ledger engine the job needs.
type ChainVerifier interface {
	ListTenants(ctx context.Context) ([]int64, error)
	VerifyChain(ctx context.Context, tenantID int64) (journal.VerifyReport, error)
}

// ChainVerifyJob verifies hash chains on a schedule.
type ChainVerifyJob struct {
	Verifier ChainVerifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// ChainVerifyResult summarises one run.
type ChainVerifyResult struct {
	Verified int
	Entries  int
	Violated []int64
}

func NewChainVerifyJob(verifier ChainVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *ChainVerifyJob {
	return &ChainVerifyJob{Verifier: verifier, Logger: logger, Metrics: metrics}
}

// Handle executes the verification task. Violations fail the task without
// retry since walking the same rows again cannot repair them.
func (j *ChainVerifyJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Verifier == nil {
		return errors.New("chain verify: dependencies not configured")
	}
	var payload ChainVerifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	run := j.metrics().Track(TaskChainVerify)
	result, err := j.Run(ctx, payload.TenantID)
	if err == nil && len(result.Violated) > 0 {
		err = fmt.Errorf("chain verify: %d tenant(s) violated: %v: %w", len(result.Violated), result.Violated, asynq.SkipRetry)
	}
	return run.End(err)
}

// Run verifies one tenant, or every tenant when tenantID is zero. Storage
// errors abort the run; integrity violations are collected.
func (j *ChainVerifyJob) Run(ctx context.Context, tenantID int64) (ChainVerifyResult, error) {
	var result ChainVerifyResult
	tenants := []int64{tenantID}
	if tenantID == 0 {
		var err error
		if tenants, err = j.Verifier.ListTenants(ctx); err != nil {
			j.log().Error("list tenants", slog.Any("error", err))
			return result, err
		}
	}
	start := time.Now()
	for _, id := range tenants {
		report, err := j.Verifier.VerifyChain(ctx, id)
		var integrity *shared.IntegrityError
		switch {
		case errors.As(err, &integrity):
			result.Violated = append(result.Violated, id)
		case err != nil:
			j.log().Error("verify chain", slog.Int64("tenant_id", id), slog.Any("error", err))
			return result, err
		default:
			result.Verified++
			result.Entries += report.Entries
		}
	}
	j.log().Info("verified ledger chains",
		slog.Int("tenants", len(tenants)),
		slog.Int("clean", result.Verified),
		slog.Int("entries", result.Entries),
		slog.Int("violated", len(result.Violated)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (j *ChainVerifyJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ChainVerifyJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskChainVerify))
	}
	return slog.Default().With(slog.String("job", TaskChainVerify))
}

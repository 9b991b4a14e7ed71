package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/coopledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskChainVerify walks tenant hash chains and reports violations.
	TaskChainVerify = "ledger:chain_verify"
	// TaskPeriodSnapshot writes closing balances for closed periods.
	TaskPeriodSnapshot = "ledger:period_snapshot"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ChainVerifyPayload selects the tenant to verify; zero means every tenant with entries.
type ChainVerifyPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// PeriodSnapshotPayload selects one closed period; a zero PeriodID sweeps
// every closed period still missing its snapshot.
type PeriodSnapshotPayload struct {
	TenantID int64 `json:"tenant_id"`
	PeriodID int64 `json:"period_id"`
}

// NewChainVerifyTask creates a chain verification task.
func NewChainVerifyTask(tenantID int64) (*asynq.Task, error) {
	body, err := json.Marshal(ChainVerifyPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChainVerify, body, asynq.Queue(QueueDefault)), nil
}

// NewPeriodSnapshotTask creates a snapshot task for one period or, with zero ids, a sweep.
func NewPeriodSnapshotTask(tenantID, periodID int64) (*asynq.Task, error) {
	body, err := json.Marshal(PeriodSnapshotPayload{TenantID: tenantID, PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPeriodSnapshot, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

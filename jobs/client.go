package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client enqueues ledger tasks on demand.
type Client struct {
	client *asynq.Client
}

func NewClient(redis asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redis)}
}

// EnqueueChainVerify queues verification of one tenant, or all when tenantID is zero.
func (c *Client) EnqueueChainVerify(ctx context.Context, tenantID int64) (*asynq.TaskInfo, error) {
	task, err := NewChainVerifyTask(tenantID)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueuePeriodSnapshot queues a snapshot of one closed period.
func (c *Client) EnqueuePeriodSnapshot(ctx context.Context, tenantID, periodID int64) (*asynq.TaskInfo, error) {
	task, err := NewPeriodSnapshotTask(tenantID, periodID)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

func (c *Client) Close() error {
	return c.client.Close()
}

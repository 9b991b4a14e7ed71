package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	args []any
	err  error
}

func (e *execRecorder) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), e.err
}

func TestAuditRecord(t *testing.T) {
	db := &execRecorder{}
	logger := NewAuditLogger(db)
	at := time.Date(2024, 3, 31, 17, 0, 0, 0, time.UTC)

	err := logger.Record(context.Background(), AuditLog{
		TenantID: 3, ActorID: 9, Action: "period.close", Entity: "period", EntityID: "12",
		Meta: map[string]any{"name": "2024-03"}, At: at,
	})
	require.NoError(t, err)
	require.Len(t, db.args, 7)
	assert.Equal(t, int64(3), db.args[0])
	assert.JSONEq(t, `{"name":"2024-03"}`, string(db.args[5].([]byte)))
	assert.Equal(t, &at, db.args[6])

	require.NoError(t, logger.Record(context.Background(), AuditLog{TenantID: 3, Action: "account.create", Entity: "account", EntityID: "1100"}))
	assert.Nil(t, db.args[5])
	assert.Nil(t, db.args[6])
}

func TestAuditRecordRejectsIncomplete(t *testing.T) {
	db := &execRecorder{}
	logger := NewAuditLogger(db)

	err := logger.Record(context.Background(), AuditLog{Action: "x", Entity: "y", EntityID: "1"})
	assert.ErrorIs(t, err, ErrAuditIncomplete)
	assert.ErrorContains(t, err, "tenant")
	assert.ErrorIs(t, AuditLog{TenantID: 1, Action: "x"}.Validate(), ErrAuditIncomplete)
	assert.Nil(t, db.args)

	db.err = errors.New("relation does not exist")
	err = logger.Record(context.Background(), AuditLog{TenantID: 1, Action: "x", Entity: "y", EntityID: "1"})
	assert.ErrorContains(t, err, "relation does not exist")

	var none *AuditLogger
	assert.Error(t, none.Record(context.Background(), AuditLog{}))
}

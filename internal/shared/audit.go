package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAuditIncomplete marks an audit record missing a required field.
var ErrAuditIncomplete = errors.New("audit: incomplete record")

// AuditLog is one row of ledger_audit_logs. A zero At lets the database stamp it.
type AuditLog struct {
	TenantID int64
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Validate reports which required field is missing.
func (log AuditLog) Validate() error {
	switch {
	case log.TenantID == 0:
		return fmt.Errorf("%w: tenant", ErrAuditIncomplete)
	case log.Action == "":
		return fmt.Errorf("%w: action", ErrAuditIncomplete)
	case log.Entity == "", log.EntityID == "":
		return fmt.Errorf("%w: entity", ErrAuditIncomplete)
	}
	return nil
}

// execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger appends records to ledger_audit_logs.
type AuditLogger struct {
	db execer
}

func NewAuditLogger(db execer) *AuditLogger {
	return &AuditLogger{db: db}
}

const insertAudit = `INSERT INTO ledger_audit_logs
	(tenant_id, actor_id, action, entity, entity_id, meta, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`

// Record validates and stores log.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit: logger has no database")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	var meta []byte
	if len(log.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(log.Meta); err != nil {
			return fmt.Errorf("audit: encode meta: %w", err)
		}
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	if _, err := l.db.Exec(ctx, insertAudit, log.TenantID, log.ActorID, log.Action, log.Entity, log.EntityID, meta, at); err != nil {
		return fmt.Errorf("audit: insert %s %s/%s: %w", log.Action, log.Entity, log.EntityID, err)
	}
	return nil
}

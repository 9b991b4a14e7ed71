package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/db"
)

// Snapshot holds the closing balance of every account at the end of a closed period.
type Snapshot struct {
	TenantID int64
	PeriodID int64
	EndDate  time.Time
	TakenAt  time.Time
	Balances map[int64]decimal.Decimal
}

// PeriodKey identifies a closed period that still lacks a snapshot.
type PeriodKey struct {
	TenantID int64 `json:"tenant_id"`
	PeriodID int64 `json:"period_id"`
}

// SnapshotStore persists period snapshots. Snapshots are written once.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context, tenantID int64, asOf time.Time) (Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	MissingSnapshots(ctx context.Context) ([]PeriodKey, error)
}

type pgSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore returns a PostgreSQL backed snapshot store.
func NewSnapshotStore(pool *pgxpool.Pool) SnapshotStore {
	return &pgSnapshotStore{pool: pool}
}

func (s *pgSnapshotStore) LatestSnapshot(ctx context.Context, tenantID int64, asOf time.Time) (Snapshot, bool, error) {
	snap := Snapshot{TenantID: tenantID}
	err := s.pool.QueryRow(ctx, `SELECT period_id, end_date, taken_at FROM period_snapshots
WHERE tenant_id=$1 AND end_date <= $2 ORDER BY end_date DESC LIMIT 1`, tenantID, shared.DateOf(asOf)).
		Scan(&snap.PeriodID, &snap.EndDate, &snap.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, shared.Storage("reports: latest snapshot", err)
	}
	snap.EndDate = shared.DateOf(snap.EndDate)

	rows, err := s.pool.Query(ctx, `SELECT account_id, balance::text FROM account_period_balances
WHERE tenant_id=$1 AND period_id=$2`, tenantID, snap.PeriodID)
	if err != nil {
		return Snapshot{}, false, shared.Storage("reports: snapshot balances", err)
	}
	defer rows.Close()
	snap.Balances = make(map[int64]decimal.Decimal)
	for rows.Next() {
		var (
			accountID int64
			raw       string
		)
		if err := rows.Scan(&accountID, &raw); err != nil {
			return Snapshot{}, false, shared.Storage("reports: scan snapshot", err)
		}
		bal, err := decimal.NewFromString(raw)
		if err != nil {
			return Snapshot{}, false, shared.Storage("reports: parse snapshot", err)
		}
		snap.Balances[accountID] = bal
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, shared.Storage("reports: snapshot balances", err)
	}
	return snap, true, nil
}

func (s *pgSnapshotStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	err := db.WithReadCommittedTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO period_snapshots (tenant_id, period_id, end_date, taken_at)
VALUES ($1, $2, $3, $4) ON CONFLICT (period_id) DO NOTHING`,
			snap.TenantID, snap.PeriodID, shared.DateOf(snap.EndDate), snap.TakenAt.UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for accountID, bal := range snap.Balances {
			batch.Queue(`INSERT INTO account_period_balances (tenant_id, period_id, account_id, balance)
VALUES ($1, $2, $3, $4::numeric)`, snap.TenantID, snap.PeriodID, accountID, bal.StringFixed(2))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return shared.Storage("reports: save snapshot", err)
	}
	return nil
}

func (s *pgSnapshotStore) MissingSnapshots(ctx context.Context) ([]PeriodKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.tenant_id, p.id FROM accounting_periods p
LEFT JOIN period_snapshots s ON s.period_id = p.id
WHERE p.is_closed AND s.period_id IS NULL
ORDER BY p.tenant_id, p.end_date`)
	if err != nil {
		return nil, shared.Storage("reports: missing snapshots", err)
	}
	defer rows.Close()
	var out []PeriodKey
	for rows.Next() {
		var key PeriodKey
		if err := rows.Scan(&key.TenantID, &key.PeriodID); err != nil {
			return nil, shared.Storage("reports: scan missing snapshot", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("reports: missing snapshots", err)
	}
	return out, nil
}

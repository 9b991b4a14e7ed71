package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/db"
)

type Repository interface {
	ListPeriods(ctx context.Context, tenantID int64) ([]Period, error)
	GetPeriod(ctx context.Context, tenantID, id int64) (Period, error)
	FindOpenPeriodByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// LockPeriods serialises period creation and closing for a tenant.
	LockPeriods(ctx context.Context, tenantID int64) error
	GetPeriodForUpdate(ctx context.Context, tenantID, id int64) (Period, error)
	FindOverlapping(ctx context.Context, tenantID int64, start, end time.Time) (Period, bool, error)
	HasOpenPeriodBefore(ctx context.Context, tenantID int64, start time.Time) (bool, error)
	// LatestClosedAfter returns the last closed period starting after end.
	LatestClosedAfter(ctx context.Context, tenantID int64, end time.Time) (Period, bool, error)
	InsertPeriod(ctx context.Context, p Period) (Period, error)
	MarkClosed(ctx context.Context, tenantID, id, actor int64, at time.Time) (Period, error)
}

const periodColumns = `id, tenant_id, name, start_date, end_date, is_closed, closed_at, closed_by, created_at`

// Queries runs period statements against a pool or an open transaction.
type Queries struct {
	db db.DBTX
}

func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt)
	if err != nil {
		return Period{}, err
	}
	p.StartDate = shared.DateOf(p.StartDate)
	p.EndDate = shared.DateOf(p.EndDate)
	return p, nil
}

func (q *Queries) ListPeriods(ctx context.Context, tenantID int64) ([]Period, error) {
	rows, err := q.db.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE tenant_id=$1 ORDER BY start_date`, tenantID)
	if err != nil {
		return nil, shared.Storage("periods: list", err)
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, shared.Storage("periods: scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("periods: list", err)
	}
	return out, nil
}

func (q *Queries) GetPeriod(ctx context.Context, tenantID, id int64) (Period, error) {
	return q.getPeriod(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE tenant_id=$1 AND id=$2`, tenantID, id)
}

func (q *Queries) GetPeriodForUpdate(ctx context.Context, tenantID, id int64) (Period, error) {
	return q.getPeriod(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id)
}

func (q *Queries) getPeriod(ctx context.Context, sql string, tenantID, id int64) (Period, error) {
	p, err := scanPeriod(q.db.QueryRow(ctx, sql, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: id %d", shared.ErrPeriodNotFound, id)
		}
		return Period{}, shared.Storage("periods: get", err)
	}
	return p, nil
}

// FindOpenPeriodByDate returns the open period covering the supplied date.
func (q *Queries) FindOpenPeriodByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	return q.findOpen(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND is_closed=false AND $2::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, tenantID, date)
}

// FindOpenPeriodForShare is FindOpenPeriodByDate holding a share lock until commit, so the
// period cannot close underneath a posting.
func (q *Queries) FindOpenPeriodForShare(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	return q.findOpen(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND is_closed=false AND $2::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR SHARE`, tenantID, date)
}

func (q *Queries) findOpen(ctx context.Context, sql string, tenantID int64, date time.Time) (Period, error) {
	p, err := scanPeriod(q.db.QueryRow(ctx, sql, tenantID, shared.DateOf(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: no open period on %s", shared.ErrPeriodNotFound, date.Format(time.DateOnly))
		}
		return Period{}, shared.Storage("periods: find open", err)
	}
	return p, nil
}

func (q *Queries) LockPeriods(ctx context.Context, tenantID int64) error {
	if _, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('ledger.periods:' || $1::text, 0))`, tenantID); err != nil {
		return shared.Storage("periods: lock", err)
	}
	return nil
}

func (q *Queries) FindOverlapping(ctx context.Context, tenantID int64, start, end time.Time) (Period, bool, error) {
	p, err := scanPeriod(q.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND start_date <= $3::date AND end_date >= $2::date ORDER BY start_date LIMIT 1`, tenantID, start, end))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, false, nil
		}
		return Period{}, false, shared.Storage("periods: overlap", err)
	}
	return p, true, nil
}

func (q *Queries) HasOpenPeriodBefore(ctx context.Context, tenantID int64, start time.Time) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounting_periods WHERE tenant_id=$1 AND is_closed=false AND end_date < $2::date)`, tenantID, start).Scan(&exists)
	if err != nil {
		return false, shared.Storage("periods: open before", err)
	}
	return exists, nil
}

func (q *Queries) LatestClosedAfter(ctx context.Context, tenantID int64, end time.Time) (Period, bool, error) {
	p, err := scanPeriod(q.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE tenant_id=$1 AND is_closed=true AND start_date > $2::date ORDER BY end_date DESC LIMIT 1`, tenantID, end))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, false, nil
		}
		return Period{}, false, shared.Storage("periods: closed after", err)
	}
	return p, true, nil
}

func (q *Queries) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	inserted, err := scanPeriod(q.db.QueryRow(ctx, `INSERT INTO accounting_periods (tenant_id, name, start_date, end_date)
VALUES ($1,$2,$3::date,$4::date) RETURNING `+periodColumns, p.TenantID, p.Name, p.StartDate, p.EndDate))
	if err != nil {
		return Period{}, shared.Storage("periods: insert", err)
	}
	return inserted, nil
}

func (q *Queries) MarkClosed(ctx context.Context, tenantID, id, actor int64, at time.Time) (Period, error) {
	var closedBy *int64
	if actor != 0 {
		closedBy = &actor
	}
	p, err := scanPeriod(q.db.QueryRow(ctx, `UPDATE accounting_periods SET is_closed=true, closed_at=$3, closed_by=$4
WHERE tenant_id=$1 AND id=$2 RETURNING `+periodColumns, tenantID, id, at, closedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: id %d", shared.ErrPeriodNotFound, id)
		}
		return Period{}, shared.Storage("periods: close", err)
	}
	return p, nil
}

type repository struct {
	pool *pgxpool.Pool
	*Queries
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, Queries: NewQueries(pool)}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithReadCommittedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewQueries(tx))
	})
	if errors.Is(err, db.ErrTx) {
		return shared.Storage("periods: tx", err)
	}
	return err
}

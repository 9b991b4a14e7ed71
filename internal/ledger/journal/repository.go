package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/db"
)

// Repository encapsulates DB operations for ledger entries.
type Repository interface {
	GetEntry(ctx context.Context, tenantID, id int64) (Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	// WalkChain streams a tenant's entries in chain order.
	WalkChain(ctx context.Context, tenantID int64, fn func(Entry) error) error
	ListTenants(ctx context.Context) ([]int64, error)
	// WithTx runs fn in a posting transaction. Commit is not cancelled by ctx.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	accounts.ResolveStore

	// LockChain blocks until the caller is the only writer of the tenant chain.
	LockChain(ctx context.Context, tenantID int64) error
	ChainTail(ctx context.Context, tenantID int64) (ChainTail, bool, error)
	FindByReference(ctx context.Context, tenantID int64, reference string) (Entry, bool, error)
	GetEntry(ctx context.Context, tenantID, id int64) (Entry, error)
	FindOpenPeriodForShare(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
}

const entryColumns = `id, tenant_id, period_id, transaction_id, tx_type, tx_reference, account_debit, account_credit,
amount::text, description, metadata, unit, entry_date, book_date, status, hash_previous, hash_current, created_by, created_at`

type entryQueries struct {
	db db.DBTX
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e         Entry
		amount    string
		metadata  []byte
		createdBy *int64
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.PeriodID, &e.TransactionID, &e.TxType, &e.TxReference, &e.DebitAccountID, &e.CreditAccountID,
		&amount, &e.Description, &metadata, &e.Unit, &e.EntryDate, &e.BookDate, &e.Status, &e.HashPrevious, &e.HashCurrent, &createdBy, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return Entry{}, fmt.Errorf("journal: parse amount of entry %d: %w", e.ID, err)
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return Entry{}, fmt.Errorf("journal: decode metadata of entry %d: %w", e.ID, err)
		}
	}
	e.EntryDate = shared.DateOf(e.EntryDate)
	e.BookDate = shared.DateOf(e.BookDate)
	return e, nil
}

func (q entryQueries) GetEntry(ctx context.Context, tenantID, id int64) (Entry, error) {
	e, err := scanEntry(q.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: id %d", shared.ErrEntryNotFound, id)
		}
		return Entry{}, shared.Storage("journal: get entry", err)
	}
	return e, nil
}

func (q entryQueries) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	var (
		where = []string{"tenant_id=$1"}
		args  = []any{filter.TenantID}
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.StartDate.IsZero() {
		add("entry_date >= $%d::date", shared.DateOf(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		add("entry_date <= $%d::date", shared.DateOf(filter.EndDate))
	}
	if !filter.AfterDate.IsZero() {
		add("entry_date > $%d::date", shared.DateOf(filter.AfterDate))
	}
	if filter.Unit != "" {
		add("unit = $%d", filter.Unit)
	}
	if filter.AccountID != 0 {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("(account_debit = $%d OR account_credit = $%d)", len(args), len(args)))
	}
	if filter.TxType != "" {
		add("tx_type = $%d", filter.TxType)
	}
	sql := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, max(filter.Offset, 0))
	}
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.Storage("journal: list entries", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, shared.Storage("journal: scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("journal: list entries", err)
	}
	return out, nil
}

type txRepository struct {
	entryQueries
	accounts *accounts.Queries
	periods  *periods.Queries
	tx       pgx.Tx
}

func (r *txRepository) GetAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error) {
	return r.accounts.GetAccount(ctx, tenantID, id)
}

func (r *txRepository) GetAccountByCode(ctx context.Context, tenantID int64, code string) (accounts.Account, error) {
	return r.accounts.GetAccountByCode(ctx, tenantID, code)
}

func (r *txRepository) InsertAccountIfAbsent(ctx context.Context, account accounts.Account) (accounts.Account, bool, error) {
	return r.accounts.InsertAccountIfAbsent(ctx, account)
}

func (r *txRepository) FindOpenPeriodForShare(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	return r.periods.FindOpenPeriodForShare(ctx, tenantID, date)
}

func (r *txRepository) LockChain(ctx context.Context, tenantID int64) error {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('ledger.chain:' || $1::text, 0))`, tenantID); err != nil {
		return shared.Storage("journal: lock chain", err)
	}
	return nil
}

func (r *txRepository) ChainTail(ctx context.Context, tenantID int64) (ChainTail, bool, error) {
	var tail ChainTail
	err := r.tx.QueryRow(ctx, `SELECT id, hash_current, created_at FROM ledger_entries WHERE tenant_id=$1 ORDER BY id DESC LIMIT 1`, tenantID).
		Scan(&tail.EntryID, &tail.Hash, &tail.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChainTail{}, false, nil
		}
		return ChainTail{}, false, shared.Storage("journal: chain tail", err)
	}
	return tail, true, nil
}

func (r *txRepository) FindByReference(ctx context.Context, tenantID int64, reference string) (Entry, bool, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant_id=$1 AND tx_reference=$2`, tenantID, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, shared.Storage("journal: find by reference", err)
	}
	return e, true, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	var metadata []byte
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: metadata: %v", shared.ErrValidation, err)
		}
		metadata = raw
	}
	var createdBy *int64
	if e.CreatedBy != 0 {
		createdBy = &e.CreatedBy
	}
	inserted, err := scanEntry(r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(tenant_id, period_id, transaction_id, tx_type, tx_reference, account_debit, account_credit, amount, description, metadata, unit,
 entry_date, book_date, status, hash_previous, hash_current, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,$10,$11,$12::date,$13::date,$14,$15,$16,$17,$18)
RETURNING `+entryColumns,
		e.TenantID, e.PeriodID, e.TransactionID, e.TxType, e.TxReference, e.DebitAccountID, e.CreditAccountID, e.Amount.StringFixed(2),
		e.Description, metadata, e.Unit, e.EntryDate, e.BookDate, e.Status, e.HashPrevious, e.HashCurrent, createdBy, e.CreatedAt))
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "uq_ledger_entries_reference"):
			return Entry{}, fmt.Errorf("%w: %s", shared.ErrReferenceConflict, e.TxReference)
		case db.IsUniqueViolation(err, "uq_ledger_entries_link"):
			// Only reachable if the chain lock was bypassed.
			return Entry{}, shared.Storage("journal: chain fork rejected", err)
		}
		return Entry{}, shared.Storage("journal: insert entry", err)
	}
	return inserted, nil
}

type repository struct {
	pool          *pgxpool.Pool
	commitTimeout time.Duration
	entryQueries
}

// NewRepository returns the PostgreSQL backed journal repository. commitTimeout bounds the
// detached commit of a posting transaction.
func NewRepository(pool *pgxpool.Pool, commitTimeout time.Duration) Repository {
	if commitTimeout <= 0 {
		commitTimeout = 10 * time.Second
	}
	return &repository{pool: pool, commitTimeout: commitTimeout, entryQueries: entryQueries{db: pool}}
}

func (r *repository) WalkChain(ctx context.Context, tenantID int64, fn func(Entry) error) error {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return shared.Storage("journal: walk chain", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return shared.Storage("journal: scan entry", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return shared.Storage("journal: walk chain", err)
	}
	return nil
}

func (r *repository) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM ledger_entries ORDER BY tenant_id`)
	if err != nil {
		return nil, shared.Storage("journal: list tenants", err)
	}
	tenants, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, shared.Storage("journal: list tenants", err)
	}
	return tenants, nil
}

// WithTx runs the posting transaction at READ COMMITTED so the tail read after LockChain sees
// the previous writer's commit. Once fn succeeds the commit runs detached from ctx.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return shared.Storage("journal: begin tx", err)
	}
	wrapper := &txRepository{
		entryQueries: entryQueries{db: tx},
		accounts:     accounts.NewQueries(tx),
		periods:      periods.NewQueries(tx),
		tx:           tx,
	}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.commitTimeout)
	defer cancel()
	if err := tx.Commit(commitCtx); err != nil {
		return shared.Storage("journal: commit", err)
	}
	return nil
}

package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/db"
)

// ResolveStore is the storage surface needed to resolve a Ref, inside any transaction.
type ResolveStore interface {
	GetAccount(ctx context.Context, tenantID, id int64) (Account, error)
	GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error)
	// InsertAccountIfAbsent inserts the account unless the code exists; it returns the stored row
	// and whether this call created it.
	InsertAccountIfAbsent(ctx context.Context, account Account) (Account, bool, error)
}

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	ListAccounts(ctx context.Context, tenantID int64) ([]Account, error)
	GetAccount(ctx context.Context, tenantID, id int64) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	ResolveStore
	InsertAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, account Account) (Account, error)
	SetAccountParent(ctx context.Context, tenantID, id, parentID int64) error
}

const accountColumns = `id, tenant_id, code, name, description, type, normal_balance, parent_id, is_header, is_active, classification, initial_balance::text, created_at, updated_at`

// Queries runs account statements against a pool or an open transaction.
type Queries struct {
	db db.DBTX
}

// NewQueries binds the account statements to db.
func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var initial string
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Description, &a.Type, &a.NormalBalance, &a.ParentID,
		&a.IsHeader, &a.IsActive, &a.Classification, &initial, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.InitialBalance, err = decimal.NewFromString(initial)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: parse initial balance of %s: %w", a.Code, err)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := q.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, shared.Storage("accounts: list", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, shared.Storage("accounts: scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("accounts: list", err)
	}
	return out, nil
}

func (q *Queries) GetAccount(ctx context.Context, tenantID, id int64) (Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, id)
		}
		return Account{}, shared.Storage("accounts: get", err)
	}
	return a, nil
}

func (q *Queries) GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: code %s", shared.ErrAccountNotFound, code)
		}
		return Account{}, shared.Storage("accounts: get by code", err)
	}
	return a, nil
}

func (q *Queries) InsertAccount(ctx context.Context, a Account) (Account, error) {
	inserted, err := scanAccount(q.db.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, description, type, normal_balance, parent_id, is_header, is_active, classification, initial_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::numeric) RETURNING `+accountColumns,
		a.TenantID, a.Code, a.Name, a.Description, a.Type, a.NormalBalance, a.ParentID, a.IsHeader, a.IsActive, a.Classification, a.InitialBalance.String()))
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_tenant_code") {
			return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, a.Code)
		}
		return Account{}, shared.Storage("accounts: insert", err)
	}
	return inserted, nil
}

func (q *Queries) InsertAccountIfAbsent(ctx context.Context, a Account) (Account, bool, error) {
	inserted, err := scanAccount(q.db.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, description, type, normal_balance, parent_id, is_header, is_active, classification, initial_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::numeric)
ON CONFLICT (tenant_id, code) DO NOTHING RETURNING `+accountColumns,
		a.TenantID, a.Code, a.Name, a.Description, a.Type, a.NormalBalance, a.ParentID, a.IsHeader, a.IsActive, a.Classification, a.InitialBalance.String()))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, shared.Storage("accounts: insert if absent", err)
	}
	existing, err := q.GetAccountByCode(ctx, a.TenantID, a.Code)
	if err != nil {
		return Account{}, false, err
	}
	return existing, false, nil
}

func (q *Queries) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	updated, err := scanAccount(q.db.QueryRow(ctx, `UPDATE accounts SET name=$3, description=$4, is_active=$5, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 RETURNING `+accountColumns, a.TenantID, a.ID, a.Name, a.Description, a.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, a.ID)
		}
		return Account{}, shared.Storage("accounts: update", err)
	}
	return updated, nil
}

func (q *Queries) SetAccountParent(ctx context.Context, tenantID, id, parentID int64) error {
	cmd, err := q.db.Exec(ctx, `UPDATE accounts SET parent_id=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id, parentID)
	if err != nil {
		return shared.Storage("accounts: set parent", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, id)
	}
	return nil
}

type repository struct {
	pool *pgxpool.Pool
	*Queries
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, Queries: NewQueries(pool)}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithReadCommittedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewQueries(tx))
	})
	if errors.Is(err, db.ErrTx) {
		return shared.Storage("accounts: tx", err)
	}
	return err
}

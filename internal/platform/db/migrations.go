package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{version: 1, name: "chart of accounts", stmts: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id              BIGSERIAL PRIMARY KEY,
			tenant_id       BIGINT NOT NULL,
			code            TEXT NOT NULL,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			type            TEXT NOT NULL CHECK (type IN ('asset','liability','equity','income','expense')),
			normal_balance  TEXT NOT NULL CHECK (normal_balance IN ('DEBIT','CREDIT')),
			parent_id       BIGINT REFERENCES accounts(id),
			is_header       BOOLEAN NOT NULL DEFAULT false,
			is_active       BOOLEAN NOT NULL DEFAULT true,
			classification  TEXT NOT NULL,
			initial_balance NUMERIC(20,2) NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_accounts_tenant_code UNIQUE (tenant_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_tenant_type ON accounts (tenant_id, type)`,
	}},
	{version: 2, name: "accounting periods", stmts: []string{
		`CREATE TABLE IF NOT EXISTS accounting_periods (
			id         BIGSERIAL PRIMARY KEY,
			tenant_id  BIGINT NOT NULL,
			name       TEXT NOT NULL,
			start_date DATE NOT NULL,
			end_date   DATE NOT NULL,
			is_closed  BOOLEAN NOT NULL DEFAULT false,
			closed_at  TIMESTAMPTZ,
			closed_by  BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (start_date <= end_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_periods_tenant_range ON accounting_periods (tenant_id, start_date, end_date)`,
		`CREATE OR REPLACE FUNCTION ledger_guard_period() RETURNS trigger AS $$
		BEGIN
			IF OLD.is_closed THEN
				RAISE EXCEPTION 'accounting period % is closed', OLD.id USING ERRCODE = 'check_violation';
			END IF;
			IF NEW.start_date <> OLD.start_date OR NEW.end_date <> OLD.end_date THEN
				RAISE EXCEPTION 'accounting period % range is fixed', OLD.id USING ERRCODE = 'check_violation';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_periods_guard ON accounting_periods`,
		`CREATE TRIGGER trg_periods_guard BEFORE UPDATE ON accounting_periods
			FOR EACH ROW EXECUTE FUNCTION ledger_guard_period()`,
	}},
	{version: 3, name: "ledger entries", stmts: []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id             BIGSERIAL PRIMARY KEY,
			tenant_id      BIGINT NOT NULL,
			period_id      BIGINT NOT NULL REFERENCES accounting_periods(id),
			transaction_id UUID NOT NULL,
			tx_type        TEXT NOT NULL,
			tx_reference   TEXT NOT NULL,
			account_debit  BIGINT NOT NULL REFERENCES accounts(id),
			account_credit BIGINT NOT NULL REFERENCES accounts(id),
			amount         NUMERIC(20,2) NOT NULL CHECK (amount > 0),
			description    TEXT NOT NULL DEFAULT '',
			metadata       JSONB,
			unit           TEXT NOT NULL DEFAULT '',
			entry_date     DATE NOT NULL,
			book_date      DATE NOT NULL,
			status         TEXT NOT NULL DEFAULT 'posted' CHECK (status IN ('posted','void')),
			hash_previous  CHAR(64) NOT NULL,
			hash_current   CHAR(64) NOT NULL,
			created_by     BIGINT,
			created_at     TIMESTAMPTZ NOT NULL,
			CHECK (account_debit <> account_credit),
			CONSTRAINT uq_ledger_entries_reference UNIQUE (tenant_id, tx_reference),
			CONSTRAINT uq_ledger_entries_link UNIQUE (tenant_id, hash_previous)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_tenant_date ON ledger_entries (tenant_id, entry_date)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_debit ON ledger_entries (tenant_id, account_debit)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_credit ON ledger_entries (tenant_id, account_credit)`,
		`CREATE OR REPLACE FUNCTION ledger_reject_mutation() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION '% is append-only', TG_TABLE_NAME USING ERRCODE = 'check_violation';
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_ledger_entries_immutable ON ledger_entries`,
		`CREATE TRIGGER trg_ledger_entries_immutable BEFORE UPDATE OR DELETE ON ledger_entries
			FOR EACH ROW EXECUTE FUNCTION ledger_reject_mutation()`,
	}},
	{version: 4, name: "period snapshots", stmts: []string{
		`CREATE TABLE IF NOT EXISTS period_snapshots (
			tenant_id BIGINT NOT NULL,
			period_id BIGINT NOT NULL REFERENCES accounting_periods(id),
			end_date  DATE NOT NULL,
			taken_at  TIMESTAMPTZ NOT NULL,
			CONSTRAINT uq_period_snapshots_period UNIQUE (period_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_period_snapshots_tenant_end ON period_snapshots (tenant_id, end_date DESC)`,
		`CREATE TABLE IF NOT EXISTS account_period_balances (
			tenant_id  BIGINT NOT NULL,
			period_id  BIGINT NOT NULL REFERENCES period_snapshots(period_id),
			account_id BIGINT NOT NULL REFERENCES accounts(id),
			balance    NUMERIC(20,2) NOT NULL,
			PRIMARY KEY (period_id, account_id)
		)`,
		`DROP TRIGGER IF EXISTS trg_account_period_balances_immutable ON account_period_balances`,
		`CREATE TRIGGER trg_account_period_balances_immutable BEFORE UPDATE OR DELETE ON account_period_balances
			FOR EACH ROW EXECUTE FUNCTION ledger_reject_mutation()`,
	}},
	{version: 5, name: "audit log", stmts: []string{
		`CREATE TABLE IF NOT EXISTS ledger_audit_logs (
			id          BIGSERIAL PRIMARY KEY,
			tenant_id   BIGINT NOT NULL,
			actor_id    BIGINT NOT NULL DEFAULT 0,
			action      TEXT NOT NULL,
			entity      TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			meta        JSONB,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_audit_logs_tenant ON ledger_audit_logs (tenant_id, occurred_at DESC)`,
	}},
}

// Migrate applies every pending schema version in order. Each version runs in
// its own transaction and is recorded in schema_version.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return 0, fmt.Errorf("platform/db: create schema_version: %w", err)
	}
	current, err := SchemaVersion(ctx, pool)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := WithTx(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_version (version, name) VALUES ($1, $2)`, m.version, m.name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("platform/db: migration v%d (%s): %w", m.version, m.name, err)
		}
		applied++
	}
	return applied, nil
}

// SchemaVersion reports the highest applied migration.
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var version int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("platform/db: read schema version: %w", err)
	}
	return version, nil
}

// LatestVersion is the schema version this binary expects.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrdered(t *testing.T) {
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, m.name)
		assert.NotEmpty(t, m.stmts, m.name)
	}
	assert.Equal(t, len(migrations), LatestVersion())
}

func TestEntriesAreAppendOnly(t *testing.T) {
	var ddl strings.Builder
	for _, m := range migrations {
		for _, stmt := range m.stmts {
			ddl.WriteString(stmt)
			ddl.WriteString("\n")
		}
	}
	schema := ddl.String()
	for _, want := range []string{
		"uq_accounts_tenant_code",
		"uq_ledger_entries_reference",
		"uq_ledger_entries_link",
		"BEFORE UPDATE OR DELETE ON ledger_entries",
		"BEFORE UPDATE OR DELETE ON account_period_balances",
		"BEFORE UPDATE ON accounting_periods",
	} {
		assert.Contains(t, schema, want)
	}
}

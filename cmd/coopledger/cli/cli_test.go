package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/app"
	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/ledgertest"
)

const tenant int64 = 5

func march(t *testing.T) *ledgertest.Fixture {
	t.Helper()
	f := ledgertest.NewFixture(t, nil)
	f.Seed(t, tenant)
	f.OpenPeriod(t, tenant, "2024-03", ledgertest.Date(2024, 3, 1), ledgertest.Date(2024, 3, 31))
	_, err := f.Journal.RecordTransaction(context.Background(), journal.RecordInput{
		TenantID:    tenant,
		TxType:      "CAPITAL",
		TxReference: "CAP-1",
		Debit:       accounts.ByCode("1100"),
		Credit:      accounts.ByCode("3100"),
		Amount:      decimal.RequireFromString("1234567.50"),
		EntryDate:   ledgertest.Date(2024, 3, 5),
	})
	require.NoError(t, err)
	return f
}

func run(t *testing.T, f *ledgertest.Fixture, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_FORMAT", "json")
	e := &env{connect: func(context.Context, *app.Config, *slog.Logger) (*app.Ledger, error) {
		return &app.Ledger{
			Accounts: f.Accounts,
			Periods:  f.Periods,
			Journal:  f.Journal,
			Reports:  f.Reports,
		}, nil
	}}
	root := newRootCommand(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReportBalanceSheet(t *testing.T) {
	f := march(t)
	out, err := run(t, f, "report", "--tenant", "5", "--kind", "balance-sheet", "--date", "2024-03-31", "--lang", "en")
	require.NoError(t, err)

	assert.Contains(t, out, "BALANCE SHEET")
	assert.Contains(t, out, "as of 2024-03-31")
	assert.Contains(t, out, "1100 Cash on Hand")
	assert.Contains(t, out, "1,234,567.50")
	assert.Contains(t, out, "[BALANCED]")
}

func TestReportTrialBalanceUsesLocale(t *testing.T) {
	f := march(t)
	out, err := run(t, f, "report", "--tenant", "5", "--kind", "trial-balance", "--date", "2024-03-31")
	require.NoError(t, err)

	assert.Contains(t, out, "TRIAL BALANCE")
	assert.Contains(t, out, "1.234.567,50")
	assert.Contains(t, out, "[BALANCED]")
}

func TestReportJSON(t *testing.T) {
	f := march(t)
	out, err := run(t, f, "report", "--tenant", "5", "--kind", "income-statement",
		"--start", "2024-03-01", "--end", "2024-03-31", "--json")
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "0", body["net_profit"])
}

func TestReportRejectsBadInput(t *testing.T) {
	f := march(t)
	_, err := run(t, f, "report", "--tenant", "5", "--kind", "ledger")
	require.ErrorContains(t, err, `unknown report kind "ledger"`)

	_, err = run(t, f, "report", "--tenant", "5", "--date", "31/03/2024")
	require.ErrorContains(t, err, "want YYYY-MM-DD")

	_, err = run(t, f, "report", "--kind", "balance-sheet")
	require.ErrorContains(t, err, `required flag(s) "tenant" not set`)
}

func TestSeedIsIdempotent(t *testing.T) {
	f := ledgertest.NewFixture(t, nil)
	out, err := run(t, f, "seed", "--tenant", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "tenant 9:")
	assert.NotContains(t, out, " 0 created")

	out, err = run(t, f, "seed", "--tenant", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "tenant 9: 0 created")
}

func TestVerifyCommand(t *testing.T) {
	f := march(t)
	out, err := run(t, f, "verify", "--tenant", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "verified 1 tenant(s), 1 entries")

	out, err = run(t, f, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "verified 1 tenant(s)")
}

func TestSnapshotNeedsTenantForPeriod(t *testing.T) {
	f := march(t)
	_, err := run(t, f, "snapshot", "--period", "3")
	require.ErrorContains(t, err, "--tenant is required")

	out, err := run(t, f, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 0 snapshot(s)")
}

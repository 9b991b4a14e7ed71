package reports_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/ledgertest"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/reports"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

const tenant int64 = 11

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type posting struct {
	ref, debit, credit, amount string
	day                        time.Time
}

func post(t *testing.T, f *ledgertest.Fixture, items ...posting) {
	t.Helper()
	for _, p := range items {
		_, err := f.Journal.RecordTransaction(context.Background(), journal.RecordInput{
			TenantID:    tenant,
			TxType:      "MANUAL",
			TxReference: p.ref,
			Debit:       accounts.ByCode(p.debit),
			Credit:      accounts.ByCode(p.credit),
			Amount:      d(p.amount),
			EntryDate:   p.day,
		})
		require.NoError(t, err, p.ref)
	}
}

// januaryBook posts a month of cooperative activity:
// capital 1,000,000; loan 300,000; equipment 200,000; sales 50,000; expense 10,000;
// savings 80,000; long-term borrowing 400,000.
func januaryBook(t *testing.T, cache *reports.Cache) (*ledgertest.Fixture, int64) {
	t.Helper()
	f := ledgertest.NewFixture(t, cache)
	f.Seed(t, tenant)
	jan := f.OpenPeriod(t, tenant, "2024-01", ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31))
	f.OpenPeriod(t, tenant, "2024-02", ledgertest.Date(2024, 2, 1), ledgertest.Date(2024, 2, 29))
	post(t, f,
		posting{"CAP-1", "1100", "3100", "1000000", ledgertest.Date(2024, 1, 5)},
		posting{"LOAN-1", "1200", "1100", "300000", ledgertest.Date(2024, 1, 10)},
		posting{"EQP-1", "1500", "1100", "200000", ledgertest.Date(2024, 1, 12)},
		posting{"SALE-1", "1100", "4200", "50000", ledgertest.Date(2024, 1, 20)},
		posting{"EXP-1", "5200", "1100", "10000", ledgertest.Date(2024, 1, 21)},
		posting{"SAV-1", "1100", "2100", "80000", ledgertest.Date(2024, 1, 22)},
		posting{"BRW-1", "1110", "2500", "400000", ledgertest.Date(2024, 1, 25)},
	)
	return f, jan.ID
}

func TestBalanceSheetFromLedger(t *testing.T) {
	f, _ := januaryBook(t, nil)
	bs, err := f.Reports.BalanceSheet(context.Background(), tenant, ledgertest.Date(2024, 1, 31), "")
	require.NoError(t, err)

	assert.True(t, bs.CurrentAssets.Total.Equal(d("1320000")), bs.CurrentAssets.Total.String())
	assert.True(t, bs.NonCurrentAssets.Total.Equal(d("200000")))
	assert.True(t, bs.TotalAssets.Equal(bs.CurrentAssets.Total.Add(bs.NonCurrentAssets.Total)))
	assert.True(t, bs.CurrentLiabilities.Total.Equal(d("80000")))
	assert.True(t, bs.LongTermLiabilities.Total.Equal(d("400000")))
	assert.True(t, bs.CurrentEarnings.Equal(d("40000")))
	assert.True(t, bs.TotalEquity.Equal(d("1040000")))
	assert.True(t, bs.Balanced)
}

func TestCashFlowReconciles(t *testing.T) {
	f, _ := januaryBook(t, nil)
	cf, err := f.Reports.CashFlow(context.Background(), tenant, ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31), "")
	require.NoError(t, err)

	assert.True(t, cf.NetProfit.Equal(d("40000")))
	assert.True(t, cf.OperatingCashFlow.Equal(d("-180000")), cf.OperatingCashFlow.String())
	assert.True(t, cf.InvestingCashFlow.Equal(d("-200000")))
	assert.True(t, cf.FinancingCashFlow.Equal(d("1400000")))
	assert.True(t, cf.BeginningCash.IsZero())
	assert.True(t, cf.ActualEndingCash.Equal(d("1020000")))
	assert.True(t, cf.ComputedEndingCash.Equal(cf.ActualEndingCash))
	assert.True(t, cf.Reconciled)
}

func TestEquityChanges(t *testing.T) {
	f, _ := januaryBook(t, nil)
	ec, err := f.Reports.EquityChanges(context.Background(), tenant, ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31), "")
	require.NoError(t, err)
	assert.True(t, ec.BeginningEquity.IsZero())
	assert.True(t, ec.PaidInCapital.Equal(d("1000000")))
	assert.True(t, ec.NetProfit.Equal(d("40000")))
	assert.True(t, ec.ComputedEndingEquity.Equal(d("1040000")))
	assert.True(t, ec.Difference.IsZero())
}

func TestIncomeStatementRange(t *testing.T) {
	f, _ := januaryBook(t, nil)
	ctx := context.Background()
	is, err := f.Reports.IncomeStatement(ctx, tenant, ledgertest.Date(2024, 1, 15), ledgertest.Date(2024, 1, 31), "")
	require.NoError(t, err)
	assert.True(t, is.TotalRevenue.Equal(d("50000")))
	assert.True(t, is.NetProfit.Equal(d("40000")))

	_, err = f.Reports.IncomeStatement(ctx, tenant, ledgertest.Date(2024, 2, 1), ledgertest.Date(2024, 1, 1), "")
	assert.ErrorIs(t, err, shared.ErrInvalidRange)
}

func TestAsOfUsesSnapshotAfterClose(t *testing.T) {
	f, janID := januaryBook(t, nil)
	ctx := context.Background()

	_, err := f.Periods.ClosePeriod(ctx, tenant, janID, 1)
	require.NoError(t, err)
	post(t, f, posting{"INT-1", "1100", "4100", "5000", ledgertest.Date(2024, 2, 3)})

	asOf := ledgertest.Date(2024, 2, 29)
	withSnapshot, err := f.Reports.GetReportDataAsOf(ctx, tenant, asOf, "")
	require.NoError(t, err)
	assert.Equal(t, janID, withSnapshot.SnapshotPeriodID)
	assert.Len(t, withSnapshot.Entries, 1, "only entries after the snapshot are loaded")

	fromGenesis := reports.NewService(f.Accounts, f.Journal, f.Periods, nil, nil, slog.New(slog.DiscardHandler))
	full, err := fromGenesis.GetReportDataAsOf(ctx, tenant, asOf, "")
	require.NoError(t, err)
	assert.Len(t, full.Entries, 8)

	snapBalances, fullBalances := withSnapshot.Balances(), full.Balances()
	for _, line := range fullBalances.Lines {
		assert.True(t, line.Closing.Equal(snapBalances.Balance(line.Account.ID)), line.Account.Code)
	}

	missing, err := f.Reports.SnapshotMissing(ctx)
	require.NoError(t, err)
	assert.Zero(t, missing)
}

func TestSnapshotNeverHidesBackdatedEntries(t *testing.T) {
	f := ledgertest.NewFixture(t, nil)
	ctx := context.Background()
	f.Seed(t, tenant)
	feb := f.OpenPeriod(t, tenant, "2024-02", ledgertest.Date(2024, 2, 1), ledgertest.Date(2024, 2, 29))
	post(t, f, posting{"FEB-1", "1100", "3100", "1000", ledgertest.Date(2024, 2, 10)})
	_, err := f.Periods.ClosePeriod(ctx, tenant, feb.ID, 1)
	require.NoError(t, err)

	_, err = f.Periods.CreatePeriod(ctx, periods.CreateInput{
		TenantID: tenant, Name: "2024-01", StartDate: ledgertest.Date(2024, 1, 1), EndDate: ledgertest.Date(2024, 1, 31),
	})
	require.ErrorIs(t, err, shared.ErrPeriodSequence)

	_, err = f.Journal.RecordTransaction(ctx, journal.RecordInput{
		TenantID: tenant, TxType: "MANUAL", TxReference: "JAN-1",
		Debit: accounts.ByCode("1100"), Credit: accounts.ByCode("3100"),
		Amount: d("500"), EntryDate: ledgertest.Date(2024, 1, 5),
	})
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	asOf := ledgertest.Date(2024, 3, 31)
	tb, err := f.Reports.TrialBalance(ctx, tenant, asOf, "")
	require.NoError(t, err)
	fromGenesis := reports.NewService(f.Accounts, f.Journal, f.Periods, nil, nil, slog.New(slog.DiscardHandler))
	full, err := fromGenesis.TrialBalance(ctx, tenant, asOf, "")
	require.NoError(t, err)

	assert.True(t, tb.TotalDebitBalance.Equal(full.TotalDebitBalance), "%s vs %s", tb.TotalDebitBalance, full.TotalDebitBalance)
	for _, line := range tb.Lines {
		if line.Code == "1100" {
			assert.True(t, line.DebitBalance.Equal(d("1000")), line.DebitBalance.String())
		}
	}
	assert.True(t, tb.Balanced)
}

func TestUnitFilterIgnoresOtherUnits(t *testing.T) {
	f, _ := januaryBook(t, nil)
	ctx := context.Background()
	_, err := f.Journal.RecordTransaction(ctx, journal.RecordInput{
		TenantID: tenant, TxType: "RETAIL_SALE", TxReference: "POS-1", Unit: "retail",
		Debit: accounts.ByCode("1100"), Credit: accounts.ByCode("4200"),
		Amount: d("1250"), EntryDate: ledgertest.Date(2024, 1, 28),
	})
	require.NoError(t, err)

	is, err := f.Reports.IncomeStatement(ctx, tenant, ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31), "retail")
	require.NoError(t, err)
	assert.True(t, is.TotalRevenue.Equal(d("1250")))
	assert.True(t, is.NetProfit.Equal(d("1250")))
}

func TestReportCacheInvalidatedOnPosting(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := reports.NewCache(client, time.Minute)

	f, _ := januaryBook(t, cache)
	ctx := context.Background()
	start, end := ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31)

	first, err := f.Reports.IncomeStatement(ctx, tenant, start, end, "")
	require.NoError(t, err)
	assert.True(t, first.NetProfit.Equal(d("40000")))

	// A write that bypasses the engine is not seen until the version moves.
	entries := f.Store.Entries(tenant)
	f.Store.Tamper(entries[3].ID, func(e *journal.Entry) { e.Amount = d("1") })
	cached, err := f.Reports.IncomeStatement(ctx, tenant, start, end, "")
	require.NoError(t, err)
	assert.True(t, cached.NetProfit.Equal(d("40000")))
	f.Store.Tamper(entries[3].ID, func(e *journal.Entry) { e.Amount = d("50000") })

	before, err := cache.Version(ctx, tenant)
	require.NoError(t, err)
	post(t, f, posting{"SALE-2", "1100", "4200", "7000", ledgertest.Date(2024, 1, 30)})
	after, err := cache.Version(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	fresh, err := f.Reports.IncomeStatement(ctx, tenant, start, end, "")
	require.NoError(t, err)
	assert.True(t, fresh.NetProfit.Equal(d("47000")))

	otherVersion, err := cache.Version(ctx, tenant+1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherVersion, "versions are per tenant")
}

func TestReportsSurviveRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f, _ := januaryBook(t, reports.NewCache(client, time.Minute))
	mr.Close()

	bs, err := f.Reports.BalanceSheet(context.Background(), tenant, ledgertest.Date(2024, 1, 31), "")
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
}

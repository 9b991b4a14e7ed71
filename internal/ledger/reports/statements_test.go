package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/balances"
)

func acct(id int64, code string, typ accounts.AccountType, class accounts.Classification) accounts.Account {
	return accounts.Account{ID: id, Code: code, Name: code, Type: typ, NormalBalance: typ.NormalBalance(), Classification: class, IsActive: true}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBalanceSheetSumsClassificationsIndependently(t *testing.T) {
	chart := []accounts.Account{
		acct(1, "1100", accounts.TypeAsset, accounts.ClassCash),
		acct(2, "1200", accounts.TypeAsset, accounts.ClassReceivable),
		acct(3, "1300", accounts.TypeAsset, accounts.ClassCurrentAsset),
		acct(4, "1500", accounts.TypeAsset, accounts.ClassFixedAsset),
		acct(5, "1600", accounts.TypeAsset, accounts.ClassNonCurrentAsset),
		acct(6, "2100", accounts.TypeLiability, accounts.ClassCurrentLiability),
		acct(7, "2500", accounts.TypeLiability, accounts.ClassLongTermLiability),
		acct(8, "3100", accounts.TypeEquity, accounts.ClassPaidInCapital),
		acct(9, "4100", accounts.TypeIncome, accounts.ClassOperatingRevenue),
		acct(10, "5200", accounts.TypeExpense, accounts.ClassOperatingExpense),
	}
	// a code that looks current but is classified non-current
	odd := acct(11, "1150", accounts.TypeAsset, accounts.ClassNonCurrentAsset)
	chart = append(chart, odd)

	res := balances.Calculate(balances.Input{
		Accounts: chart,
		Opening: map[int64]decimal.Decimal{
			1: d("100"), 2: d("200"), 3: d("300"), 4: d("1000"), 5: d("400"), 11: d("50"),
			6: d("250"), 7: d("800"), 8: d("900"), 9: d("150"), 10: d("50"),
		},
	})
	bs := BuildBalanceSheet(1, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), "", res)

	assert.True(t, bs.CurrentAssets.Total.Equal(d("600")))
	assert.True(t, bs.NonCurrentAssets.Total.Equal(d("1450")))
	assert.True(t, bs.TotalAssets.Equal(bs.CurrentAssets.Total.Add(bs.NonCurrentAssets.Total)))
	assert.True(t, bs.TotalLiabilities.Equal(d("1050")))
	assert.True(t, bs.CurrentEarnings.Equal(d("100")))
	assert.True(t, bs.TotalEquity.Equal(d("1000")))
	assert.True(t, bs.Balanced)
	assert.True(t, bs.Difference.IsZero())

	codes := make([]string, 0)
	for _, l := range bs.NonCurrentAssets.Lines {
		codes = append(codes, l.Code)
	}
	assert.Equal(t, []string{"1150", "1500", "1600"}, codes)
}

func TestBalanceSheetReportsDifference(t *testing.T) {
	chart := []accounts.Account{
		acct(1, "1100", accounts.TypeAsset, accounts.ClassCash),
		acct(2, "3100", accounts.TypeEquity, accounts.ClassPaidInCapital),
	}
	res := balances.Calculate(balances.Input{Accounts: chart, Opening: map[int64]decimal.Decimal{1: d("100"), 2: d("90")}})
	bs := BuildBalanceSheet(1, time.Now(), "", res)
	assert.False(t, bs.Balanced)
	assert.True(t, bs.Difference.Equal(d("10")))
}

func TestIncomeStatementSplitsOperatingAndOther(t *testing.T) {
	chart := []accounts.Account{
		acct(1, "4100", accounts.TypeIncome, accounts.ClassOperatingRevenue),
		acct(2, "4900", accounts.TypeIncome, accounts.ClassOtherRevenue),
		acct(3, "5200", accounts.TypeExpense, accounts.ClassOperatingExpense),
		acct(4, "5900", accounts.TypeExpense, accounts.ClassOtherExpense),
	}
	res := balances.Calculate(balances.Input{Accounts: chart, Opening: map[int64]decimal.Decimal{
		1: d("1000"), 2: d("200"), 3: d("600"), 4: d("50"),
	}})
	is := BuildIncomeStatement(1, time.Now(), time.Now(), "", res)
	assert.True(t, is.TotalRevenue.Equal(d("1200")))
	assert.True(t, is.TotalExpense.Equal(d("650")))
	assert.True(t, is.OperatingProfit.Equal(d("400")))
	assert.True(t, is.NetProfit.Equal(d("550")))
}

func TestTrialBalanceColumns(t *testing.T) {
	chart := []accounts.Account{
		acct(1, "1100", accounts.TypeAsset, accounts.ClassCash),
		acct(2, "2100", accounts.TypeLiability, accounts.ClassCurrentLiability),
		acct(3, "1200", accounts.TypeAsset, accounts.ClassReceivable),
	}
	res := balances.Calculate(balances.Input{Accounts: chart, Opening: map[int64]decimal.Decimal{
		1: d("-20"), 2: d("-20"),
	}})
	tb := BuildTrialBalance(1, time.Now(), "", res)
	require.Len(t, tb.Lines, 2, "accounts without activity or balance are left out")
	// an overdrawn asset shows on the credit side, a negative liability on the debit side
	assert.True(t, tb.Lines[0].CreditBalance.Equal(d("20")))
	assert.True(t, tb.Lines[1].DebitBalance.Equal(d("20")))
	assert.True(t, tb.Balanced)
}

package balances

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
)

func account(id int64, code string, typ accounts.AccountType) accounts.Account {
	return accounts.Account{ID: id, Code: code, Type: typ, NormalBalance: typ.NormalBalance(), IsActive: true}
}

func entry(debit, credit int64, amount string) journal.Entry {
	return journal.Entry{
		DebitAccountID:  debit,
		CreditAccountID: credit,
		Amount:          decimal.RequireFromString(amount),
		Status:          journal.StatusPosted,
	}
}

var chart = []accounts.Account{
	account(1, "1100", accounts.TypeAsset),
	account(2, "2100", accounts.TypeLiability),
	account(3, "4100", accounts.TypeIncome),
	account(4, "5200", accounts.TypeExpense),
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateWithoutEntriesKeepsOpening(t *testing.T) {
	res := Calculate(Input{
		Accounts: chart,
		Opening:  map[int64]decimal.Decimal{1: dec("500"), 2: dec("500")},
	})
	require.Len(t, res.Lines, len(chart))
	assert.True(t, res.Balance(1).Equal(dec("500")))
	assert.True(t, res.Balance(2).Equal(dec("500")))
	assert.True(t, res.Balance(3).IsZero())
	assert.True(t, res.TotalDebit.IsZero())
	assert.True(t, res.Balanced())
}

func TestCalculateAppliesNormalBalanceSigns(t *testing.T) {
	res := Calculate(Input{
		Accounts: chart,
		Entries: []journal.Entry{
			entry(1, 2, "100000"),  // deposit
			entry(1, 3, "2500.50"), // interest received
			entry(4, 1, "700"),     // expense paid
			entry(2, 1, "1000"),    // withdrawal
		},
	})
	assert.True(t, res.Balance(1).Equal(dec("100800.50")))
	assert.True(t, res.Balance(2).Equal(dec("99000")))
	assert.True(t, res.Balance(3).Equal(dec("2500.50")))
	assert.True(t, res.Balance(4).Equal(dec("700")))

	cash, ok := res.Line(1)
	require.True(t, ok)
	assert.True(t, cash.Debit.Equal(dec("102500.50")))
	assert.True(t, cash.Credit.Equal(dec("1700")))
	assert.Equal(t, 4, cash.Entries)

	assert.True(t, res.TotalDebit.Equal(dec("104200.50")))
	assert.True(t, res.Balanced())
}

func TestCalculateSkipsVoidAndUnknown(t *testing.T) {
	void := entry(1, 2, "50")
	void.Status = journal.StatusVoid
	res := Calculate(Input{
		Accounts: chart,
		Entries:  []journal.Entry{void, entry(1, 99, "10"), entry(1, 2, "5")},
	})
	assert.Equal(t, 1, res.SkippedVoid)
	assert.Equal(t, 1, res.SkippedUnknown)
	assert.True(t, res.Balance(1).Equal(dec("5")))
	assert.True(t, res.Balance(99).IsZero())
	_, ok := res.Line(99)
	assert.False(t, ok)
}

func TestCalculateSortsLinesByCode(t *testing.T) {
	res := Calculate(Input{Accounts: []accounts.Account{chart[3], chart[0], chart[2], chart[1]}})
	codes := make([]string, 0, len(res.Lines))
	for _, l := range res.Lines {
		codes = append(codes, l.Account.Code)
	}
	assert.Equal(t, []string{"1100", "2100", "4100", "5200"}, codes)
	closing := res.Closing()
	assert.Len(t, closing, 4)
}

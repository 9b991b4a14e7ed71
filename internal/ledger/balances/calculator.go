// Package balances folds ledger entries into per-account balances.
package balances

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
)

// Input is the data a calculation runs over. Opening is keyed by account id; missing
// accounts open at zero.
type Input struct {
	Accounts []accounts.Account
	Entries  []journal.Entry
	Opening  map[int64]decimal.Decimal
}

// Line is the computed balance of one account.
type Line struct {
	Account  accounts.Account `json:"account"`
	Opening  decimal.Decimal  `json:"opening"`
	Debit    decimal.Decimal  `json:"debit"`
	Credit   decimal.Decimal  `json:"credit"`
	Movement decimal.Decimal  `json:"movement"`
	Closing  decimal.Decimal  `json:"closing"`
	Entries  int              `json:"entries"`
}

// Result holds every account line sorted by code plus the turnover totals.
type Result struct {
	Lines          []Line          `json:"lines"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	SkippedVoid    int             `json:"skipped_void"`
	SkippedUnknown int             `json:"skipped_unknown"`

	index map[int64]int
}

// Calculate runs a single pass over the entries. A debit adds the amount to DEBIT-normal
// accounts and subtracts it from CREDIT-normal ones; a credit does the reverse.
func Calculate(in Input) Result {
	res := Result{
		Lines:       make([]Line, 0, len(in.Accounts)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		index:       make(map[int64]int, len(in.Accounts)),
	}
	sorted := append([]accounts.Account(nil), in.Accounts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, account := range sorted {
		opening := decimal.Zero
		if v, ok := in.Opening[account.ID]; ok {
			opening = v
		}
		res.index[account.ID] = len(res.Lines)
		res.Lines = append(res.Lines, Line{
			Account:  account,
			Opening:  opening,
			Debit:    decimal.Zero,
			Credit:   decimal.Zero,
			Movement: decimal.Zero,
			Closing:  opening,
		})
	}

	for _, entry := range in.Entries {
		if entry.Status == journal.StatusVoid {
			res.SkippedVoid++
			continue
		}
		di, okDebit := res.index[entry.DebitAccountID]
		ci, okCredit := res.index[entry.CreditAccountID]
		if !okDebit || !okCredit {
			res.SkippedUnknown++
			continue
		}
		debit := &res.Lines[di]
		debit.Debit = debit.Debit.Add(entry.Amount)
		debit.Movement = debit.Movement.Add(signed(debit.Account.NormalBalance, accounts.NormalDebit, entry.Amount))
		debit.Entries++

		credit := &res.Lines[ci]
		credit.Credit = credit.Credit.Add(entry.Amount)
		credit.Movement = credit.Movement.Add(signed(credit.Account.NormalBalance, accounts.NormalCredit, entry.Amount))
		credit.Entries++

		res.TotalDebit = res.TotalDebit.Add(entry.Amount)
		res.TotalCredit = res.TotalCredit.Add(entry.Amount)
	}

	for i := range res.Lines {
		res.Lines[i].Closing = res.Lines[i].Opening.Add(res.Lines[i].Movement)
	}
	return res
}

func signed(normal, side accounts.NormalBalance, amount decimal.Decimal) decimal.Decimal {
	if normal == side {
		return amount
	}
	return amount.Neg()
}

// Line returns the computed line of an account.
func (r Result) Line(accountID int64) (Line, bool) {
	i, ok := r.index[accountID]
	if !ok {
		return Line{}, false
	}
	return r.Lines[i], true
}

// Balance returns the closing balance of an account, zero when unknown.
func (r Result) Balance(accountID int64) decimal.Decimal {
	line, ok := r.Line(accountID)
	if !ok {
		return decimal.Zero
	}
	return line.Closing
}

// Closing returns closing balances keyed by account id.
func (r Result) Closing() map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal, len(r.Lines))
	for _, line := range r.Lines {
		out[line.Account.ID] = line.Closing
	}
	return out
}

// Balanced reports whether debit turnover equals credit turnover.
func (r Result) Balanced() bool {
	return r.TotalDebit.Equal(r.TotalCredit)
}

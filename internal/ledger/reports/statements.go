package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/balances"
)

// ReconcileTolerance is the largest cash flow discrepancy still treated as reconciled.
var ReconcileTolerance = decimal.RequireFromString("0.01")

// AccountAmount is one account shown on a statement.
type AccountAmount struct {
	AccountID      int64                   `json:"account_id"`
	Code           string                  `json:"code"`
	Name           string                  `json:"name"`
	Classification accounts.Classification `json:"classification"`
	Amount         decimal.Decimal         `json:"amount"`
}

// Section groups statement lines under a caption.
type Section struct {
	Title string          `json:"title"`
	Lines []AccountAmount `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type BalanceSheet struct {
	TenantID            int64           `json:"tenant_id"`
	AsOf                time.Time       `json:"as_of"`
	Unit                string          `json:"unit,omitempty"`
	CurrentAssets       Section         `json:"current_assets"`
	NonCurrentAssets    Section         `json:"non_current_assets"`
	TotalAssets         decimal.Decimal `json:"total_assets"`
	CurrentLiabilities  Section         `json:"current_liabilities"`
	LongTermLiabilities Section         `json:"long_term_liabilities"`
	TotalLiabilities    decimal.Decimal `json:"total_liabilities"`
	Equity              Section         `json:"equity"`
	CurrentEarnings     decimal.Decimal `json:"current_earnings"`
	TotalEquity         decimal.Decimal `json:"total_equity"`
	TotalLiabEquity     decimal.Decimal `json:"total_liabilities_and_equity"`
	Balanced            bool            `json:"balanced"`
	Difference          decimal.Decimal `json:"difference"`
}

type IncomeStatement struct {
	TenantID         int64           `json:"tenant_id"`
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Unit             string          `json:"unit,omitempty"`
	OperatingRevenue Section         `json:"operating_revenue"`
	OtherRevenue     Section         `json:"other_revenue"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	OperatingExpense Section         `json:"operating_expense"`
	OtherExpense     Section         `json:"other_expense"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	OperatingProfit  decimal.Decimal `json:"operating_profit"`
	NetProfit        decimal.Decimal `json:"net_profit"`
}

// CashFlow is the indirect-method statement for a range.
type CashFlow struct {
	TenantID                  int64           `json:"tenant_id"`
	Start                     time.Time       `json:"start"`
	End                       time.Time       `json:"end"`
	Unit                      string          `json:"unit,omitempty"`
	NetProfit                 decimal.Decimal `json:"net_profit"`
	ChangeReceivables         decimal.Decimal `json:"change_receivables"`
	ChangeOtherCurrentAssets  decimal.Decimal `json:"change_other_current_assets"`
	ChangeCurrentLiabilities  decimal.Decimal `json:"change_current_liabilities"`
	OperatingCashFlow         decimal.Decimal `json:"operating_cash_flow"`
	ChangeNonCurrentAssets    decimal.Decimal `json:"change_non_current_assets"`
	InvestingCashFlow         decimal.Decimal `json:"investing_cash_flow"`
	ChangeLongTermLiabilities decimal.Decimal `json:"change_long_term_liabilities"`
	ChangeEquity              decimal.Decimal `json:"change_equity"`
	FinancingCashFlow         decimal.Decimal `json:"financing_cash_flow"`
	NetChange                 decimal.Decimal `json:"net_change"`
	BeginningCash             decimal.Decimal `json:"beginning_cash"`
	ComputedEndingCash        decimal.Decimal `json:"computed_ending_cash"`
	ActualEndingCash          decimal.Decimal `json:"actual_ending_cash"`
	Discrepancy               decimal.Decimal `json:"discrepancy"`
	Reconciled                bool            `json:"reconciled"`
}

type EquityChanges struct {
	TenantID             int64           `json:"tenant_id"`
	Start                time.Time       `json:"start"`
	End                  time.Time       `json:"end"`
	Unit                 string          `json:"unit,omitempty"`
	BeginningEquity      decimal.Decimal `json:"beginning_equity"`
	PaidInCapital        decimal.Decimal `json:"paid_in_capital_movement"`
	RetainedEarnings     decimal.Decimal `json:"retained_earnings_movement"`
	OtherEquity          decimal.Decimal `json:"other_equity_movement"`
	NetProfit            decimal.Decimal `json:"net_profit"`
	ComputedEndingEquity decimal.Decimal `json:"computed_ending_equity"`
	ActualEndingEquity   decimal.Decimal `json:"actual_ending_equity"`
	Difference           decimal.Decimal `json:"difference"`
}

type TrialBalanceLine struct {
	AccountID     int64                `json:"account_id"`
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Type          accounts.AccountType `json:"type"`
	Debit         decimal.Decimal      `json:"debit"`
	Credit        decimal.Decimal      `json:"credit"`
	DebitBalance  decimal.Decimal      `json:"debit_balance"`
	CreditBalance decimal.Decimal      `json:"credit_balance"`
}

type TrialBalance struct {
	TenantID           int64              `json:"tenant_id"`
	AsOf               time.Time          `json:"as_of"`
	Unit               string             `json:"unit,omitempty"`
	Lines              []TrialBalanceLine `json:"lines"`
	TotalDebit         decimal.Decimal    `json:"total_debit"`
	TotalCredit        decimal.Decimal    `json:"total_credit"`
	TotalDebitBalance  decimal.Decimal    `json:"total_debit_balance"`
	TotalCreditBalance decimal.Decimal    `json:"total_credit_balance"`
	Balanced           bool               `json:"balanced"`
}

type matcher func(accounts.Account) bool

func byClass(classes ...accounts.Classification) matcher {
	return func(a accounts.Account) bool {
		for _, c := range classes {
			if a.Classification == c {
				return true
			}
		}
		return false
	}
}

func byType(t accounts.AccountType) matcher {
	return func(a accounts.Account) bool { return a.Type == t }
}

// section collects closing balances of the matching non-header accounts. Zero lines
// without activity are left out.
func section(title string, res balances.Result, match matcher) Section {
	out := Section{Title: title, Lines: []AccountAmount{}, Total: decimal.Zero}
	for _, line := range res.Lines {
		if line.Account.IsHeader || !match(line.Account) {
			continue
		}
		if line.Closing.IsZero() && line.Entries == 0 {
			continue
		}
		out.Lines = append(out.Lines, AccountAmount{
			AccountID:      line.Account.ID,
			Code:           line.Account.Code,
			Name:           line.Account.Name,
			Classification: line.Account.Classification,
			Amount:         line.Closing,
		})
		out.Total = out.Total.Add(line.Closing)
	}
	return out
}

func sum(res balances.Result, match matcher) decimal.Decimal {
	total := decimal.Zero
	for _, line := range res.Lines {
		if !line.Account.IsHeader && match(line.Account) {
			total = total.Add(line.Closing)
		}
	}
	return total
}

func earnings(res balances.Result) decimal.Decimal {
	return sum(res, byType(accounts.TypeIncome)).Sub(sum(res, byType(accounts.TypeExpense)))
}

// BuildBalanceSheet classifies closing balances as of a date. Current earnings close the
// gap between assets and liabilities plus booked equity.
func BuildBalanceSheet(tenantID int64, asOf time.Time, unit string, res balances.Result) BalanceSheet {
	bs := BalanceSheet{TenantID: tenantID, AsOf: asOf, Unit: unit}
	bs.CurrentAssets = section("Current Assets", res, byClass(accounts.ClassCash, accounts.ClassReceivable, accounts.ClassCurrentAsset))
	bs.NonCurrentAssets = section("Non-current Assets", res, byClass(accounts.ClassFixedAsset, accounts.ClassNonCurrentAsset))
	bs.TotalAssets = bs.CurrentAssets.Total.Add(bs.NonCurrentAssets.Total)

	bs.CurrentLiabilities = section("Current Liabilities", res, byClass(accounts.ClassCurrentLiability))
	bs.LongTermLiabilities = section("Long-term Liabilities", res, byClass(accounts.ClassLongTermLiability))
	bs.TotalLiabilities = bs.CurrentLiabilities.Total.Add(bs.LongTermLiabilities.Total)

	bs.Equity = section("Equity", res, byType(accounts.TypeEquity))
	bs.CurrentEarnings = earnings(res)
	bs.TotalEquity = bs.Equity.Total.Add(bs.CurrentEarnings)
	bs.TotalLiabEquity = bs.TotalLiabilities.Add(bs.TotalEquity)

	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabEquity)
	bs.Balanced = bs.Difference.IsZero()
	return bs
}

// BuildIncomeStatement expects a range result with zero openings.
func BuildIncomeStatement(tenantID int64, start, end time.Time, unit string, res balances.Result) IncomeStatement {
	is := IncomeStatement{TenantID: tenantID, Start: start, End: end, Unit: unit}
	is.OperatingRevenue = section("Operating Revenue", res, byClass(accounts.ClassOperatingRevenue))
	is.OtherRevenue = section("Other Revenue", res, byClass(accounts.ClassOtherRevenue))
	is.TotalRevenue = is.OperatingRevenue.Total.Add(is.OtherRevenue.Total)

	is.OperatingExpense = section("Operating Expense", res, byClass(accounts.ClassOperatingExpense))
	is.OtherExpense = section("Other Expense", res, byClass(accounts.ClassOtherExpense))
	is.TotalExpense = is.OperatingExpense.Total.Add(is.OtherExpense.Total)

	is.OperatingProfit = is.OperatingRevenue.Total.Sub(is.OperatingExpense.Total)
	is.NetProfit = is.TotalRevenue.Sub(is.TotalExpense)
	return is
}

// BuildCashFlow derives operating, investing and financing flows from the balance change
// between begin (as of the day before start) and end (as of end). period is the range
// result used for net profit.
func BuildCashFlow(tenantID int64, start, end time.Time, unit string, begin, finish, period balances.Result) CashFlow {
	delta := func(match matcher) decimal.Decimal {
		return sum(finish, match).Sub(sum(begin, match))
	}
	cf := CashFlow{TenantID: tenantID, Start: start, End: end, Unit: unit}
	cf.NetProfit = earnings(period)

	cf.ChangeReceivables = delta(byClass(accounts.ClassReceivable))
	cf.ChangeOtherCurrentAssets = delta(byClass(accounts.ClassCurrentAsset))
	cf.ChangeCurrentLiabilities = delta(byClass(accounts.ClassCurrentLiability))
	cf.OperatingCashFlow = cf.NetProfit.
		Sub(cf.ChangeReceivables).
		Sub(cf.ChangeOtherCurrentAssets).
		Add(cf.ChangeCurrentLiabilities)

	cf.ChangeNonCurrentAssets = delta(byClass(accounts.ClassFixedAsset, accounts.ClassNonCurrentAsset))
	cf.InvestingCashFlow = cf.ChangeNonCurrentAssets.Neg()

	cf.ChangeLongTermLiabilities = delta(byClass(accounts.ClassLongTermLiability))
	cf.ChangeEquity = delta(byType(accounts.TypeEquity))
	cf.FinancingCashFlow = cf.ChangeLongTermLiabilities.Add(cf.ChangeEquity)

	cf.NetChange = cf.OperatingCashFlow.Add(cf.InvestingCashFlow).Add(cf.FinancingCashFlow)
	cf.BeginningCash = sum(begin, byClass(accounts.ClassCash))
	cf.ComputedEndingCash = cf.BeginningCash.Add(cf.NetChange)
	cf.ActualEndingCash = sum(finish, byClass(accounts.ClassCash))
	cf.Discrepancy = cf.ActualEndingCash.Sub(cf.ComputedEndingCash)
	cf.Reconciled = cf.Discrepancy.Abs().LessThanOrEqual(ReconcileTolerance)
	return cf
}

// BuildEquityChanges reports the movement of each equity class over the range.
func BuildEquityChanges(tenantID int64, start, end time.Time, unit string, begin, finish, period balances.Result) EquityChanges {
	delta := func(match matcher) decimal.Decimal {
		return sum(finish, match).Sub(sum(begin, match))
	}
	ec := EquityChanges{TenantID: tenantID, Start: start, End: end, Unit: unit}
	ec.BeginningEquity = sum(begin, byType(accounts.TypeEquity)).Add(earnings(begin))
	ec.PaidInCapital = delta(byClass(accounts.ClassPaidInCapital))
	ec.RetainedEarnings = delta(byClass(accounts.ClassRetainedEarnings))
	ec.OtherEquity = delta(byClass(accounts.ClassOtherEquity))
	ec.NetProfit = earnings(period)
	ec.ComputedEndingEquity = ec.BeginningEquity.
		Add(ec.PaidInCapital).
		Add(ec.RetainedEarnings).
		Add(ec.OtherEquity).
		Add(ec.NetProfit)
	ec.ActualEndingEquity = sum(finish, byType(accounts.TypeEquity)).Add(earnings(finish))
	ec.Difference = ec.ActualEndingEquity.Sub(ec.ComputedEndingEquity)
	return ec
}

// BuildTrialBalance lists turnover and closing balance columns for every postable account
// with activity or a balance.
func BuildTrialBalance(tenantID int64, asOf time.Time, unit string, res balances.Result) TrialBalance {
	tb := TrialBalance{
		TenantID:           tenantID,
		AsOf:               asOf,
		Unit:               unit,
		Lines:              []TrialBalanceLine{},
		TotalDebit:         res.TotalDebit,
		TotalCredit:        res.TotalCredit,
		TotalDebitBalance:  decimal.Zero,
		TotalCreditBalance: decimal.Zero,
	}
	for _, line := range res.Lines {
		if line.Account.IsHeader || (line.Entries == 0 && line.Closing.IsZero()) {
			continue
		}
		tl := TrialBalanceLine{
			AccountID:     line.Account.ID,
			Code:          line.Account.Code,
			Name:          line.Account.Name,
			Type:          line.Account.Type,
			Debit:         line.Debit,
			Credit:        line.Credit,
			DebitBalance:  decimal.Zero,
			CreditBalance: decimal.Zero,
		}
		onDebit := line.Account.NormalBalance == accounts.NormalDebit
		if line.Closing.IsNegative() {
			onDebit = !onDebit
		}
		if onDebit {
			tl.DebitBalance = line.Closing.Abs()
		} else {
			tl.CreditBalance = line.Closing.Abs()
		}
		tb.TotalDebitBalance = tb.TotalDebitBalance.Add(tl.DebitBalance)
		tb.TotalCreditBalance = tb.TotalCreditBalance.Add(tl.CreditBalance)
		tb.Lines = append(tb.Lines, tl)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit) && tb.TotalDebitBalance.Equal(tb.TotalCreditBalance)
	return tb
}

package accounts

// ChartEntry is one node of the canonical cooperative chart.
type ChartEntry struct {
	Code           string
	Name           string
	Type           AccountType
	Classification Classification
	ParentCode     string
	IsHeader       bool
}

// DefaultChart is the minimal chart installed by SeedDefaults. Roots come first.
var DefaultChart = []ChartEntry{
	{Code: "1000", Name: "Assets", Type: TypeAsset, Classification: ClassCurrentAsset, IsHeader: true},
	{Code: "2000", Name: "Liabilities", Type: TypeLiability, Classification: ClassCurrentLiability, IsHeader: true},
	{Code: "3000", Name: "Equity", Type: TypeEquity, Classification: ClassOtherEquity, IsHeader: true},
	{Code: "4000", Name: "Income", Type: TypeIncome, Classification: ClassOperatingRevenue, IsHeader: true},
	{Code: "5000", Name: "Expenses", Type: TypeExpense, Classification: ClassOperatingExpense, IsHeader: true},

	// Assets (1xxx)
	{Code: "1100", Name: "Cash on Hand", Type: TypeAsset, Classification: ClassCash, ParentCode: "1000"},
	{Code: "1110", Name: "Cash in Bank", Type: TypeAsset, Classification: ClassCash, ParentCode: "1000"},
	{Code: "1200", Name: "Member Loans Receivable", Type: TypeAsset, Classification: ClassReceivable, ParentCode: "1000"},
	{Code: "1210", Name: "Accounts Receivable", Type: TypeAsset, Classification: ClassReceivable, ParentCode: "1000"},
	{Code: "1300", Name: "Merchandise Inventory", Type: TypeAsset, Classification: ClassCurrentAsset, ParentCode: "1000"},
	{Code: "1310", Name: "Bill Payment Deposit", Type: TypeAsset, Classification: ClassCurrentAsset, ParentCode: "1000"},
	{Code: "1500", Name: "Property and Equipment", Type: TypeAsset, Classification: ClassFixedAsset, ParentCode: "1000"},
	{Code: "1600", Name: "Long-term Investments", Type: TypeAsset, Classification: ClassNonCurrentAsset, ParentCode: "1000"},

	// Liabilities (2xxx)
	{Code: "2100", Name: "Voluntary Savings", Type: TypeLiability, Classification: ClassCurrentLiability, ParentCode: "2000"},
	{Code: "2110", Name: "Time Deposits", Type: TypeLiability, Classification: ClassCurrentLiability, ParentCode: "2000"},
	{Code: "2200", Name: "Accounts Payable", Type: TypeLiability, Classification: ClassCurrentLiability, ParentCode: "2000"},
	{Code: "2500", Name: "Long-term Borrowings", Type: TypeLiability, Classification: ClassLongTermLiability, ParentCode: "2000"},

	// Equity (3xxx)
	{Code: "3100", Name: "Principal Savings", Type: TypeEquity, Classification: ClassPaidInCapital, ParentCode: "3000"},
	{Code: "3110", Name: "Mandatory Savings", Type: TypeEquity, Classification: ClassPaidInCapital, ParentCode: "3000"},
	{Code: "3200", Name: "Retained Earnings", Type: TypeEquity, Classification: ClassRetainedEarnings, ParentCode: "3000"},
	{Code: "3300", Name: "General Reserve", Type: TypeEquity, Classification: ClassOtherEquity, ParentCode: "3000"},

	// Income (4xxx)
	{Code: "4100", Name: "Loan Interest Income", Type: TypeIncome, Classification: ClassOperatingRevenue, ParentCode: "4000"},
	{Code: "4200", Name: "Retail Sales", Type: TypeIncome, Classification: ClassOperatingRevenue, ParentCode: "4000"},
	{Code: "4300", Name: "Bill Payment Fees", Type: TypeIncome, Classification: ClassOperatingRevenue, ParentCode: "4000"},
	{Code: "4900", Name: "Other Income", Type: TypeIncome, Classification: ClassOtherRevenue, ParentCode: "4000"},

	// Expenses (5xxx)
	{Code: "5100", Name: "Cost of Goods Sold", Type: TypeExpense, Classification: ClassOperatingExpense, ParentCode: "5000"},
	{Code: "5200", Name: "Operating Expenses", Type: TypeExpense, Classification: ClassOperatingExpense, ParentCode: "5000"},
	{Code: "5300", Name: "Savings Interest Expense", Type: TypeExpense, Classification: ClassOperatingExpense, ParentCode: "5000"},
	{Code: "5900", Name: "Other Expenses", Type: TypeExpense, Classification: ClassOtherExpense, ParentCode: "5000"},
}

// LookupChartEntry finds a canonical chart entry by code.
func LookupChartEntry(code string) (ChartEntry, bool) {
	for _, entry := range DefaultChart {
		if entry.Code == code {
			return entry, true
		}
	}
	return ChartEntry{}, false
}

// inferTypeFromCode applies the legacy leading-digit convention.
func inferTypeFromCode(code string) (AccountType, bool) {
	if code == "" {
		return "", false
	}
	switch code[0] {
	case '1':
		return TypeAsset, true
	case '2':
		return TypeLiability, true
	case '3':
		return TypeEquity, true
	case '4':
		return TypeIncome, true
	case '5', '6', '7', '8', '9':
		return TypeExpense, true
	}
	return "", false
}

package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeIncome    AccountType = "income"
	TypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense:
		return true
	}
	return false
}

// NormalBalance returns the side on which the type naturally increases.
func (t AccountType) NormalBalance() NormalBalance {
	switch t {
	case TypeAsset, TypeExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// DefaultClassification is used when an account is created without one.
func (t AccountType) DefaultClassification() Classification {
	switch t {
	case TypeAsset:
		return ClassCurrentAsset
	case TypeLiability:
		return ClassCurrentLiability
	case TypeEquity:
		return ClassOtherEquity
	case TypeIncome:
		return ClassOperatingRevenue
	case TypeExpense:
		return ClassOperatingExpense
	}
	return ""
}

// NormalBalance is the side (DEBIT or CREDIT) on which an account increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Classification buckets an account for financial statements.
type Classification string

const (
	ClassCash            Classification = "cash"
	ClassReceivable      Classification = "receivable"
	ClassCurrentAsset    Classification = "current_asset"
	ClassFixedAsset      Classification = "fixed_asset"
	ClassNonCurrentAsset Classification = "non_current_asset"

	ClassCurrentLiability  Classification = "current_liability"
	ClassLongTermLiability Classification = "long_term_liability"

	ClassPaidInCapital    Classification = "paid_in_capital"
	ClassRetainedEarnings Classification = "retained_earnings"
	ClassOtherEquity      Classification = "other_equity"

	ClassOperatingRevenue Classification = "operating_revenue"
	ClassOtherRevenue     Classification = "other_revenue"

	ClassOperatingExpense Classification = "operating_expense"
	ClassOtherExpense     Classification = "other_expense"
)

var classificationTypes = map[Classification]AccountType{
	ClassCash:              TypeAsset,
	ClassReceivable:        TypeAsset,
	ClassCurrentAsset:      TypeAsset,
	ClassFixedAsset:        TypeAsset,
	ClassNonCurrentAsset:   TypeAsset,
	ClassCurrentLiability:  TypeLiability,
	ClassLongTermLiability: TypeLiability,
	ClassPaidInCapital:     TypeEquity,
	ClassRetainedEarnings:  TypeEquity,
	ClassOtherEquity:       TypeEquity,
	ClassOperatingRevenue:  TypeIncome,
	ClassOtherRevenue:      TypeIncome,
	ClassOperatingExpense:  TypeExpense,
	ClassOtherExpense:      TypeExpense,
}

// Fits reports whether the classification belongs to the account type.
func (c Classification) Fits(t AccountType) bool {
	owner, ok := classificationTypes[c]
	return ok && owner == t
}

// IsCurrentAsset covers cash, receivables and other current assets.
func (c Classification) IsCurrentAsset() bool {
	return c == ClassCash || c == ClassReceivable || c == ClassCurrentAsset
}

// Account models a chart of accounts node owned by one tenant.
type Account struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Type           AccountType     `json:"type"`
	NormalBalance  NormalBalance   `json:"normal_balance"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	IsHeader       bool            `json:"is_header"`
	IsActive       bool            `json:"is_active"`
	Classification Classification  `json:"classification"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Postable returns an error when the account cannot receive ledger entries.
func (a Account) Postable() error {
	if !a.IsActive {
		return shared.ErrAccountInactive
	}
	if a.IsHeader {
		return shared.ErrAccountNotPostable
	}
	return nil
}

// CreateInput groups the fields accepted when creating an account.
type CreateInput struct {
	TenantID       int64       `validate:"required"`
	Code           string      `validate:"required,max=32"`
	Name           string      `validate:"required,max=200"`
	Description    string      `validate:"max=1000"`
	Type           AccountType `validate:"required"`
	ParentID       *int64
	IsHeader       bool
	Classification Classification
	InitialBalance decimal.Decimal
	Actor          int64
}

// UpdateInput carries mutable fields. Code and Type are accepted only to reject changes.
type UpdateInput struct {
	Name        *string
	Description *string
	IsActive    *bool
	Code        *string
	Type        *AccountType
	Actor       int64
}

// SeedResult summarises a SeedDefaults run.
type SeedResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Linked   int `json:"linked"`
}

package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// RecordInput groups fields required to append one entry.
type RecordInput struct {
	TenantID    int64  `validate:"required"`
	TxType      string `validate:"required,max=64"`
	TxReference string `validate:"required,max=128"`
	Debit       accounts.Ref
	Credit      accounts.Ref
	Amount      decimal.Decimal
	Description string `validate:"max=500"`
	EntryDate   time.Time
	Actor       int64
	Unit        string `validate:"max=64"`
	Metadata    map[string]any
}

// Validate checks the input before any storage access.
func (in RecordInput) Validate() error {
	if err := shared.Validate(in); err != nil {
		return err
	}
	var missing []string
	if in.Debit.IsZero() {
		missing = append(missing, "Debit")
	}
	if in.Credit.IsZero() {
		missing = append(missing, "Credit")
	}
	if in.EntryDate.IsZero() {
		missing = append(missing, "EntryDate")
	}
	if len(missing) > 0 {
		return shared.MissingFields(missing...)
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}
	if in.Debit.Same(in.Credit) {
		return shared.ErrSameAccount
	}
	return nil
}

func (in RecordInput) normalised() RecordInput {
	in.TxType = strings.TrimSpace(in.TxType)
	in.TxReference = strings.TrimSpace(in.TxReference)
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	return in
}

// ValidateAmount rejects non-positive amounts and amounts with more than two decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", shared.ErrInvalidAmount, amount.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s", shared.ErrInvalidAmount, amount.String())
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	TenantID  int64 `validate:"required"`
	EntryID   int64 `validate:"required"`
	Actor     int64
	EntryDate *time.Time
	Reason    string `validate:"max=500"`
}

// EntryFilter narrows ListEntries. Zero values mean unbounded.
type EntryFilter struct {
	TenantID  int64
	StartDate time.Time
	EndDate   time.Time
	AfterDate time.Time // exclusive lower bound, used for snapshot roll-forward
	Unit      string
	AccountID int64
	TxType    string
	Limit     int
	Offset    int
}

// Matches applies the filter to an entry held in memory.
func (f EntryFilter) Matches(e Entry) bool {
	if f.TenantID != 0 && e.TenantID != f.TenantID {
		return false
	}
	if !f.StartDate.IsZero() && e.EntryDate.Before(shared.DateOf(f.StartDate)) {
		return false
	}
	if !f.EndDate.IsZero() && e.EntryDate.After(shared.DateOf(f.EndDate)) {
		return false
	}
	if !f.AfterDate.IsZero() && !e.EntryDate.After(shared.DateOf(f.AfterDate)) {
		return false
	}
	if f.Unit != "" && e.Unit != f.Unit {
		return false
	}
	if f.AccountID != 0 && e.DebitAccountID != f.AccountID && e.CreditAccountID != f.AccountID {
		return false
	}
	if f.TxType != "" && e.TxType != f.TxType {
		return false
	}
	return true
}

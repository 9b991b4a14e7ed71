package integration

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// SavingsKind selects the member savings product.
type SavingsKind string

const (
	SavingsPrincipal SavingsKind = "principal"
	SavingsMandatory SavingsKind = "mandatory"
	SavingsVoluntary SavingsKind = "voluntary"
	SavingsTime      SavingsKind = "time"
)

// AccountMap names the chart codes each business event posts to.
type AccountMap struct {
	Cash               string
	Savings            map[SavingsKind]string
	LoansReceivable    string
	LoanInterestIncome string
	RetailSales        string
	CostOfGoodsSold    string
	Inventory          string
	PPOBDeposit        string
	PPOBFeeIncome      string
}

// DefaultAccountMap points every event at the default chart.
func DefaultAccountMap() AccountMap {
	return AccountMap{
		Cash: "1100",
		Savings: map[SavingsKind]string{
			SavingsPrincipal: "3100",
			SavingsMandatory: "3110",
			SavingsVoluntary: "2100",
			SavingsTime:      "2110",
		},
		LoansReceivable:    "1200",
		LoanInterestIncome: "4100",
		RetailSales:        "4200",
		CostOfGoodsSold:    "5100",
		Inventory:          "1300",
		PPOBDeposit:        "1310",
		PPOBFeeIncome:      "4300",
	}
}

func (m AccountMap) savings(kind SavingsKind) (string, error) {
	if kind == "" {
		kind = SavingsVoluntary
	}
	code, ok := m.Savings[kind]
	if !ok || code == "" {
		return "", fmt.Errorf("%w: unknown savings kind %q", shared.ErrValidation, kind)
	}
	return code, nil
}

// nonNegative rejects negative parts; zero parts are skipped by callers.
func nonNegative(name string, value decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", shared.ErrInvalidAmount, name)
	}
	return nil
}

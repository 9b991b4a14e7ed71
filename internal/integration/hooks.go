package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// Ledger exposes the posting operation required by integrations.
type Ledger interface {
	RecordTransaction(ctx context.Context, input journal.RecordInput) (journal.Entry, error)
}

// Business units used to tag postings for segment reports.
const (
	UnitSavings = "savings"
	UnitLoans   = "loans"
	UnitRetail  = "retail"
	UnitPPOB    = "ppob"
)

var sourceNamespace = uuid.MustParse("6f1c7c3e-9a57-4d8e-9d1a-2a6b1f0e8c41")

// Hooks wires events from the cooperative's business modules into the ledger.
// Every event maps to one or more entries whose references derive from the
// event's own number, so redelivery replays instead of double posting.
type Hooks struct {
	ledger   Ledger
	accounts AccountMap
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, accounts AccountMap) *Hooks {
	return &Hooks{ledger: ledger, accounts: accounts}
}

// Meta carries the fields shared by every business event.
type Meta struct {
	TenantID int64     `json:"-"`
	Number   string    `json:"number"`
	Date     time.Time `json:"-"`
	Actor    int64     `json:"-"`
	Note     string    `json:"note,omitempty"`
}

func (m Meta) validate(what string) error {
	var missing []string
	if m.TenantID == 0 {
		missing = append(missing, "TenantID")
	}
	if strings.TrimSpace(m.Number) == "" {
		missing = append(missing, what+" number")
	}
	if m.Date.IsZero() {
		missing = append(missing, what+" date")
	}
	if len(missing) > 0 {
		return shared.MissingFields(missing...)
	}
	return nil
}

// SavingsEvent is a member deposit into or withdrawal from a savings product.
type SavingsEvent struct {
	Meta
	MemberID int64           `json:"member_id"`
	Kind     SavingsKind     `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
}

// LoanDisbursedEvent moves principal from cash to the member's loan.
type LoanDisbursedEvent struct {
	Meta
	MemberID  int64           `json:"member_id"`
	Principal decimal.Decimal `json:"principal"`
}

// LoanRepaidEvent is one installment split into principal and interest.
type LoanRepaidEvent struct {
	Meta
	MemberID    int64           `json:"member_id"`
	Installment int             `json:"installment"`
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
}

// RetailSaleEvent is a point-of-sale receipt, with optional cost of goods.
type RetailSaleEvent struct {
	Meta
	Total decimal.Decimal `json:"total"`
	Cost  decimal.Decimal `json:"cost"`
}

// PPOBEvent is a bill payment or top-up sold over the counter. Cost is what
// the provider deposit is charged; the remainder is fee income.
type PPOBEvent struct {
	Meta
	Product string          `json:"product"`
	Price   decimal.Decimal `json:"price"`
	Cost    decimal.Decimal `json:"cost"`
}

// ManualJournal is a bookkeeper adjustment between two arbitrary accounts.
type ManualJournal struct {
	Meta
	Debit  accounts.Ref    `json:"debit"`
	Credit accounts.Ref    `json:"credit"`
	Amount decimal.Decimal `json:"amount"`
	Unit   string          `json:"unit,omitempty"`
}

type leg struct {
	suffix string
	debit  string
	credit string
	amount decimal.Decimal
}

func (h *Hooks) post(ctx context.Context, txType, reference, unit string, meta Meta, legs []leg, extra map[string]any) ([]journal.Entry, error) {
	entries := make([]journal.Entry, 0, len(legs))
	for _, l := range legs {
		// sub-cent amounts reach the engine and fail its amount check
		if l.amount.IsZero() {
			continue
		}
		ref := reference + l.suffix
		metadata := map[string]any{
			"source_id": uuid.NewSHA1(sourceNamespace, []byte(fmt.Sprintf("%d:%s", meta.TenantID, ref))).String(),
		}
		for k, v := range extra {
			metadata[k] = v
		}
		entry, err := h.ledger.RecordTransaction(ctx, journal.RecordInput{
			TenantID:    meta.TenantID,
			TxType:      txType,
			TxReference: ref,
			Debit:       accounts.ByCode(l.debit),
			Credit:      accounts.ByCode(l.credit),
			Amount:      l.amount,
			Description: meta.Note,
			EntryDate:   meta.Date,
			Actor:       meta.Actor,
			Unit:        unit,
			Metadata:    metadata,
		})
		if err != nil {
			return entries, fmt.Errorf("integration: post %s: %w", ref, err)
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s %s has nothing to post", shared.ErrInvalidAmount, txType, meta.Number)
	}
	return entries, nil
}

// HandleSavingsDeposit debits cash and credits the savings product.
func (h *Hooks) HandleSavingsDeposit(ctx context.Context, evt SavingsEvent) ([]journal.Entry, error) {
	return h.savings(ctx, evt, true)
}

// HandleSavingsWithdrawal debits the savings product and credits cash.
func (h *Hooks) HandleSavingsWithdrawal(ctx context.Context, evt SavingsEvent) ([]journal.Entry, error) {
	return h.savings(ctx, evt, false)
}

func (h *Hooks) savings(ctx context.Context, evt SavingsEvent, deposit bool) ([]journal.Entry, error) {
	if h == nil || h.ledger == nil {
		return nil, nil
	}
	if err := evt.validate("savings"); err != nil {
		return nil, err
	}
	if err := nonNegative("amount", evt.Amount); err != nil {
		return nil, err
	}
	code, err := h.accounts.savings(evt.Kind)
	if err != nil {
		return nil, err
	}
	extra := map[string]any{"member_id": evt.MemberID, "savings_kind": string(evt.Kind)}
	if deposit {
		return h.post(ctx, "SAVINGS_DEPOSIT", fmt.Sprintf("SAV-DEP:%s", evt.Number), UnitSavings, evt.Meta,
			[]leg{{debit: h.accounts.Cash, credit: code, amount: evt.Amount}}, extra)
	}
	return h.post(ctx, "SAVINGS_WITHDRAWAL", fmt.Sprintf("SAV-WD:%s", evt.Number), UnitSavings, evt.Meta,
		[]leg{{debit: code, credit: h.accounts.Cash, amount: evt.Amount}}, extra)
}

// HandleLoanDisbursed records a loan paid out to a member.
func (h *Hooks) HandleLoanDisbursed(ctx context.Context, evt LoanDisbursedEvent) ([]journal.Entry, error) {
	if h == nil || h.ledger == nil {
		return nil, nil
	}
	if err := evt.validate("loan"); err != nil {
		return nil, err
	}
	if err := nonNegative("principal", evt.Principal); err != nil {
		return nil, err
	}
	return h.post(ctx, "LOAN_DISBURSEMENT", fmt.Sprintf("LOAN-DISB:%s", evt.Number), UnitLoans, evt.Meta,
		[]leg{{debit: h.accounts.LoansReceivable, credit: h.accounts.Cash, amount: evt.Principal}},
		map[string]any{"member_id": evt.MemberID})
}

// HandleLoanRepayment posts principal and interest as separate entries.
// A partial failure is completed by redelivering the same event.
func (h *Hooks) HandleLoanRepayment(ctx context.Context, evt LoanRepaidEvent) ([]journal.Entry, error) {
	if h == nil || h.ledger == nil {
		return nil, nil
	}
	if err := evt.validate("loan"); err != nil {
		return nil, err
	}
	if evt.Installment <= 0 {
		return nil, shared.MissingFields("installment")
	}
	if err := errors.Join(nonNegative("principal", evt.Principal), nonNegative("interest", evt.Interest)); err != nil {
		return nil, err
	}
	ref := fmt.Sprintf("LOAN-PAY:%s:%d", evt.Number, evt.Installment)
	return h.post(ctx, "LOAN_REPAYMENT", ref, UnitLoans, evt.Meta, []leg{
		{suffix: ":P", debit: h.accounts.Cash, credit: h.accounts.LoansReceivable, amount: evt.Principal},
		{suffix: ":I", debit: h.accounts.Cash, credit: h.accounts.LoanInterestIncome, amount: evt.Interest},
	}, map[string]any{"member_id": evt.MemberID, "installment": evt.Installment})
}

// HandleRetailSale records the receipt and, when known, the cost of goods.
func (h *Hooks) HandleRetailSale(ctx context.Context, evt RetailSaleEvent) ([]journal.Entry, error) {
	if h == nil || h.ledger == nil {
		return nil, nil
	}
	if err := evt.validate("sale"); err != nil {
		return nil, err
	}
	if !evt.Total.IsPositive() {
		return nil, fmt.Errorf("%w: sale total must be positive", shared.ErrInvalidAmount)
	}
	if err := nonNegative("cost", evt.Cost); err != nil {
		return nil, err
	}
	ref := fmt.Sprintf("POS:%s", evt.Number)
	return h.post(ctx, "RETAIL_SALE", ref, UnitRetail, evt.Meta, []leg{
		{debit: h.accounts.Cash, credit: h.accounts.RetailSales, amount: evt.Total},
		{suffix: ":COGS", debit: h.accounts.CostOfGoodsSold, credit: h.accounts.Inventory, amount: evt.Cost},
	}, nil)
}

// HandlePPOB records a bill payment sale against the provider deposit.
func (h *Hooks) HandlePPOB(ctx context.Context, evt PPOBEvent) ([]journal.Entry, error) {
	if h == nil || h.ledger == nil {
		return nil, nil
	}
	if err := evt.validate("ppob"); err != nil {
		return nil, err
	}
	if err := errors.Join(nonNegative("price", evt.Price), nonNegative("cost", evt.Cost)); err != nil {
		return nil, err
	}
	if evt.Cost.GreaterThan(evt.Price) {
		return nil, fmt.Errorf("%w: cost %s exceeds price %s", shared.ErrInvalidAmount, evt.Cost, evt.Price)
	}
	ref := fmt.Sprintf("PPOB:%s", evt.Number)
	return h.post(ctx, "PPOB_SALE", ref, UnitPPOB, evt.Meta, []leg{
		{debit: h.accounts.Cash, credit: h.accounts.PPOBDeposit, amount: evt.Cost},
		{suffix: ":FEE", debit: h.accounts.Cash, credit: h.accounts.PPOBFeeIncome, amount: evt.Price.Sub(evt.Cost)},
	}, map[string]any{"product": evt.Product})
}

// HandleManualJournal routes a bookkeeper adjustment through the engine.
func (h *Hooks) HandleManualJournal(ctx context.Context, evt ManualJournal) (journal.Entry, error) {
	if h == nil || h.ledger == nil {
		return journal.Entry{}, nil
	}
	if err := evt.validate("journal"); err != nil {
		return journal.Entry{}, err
	}
	return h.ledger.RecordTransaction(ctx, journal.RecordInput{
		TenantID:    evt.TenantID,
		TxType:      "MANUAL_JOURNAL",
		TxReference: fmt.Sprintf("MJ:%s", evt.Number),
		Debit:       evt.Debit,
		Credit:      evt.Credit,
		Amount:      evt.Amount,
		Description: evt.Note,
		EntryDate:   evt.Date,
		Actor:       evt.Actor,
		Unit:        evt.Unit,
	})
}

package integration_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/integration"
	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/ledgertest"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

const tenant int64 = 21

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*ledgertest.Fixture, *integration.Hooks) {
	t.Helper()
	f := ledgertest.NewFixture(t, nil)
	f.Seed(t, tenant)
	f.OpenPeriod(t, tenant, "2024-03", ledgertest.Date(2024, 3, 1), ledgertest.Date(2024, 3, 31))
	return f, integration.NewHooks(f.Journal, integration.DefaultAccountMap())
}

func meta(number string) integration.Meta {
	return integration.Meta{TenantID: tenant, Number: number, Date: ledgertest.Date(2024, 3, 4), Actor: 7}
}

func balance(t *testing.T, f *ledgertest.Fixture, code string) decimal.Decimal {
	t.Helper()
	bs, err := f.Reports.TrialBalance(context.Background(), tenant, ledgertest.Date(2024, 3, 31), "")
	require.NoError(t, err)
	for _, line := range bs.Lines {
		if line.Code == code {
			return line.DebitBalance.Sub(line.CreditBalance).Abs()
		}
	}
	return decimal.Zero
}

func TestSavingsDepositAndWithdrawal(t *testing.T) {
	f, hooks := setup(t)
	ctx := context.Background()

	entries, err := hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("S-001"), MemberID: 3, Kind: integration.SavingsMandatory, Amount: d("150000")})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SAV-DEP:S-001", entries[0].TxReference)
	assert.Equal(t, integration.UnitSavings, entries[0].Unit)
	assert.Equal(t, f.Account(t, tenant, "3110").ID, entries[0].CreditAccountID)

	again, err := hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("S-001"), MemberID: 3, Kind: integration.SavingsMandatory, Amount: d("150000")})
	require.NoError(t, err)
	assert.True(t, again[0].Replayed)
	assert.Equal(t, entries[0].ID, again[0].ID)

	_, err = hooks.HandleSavingsWithdrawal(ctx, integration.SavingsEvent{Meta: meta("S-002"), Amount: d("20000")})
	require.NoError(t, err, "kind defaults to voluntary")

	_, err = hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("S-003"), Kind: "gold", Amount: d("1")})
	assert.ErrorIs(t, err, shared.ErrValidation)

	assert.True(t, balance(t, f, "1100").Equal(d("130000")))
	assert.True(t, balance(t, f, "2100").Equal(d("20000")))
}

func TestLoanRepaymentSplitsPrincipalAndInterest(t *testing.T) {
	f, hooks := setup(t)
	ctx := context.Background()

	_, err := hooks.HandleLoanDisbursed(ctx, integration.LoanDisbursedEvent{Meta: meta("L-9"), MemberID: 3, Principal: d("1000000")})
	require.NoError(t, err)

	entries, err := hooks.HandleLoanRepayment(ctx, integration.LoanRepaidEvent{
		Meta: meta("L-9"), MemberID: 3, Installment: 1, Principal: d("83333.333"), Interest: d("15000"),
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "LOAN-PAY:L-9:1:P", entries[0].TxReference)
	assert.Equal(t, "LOAN-PAY:L-9:1:I", entries[1].TxReference)
	assert.True(t, entries[0].Amount.Equal(d("83333.33")), "amounts are rounded to cents")

	interestOnly, err := hooks.HandleLoanRepayment(ctx, integration.LoanRepaidEvent{Meta: meta("L-9"), Installment: 2, Interest: d("14000")})
	require.NoError(t, err)
	require.Len(t, interestOnly, 1)

	_, err = hooks.HandleLoanRepayment(ctx, integration.LoanRepaidEvent{Meta: meta("L-9"), Installment: 3})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = hooks.HandleLoanRepayment(ctx, integration.LoanRepaidEvent{Meta: meta("L-9"), Principal: d("1")})
	assert.ErrorIs(t, err, shared.ErrMissingField)

	assert.True(t, balance(t, f, "1200").Equal(d("916666.67")))
	assert.True(t, balance(t, f, "4100").Equal(d("29000")))
}

func TestRetailAndPPOB(t *testing.T) {
	f, hooks := setup(t)
	ctx := context.Background()

	sale, err := hooks.HandleRetailSale(ctx, integration.RetailSaleEvent{Meta: meta("R-1"), Total: d("25000"), Cost: d("18000")})
	require.NoError(t, err)
	require.Len(t, sale, 2)
	assert.Equal(t, "POS:R-1:COGS", sale[1].TxReference)

	ppob, err := hooks.HandlePPOB(ctx, integration.PPOBEvent{Meta: meta("P-1"), Product: "PLN-50K", Price: d("52500"), Cost: d("50000")})
	require.NoError(t, err)
	require.Len(t, ppob, 2)

	_, err = hooks.HandlePPOB(ctx, integration.PPOBEvent{Meta: meta("P-2"), Price: d("10"), Cost: d("11")})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	is, err := f.Reports.IncomeStatement(ctx, tenant, ledgertest.Date(2024, 3, 1), ledgertest.Date(2024, 3, 31), "")
	require.NoError(t, err)
	assert.True(t, is.NetProfit.Equal(d("9500")), is.NetProfit.String())

	retail, err := f.Reports.IncomeStatement(ctx, tenant, ledgertest.Date(2024, 3, 1), ledgertest.Date(2024, 3, 31), integration.UnitRetail)
	require.NoError(t, err)
	assert.True(t, retail.NetProfit.Equal(d("7000")))
}

func TestManualJournalAndMissingMeta(t *testing.T) {
	_, hooks := setup(t)
	ctx := context.Background()

	entry, err := hooks.HandleManualJournal(ctx, integration.ManualJournal{
		Meta: meta("ADJ-1"), Debit: accounts.ByCode("5200"), Credit: accounts.ByCode("1100"), Amount: d("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, "MJ:ADJ-1", entry.TxReference)
	assert.Equal(t, "MANUAL_JOURNAL", entry.TxType)

	_, err = hooks.HandleRetailSale(ctx, integration.RetailSaleEvent{Total: d("1")})
	assert.ErrorIs(t, err, shared.ErrMissingField)

	var nilHooks *integration.Hooks
	entries, err := nilHooks.HandleRetailSale(ctx, integration.RetailSaleEvent{})
	assert.NoError(t, err)
	assert.Nil(t, entries)
}

func TestEventRoutes(t *testing.T) {
	_, hooks := setup(t)
	router := chi.NewRouter()
	router.Route("/tenants/{tenant}", integration.NewHandler(nil, hooks).MountRoutes)

	send := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	body := `{"number":"S-77","date":"2024-03-10","member_id":4,"kind":"voluntary","amount":"5000"}`
	rec := send("/tenants/21/events/savings-deposits", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"SAV-DEP:S-77"`)

	rec = send("/tenants/21/events/savings-deposits", body)
	assert.Equal(t, http.StatusOK, rec.Code, "redelivery replays")

	rec = send("/tenants/21/events/retail-sales", `{"number":"R-2","date":"10/03/2024","total":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send("/tenants/21/events/manual-journals", `{"number":"ADJ-2","date":"2024-03-11","debit":{"code":"5200"},"credit":{"code":"1100"},"amount":"10"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send("/tenants/21/events/ppob-sales", `{"number":"P-3","date":"2024-04-02","price":"10","cost":"9"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "no open period")
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	f, hooks := setup(t)
	ctx := context.Background()

	_, err := hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("S-010"), Amount: d("100.005")})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = hooks.HandleLoanRepayment(ctx, integration.LoanRepaidEvent{
		Meta: meta("L-010"), MemberID: 3, Installment: 1, Principal: d("50000"), Interest: d("0.004"),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	assert.True(t, balance(t, f, "1100").Equal(d("50000")), "principal leg posts before the interest leg fails")
	assert.True(t, balance(t, f, "4100").IsZero())
}

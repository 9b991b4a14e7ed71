package periods_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/ledgertest"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

const tenant int64 = 5

func TestCreatePeriodRejectsOverlapAndBadRange(t *testing.T) {
	f := ledgertest.NewFixture(t, nil)
	ctx := context.Background()
	jan := f.OpenPeriod(t, tenant, "2024-01", ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31))
	assert.False(t, jan.IsClosed)

	_, err := f.Periods.CreatePeriod(ctx, periods.CreateInput{
		TenantID: tenant, Name: "mid", StartDate: ledgertest.Date(2024, 1, 31), EndDate: ledgertest.Date(2024, 2, 15),
	})
	assert.ErrorIs(t, err, shared.ErrPeriodOverlap)

	_, err = f.Periods.CreatePeriod(ctx, periods.CreateInput{
		TenantID: tenant, Name: "backwards", StartDate: ledgertest.Date(2024, 3, 31), EndDate: ledgertest.Date(2024, 3, 1),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidRange)

	_, err = f.Periods.CreatePeriod(ctx, periods.CreateInput{TenantID: tenant, Name: "no dates"})
	assert.ErrorIs(t, err, shared.ErrMissingField)

	// another tenant may use the same range
	other := f.OpenPeriod(t, tenant+1, "2024-01", ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31))
	assert.NotEqual(t, jan.ID, other.ID)

	single := f.OpenPeriod(t, tenant, "2024-02-01", ledgertest.Date(2024, 2, 1), ledgertest.Date(2024, 2, 1))
	assert.True(t, single.Covers(ledgertest.Date(2024, 2, 1)))
}

func TestGetOpenPeriod(t *testing.T) {
	f := ledgertest.NewFixture(t, nil)
	ctx := context.Background()
	jan := f.OpenPeriod(t, tenant, "2024-01", ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31))

	got, err := f.Periods.GetOpenPeriod(ctx, tenant, ledgertest.Date(2024, 1, 31).Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, jan.ID, got.ID)

	_, err = f.Periods.GetOpenPeriod(ctx, tenant, ledgertest.Date(2024, 2, 1))
	assert.ErrorIs(t, err, shared.ErrPeriodNotFound)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClosePeriodSequenceAndIdempotency(t *testing.T) {
	f := ledgertest.NewFixture(t, nil)
	ctx := context.Background()
	jan := f.OpenPeriod(t, tenant, "2024-01", ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31))
	feb := f.OpenPeriod(t, tenant, "2024-02", ledgertest.Date(2024, 2, 1), ledgertest.Date(2024, 2, 29))

	var hooked []int64
	f.Periods.OnClose(func(ctx context.Context, p periods.Period) error {
		hooked = append(hooked, p.ID)
		return errors.New("snapshot store down")
	})

	_, err := f.Periods.ClosePeriod(ctx, tenant, feb.ID, 9)
	assert.ErrorIs(t, err, shared.ErrPeriodSequence)
	assert.ErrorIs(t, err, shared.ErrPeriod)

	closed, err := f.Periods.ClosePeriod(ctx, tenant, jan.ID, 9)
	require.NoError(t, err, "hook failures are logged, not returned")
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, int64(9), *closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	again, err := f.Periods.ClosePeriod(ctx, tenant, jan.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, *closed.ClosedAt, *again.ClosedAt)
	assert.Equal(t, int64(9), *again.ClosedBy)

	_, err = f.Periods.ClosePeriod(ctx, tenant, feb.ID, 9)
	require.NoError(t, err)

	assert.Equal(t, []int64{jan.ID, feb.ID}, hooked)
	assert.Equal(t, []string{"period.create", "period.create", "period.close", "period.close"}, f.Audit.Actions())

	_, err = f.Periods.ClosePeriod(ctx, tenant, 999, 9)
	assert.ErrorIs(t, err, shared.ErrPeriodNotFound)

	list, err := f.Periods.ListPeriods(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, jan.ID, list[0].ID)
}

func TestCreatePeriodRejectsRangeBeforeClosedPeriod(t *testing.T) {
	f := ledgertest.NewFixture(t, nil)
	ctx := context.Background()
	mar := f.OpenPeriod(t, tenant, "2024-03", ledgertest.Date(2024, 3, 1), ledgertest.Date(2024, 3, 31))

	// open periods do not block back-dating
	feb := f.OpenPeriod(t, tenant, "2024-02", ledgertest.Date(2024, 2, 1), ledgertest.Date(2024, 2, 29))
	_, err := f.Periods.ClosePeriod(ctx, tenant, feb.ID, 1)
	require.NoError(t, err)
	_, err = f.Periods.ClosePeriod(ctx, tenant, mar.ID, 1)
	require.NoError(t, err)

	_, err = f.Periods.CreatePeriod(ctx, periods.CreateInput{
		TenantID: tenant, Name: "2024-01", StartDate: ledgertest.Date(2024, 1, 1), EndDate: ledgertest.Date(2024, 1, 31),
	})
	assert.ErrorIs(t, err, shared.ErrPeriodSequence)
	assert.ErrorContains(t, err, "2024-03")

	// other tenants and later ranges are unaffected
	f.OpenPeriod(t, tenant+1, "2024-01", ledgertest.Date(2024, 1, 1), ledgertest.Date(2024, 1, 31))
	apr := f.OpenPeriod(t, tenant, "2024-04", ledgertest.Date(2024, 4, 1), ledgertest.Date(2024, 4, 30))
	assert.False(t, apr.IsClosed)

	list, err := f.Periods.ListPeriods(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

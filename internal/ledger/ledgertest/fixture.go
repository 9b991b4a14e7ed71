package ledgertest

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/reports"
)

// Clock is a settable time source. Each call to Now advances it by Step.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	Step time.Duration
}

func NewClock(start time.Time) *Clock {
	return &Clock{t: start, Step: time.Millisecond}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.Step)
	return now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Fixture wires every ledger service over one in-memory store.
type Fixture struct {
	Store    *Store
	Audit    *AuditRecorder
	Clock    *Clock
	Accounts *accounts.Service
	Periods  *periods.Service
	Journal  *journal.Service
	Reports  *reports.Service
}

// NewFixture builds the services. cache may be nil.
func NewFixture(t testing.TB, cache *reports.Cache) *Fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := NewStore()
	clock := NewClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	store.now = clock.Now
	audit := &AuditRecorder{}

	acctSvc := accounts.NewService(store.Accounts(), audit, logger)
	acctSvc.WithNow(clock.Now)
	periodSvc := periods.NewService(store.Periods(), audit, logger)
	periodSvc.WithNow(clock.Now)
	journalSvc := journal.NewService(store.Journal(), acctSvc.Resolver(), audit, logger)
	journalSvc.WithNow(clock.Now)
	reportSvc := reports.NewService(acctSvc, journalSvc, periodSvc, store.Snapshots(), cache, logger)
	reportSvc.WithNow(clock.Now)

	journalSvc.Observe(reportSvc)
	acctSvc.Observe(reportSvc)
	periodSvc.OnClose(reportSvc.PeriodClosed)

	return &Fixture{
		Store:    store,
		Audit:    audit,
		Clock:    clock,
		Accounts: acctSvc,
		Periods:  periodSvc,
		Journal:  journalSvc,
		Reports:  reportSvc,
	}
}

// Date returns UTC midnight of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// OpenPeriod creates a period and fails the test on error.
func (f *Fixture) OpenPeriod(t testing.TB, tenantID int64, name string, start, end time.Time) periods.Period {
	t.Helper()
	p, err := f.Periods.CreatePeriod(context.Background(), periods.CreateInput{
		TenantID:  tenantID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(t, err)
	return p
}

// Seed loads the default chart for the tenant.
func (f *Fixture) Seed(t testing.TB, tenantID int64) {
	t.Helper()
	_, err := f.Accounts.SeedDefaults(context.Background(), tenantID, 0)
	require.NoError(t, err)
}

// Account returns the tenant's account with the given code.
func (f *Fixture) Account(t testing.TB, tenantID int64, code string) accounts.Account {
	t.Helper()
	a, err := f.Accounts.Resolve(context.Background(), tenantID, accounts.ByCode(code))
	require.NoError(t, err)
	return a
}

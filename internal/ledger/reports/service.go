// Package reports builds financial statements from ledger balances.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/balances"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

type AccountSource interface {
	ListAccounts(ctx context.Context, tenantID int64) ([]accounts.Account, error)
}

type EntrySource interface {
	ListEntries(ctx context.Context, filter journal.EntryFilter) ([]journal.Entry, error)
}

type PeriodSource interface {
	GetPeriod(ctx context.Context, tenantID, id int64) (periods.Period, error)
}

// Data is the raw material of a report: the chart, the entries in scope and the opening
// balance of each account.
type Data struct {
	TenantID         int64                     `json:"tenant_id"`
	Start            time.Time                 `json:"start"`
	End              time.Time                 `json:"end"`
	Unit             string                    `json:"unit,omitempty"`
	SnapshotPeriodID int64                     `json:"snapshot_period_id,omitempty"`
	Accounts         []accounts.Account        `json:"accounts"`
	Entries          []journal.Entry           `json:"entries"`
	Opening          map[int64]decimal.Decimal `json:"opening"`
}

// Balances folds the data into per-account balances.
func (d Data) Balances() balances.Result {
	return balances.Calculate(balances.Input{Accounts: d.Accounts, Entries: d.Entries, Opening: d.Opening})
}

// Service loads report data and renders statements, caching rendered output per tenant.
type Service struct {
	accounts  AccountSource
	entries   EntrySource
	periods   PeriodSource
	snapshots SnapshotStore
	cache     *Cache
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(accts AccountSource, entries EntrySource, prds PeriodSource, snapshots SnapshotStore, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		accounts:  accts,
		entries:   entries,
		periods:   prds,
		snapshots: snapshots,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetReportData returns the entries dated within [start, end] with zero openings.
func (s *Service) GetReportData(ctx context.Context, tenantID int64, start, end time.Time, unit string) (Data, error) {
	if tenantID == 0 {
		return Data{}, shared.MissingFields("tenant_id")
	}
	start, end = shared.DateOf(start), shared.DateOf(end)
	if start.After(end) {
		return Data{}, shared.ErrInvalidRange
	}
	data := Data{TenantID: tenantID, Start: start, End: end, Unit: unit, Opening: map[int64]decimal.Decimal{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.accounts.ListAccounts(gctx, tenantID)
		data.Accounts = list
		return err
	})
	g.Go(func() error {
		list, err := s.entries.ListEntries(gctx, journal.EntryFilter{TenantID: tenantID, StartDate: start, EndDate: end, Unit: unit})
		data.Entries = list
		return err
	})
	if err := g.Wait(); err != nil {
		return Data{}, err
	}
	return data, nil
}

// GetReportDataAsOf returns everything needed for balances as of the end of asOf. Without a
// unit filter the latest snapshot at or before asOf seeds the openings and only later entries
// are loaded; otherwise openings are account initial balances and entries start at genesis.
// A unit filter ignores snapshots and initial balances, both of which are tenant wide.
func (s *Service) GetReportDataAsOf(ctx context.Context, tenantID int64, asOf time.Time, unit string) (Data, error) {
	if tenantID == 0 {
		return Data{}, shared.MissingFields("tenant_id")
	}
	asOf = shared.DateOf(asOf)
	data := Data{TenantID: tenantID, End: asOf, Unit: unit}

	var (
		snap  Snapshot
		found bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.accounts.ListAccounts(gctx, tenantID)
		data.Accounts = list
		return err
	})
	if unit == "" && s.snapshots != nil {
		g.Go(func() error {
			var err error
			snap, found, err = s.snapshots.LatestSnapshot(gctx, tenantID, asOf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Data{}, err
	}

	data.Opening = make(map[int64]decimal.Decimal, len(data.Accounts))
	filter := journal.EntryFilter{TenantID: tenantID, EndDate: asOf, Unit: unit}
	if unit == "" {
		for _, a := range data.Accounts {
			data.Opening[a.ID] = a.InitialBalance
		}
	}
	if found {
		for id, bal := range snap.Balances {
			data.Opening[id] = bal
		}
		data.SnapshotPeriodID = snap.PeriodID
		filter.AfterDate = snap.EndDate
	}
	entries, err := s.entries.ListEntries(ctx, filter)
	if err != nil {
		return Data{}, err
	}
	data.Entries = entries
	return data, nil
}

// BalanceSheet renders the statement of financial position as of a date.
func (s *Service) BalanceSheet(ctx context.Context, tenantID int64, asOf time.Time, unit string) (BalanceSheet, error) {
	var out BalanceSheet
	err := s.cached(ctx, tenantID, &out, func(ctx context.Context) (any, error) {
		data, err := s.GetReportDataAsOf(ctx, tenantID, asOf, unit)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(tenantID, data.End, unit, data.Balances()), nil
	}, "balance-sheet", dateToken(asOf), unitToken(unit))
	return out, err
}

func (s *Service) IncomeStatement(ctx context.Context, tenantID int64, start, end time.Time, unit string) (IncomeStatement, error) {
	var out IncomeStatement
	err := s.cached(ctx, tenantID, &out, func(ctx context.Context) (any, error) {
		data, err := s.GetReportData(ctx, tenantID, start, end, unit)
		if err != nil {
			return nil, err
		}
		return BuildIncomeStatement(tenantID, data.Start, data.End, unit, data.Balances()), nil
	}, "income-statement", dateToken(start), dateToken(end), unitToken(unit))
	return out, err
}

func (s *Service) CashFlow(ctx context.Context, tenantID int64, start, end time.Time, unit string) (CashFlow, error) {
	var out CashFlow
	err := s.cached(ctx, tenantID, &out, func(ctx context.Context) (any, error) {
		begin, finish, period, err := s.rangeBalances(ctx, tenantID, start, end, unit)
		if err != nil {
			return nil, err
		}
		return BuildCashFlow(tenantID, shared.DateOf(start), shared.DateOf(end), unit, begin, finish, period), nil
	}, "cash-flow", dateToken(start), dateToken(end), unitToken(unit))
	return out, err
}

func (s *Service) EquityChanges(ctx context.Context, tenantID int64, start, end time.Time, unit string) (EquityChanges, error) {
	var out EquityChanges
	err := s.cached(ctx, tenantID, &out, func(ctx context.Context) (any, error) {
		begin, finish, period, err := s.rangeBalances(ctx, tenantID, start, end, unit)
		if err != nil {
			return nil, err
		}
		return BuildEquityChanges(tenantID, shared.DateOf(start), shared.DateOf(end), unit, begin, finish, period), nil
	}, "equity-changes", dateToken(start), dateToken(end), unitToken(unit))
	return out, err
}

func (s *Service) TrialBalance(ctx context.Context, tenantID int64, asOf time.Time, unit string) (TrialBalance, error) {
	var out TrialBalance
	err := s.cached(ctx, tenantID, &out, func(ctx context.Context) (any, error) {
		data, err := s.GetReportDataAsOf(ctx, tenantID, asOf, unit)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(tenantID, data.End, unit, data.Balances()), nil
	}, "trial-balance", dateToken(asOf), unitToken(unit))
	return out, err
}

// rangeBalances loads balances at the close of the day before start, at end, and the
// movement within the range.
func (s *Service) rangeBalances(ctx context.Context, tenantID int64, start, end time.Time, unit string) (begin, finish, period balances.Result, err error) {
	start, end = shared.DateOf(start), shared.DateOf(end)
	if start.After(end) {
		return begin, finish, period, shared.ErrInvalidRange
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.GetReportDataAsOf(gctx, tenantID, start.AddDate(0, 0, -1), unit)
		if err != nil {
			return err
		}
		begin = data.Balances()
		return nil
	})
	g.Go(func() error {
		data, err := s.GetReportDataAsOf(gctx, tenantID, end, unit)
		if err != nil {
			return err
		}
		finish = data.Balances()
		return nil
	})
	g.Go(func() error {
		data, err := s.GetReportData(gctx, tenantID, start, end, unit)
		if err != nil {
			return err
		}
		period = data.Balances()
		return nil
	})
	err = g.Wait()
	return begin, finish, period, err
}

// cached serves dest from the report cache. When Redis cannot hand out a key the report is
// computed directly.
func (s *Service) cached(ctx context.Context, tenantID int64, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, tenantID, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

// Invalidate drops every cached report of the tenant.
func (s *Service) Invalidate(ctx context.Context, tenantID int64) {
	if err := s.cache.Bump(ctx, tenantID); err != nil {
		s.logger.Warn("report cache bump failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
	}
}

// EntryPosted invalidates the tenant's cached reports after a posting.
func (s *Service) EntryPosted(ctx context.Context, entry journal.Entry) {
	s.Invalidate(ctx, entry.TenantID)
}

// AccountsChanged invalidates cached reports after a chart change.
func (s *Service) AccountsChanged(ctx context.Context, tenantID int64) {
	s.Invalidate(ctx, tenantID)
}

// PeriodClosed is registered as a period close hook.
func (s *Service) PeriodClosed(ctx context.Context, p periods.Period) error {
	_, err := s.snapshot(ctx, p)
	return err
}

// SnapshotPeriod writes the closing balances of a closed period. Writing twice is a no-op.
func (s *Service) SnapshotPeriod(ctx context.Context, tenantID, periodID int64) (Snapshot, error) {
	p, err := s.periods.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, p)
}

// SnapshotMissing writes snapshots for every closed period that lacks one and returns the
// number written. It stops at the first failure.
func (s *Service) SnapshotMissing(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	keys, err := s.snapshots.MissingSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	written := 0
	for _, key := range keys {
		if _, err := s.SnapshotPeriod(ctx, key.TenantID, key.PeriodID); err != nil {
			return written, fmt.Errorf("tenant %d period %d: %w", key.TenantID, key.PeriodID, err)
		}
		written++
	}
	return written, nil
}

func (s *Service) snapshot(ctx context.Context, p periods.Period) (Snapshot, error) {
	if s.snapshots == nil {
		return Snapshot{}, nil
	}
	if !p.IsClosed {
		return Snapshot{}, fmt.Errorf("%w: period %d is still open", shared.ErrValidation, p.ID)
	}
	data, err := s.GetReportDataAsOf(ctx, p.TenantID, p.EndDate, "")
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		TenantID: p.TenantID,
		PeriodID: p.ID,
		EndDate:  p.EndDate,
		TakenAt:  s.now().UTC(),
		Balances: data.Balances().Closing(),
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	s.logger.Info("period snapshot written",
		slog.Int64("tenant_id", p.TenantID),
		slog.Int64("period_id", p.ID),
		slog.Int("accounts", len(snap.Balances)))
	return snap, nil
}

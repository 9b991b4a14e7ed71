// Package ledgertest provides an in-memory ledger store for tests. Transactions take a single
// store-wide lock and roll back by restoring a copy of the state taken at begin.
package ledgertest

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/reports"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	internalShared "github.com/odyssey-erp/coopledger/internal/shared"
)

type state struct {
	accounts      map[int64]accounts.Account
	periods       map[int64]periods.Period
	entries       []journal.Entry
	snapshots     map[int64]reports.Snapshot
	nextAccountID int64
	nextPeriodID  int64
	nextEntryID   int64
}

func (s state) clone() state {
	out := s
	out.accounts = maps.Clone(s.accounts)
	out.periods = maps.Clone(s.periods)
	out.entries = append([]journal.Entry(nil), s.entries...)
	out.snapshots = maps.Clone(s.snapshots)
	return out
}

// Store keeps accounts, periods, entries and snapshots in memory.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time

	// InsertEntryErr, when set, fails every entry insert with it.
	InsertEntryErr error
}

func NewStore() *Store {
	return &Store{
		st: state{
			accounts:  make(map[int64]accounts.Account),
			periods:   make(map[int64]periods.Period),
			snapshots: make(map[int64]reports.Snapshot),
		},
		now: time.Now,
	}
}

// Accounts returns the store as an accounts.Repository.
func (s *Store) Accounts() accounts.Repository { return &accountRepo{store: s} }

// Periods returns the store as a periods.Repository.
func (s *Store) Periods() periods.Repository { return &periodRepo{store: s} }

// Journal returns the store as a journal.Repository.
func (s *Store) Journal() journal.Repository { return &journalRepo{store: s} }

// Snapshots returns the store as a reports.SnapshotStore.
func (s *Store) Snapshots() reports.SnapshotStore { return &snapshotRepo{store: s} }

// Entries returns a copy of every stored entry of the tenant in id order.
func (s *Store) Entries(tenantID int64) []journal.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []journal.Entry
	for _, e := range s.st.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}

// Tamper rewrites a stored entry in place, bypassing every rule.
func (s *Store) Tamper(id int64, fn func(*journal.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.entries {
		if s.st.entries[i].ID == id {
			fn(&s.st.entries[i])
			return
		}
	}
}

func (s *Store) tx(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.st.clone()
	if err := fn(&s.st); err != nil {
		s.st = saved
		return err
	}
	return nil
}

func (s *Store) read(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// --- accounts ---

func listAccounts(st *state, tenantID int64) []accounts.Account {
	var out []accounts.Account
	for _, a := range st.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func getAccount(st *state, tenantID, id int64) (accounts.Account, error) {
	a, ok := st.accounts[id]
	if !ok || a.TenantID != tenantID {
		return accounts.Account{}, fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, id)
	}
	return a, nil
}

func getAccountByCode(st *state, tenantID int64, code string) (accounts.Account, error) {
	for _, a := range st.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("%w: code %s", shared.ErrAccountNotFound, code)
}

func insertAccount(st *state, now time.Time, a accounts.Account) (accounts.Account, error) {
	if _, err := getAccountByCode(st, a.TenantID, a.Code); err == nil {
		return accounts.Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, a.Code)
	}
	st.nextAccountID++
	a.ID = st.nextAccountID
	a.CreatedAt = now
	a.UpdatedAt = now
	st.accounts[a.ID] = a
	return a, nil
}

type accountRepo struct{ store *Store }

type accountTx struct {
	st  *state
	now time.Time
}

func (r *accountRepo) ListAccounts(ctx context.Context, tenantID int64) (out []accounts.Account, err error) {
	r.store.read(func(st *state) { out = listAccounts(st, tenantID) })
	return out, nil
}

func (r *accountRepo) GetAccount(ctx context.Context, tenantID, id int64) (out accounts.Account, err error) {
	r.store.read(func(st *state) { out, err = getAccount(st, tenantID, id) })
	return out, err
}

func (r *accountRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.store.tx(func(st *state) error {
		return fn(ctx, &accountTx{st: st, now: r.store.now()})
	})
}

func (t *accountTx) GetAccount(ctx context.Context, tenantID, id int64) (accounts.Account, error) {
	return getAccount(t.st, tenantID, id)
}

func (t *accountTx) GetAccountByCode(ctx context.Context, tenantID int64, code string) (accounts.Account, error) {
	return getAccountByCode(t.st, tenantID, code)
}

func (t *accountTx) InsertAccountIfAbsent(ctx context.Context, a accounts.Account) (accounts.Account, bool, error) {
	if existing, err := getAccountByCode(t.st, a.TenantID, a.Code); err == nil {
		return existing, false, nil
	}
	created, err := insertAccount(t.st, t.now, a)
	return created, err == nil, err
}

func (t *accountTx) InsertAccount(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	return insertAccount(t.st, t.now, a)
}

func (t *accountTx) UpdateAccount(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	current, err := getAccount(t.st, a.TenantID, a.ID)
	if err != nil {
		return accounts.Account{}, err
	}
	current.Name = a.Name
	current.Description = a.Description
	current.IsActive = a.IsActive
	current.UpdatedAt = t.now
	t.st.accounts[current.ID] = current
	return current, nil
}

func (t *accountTx) SetAccountParent(ctx context.Context, tenantID, id, parentID int64) error {
	current, err := getAccount(t.st, tenantID, id)
	if err != nil {
		return err
	}
	current.ParentID = &parentID
	current.UpdatedAt = t.now
	t.st.accounts[id] = current
	return nil
}

// --- periods ---

func listPeriods(st *state, tenantID int64) []periods.Period {
	var out []periods.Period
	for _, p := range st.periods {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func getPeriod(st *state, tenantID, id int64) (periods.Period, error) {
	p, ok := st.periods[id]
	if !ok || p.TenantID != tenantID {
		return periods.Period{}, fmt.Errorf("%w: id %d", shared.ErrPeriodNotFound, id)
	}
	return p, nil
}

func findOpenPeriod(st *state, tenantID int64, date time.Time) (periods.Period, error) {
	date = shared.DateOf(date)
	for _, p := range listPeriods(st, tenantID) {
		if !p.IsClosed && p.Covers(date) {
			return p, nil
		}
	}
	return periods.Period{}, fmt.Errorf("%w: no open period on %s", shared.ErrPeriodNotFound, date.Format(time.DateOnly))
}

type periodRepo struct{ store *Store }

type periodTx struct {
	st  *state
	now time.Time
}

func (r *periodRepo) ListPeriods(ctx context.Context, tenantID int64) (out []periods.Period, err error) {
	r.store.read(func(st *state) { out = listPeriods(st, tenantID) })
	return out, nil
}

func (r *periodRepo) GetPeriod(ctx context.Context, tenantID, id int64) (out periods.Period, err error) {
	r.store.read(func(st *state) { out, err = getPeriod(st, tenantID, id) })
	return out, err
}

func (r *periodRepo) FindOpenPeriodByDate(ctx context.Context, tenantID int64, date time.Time) (out periods.Period, err error) {
	r.store.read(func(st *state) { out, err = findOpenPeriod(st, tenantID, date) })
	return out, err
}

func (r *periodRepo) WithTx(ctx context.Context, fn func(context.Context, periods.TxRepository) error) error {
	return r.store.tx(func(st *state) error {
		return fn(ctx, &periodTx{st: st, now: r.store.now()})
	})
}

func (t *periodTx) LockPeriods(ctx context.Context, tenantID int64) error { return nil }

func (t *periodTx) GetPeriodForUpdate(ctx context.Context, tenantID, id int64) (periods.Period, error) {
	return getPeriod(t.st, tenantID, id)
}

func (t *periodTx) FindOverlapping(ctx context.Context, tenantID int64, start, end time.Time) (periods.Period, bool, error) {
	for _, p := range listPeriods(t.st, tenantID) {
		if p.Overlaps(start, end) {
			return p, true, nil
		}
	}
	return periods.Period{}, false, nil
}

func (t *periodTx) HasOpenPeriodBefore(ctx context.Context, tenantID int64, start time.Time) (bool, error) {
	for _, p := range listPeriods(t.st, tenantID) {
		if !p.IsClosed && p.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (t *periodTx) LatestClosedAfter(ctx context.Context, tenantID int64, end time.Time) (periods.Period, bool, error) {
	var (
		latest periods.Period
		found  bool
	)
	for _, p := range listPeriods(t.st, tenantID) {
		if p.IsClosed && p.StartDate.After(end) && (!found || p.EndDate.After(latest.EndDate)) {
			latest, found = p, true
		}
	}
	return latest, found, nil
}

func (t *periodTx) InsertPeriod(ctx context.Context, p periods.Period) (periods.Period, error) {
	t.st.nextPeriodID++
	p.ID = t.st.nextPeriodID
	p.StartDate = shared.DateOf(p.StartDate)
	p.EndDate = shared.DateOf(p.EndDate)
	p.CreatedAt = t.now
	t.st.periods[p.ID] = p
	return p, nil
}

func (t *periodTx) MarkClosed(ctx context.Context, tenantID, id, actor int64, at time.Time) (periods.Period, error) {
	p, err := getPeriod(t.st, tenantID, id)
	if err != nil {
		return periods.Period{}, err
	}
	p.IsClosed = true
	p.ClosedAt = &at
	if actor != 0 {
		p.ClosedBy = &actor
	}
	t.st.periods[id] = p
	return p, nil
}

// --- journal ---

func getEntry(st *state, tenantID, id int64) (journal.Entry, error) {
	for _, e := range st.entries {
		if e.ID == id && e.TenantID == tenantID {
			return e, nil
		}
	}
	return journal.Entry{}, fmt.Errorf("%w: id %d", shared.ErrEntryNotFound, id)
}

type journalRepo struct{ store *Store }

type journalTx struct {
	accountTx
	store *Store
}

func (r *journalRepo) GetEntry(ctx context.Context, tenantID, id int64) (out journal.Entry, err error) {
	r.store.read(func(st *state) { out, err = getEntry(st, tenantID, id) })
	return out, err
}

func (r *journalRepo) ListEntries(ctx context.Context, filter journal.EntryFilter) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []journal.Entry
	r.store.read(func(st *state) {
		for _, e := range st.entries {
			if filter.Matches(e) {
				out = append(out, e)
			}
		}
	})
	if filter.Offset > 0 {
		out = out[min(filter.Offset, len(out)):]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *journalRepo) WalkChain(ctx context.Context, tenantID int64, fn func(journal.Entry) error) error {
	for _, e := range r.store.Entries(tenantID) {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *journalRepo) ListTenants(ctx context.Context) ([]int64, error) {
	seen := make(map[int64]struct{})
	var out []int64
	r.store.read(func(st *state) {
		for _, e := range st.entries {
			if _, ok := seen[e.TenantID]; !ok {
				seen[e.TenantID] = struct{}{}
				out = append(out, e.TenantID)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *journalRepo) WithTx(ctx context.Context, fn func(context.Context, journal.TxRepository) error) error {
	return r.store.tx(func(st *state) error {
		return fn(ctx, &journalTx{accountTx: accountTx{st: st, now: r.store.now()}, store: r.store})
	})
}

// LockChain is a no-op: the store lock already serialises transactions.
func (t *journalTx) LockChain(ctx context.Context, tenantID int64) error { return nil }

func (t *journalTx) ChainTail(ctx context.Context, tenantID int64) (journal.ChainTail, bool, error) {
	for i := len(t.st.entries) - 1; i >= 0; i-- {
		e := t.st.entries[i]
		if e.TenantID == tenantID {
			return journal.ChainTail{EntryID: e.ID, Hash: e.HashCurrent, CreatedAt: e.CreatedAt}, true, nil
		}
	}
	return journal.ChainTail{}, false, nil
}

func (t *journalTx) FindByReference(ctx context.Context, tenantID int64, reference string) (journal.Entry, bool, error) {
	for _, e := range t.st.entries {
		if e.TenantID == tenantID && e.TxReference == reference {
			return e, true, nil
		}
	}
	return journal.Entry{}, false, nil
}

func (t *journalTx) GetEntry(ctx context.Context, tenantID, id int64) (journal.Entry, error) {
	return getEntry(t.st, tenantID, id)
}

func (t *journalTx) FindOpenPeriodForShare(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	return findOpenPeriod(t.st, tenantID, date)
}

func (t *journalTx) InsertEntry(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	if t.store.InsertEntryErr != nil {
		return journal.Entry{}, t.store.InsertEntryErr
	}
	for _, existing := range t.st.entries {
		if existing.TenantID != e.TenantID {
			continue
		}
		if existing.TxReference == e.TxReference {
			return journal.Entry{}, fmt.Errorf("%w: %s", shared.ErrReferenceConflict, e.TxReference)
		}
		if existing.HashPrevious == e.HashPrevious {
			return journal.Entry{}, shared.Storage("ledgertest: insert", fmt.Errorf("chain fork at %s", e.HashPrevious))
		}
	}
	t.st.nextEntryID++
	e.ID = t.st.nextEntryID
	t.st.entries = append(t.st.entries, e)
	return e, nil
}

// --- snapshots ---

type snapshotRepo struct{ store *Store }

func (r *snapshotRepo) LatestSnapshot(ctx context.Context, tenantID int64, asOf time.Time) (out reports.Snapshot, found bool, err error) {
	asOf = shared.DateOf(asOf)
	r.store.read(func(st *state) {
		for _, snap := range st.snapshots {
			if snap.TenantID != tenantID || snap.EndDate.After(asOf) {
				continue
			}
			if !found || snap.EndDate.After(out.EndDate) {
				out, found = snap, true
			}
		}
	})
	if found {
		out.Balances = maps.Clone(out.Balances)
	}
	return out, found, nil
}

func (r *snapshotRepo) SaveSnapshot(ctx context.Context, snap reports.Snapshot) error {
	return r.store.tx(func(st *state) error {
		if _, ok := st.snapshots[snap.PeriodID]; ok {
			return nil
		}
		snap.EndDate = shared.DateOf(snap.EndDate)
		snap.Balances = maps.Clone(snap.Balances)
		st.snapshots[snap.PeriodID] = snap
		return nil
	})
}

func (r *snapshotRepo) MissingSnapshots(ctx context.Context) ([]reports.PeriodKey, error) {
	var out []reports.PeriodKey
	r.store.read(func(st *state) {
		for _, p := range st.periods {
			if _, ok := st.snapshots[p.ID]; p.IsClosed && !ok {
				out = append(out, reports.PeriodKey{TenantID: p.TenantID, PeriodID: p.ID})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].PeriodID < out[j].PeriodID
	})
	return out, nil
}

// --- audit ---

// AuditRecorder collects audit logs in memory.
type AuditRecorder struct {
	mu   sync.Mutex
	Logs []internalShared.AuditLog
}

func (a *AuditRecorder) Record(ctx context.Context, log internalShared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logs = append(a.Logs, log)
	return nil
}

// Actions returns the recorded actions in order.
func (a *AuditRecorder) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.Logs))
	for _, l := range a.Logs {
		out = append(out, l.Action)
	}
	return out
}

package periods

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	internalShared "github.com/odyssey-erp/coopledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// CloseHook runs after a period close commits. Failures are logged, never rolled back.
type CloseHook func(ctx context.Context, period Period) error

type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	hooks  []CloseHook
	now    func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnClose registers a hook invoked after every successful close.
func (s *Service) OnClose(hook CloseHook) {
	if hook != nil {
		s.hooks = append(s.hooks, hook)
	}
}

func (s *Service) ListPeriods(ctx context.Context, tenantID int64) ([]Period, error) {
	return s.repo.ListPeriods(ctx, tenantID)
}

func (s *Service) GetPeriod(ctx context.Context, tenantID, id int64) (Period, error) {
	return s.repo.GetPeriod(ctx, tenantID, id)
}

// GetOpenPeriod returns the open period covering date or ErrPeriodNotFound.
func (s *Service) GetOpenPeriod(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	return s.repo.FindOpenPeriodByDate(ctx, tenantID, date)
}

// CreatePeriod opens a new period. Periods of a tenant never overlap.
func (s *Service) CreatePeriod(ctx context.Context, input CreateInput) (Period, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.Validate(input); err != nil {
		return Period{}, err
	}
	var missing []string
	if input.StartDate.IsZero() {
		missing = append(missing, "StartDate")
	}
	if input.EndDate.IsZero() {
		missing = append(missing, "EndDate")
	}
	if len(missing) > 0 {
		return Period{}, shared.MissingFields(missing...)
	}
	start, end := shared.DateOf(input.StartDate), shared.DateOf(input.EndDate)
	if start.After(end) {
		return Period{}, shared.ErrInvalidRange
	}
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPeriods(ctx, input.TenantID); err != nil {
			return err
		}
		existing, found, err := tx.FindOverlapping(ctx, input.TenantID, start, end)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s (%s..%s)", shared.ErrPeriodOverlap, existing.Name,
				existing.StartDate.Format(time.DateOnly), existing.EndDate.Format(time.DateOnly))
		}
		// no new range may end before a closed period
		later, found, err := tx.LatestClosedAfter(ctx, input.TenantID, end)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s is already closed", shared.ErrPeriodSequence, later.Name)
		}
		created, err = tx.InsertPeriod(ctx, Period{TenantID: input.TenantID, Name: input.Name, StartDate: start, EndDate: end})
		return err
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, created, input.Actor, "period.create")
	return created, nil
}

// ClosePeriod closes the period irreversibly. Closing a closed period returns it unchanged.
// Every earlier period of the tenant must already be closed.
func (s *Service) ClosePeriod(ctx context.Context, tenantID, id, actor int64) (Period, error) {
	var (
		closed  Period
		already bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPeriods(ctx, tenantID); err != nil {
			return err
		}
		current, err := tx.GetPeriodForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current.IsClosed {
			closed, already = current, true
			return nil
		}
		open, err := tx.HasOpenPeriodBefore(ctx, tenantID, current.StartDate)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: close earlier periods before %s", shared.ErrPeriodSequence, current.Name)
		}
		closed, err = tx.MarkClosed(ctx, tenantID, id, actor, s.now().UTC())
		return err
	})
	if err != nil {
		return Period{}, err
	}
	if already {
		return closed, nil
	}
	s.logger.Info("period closed",
		slog.Int64("tenant_id", tenantID),
		slog.Int64("period_id", closed.ID),
		slog.String("name", closed.Name))
	s.record(ctx, closed, actor, "period.close")
	for _, hook := range s.hooks {
		if err := hook(ctx, closed); err != nil {
			s.logger.Error("period close hook failed",
				slog.Int64("tenant_id", tenantID),
				slog.Int64("period_id", closed.ID),
				slog.Any("error", err))
		}
	}
	return closed, nil
}

func (s *Service) record(ctx context.Context, p Period, actor int64, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		TenantID: p.TenantID,
		ActorID:  actor,
		Action:   action,
		Entity:   "accounting_period",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta: map[string]any{
			"name":  p.Name,
			"start": p.StartDate.Format(time.DateOnly),
			"end":   p.EndDate.Format(time.DateOnly),
		},
		At: s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

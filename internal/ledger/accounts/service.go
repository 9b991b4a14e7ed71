package accounts

import (
	"context"
	"errors"
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

// ChangeObserver is told when a tenant's chart changes in a way that affects reports.
type ChangeObserver interface {
	AccountsChanged(ctx context.Context, tenantID int64)
}

// Service implements the chart-of-accounts registry.
type Service struct {
	repo      Repository
	resolver  *Resolver
	audit     AuditPort
	observers []ChangeObserver
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, resolver: NewResolver(logger), audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Observe registers an observer for chart changes.
func (s *Service) Observe(o ChangeObserver) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

func (s *Service) changed(ctx context.Context, tenantID int64) {
	for _, o := range s.observers {
		o.AccountsChanged(ctx, tenantID)
	}
}

// Resolver exposes the ref resolver so the ledger engine shares auto-create rules.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	if tenantID == 0 {
		return nil, shared.MissingFields("TenantID")
	}
	return s.repo.ListAccounts(ctx, tenantID)
}

func (s *Service) GetAccount(ctx context.Context, tenantID, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, tenantID, id)
}

// CreateAccount registers a new account. Parent must be a header of the same tenant.
func (s *Service) CreateAccount(ctx context.Context, input CreateInput) (Account, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.Validate(input); err != nil {
		return Account{}, err
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, input.Type)
	}
	class := input.Classification
	if class == "" {
		class = input.Type.DefaultClassification()
	}
	if !class.Fits(input.Type) {
		return Account{}, fmt.Errorf("%w: %s for %s", shared.ErrInvalidClassification, class, input.Type)
	}
	if !input.InitialBalance.Equal(input.InitialBalance.Round(2)) {
		return Account{}, fmt.Errorf("%w: initial balance has more than two decimals", shared.ErrValidation)
	}
	if input.IsHeader && !input.InitialBalance.IsZero() {
		return Account{}, fmt.Errorf("%w: header accounts cannot carry an initial balance", shared.ErrValidation)
	}

	account := newAccount(input.TenantID, input.Code, input.Name, input.Type, class)
	account.Description = input.Description
	account.IsHeader = input.IsHeader
	account.InitialBalance = input.InitialBalance

	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			parent, err := tx.GetAccount(ctx, input.TenantID, *input.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return fmt.Errorf("%w: %d", shared.ErrInvalidParent, *input.ParentID)
				}
				return err
			}
			if !parent.IsHeader {
				return fmt.Errorf("%w: %s is not a header", shared.ErrInvalidParent, parent.Code)
			}
			account.ParentID = &parent.ID
		}
		inserted, err := tx.InsertAccount(ctx, account)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.changed(ctx, created.TenantID)
	s.record(ctx, created.TenantID, input.Actor, "account.create", created.ID, map[string]any{
		"code": created.Code,
		"type": string(created.Type),
	})
	return created, nil
}

// UpdateAccount changes name, description or the active flag. Code and type are immutable.
func (s *Service) UpdateAccount(ctx context.Context, tenantID, id int64, input UpdateInput) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if input.Code != nil && strings.TrimSpace(*input.Code) != current.Code {
			return fmt.Errorf("%w: code", shared.ErrImmutableField)
		}
		if input.Type != nil && *input.Type != current.Type {
			return fmt.Errorf("%w: type", shared.ErrImmutableField)
		}
		next := current
		if input.Name != nil {
			next.Name = strings.TrimSpace(*input.Name)
			if next.Name == "" {
				return shared.MissingFields("Name")
			}
		}
		if input.Description != nil {
			next.Description = *input.Description
		}
		if input.IsActive != nil {
			next.IsActive = *input.IsActive
		}
		updated, err = tx.UpdateAccount(ctx, next)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.changed(ctx, tenantID)
	s.record(ctx, tenantID, input.Actor, "account.update", id, map[string]any{
		"name":      updated.Name,
		"is_active": updated.IsActive,
	})
	return updated, nil
}

// SeedDefaults installs DefaultChart idempotently. Roots are inserted first, parents are
// wired in a second pass once every id exists.
func (s *Service) SeedDefaults(ctx context.Context, tenantID int64, actor int64) (SeedResult, error) {
	if tenantID == 0 {
		return SeedResult{}, shared.MissingFields("TenantID")
	}
	var result SeedResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = SeedResult{}
		byCode := make(map[string]Account, len(DefaultChart))
		for _, entry := range DefaultChart {
			candidate := newAccount(tenantID, entry.Code, entry.Name, entry.Type, entry.Classification)
			candidate.IsHeader = entry.IsHeader
			stored, created, err := tx.InsertAccountIfAbsent(ctx, candidate)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Existing++
			}
			byCode[entry.Code] = stored
		}
		for _, entry := range DefaultChart {
			if entry.ParentCode == "" {
				continue
			}
			child := byCode[entry.Code]
			parent, ok := byCode[entry.ParentCode]
			if !ok || child.ParentID != nil || !parent.IsHeader {
				continue
			}
			if err := tx.SetAccountParent(ctx, tenantID, child.ID, parent.ID); err != nil {
				return err
			}
			result.Linked++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.logger.Info("chart of accounts seeded",
		slog.Int64("tenant_id", tenantID),
		slog.Int("created", result.Created),
		slog.Int("existing", result.Existing),
		slog.Int("linked", result.Linked))
	if result.Created > 0 || result.Linked > 0 {
		s.changed(ctx, tenantID)
		s.record(ctx, tenantID, actor, "account.seed", 0, map[string]any{
			"created": result.Created,
			"linked":  result.Linked,
		})
	}
	return result, nil
}

// Resolve resolves ref in its own transaction.
func (s *Service) Resolve(ctx context.Context, tenantID int64, ref Ref) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = s.resolver.Resolve(ctx, tx, tenantID, ref)
		return err
	})
	return account, err
}

func (s *Service) record(ctx context.Context, tenantID, actor int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entityID := "chart"
	if id != 0 {
		entityID = strconv.FormatInt(id, 10)
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		TenantID: tenantID,
		ActorID:  actor,
		Action:   action,
		Entity:   "account",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// Resolver turns a Ref into a postable account, creating unknown codes on the fly.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver constructs a Resolver. A nil logger discards warnings.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{logger: logger}
}

// Resolve looks up ref for the tenant. ByCode refs that do not exist are created using the
// canonical chart, then the ref hint, then the leading-digit convention. The returned account
// is active and not a header.
func (r *Resolver) Resolve(ctx context.Context, store ResolveStore, tenantID int64, ref Ref) (Account, error) {
	if ref.IsZero() {
		return Account{}, shared.MissingFields("account")
	}
	if id, ok := ref.ID(); ok {
		account, err := store.GetAccount(ctx, tenantID, id)
		if err != nil {
			return Account{}, err
		}
		return account, postable(account)
	}
	code, _ := ref.Code()
	account, err := store.GetAccountByCode(ctx, tenantID, code)
	if err == nil {
		return account, postable(account)
	}
	if !errors.Is(err, shared.ErrAccountNotFound) {
		return Account{}, err
	}
	candidate, err := r.candidate(ctx, store, tenantID, ref)
	if err != nil {
		return Account{}, err
	}
	account, created, err := store.InsertAccountIfAbsent(ctx, candidate)
	if err != nil {
		return Account{}, err
	}
	if created {
		r.logger.Info("account auto-created",
			slog.Int64("tenant_id", tenantID),
			slog.String("code", account.Code),
			slog.String("type", string(account.Type)),
			slog.String("classification", string(account.Classification)))
	}
	return account, postable(account)
}

func (r *Resolver) candidate(ctx context.Context, store ResolveStore, tenantID int64, ref Ref) (Account, error) {
	code, _ := ref.Code()
	if entry, ok := LookupChartEntry(code); ok {
		account := newAccount(tenantID, entry.Code, entry.Name, entry.Type, entry.Classification)
		account.IsHeader = entry.IsHeader
		if entry.ParentCode != "" {
			if parent, err := store.GetAccountByCode(ctx, tenantID, entry.ParentCode); err == nil && parent.IsHeader {
				account.ParentID = &parent.ID
			}
		}
		return account, nil
	}
	if hint, ok := ref.Hint(); ok && hint.Type != "" {
		if !hint.Type.Valid() {
			return Account{}, fmt.Errorf("%w: %s (hint type %q)", shared.ErrUnknownAccountType, code, hint.Type)
		}
		class := hint.Classification
		if class == "" {
			class = hint.Type.DefaultClassification()
		}
		if !class.Fits(hint.Type) {
			return Account{}, fmt.Errorf("%w: %s for %s", shared.ErrInvalidClassification, class, hint.Type)
		}
		name := hint.Name
		if name == "" {
			name = code
		}
		return newAccount(tenantID, code, name, hint.Type, class), nil
	}
	typ, ok := inferTypeFromCode(code)
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrUnknownAccountType, code)
	}
	r.logger.Warn("account type inferred from code prefix",
		slog.Int64("tenant_id", tenantID),
		slog.String("code", code),
		slog.String("type", string(typ)))
	name := code
	if hint, ok := ref.Hint(); ok && hint.Name != "" {
		name = hint.Name
	}
	return newAccount(tenantID, code, name, typ, typ.DefaultClassification()), nil
}

func newAccount(tenantID int64, code, name string, typ AccountType, class Classification) Account {
	return Account{
		TenantID:       tenantID,
		Code:           code,
		Name:           name,
		Type:           typ,
		NormalBalance:  typ.NormalBalance(),
		IsActive:       true,
		Classification: class,
		InitialBalance: decimal.Zero,
	}
}

func postable(account Account) error {
	if err := account.Postable(); err != nil {
		return fmt.Errorf("%w: %s", err, account.Code)
	}
	return nil
}

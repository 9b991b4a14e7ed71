package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	internalShared "github.com/odyssey-erp/coopledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Observer is notified after an entry commits. Replays are not reported.
type Observer interface {
	EntryPosted(ctx context.Context, entry Entry)
}

// Metrics receives posting and verification outcomes.
type Metrics interface {
	ObservePosting(txType, outcome string)
	ObserveChainVerification(tenantID int64, violations int)
}

// Service is the ledger engine. It is the only writer of ledger_entries.
type Service struct {
	repo           Repository
	resolver       *accounts.Resolver
	audit          AuditPort
	metrics        Metrics
	observers      []Observer
	logger         *slog.Logger
	now            func() time.Time
	storageTimeout time.Duration
}

func NewService(repo Repository, resolver *accounts.Resolver, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if resolver == nil {
		resolver = accounts.NewResolver(logger)
	}
	return &Service{
		repo:           repo,
		resolver:       resolver,
		audit:          audit,
		logger:         logger,
		now:            time.Now,
		storageTimeout: 10 * time.Second,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithStorageTimeout bounds the insert issued after the hash is computed.
func (s *Service) WithStorageTimeout(d time.Duration) {
	if d > 0 {
		s.storageTimeout = d
	}
}

func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

// Observe registers an observer for committed entries.
func (s *Service) Observe(o Observer) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// RecordTransaction appends one double-entry row to the tenant chain. A repeated tx reference
// with the same accounts and amount returns the stored entry with Replayed set.
func (s *Service) RecordTransaction(ctx context.Context, input RecordInput) (Entry, error) {
	input = input.normalised()
	entry, err := s.record(ctx, input)
	if s.metrics != nil {
		outcome := shared.Category(err)
		if err == nil {
			outcome = "posted"
			if entry.Replayed {
				outcome = "replayed"
			}
		}
		s.metrics.ObservePosting(input.TxType, outcome)
	}
	if err != nil {
		if errors.Is(err, shared.ErrStorage) {
			s.logger.Error("ledger posting failed",
				slog.Int64("tenant_id", input.TenantID),
				slog.String("tx_reference", input.TxReference),
				slog.Any("error", err))
		}
		return Entry{}, err
	}
	if entry.Replayed {
		s.logger.Info("ledger posting replayed",
			slog.Int64("tenant_id", entry.TenantID),
			slog.Int64("entry_id", entry.ID),
			slog.String("tx_reference", entry.TxReference))
		return entry, nil
	}
	s.afterCommit(ctx, entry)
	return entry, nil
}

func (s *Service) record(ctx context.Context, input RecordInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	entryDate := shared.DateOf(input.EntryDate)
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockChain(ctx, input.TenantID); err != nil {
			return err
		}
		existing, found, err := tx.FindByReference(ctx, input.TenantID, input.TxReference)
		if err != nil {
			return err
		}
		if found {
			same, err := s.samePosting(ctx, tx, input, existing)
			if err != nil {
				return err
			}
			if !same {
				return fmt.Errorf("%w: %s", shared.ErrReferenceConflict, input.TxReference)
			}
			existing.Replayed = true
			entry = existing
			return nil
		}

		debit, err := s.resolver.Resolve(ctx, tx, input.TenantID, input.Debit)
		if err != nil {
			return fmt.Errorf("debit %s: %w", input.Debit, err)
		}
		credit, err := s.resolver.Resolve(ctx, tx, input.TenantID, input.Credit)
		if err != nil {
			return fmt.Errorf("credit %s: %w", input.Credit, err)
		}
		if debit.ID == credit.ID {
			return shared.ErrSameAccount
		}
		period, err := tx.FindOpenPeriodForShare(ctx, input.TenantID, entryDate)
		if err != nil {
			if errors.Is(err, shared.ErrPeriodNotFound) {
				return fmt.Errorf("%w: %s", shared.ErrPeriodClosed, entryDate.Format(time.DateOnly))
			}
			return err
		}
		tail, hasTail, err := tx.ChainTail(ctx, input.TenantID)
		if err != nil {
			return err
		}
		transactionID, err := uuid.NewV7()
		if err != nil {
			return shared.Storage("journal: transaction id", err)
		}

		candidate := Entry{
			TenantID:        input.TenantID,
			PeriodID:        period.ID,
			TransactionID:   transactionID,
			TxType:          input.TxType,
			TxReference:     input.TxReference,
			DebitAccountID:  debit.ID,
			CreditAccountID: credit.ID,
			Amount:          input.Amount,
			Description:     input.Description,
			Metadata:        input.Metadata,
			Unit:            input.Unit,
			EntryDate:       entryDate,
			Status:          StatusPosted,
			HashPrevious:    GenesisHash,
			CreatedBy:       input.Actor,
		}
		if hasTail {
			candidate.HashPrevious = tail.Hash
		}
		candidate.CreatedAt = NextTimestamp(s.now(), tail, hasTail)
		candidate.BookDate = shared.DateOf(candidate.CreatedAt)
		candidate.HashCurrent = candidate.ComputeHash()

		// From here on the write completes or aborts as a whole.
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storageTimeout)
		defer cancel()
		inserted, err := tx.InsertEntry(writeCtx, candidate)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) samePosting(ctx context.Context, store accounts.ResolveStore, input RecordInput, existing Entry) (bool, error) {
	if !existing.Amount.Equal(input.Amount) {
		return false, nil
	}
	for _, side := range []struct {
		ref accounts.Ref
		id  int64
	}{{input.Debit, existing.DebitAccountID}, {input.Credit, existing.CreditAccountID}} {
		if id, ok := side.ref.ID(); ok {
			if id != side.id {
				return false, nil
			}
			continue
		}
		code, _ := side.ref.Code()
		account, err := store.GetAccount(ctx, input.TenantID, side.id)
		if err != nil {
			return false, err
		}
		if account.Code != code {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) afterCommit(ctx context.Context, entry Entry) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			TenantID: entry.TenantID,
			ActorID:  entry.CreatedBy,
			Action:   "ledger.post",
			Entity:   "ledger_entry",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta: map[string]any{
				"tx_type":      entry.TxType,
				"tx_reference": entry.TxReference,
				"amount":       entry.Amount.StringFixed(2),
				"hash":         entry.HashCurrent,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Int64("entry_id", entry.ID), slog.Any("error", err))
		}
	}
	for _, o := range s.observers {
		o.EntryPosted(ctx, entry)
	}
}

// ReverseEntry posts the mirror image of an entry. The reversal is itself idempotent on the
// derived reference REV:<original reference>.
func (s *Service) ReverseEntry(ctx context.Context, input ReverseInput) (Entry, error) {
	if err := shared.Validate(input); err != nil {
		return Entry{}, err
	}
	original, err := s.repo.GetEntry(ctx, input.TenantID, input.EntryID)
	if err != nil {
		return Entry{}, err
	}
	if original.Status != StatusPosted {
		return Entry{}, fmt.Errorf("%w: entry %d is %s", shared.ErrValidation, original.ID, original.Status)
	}
	date := s.now()
	if input.EntryDate != nil {
		date = *input.EntryDate
	}
	description := "Reversal of " + original.TxReference
	if input.Reason != "" {
		description += ": " + input.Reason
	}
	return s.RecordTransaction(ctx, RecordInput{
		TenantID:    input.TenantID,
		TxType:      TxTypeReversal,
		TxReference: "REV:" + original.TxReference,
		Debit:       accounts.ByID(original.CreditAccountID),
		Credit:      accounts.ByID(original.DebitAccountID),
		Amount:      original.Amount,
		Description: description,
		EntryDate:   date,
		Actor:       input.Actor,
		Unit:        original.Unit,
		Metadata: map[string]any{
			"reverses": original.ID,
			"reason":   input.Reason,
		},
	})
}

// VerifyChain re-walks the tenant chain and recomputes every hash. It returns an
// *shared.IntegrityError listing all violations found.
func (s *Service) VerifyChain(ctx context.Context, tenantID int64) (VerifyReport, error) {
	if tenantID == 0 {
		return VerifyReport{}, shared.MissingFields("TenantID")
	}
	verifier := NewChainVerifier(tenantID)
	err := s.repo.WalkChain(ctx, tenantID, func(e Entry) error {
		verifier.Add(e)
		return nil
	})
	if err != nil {
		return VerifyReport{}, err
	}
	report, err := verifier.Result(s.now().UTC())
	var integrity *shared.IntegrityError
	if errors.As(err, &integrity) {
		for _, v := range integrity.Violations {
			s.logger.Error("ledger chain integrity violation",
				slog.Int64("tenant_id", tenantID),
				slog.Int64("entry_id", v.EntryID),
				slog.String("kind", string(v.Kind)),
				slog.String("expected", v.Expected),
				slog.String("actual", v.Actual))
		}
	}
	if s.metrics != nil {
		violations := 0
		if integrity != nil {
			violations = len(integrity.Violations)
		}
		s.metrics.ObserveChainVerification(tenantID, violations)
	}
	return report, err
}

// ListTenants returns every tenant that has at least one entry.
func (s *Service) ListTenants(ctx context.Context) ([]int64, error) {
	return s.repo.ListTenants(ctx)
}

func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	if filter.TenantID == 0 {
		return nil, shared.MissingFields("TenantID")
	}
	return s.repo.ListEntries(ctx, filter)
}

func (s *Service) GetEntry(ctx context.Context, tenantID, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, tenantID, id)
}

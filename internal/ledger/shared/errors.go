package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every ledger sentinel belongs to exactly one of them.
var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrPeriod marks postings or period operations blocked by period state.
	ErrPeriod = errors.New("ledger: period error")
	// ErrIntegrity marks a broken hash chain. Never auto-corrected.
	ErrIntegrity = errors.New("ledger: integrity violation")
	// ErrStorage marks transient infrastructure failures. Safe to retry with the same tx reference.
	ErrStorage = errors.New("ledger: storage error")
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("ledger: not found")
)

var (
	// ErrInvalidAmount indicates amount <= 0 or more than two decimals.
	ErrInvalidAmount = categorised(ErrValidation, "ledger: amount must be a positive value with at most two decimals")
	// ErrSameAccount indicates debit and credit resolve to one account.
	ErrSameAccount = categorised(ErrValidation, "ledger: debit and credit account must differ")
	// ErrMissingField indicates a required input field is empty.
	ErrMissingField = categorised(ErrValidation, "ledger: required field missing")
	// ErrAccountInactive indicates posting to a deactivated account.
	ErrAccountInactive = categorised(ErrValidation, "ledger: account inactive")
	// ErrAccountNotPostable indicates posting to a header account.
	ErrAccountNotPostable = categorised(ErrValidation, "ledger: header account cannot receive postings")
	// ErrDuplicateCode indicates the account code already exists for the tenant.
	ErrDuplicateCode = categorised(ErrValidation, "ledger: account code already exists")
	// ErrImmutableField indicates an attempt to change code, type or normal balance.
	ErrImmutableField = categorised(ErrValidation, "ledger: field is immutable")
	// ErrInvalidClassification indicates a classification that does not fit the account type.
	ErrInvalidClassification = categorised(ErrValidation, "ledger: classification does not match account type")
	// ErrInvalidParent indicates a parent outside the tenant or not a header.
	ErrInvalidParent = categorised(ErrValidation, "ledger: invalid parent account")
	// ErrReferenceConflict indicates a tx reference reused with a different payload.
	ErrReferenceConflict = categorised(ErrValidation, "ledger: tx reference already used for a different posting")
	// ErrPeriodOverlap indicates the requested range intersects an existing period.
	ErrPeriodOverlap = categorised(ErrValidation, "ledger: period overlaps existing range")
	// ErrInvalidRange indicates start after end.
	ErrInvalidRange = categorised(ErrValidation, "ledger: start date after end date")
	// ErrUnknownAccountType indicates an auto-created code whose type cannot be inferred.
	ErrUnknownAccountType = categorised(ErrValidation, "ledger: cannot infer account type for code")

	// ErrPeriodClosed indicates no open period covers the entry date.
	ErrPeriodClosed = categorised(ErrPeriod, "ledger: no open period covers entry date")
	// ErrPeriodSequence indicates periods would close out of date order: an
	// earlier period is still open, or a new period predates a closed one.
	ErrPeriodSequence = categorised(ErrPeriod, "ledger: period out of sequence")

	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = categorised(ErrNotFound, "ledger: account not found")
	// ErrPeriodNotFound indicates a missing period.
	ErrPeriodNotFound = categorised(ErrNotFound, "ledger: period not found")
	// ErrEntryNotFound indicates a missing ledger entry.
	ErrEntryNotFound = categorised(ErrNotFound, "ledger: entry not found")
)

type categoryError struct {
	category error
	msg      string
}

func categorised(category error, msg string) error {
	return &categoryError{category: category, msg: msg}
}

func (e *categoryError) Error() string { return e.msg }

func (e *categoryError) Unwrap() error { return e.category }

// Storage wraps an infrastructure failure so callers can match ErrStorage.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// MissingFields reports the named fields as absent.
func MissingFields(fields ...string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(fields, ", "))
}

// ViolationKind names the way a chain entry failed verification.
type ViolationKind string

const (
	ViolationHashMismatch        ViolationKind = "HASH_MISMATCH"
	ViolationBrokenLink          ViolationKind = "BROKEN_LINK"
	ViolationTamperedPredecessor ViolationKind = "TAMPERED_PREDECESSOR"
)

// Violation describes one failed check during chain verification.
type Violation struct {
	EntryID  int64         `json:"entry_id"`
	Kind     ViolationKind `json:"kind"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
}

// IntegrityError is returned by chain verification. Requires manual audit.
type IntegrityError struct {
	TenantID   int64
	Violations []Violation
}

func (e *IntegrityError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("ledger: tenant %d: integrity violation", e.TenantID)
	}
	first := e.Violations[0]
	return fmt.Sprintf("ledger: tenant %d: %d integrity violation(s), first at entry %d (%s)",
		e.TenantID, len(e.Violations), first.EntryID, first.Kind)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// ViolationsFor returns the violations recorded against one entry.
func (e *IntegrityError) ViolationsFor(entryID int64) []Violation {
	var out []Violation
	for _, v := range e.Violations {
		if v.EntryID == entryID {
			out = append(out, v)
		}
	}
	return out
}

// Category names the category of err for metrics and logs.
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPeriod):
		return "period"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return "unknown"
}

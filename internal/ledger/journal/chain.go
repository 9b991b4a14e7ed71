package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// ComputeHash returns the chain hash of an entry:
// sha256(prev | amount | debit | credit | reference | created_at), hex encoded.
func ComputeHash(prev string, amount decimal.Decimal, debitID, creditID int64, reference string, createdAt time.Time) string {
	payload := strings.Join([]string{
		prev,
		amount.StringFixed(2),
		strconv.FormatInt(debitID, 10),
		strconv.FormatInt(creditID, 10),
		reference,
		createdAt.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ComputeHash recomputes the hash from the entry's stored fields.
func (e Entry) ComputeHash() string {
	return ComputeHash(e.HashPrevious, e.Amount, e.DebitAccountID, e.CreditAccountID, e.TxReference, e.CreatedAt)
}

// NextTimestamp returns the write timestamp for a new link: now at microsecond precision,
// strictly after the predecessor.
func NextTimestamp(now time.Time, tail ChainTail, hasTail bool) time.Time {
	ts := now.UTC().Truncate(time.Microsecond)
	if hasTail && !ts.After(tail.CreatedAt) {
		ts = tail.CreatedAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return ts
}

// ChainVerifier walks entries in id order and collects every violation.
type ChainVerifier struct {
	tenantID     int64
	storedPrev   string
	computedPrev string
	count        int
	violations   []shared.Violation
}

func NewChainVerifier(tenantID int64) *ChainVerifier {
	return &ChainVerifier{tenantID: tenantID, storedPrev: GenesisHash, computedPrev: GenesisHash}
}

// Add checks the next entry of the chain.
func (v *ChainVerifier) Add(e Entry) {
	v.count++
	own := e.ComputeHash()
	if own != e.HashCurrent {
		v.violations = append(v.violations, shared.Violation{
			EntryID: e.ID, Kind: shared.ViolationHashMismatch, Expected: own, Actual: e.HashCurrent,
		})
	}
	switch {
	case e.HashPrevious != v.storedPrev:
		v.violations = append(v.violations, shared.Violation{
			EntryID: e.ID, Kind: shared.ViolationBrokenLink, Expected: v.storedPrev, Actual: e.HashPrevious,
		})
	case v.computedPrev != v.storedPrev:
		// The link matches the stored predecessor, but that predecessor no longer hashes to it.
		v.violations = append(v.violations, shared.Violation{
			EntryID: e.ID, Kind: shared.ViolationTamperedPredecessor, Expected: v.computedPrev, Actual: e.HashPrevious,
		})
	}
	v.storedPrev = e.HashCurrent
	v.computedPrev = own
}

// Result returns the report for a clean chain or an *shared.IntegrityError.
func (v *ChainVerifier) Result(at time.Time) (VerifyReport, error) {
	if len(v.violations) > 0 {
		return VerifyReport{}, &shared.IntegrityError{TenantID: v.tenantID, Violations: v.violations}
	}
	return VerifyReport{TenantID: v.tenantID, Entries: v.count, Head: v.storedPrev, VerifiedAt: at}, nil
}

// VerifyEntries checks a complete chain held in memory.
func VerifyEntries(tenantID int64, entries []Entry, at time.Time) (VerifyReport, error) {
	v := NewChainVerifier(tenantID)
	for _, e := range entries {
		v.Add(e)
	}
	return v.Result(at)
}

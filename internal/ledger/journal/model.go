package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a stored ledger entry. The engine only writes posted entries; void is reserved
// for rows flagged by an external audit and is excluded from balances.
type Status string

const (
	StatusPosted Status = "posted"
	StatusVoid   Status = "void"
)

// GenesisHash is the hash_previous of a tenant's first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// TxTypeReversal marks entries created by ReverseEntry.
const TxTypeReversal = "REVERSAL"

// Entry is one immutable, hash-chained ledger row.
type Entry struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	PeriodID        int64           `json:"period_id"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	TxType          string          `json:"tx_type"`
	TxReference     string          `json:"tx_reference"`
	DebitAccountID  int64           `json:"account_debit"`
	CreditAccountID int64           `json:"account_credit"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Unit            string          `json:"unit,omitempty"`
	EntryDate       time.Time       `json:"entry_date"`
	BookDate        time.Time       `json:"book_date"`
	Status          Status          `json:"status"`
	HashPrevious    string          `json:"hash_previous"`
	HashCurrent     string          `json:"hash_current"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`

	// Replayed is set when RecordTransaction matched an existing reference.
	Replayed bool `json:"replayed,omitempty"`
}

// ChainTail is the newest link of a tenant chain.
type ChainTail struct {
	EntryID   int64
	Hash      string
	CreatedAt time.Time
}

// VerifyReport summarises a clean chain walk.
type VerifyReport struct {
	TenantID   int64     `json:"tenant_id"`
	Entries    int       `json:"entries"`
	Head       string    `json:"head"`
	VerifiedAt time.Time `json:"verified_at"`
}

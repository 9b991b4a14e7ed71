package journal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

func chainOf(t *testing.T, n int) []Entry {
	t.Helper()
	prev := GenesisHash
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e := Entry{
			ID:              int64(i + 1),
			TenantID:        1,
			TxReference:     "REF-" + string(rune('A'+i)),
			DebitAccountID:  10,
			CreditAccountID: 20,
			Amount:          decimal.NewFromInt(int64(100 * (i + 1))),
			HashPrevious:    prev,
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
		}
		e.HashCurrent = e.ComputeHash()
		prev = e.HashCurrent
		out = append(out, e)
	}
	return out
}

func TestComputeHashIsStable(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC)
	h1 := ComputeHash(GenesisHash, decimal.RequireFromString("100000"), 1, 2, "SAV-1", at)
	h2 := ComputeHash(GenesisHash, decimal.RequireFromString("100000.00"), 1, 2, "SAV-1", at.In(time.FixedZone("WIB", 7*3600)))
	assert.Equal(t, h1, h2, "amount scale and zone must not change the hash")
	assert.Len(t, h1, 64)

	h3 := ComputeHash(GenesisHash, decimal.RequireFromString("100000.01"), 1, 2, "SAV-1", at)
	assert.NotEqual(t, h1, h3)
}

func TestNextTimestampStrictlyIncreases(t *testing.T) {
	tailAt := time.Date(2024, 1, 1, 0, 0, 0, 5000, time.UTC)
	tail := ChainTail{EntryID: 1, Hash: "x", CreatedAt: tailAt}

	earlier := tailAt.Add(-time.Hour)
	got := NextTimestamp(earlier, tail, true)
	assert.True(t, got.After(tailAt))
	assert.Equal(t, tailAt.Add(time.Microsecond), got)

	later := tailAt.Add(time.Second + 999)
	got = NextTimestamp(later, tail, true)
	assert.Equal(t, later.Truncate(time.Microsecond), got)

	got = NextTimestamp(earlier, ChainTail{}, false)
	assert.Equal(t, earlier.Truncate(time.Microsecond), got)
}

func TestVerifyEntriesCleanChain(t *testing.T) {
	entries := chainOf(t, 3)
	at := time.Now()
	report, err := VerifyEntries(1, entries, at)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, entries[2].HashCurrent, report.Head)
	assert.Equal(t, GenesisHash, entries[0].HashPrevious)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].HashCurrent, entries[i].HashPrevious)
	}
}

func TestVerifyEntriesEmptyChain(t *testing.T) {
	report, err := VerifyEntries(1, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Entries)
	assert.Equal(t, GenesisHash, report.Head)
}

func TestVerifyEntriesDetectsTamperedAmount(t *testing.T) {
	entries := chainOf(t, 3)
	entries[0].Amount = decimal.NewFromInt(999)

	_, err := VerifyEntries(1, entries, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrIntegrity))

	var integrity *shared.IntegrityError
	require.True(t, errors.As(err, &integrity))
	first := integrity.ViolationsFor(entries[0].ID)
	require.Len(t, first, 1)
	assert.Equal(t, shared.ViolationHashMismatch, first[0].Kind)

	second := integrity.ViolationsFor(entries[1].ID)
	require.Len(t, second, 1)
	assert.Equal(t, shared.ViolationTamperedPredecessor, second[0].Kind)
	assert.Empty(t, integrity.ViolationsFor(entries[2].ID))
}

func TestVerifyEntriesDetectsRewrittenLink(t *testing.T) {
	entries := chainOf(t, 3)
	entries[1].HashPrevious = strings.Repeat("f", 64)
	entries[1].HashCurrent = entries[1].ComputeHash()

	_, err := VerifyEntries(1, entries, time.Now())
	var integrity *shared.IntegrityError
	require.True(t, errors.As(err, &integrity))
	second := integrity.ViolationsFor(entries[1].ID)
	require.Len(t, second, 1)
	assert.Equal(t, shared.ViolationBrokenLink, second[0].Kind)
	// entry 3 still points at the old hash of entry 2.
	third := integrity.ViolationsFor(entries[2].ID)
	require.Len(t, third, 1)
	assert.Equal(t, shared.ViolationBrokenLink, third[0].Kind)
	assert.Empty(t, integrity.ViolationsFor(entries[0].ID))
}

package accounts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefSame(t *testing.T) {
	assert.True(t, ByCode("1100").Same(ByCode(" 1100 ")))
	assert.True(t, ByID(4).Same(ByID(4)))
	assert.False(t, ByID(4).Same(ByCode("1100")), "mixed refs are compared after resolution")
	assert.False(t, Ref{}.Same(Ref{}))
	assert.False(t, ByCode("1100").Same(ByCode("1110")))
}

func TestRefJSON(t *testing.T) {
	var ref Ref
	require.NoError(t, json.Unmarshal([]byte(`{"code":"4100","hint":{"type":"income"}}`), &ref))
	code, ok := ref.Code()
	assert.True(t, ok)
	assert.Equal(t, "4100", code)
	hint, ok := ref.Hint()
	require.True(t, ok)
	assert.Equal(t, TypeIncome, hint.Type)

	require.NoError(t, json.Unmarshal([]byte(`{"id":12}`), &ref))
	id, ok := ref.ID()
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)
	_, ok = ref.Code()
	assert.False(t, ok)

	assert.Error(t, json.Unmarshal([]byte(`{"id":1,"code":"1100"}`), &ref))
	assert.Error(t, json.Unmarshal([]byte(`{"id":-3}`), &ref))

	raw, err := json.Marshal(ByCode("2100"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"2100"}`, string(raw))
}

func TestInferTypeFromCode(t *testing.T) {
	cases := map[string]AccountType{
		"1999": TypeAsset,
		"2999": TypeLiability,
		"3999": TypeEquity,
		"4999": TypeIncome,
		"5999": TypeExpense,
		"8100": TypeExpense,
	}
	for code, want := range cases {
		got, ok := inferTypeFromCode(code)
		assert.True(t, ok, code)
		assert.Equal(t, want, got, code)
	}
	_, ok := inferTypeFromCode("X-100")
	assert.False(t, ok)
	_, ok = inferTypeFromCode("0100")
	assert.False(t, ok)
}

func TestDefaultChartIsConsistent(t *testing.T) {
	seen := make(map[string]ChartEntry)
	for _, entry := range DefaultChart {
		_, dup := seen[entry.Code]
		require.False(t, dup, entry.Code)
		assert.True(t, entry.Classification.Fits(entry.Type), entry.Code)
		if entry.ParentCode != "" {
			parent, ok := seen[entry.ParentCode]
			require.True(t, ok, "parent of %s must precede it", entry.Code)
			assert.True(t, parent.IsHeader)
		}
		seen[entry.Code] = entry
	}
}

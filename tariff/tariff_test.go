package tariff_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/tariff"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "LK04", tariff.Normalize(" lk04 "))
	assert.Equal(t, "LK20.2", tariff.Normalize("lk20.2"))
	assert.Equal(t, "", tariff.Normalize("  "))
}

func TestLookup_CaseInsensitive(t *testing.T) {
	entry, ok := tariff.Default().Lookup("lk04")
	require.True(t, ok)
	assert.Equal(t, "LK04", entry.Code)
	assert.Equal(t, "Grosse Koerperpflege", entry.Name)
	assert.True(t, entry.UnitPrice.Equal(decimal.RequireFromString("34.01")))
	assert.True(t, entry.SurchargeRate.Equal(decimal.RequireFromString("0.78")))
}

func TestLookup_UnknownCode_NotFound(t *testing.T) {
	// A miss is a normal outcome during manual entry, never an error.
	_, ok := tariff.Default().Lookup("ZZZ99")
	assert.False(t, ok)
}

func TestNewTable_LastEntryWinsOnDuplicate(t *testing.T) {
	table := tariff.NewTable([]tariff.Entry{
		{Code: "x1", UnitPrice: decimal.RequireFromString("1.00")},
		{Code: "X1", UnitPrice: decimal.RequireFromString("2.00")},
	})

	entry, ok := table.Lookup("x1")
	require.True(t, ok)
	assert.True(t, entry.UnitPrice.Equal(decimal.RequireFromString("2.00")))
	assert.Len(t, table.Entries(), 1)
}

func TestDefault_CatalogComplete(t *testing.T) {
	entries := tariff.Default().Entries()
	assert.Len(t, entries, 26)
	for _, e := range entries {
		assert.True(t, e.UnitPrice.IsPositive(), "%s has no price", e.Code)
		assert.False(t, e.SurchargeRate.IsNegative(), "%s has negative AUB rate", e.Code)
	}
}

func TestAllowanceForGrade(t *testing.T) {
	cases := map[int]string{
		2: "796.00",
		3: "1497.00",
		4: "1859.00",
		5: "2299.00",
	}
	for grade, want := range cases {
		a, ok := tariff.AllowanceForGrade(grade)
		require.True(t, ok, "grade %d", grade)
		assert.True(t, a.Equal(decimal.RequireFromString(want)), "grade %d", grade)
	}

	_, ok := tariff.AllowanceForGrade(1)
	assert.False(t, ok)
}

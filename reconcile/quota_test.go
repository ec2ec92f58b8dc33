package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/reconcile"
)

func TestQuotaIndex_MonthlyFigureWins(t *testing.T) {
	// GIVEN: A row with both weekly and monthly figures
	// WHEN: Building the index
	// THEN: The explicit monthly figure is used as-is

	idx, err := reconcile.BuildQuotaIndex([]reconcile.QuotaRow{
		{Code: "LK04", PerWeek: qty(3), PerMonth: qty(8)},
	})
	require.NoError(t, err)

	allowed, ok := idx.AllowedMonthly("LK04")
	require.True(t, ok)
	decEqual(t, "8", allowed)
}

func TestQuotaIndex_WeeklyConvertedWithFloor(t *testing.T) {
	// GIVEN: Weekly-only rows
	// WHEN: Building the index
	// THEN: monthly = floor(weekly x 4.33)

	idx, err := reconcile.BuildQuotaIndex([]reconcile.QuotaRow{
		{Code: "LK02", PerWeek: qty(7)}, // 30.31 -> 30
		{Code: "LK05", PerWeek: qty(1)}, // 4.33 -> 4
	})
	require.NoError(t, err)

	allowed, ok := idx.AllowedMonthly("LK02")
	require.True(t, ok)
	decEqual(t, "30", allowed)

	allowed, ok = idx.AllowedMonthly("LK05")
	require.True(t, ok)
	decEqual(t, "4", allowed)
}

func TestQuotaIndex_LookupIsCaseInsensitive(t *testing.T) {
	idx, err := reconcile.BuildQuotaIndex([]reconcile.QuotaRow{
		{Code: "lk20.2", PerMonth: qty(12)},
	})
	require.NoError(t, err)

	allowed, ok := idx.AllowedMonthly("LK20.2")
	require.True(t, ok)
	decEqual(t, "12", allowed)
}

func TestQuotaIndex_LastRowWinsOnDuplicateCode(t *testing.T) {
	idx, err := reconcile.BuildQuotaIndex([]reconcile.QuotaRow{
		{Code: "LK04", PerMonth: qty(8)},
		{Code: "lk04", PerMonth: qty(5)},
	})
	require.NoError(t, err)

	allowed, ok := idx.AllowedMonthly("LK04")
	require.True(t, ok)
	decEqual(t, "5", allowed)
	assert.Equal(t, 1, idx.Len())
}

func TestQuotaIndex_ZeroAndEmptyRowsDropped(t *testing.T) {
	// GIVEN: Rows with no positive quantity, an empty code, and a
	//        duplicate that zeroes out an earlier entry
	// WHEN: Building the index
	// THEN: None of them are indexed

	idx, err := reconcile.BuildQuotaIndex([]reconcile.QuotaRow{
		{Code: "LK04", PerMonth: qty(8)},
		{Code: "LK04"}, // later zero row wins: code drops out
		{Code: "LK05"},
		{Code: ""},
	})
	require.NoError(t, err)

	_, ok := idx.AllowedMonthly("LK04")
	assert.False(t, ok)
	_, ok = idx.AllowedMonthly("LK05")
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())
}

func TestQuotaIndex_NegativeQuantityRejected(t *testing.T) {
	_, err := reconcile.BuildQuotaIndex([]reconcile.QuotaRow{
		{Code: "LK04", PerMonth: qty(-1)},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrInvalidQuotaRow)
	assert.True(t, reconcile.IsClientError(err))
}

func TestQuotaIndex_UnknownCodeNotFound(t *testing.T) {
	idx, err := reconcile.BuildQuotaIndex(nil)
	require.NoError(t, err)

	_, ok := idx.AllowedMonthly("LK99")
	assert.False(t, ok)
}

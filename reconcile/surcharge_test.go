package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/reconcile"
	"github.com/warp/billing-engine/tariff"
)

func TestGenerateSurcharges_OnePerEligibleLine(t *testing.T) {
	// GIVEN: A line with a surcharge rate, one without, and one unknown code
	// WHEN: Generating surcharges
	// THEN: Exactly one AUB line, for the eligible code, at its quantity

	lines := []reconcile.DeliveredLine{
		line("A", 4, "10.00"),     // rate 0.50
		line("B", 2, "20.00"),     // rate 0
		line("ZZZ99", 3, "10.00"), // not in catalog: skipped silently
	}
	out := reconcile.GenerateSurcharges(lines, testRates())

	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].OwningCode)
	decEqual(t, "4", out[0].Quantity)
	decEqual(t, "2.00", out[0].Amount)
	assert.Equal(t, "Ausbildungsumlage zu A", out[0].Description)
}

func TestGenerateSurcharges_SkipsSurchargeAndZeroLines(t *testing.T) {
	aub := line("A", 2, "0.50")
	aub.IsSurcharge = true

	out := reconcile.GenerateSurcharges([]reconcile.DeliveredLine{
		aub,
		line("A", 0, "10.00"),
	}, testRates())

	assert.Empty(t, out)
}

func TestGenerateSurcharges_PreservesInputOrder(t *testing.T) {
	// Order governs display, so it must match the input line order.
	out := reconcile.GenerateSurcharges([]reconcile.DeliveredLine{
		tariffLine(t, "LK04", 8),
		tariffLine(t, "LK02", 3),
		tariffLine(t, "LK06", 1),
	}, tariff.Default())

	require.Len(t, out, 3)
	assert.Equal(t, "LK04", out[0].OwningCode)
	assert.Equal(t, "LK02", out[1].OwningCode)
	assert.Equal(t, "LK06", out[2].OwningCode)
}

func TestGenerateSurcharges_UsesTruncatedQuantityThroughReconcile(t *testing.T) {
	// GIVEN: LK04 (AUB 0.78) approved at 8, delivered 10
	// WHEN: Reconciling
	// THEN: Payer AUB is computed at 8 units, private AUB at the 2 excess

	result, err := reconcile.Reconcile(reconcile.Input{
		QuotaRows: []reconcile.QuotaRow{monthlyQuota("LK04", 8)},
		Lines:     []reconcile.DeliveredLine{tariffLine(t, "LK04", 10)},
	})
	require.NoError(t, err)

	require.Len(t, result.PayerSurcharges, 1)
	decEqual(t, "8", result.PayerSurcharges[0].Quantity)
	decEqual(t, "6.24", result.PayerSurcharges[0].Amount)

	require.Len(t, result.PrivateSurcharges, 1)
	decEqual(t, "2", result.PrivateSurcharges[0].Quantity)
	decEqual(t, "1.56", result.PrivateSurcharges[0].Amount)
}

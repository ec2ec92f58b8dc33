package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/reconcile"
)

// =============================================================================
// PAYER INVOICE
// =============================================================================

func TestPayerTotals_AllowanceDeducted(t *testing.T) {
	// GIVEN: Approved services worth 500.00, allowance 100.00
	// WHEN: Computing the payer invoice
	// THEN: 500.00 + 16.90 flat - 100.00 = 416.90

	lines := []reconcile.ClassifiedLine{
		{DeliveredLine: line("A", 50, "10.00"), Approved: true},
	}
	totals := reconcile.ComputePayerTotals(lines, nil, reconcile.FlatSurchargeRate, price("100.00"))

	decEqual(t, "500.00", totals.Subtotal)
	decEqual(t, "16.90", totals.FlatSurcharge)
	decEqual(t, "516.90", totals.GrossTotal)
	decEqual(t, "416.90", totals.Payable)
	assert.False(t, totals.AllowanceExceeded)
}

func TestPayerTotals_AllowanceExceedsTotal_OverrideFires(t *testing.T) {
	// GIVEN: Approved subtotal 100.00, allowance 1497.00 (care grade 3)
	// WHEN: Computing the payer invoice
	// THEN: 3.38 flat surcharge, gross 103.38 < allowance, so the payer is
	//       billed exactly the flat surcharge rather than zero

	lines := []reconcile.ClassifiedLine{
		{DeliveredLine: line("A", 10, "10.00"), Approved: true},
	}
	totals := reconcile.ComputePayerTotals(lines, nil, reconcile.FlatSurchargeRate, price("1497.00"))

	decEqual(t, "3.38", totals.FlatSurcharge)
	decEqual(t, "103.38", totals.GrossTotal)
	assert.True(t, totals.AllowanceExceeded)
	decEqual(t, "3.38", totals.Payable)
}

func TestPayerTotals_GrossEqualsAllowance_NoOverride(t *testing.T) {
	// GIVEN: Gross total exactly equal to the allowance
	// WHEN: Computing the payer invoice
	// THEN: Override does not fire; payable is zero (floored, not negative)

	lines := []reconcile.ClassifiedLine{
		{DeliveredLine: line("A", 10, "10.00"), Approved: true},
	}
	totals := reconcile.ComputePayerTotals(lines, nil, reconcile.FlatSurchargeRate, price("103.38"))

	assert.False(t, totals.AllowanceExceeded)
	decEqual(t, "0", totals.Payable)
}

func TestPayerTotals_SurchargesIncludedInSubtotal(t *testing.T) {
	// GIVEN: 40.00 of services plus 2.00 of AUB
	// WHEN: Computing the payer invoice with zero allowance
	// THEN: Flat surcharge applies to the combined 42.00

	lines := []reconcile.ClassifiedLine{
		{DeliveredLine: line("A", 4, "10.00"), Approved: true},
	}
	surcharges := []reconcile.SurchargeLine{
		{OwningCode: "A", Quantity: qty(4), Rate: price("0.50"), Amount: price("2.00")},
	}
	totals := reconcile.ComputePayerTotals(lines, surcharges, reconcile.FlatSurchargeRate, price("0"))

	decEqual(t, "40.00", totals.ServiceSubtotal)
	decEqual(t, "2.00", totals.SurchargeSubtotal)
	decEqual(t, "42.00", totals.Subtotal)
	decEqual(t, "1.42", totals.FlatSurcharge) // 42.00 x 0.0338 rounded
	decEqual(t, "43.42", totals.Payable)
}

// =============================================================================
// PRIVATE INVOICE
// =============================================================================

func TestPrivateTotals_NoDeduction(t *testing.T) {
	// GIVEN: 60.00 of rejected services
	// WHEN: Computing the private invoice (payer override did not fire)
	// THEN: Flat surcharge applies; no deduction, payable = gross

	lines := []reconcile.ClassifiedLine{
		{DeliveredLine: line("B", 3, "20.00")},
	}
	totals := reconcile.ComputePrivateTotals(lines, nil, reconcile.FlatSurchargeRate, false)

	decEqual(t, "60.00", totals.Subtotal)
	decEqual(t, "2.03", totals.FlatSurcharge) // 60.00 x 0.0338 rounded
	decEqual(t, "62.03", totals.Payable)
	decEqual(t, "0", totals.Deduction)
}

func TestPrivateTotals_FlatSurchargeSuppressedAfterPayerOverride(t *testing.T) {
	// GIVEN: The payer-side override fired
	// WHEN: Computing the private invoice
	// THEN: The flat surcharge component is zero regardless of subtotal

	lines := []reconcile.ClassifiedLine{
		{DeliveredLine: line("B", 3, "20.00")},
	}
	totals := reconcile.ComputePrivateTotals(lines, nil, reconcile.FlatSurchargeRate, true)

	decEqual(t, "60.00", totals.Subtotal)
	decEqual(t, "0", totals.FlatSurcharge)
	decEqual(t, "60.00", totals.Payable)
}

// =============================================================================
// CROSS-INVOICE COUPLING THROUGH Reconcile
// =============================================================================

func TestReconcile_OverrideCouplingEndToEnd(t *testing.T) {
	// GIVEN: Small approved amount (override fires at allowance 1497.00)
	//        plus a rejected private line
	// WHEN: Reconciling
	// THEN: Payer pays exactly the flat surcharge; the private invoice
	//       carries no flat surcharge of its own

	result, err := reconcile.Reconcile(reconcile.Input{
		QuotaRows: []reconcile.QuotaRow{monthlyQuota("A", 10)},
		Lines: []reconcile.DeliveredLine{
			line("A", 10, "10.00"),
			line("B", 5, "20.00"), // no quota: private
		},
		Allowance: price("1497.00"),
		Rates:     testRates(),
	})
	require.NoError(t, err)

	assert.True(t, result.Payer.AllowanceExceeded)
	assert.True(t, result.Payer.Payable.Equal(result.Payer.FlatSurcharge))
	decEqual(t, "0", result.Private.FlatSurcharge)
	decEqual(t, "100.00", result.Private.Subtotal)
	decEqual(t, "100.00", result.Private.Payable)
}

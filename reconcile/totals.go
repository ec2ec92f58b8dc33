/*
totals.go - Invoice totals calculation

PURPOSE:
  Computes the totals blocks of the payer and the private invoice from the
  line sets the apportionment engine produced.

THE OVERRIDE:
  When the payer's flat allowance alone covers the full approved gross
  total, the provider does not issue a negative or zero payer invoice.
  Instead the payer is billed exactly the flat surcharge component, and the
  private invoice omits its own flat surcharge (it was absorbed on the
  payer side). This cross-invoice coupling is a domain policy, not a
  generic clamp.

ROUNDING:
  Line totals are exact products of 2dp prices and whole-or-2dp quantities.
  The flat surcharge is rounded to 2dp when derived, so the printed invoice
  columns add up exactly.
*/
package reconcile

import "github.com/shopspring/decimal"

// ComputePayerTotals computes the payer invoice: approved lines plus their
// surcharges, the flat percentage on top, minus the allowance, floored at
// zero - with the allowance-exceeds-total override described above.
func ComputePayerTotals(lines []ClassifiedLine, surcharges []SurchargeLine, flatRate, allowance decimal.Decimal) InvoiceTotals {
	t := buildTotals(sumLines(lines), sumSurcharges(surcharges), flatRate)
	t.Deduction = allowance

	if t.GrossTotal.LessThan(allowance) {
		t.AllowanceExceeded = true
		t.Payable = t.FlatSurcharge
		return t
	}
	payable := t.GrossTotal.Sub(allowance)
	if payable.IsNegative() {
		payable = decimal.Zero
	}
	t.Payable = payable
	return t
}

// ComputePrivateTotals computes the private invoice: rejected lines and
// excess portions plus their surcharges. No deduction applies. When the
// payer-side override fired, the flat surcharge is suppressed here.
func ComputePrivateTotals(lines []ClassifiedLine, surcharges []SurchargeLine, flatRate decimal.Decimal, payerOverrideFired bool) InvoiceTotals {
	t := buildTotals(sumLines(lines), sumSurcharges(surcharges), flatRate)
	if payerOverrideFired {
		t.FlatSurcharge = decimal.Zero
		t.GrossTotal = t.Subtotal
	}
	t.Payable = t.GrossTotal
	return t
}

func buildTotals(service, surcharge, flatRate decimal.Decimal) InvoiceTotals {
	subtotal := service.Add(surcharge)
	flat := subtotal.Mul(flatRate).Round(2)
	return InvoiceTotals{
		ServiceSubtotal:   service,
		SurchargeSubtotal: surcharge,
		Subtotal:          subtotal,
		FlatSurcharge:     flat,
		GrossTotal:        subtotal.Add(flat),
	}
}

func sumLines(lines []ClassifiedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total)
	}
	return sum
}

func sumSurcharges(surcharges []SurchargeLine) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range surcharges {
		sum = sum.Add(s.Amount)
	}
	return sum
}

/*
Package reconcile provides the core invoice reconciliation engine.

PURPOSE:
  A home-care provider delivers services under coded categories (LK codes)
  and bills two parties for one month of work: the public payer, limited to
  the pre-approved quota per code, and the client privately for everything
  delivered above quota or never approved. This package contains the pure
  computation that splits delivered line items into those two invoices.

KEY CONCEPTS IN THIS FILE (types.go):
  - QuotaRow: One approved service code with weekly/monthly allowed quantity
  - DeliveredLine: A service actually delivered (input, never mutated)
  - ClassifiedLine: A delivered line after apportionment, with annotations
  - SurchargeLine: Per-unit training-levy (AUB) line derived from a service line
  - InvoiceTotals: The computed totals block of one invoice

DESIGN PRINCIPLES:
  1. Purity: No I/O, no ambient state; identical inputs yield identical outputs
  2. Precision: decimal.Decimal for all quantities and money
  3. Immutability: Inputs are snapshots; classification produces new copies
  4. Explicit outcomes: "not approved" and "override fired" are modeled
     results, not errors

PIPELINE:
  QuotaRows + DeliveredLines
      -> QuotaIndex (quota.go)
      -> substitution pass (substitution.go)
      -> apportionment (engine.go)
      -> surcharge generation (surcharge.go)
      -> payer + private totals (totals.go)

SEE ALSO:
  - tariff: Static rate catalog consumed for prices and surcharge rates
  - engine.go: Classify and Reconcile entry points
*/
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/tariff"
)

// WeeksPerMonth converts a weekly approved quantity into a monthly one.
// 4.33 approximates 365.25/12/7 and is a fixed business rule: quota
// conversion is deliberately calendar-independent for predictability.
var WeeksPerMonth = decimal.RequireFromString("4.33")

// FlatSurchargeRate is the fixed percentage (ZINV, 3.38%) applied on top of
// each invoice's combined subtotal.
var FlatSurchargeRate = decimal.RequireFromString("0.0338")

// QuotaRow is one approved service code from the payer's approval notice,
// parsed from a spreadsheet or keyed in manually.
type QuotaRow struct {
	Code        string
	Description string
	PerWeek     decimal.Decimal // weekly allowed quantity, >= 0
	PerMonth    decimal.Decimal // monthly allowed quantity; zero means "use PerWeek x 4.33"
}

// DeliveredLine is one service line from the provider's monthly invoice.
// The engine never mutates delivered lines; classification copies them.
type DeliveredLine struct {
	Code        string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal // Quantity x UnitPrice
	IsSurcharge bool            // true for pre-computed AUB lines from extraction
}

// NewDeliveredLine builds a line with its total derived from quantity and
// unit price.
func NewDeliveredLine(code, description string, quantity, unitPrice decimal.Decimal) DeliveredLine {
	return DeliveredLine{
		Code:        tariff.Normalize(code),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       quantity.Mul(unitPrice),
	}
}

// ClassifiedLine is a delivered line after apportionment.
//
// Invariants:
//   - A line with SubstitutedInto set is never Approved and contributes zero
//     to either invoice on its own.
//   - An approved line's Quantity never exceeds the quota for its code.
type ClassifiedLine struct {
	DeliveredLine

	// Approved is true when the payer covers this line (possibly truncated).
	Approved bool

	// SubstitutedInto names the code this line's quantity was folded into.
	// Set only on the giving side of a substitution.
	SubstitutedInto string

	// ReducedFrom holds the original delivered quantity when quota truncated
	// this line. The excess (ReducedFrom - Quantity) flows to the private
	// invoice.
	ReducedFrom *decimal.Decimal

	// SubstitutedQuantity holds the quantity contributed by a substitution.
	// Set only on the receiving side.
	SubstitutedQuantity *decimal.Decimal
}

// Truncated reports whether quota truncation reduced this line.
func (c ClassifiedLine) Truncated() bool {
	return c.ReducedFrom != nil && c.ReducedFrom.GreaterThan(c.Quantity)
}

// ExcessQuantity returns the truncated-away portion, zero when none.
func (c ClassifiedLine) ExcessQuantity() decimal.Decimal {
	if !c.Truncated() {
		return decimal.Zero
	}
	return c.ReducedFrom.Sub(c.Quantity)
}

// SurchargeLine is a per-unit AUB levy derived 1:1 from a service line whose
// tariff entry carries a surcharge rate. Regenerated on every computation,
// never persisted.
type SurchargeLine struct {
	OwningCode  string // service code this surcharge belongs to
	Description string
	Quantity    decimal.Decimal // equals the owning line's quantity
	Rate        decimal.Decimal
	Amount      decimal.Decimal // Quantity x Rate
}

// InvoiceTotals is the computed totals block of one invoice. Entirely
// derived; recomputed from scratch on every invocation.
type InvoiceTotals struct {
	ServiceSubtotal   decimal.Decimal // sum of service line totals
	SurchargeSubtotal decimal.Decimal // sum of AUB amounts
	Subtotal          decimal.Decimal // ServiceSubtotal + SurchargeSubtotal
	FlatSurcharge     decimal.Decimal // Subtotal x FlatSurchargeRate, 2dp
	GrossTotal        decimal.Decimal // Subtotal + FlatSurcharge
	Deduction         decimal.Decimal // payer allowance; zero on the private invoice
	Payable           decimal.Decimal // final amount, floored at zero
	AllowanceExceeded bool            // the allowance-exceeds-total override fired
}

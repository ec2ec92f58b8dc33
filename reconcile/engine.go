/*
engine.go - Apportionment engine and reconciliation entry point

PURPOSE:
  Classifies every delivered service line against the approved quota and
  orchestrates the full run: substitution, apportionment, surcharge
  generation for both sides, and the two invoice totals.

PER-LINE STATES (terminal within one run):
  Delivered -> Approved-Full       delivered <= quota
            -> Approved-Truncated  delivered > quota; billed at quota,
                                   excess flows to the private invoice
            -> NotApproved         no quota (or quota zero)
            -> SubstitutedAway     folded into another code by a
                                   substitution pair

CONSERVATION:
  For a truncated line, billed(payer) + excess(private) equals the delivered
  quantity. A substituted-away line instead contributes its whole quantity
  to the receiving line and zero to either invoice on its own.
*/
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/tariff"
)

// Input is the immutable snapshot one reconciliation run operates on.
type Input struct {
	QuotaRows []QuotaRow
	Lines     []DeliveredLine

	// Allowance is the payer's flat monthly amount deducted from the payer
	// invoice (by care grade, see tariff.AllowanceForGrade).
	Allowance decimal.Decimal

	// Substitutions overrides the substitution table; nil means
	// DefaultSubstitutions.
	Substitutions []SubstitutionPair

	// Rates overrides the tariff; nil means tariff.Default().
	Rates *tariff.Table
}

// Result is everything the rendering layer needs: the full classified line
// list for itemized display plus both invoices' line sets and totals.
type Result struct {
	Lines []ClassifiedLine // all classified lines, input order

	PayerLines      []ClassifiedLine // approved, possibly truncated
	PayerSurcharges []SurchargeLine
	Payer           InvoiceTotals

	PrivateLines      []ClassifiedLine // rejected lines + excess portions
	PrivateSurcharges []SurchargeLine
	Private           InvoiceTotals
}

// Classify runs substitution and apportionment over the delivered lines.
// Only non-surcharge lines with quantity > 0 are considered. The returned
// slice contains new copies; the input is never mutated.
func Classify(lines []DeliveredLine, quotas *QuotaIndex, pairs []SubstitutionPair) ([]ClassifiedLine, error) {
	classified := make([]ClassifiedLine, 0, len(lines))
	for i, line := range lines {
		if line.IsSurcharge || line.Quantity.IsZero() {
			continue
		}
		if line.Quantity.IsNegative() {
			return nil, &InvalidLineError{Index: i, Code: line.Code, Reason: "negative quantity"}
		}
		if line.UnitPrice.IsNegative() {
			return nil, &InvalidLineError{Index: i, Code: line.Code, Reason: "negative unit price"}
		}
		line.Code = tariff.Normalize(line.Code)
		line.Total = line.Quantity.Mul(line.UnitPrice)
		classified = append(classified, ClassifiedLine{DeliveredLine: line})
	}

	// The substitution table gets first chance; a substituted-away line
	// short-circuits apportionment below.
	applySubstitutions(classified, quotas, pairs)

	for i := range classified {
		c := &classified[i]
		if c.SubstitutedInto != "" {
			continue
		}
		quota, ok := quotas.AllowedMonthly(c.Code)
		if !ok {
			c.Approved = false
			continue
		}
		if c.Quantity.GreaterThan(quota) {
			original := c.Quantity
			c.ReducedFrom = &original
			c.Quantity = quota
			c.Total = quota.Mul(c.UnitPrice)
		}
		c.Approved = true
	}
	return classified, nil
}

// PrivatePortions extracts the private-invoice line set from classified
// lines: every rejected line in full, plus the excess portion of every
// truncated line. Substituted-away lines are excluded - they were converted,
// not rejected.
func PrivatePortions(lines []ClassifiedLine) []ClassifiedLine {
	var out []ClassifiedLine
	for _, c := range lines {
		if c.SubstitutedInto != "" {
			continue
		}
		if !c.Approved {
			out = append(out, c)
			continue
		}
		if c.Truncated() {
			excess := c.ExcessQuantity()
			portion := c
			portion.Approved = false
			portion.ReducedFrom = nil
			portion.Quantity = excess
			portion.Total = excess.Mul(c.UnitPrice)
			out = append(out, portion)
		}
	}
	return out
}

// Reconcile runs a complete reconciliation: quota indexing, substitution,
// apportionment, surcharge generation for both sides, and both invoice
// totals. Pure and deterministic; safe for concurrent use.
func Reconcile(in Input) (*Result, error) {
	rates := in.Rates
	if rates == nil {
		rates = tariff.Default()
	}
	pairs := in.Substitutions
	if pairs == nil {
		pairs = DefaultSubstitutions
	}

	quotas, err := BuildQuotaIndex(in.QuotaRows)
	if err != nil {
		return nil, err
	}
	classified, err := Classify(in.Lines, quotas, pairs)
	if err != nil {
		return nil, err
	}

	var payerLines []ClassifiedLine
	for _, c := range classified {
		if c.Approved {
			payerLines = append(payerLines, c)
		}
	}
	privateLines := PrivatePortions(classified)

	payerSurcharges := surchargesFor(payerLines, rates)
	privateSurcharges := surchargesFor(privateLines, rates)

	payer := ComputePayerTotals(payerLines, payerSurcharges, FlatSurchargeRate, in.Allowance)
	private := ComputePrivateTotals(privateLines, privateSurcharges, FlatSurchargeRate, payer.AllowanceExceeded)

	return &Result{
		Lines:             classified,
		PayerLines:        payerLines,
		PayerSurcharges:   payerSurcharges,
		Payer:             payer,
		PrivateLines:      privateLines,
		PrivateSurcharges: privateSurcharges,
		Private:           private,
	}, nil
}

// Theoretical computes totals over all delivered lines as if every quantity
// were approved, with no deduction. The form UI shows this as a cross-check
// against the uncorrected provider invoice.
func Theoretical(lines []DeliveredLine, rates *tariff.Table) InvoiceTotals {
	if rates == nil {
		rates = tariff.Default()
	}
	var active []DeliveredLine
	for _, l := range lines {
		if l.IsSurcharge || !l.Quantity.IsPositive() {
			continue
		}
		l.Code = tariff.Normalize(l.Code)
		l.Total = l.Quantity.Mul(l.UnitPrice)
		active = append(active, l)
	}
	surcharges := GenerateSurcharges(active, rates)

	service := decimal.Zero
	for _, l := range active {
		service = service.Add(l.Total)
	}
	t := buildTotals(service, sumSurcharges(surcharges), FlatSurchargeRate)
	t.Payable = t.GrossTotal
	return t
}

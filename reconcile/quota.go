/*
quota.go - Quota index built from approval rows

PURPOSE:
  Turns the payer's approval rows into a fast code -> allowed-monthly-quantity
  lookup. Built once per reconciliation run and then read-only.

CONVERSION RULE:
  effective monthly quantity = PerMonth        if PerMonth > 0
                             = floor(PerWeek x 4.33)  otherwise

  The 4.33 weeks-per-month factor is a fixed business rule (see types.go).
  The floor keeps approved quantities whole.

NOT-FOUND SEMANTICS:
  A code absent from the index has zero approved quota: everything delivered
  under it is billed privately. A row whose effective quantity is zero is not
  indexed at all, so "quota 0" and "no quota" behave identically.
*/
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/tariff"
)

// QuotaIndex maps normalized service codes to their allowed monthly quantity.
type QuotaIndex struct {
	allowed map[string]decimal.Decimal
}

// BuildQuotaIndex indexes the given rows. Codes are normalized; on duplicate
// codes the last row wins. Rows with no positive allowed quantity are
// dropped, matching the caller-side filter on ingestion.
func BuildQuotaIndex(rows []QuotaRow) (*QuotaIndex, error) {
	idx := &QuotaIndex{allowed: make(map[string]decimal.Decimal, len(rows))}
	for i, row := range rows {
		code := tariff.Normalize(row.Code)
		if code == "" {
			continue
		}
		if row.PerWeek.IsNegative() || row.PerMonth.IsNegative() {
			return nil, &InvalidQuotaRowError{Index: i, Code: code, Reason: "negative allowed quantity"}
		}
		monthly := effectiveMonthly(row)
		if !monthly.IsPositive() {
			// Zero quota behaves exactly like no quota: drop the row so a
			// present-but-zero code classifies as not approved.
			delete(idx.allowed, code)
			continue
		}
		idx.allowed[code] = monthly
	}
	return idx, nil
}

// AllowedMonthly returns the allowed monthly quantity for a code. The second
// return is false when the code has no approved quota.
func (qi *QuotaIndex) AllowedMonthly(code string) (decimal.Decimal, bool) {
	q, ok := qi.allowed[tariff.Normalize(code)]
	return q, ok
}

// Len returns the number of indexed codes.
func (qi *QuotaIndex) Len() int { return len(qi.allowed) }

func effectiveMonthly(row QuotaRow) decimal.Decimal {
	if row.PerMonth.IsPositive() {
		return row.PerMonth
	}
	return row.PerWeek.Mul(WeeksPerMonth).Floor()
}

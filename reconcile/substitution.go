/*
substitution.go - Service-code substitution pass

PURPOSE:
  Some delivered services can be re-billed under a cheaper approved code
  instead of being rejected outright. The canonical case: a warm meal (LK14)
  delivered without approval is folded into the approved small-meal code
  (LK15) when the small-meal quota can absorb the combined quantity.

RULE TABLE:
  Substitutions are data-driven pairs {From, To} rather than inlined
  conditionals, so new pairs are a data change. DefaultSubstitutions carries
  the single LK14 -> LK15 pair in use today.

PRECONDITIONS (checked in order; any failure leaves the input unchanged):
  1. Both a From line and a To line exist, with quantity > 0 on the From line.
  2. The From code has no quota entry.
  3. The To code has a quota entry.
  4. To quantity + From quantity <= To allowed monthly quantity.

EFFECTS:
  The To line's quantity becomes the combined sum (total recomputed) and it
  records the contributed quantity. The From line is marked substituted-away:
  not approved, excluded from BOTH invoices. A converted line is deliberately
  distinct from a rejected one - it is documented but zero-valued.
*/
package reconcile

import "github.com/warp/billing-engine/tariff"

// SubstitutionPair names a giving and a receiving service code.
type SubstitutionPair struct {
	From string // code without own approval
	To   string // approved code absorbing the quantity
}

// DefaultSubstitutions is the substitution table in effect: warm meal
// (LK14) folds into small meal (LK15).
var DefaultSubstitutions = []SubstitutionPair{
	{From: "LK14", To: "LK15"},
}

// applySubstitutions runs each pair over the classified lines in place.
// Lines are matched by normalized code; the first matching line per code is
// used, mirroring manual-entry behavior where each code appears once.
func applySubstitutions(lines []ClassifiedLine, quotas *QuotaIndex, pairs []SubstitutionPair) {
	for _, pair := range pairs {
		applySubstitution(lines, quotas, pair)
	}
}

func applySubstitution(lines []ClassifiedLine, quotas *QuotaIndex, pair SubstitutionPair) {
	fromIdx := findByCode(lines, tariff.Normalize(pair.From))
	toIdx := findByCode(lines, tariff.Normalize(pair.To))
	if fromIdx < 0 || toIdx < 0 {
		return
	}
	from := &lines[fromIdx]
	to := &lines[toIdx]

	if !from.Quantity.IsPositive() {
		return
	}
	if _, approved := quotas.AllowedMonthly(from.Code); approved {
		// The From code has its own quota; normal apportionment handles it.
		return
	}
	toQuota, ok := quotas.AllowedMonthly(to.Code)
	if !ok {
		return
	}
	combined := to.Quantity.Add(from.Quantity)
	if combined.GreaterThan(toQuota) {
		return
	}

	contributed := from.Quantity
	to.Quantity = combined
	to.Total = combined.Mul(to.UnitPrice)
	to.SubstitutedQuantity = &contributed

	from.Approved = false
	from.SubstitutedInto = to.Code
}

func findByCode(lines []ClassifiedLine, code string) int {
	for i := range lines {
		if lines[i].Code == code {
			return i
		}
	}
	return -1
}

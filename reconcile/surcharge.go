/*
surcharge.go - AUB surcharge generation

PURPOSE:
  Certain service codes carry a per-unit training-levy surcharge (AUB).
  For every service line whose tariff entry has a surcharge rate, one AUB
  line is emitted with the same quantity as its owning line.

TRUST POLICY:
  Surcharges are always recomputed here from the tariff at the final
  (possibly truncated) quantity. Pre-computed AUB lines arriving from
  document extraction are informational only and dropped on ingestion.
*/
package reconcile

import (
	"fmt"

	"github.com/warp/billing-engine/tariff"
)

// GenerateSurcharges emits one AUB line per input line with quantity > 0
// whose tariff surcharge rate is positive. Lines flagged as surcharges and
// codes absent from the tariff are skipped silently. Output preserves input
// order - this governs display order, not correctness.
func GenerateSurcharges(lines []DeliveredLine, rates *tariff.Table) []SurchargeLine {
	var out []SurchargeLine
	for _, line := range lines {
		if line.IsSurcharge || !line.Quantity.IsPositive() {
			continue
		}
		entry, ok := rates.Lookup(line.Code)
		if !ok || !entry.SurchargeRate.IsPositive() {
			continue
		}
		out = append(out, SurchargeLine{
			OwningCode:  entry.Code,
			Description: fmt.Sprintf("Ausbildungsumlage zu %s", entry.Code),
			Quantity:    line.Quantity,
			Rate:        entry.SurchargeRate,
			Amount:      line.Quantity.Mul(entry.SurchargeRate),
		})
	}
	return out
}

// surchargesFor projects classified lines back to delivered lines and
// generates their AUB set. Used for the payer side (truncated quantities)
// and the private side (excess + rejected quantities).
func surchargesFor(lines []ClassifiedLine, rates *tariff.Table) []SurchargeLine {
	delivered := make([]DeliveredLine, len(lines))
	for i, c := range lines {
		delivered[i] = c.DeliveredLine
	}
	return GenerateSurcharges(delivered, rates)
}

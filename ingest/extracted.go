/*
extracted.go - Document-extraction line normalization

PURPOSE:
  The extraction service reads quantities and prices off a scanned provider
  invoice and returns line items in its own shape. This file turns those
  into DeliveredLines the engine accepts.

SURCHARGE POLICY:
  Extracted AUB lines (IsAUB=true) are informational only. They are dropped
  here and the engine recomputes surcharges from the tariff at the final,
  possibly truncated, approved quantity. Trusting extracted surcharge
  figures would let OCR noise into the invoice totals.
*/
package ingest

import (
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/reconcile"
	"github.com/warp/billing-engine/tariff"
)

// ExtractedLine mirrors the extraction collaborator's line-item shape.
type ExtractedLine struct {
	LKCode      string          `json:"lkCode"`
	Bezeichnung string          `json:"bezeichnung"`
	Menge       decimal.Decimal `json:"menge"`
	Einzelpreis decimal.Decimal `json:"einzelpreis"`
	Gesamtpreis decimal.Decimal `json:"gesamtpreis"`
	IsAUB       bool            `json:"isAUB"`
}

// NormalizeExtracted converts extraction output into delivered lines.
// AUB lines are dropped (see surcharge policy above). A missing unit price
// is resolved via the rate table; unknown codes keep price zero. Line
// totals are recomputed from quantity x unit price rather than trusting
// the extracted Gesamtpreis.
func NormalizeExtracted(items []ExtractedLine, rates *tariff.Table) []reconcile.DeliveredLine {
	if rates == nil {
		rates = tariff.Default()
	}
	var out []reconcile.DeliveredLine
	for _, item := range items {
		if item.IsAUB {
			continue
		}
		code := tariff.Normalize(item.LKCode)
		if code == "" {
			continue
		}
		unitPrice := item.Einzelpreis
		description := item.Bezeichnung
		if entry, ok := rates.Lookup(code); ok {
			if unitPrice.IsZero() {
				unitPrice = entry.UnitPrice
			}
			if description == "" {
				description = entry.Name
			}
		}
		out = append(out, reconcile.NewDeliveredLine(code, description, item.Menge, unitPrice))
	}
	return out
}

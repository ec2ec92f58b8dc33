/*
Package tariff provides the static service-code catalog (LK rates).

PURPOSE:
  Every home-care service is billed under a coded category ("Leistungskomplex",
  LK) with a fixed unit price and, for most codes, a per-unit training-levy
  surcharge (AUB). This package is the single source of truth for those rates
  and for code normalization.

KEY CONCEPTS:
  - Entry: One catalog row (code, display name, unit price, AUB rate)
  - Table: Immutable lookup from normalized code to Entry
  - Normalize: Canonical code form (trimmed, upper-cased)

LOOKUP SEMANTICS:
  Lookup is case-insensitive and exact - no fuzzy matching. A miss is a
  normal outcome: during manual entry operators type free-text codes that
  do not exist in the catalog, and callers treat "not found" as zero price
  and no surcharge eligibility.

USAGE:
  entry, ok := tariff.Default().Lookup("lk04")
  if ok {
      total := qty.Mul(entry.UnitPrice)
  }

SEE ALSO:
  - allowance.go: Care-grade flat allowance table
  - reconcile: Consumes this table for classification and surcharges
*/
package tariff

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Entry describes one service code in the catalog.
type Entry struct {
	Code          string
	Name          string
	UnitPrice     decimal.Decimal
	SurchargeRate decimal.Decimal // per-unit AUB rate; zero means no surcharge
}

// Table is an immutable code -> Entry lookup.
type Table struct {
	entries map[string]Entry
	order   []string
}

// Normalize returns the canonical form of a service code: surrounding
// whitespace stripped, upper-cased. Codes may contain an embedded period
// (e.g. "LK20.2"), which is preserved.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewTable builds a Table from entries. Codes are normalized; the last
// entry wins on duplicates.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		code := Normalize(e.Code)
		if code == "" {
			continue
		}
		e.Code = code
		if _, seen := t.entries[code]; !seen {
			t.order = append(t.order, code)
		}
		t.entries[code] = e
	}
	return t
}

// Lookup returns the entry for code, matching case-insensitively.
// The second return is false when the code is not in the catalog.
func (t *Table) Lookup(code string) (Entry, bool) {
	e, ok := t.entries[Normalize(code)]
	return e, ok
}

// Entries returns all catalog entries in insertion order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, t.entries[code])
	}
	return out
}

// Codes returns all catalog codes, sorted.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.entries))
	for c := range t.entries {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("tariff: invalid decimal literal " + s)
	}
	return d
}

func entry(code, name, price, aub string) Entry {
	return Entry{
		Code:          code,
		Name:          name,
		UnitPrice:     mustDecimal(price),
		SurchargeRate: mustDecimal(aub),
	}
}

// defaultTable holds the current provider catalog. Prices are contract
// rates; changing them is a data update, not a code change.
var defaultTable = NewTable([]Entry{
	entry("LK01", "Erweiterte kleine Koerperpflege", "25.52", "0.84"),
	entry("LK02", "Kleine Koerperpflege", "17.01", "0.39"),
	entry("LK03A", "Erweiterte grosse Koerperpflege", "42.78", "1.15"),
	entry("LK03B", "Erweiterte grosse Koerperpflege m. Baden", "51.01", "1.15"),
	entry("LK04", "Grosse Koerperpflege", "34.01", "0.78"),
	entry("LK05", "Lagern/Betten", "6.77", "0.93"),
	entry("LK06", "Hilfe bei der Nahrungsaufnahme", "10.15", "1.63"),
	entry("LK07A", "Darm- und Blasenentleerung", "6.77", "0.16"),
	entry("LK07B", "Darm- und Blasenentleerung erweitert", "10.15", "0.39"),
	entry("LK08A", "Hilfestellung beim Verlassen/Wiederaufsuchen der Wohnung", "3.38", "0.33"),
	entry("LK08B", "Hilfestellung beim Wiederaufsuchen der Wohnung", "3.38", "0.33"),
	entry("LK09", "Begleitung ausser Haus", "20.30", "1.59"),
	entry("LK10", "Heizen", "3.38", "1.88"),
	entry("LK11A", "Kleine Reinigung der Wohnung", "7.43", "0.17"),
	entry("LK11B", "Grosse Reinigung der Wohnung", "22.29", "0.51"),
	entry("LK11C", "Aufwendiges Raeumen", "39.62", "0.51"),
	entry("LK12", "Wechseln u. Waschen der Kleidung", "39.62", "0.91"),
	entry("LK13", "Einkaufen", "19.81", "0.46"),
	entry("LK14", "Zubereitung warme Mahlzeit", "22.29", "0.51"),
	entry("LK15", "Zubereitung kleine Mahlzeit", "7.43", "0.17"),
	entry("LK16A", "Erstbesuch", "23.00", "0.16"),
	entry("LK16B", "Folgebesuch", "10.00", "0.16"),
	entry("LK17A", "Einsatzpauschale", "5.37", "0.12"),
	entry("LK17B", "Einsatzpauschale WE", "10.73", "0.25"),
	entry("LK20", "Haeusliche Betreuung Paragraph 124 SGB XI", "3.38", "0.33"),
	entry("LK20_HH", "Haeusliche Betreuung Paragraph 124 SGB XI (Haushaltsbuch)", "3.38", "0.33"),
})

// Default returns the built-in provider catalog.
func Default() *Table {
	return defaultTable
}

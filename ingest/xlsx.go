/*
Package ingest converts external inputs into engine data.

PURPOSE:
  Two inputs arrive from outside the engine: the payer's approval notice as
  an XLSX spreadsheet, and the provider's invoice line items as read off a
  scanned document by the extraction service. This package parses both into
  the plain reconcile types; the engine itself never touches files or wire
  formats.

SPREADSHEET FORMAT (xlsx.go):
  First sheet, one header row, columns matched by name:
    LK-Code | Leistungsbezeichnung | Je Woche | Je Monat
  Rows without a code or without any positive quantity are dropped - the
  quota index expects that filter to have happened on ingestion.

SEE ALSO:
  - extracted.go: Document-extraction line normalization
  - reconcile: Consumes the QuotaRows and DeliveredLines produced here
*/
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/billing-engine/reconcile"
	"github.com/warp/billing-engine/tariff"
)

// ErrNoQuotaRows is returned when the spreadsheet contains no usable rows.
var ErrNoQuotaRows = errors.New("no quota rows with quantities > 0 found")

// Spreadsheet column headers, matched case-insensitively after trimming.
const (
	colCode        = "lk-code"
	colDescription = "leistungsbezeichnung"
	colPerWeek     = "je woche"
	colPerMonth    = "je monat"
)

// ParseQuotaWorkbook reads an approval spreadsheet and returns its quota
// rows. Rows with an empty code or with neither a weekly nor a monthly
// quantity above zero are filtered out.
func ParseQuotaWorkbook(r io.Reader) ([]reconcile.QuotaRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrNoQuotaRows
	}

	cols := mapColumns(rows[0])
	if cols[colCode] < 0 {
		return nil, fmt.Errorf("missing %q column in header row", "LK-Code")
	}

	var out []reconcile.QuotaRow
	for _, row := range rows[1:] {
		code := tariff.Normalize(cell(row, cols[colCode]))
		if code == "" {
			continue
		}
		perWeek := parseQuantity(cell(row, cols[colPerWeek]))
		perMonth := parseQuantity(cell(row, cols[colPerMonth]))
		if !perWeek.IsPositive() && !perMonth.IsPositive() {
			continue
		}
		out = append(out, reconcile.QuotaRow{
			Code:        code,
			Description: strings.TrimSpace(cell(row, cols[colDescription])),
			PerWeek:     perWeek,
			PerMonth:    perMonth,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoQuotaRows
	}
	return out, nil
}

// mapColumns resolves the known headers to column indexes, -1 when absent.
func mapColumns(header []string) map[string]int {
	cols := map[string]int{
		colCode:        -1,
		colDescription: -1,
		colPerWeek:     -1,
		colPerMonth:    -1,
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, known := cols[key]; known {
			cols[key] = i
		}
	}
	return cols
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseQuantity is lenient about spreadsheet number formatting: empty cells
// and non-numeric noise read as zero, comma decimal separators are accepted.
func parseQuantity(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

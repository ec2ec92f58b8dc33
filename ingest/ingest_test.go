package ingest_test

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/billing-engine/ingest"
	"github.com/warp/billing-engine/tariff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// buildWorkbook writes an approval spreadsheet in the payer's export format.
func buildWorkbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []any{"LK-Code", "Leistungsbezeichnung", "Je Woche", "Je Monat"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())
	return bytes.NewReader(buf.Bytes())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// SPREADSHEET PARSING
// =============================================================================

func TestParseQuotaWorkbook_ReadsRows(t *testing.T) {
	// GIVEN: An approval sheet with weekly and monthly figures
	// WHEN: Parsing
	// THEN: Rows come back normalized with both quantities

	r := buildWorkbook(t, [][]any{
		{"lk02", "Kleine Koerperpflege", 7, 0},
		{"LK04", "Grosse Koerperpflege", 0, 8},
	})

	rows, err := ingest.ParseQuotaWorkbook(r)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "LK02", rows[0].Code)
	assert.Equal(t, "Kleine Koerperpflege", rows[0].Description)
	assert.True(t, rows[0].PerWeek.Equal(dec("7")))
	assert.True(t, rows[0].PerMonth.IsZero())

	assert.Equal(t, "LK04", rows[1].Code)
	assert.True(t, rows[1].PerMonth.Equal(dec("8")))
}

func TestParseQuotaWorkbook_FiltersEmptyAndZeroRows(t *testing.T) {
	// Rows without a code or without any positive quantity never reach the
	// quota index.
	r := buildWorkbook(t, [][]any{
		{"LK04", "Grosse Koerperpflege", 0, 8},
		{"", "Kommentarzeile", 3, 0},
		{"LK05", "Lagern/Betten", 0, 0},
	})

	rows, err := ingest.ParseQuotaWorkbook(r)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "LK04", rows[0].Code)
}

func TestParseQuotaWorkbook_CommaDecimalSeparator(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"LK05", "Lagern/Betten", "3,5", ""},
	})

	rows, err := ingest.ParseQuotaWorkbook(r)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].PerWeek.Equal(dec("3.5")))
}

func TestParseQuotaWorkbook_NoUsableRows(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"LK05", "Lagern/Betten", 0, 0},
	})

	_, err := ingest.ParseQuotaWorkbook(r)
	assert.ErrorIs(t, err, ingest.ErrNoQuotaRows)
}

func TestParseQuotaWorkbook_MissingCodeColumn(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []any{"Spalte A", "Spalte B"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	row := []any{"LK04", 8}
	require.NoError(t, f.SetSheetRow(sheet, "A2", &row))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	_, err := ingest.ParseQuotaWorkbook(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LK-Code")
}

func TestParseQuotaWorkbook_NotASpreadsheet(t *testing.T) {
	_, err := ingest.ParseQuotaWorkbook(bytes.NewReader([]byte("not an xlsx")))
	assert.Error(t, err)
}

// =============================================================================
// EXTRACTION NORMALIZATION
// =============================================================================

func TestNormalizeExtracted_DropsAUBLines(t *testing.T) {
	// Extracted surcharge lines are informational; the engine recomputes
	// them from the tariff.
	lines := ingest.NormalizeExtracted([]ingest.ExtractedLine{
		{LKCode: "LK04", Menge: dec("8"), Einzelpreis: dec("34.01"), Gesamtpreis: dec("272.08")},
		{LKCode: "AUB_LK04", Menge: dec("8"), Einzelpreis: dec("0.78"), IsAUB: true},
	}, nil)

	require.Len(t, lines, 1)
	assert.Equal(t, "LK04", lines[0].Code)
	assert.False(t, lines[0].IsSurcharge)
}

func TestNormalizeExtracted_ResolvesMissingPriceFromTariff(t *testing.T) {
	lines := ingest.NormalizeExtracted([]ingest.ExtractedLine{
		{LKCode: "lk04", Menge: dec("8")},
	}, tariff.Default())

	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(dec("34.01")))
	assert.True(t, lines[0].Total.Equal(dec("272.08")))
	assert.Equal(t, "Grosse Koerperpflege", lines[0].Description)
}

func TestNormalizeExtracted_UnknownCodeKeepsSuppliedPrice(t *testing.T) {
	lines := ingest.NormalizeExtracted([]ingest.ExtractedLine{
		{LKCode: "ZZZ99", Bezeichnung: "Freitext", Menge: dec("2"), Einzelpreis: dec("12.50")},
		{LKCode: "ZZZ98", Menge: dec("2")}, // no price anywhere: zero
	}, nil)

	require.Len(t, lines, 2)
	assert.True(t, lines[0].Total.Equal(dec("25.00")))
	assert.True(t, lines[1].UnitPrice.IsZero())
}

func TestNormalizeExtracted_RecomputesTtotalOverExtractedGesamtpreis(t *testing.T) {
	// An OCR-garbled total must not survive into the engine.
	lines := ingest.NormalizeExtracted([]ingest.ExtractedLine{
		{LKCode: "LK04", Menge: dec("2"), Einzelpreis: dec("34.01"), Gesamtpreis: dec("999.99")},
	}, nil)

	require.Len(t, lines, 1)
	assert.True(t, lines[0].Total.Equal(dec("68.02")))
}

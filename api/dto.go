/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY & QUANTITIES:
  Internally everything is decimal; DTOs carry float64 with money rounded
  to two decimals at this boundary, matching what the printed invoice shows.

LINE ITEM SHAPE:
  LineItemDTO mirrors the document-extraction contract (lkCode, bezeichnung,
  menge, einzelpreis, gesamtpreis, isAUB) so the form UI can forward
  extraction output unchanged.

SEE ALSO:
  - handlers.go: Uses these types
  - ingest: Extraction-shape normalization
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ingest"
	"github.com/warp/billing-engine/reconcile"
	"github.com/warp/billing-engine/store/sqlite"
	"github.com/warp/billing-engine/tariff"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ClientDTO represents a care client in API responses.
type ClientDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BirthDate    string `json:"birth_date,omitempty"`
	CareGrade    int    `json:"care_grade"`
	InsuranceNo  string `json:"insurance_no,omitempty"`
	DebtorNo     string `json:"debtor_no,omitempty"`
	ApprovalNo   string `json:"approval_no,omitempty"`
	ApprovalDate string `json:"approval_date,omitempty"`
	PeriodFrom   string `json:"period_from,omitempty"`
	PeriodTo     string `json:"period_to,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// CreateClientRequest is the request to create or update a client.
type CreateClientRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BirthDate    string `json:"birth_date"`
	CareGrade    int    `json:"care_grade"`
	InsuranceNo  string `json:"insurance_no"`
	DebtorNo     string `json:"debtor_no"`
	ApprovalNo   string `json:"approval_no"`
	ApprovalDate string `json:"approval_date"`
	PeriodFrom   string `json:"period_from"`
	PeriodTo     string `json:"period_to"`
}

// TariffEntryDTO represents one catalog entry.
type TariffEntryDTO struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	UnitPrice     float64 `json:"unit_price"`
	SurchargeRate float64 `json:"surcharge_rate"`
}

// AllowanceDTO represents one care grade's flat allowance.
type AllowanceDTO struct {
	CareGrade int     `json:"care_grade"`
	Monthly   float64 `json:"monthly"`
}

// QuotaRowDTO represents one approved service code.
type QuotaRowDTO struct {
	Code        string  `json:"code"`
	Description string  `json:"description,omitempty"`
	PerWeek     float64 `json:"per_week"`
	PerMonth    float64 `json:"per_month"`
}

// QuotaSetDTO represents a stored approval.
type QuotaSetDTO struct {
	ID         string        `json:"id"`
	ClientID   string        `json:"client_id"`
	Label      string        `json:"label,omitempty"`
	SourceFile string        `json:"source_file,omitempty"`
	CreatedAt  string        `json:"created_at,omitempty"`
	Rows       []QuotaRowDTO `json:"rows,omitempty"`
}

// SaveQuotaSetRequest is the request to store manually entered quota rows.
type SaveQuotaSetRequest struct {
	Label string        `json:"label"`
	Rows  []QuotaRowDTO `json:"rows"`
}

// LineItemDTO mirrors the document-extraction line shape.
type LineItemDTO struct {
	LKCode      string  `json:"lkCode"`
	Bezeichnung string  `json:"bezeichnung,omitempty"`
	Menge       float64 `json:"menge"`
	Einzelpreis float64 `json:"einzelpreis,omitempty"`
	Gesamtpreis float64 `json:"gesamtpreis,omitempty"`
	IsAUB       bool    `json:"isAUB,omitempty"`
}

// ReconcileRequest is the request to run a reconciliation.
// Quota rows come either inline or from a stored quota set; the allowance
// either explicitly or derived from the care grade.
type ReconcileRequest struct {
	ClientID   string        `json:"client_id,omitempty"`
	QuotaSetID string        `json:"quota_set_id,omitempty"`
	QuotaRows  []QuotaRowDTO `json:"quota_rows,omitempty"`
	Lines      []LineItemDTO `json:"lines"`
	CareGrade  int           `json:"care_grade,omitempty"`
	Allowance  *float64      `json:"allowance,omitempty"`
	Save       bool          `json:"save,omitempty"`
}

// ClassifiedLineDTO carries one classified line with its annotations, so
// the renderer can show strikethrough/substitution markers without
// re-deriving business logic.
type ClassifiedLineDTO struct {
	Code                string   `json:"code"`
	Description         string   `json:"description,omitempty"`
	Quantity            float64  `json:"quantity"`
	UnitPrice           float64  `json:"unit_price"`
	Total               float64  `json:"total"`
	Approved            bool     `json:"approved"`
	SubstitutedInto     string   `json:"substituted_into,omitempty"`
	ReducedFrom         *float64 `json:"reduced_from,omitempty"`
	SubstitutedQuantity *float64 `json:"substituted_quantity,omitempty"`
}

// SurchargeLineDTO carries one AUB line.
type SurchargeLineDTO struct {
	OwningCode  string  `json:"owning_code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

// InvoiceTotalsDTO carries the totals block of one invoice.
type InvoiceTotalsDTO struct {
	ServiceSubtotal   float64 `json:"service_subtotal"`
	SurchargeSubtotal float64 `json:"surcharge_subtotal"`
	Subtotal          float64 `json:"subtotal"`
	FlatSurcharge     float64 `json:"flat_surcharge"`
	GrossTotal        float64 `json:"gross_total"`
	Deduction         float64 `json:"deduction"`
	Payable           float64 `json:"payable"`
	AllowanceExceeded bool    `json:"allowance_exceeded"`
}

// ReconcileResponse is the full result of one reconciliation run.
type ReconcileResponse struct {
	RunID string `json:"run_id,omitempty"`

	Lines []ClassifiedLineDTO `json:"lines"`

	PayerLines      []ClassifiedLineDTO `json:"payer_lines"`
	PayerSurcharges []SurchargeLineDTO  `json:"payer_surcharges"`
	Payer           InvoiceTotalsDTO    `json:"payer"`

	PrivateLines      []ClassifiedLineDTO `json:"private_lines"`
	PrivateSurcharges []SurchargeLineDTO  `json:"private_surcharges"`
	Private           InvoiceTotalsDTO    `json:"private"`

	Theoretical InvoiceTotalsDTO `json:"theoretical"`
}

// RunDTO represents a stored run in listings.
type RunDTO struct {
	ID        string  `json:"id"`
	ClientID  string  `json:"client_id"`
	Allowance float64 `json:"allowance"`
	CreatedAt string  `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func number(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toClientDTO(c sqlite.Client) ClientDTO {
	return ClientDTO{
		ID:           c.ID,
		Name:         c.Name,
		BirthDate:    c.BirthDate,
		CareGrade:    c.CareGrade,
		InsuranceNo:  c.InsuranceNo,
		DebtorNo:     c.DebtorNo,
		ApprovalNo:   c.ApprovalNo,
		ApprovalDate: c.ApprovalDate,
		PeriodFrom:   c.PeriodFrom,
		PeriodTo:     c.PeriodTo,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

func toQuotaRowDTOs(rows []reconcile.QuotaRow) []QuotaRowDTO {
	dtos := make([]QuotaRowDTO, len(rows))
	for i, r := range rows {
		dtos[i] = QuotaRowDTO{
			Code:        r.Code,
			Description: r.Description,
			PerWeek:     number(r.PerWeek),
			PerMonth:    number(r.PerMonth),
		}
	}
	return dtos
}

func fromQuotaRowDTOs(dtos []QuotaRowDTO) []reconcile.QuotaRow {
	rows := make([]reconcile.QuotaRow, len(dtos))
	for i, d := range dtos {
		rows[i] = reconcile.QuotaRow{
			Code:        d.Code,
			Description: d.Description,
			PerWeek:     decimal.NewFromFloat(d.PerWeek),
			PerMonth:    decimal.NewFromFloat(d.PerMonth),
		}
	}
	return rows
}

func fromLineItemDTOs(dtos []LineItemDTO, rates *tariff.Table) []reconcile.DeliveredLine {
	items := make([]ingest.ExtractedLine, len(dtos))
	for i, d := range dtos {
		items[i] = ingest.ExtractedLine{
			LKCode:      d.LKCode,
			Bezeichnung: d.Bezeichnung,
			Menge:       decimal.NewFromFloat(d.Menge),
			Einzelpreis: decimal.NewFromFloat(d.Einzelpreis),
			Gesamtpreis: decimal.NewFromFloat(d.Gesamtpreis),
			IsAUB:       d.IsAUB,
		}
	}
	return ingest.NormalizeExtracted(items, rates)
}

func toClassifiedLineDTOs(lines []reconcile.ClassifiedLine) []ClassifiedLineDTO {
	dtos := make([]ClassifiedLineDTO, len(lines))
	for i, l := range lines {
		dto := ClassifiedLineDTO{
			Code:            l.Code,
			Description:     l.Description,
			Quantity:        number(l.Quantity),
			UnitPrice:       money(l.UnitPrice),
			Total:           money(l.Total),
			Approved:        l.Approved,
			SubstitutedInto: l.SubstitutedInto,
		}
		if l.ReducedFrom != nil {
			v := number(*l.ReducedFrom)
			dto.ReducedFrom = &v
		}
		if l.SubstitutedQuantity != nil {
			v := number(*l.SubstitutedQuantity)
			dto.SubstitutedQuantity = &v
		}
		dtos[i] = dto
	}
	return dtos
}

func toSurchargeLineDTOs(lines []reconcile.SurchargeLine) []SurchargeLineDTO {
	dtos := make([]SurchargeLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = SurchargeLineDTO{
			OwningCode:  l.OwningCode,
			Description: l.Description,
			Quantity:    number(l.Quantity),
			Rate:        money(l.Rate),
			Amount:      money(l.Amount),
		}
	}
	return dtos
}

func toInvoiceTotalsDTO(t reconcile.InvoiceTotals) InvoiceTotalsDTO {
	return InvoiceTotalsDTO{
		ServiceSubtotal:   money(t.ServiceSubtotal),
		SurchargeSubtotal: money(t.SurchargeSubtotal),
		Subtotal:          money(t.Subtotal),
		FlatSurcharge:     money(t.FlatSurcharge),
		GrossTotal:        money(t.GrossTotal),
		Deduction:         money(t.Deduction),
		Payable:           money(t.Payable),
		AllowanceExceeded: t.AllowanceExceeded,
	}
}

func toReconcileResponse(result *reconcile.Result, theoretical reconcile.InvoiceTotals) ReconcileResponse {
	return ReconcileResponse{
		Lines:             toClassifiedLineDTOs(result.Lines),
		PayerLines:        toClassifiedLineDTOs(result.PayerLines),
		PayerSurcharges:   toSurchargeLineDTOs(result.PayerSurcharges),
		Payer:             toInvoiceTotalsDTO(result.Payer),
		PrivateLines:      toClassifiedLineDTOs(result.PrivateLines),
		PrivateSurcharges: toSurchargeLineDTOs(result.PrivateSurcharges),
		Private:           toInvoiceTotalsDTO(result.Private),
		Theoretical:       toInvoiceTotalsDTO(theoretical),
	}
}

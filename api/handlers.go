/*
handlers.go - HTTP API handlers for the billing reconciliation service

PURPOSE:
  Exposes the reconciliation engine and its surrounding workflow via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  engine, the ingest parsers, and the store.

ENDPOINTS:
  Reference data:
    GET    /api/tariff                     Service-code catalog
    GET    /api/allowances                 Care-grade flat allowances

  Clients:
    GET    /api/clients                    List clients
    POST   /api/clients                    Create/update client
    GET    /api/clients/{id}               Get client
    DELETE /api/clients/{id}               Delete client (cascades)

  Quota sets:
    GET    /api/clients/{id}/quotas        List a client's quota sets
    POST   /api/clients/{id}/quotas        Save manually entered rows
    POST   /api/clients/{id}/quotas/upload Upload approval XLSX (multipart)
    GET    /api/quotasets/{id}             Get a quota set with rows
    DELETE /api/quotasets/{id}             Delete a quota set

  Reconciliation:
    POST   /api/reconcile                  Run the engine; optionally save
    GET    /api/clients/{id}/runs          List a client's saved runs
    GET    /api/runs/{id}                  Get a saved run's result

  Dev:
    POST   /api/reset                      Clear the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, malformed spreadsheets
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ingest"
	"github.com/warp/billing-engine/reconcile"
	"github.com/warp/billing-engine/store/sqlite"
	"github.com/warp/billing-engine/tariff"
)

// maxUploadBytes caps approval spreadsheet uploads.
const maxUploadBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Rates *tariff.Table

	// newRunID is swappable for deterministic tests.
	newRunID func() string
}

// NewHandler creates a new handler with the given store and the default
// tariff catalog.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store: store,
		Rates: tariff.Default(),
		newRunID: func() string {
			return fmt.Sprintf("run-%d", time.Now().UnixNano())
		},
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListTariff returns the service-code catalog.
func (h *Handler) ListTariff(w http.ResponseWriter, r *http.Request) {
	entries := h.Rates.Entries()
	dtos := make([]TariffEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = TariffEntryDTO{
			Code:          e.Code,
			Name:          e.Name,
			UnitPrice:     money(e.UnitPrice),
			SurchargeRate: money(e.SurchargeRate),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAllowances returns the care-grade flat allowance table.
func (h *Handler) ListAllowances(w http.ResponseWriter, r *http.Request) {
	var dtos []AllowanceDTO
	for _, grade := range tariff.Grades() {
		amount, _ := tariff.AllowanceForGrade(grade)
		dtos = append(dtos, AllowanceDTO{CareGrade: grade, Monthly: money(amount)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	client, err := h.Store.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get client", err)
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*client))
}

// CreateClient creates or updates a client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.CareGrade != 0 {
		if _, ok := tariff.AllowanceForGrade(req.CareGrade); !ok {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("care grade %d has no flat allowance", req.CareGrade), nil)
			return
		}
	}

	client := sqlite.Client{
		ID:           req.ID,
		Name:         req.Name,
		BirthDate:    req.BirthDate,
		CareGrade:    req.CareGrade,
		InsuranceNo:  req.InsuranceNo,
		DebtorNo:     req.DebtorNo,
		ApprovalNo:   req.ApprovalNo,
		ApprovalDate: req.ApprovalDate,
		PeriodFrom:   req.PeriodFrom,
		PeriodTo:     req.PeriodTo,
	}
	if err := h.Store.SaveClient(r.Context(), client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(client))
}

// DeleteClient removes a client and its dependent data.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteClient(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// QUOTA SET HANDLERS
// =============================================================================

// ListQuotaSets returns a client's stored quota sets (without rows).
func (h *Handler) ListQuotaSets(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	sets, err := h.Store.ListQuotaSets(r.Context(), clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list quota sets", err)
		return
	}

	dtos := make([]QuotaSetDTO, len(sets))
	for i, s := range sets {
		dtos[i] = QuotaSetDTO{
			ID:         s.ID,
			ClientID:   s.ClientID,
			Label:      s.Label,
			SourceFile: s.SourceFile,
			CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveQuotaSet stores manually entered quota rows for a client.
func (h *Handler) SaveQuotaSet(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	var req SaveQuotaSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rows := filterQuotaRows(fromQuotaRowDTOs(req.Rows))
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "No quota rows with quantities > 0", nil)
		return
	}

	set := sqlite.QuotaSet{
		ID:       h.newRunID(),
		ClientID: clientID,
		Label:    req.Label,
		Rows:     rows,
	}
	if err := h.Store.SaveQuotaSet(r.Context(), set); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save quota set", err)
		return
	}
	writeJSON(w, http.StatusCreated, QuotaSetDTO{
		ID:       set.ID,
		ClientID: set.ClientID,
		Label:    set.Label,
		Rows:     toQuotaRowDTOs(set.Rows),
	})
}

// UploadQuotaSet parses an approval spreadsheet and stores its rows.
func (h *Handler) UploadQuotaSet(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	rows, err := ingest.ParseQuotaWorkbook(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not parse approval spreadsheet", err)
		return
	}

	set := sqlite.QuotaSet{
		ID:         h.newRunID(),
		ClientID:   clientID,
		Label:      r.FormValue("label"),
		SourceFile: header.Filename,
		Rows:       rows,
	}
	if err := h.Store.SaveQuotaSet(r.Context(), set); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save quota set", err)
		return
	}
	writeJSON(w, http.StatusCreated, QuotaSetDTO{
		ID:         set.ID,
		ClientID:   set.ClientID,
		Label:      set.Label,
		SourceFile: set.SourceFile,
		Rows:       toQuotaRowDTOs(set.Rows),
	})
}

// GetQuotaSet returns a quota set with its rows.
func (h *Handler) GetQuotaSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	set, err := h.Store.GetQuotaSet(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get quota set", err)
		return
	}
	if set == nil {
		writeError(w, http.StatusNotFound, "Quota set not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, QuotaSetDTO{
		ID:         set.ID,
		ClientID:   set.ClientID,
		Label:      set.Label,
		SourceFile: set.SourceFile,
		CreatedAt:  set.CreatedAt.Format(time.RFC3339),
		Rows:       toQuotaRowDTOs(set.Rows),
	})
}

// DeleteQuotaSet removes a quota set.
func (h *Handler) DeleteQuotaSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteQuotaSet(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete quota set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// Reconcile runs the engine over the request's quota rows and line items
// and returns both invoices. With save=true and a client_id, the result is
// also persisted as a run.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "No line items supplied", nil)
		return
	}

	quotaRows, err := h.resolveQuotaRows(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not resolve quota rows", err)
		return
	}
	allowance, err := h.resolveAllowance(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not resolve allowance", err)
		return
	}

	lines := fromLineItemDTOs(req.Lines, h.Rates)
	result, err := reconcile.Reconcile(reconcile.Input{
		QuotaRows: quotaRows,
		Lines:     lines,
		Allowance: allowance,
		Rates:     h.Rates,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if reconcile.IsClientError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Reconciliation failed", err)
		return
	}

	resp := toReconcileResponse(result, reconcile.Theoretical(lines, h.Rates))

	if req.Save && req.ClientID != "" {
		resp.RunID = h.newRunID()
		payload, err := json.Marshal(resp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to serialize run", err)
			return
		}
		run := sqlite.RunRecord{
			ID:         resp.RunID,
			ClientID:   req.ClientID,
			Allowance:  allowance,
			ResultJSON: string(payload),
		}
		if err := h.Store.SaveRun(r.Context(), run); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save run", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRuns returns a client's saved runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	runs, err := h.Store.ListRuns(r.Context(), clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = RunDTO{
			ID:        run.ID,
			ClientID:  run.ClientID,
			Allowance: money(run.Allowance),
			CreatedAt: run.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a saved run's full result payload.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	// The payload is the serialized ReconcileResponse; return it verbatim
	// so a re-render shows the identical computation.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(run.ResultJSON))
}

// ResetDatabase clears all data. Dev only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveQuotaRows prefers inline rows; falls back to a stored quota set.
// Neither supplied means an empty quota: everything classifies as private.
func (h *Handler) resolveQuotaRows(r *http.Request, req ReconcileRequest) ([]reconcile.QuotaRow, error) {
	if len(req.QuotaRows) > 0 {
		return filterQuotaRows(fromQuotaRowDTOs(req.QuotaRows)), nil
	}
	if req.QuotaSetID != "" {
		set, err := h.Store.GetQuotaSet(r.Context(), req.QuotaSetID)
		if err != nil {
			return nil, err
		}
		if set == nil {
			return nil, fmt.Errorf("quota set %s not found", req.QuotaSetID)
		}
		return set.Rows, nil
	}
	return nil, nil
}

// resolveAllowance prefers an explicit amount; falls back to the request's
// care grade, then to the client's stored care grade. No source means a
// zero deduction.
func (h *Handler) resolveAllowance(r *http.Request, req ReconcileRequest) (decimal.Decimal, error) {
	if req.Allowance != nil {
		a := decimal.NewFromFloat(*req.Allowance)
		if a.IsNegative() {
			return decimal.Zero, fmt.Errorf("allowance must not be negative")
		}
		return a, nil
	}
	grade := req.CareGrade
	if grade == 0 && req.ClientID != "" {
		client, err := h.Store.GetClient(r.Context(), req.ClientID)
		if err != nil {
			return decimal.Zero, err
		}
		if client != nil {
			grade = client.CareGrade
		}
	}
	if grade == 0 {
		return decimal.Zero, nil
	}
	allowance, ok := tariff.AllowanceForGrade(grade)
	if !ok {
		return decimal.Zero, fmt.Errorf("care grade %d has no flat allowance", grade)
	}
	return allowance, nil
}

// filterQuotaRows applies the ingestion filter: rows without any positive
// quantity are dropped before they reach the engine.
func filterQuotaRows(rows []reconcile.QuotaRow) []reconcile.QuotaRow {
	var out []reconcile.QuotaRow
	for _, row := range rows {
		if tariff.Normalize(row.Code) == "" {
			continue
		}
		if !row.PerWeek.IsPositive() && !row.PerMonth.IsPositive() {
			continue
		}
		out = append(out, row)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

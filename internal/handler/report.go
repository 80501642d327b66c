package handler

// This file implements the report handlers that back the inspection wizard.

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/service"
)

// =============================================================================
// Request Types
// =============================================================================

type checklistRequest struct {
	Status domain.ChecklistStatus `json:"status"`
	Notes  string                 `json:"notes"`
}

type invertersRequest struct {
	Inverters []domain.InverterConfig `json:"inverters"`
}

type acRequest struct {
	Result any    `json:"result"`
	Notes  string `json:"notes"`
}

type serialRequest struct {
	Serial string `json:"serial"`
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// ReportHandler handles report HTTP requests.
type ReportHandler struct {
	reports service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger,
	}
}

// RegisterRoutes registers all report routes with the provided mux.
//
// Routes:
// - POST   /reports                                -> Create
// - GET    /reports                                -> List
// - GET    /reports/{id}                           -> Show
// - DELETE /reports/{id}                           -> Delete
// - PUT    /reports/{id}/metadata                  -> UpdateMetadata
// - PUT    /reports/{id}/checklist/{code}          -> SetChecklistItem
// - PUT    /reports/{id}/inverters                 -> ConfigureInverters
// - POST   /reports/{id}/measurements/{mid}/children -> AddChild
// - PUT    /reports/{id}/measurements/{mid}        -> UpdateMeasurement
// - DELETE /reports/{id}/measurements/{mid}        -> DeleteMeasurement
// - PUT    /reports/{id}/ac/{code}                 -> SetACMeasurement
// - PUT    /reports/{id}/serials/{index}           -> SetSerial
// - GET    /reports/{id}/defects                   -> ListDefects
// - POST   /reports/{id}/defects                   -> AddDefect
// - PUT    /reports/{id}/defects/{n}               -> UpdateDefect
// - DELETE /reports/{id}/defects/{n}               -> DeleteDefect
// - POST   /reports/{id}/defects/{n}/duplicate     -> DuplicateDefect
// - POST   /reports/{id}/defects/move              -> MoveDefect
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /reports", h.Create)
	mux.HandleFunc("GET /reports", h.List)
	mux.HandleFunc("GET /reports/{id}", h.Show)
	mux.HandleFunc("DELETE /reports/{id}", h.Delete)
	mux.HandleFunc("PUT /reports/{id}/metadata", h.UpdateMetadata)
	mux.HandleFunc("PUT /reports/{id}/checklist/{code}", h.SetChecklistItem)
	mux.HandleFunc("PUT /reports/{id}/inverters", h.ConfigureInverters)
	mux.HandleFunc("POST /reports/{id}/measurements/{mid}/children", h.AddChild)
	mux.HandleFunc("PUT /reports/{id}/measurements/{mid}", h.UpdateMeasurement)
	mux.HandleFunc("DELETE /reports/{id}/measurements/{mid}", h.DeleteMeasurement)
	mux.HandleFunc("PUT /reports/{id}/ac/{code}", h.SetACMeasurement)
	mux.HandleFunc("PUT /reports/{id}/serials/{index}", h.SetSerial)
	mux.HandleFunc("GET /reports/{id}/defects", h.ListDefects)
	mux.HandleFunc("POST /reports/{id}/defects", h.AddDefect)
	mux.HandleFunc("PUT /reports/{id}/defects/{n}", h.UpdateDefect)
	mux.HandleFunc("DELETE /reports/{id}/defects/{n}", h.DeleteDefect)
	mux.HandleFunc("POST /reports/{id}/defects/{n}/duplicate", h.DuplicateDefect)
	mux.HandleFunc("POST /reports/{id}/defects/move", h.MoveDefect)
}

// respond writes the updated report, or the error that prevented the update.
func (h *ReportHandler) respond(w http.ResponseWriter, r *http.Request, status int, report *domain.Report, err error) {
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, report)
}

// =============================================================================
// Lifecycle
// =============================================================================

// Create starts a new report. The body carries the initial metadata and may
// be omitted.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var meta domain.Metadata
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &meta); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}
	report, err := h.reports.Create(r.Context(), meta)
	h.respond(w, r, http.StatusCreated, report, err)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *ReportHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err == nil {
		err = h.reports.Delete(r.Context(), id)
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Form Sections
// =============================================================================

func (h *ReportHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var meta domain.Metadata
	if err := decodeJSON(w, r, &meta); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.UpdateMetadata(r.Context(), id, meta)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) SetChecklistItem(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req checklistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.SetChecklistItem(r.Context(), id, r.PathValue("code"), req.Status, req.Notes)
	h.respond(w, r, http.StatusOK, report, err)
}

// ConfigureInverters replaces the inverter list and regenerates root strings.
func (h *ReportHandler) ConfigureInverters(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req invertersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.ConfigureInverters(r.Context(), id, req.Inverters)
	h.respond(w, r, http.StatusOK, report, err)
}

// AddChild appends a child string and returns only the new measurement.
func (h *ReportHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	child, err := h.reports.AddChild(r.Context(), id, r.PathValue("mid"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func (h *ReportHandler) UpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var values domain.MeasurementValues
	if err := decodeJSON(w, r, &values); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.UpdateMeasurement(r.Context(), id, r.PathValue("mid"), values)
	h.respond(w, r, http.StatusOK, report, err)
}

// DeleteMeasurement removes a string and its whole subtree.
func (h *ReportHandler) DeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.DeleteMeasurement(r.Context(), id, r.PathValue("mid"))
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) SetACMeasurement(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req acRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.SetACMeasurement(r.Context(), id, r.PathValue("code"), req.Result, req.Notes)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) SetSerial(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	index, err := pathInt(r, "index")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req serialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.SetSerial(r.Context(), id, index, req.Serial)
	h.respond(w, r, http.StatusOK, report, err)
}

// =============================================================================
// Defects
// =============================================================================

// ListDefects returns the merged list: derived defects first, then the
// user-authored ones. Positions in the other defect routes index only the
// user-authored part.
func (h *ReportHandler) ListDefects(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defects, err := h.reports.Defects(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"defects": defects})
}

func (h *ReportHandler) AddDefect(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var d domain.Defect
	if err := decodeJSON(w, r, &d); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.AddDefect(r.Context(), id, d)
	h.respond(w, r, http.StatusCreated, report, err)
}

func (h *ReportHandler) UpdateDefect(w http.ResponseWriter, r *http.Request) {
	id, n, err := defectPath(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var d domain.Defect
	if err := decodeJSON(w, r, &d); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.UpdateDefect(r.Context(), id, n, d)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) DeleteDefect(w http.ResponseWriter, r *http.Request) {
	id, n, err := defectPath(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.DeleteDefect(r.Context(), id, n)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) DuplicateDefect(w http.ResponseWriter, r *http.Request) {
	id, n, err := defectPath(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.DuplicateDefect(r.Context(), id, n)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *ReportHandler) MoveDefect(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	report, err := h.reports.MoveDefect(r.Context(), id, req.From, req.To)
	h.respond(w, r, http.StatusOK, report, err)
}

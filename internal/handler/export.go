package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/storage"
)

// ReportExporter produces workbook downloads. service.ExportService
// implements it.
type ReportExporter interface {
	Export(ctx context.Context, id uuid.UUID) (*domain.Export, error)
	ListExports(ctx context.Context, id uuid.UUID) ([]storage.ObjectInfo, error)
}

// ExportHandler serves workbook exports.
type ExportHandler struct {
	exports ReportExporter
	logger  *slog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exports ReportExporter, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		logger:  logger,
	}
}

// RegisterRoutes registers the export routes. limit wraps the download route,
// which is the expensive one.
//
// Routes:
// - GET /reports/{id}/export  -> Download
// - GET /reports/{id}/exports -> ListArchived
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /reports/{id}/export", limit(http.HandlerFunc(h.Download)))
	mux.HandleFunc("GET /reports/{id}/exports", h.ListArchived)
}

// Download fills the template and sends it as an attachment.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out, err := h.exports.Export(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(out.Size()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		h.logger.Warn("Failed to send export", "error", err, "report_id", id)
	}
}

// ListArchived lists the workbooks archived for a report.
func (h *ExportHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	objects, err := h.exports.ListExports(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": objects})
}

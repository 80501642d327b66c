package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/middleware"
	"github.com/DukeRupert/solarcheck/internal/service"
	"github.com/DukeRupert/solarcheck/internal/storage"
	"github.com/DukeRupert/solarcheck/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExporter stands in for service.ExportService.
type fakeExporter struct {
	out *domain.Export
	err error
}

func (f *fakeExporter) Export(context.Context, uuid.UUID) (*domain.Export, error) {
	return f.out, f.err
}

func (f *fakeExporter) ListExports(context.Context, uuid.UUID) ([]storage.ObjectInfo, error) {
	return []storage.ObjectInfo{{Key: "inspections/x/exports/a.xlsx", Size: 10}}, f.err
}

func newTestMux(t *testing.T, exp ReportExporter) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	reports := service.NewReportService(store.NewMemoryStore(), discardLogger())
	NewReportHandler(reports, discardLogger()).RegisterRoutes(mux)
	noLimit := func(h http.Handler) http.Handler { return h }
	NewExportHandler(exp, discardLogger()).RegisterRoutes(mux, noLimit)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createReport(t *testing.T, mux http.Handler) domain.Report {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/reports", `{"siteName":"Depot","date":"2024-07-30"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Report](t, rec)
}

// =============================================================================
// Error Mapping
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{"something_else", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse_HidesInternalDetails(t *testing.T) {
	err := domain.Internal(errors.New("pq: password authentication failed"), "store.get", "failed to load report")

	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/reports/x", nil), discardLogger(), err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "store.get")

	got := decode[JSONError](t, rec)
	assert.Equal(t, domain.EINTERNAL, got.Error.Code)
}

func TestNotFoundResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundResponse(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil), discardLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.ENOTFOUND, decode[JSONError](t, rec).Error.Code)
}

func TestErrorResponse_CarriesRequestID(t *testing.T) {
	h := middleware.NewRequestLoggingMiddleware(discardLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, discardLogger(), domain.Invalid("test", "bad"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := decode[JSONError](t, rec)
	assert.Equal(t, "req-123", got.Error.RequestID)
	assert.Equal(t, "bad", got.Error.Message)
}

// =============================================================================
// Report Routes
// =============================================================================

func TestReportLifecycle(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})
	r := createReport(t, mux)
	base := "/reports/" + r.ID.String()

	assert.Equal(t, "Depot", r.Inspection.Metadata.SiteName)
	assert.NotEmpty(t, r.Inspection.Checklist)

	rec := do(t, mux, http.MethodGet, "/reports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Reports []domain.ReportSummary `json:"reports"`
	}](t, rec)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, r.ID, list.Reports[0].ID)

	rec = do(t, mux, http.MethodPut, base+"/metadata", `{"siteName":"North Barn","inspector":"K. Lind"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "North Barn", decode[domain.Report](t, rec).Inspection.Metadata.SiteName)

	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, base, "").Code)
}

func TestCreateReport_EmptyBody(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})

	rec := do(t, mux, http.MethodPost, "/reports", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestReportSections(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})
	r := createReport(t, mux)
	base := "/reports/" + r.ID.String()

	rec := do(t, mux, http.MethodPut, base+"/checklist/1.1", `{"status":"faulty","notes":"cracked glass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, mux, http.MethodPut, base+"/inverters", `{"inverters":[{"label":"West","stringCount":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[domain.Report](t, rec)
	roots := report.Inspection.MeasurementsInOrder(1)
	require.Len(t, roots, 2)

	rec = do(t, mux, http.MethodPost, base+"/measurements/"+roots[0].ID+"/children", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	child := decode[domain.DCStringMeasurement](t, rec)
	assert.Equal(t, roots[0].ID, child.ParentID)

	rec = do(t, mux, http.MethodPut, base+"/measurements/"+child.ID, `{"panelCount":12,"openCircuitVoltage":498.2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, mux, http.MethodDelete, base+"/measurements/"+child.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	afterDelete := decode[domain.Report](t, rec)
	assert.Len(t, afterDelete.Inspection.MeasurementsInOrder(1), 2)

	rec = do(t, mux, http.MethodPut, base+"/ac/1.1", `{"result":230.4,"notes":"stable"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, mux, http.MethodPut, base+"/serials/1", `{"serial":"SN-001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withSerial := decode[domain.Report](t, rec)
	require.NotEmpty(t, withSerial.Inspection.SortedSerials())
	assert.Equal(t, "SN-001", withSerial.Inspection.SortedSerials()[0].Serial)
}

func TestDefectRoutes(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})
	r := createReport(t, mux)
	base := "/reports/" + r.ID.String()

	require.Equal(t, http.StatusOK, do(t, mux, http.MethodPut, base+"/checklist/1.1", `{"status":"faulty"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, base+"/defects", `{"component":"A"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, base+"/defects", `{"component":"B"}`).Code)
	require.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, base+"/defects/0/duplicate", "").Code)
	require.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, base+"/defects/move", `{"from":2,"to":0}`).Code)
	require.Equal(t, http.StatusOK, do(t, mux, http.MethodPut, base+"/defects/1", `{"component":"A2"}`).Code)
	require.Equal(t, http.StatusOK, do(t, mux, http.MethodDelete, base+"/defects/0", "").Code)

	rec := do(t, mux, http.MethodGet, base+"/defects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Defects []domain.Defect `json:"defects"`
	}](t, rec)

	require.Len(t, got.Defects, 3)
	assert.Equal(t, domain.DerivedDefectStatus, got.Defects[0].Status)
	assert.Equal(t, "A2", got.Defects[1].Component)
	assert.Equal(t, "A", got.Defects[2].Component)
}

func TestReportRoutes_Errors(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})
	r := createReport(t, mux)
	base := "/reports/" + r.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
		code   string
	}{
		{"bad report id", http.MethodGet, "/reports/not-a-uuid", "", http.StatusBadRequest, domain.EINVALID},
		{"unknown report", http.MethodGet, "/reports/" + uuid.NewString(), "", http.StatusNotFound, domain.ENOTFOUND},
		{"missing body", http.MethodPut, base + "/metadata", "", http.StatusBadRequest, domain.EINVALID},
		{"malformed json", http.MethodPut, base + "/metadata", `{"siteName":`, http.StatusBadRequest, domain.EINVALID},
		{"unknown field", http.MethodPut, base + "/metadata", `{"site":"x"}`, http.StatusBadRequest, domain.EINVALID},
		{"bad status", http.MethodPut, base + "/checklist/1.1", `{"status":"broken"}`, http.StatusBadRequest, domain.EINVALID},
		{"unknown checklist code", http.MethodPut, base + "/checklist/42.0", `{"status":"normal"}`, http.StatusNotFound, domain.ENOTFOUND},
		{"negative string count", http.MethodPut, base + "/inverters", `{"inverters":[{"stringCount":-1}]}`, http.StatusBadRequest, domain.EINVALID},
		{"unknown parent", http.MethodPost, base + "/measurements/nope/children", "", http.StatusNotFound, domain.ENOTFOUND},
		{"non-integer serial index", http.MethodPut, base + "/serials/one", `{"serial":"x"}`, http.StatusBadRequest, domain.EINVALID},
		{"unconfigured inverter", http.MethodPut, base + "/serials/3", `{"serial":"x"}`, http.StatusNotFound, domain.ENOTFOUND},
		{"defect out of range", http.MethodDelete, base + "/defects/7", "", http.StatusNotFound, domain.ENOTFOUND},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[JSONError](t, rec).Error.Code)
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})
	r := createReport(t, mux)

	body := `{"siteName":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := do(t, mux, http.MethodPut, "/reports/"+r.ID.String()+"/metadata", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// =============================================================================
// Export Routes
// =============================================================================

func TestExportDownload(t *testing.T) {
	exp := &fakeExporter{out: &domain.Export{
		Filename:    "PV-Inspection_Depot_2024-07-30.xlsx",
		ContentType: domain.XLSXContentType,
		Data:        []byte("PK\x03\x04workbook"),
	}}
	mux := newTestMux(t, exp)

	rec := do(t, mux, http.MethodGet, "/reports/"+uuid.NewString()+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="PV-Inspection_Depot_2024-07-30.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "12", rec.Header().Get("Content-Length"))
	assert.Equal(t, exp.out.Data, rec.Body.Bytes())
}

func TestExportDownload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		retryAfter string
	}{
		{"template unavailable", domain.Unavailable(errors.New("404"), "report.fetch_template", "Template could not be fetched"), http.StatusServiceUnavailable, "5"},
		{"already running", domain.Conflict("ExportService.Export", "An export of this report is already running"), http.StatusConflict, "5"},
		{"unknown report", domain.NotFound("store.get", "report", "x"), http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t, &fakeExporter{err: tt.err})
			rec := do(t, mux, http.MethodGet, "/reports/"+uuid.NewString()+"/export", "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}

func TestExportList(t *testing.T) {
	mux := newTestMux(t, &fakeExporter{})

	rec := do(t, mux, http.MethodGet, "/reports/"+uuid.NewString()+"/exports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Exports []storage.ObjectInfo `json:"exports"`
	}](t, rec)
	require.Len(t, got.Exports, 1)
	assert.Equal(t, int64(10), got.Exports[0].Size)
}

// =============================================================================
// Health
// =============================================================================

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want int
	}{
		{"memory store", nil, http.StatusOK},
		{"database up", pinger{}, http.StatusOK},
		{"database down", pinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

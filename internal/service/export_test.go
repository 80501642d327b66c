package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/report"
	"github.com/DukeRupert/solarcheck/internal/storage"
	"github.com/DukeRupert/solarcheck/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExporter records what it was asked to export.
type fakeExporter struct {
	err     error
	during  func()
	defects []domain.Defect
	calls   int
}

func (f *fakeExporter) Export(_ context.Context, in domain.Inspection, defects []domain.Defect) (*domain.Export, error) {
	f.calls++
	f.defects = defects
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Export{
		Filename:    "PV-Inspection_" + in.Metadata.SiteName + ".xlsx",
		ContentType: domain.XLSXContentType,
		Data:        []byte("workbook"),
	}, nil
}

func createReport(t *testing.T, reports ReportService) *domain.Report {
	t.Helper()
	r, err := reports.Create(context.Background(), domain.Metadata{SiteName: "Depot"})
	require.NoError(t, err)
	return r
}

func TestExportService_MergesDefects(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	reports := NewReportService(st, discardLogger())
	r := createReport(t, reports)

	_, err := reports.SetChecklistItem(ctx, r.ID, "1.1", domain.ChecklistStatusFaulty, "cracked glass")
	require.NoError(t, err)
	_, err = reports.AddDefect(ctx, r.ID, domain.Defect{Component: "Cable tray", Fault: "Loose", Status: "Open"})
	require.NoError(t, err)

	exp := &fakeExporter{}
	svc := NewExportService(st, exp, NewMemoryGuard(), nil, discardLogger())

	out, err := svc.Export(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "PV-Inspection_Depot.xlsx", out.Filename)

	require.Len(t, exp.defects, 2)
	assert.Equal(t, "cracked glass", exp.defects[0].Fault, "derived defects come first")
	assert.Equal(t, "Cable tray", exp.defects[1].Component)
}

func TestExportService_NotFound(t *testing.T) {
	svc := NewExportService(store.NewMemoryStore(), &fakeExporter{}, NewMemoryGuard(), nil, discardLogger())

	_, err := svc.Export(context.Background(), uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestExportService_RejectsConcurrentExport(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := createReport(t, NewReportService(st, discardLogger()))

	exp := &fakeExporter{}
	svc := NewExportService(st, exp, NewMemoryGuard(), nil, discardLogger())

	var nestedErr error
	exp.during = func() {
		exp.during = nil
		_, nestedErr = svc.Export(ctx, r.ID)
	}

	_, err := svc.Export(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(nestedErr))
	assert.Equal(t, 1, exp.calls)
}

func TestExportService_ReleasesGuardOnFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := createReport(t, NewReportService(st, discardLogger()))

	exp := &fakeExporter{err: domain.Internal(errors.New("boom"), "report.export", "failed")}
	svc := NewExportService(st, exp, NewMemoryGuard(), nil, discardLogger())

	_, err := svc.Export(ctx, r.ID)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))

	exp.err = nil
	_, err = svc.Export(ctx, r.ID)
	assert.NoError(t, err, "guard is free after a failed export")
}

// A template URL that answers 404 fails the export as unavailable, and the
// report can be exported again because the guard was released.
func TestExportService_TemplateNotFound(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	st := store.NewMemoryStore()
	r := createReport(t, NewReportService(st, discardLogger()))

	_, redisGuard := setupTestRedis(t)
	exporter := report.NewExporter(report.NewHTTPTemplateSource(srv.URL, time.Second), "", discardLogger())
	svc := NewExportService(st, exporter, redisGuard, nil, discardLogger())

	for i := 0; i < 2; i++ {
		out, err := svc.Export(ctx, r.ID)
		assert.Nil(t, out)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err), "attempt %d", i+1)
	}
}

func TestExportService_Archive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := createReport(t, NewReportService(st, discardLogger()))

	archive, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, discardLogger())
	require.NoError(t, err)

	svc := NewExportService(st, &fakeExporter{}, NewMemoryGuard(), archive, discardLogger())

	_, err = svc.Export(ctx, r.ID)
	require.NoError(t, err)
	_, err = svc.Export(ctx, r.ID)
	require.NoError(t, err)

	objects, err := svc.ListExports(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, int64(len("workbook")), objects[0].Size)

	_, err = svc.ListExports(ctx, uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

// failingStorage rejects every write.
type failingStorage struct {
	storage.Storage
}

func (failingStorage) Put(context.Context, string, io.Reader, storage.PutOptions) error {
	return storage.ErrNotFound
}

func TestExportService_ArchiveFailureDoesNotFailExport(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := createReport(t, NewReportService(st, discardLogger()))

	svc := NewExportService(st, &fakeExporter{}, NewMemoryGuard(), failingStorage{}, discardLogger())

	out, err := svc.Export(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("workbook"), out.Data)
}

func TestExportService_ListExportsWithoutArchive(t *testing.T) {
	st := store.NewMemoryStore()
	r := createReport(t, NewReportService(st, discardLogger()))
	svc := NewExportService(st, &fakeExporter{}, NewMemoryGuard(), nil, discardLogger())

	objects, err := svc.ListExports(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

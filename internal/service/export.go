package service

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/metrics"
	"github.com/DukeRupert/solarcheck/internal/storage"
)

// WorkbookExporter fills the inspection template. report.Exporter implements it.
type WorkbookExporter interface {
	Export(ctx context.Context, in domain.Inspection, defects []domain.Defect) (*domain.Export, error)
}

// ExportService turns stored reports into workbook downloads.
type ExportService struct {
	reports  ReportStore
	exporter WorkbookExporter
	guard    Guard
	archive  storage.Storage // nil disables archiving
	logger   *slog.Logger
}

// NewExportService creates a new ExportService. archive may be nil.
func NewExportService(reports ReportStore, exporter WorkbookExporter, guard Guard, archive storage.Storage, logger *slog.Logger) *ExportService {
	return &ExportService{
		reports:  reports,
		exporter: exporter,
		guard:    guard,
		archive:  archive,
		logger:   logger,
	}
}

// Export fills the template from a snapshot of the report. Defects are the
// merged list: derived defects first, then the user-authored ones.
//
// A second export of the same report while one is running is ECONFLICT.
func (s *ExportService) Export(ctx context.Context, id uuid.UUID) (*domain.Export, error) {
	const op = "ExportService.Export"

	release, ok, err := s.guard.Acquire(ctx, id.String())
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failed").Inc()
		return nil, domain.Unavailable(err, op, "Export lock is unavailable")
	}
	if !ok {
		metrics.ExportsTotal.WithLabelValues("conflict").Inc()
		return nil, domain.Conflict(op, "An export of this report is already running")
	}
	defer release()

	start := time.Now()
	r, err := s.reports.Get(ctx, id)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	snapshot := r.Inspection.Clone()
	out, err := s.exporter.Export(ctx, snapshot, snapshot.MergedDefects())
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("Export failed", "error", err, "op", op, "report_id", id)
		return nil, err
	}

	metrics.ExportsTotal.WithLabelValues("success").Inc()
	metrics.ExportDuration.Observe(time.Since(start).Seconds())
	metrics.ExportBytes.Observe(float64(out.Size()))

	s.archiveExport(ctx, id, out)

	s.logger.Info("Report exported",
		"report_id", id,
		"filename", out.Filename,
		"size", out.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// archiveExport archives a finished export. Failures are logged and never fail the
// export itself.
func (s *ExportService) archiveExport(ctx context.Context, id uuid.UUID, out *domain.Export) {
	if s.archive == nil {
		return
	}
	key := storage.ExportKey(id, time.Now())
	err := s.archive.Put(ctx, key, bytes.NewReader(out.Data), storage.PutOptions{
		ContentType: out.ContentType,
	})
	if err != nil {
		s.logger.Warn("Failed to archive export", "error", err, "report_id", id, "key", key)
		return
	}
	s.logger.Debug("Export archived", "report_id", id, "key", key)
}

// ListExports returns the archived exports of a report. It is empty when
// archiving is disabled.
func (s *ExportService) ListExports(ctx context.Context, id uuid.UUID) ([]storage.ObjectInfo, error) {
	const op = "ExportService.ListExports"

	if _, err := s.reports.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return []storage.ObjectInfo{}, nil
	}
	objects, err := s.archive.List(ctx, storage.ExportsPrefix(id))
	if err != nil {
		return nil, storage.ToDomainError(err, op, "Failed to list archived exports")
	}
	return objects, nil
}

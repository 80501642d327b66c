package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/DukeRupert/solarcheck/internal/catalog"
	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/metrics"
)

// ReportStore is the persistence the report services depend on.
// store.PostgresStore and store.MemoryStore implement it.
type ReportStore interface {
	Create(ctx context.Context, r *domain.Report) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	Save(ctx context.Context, r *domain.Report) error
	List(ctx context.Context) ([]domain.ReportSummary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReportService defines the operations the inspection wizard performs on a
// stored report. Every mutation loads the report, applies the change to the
// inspection and persists it as a whole.
type ReportService interface {
	// Create starts a new report populated from the catalogs.
	Create(ctx context.Context, meta domain.Metadata) (*domain.Report, error)

	// Get retrieves a report by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)

	// List returns all reports, most recently updated first.
	List(ctx context.Context) ([]domain.ReportSummary, error)

	// Delete removes a report.
	Delete(ctx context.Context, id uuid.UUID) error

	UpdateMetadata(ctx context.Context, id uuid.UUID, meta domain.Metadata) (*domain.Report, error)
	SetChecklistItem(ctx context.Context, id uuid.UUID, code string, status domain.ChecklistStatus, notes string) (*domain.Report, error)
	ConfigureInverters(ctx context.Context, id uuid.UUID, configs []domain.InverterConfig) (*domain.Report, error)

	// AddChild appends a child string under parentID and returns it.
	AddChild(ctx context.Context, id uuid.UUID, parentID string) (*domain.DCStringMeasurement, error)
	UpdateMeasurement(ctx context.Context, id uuid.UUID, measurementID string, values domain.MeasurementValues) (*domain.Report, error)
	DeleteMeasurement(ctx context.Context, id uuid.UUID, measurementID string) (*domain.Report, error)

	SetACMeasurement(ctx context.Context, id uuid.UUID, code string, result any, notes string) (*domain.Report, error)
	SetSerial(ctx context.Context, id uuid.UUID, inverterIndex int, serial string) (*domain.Report, error)

	// Defects returns the derived defects followed by the user-authored ones.
	Defects(ctx context.Context, id uuid.UUID) ([]domain.Defect, error)
	AddDefect(ctx context.Context, id uuid.UUID, d domain.Defect) (*domain.Report, error)
	UpdateDefect(ctx context.Context, id uuid.UUID, index int, d domain.Defect) (*domain.Report, error)
	DeleteDefect(ctx context.Context, id uuid.UUID, index int) (*domain.Report, error)
	DuplicateDefect(ctx context.Context, id uuid.UUID, index int) (*domain.Report, error)
	MoveDefect(ctx context.Context, id uuid.UUID, from, to int) (*domain.Report, error)
}

// reportService implements ReportService.
type reportService struct {
	store  ReportStore
	logger *slog.Logger

	// mu serialises load-mutate-save cycles within this process.
	mu sync.Mutex
}

// NewReportService creates a new ReportService.
func NewReportService(store ReportStore, logger *slog.Logger) ReportService {
	return &reportService{
		store:  store,
		logger: logger,
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Create creates a new report with the catalogs populated and the given
// metadata.
func (s *reportService) Create(ctx context.Context, meta domain.Metadata) (*domain.Report, error) {
	const op = "ReportService.Create"

	// Build the inspection with every catalog entry present
	in := domain.NewInspection()
	in.Metadata = trimMetadata(meta)
	if err := catalog.Populate(in); err != nil {
		return nil, domain.Internal(err, op, "Failed to load catalogs")
	}

	// Persist report
	r := &domain.Report{ID: uuid.New(), Inspection: *in}
	if err := s.store.Create(ctx, r); err != nil {
		s.logger.Error("Failed to create report", "error", err, "op", op)
		return nil, err
	}
	metrics.ReportsCreated.Inc()

	s.logger.Info("Report created", "report_id", r.ID, "site", r.Inspection.Metadata.SiteName)
	return r, nil
}

// Get retrieves a report by ID.
func (s *reportService) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Reports created before a catalog entry was added pick it up on read.
	if err := catalog.Populate(&r.Inspection); err != nil {
		return nil, domain.Internal(err, "ReportService.Get", "Failed to load catalogs")
	}
	return r, nil
}

// List returns summaries of all stored reports.
func (s *reportService) List(ctx context.Context) ([]domain.ReportSummary, error) {
	return s.store.List(ctx)
}

// Delete deletes a report.
func (s *reportService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Report deleted", "report_id", id)
	return nil
}

// =============================================================================
// Mutations
// =============================================================================

// mutate runs fn against the stored inspection and persists the result.
// Nothing is saved when fn fails.
func (s *reportService) mutate(ctx context.Context, op string, id uuid.UUID, fn func(in *domain.Inspection) error) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(&r.Inspection); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		s.logger.Error("Failed to save report", "error", err, "op", op, "report_id", id)
		return nil, err
	}
	metrics.ReportsMutated.WithLabelValues(op).Inc()

	s.logger.Debug("Report updated", "report_id", id, "op", op)
	return r, nil
}

// UpdateMetadata replaces the site metadata of a report.
func (s *reportService) UpdateMetadata(ctx context.Context, id uuid.UUID, meta domain.Metadata) (*domain.Report, error) {
	return s.mutate(ctx, "metadata", id, func(in *domain.Inspection) error {
		in.Metadata = trimMetadata(meta)
		return nil
	})
}

// SetChecklistItem records the status and notes of one checklist item.
func (s *reportService) SetChecklistItem(ctx context.Context, id uuid.UUID, code string, status domain.ChecklistStatus, notes string) (*domain.Report, error) {
	return s.mutate(ctx, "checklist", id, func(in *domain.Inspection) error {
		return in.SetChecklistItem(code, status, notes)
	})
}

// ConfigureInverters replaces the inverter layout and regenerates the root
// strings of each inverter.
func (s *reportService) ConfigureInverters(ctx context.Context, id uuid.UUID, configs []domain.InverterConfig) (*domain.Report, error) {
	return s.mutate(ctx, "inverters", id, func(in *domain.Inspection) error {
		return in.ConfigureInverters(configs)
	})
}

// AddChild appends a child string measurement and returns it.
func (s *reportService) AddChild(ctx context.Context, id uuid.UUID, parentID string) (*domain.DCStringMeasurement, error) {
	var child *domain.DCStringMeasurement
	_, err := s.mutate(ctx, "add_child", id, func(in *domain.Inspection) error {
		m, err := in.AddChild(parentID)
		if err != nil {
			return err
		}
		child = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// UpdateMeasurement replaces the readings of a string measurement.
func (s *reportService) UpdateMeasurement(ctx context.Context, id uuid.UUID, measurementID string, values domain.MeasurementValues) (*domain.Report, error) {
	return s.mutate(ctx, "update_measurement", id, func(in *domain.Inspection) error {
		return in.UpdateMeasurement(measurementID, values)
	})
}

// DeleteMeasurement removes a string measurement and its descendants.
func (s *reportService) DeleteMeasurement(ctx context.Context, id uuid.UUID, measurementID string) (*domain.Report, error) {
	return s.mutate(ctx, "delete_measurement", id, func(in *domain.Inspection) error {
		return in.DeleteMeasurement(measurementID)
	})
}

// SetACMeasurement records the result and notes of one AC measurement.
func (s *reportService) SetACMeasurement(ctx context.Context, id uuid.UUID, code string, result any, notes string) (*domain.Report, error) {
	return s.mutate(ctx, "ac", id, func(in *domain.Inspection) error {
		return in.SetACMeasurement(code, result, notes)
	})
}

// SetSerial sets the serial number of an inverter.
func (s *reportService) SetSerial(ctx context.Context, id uuid.UUID, inverterIndex int, serial string) (*domain.Report, error) {
	return s.mutate(ctx, "serial", id, func(in *domain.Inspection) error {
		return in.SetSerial(inverterIndex, strings.TrimSpace(serial))
	})
}

// =============================================================================
// Defects
// =============================================================================

// Defects returns the defects derived from the checklist followed by the
// manual ones.
func (s *reportService) Defects(ctx context.Context, id uuid.UUID) ([]domain.Defect, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Inspection.MergedDefects(), nil
}

// AddDefect appends a manual defect.
func (s *reportService) AddDefect(ctx context.Context, id uuid.UUID, d domain.Defect) (*domain.Report, error) {
	return s.mutate(ctx, "add_defect", id, func(in *domain.Inspection) error {
		in.AddDefect(d)
		return nil
	})
}

// UpdateDefect replaces the defect at index.
func (s *reportService) UpdateDefect(ctx context.Context, id uuid.UUID, index int, d domain.Defect) (*domain.Report, error) {
	return s.mutate(ctx, "update_defect", id, func(in *domain.Inspection) error {
		return in.UpdateDefect(index, d)
	})
}

// DeleteDefect removes the defect at index.
func (s *reportService) DeleteDefect(ctx context.Context, id uuid.UUID, index int) (*domain.Report, error) {
	return s.mutate(ctx, "delete_defect", id, func(in *domain.Inspection) error {
		return in.DeleteDefect(index)
	})
}

// DuplicateDefect inserts a copy of the defect at index right after it.
func (s *reportService) DuplicateDefect(ctx context.Context, id uuid.UUID, index int) (*domain.Report, error) {
	return s.mutate(ctx, "duplicate_defect", id, func(in *domain.Inspection) error {
		return in.DuplicateDefect(index)
	})
}

// MoveDefect moves the defect at from to position to.
func (s *reportService) MoveDefect(ctx context.Context, id uuid.UUID, from, to int) (*domain.Report, error) {
	return s.mutate(ctx, "move_defect", id, func(in *domain.Inspection) error {
		return in.MoveDefect(from, to)
	})
}

// trimMetadata strips surrounding whitespace from every metadata field.
func trimMetadata(m domain.Metadata) domain.Metadata {
	return domain.Metadata{
		SiteName:  strings.TrimSpace(m.SiteName),
		Date:      strings.TrimSpace(m.Date),
		Inspector: strings.TrimSpace(m.Inspector),
		Signature: strings.TrimSpace(m.Signature),
	}
}

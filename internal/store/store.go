// Package store persists inspection reports.
//
// A report is stored as one JSON document per row. The whole inspection is
// rewritten on every mutation; there is no partial update path.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/solarcheck/internal/domain"
)

// PostgresStore stores reports in the reports table.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore creates a store on db, which must use the pgx driver.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const insertReport = `
INSERT INTO reports (id, inspection, site_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)`

// Create inserts a new report and sets its timestamps.
func (s *PostgresStore) Create(ctx context.Context, r *domain.Report) error {
	const op = "store.create"

	doc, err := json.Marshal(r.Inspection)
	if err != nil {
		return domain.Internal(err, op, "failed to encode inspection")
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, insertReport, r.ID, doc, r.Inspection.Metadata.SiteName, now); err != nil {
		return domain.Internal(err, op, "failed to insert report")
	}
	r.CreatedAt, r.UpdatedAt = now, now

	s.logger.Debug("Report created", "report_id", r.ID)
	return nil
}

const selectReport = `
SELECT id, inspection, created_at, updated_at
FROM reports
WHERE id = $1`

// Get loads one report. A missing report is ENOTFOUND.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	const op = "store.get"

	var (
		r   domain.Report
		doc []byte
	)
	err := s.db.QueryRowContext(ctx, selectReport, id).Scan(&r.ID, &doc, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "report", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load report")
	}
	if err := json.Unmarshal(doc, &r.Inspection); err != nil {
		return nil, domain.Internal(err, op, fmt.Sprintf("report %s holds an unreadable inspection", id))
	}
	return &r, nil
}

const updateReport = `
UPDATE reports
SET inspection = $2, site_name = $3, updated_at = $4
WHERE id = $1`

// Save rewrites the inspection of an existing report.
func (s *PostgresStore) Save(ctx context.Context, r *domain.Report) error {
	const op = "store.save"

	doc, err := json.Marshal(r.Inspection)
	if err != nil {
		return domain.Internal(err, op, "failed to encode inspection")
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, updateReport, r.ID, doc, r.Inspection.Metadata.SiteName, now)
	if err != nil {
		return domain.Internal(err, op, "failed to update report")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to update report")
	}
	if n == 0 {
		return domain.NotFound(op, "report", r.ID.String())
	}
	r.UpdatedAt = now
	return nil
}

const listReports = `
SELECT id, site_name, COALESCE(inspection->'metadata'->>'date', ''), updated_at
FROM reports
ORDER BY updated_at DESC`

// List returns all reports, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]domain.ReportSummary, error) {
	const op = "store.list"

	rows, err := s.db.QueryContext(ctx, listReports)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list reports")
	}
	defer rows.Close()

	out := []domain.ReportSummary{}
	for rows.Next() {
		var r domain.ReportSummary
		if err := rows.Scan(&r.ID, &r.SiteName, &r.Date, &r.UpdatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan report")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list reports")
	}
	return out, nil
}

const deleteReport = `DELETE FROM reports WHERE id = $1`

// Delete removes a report. A missing report is ENOTFOUND.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "store.delete"

	res, err := s.db.ExecContext(ctx, deleteReport, id)
	if err != nil {
		return domain.Internal(err, op, "failed to delete report")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to delete report")
	}
	if n == 0 {
		return domain.NotFound(op, "report", id.String())
	}

	s.logger.Debug("Report deleted", "report_id", id)
	return nil
}

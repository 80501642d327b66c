// Package domain contains core business types and interfaces.
//
// This file defines the Report record that wraps an inspection in the report
// store, and the export artifact produced from it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// XLSXContentType is the MIME type of an Office Open XML workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// Report Record
// =============================================================================

// Report is one stored inspection report. The inspection is persisted as a
// single JSON document.
type Report struct {
	ID         uuid.UUID  `json:"id"`
	Inspection Inspection `json:"inspection"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ReportSummary is the list view of a report.
type ReportSummary struct {
	ID        uuid.UUID `json:"id"`
	SiteName  string    `json:"siteName"`
	Date      string    `json:"date"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the list view of the report.
func (r *Report) Summary() ReportSummary {
	return ReportSummary{
		ID:        r.ID,
		SiteName:  r.Inspection.Metadata.SiteName,
		Date:      r.Inspection.Metadata.Date,
		UpdatedAt: r.UpdatedAt,
	}
}

// =============================================================================
// Export Artifact
// =============================================================================

// Export is a filled workbook ready to be handed to the client.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the size of the workbook in bytes.
func (e *Export) Size() int {
	return len(e.Data)
}

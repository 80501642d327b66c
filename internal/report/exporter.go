// Package report fills the official inspection workbook template.
//
// The template is treated as a fixed visual layout. Target cells are located
// by scanning marker columns (see Resolve), values are written without
// touching cell styles, and the alternating row stripes the template draws
// through table styles are baked into explicit cell fills before the tables
// themselves are removed.
package report

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/metrics"
)

// Stripe ranges per sheet.
const (
	stripeStartRow     = 2
	checklistStripeEnd = 84
	checklistColumns   = 4
	dcColumns          = 8
	acStripeEnd        = 42
	acColumns          = 4
	defectColumns      = 4
)

// Exporter fills the template with one inspection.
type Exporter struct {
	source TemplateSource
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates an exporter reading the template from source. prefix
// starts every export filename; empty selects DefaultFilenamePrefix.
func NewExporter(source TemplateSource, prefix string, logger *slog.Logger) *Exporter {
	return &Exporter{
		source: source,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Export fills a fresh copy of the template with in and returns the
// serialized workbook.
//
// defects is the merged derived and user-authored defects list. When nil the
// user-authored defects of in are exported alone.
func (e *Exporter) Export(ctx context.Context, in domain.Inspection, defects []domain.Defect) (*domain.Export, error) {
	const op = "report.export"

	tpl, err := e.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(tpl))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Template is not a valid workbook")
	}
	defer f.Close()

	if defects == nil {
		defects = in.Defects
	}

	if err := e.fill(f, &in, defects); err != nil {
		return nil, domain.Internal(err, op, "failed to fill template")
	}

	tables, err := removeTables(f)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to remove tables")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to serialize workbook")
	}
	data, err := stripAutoFilters(buf.Bytes())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to remove autofilters")
	}

	export := &domain.Export{
		Filename:    Filename(e.prefix, in.Metadata.SiteName, in.Metadata.Date, e.now()),
		ContentType: domain.XLSXContentType,
		Data:        data,
	}
	e.logger.Debug("Workbook exported",
		"filename", export.Filename,
		"bytes", export.Size(),
		"tables_removed", tables,
		"defects", len(defects),
	)
	return export, nil
}

// fill runs every sheet filler followed by its stripe baker. Sheets missing
// from the template are skipped.
func (e *Exporter) fill(f *excelize.File, in *domain.Inspection, defects []domain.Defect) error {
	if s, ok := OpenSheet(f, SheetChecklist); ok {
		if err := FillChecklist(s, in.Metadata, in.Checklist); err != nil {
			return err
		}
		if err := BakeStripes(s, stripeStartRow, checklistStripeEnd, checklistColumns); err != nil {
			return err
		}
	} else {
		e.logger.Debug("Template sheet missing, skipping", "sheet", SheetChecklist)
	}

	if s, ok := OpenSheet(f, SheetDC); ok {
		last, err := FillDC(s, in)
		if err != nil {
			return err
		}
		if err := BakeStripes(s, stripeStartRow, last, dcColumns); err != nil {
			return err
		}
	} else {
		e.logger.Debug("Template sheet missing, skipping", "sheet", SheetDC)
	}

	if s, ok := OpenSheet(f, SheetAC); ok {
		if err := FillAC(s, in.AC, in.SortedSerials()); err != nil {
			return err
		}
		if err := BakeStripes(s, stripeStartRow, acStripeEnd, acColumns); err != nil {
			return err
		}
	} else {
		e.logger.Debug("Template sheet missing, skipping", "sheet", SheetAC)
	}

	if s, ok := OpenSheet(f, SheetDefects); ok {
		if len(defects) > DefectTemplateRows {
			e.logger.Warn("Defects exceed template rows, extending sheet",
				"defects", len(defects),
				"template_rows", DefectTemplateRows,
			)
			metrics.DefectRowsOverflowed.Add(float64(len(defects) - DefectTemplateRows))
		}
		if err := FillDefects(s, defects); err != nil {
			return err
		}
		end := max(stripeStartRow, len(defects)+1)
		if err := BakeStripes(s, stripeStartRow, end, defectColumns); err != nil {
			return err
		}
	} else {
		e.logger.Debug("Template sheet missing, skipping", "sheet", SheetDefects)
	}
	return nil
}

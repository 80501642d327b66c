package report

import (
	"github.com/DukeRupert/solarcheck/internal/domain"
)

// =============================================================================
// Template Layout
// =============================================================================

// Sheet names of the inspection template. The AC sheet name carries a
// leading space in the official template.
const (
	SheetChecklist = "Checklist"
	SheetDC        = "DC Strings"
	SheetAC        = " AC Measurements"
	SheetDefects   = "Defects"
)

// Column indexes, 1-based.
const (
	colA = iota + 1
	colB
	colC
	colD
	colE
	colF
	colG
)

// Checklist sheet layout.
const (
	checklistHeaderRow = 2
	checklistFooterRow = 86
	checklistKeyColumn = colA
	checklistStatusCol = colC
	checklistNotesCol  = colD
)

// DC sheet layout.
const dcStartRow = 1

// AC sheet layout.
const (
	acKeyColumn    = colA
	acResultCol    = colC
	acNotesCol     = colD
	serialKeyCol   = colB
	serialValueCol = colC

	// SerialRowMarker starts the marker text of every serial-number row.
	SerialRowMarker = "Serial number"
)

// Defects sheet layout.
const (
	defectFirstRow = 2

	// DefectTemplateRows is the number of defect rows the template provisions.
	DefectTemplateRows = 20
)

// =============================================================================
// Checklist
// =============================================================================

// FillChecklist writes the form header, the sign-off block and the status
// and notes of every checklist item whose code is found in column A.
func FillChecklist(s *Sheet, meta domain.Metadata, items []domain.ChecklistItem) error {
	writes := []struct {
		col, row int
		value    any
	}{
		{colB, checklistHeaderRow, meta.SiteName},
		{colD, checklistHeaderRow, meta.Date},
		{colB, checklistFooterRow, meta.Inspector},
		{colD, checklistFooterRow, meta.Signature},
	}
	for _, w := range writes {
		if err := s.Set(w.col, w.row, w.value); err != nil {
			return err
		}
	}

	addr, err := Resolve(s, checklistKeyColumn, SectionCode)
	if err != nil {
		return err
	}
	for _, item := range items {
		row, ok := addr.Row(item.Code)
		if !ok {
			continue
		}
		if err := s.Set(checklistStatusCol, row, item.Status.String()); err != nil {
			return err
		}
		if err := s.Set(checklistNotesCol, row, item.Notes); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// DC Strings
// =============================================================================

// FillDC writes one header row per inverter followed by one row per string
// measurement in depth-first pre-order. It returns the last row written, or
// zero when there were no inverters.
func FillDC(s *Sheet, in *domain.Inspection) (int, error) {
	row := dcStartRow
	last := 0
	for _, inv := range in.Inverters {
		if err := s.Set(colA, row, inv.Index); err != nil {
			return last, err
		}
		last = row
		row++

		for _, m := range in.MeasurementsInOrder(inv.Index) {
			values := []any{
				m.Label,
				m.PanelCount,
				m.OpenCircuitVoltage,
				m.OperatingCurrent,
				m.StringInsulation,
				m.FeedInsulationPositive,
				m.FeedInsulationNegative,
			}
			for i, v := range values {
				if err := s.Set(colA+i, row, v); err != nil {
					return last, err
				}
			}
			last = row
			row++
		}
	}
	return last, nil
}

// =============================================================================
// AC Measurements
// =============================================================================

// FillAC writes the result and notes of every AC measurement whose code is
// found in column A, then writes the serials into the serial-number rows. The
// i-th serial goes to the i-th marker row in document order.
func FillAC(s *Sheet, measurements []domain.ACMeasurement, serials []domain.InverterSerial) error {
	addr, err := Resolve(s, acKeyColumn, SectionCode)
	if err != nil {
		return err
	}
	for _, m := range measurements {
		row, ok := addr.Row(m.Code)
		if !ok {
			continue
		}
		if err := s.Set(acResultCol, row, m.Result); err != nil {
			return err
		}
		if err := s.Set(acNotesCol, row, m.Notes); err != nil {
			return err
		}
	}

	serialRows, err := Resolve(s, serialKeyCol, HasPrefix(SerialRowMarker))
	if err != nil {
		return err
	}
	rows := serialRows.Rows()
	for i, serial := range serials {
		if i >= len(rows) {
			break
		}
		if err := s.Set(serialValueCol, rows[i], serial.Serial); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Defects
// =============================================================================

// FillDefects writes the i-th defect into row i+2. Rows past the ones the
// template provisions are written the same way.
func FillDefects(s *Sheet, defects []domain.Defect) error {
	for i, d := range defects {
		row := defectFirstRow + i
		for j, v := range []string{d.Component, d.Fault, d.Location, d.Status} {
			if err := s.Set(colA+j, row, v); err != nil {
				return err
			}
		}
	}
	return nil
}

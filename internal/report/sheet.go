package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is a handle on one worksheet of an open workbook. Cells are addressed
// by 1-based (column, row) pairs.
type Sheet struct {
	file *excelize.File
	name string
}

// OpenSheet returns a handle on the named worksheet, or false when the
// workbook has no sheet with that exact name.
func OpenSheet(f *excelize.File, name string) (*Sheet, bool) {
	idx, err := f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, false
	}
	return &Sheet{file: f, name: name}, true
}

// Name returns the worksheet name.
func (s *Sheet) Name() string {
	return s.name
}

// Rows returns the text of every row, in document order. Row i of the result
// is sheet row i+1.
func (s *Sheet) Rows() ([][]string, error) {
	rows, err := s.file.GetRows(s.name)
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", s.name, err)
	}
	return rows, nil
}

// Value returns the formatted text of a cell.
func (s *Sheet) Value(col, row int) (string, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return s.file.GetCellValue(s.name, ref)
}

// Set writes v into a cell when v carries a value. Nil values, nil pointers
// and empty strings are skipped so template placeholders survive. Only the
// value is written; the cell keeps the style it already has.
func (s *Sheet) Set(col, row int, v any) error {
	v, ok := present(v)
	if !ok {
		return nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := s.file.SetCellValue(s.name, ref, v); err != nil {
		return fmt.Errorf("write %s!%s: %w", s.name, ref, err)
	}
	return nil
}

// present unwraps optional values and reports whether there is anything to write.
func present(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case *string:
		if t == nil || *t == "" {
			return nil, false
		}
		return *t, true
	case *int:
		if t == nil {
			return nil, false
		}
		return *t, true
	case *float64:
		if t == nil {
			return nil, false
		}
		return *t, true
	}
	return v, true
}

// styleID returns the style index of a cell.
func (s *Sheet) styleID(col, row int) (int, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return 0, err
	}
	return s.file.GetCellStyle(s.name, ref)
}

// setStyleID assigns a style index to a cell.
func (s *Sheet) setStyleID(col, row, id int) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return s.file.SetCellStyle(s.name, ref, ref, id)
}

package report

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Placeholder values the test template carries in cells the fillers may skip.
const (
	placeholderNotes  = "n/a"
	placeholderSerial = "not recorded"
)

// headerFill is the solid fill of pre-styled section rows in the test template.
const headerFill = "FFC000"

type staticSource []byte

func (s staticSource) Fetch(context.Context) ([]byte, error) {
	return s, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTemplate builds an in-memory workbook shaped like the inspection
// template. Sheets named in omit are left out.
func newTemplate(t *testing.T, omit ...string) *excelize.File {
	t.Helper()

	skip := make(map[string]bool)
	for _, name := range omit {
		skip[name] = true
	}

	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })

	bordered, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Family: "Calibri", Size: 11},
		Border: []excelize.Border{{Type: "bottom", Color: "999999", Style: 1}},
	})
	require.NoError(t, err)
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	require.NoError(t, err)

	sheets := []string{SheetChecklist, SheetDC, SheetAC, SheetDefects}
	first := true
	for _, name := range sheets {
		if skip[name] {
			continue
		}
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
	}
	if first {
		// Every sheet omitted; keep the default sheet under a neutral name.
		require.NoError(t, f.SetSheetName("Sheet1", "Cover"))
	}

	set := func(sheet, cell string, v any) {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}

	if !skip[SheetChecklist] {
		s := SheetChecklist
		set(s, "A2", "Site")
		set(s, "C2", "Date")
		for i, h := range []string{"Code", "Item", "Status", "Notes"} {
			cell, _ := excelize.CoordinatesToCellName(i+1, 3)
			set(s, cell, h)
		}
		set(s, "A4", "1.1")
		set(s, "B4", "Site access")
		set(s, "A5", "1.2")
		set(s, "B5", "Signage")
		set(s, "A6", "2 Modules")
		set(s, "A7", "2.1")
		set(s, "B7", "Module damage")
		set(s, "A8", "2.2")
		set(s, "B8", "Shading")
		set(s, "D8", placeholderNotes)
		set(s, "A86", "Inspector")
		set(s, "C86", "Signature")
		require.NoError(t, f.SetCellStyle(s, "A4", "D8", bordered))
		require.NoError(t, f.SetCellStyle(s, "A6", "D6", header))
		require.NoError(t, f.AddTable(s, &excelize.Table{
			Range:     "A3:D84",
			Name:      "ChecklistTable",
			StyleName: "TableStyleMedium2",
		}))
	}

	if !skip[SheetAC] {
		s := SheetAC
		for i, h := range []string{"Code", "Measurement", "Result", "Notes"} {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			set(s, cell, h)
		}
		set(s, "A3", "1.1")
		set(s, "B3", "Voltage L1-N")
		set(s, "A4", "1.2")
		set(s, "B4", "Frequency")
		set(s, "A5", "3.1")
		set(s, "B5", "Insulation")
		set(s, "B10", "Serial number inverter 1")
		set(s, "B11", "Serial number inverter 2")
		set(s, "C11", placeholderSerial)
		set(s, "B12", "Serial number inverter 3")
		require.NoError(t, f.AddTable(s, &excelize.Table{
			Range:     "A1:D42",
			Name:      "ACTable",
			StyleName: "TableStyleMedium2",
		}))
	}

	if !skip[SheetDefects] {
		s := SheetDefects
		for i, h := range []string{"Component", "Fault", "Location", "Status"} {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			set(s, cell, h)
		}
		require.NoError(t, f.AutoFilter(s, "A1:D21", nil))
	}

	return f
}

func templateBytes(t *testing.T, f *excelize.File) []byte {
	t.Helper()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func sheetOf(t *testing.T, f *excelize.File, name string) *Sheet {
	t.Helper()
	s, ok := OpenSheet(f, name)
	require.True(t, ok, "sheet %q", name)
	return s
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

func cellStyle(t *testing.T, f *excelize.File, sheet, cell string) *excelize.Style {
	t.Helper()
	id, err := f.GetCellStyle(sheet, cell)
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	return style
}

// fillColor returns the RRGGBB foreground of the cell's pattern fill, or ""
// when the cell has no solid fill.
func fillColor(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	style := cellStyle(t, f, sheet, cell)
	if style.Fill.Type != "pattern" || style.Fill.Pattern != patternSolid || len(style.Fill.Color) == 0 {
		return ""
	}
	c := strings.ToUpper(strings.TrimPrefix(style.Fill.Color[0], "#"))
	if len(c) == 8 {
		c = c[2:]
	}
	return c
}

package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"

	"github.com/xuri/excelize/v2"
)

// filterDatabaseName is the reserved defined name spreadsheet applications
// attach to every autofilter range.
const filterDatabaseName = "_xlnm._FilterDatabase"

var (
	worksheetPart     = regexp.MustCompile(`^xl/worksheets/sheet\d+\.xml$`)
	autoFilterElement = regexp.MustCompile(`(?s)<autoFilter\b[^>]*/>|<autoFilter\b[^>]*>.*?</autoFilter>`)
)

// removeTables deletes every table of every sheet, and the filter database
// names that belong to autofilters.
func removeTables(f *excelize.File) (int, error) {
	removed := 0
	for _, sheet := range f.GetSheetList() {
		tables, err := f.GetTables(sheet)
		if err != nil {
			return removed, fmt.Errorf("list tables of %q: %w", sheet, err)
		}
		for _, t := range tables {
			if err := f.DeleteTable(t.Name); err != nil {
				return removed, fmt.Errorf("delete table %q: %w", t.Name, err)
			}
			removed++
		}
	}

	for _, dn := range f.GetDefinedName() {
		if dn.Name != filterDatabaseName {
			continue
		}
		if err := f.DeleteDefinedName(&excelize.DefinedName{Name: dn.Name, Scope: dn.Scope}); err != nil {
			return removed, fmt.Errorf("delete defined name %q: %w", dn.Name, err)
		}
	}
	return removed, nil
}

// stripAutoFilters rewrites a serialized workbook package without any
// worksheet-level autoFilter element. All other parts are copied unchanged.
func stripAutoFilters(pkg []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range zr.File {
		data, err := readPart(part)
		if err != nil {
			return nil, err
		}
		if worksheetPart.MatchString(part.Name) {
			data = autoFilterElement.ReplaceAll(data, nil)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     part.Name,
			Method:   zip.Deflate,
			Modified: part.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", part.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", part.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), nil
}

func readPart(part *zip.File) ([]byte, error) {
	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", part.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", part.Name, err)
	}
	return data, nil
}

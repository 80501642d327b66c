package report

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/solarcheck/internal/domain"
)

func newTestExporter(src TemplateSource) *Exporter {
	e := NewExporter(src, "", discardLogger())
	e.now = func() time.Time { return time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC) }
	return e
}

// worksheetXML returns the worksheet parts of a serialized workbook by name.
func worksheetXML(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := make(map[string]string)
	for _, part := range zr.File {
		if !worksheetPart.MatchString(part.Name) {
			continue
		}
		rc, err := part.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[part.Name] = string(raw)
	}
	return parts
}

// Scenario: one inverter with two strings and one faulty checklist item.
func TestExport_OneInverterOneFaultyItem(t *testing.T) {
	tpl := templateBytes(t, newTemplate(t))

	in := domain.NewInspection()
	in.Metadata = domain.Metadata{SiteName: "Hillside Farm", Date: "2024-05-20"}
	in.EnsureCatalog([]domain.ChecklistItem{
		{Code: "1.1", Description: "Site access"},
		{Code: "1.2", Description: "Signage"},
	}, nil)
	require.NoError(t, in.SetChecklistItem("1.2", domain.ChecklistStatusFaulty, "Warning sign missing"))
	require.NoError(t, in.ConfigureInverters([]domain.InverterConfig{{StringCount: 2}}))
	roots := in.MeasurementsInOrder(1)
	require.NoError(t, in.UpdateMeasurement(roots[1].ID, domain.MeasurementValues{OperatingCurrent: ptr(8.7)}))

	export, err := newTestExporter(staticSource(tpl)).Export(context.Background(), in.Clone(), in.MergedDefects())
	require.NoError(t, err)

	assert.Equal(t, "PV-Inspection_Hillside-Farm_2024-05-20.xlsx", export.Filename)
	assert.Equal(t, domain.XLSXContentType, export.ContentType)

	f := openWorkbook(t, export.Data)

	assert.Equal(t, "Signage", cellValue(t, f, SheetDefects, "A2"))
	assert.Equal(t, "Warning sign missing", cellValue(t, f, SheetDefects, "B2"))
	assert.Equal(t, "Checklist 1.2", cellValue(t, f, SheetDefects, "C2"))
	assert.Equal(t, domain.DerivedDefectStatus, cellValue(t, f, SheetDefects, "D2"))

	assert.Equal(t, "A", cellValue(t, f, SheetDC, "A2"))
	assert.Equal(t, "B", cellValue(t, f, SheetDC, "A3"))
	assert.Equal(t, "8.7", cellValue(t, f, SheetDC, "D3"))
	for _, cell := range []string{"B2", "C2", "D2", "E2", "F2", "G2", "B3", "C3", "E3"} {
		assert.Equal(t, "", cellValue(t, f, SheetDC, cell), cell)
	}

	assert.Equal(t, "faulty", cellValue(t, f, SheetChecklist, "C5"))
	assert.Equal(t, "Hillside Farm", cellValue(t, f, SheetChecklist, "B2"))
}

func TestExport_StripesEverySheet(t *testing.T) {
	tpl := templateBytes(t, newTemplate(t))
	in := dcInspection(t)

	export, err := newTestExporter(staticSource(tpl)).Export(context.Background(), in.Clone(), nil)
	require.NoError(t, err)
	f := openWorkbook(t, export.Data)

	even, odd := rgb(StripeColors[0]), rgb(StripeColors[1])

	assert.Equal(t, even, fillColor(t, f, SheetChecklist, "A2"))
	assert.Equal(t, even, fillColor(t, f, SheetChecklist, "D84"))
	assert.Equal(t, odd, fillColor(t, f, SheetChecklist, "B83"))
	assert.Equal(t, "", fillColor(t, f, SheetChecklist, "A85"))
	assert.Equal(t, headerFill, fillColor(t, f, SheetChecklist, "C6"))

	// DC rows 2..6 across 8 columns.
	assert.Equal(t, even, fillColor(t, f, SheetDC, "H2"))
	assert.Equal(t, even, fillColor(t, f, SheetDC, "A6"))
	assert.Equal(t, "", fillColor(t, f, SheetDC, "A7"))
	assert.Equal(t, "", fillColor(t, f, SheetDC, "I2"))

	assert.Equal(t, even, fillColor(t, f, SheetAC, "A42"))
	assert.Equal(t, "", fillColor(t, f, SheetAC, "A43"))

	// No defects still stripes row 2.
	assert.Equal(t, even, fillColor(t, f, SheetDefects, "D2"))
	assert.Equal(t, "", fillColor(t, f, SheetDefects, "A3"))
}

func TestExport_RemovesTablesAndAutoFilters(t *testing.T) {
	tf := newTemplate(t)
	tpl := templateBytes(t, tf)
	require.Contains(t, strings.Join(mapValues(worksheetXML(t, tpl)), ""), "<autoFilter", "template must carry an autofilter")

	export, err := newTestExporter(staticSource(tpl)).Export(context.Background(), domain.NewInspection().Clone(), nil)
	require.NoError(t, err)

	f := openWorkbook(t, export.Data)
	for _, sheet := range f.GetSheetList() {
		tables, err := f.GetTables(sheet)
		require.NoError(t, err)
		assert.Empty(t, tables, sheet)
	}
	for _, dn := range f.GetDefinedName() {
		assert.NotEqual(t, filterDatabaseName, dn.Name)
	}
	for name, xml := range worksheetXML(t, export.Data) {
		assert.NotContains(t, xml, "<autoFilter", name)
		assert.NotContains(t, xml, "<tablePart", name)
	}

	// Template text survives the rewrite.
	assert.Equal(t, "Component", cellValue(t, f, SheetDefects, "A1"))
}

func TestExport_FallsBackToUserDefects(t *testing.T) {
	tpl := templateBytes(t, newTemplate(t))
	in := domain.NewInspection()
	in.Checklist = []domain.ChecklistItem{{Code: "1.1", Description: "derived only", Status: domain.ChecklistStatusFaulty}}
	in.AddDefect(domain.Defect{Component: "Fence", Fault: "Gap"})

	export, err := newTestExporter(staticSource(tpl)).Export(context.Background(), in.Clone(), nil)
	require.NoError(t, err)

	f := openWorkbook(t, export.Data)
	assert.Equal(t, "Fence", cellValue(t, f, SheetDefects, "A2"))
	assert.Equal(t, "", cellValue(t, f, SheetDefects, "A3"))
}

func TestExport_DefectsBeyondTemplateRows(t *testing.T) {
	tpl := templateBytes(t, newTemplate(t))
	in := domain.NewInspection()
	for i := 0; i < DefectTemplateRows+2; i++ {
		in.AddDefect(domain.Defect{Component: "c" + strconv.Itoa(i)})
	}

	export, err := newTestExporter(staticSource(tpl)).Export(context.Background(), in.Clone(), nil)
	require.NoError(t, err)

	f := openWorkbook(t, export.Data)
	assert.Equal(t, "c21", cellValue(t, f, SheetDefects, "A23"))
	assert.Equal(t, rgb(StripeColors[1]), fillColor(t, f, SheetDefects, "A23"))
}

func TestExport_SkipsMissingSheets(t *testing.T) {
	tpl := templateBytes(t, newTemplate(t, SheetDC, SheetDefects))
	in := dcInspection(t)
	in.AddDefect(domain.Defect{Component: "x"})

	export, err := newTestExporter(staticSource(tpl)).Export(context.Background(), in.Clone(), nil)
	require.NoError(t, err)

	f := openWorkbook(t, export.Data)
	assert.Equal(t, []string{SheetChecklist, SheetAC}, f.GetSheetList())
}

func TestExport_TemplateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewHTTPTemplateSource(srv.URL+DefaultTemplatePath, 5*time.Second)
	export, err := newTestExporter(src).Export(context.Background(), domain.NewInspection().Clone(), nil)

	require.Error(t, err)
	assert.Nil(t, export)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Contains(t, domain.ErrorMessage(err), "404")
}

func TestExport_InvalidTemplate(t *testing.T) {
	export, err := newTestExporter(staticSource("definitely not a workbook")).
		Export(context.Background(), domain.NewInspection().Clone(), nil)

	assert.Nil(t, export)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestExport_OverHTTP(t *testing.T) {
	tpl := templateBytes(t, newTemplate(t))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultTemplatePath, r.URL.Path)
		w.Header().Set("Content-Type", domain.XLSXContentType)
		w.Write(tpl)
	}))
	defer srv.Close()

	src := NewHTTPTemplateSource(srv.URL+DefaultTemplatePath, 5*time.Second)
	in := domain.NewInspection()
	in.Metadata.SiteName = "Über Straße 5"

	export, err := newTestExporter(src).Export(context.Background(), in.Clone(), nil)
	require.NoError(t, err)
	assert.Equal(t, "PV-Inspection_Uber-Stra-e-5_2024-07-15.xlsx", export.Filename)
	assert.NotEmpty(t, export.Data)
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

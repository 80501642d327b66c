package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionCode(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"1.1", true},
		{"12.34", true},
		{"1", false},
		{"1.", false},
		{"1.1.1", false},
		{"a.1", false},
		{"2 Modules", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			key, ok := SectionCode(tt.text)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, tt.text, key)
			}
		})
	}
}

func TestResolve_SectionCodes(t *testing.T) {
	f := newTemplate(t)
	s := sheetOf(t, f, SheetChecklist)

	addr, err := Resolve(s, colA, SectionCode)
	require.NoError(t, err)

	assert.Equal(t, 4, addr.Len())
	assert.Equal(t, []int{4, 5, 7, 8}, addr.Rows())

	row, ok := addr.Row("2.1")
	assert.True(t, ok)
	assert.Equal(t, 7, row)

	_, ok = addr.Row("9.9")
	assert.False(t, ok, "absent keys are reported, not errors")
}

func TestResolve_TrimsAndKeepsFirstDuplicate(t *testing.T) {
	f := newTemplate(t)
	require.NoError(t, f.SetCellValue(SheetChecklist, "A20", " 1.1 "))
	s := sheetOf(t, f, SheetChecklist)

	addr, err := Resolve(s, colA, SectionCode)
	require.NoError(t, err)

	row, ok := addr.Row("1.1")
	require.True(t, ok)
	assert.Equal(t, 4, row)
	assert.Equal(t, []int{4, 5, 7, 8, 20}, addr.Rows())
}

func TestResolve_PrefixMarker(t *testing.T) {
	f := newTemplate(t)
	s := sheetOf(t, f, SheetAC)

	addr, err := Resolve(s, colB, HasPrefix(SerialRowMarker))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11, 12}, addr.Rows())
	row, ok := addr.Row("Serial number inverter 2")
	assert.True(t, ok)
	assert.Equal(t, 11, row)
}

func TestResolve_NoMatches(t *testing.T) {
	f := newTemplate(t)
	s := sheetOf(t, f, SheetDefects)

	addr, err := Resolve(s, colA, SectionCode)
	require.NoError(t, err)
	assert.Zero(t, addr.Len())
	assert.Empty(t, addr.Rows())

	// A column past every row's last cell matches nothing either.
	addr, err = Resolve(s, 30, SectionCode)
	require.NoError(t, err)
	assert.Zero(t, addr.Len())
}

func TestAddressMap_RowsReturnsCopy(t *testing.T) {
	f := newTemplate(t)
	addr, err := Resolve(sheetOf(t, f, SheetChecklist), colA, SectionCode)
	require.NoError(t, err)

	rows := addr.Rows()
	rows[0] = 999
	assert.Equal(t, 4, addr.Rows()[0])
}

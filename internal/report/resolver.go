package report

import (
	"regexp"
	"strings"
)

// Matcher decides whether the text of a marker cell addresses a row, and
// returns the key the row is addressed by.
type Matcher func(text string) (key string, ok bool)

var sectionCodePattern = regexp.MustCompile(`^\d+\.\d+$`)

// SectionCode matches dotted section codes such as "3.2".
func SectionCode(text string) (string, bool) {
	if sectionCodePattern.MatchString(text) {
		return text, true
	}
	return "", false
}

// HasPrefix matches cells whose text starts with marker. The key is the full
// cell text.
func HasPrefix(marker string) Matcher {
	return func(text string) (string, bool) {
		return text, strings.HasPrefix(text, marker)
	}
}

// AddressMap maps domain keys to the sheet rows they were found on. It is
// built once per sheet and export and never updated afterwards.
type AddressMap struct {
	rows  map[string]int
	order []int
}

// Row returns the row a key was found on. When a key occurs more than once
// the first row wins.
func (m AddressMap) Row(key string) (int, bool) {
	row, ok := m.rows[key]
	return row, ok
}

// Rows returns every matching row in document order, duplicates included.
func (m AddressMap) Rows() []int {
	return append([]int(nil), m.order...)
}

// Len returns the number of matching rows.
func (m AddressMap) Len() int {
	return len(m.order)
}

// Resolve scans column (1-based) of every row of the sheet once and records
// the rows whose trimmed text satisfies match.
func Resolve(s *Sheet, column int, match Matcher) (AddressMap, error) {
	m := AddressMap{rows: make(map[string]int)}

	rows, err := s.Rows()
	if err != nil {
		return m, err
	}
	for i, cells := range rows {
		if column-1 >= len(cells) {
			continue
		}
		key, ok := match(strings.TrimSpace(cells[column-1]))
		if !ok {
			continue
		}
		row := i + 1
		if _, dup := m.rows[key]; !dup {
			m.rows[key] = row
		}
		m.order = append(m.order, row)
	}
	return m, nil
}

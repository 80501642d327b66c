package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// StripeColors are the two alternating row fills, as ARGB.
var StripeColors = [2]string{"FFFFFFFF", "FFDDEBF7"}

// patternSolid is the excelize fill pattern index of a solid fill.
const patternSolid = 1

type stripeKey struct {
	style int
	color string
}

// BakeStripes applies the alternating row fill to rows start..end across the
// first columns columns of the sheet.
//
// Rows whose first cell already carries a solid fill are left untouched. The
// alternation is computed from the row's offset to start, so skipped rows
// still count toward parity. Every restyled cell receives a complete new style
// that copies the font, border, alignment, number format and protection of
// its current style; shared style records are never modified.
func BakeStripes(s *Sheet, start, end, columns int) error {
	if end < start || columns < 1 {
		return nil
	}

	// Phase 1: flag pre-styled rows before any style is replaced.
	flagged := make(map[int]bool)
	for row := start; row <= end; row++ {
		solid, err := s.hasSolidFill(colA, row)
		if err != nil {
			return err
		}
		flagged[row] = solid
	}

	// Phase 2: restyle every unflagged row.
	created := make(map[stripeKey]int)
	for row := start; row <= end; row++ {
		if flagged[row] {
			continue
		}
		color := StripeColors[(row-start)%2]
		for col := 1; col <= columns; col++ {
			src, err := s.styleID(col, row)
			if err != nil {
				return err
			}
			key := stripeKey{style: src, color: color}
			id, ok := created[key]
			if !ok {
				id, err = s.stripedStyle(src, color)
				if err != nil {
					return err
				}
				created[key] = id
			}
			if err := s.setStyleID(col, row, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sheet) hasSolidFill(col, row int) (bool, error) {
	id, err := s.styleID(col, row)
	if err != nil {
		return false, err
	}
	style, err := s.file.GetStyle(id)
	if err != nil {
		return false, fmt.Errorf("read style %d: %w", id, err)
	}
	return style.Fill.Type == "pattern" && style.Fill.Pattern == patternSolid, nil
}

// stripedStyle registers a copy of style src with its fill replaced by color.
func (s *Sheet) stripedStyle(src int, color string) (int, error) {
	base, err := s.file.GetStyle(src)
	if err != nil {
		return 0, fmt.Errorf("read style %d: %w", src, err)
	}

	style := *base
	style.Fill = excelize.Fill{
		Type:    "pattern",
		Pattern: patternSolid,
		Color:   []string{rgb(color)},
	}
	id, err := s.file.NewStyle(&style)
	if err != nil {
		return 0, fmt.Errorf("create stripe style: %w", err)
	}
	return id, nil
}

// rgb drops the alpha channel of an ARGB color; NewStyle expects RRGGBB.
func rgb(argb string) string {
	if len(argb) == 8 {
		return argb[2:]
	}
	return argb
}

package domain

// FaultyItemDefault is the fault text of a derived defect whose checklist
// item carries no notes.
const FaultyItemDefault = "Marked faulty during inspection"

// DerivedDefectStatus is the status every derived defect starts with.
const DerivedDefectStatus = "Open"

// Defect is one row of the defects list.
type Defect struct {
	Component string `json:"component"`
	Fault     string `json:"fault"`
	Location  string `json:"location"`
	Status    string `json:"status"`
}

// =============================================================================
// Derived vs. User-Authored Defects
// =============================================================================

// DerivedDefects returns one defect per checklist item marked faulty, in
// checklist order. The result is recomputed on every call and never stored;
// the checklist status stays the single source of truth.
func (in *Inspection) DerivedDefects() []Defect {
	var out []Defect
	for _, item := range in.Checklist {
		if item.Status != ChecklistStatusFaulty {
			continue
		}
		fault := item.Notes
		if fault == "" {
			fault = FaultyItemDefault
		}
		out = append(out, Defect{
			Component: item.Description,
			Fault:     fault,
			Location:  "Checklist " + item.Code,
			Status:    DerivedDefectStatus,
		})
	}
	return out
}

// MergedDefects returns the derived defects followed by the user-authored ones.
func (in *Inspection) MergedDefects() []Defect {
	derived := in.DerivedDefects()
	out := make([]Defect, 0, len(derived)+len(in.Defects))
	out = append(out, derived...)
	return append(out, in.Defects...)
}

// =============================================================================
// User-Authored Defect Mutations
// =============================================================================

func (in *Inspection) checkDefectIndex(op string, i int) error {
	if i < 0 || i >= len(in.Defects) {
		return Errorf(ENOTFOUND, op, "defect %d does not exist", i)
	}
	return nil
}

// AddDefect appends a user-authored defect.
func (in *Inspection) AddDefect(d Defect) {
	in.Defects = append(in.Defects, d)
}

// UpdateDefect replaces the i-th user-authored defect.
func (in *Inspection) UpdateDefect(i int, d Defect) error {
	if err := in.checkDefectIndex("inspection.update_defect", i); err != nil {
		return err
	}
	in.Defects[i] = d
	return nil
}

// DeleteDefect removes the i-th user-authored defect.
func (in *Inspection) DeleteDefect(i int) error {
	if err := in.checkDefectIndex("inspection.delete_defect", i); err != nil {
		return err
	}
	in.Defects = append(in.Defects[:i], in.Defects[i+1:]...)
	return nil
}

// DuplicateDefect inserts a copy of the i-th defect right after it.
func (in *Inspection) DuplicateDefect(i int) error {
	if err := in.checkDefectIndex("inspection.duplicate_defect", i); err != nil {
		return err
	}
	in.Defects = append(in.Defects[:i+1], append([]Defect{in.Defects[i]}, in.Defects[i+1:]...)...)
	return nil
}

// MoveDefect moves the defect at position from to position to, shifting the
// defects in between.
func (in *Inspection) MoveDefect(from, to int) error {
	const op = "inspection.move_defect"

	if err := in.checkDefectIndex(op, from); err != nil {
		return err
	}
	if err := in.checkDefectIndex(op, to); err != nil {
		return err
	}
	d := in.Defects[from]
	in.Defects = append(in.Defects[:from], in.Defects[from+1:]...)
	in.Defects = append(in.Defects[:to], append([]Defect{d}, in.Defects[to:]...)...)
	return nil
}

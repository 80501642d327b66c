// Package domain contains core business types and interfaces.
//
// This file defines the Inspection aggregate: everything a technician records
// while walking through a solar installation, and the in-place mutations the
// inspection wizard performs on it.
package domain

import (
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Checklist Status
// =============================================================================

// ChecklistStatus is the tri-state outcome of a checklist item.
type ChecklistStatus string

const (
	// ChecklistStatusUnset means the inspector has not assessed the item yet.
	ChecklistStatusUnset ChecklistStatus = ""

	// ChecklistStatusNormal means the item was assessed and found in order.
	ChecklistStatusNormal ChecklistStatus = "normal"

	// ChecklistStatusFaulty means the item was assessed and found defective.
	// Faulty items feed the derived defects list.
	ChecklistStatusFaulty ChecklistStatus = "faulty"
)

// String returns the string representation of the status.
func (s ChecklistStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s ChecklistStatus) IsValid() bool {
	switch s {
	case ChecklistStatusUnset, ChecklistStatusNormal, ChecklistStatusFaulty:
		return true
	}
	return false
}

// =============================================================================
// Inspection Aggregate
// =============================================================================

// Metadata holds the header fields of an inspection form.
type Metadata struct {
	SiteName  string `json:"siteName"`
	Date      string `json:"date"` // ISO date (YYYY-MM-DD) as entered in the form
	Inspector string `json:"inspector"`
	Signature string `json:"signature"`
}

// Inspection is the root aggregate of one report record.
//
// It is persisted as a whole after every mutation. Derived defects are never
// stored here; see DerivedDefects.
type Inspection struct {
	Metadata  Metadata              `json:"metadata"`
	Inverters []InverterConfig      `json:"inverters"`
	Checklist []ChecklistItem       `json:"checklist"`
	DCStrings []DCStringMeasurement `json:"dcStrings"`
	AC        []ACMeasurement       `json:"ac"`
	Serials   []InverterSerial      `json:"serials"`
	Defects   []Defect              `json:"defects"`
}

// ChecklistItem is a catalog entry plus the inspector's assessment.
type ChecklistItem struct {
	Code        string          `json:"code"` // Section code, e.g. "3.2"
	Description string          `json:"description"`
	Status      ChecklistStatus `json:"status"`
	Notes       string          `json:"notes"`
}

// ACMeasurement is a single AC-side measurement identified by its catalog code.
type ACMeasurement struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Result      any    `json:"result,omitempty"` // string or number
	Notes       string `json:"notes"`
}

// InverterConfig describes one inverter of the installation.
type InverterConfig struct {
	Index       int    `json:"index"` // 1-based
	Label       string `json:"label"`
	StringCount int    `json:"stringCount"`
}

// InverterSerial is the serial number recorded for one inverter.
type InverterSerial struct {
	InverterIndex int    `json:"inverterIndex"`
	Serial        string `json:"serial"`
}

// NewInspection returns an inspection with empty collections.
func NewInspection() *Inspection {
	return &Inspection{
		Inverters: []InverterConfig{},
		Checklist: []ChecklistItem{},
		DCStrings: []DCStringMeasurement{},
		AC:        []ACMeasurement{},
		Serials:   []InverterSerial{},
		Defects:   []Defect{},
	}
}

// Clone returns a deep copy of the inspection. Exports work on a clone so the
// workbook is filled from a snapshot the store cannot mutate underneath it.
func (in *Inspection) Clone() Inspection {
	out := Inspection{
		Metadata:  in.Metadata,
		Inverters: append([]InverterConfig{}, in.Inverters...),
		Checklist: append([]ChecklistItem{}, in.Checklist...),
		DCStrings: make([]DCStringMeasurement, len(in.DCStrings)),
		AC:        append([]ACMeasurement{}, in.AC...),
		Serials:   append([]InverterSerial{}, in.Serials...),
		Defects:   append([]Defect{}, in.Defects...),
	}
	for i, m := range in.DCStrings {
		out.DCStrings[i] = m.clone()
	}
	return out
}

// =============================================================================
// Catalog Population
// =============================================================================

// EnsureCatalog appends every catalog entry whose code is missing from the
// inspection. Existing entries are never touched, so a report created against
// an older catalog keeps its data while picking up new items.
func (in *Inspection) EnsureCatalog(checklist []ChecklistItem, ac []ACMeasurement) {
	have := make(map[string]bool, len(in.Checklist))
	for _, item := range in.Checklist {
		have[item.Code] = true
	}
	for _, item := range checklist {
		if !have[item.Code] {
			in.Checklist = append(in.Checklist, ChecklistItem{Code: item.Code, Description: item.Description})
			have[item.Code] = true
		}
	}

	haveAC := make(map[string]bool, len(in.AC))
	for _, m := range in.AC {
		haveAC[m.Code] = true
	}
	for _, m := range ac {
		if !haveAC[m.Code] {
			in.AC = append(in.AC, ACMeasurement{Code: m.Code, Description: m.Description})
			haveAC[m.Code] = true
		}
	}
}

// =============================================================================
// Field Mutations
// =============================================================================

// SetChecklistItem records the assessment of the checklist item with the given code.
func (in *Inspection) SetChecklistItem(code string, status ChecklistStatus, notes string) error {
	const op = "inspection.set_checklist_item"

	if !status.IsValid() {
		return Invalid(op, "status must be empty, 'normal' or 'faulty'")
	}
	for i := range in.Checklist {
		if in.Checklist[i].Code == code {
			in.Checklist[i].Status = status
			in.Checklist[i].Notes = notes
			return nil
		}
	}
	return NotFound(op, "checklist item", code)
}

// SetACMeasurement records the result of the AC measurement with the given code.
func (in *Inspection) SetACMeasurement(code string, result any, notes string) error {
	const op = "inspection.set_ac_measurement"

	switch result.(type) {
	case nil, string, float64, int:
	default:
		return Invalid(op, "result must be a string or a number")
	}
	for i := range in.AC {
		if in.AC[i].Code == code {
			in.AC[i].Result = result
			in.AC[i].Notes = notes
			return nil
		}
	}
	return NotFound(op, "AC measurement", code)
}

// SetSerial records the serial number of an inverter.
func (in *Inspection) SetSerial(inverterIndex int, serial string) error {
	const op = "inspection.set_serial"

	for i := range in.Serials {
		if in.Serials[i].InverterIndex == inverterIndex {
			in.Serials[i].Serial = strings.TrimSpace(serial)
			return nil
		}
	}
	return Errorf(ENOTFOUND, op, "inverter %d is not configured", inverterIndex)
}

// SortedSerials returns the serials ordered by inverter index.
func (in *Inspection) SortedSerials() []InverterSerial {
	out := append([]InverterSerial{}, in.Serials...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InverterIndex < out[j].InverterIndex
	})
	return out
}

// =============================================================================
// Inverter Configuration
// =============================================================================

// ConfigureInverters replaces the inverter configuration.
//
// Inverters are re-indexed 1..n in the given order. For every inverter the
// root string measurements are regenerated to match its string count: roots
// at positions inside the new range keep their data and subtrees, roots
// beyond it are removed with all descendants. Measurements of inverters that
// no longer exist are dropped. Serial numbers are reset for every inverter.
func (in *Inspection) ConfigureInverters(configs []InverterConfig) error {
	const op = "inspection.configure_inverters"

	next := make([]InverterConfig, len(configs))
	for i, c := range configs {
		if c.StringCount < 0 {
			return Invalid(op, "string count cannot be negative")
		}
		next[i] = InverterConfig{Index: i + 1, Label: strings.TrimSpace(c.Label), StringCount: c.StringCount}
		if next[i].Label == "" {
			next[i].Label = defaultInverterLabel(i + 1)
		}
	}

	measurements := make([]DCStringMeasurement, 0, len(in.DCStrings))
	for _, c := range next {
		measurements = append(measurements, in.regenerateRoots(c)...)
	}

	in.Inverters = next
	in.DCStrings = measurements
	in.Serials = make([]InverterSerial, len(next))
	for i, c := range next {
		in.Serials[i] = InverterSerial{InverterIndex: c.Index}
	}
	return nil
}

// regenerateRoots returns the measurement arena slice for one inverter after
// fitting its roots to c.StringCount.
func (in *Inspection) regenerateRoots(c InverterConfig) []DCStringMeasurement {
	roots := in.children(c.Index, "")

	keep := make(map[string]bool)
	for i, r := range roots {
		if i < c.StringCount {
			keep[r.ID] = true
		}
	}

	var out []DCStringMeasurement
	for _, m := range in.DCStrings {
		if m.InverterIndex != c.Index {
			continue
		}
		if keep[in.rootOf(m).ID] {
			out = append(out, m.clone())
		}
	}
	kept := roots
	if len(kept) > c.StringCount {
		kept = kept[:c.StringCount]
	}
	next := nextRootIndex(kept)
	for i := len(kept); i < c.StringCount; i++ {
		out = append(out, newMeasurement(c.Index, "", RootLabel(next)))
		next++
	}
	return out
}

func defaultInverterLabel(index int) string {
	return "Inverter " + strconv.Itoa(index)
}

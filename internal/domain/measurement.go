package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxMeasurementDepth is the deepest level of the string measurement forest:
// a root string, its child, and its grandchild.
const MaxMeasurementDepth = 3

// =============================================================================
// DC String Measurement
// =============================================================================

// DCStringMeasurement is one row of DC-side measurements for a string.
//
// Measurements live in a flat arena on the Inspection. Tree structure is
// expressed only through ParentID; children are found by filtering the arena,
// and siblings keep the order in which they were appended.
type DCStringMeasurement struct {
	ID            string `json:"id"`
	InverterIndex int    `json:"inverterIndex"`
	ParentID      string `json:"parentId,omitempty"` // empty for root strings
	Label         string `json:"label"`

	MeasurementValues
}

// MeasurementValues holds the optional numeric readings of a string.
// A nil field means the technician did not record that value.
type MeasurementValues struct {
	PanelCount             *int     `json:"panelCount,omitempty"`
	OpenCircuitVoltage     *float64 `json:"openCircuitVoltage,omitempty"`
	OperatingCurrent       *float64 `json:"operatingCurrent,omitempty"`
	StringInsulation       *float64 `json:"stringInsulation,omitempty"`
	FeedInsulationPositive *float64 `json:"feedInsulationPositive,omitempty"`
	FeedInsulationNegative *float64 `json:"feedInsulationNegative,omitempty"`
}

// IsRoot returns true if the measurement has no parent.
func (m *DCStringMeasurement) IsRoot() bool {
	return m.ParentID == ""
}

func (m DCStringMeasurement) clone() DCStringMeasurement {
	out := m
	out.PanelCount = copyPtr(m.PanelCount)
	out.OpenCircuitVoltage = copyPtr(m.OpenCircuitVoltage)
	out.OperatingCurrent = copyPtr(m.OperatingCurrent)
	out.StringInsulation = copyPtr(m.StringInsulation)
	out.FeedInsulationPositive = copyPtr(m.FeedInsulationPositive)
	out.FeedInsulationNegative = copyPtr(m.FeedInsulationNegative)
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func newMeasurement(inverterIndex int, parentID, label string) DCStringMeasurement {
	return DCStringMeasurement{
		ID:            uuid.NewString(),
		InverterIndex: inverterIndex,
		ParentID:      parentID,
		Label:         label,
	}
}

// RootLabel returns the letter label of the i-th (0-based) root string:
// A..Z, then AA, AB, and so on.
func RootLabel(i int) string {
	label := ""
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		label = string(rune('A'+(n-1)%26)) + label
	}
	return label
}

// rootIndex inverts RootLabel. ok is false for labels that are not a run of
// capital letters.
func rootIndex(label string) (int, bool) {
	if label == "" {
		return 0, false
	}
	n := 0
	for _, r := range label {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, true
}

// =============================================================================
// Forest Queries
// =============================================================================

func (in *Inspection) measurementIndex(id string) int {
	for i := range in.DCStrings {
		if in.DCStrings[i].ID == id {
			return i
		}
	}
	return -1
}

// Measurement returns the measurement with the given ID.
func (in *Inspection) Measurement(id string) (*DCStringMeasurement, bool) {
	i := in.measurementIndex(id)
	if i < 0 {
		return nil, false
	}
	return &in.DCStrings[i], true
}

// children returns the direct children of parentID within an inverter, in
// insertion order. An empty parentID selects the roots.
func (in *Inspection) children(inverterIndex int, parentID string) []DCStringMeasurement {
	var out []DCStringMeasurement
	for _, m := range in.DCStrings {
		if m.InverterIndex == inverterIndex && m.ParentID == parentID {
			out = append(out, m)
		}
	}
	return out
}

// rootOf walks up the parent chain of m.
func (in *Inspection) rootOf(m DCStringMeasurement) DCStringMeasurement {
	for steps := 0; !m.IsRoot() && steps < MaxMeasurementDepth; steps++ {
		parent, ok := in.Measurement(m.ParentID)
		if !ok {
			break
		}
		m = *parent
	}
	return m
}

// depth returns 1 for a root, 2 for a child, 3 for a grandchild. The walk
// stops after MaxMeasurementDepth+1 steps, so a parent cycle in a stored
// document reports a depth beyond the maximum instead of looping.
func (in *Inspection) depth(m DCStringMeasurement) int {
	d := 1
	for !m.IsRoot() && d <= MaxMeasurementDepth {
		parent, ok := in.Measurement(m.ParentID)
		if !ok {
			break
		}
		m = *parent
		d++
	}
	return d
}

func (in *Inspection) nextChildSuffix(parent DCStringMeasurement) int {
	prefix := parent.Label + "."
	next := 1
	for _, c := range in.children(parent.InverterIndex, parent.ID) {
		n, err := strconv.Atoi(strings.TrimPrefix(c.Label, prefix))
		if err == nil && strings.HasPrefix(c.Label, prefix) && n >= next {
			next = n + 1
		}
	}
	return next
}

// nextRootIndex is one past the highest root letter of an inverter.
func nextRootIndex(roots []DCStringMeasurement) int {
	next := len(roots)
	for _, r := range roots {
		if i, ok := rootIndex(r.Label); ok && i >= next {
			next = i + 1
		}
	}
	return next
}

// MeasurementsInOrder returns the measurements of one inverter in depth-first
// pre-order: every node is immediately followed by all its descendants, and
// siblings appear in insertion order.
func (in *Inspection) MeasurementsInOrder(inverterIndex int) []DCStringMeasurement {
	var out []DCStringMeasurement
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, m := range in.children(inverterIndex, parentID) {
			out = append(out, m)
			walk(m.ID)
		}
	}
	walk("")
	return out
}

// =============================================================================
// Forest Mutations
// =============================================================================

// AddChild appends a child measurement under parentID. The child belongs to
// the parent's inverter and is labelled "{parentLabel}.{n}" where n is one
// past the highest suffix among the parent's children, so labels stay unique
// after deletions.
func (in *Inspection) AddChild(parentID string) (*DCStringMeasurement, error) {
	const op = "inspection.add_child"

	parent, ok := in.Measurement(parentID)
	if !ok {
		return nil, NotFound(op, "measurement", parentID)
	}
	if in.depth(*parent) >= MaxMeasurementDepth {
		return nil, Errorf(EINVALID, op, "measurements cannot be nested deeper than %d levels", MaxMeasurementDepth)
	}

	label := parent.Label + "." + strconv.Itoa(in.nextChildSuffix(*parent))
	child := newMeasurement(parent.InverterIndex, parent.ID, label)

	in.DCStrings = append(in.DCStrings, child)
	return &in.DCStrings[len(in.DCStrings)-1], nil
}

// UpdateMeasurement replaces the recorded values of a measurement.
func (in *Inspection) UpdateMeasurement(id string, values MeasurementValues) error {
	m, ok := in.Measurement(id)
	if !ok {
		return NotFound("inspection.update_measurement", "measurement", id)
	}
	m.MeasurementValues = values
	return nil
}

// DeleteMeasurement removes a measurement and all of its descendants.
func (in *Inspection) DeleteMeasurement(id string) error {
	if in.measurementIndex(id) < 0 {
		return NotFound("inspection.delete_measurement", "measurement", id)
	}

	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, m := range in.DCStrings {
			if !doomed[m.ID] && doomed[m.ParentID] {
				doomed[m.ID] = true
				grew = true
			}
		}
	}

	kept := in.DCStrings[:0]
	for _, m := range in.DCStrings {
		if !doomed[m.ID] {
			kept = append(kept, m)
		}
	}
	in.DCStrings = kept
	return nil
}

// Package catalog provides the static checklist and AC measurement catalogs
// that new inspections are populated from.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DukeRupert/solarcheck/internal/domain"
)

//go:embed checklist.json ac.json
var files embed.FS

// Entry is one catalog row.
type Entry struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

var (
	loadOnce  sync.Once
	checklist []domain.ChecklistItem
	ac        []domain.ACMeasurement
	loadErr   error
)

func load() {
	var entries []Entry

	entries, loadErr = read("checklist.json")
	if loadErr != nil {
		return
	}
	for _, e := range entries {
		checklist = append(checklist, domain.ChecklistItem{Code: e.Code, Description: e.Description})
	}

	entries, loadErr = read("ac.json")
	if loadErr != nil {
		return
	}
	for _, e := range entries {
		ac = append(ac, domain.ACMeasurement{Code: e.Code, Description: e.Description})
	}
}

func read(name string) ([]Entry, error) {
	raw, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			return nil, fmt.Errorf("%s: entry without code", name)
		}
		if seen[e.Code] {
			return nil, fmt.Errorf("%s: duplicate code %q", name, e.Code)
		}
		seen[e.Code] = true
	}
	return entries, nil
}

// Checklist returns a copy of the checklist catalog in template order.
func Checklist() ([]domain.ChecklistItem, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	return append([]domain.ChecklistItem{}, checklist...), nil
}

// AC returns a copy of the AC measurement catalog in template order.
func AC() ([]domain.ACMeasurement, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	return append([]domain.ACMeasurement{}, ac...), nil
}

// Populate applies both catalogs to an inspection.
func Populate(in *domain.Inspection) error {
	items, err := Checklist()
	if err != nil {
		return err
	}
	measurements, err := AC()
	if err != nil {
		return err
	}
	in.EnsureCatalog(items, measurements)
	return nil
}

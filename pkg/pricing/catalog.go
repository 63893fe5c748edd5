// Package pricing builds the per-unit cost of an optical sale from a product
// catalog, spreads fixed costs over the planned volume and suggests prices.
package pricing

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog holds the direct cost of every selectable product component.
type Catalog struct {
	Lenses      map[string]float64 `mapstructure:"lenses" json:"lenses" yaml:"lenses"`
	Frames      map[string]float64 `mapstructure:"frames" json:"frames" yaml:"frames"`
	Treatments  map[string]float64 `mapstructure:"treatments" json:"treatments" yaml:"treatments"`
	Accessories float64            `mapstructure:"accessories" json:"accessories" yaml:"accessories"`
}

// DefaultCatalog returns reference supplier costs for a mid-market store.
func DefaultCatalog() Catalog {
	return Catalog{
		Lenses: map[string]float64{
			"visao_simples": 80,
			"bifocal":       120,
			"ocupacional":   180,
			"multifocal":    250,
		},
		Frames: map[string]float64{
			"economica":     40,
			"intermediaria": 90,
			"premium":       200,
			"grife":         350,
		},
		Treatments: map[string]float64{
			"antirreflexo":  35,
			"filtro_azul":   45,
			"fotossensivel": 120,
			"polarizado":    90,
			"alto_indice":   60,
		},
		Accessories: 8,
	}
}

// Merge returns a catalog where the entries of override replace or extend c.
func (c Catalog) Merge(override Catalog) Catalog {
	out := Catalog{
		Lenses:      mergeCosts(c.Lenses, override.Lenses),
		Frames:      mergeCosts(c.Frames, override.Frames),
		Treatments:  mergeCosts(c.Treatments, override.Treatments),
		Accessories: c.Accessories,
	}
	if override.Accessories > 0 {
		out.Accessories = override.Accessories
	}
	return out
}

func mergeCosts(base, override map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(override))
	for k, v := range base {
		out[normalizeKey(k)] = v
	}
	for k, v := range override {
		out[normalizeKey(k)] = v
	}
	return out
}

// Selection names the catalog entries that make up one sale.
type Selection struct {
	Lens       string   `mapstructure:"lens" json:"lens" yaml:"lens"`
	Frame      string   `mapstructure:"frame" json:"frame" yaml:"frame"`
	Treatments []string `mapstructure:"treatments" json:"treatments" yaml:"treatments"`
}

// IsZero reports whether nothing was selected.
func (s Selection) IsZero() bool {
	return s.Lens == "" && s.Frame == "" && len(s.Treatments) == 0
}

// UnitCost is the direct cost composition of one unit.
type UnitCost struct {
	Lens            string   `json:"lens"`
	Frame           string   `json:"frame"`
	Treatments      []string `json:"treatments,omitempty"`
	LensCost        float64  `json:"lens_cost"`
	FrameCost       float64  `json:"frame_cost"`
	AccessoriesCost float64  `json:"accessories_cost"`
	TreatmentCost   float64  `json:"treatment_cost"`
	Direct          float64  `json:"direct"`
}

// UnitCost returns the direct cost of the selected lens, frame and treatments.
// Unknown keys are an error listing the valid ones.
func (c Catalog) UnitCost(sel Selection) (UnitCost, error) {
	lensKey := normalizeKey(sel.Lens)
	lens, ok := lookup(c.Lenses, lensKey)
	if !ok {
		return UnitCost{}, fmt.Errorf("unknown lens category %q (valid: %s)", sel.Lens, keys(c.Lenses))
	}
	frameKey := normalizeKey(sel.Frame)
	frame, ok := lookup(c.Frames, frameKey)
	if !ok {
		return UnitCost{}, fmt.Errorf("unknown frame category %q (valid: %s)", sel.Frame, keys(c.Frames))
	}

	uc := UnitCost{
		Lens:            lensKey,
		Frame:           frameKey,
		LensCost:        lens,
		FrameCost:       frame,
		AccessoriesCost: c.Accessories,
	}
	for _, t := range sel.Treatments {
		key := normalizeKey(t)
		if key == "" {
			continue
		}
		cost, ok := lookup(c.Treatments, key)
		if !ok {
			return UnitCost{}, fmt.Errorf("unknown treatment %q (valid: %s)", t, keys(c.Treatments))
		}
		uc.Treatments = append(uc.Treatments, key)
		uc.TreatmentCost += cost
	}
	uc.Direct = uc.LensCost + uc.FrameCost + uc.AccessoriesCost + uc.TreatmentCost
	return uc, nil
}

func lookup(m map[string]float64, key string) (float64, bool) {
	for k, v := range m {
		if normalizeKey(k) == key {
			return v, true
		}
	}
	return 0, false
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func keys(m map[string]float64) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

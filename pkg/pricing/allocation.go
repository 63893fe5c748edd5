package pricing

import (
	"fmt"
	"sort"

	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// Line is a sales line. Lines other than products occupy less floor and staff
// time per sale and carry a smaller share of fixed costs.
type Line string

// Sales lines.
const (
	LineProduct   Line = "product"
	LineService   Line = "service"
	LineAccessory Line = "accessory"
)

// AllocationWeights are the share of the per-unit fixed allocation carried by
// each line.
var AllocationWeights = map[Line]float64{
	LineProduct:   1.0,
	LineService:   0.3,
	LineAccessory: 0.1,
}

// FlagAllocationFallback marks an allocation computed over the default volume.
const FlagAllocationFallback = "allocation_fallback"

// AllocationBreakdown spreads monthly fixed costs over the planned volume.
type AllocationBreakdown struct {
	FixedTotal float64 `json:"fixed_total"`
	UnitTarget int     `json:"unit_target"`
	// Units is the divisor actually used (UnitTarget or the fallback of 1).
	Units   int                `json:"units"`
	PerUnit float64            `json:"per_unit"`
	PerItem map[string]float64 `json:"per_item"`
	PerLine map[Line]float64   `json:"per_line"`
	Flags   []string           `json:"flags,omitempty"`
}

// Fallback reports whether the default volume was used.
func (a AllocationBreakdown) Fallback() bool {
	for _, f := range a.Flags {
		if f == FlagAllocationFallback {
			return true
		}
	}
	return false
}

// Model is the product cost model.
type Model struct {
	logger  *zap.Logger
	catalog Catalog
}

// NewModel returns a model over catalog.
func NewModel(logger *zap.Logger, catalog Catalog) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{logger: logger, catalog: catalog}
}

// Catalog returns the model's catalog.
func (m *Model) Catalog() Catalog {
	return m.catalog
}

// UnitCost returns the direct unit cost of a selection.
func (m *Model) UnitCost(lens, frame string, treatments []string) (UnitCost, error) {
	uc, err := m.catalog.UnitCost(Selection{Lens: lens, Frame: frame, Treatments: treatments})
	if err != nil {
		return UnitCost{}, fmt.Errorf("failed to compute unit cost: %w", err)
	}
	return uc, nil
}

// AllocationPerUnit divides the monthly fixed costs by unitTarget. A
// non-positive target falls back to one unit and flags allocation_fallback.
func (m *Model) AllocationPerUnit(fixed map[string]float64, unitTarget int) AllocationBreakdown {
	ab := AllocationBreakdown{
		UnitTarget: unitTarget,
		Units:      unitTarget,
		PerItem:    make(map[string]float64, len(fixed)),
		PerLine:    make(map[Line]float64, len(AllocationWeights)),
	}

	if unitTarget <= 0 {
		m.logger.Warn(fmt.Sprintf("unit target %d is not positive, allocating fixed costs over 1 unit", unitTarget),
			zap.String("op", "pricing.AllocationPerUnit"),
		)
		ab.Units = 1
		ab.Flags = append(ab.Flags, FlagAllocationFallback)
	}

	names := make([]string, 0, len(fixed))
	for name := range fixed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ab.FixedTotal += fixed[name]
		ab.PerItem[name] = fixed[name] / float64(ab.Units)
	}
	ab.PerUnit = ab.FixedTotal / float64(ab.Units)
	for line, weight := range AllocationWeights {
		ab.PerLine[line] = ab.PerUnit * weight
	}
	return ab
}

// Tier is a named pricing margin (e.g. "balcao", "premium").
type Tier struct {
	Name      string  `mapstructure:"name" json:"name" yaml:"name"`
	MarginPct float64 `mapstructure:"margin_pct" json:"margin_pct" yaml:"margin_pct"`
}

// TierPrice is the suggested price for one tier.
type TierPrice struct {
	Name      string  `json:"name"`
	MarginPct float64 `json:"margin_pct"`
	Price     float64 `json:"price"`
}

// Quote is the full cost and price composition for one sales line.
type Quote struct {
	Line           Line        `json:"line"`
	Direct         float64     `json:"direct"`
	AllocatedFixed float64     `json:"allocated_fixed"`
	TotalUnitCost  float64     `json:"total_unit_cost"`
	MarginPct      float64     `json:"margin_pct"`
	SuggestedPrice float64     `json:"suggested_price"`
	Tiers          []TierPrice `json:"tiers,omitempty"`
}

// SuggestedPrice returns totalUnitCost marked up by marginPct percent.
func SuggestedPrice(totalUnitCost, marginPct float64) float64 {
	return totalUnitCost * (1 + mathutil.PercentToRatio(marginPct))
}

// Quote prices one unit of line given its direct cost and the monthly
// allocation. Unknown lines carry the full product weight.
func (m *Model) Quote(line Line, direct float64, alloc AllocationBreakdown, marginPct float64, tiers []Tier) Quote {
	allocated, ok := alloc.PerLine[line]
	if !ok {
		allocated = alloc.PerUnit
	}
	q := Quote{
		Line:           line,
		Direct:         direct,
		AllocatedFixed: allocated,
		TotalUnitCost:  direct + allocated,
		MarginPct:      marginPct,
	}
	q.SuggestedPrice = SuggestedPrice(q.TotalUnitCost, marginPct)
	for _, t := range tiers {
		q.Tiers = append(q.Tiers, TierPrice{
			Name:      t.Name,
			MarginPct: t.MarginPct,
			Price:     SuggestedPrice(q.TotalUnitCost, t.MarginPct),
		})
	}
	return q
}

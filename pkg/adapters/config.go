// Package adapters provides adapter implementations between the plan
// configuration and the calculator packages.
package adapters

import (
	"fmt"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"github.com/iwvelando/otica-forecast/pkg/pricing"
	"go.uber.org/zap"
)

// CMV sources reported on the statement.
const (
	CMVSourceDirect  = "direct_material_cost_per_unit"
	CMVSourceCatalog = "catalog"
	CMVSourcePercent = "cmv_pct"
	CMVSourceNone    = "none"
)

// LaborRates returns the reference CLT rates with the plan's flat loading
// applied when one is configured.
func LaborRates(b config.AssumptionBundle) labor.Rates {
	rates := labor.DefaultRates()
	if b.FlatLoadingPct > 0 {
		rates.FlatLoadingPct = b.FlatLoadingPct
	}
	return rates
}

// NewLaborCalculator builds the labor calculator for a plan.
func NewLaborCalculator(logger *zap.Logger, b config.AssumptionBundle) *labor.Calculator {
	return labor.NewCalculator(logger, LaborRates(b))
}

// Catalog returns the reference catalog extended by the plan's entries.
func Catalog(b config.AssumptionBundle) pricing.Catalog {
	return pricing.DefaultCatalog().Merge(b.Catalog)
}

// NewPricingModel builds the product cost model for a plan.
func NewPricingModel(logger *zap.Logger, b config.AssumptionBundle) *pricing.Model {
	return pricing.NewModel(logger, Catalog(b))
}

// UnitDirectCost resolves the direct cost of one unit sold, in order of
// preference: the explicit per-unit material cost, the catalog cost of the
// plan's product selection, and finally none, which leaves the statement on
// the cmv_pct path.
func UnitDirectCost(model *pricing.Model, b config.AssumptionBundle) (float64, string, error) {
	if b.DirectMaterialCostPerUnit > 0 {
		return b.DirectMaterialCostPerUnit, CMVSourceDirect, nil
	}
	if !b.Product.IsZero() {
		uc, err := model.UnitCost(b.Product.Lens, b.Product.Frame, b.Product.Treatments)
		if err != nil {
			return 0, CMVSourceNone, fmt.Errorf("product selection: %w", err)
		}
		return uc.Direct, CMVSourceCatalog, nil
	}
	if b.CMVPct > 0 {
		return mathutil.ApplyPercentage(b.AverageTicket, b.CMVPct), CMVSourcePercent, nil
	}
	return 0, CMVSourceNone, nil
}

package config

import (
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
)

// Default depreciation policy: a share of the initial investment written off
// linearly.
const (
	DefaultDepreciationSharePct = 30.0
	DefaultDepreciationMonths   = 120
)

// Depreciation describes how the initial investment reaches the DRE.
type Depreciation struct {
	// SharePct is nil when unset; an explicit 0 turns depreciation off.
	SharePct *float64 `mapstructure:"share_pct" json:"share_pct,omitempty" yaml:"share_pct,omitempty"`
	Months   int     `mapstructure:"months" json:"months,omitempty" yaml:"months,omitempty"`
	// MonthlyOverride replaces the computed value when set.
	MonthlyOverride *float64 `mapstructure:"monthly_override" json:"monthly_override,omitempty" yaml:"monthly_override,omitempty"`
}

// withDefaults returns the share and the period, filling the unset ones.
func (d Depreciation) withDefaults() (float64, int) {
	share := DefaultDepreciationSharePct
	if d.SharePct != nil {
		share = *d.SharePct
	}
	months := d.Months
	if months <= 0 {
		months = DefaultDepreciationMonths
	}
	return share, months
}

// MonthlyDepreciation returns the monthly depreciation charge for the bundle.
func (b AssumptionBundle) MonthlyDepreciation() float64 {
	if b.Depreciation.MonthlyOverride != nil {
		return *b.Depreciation.MonthlyOverride
	}
	share, months := b.Depreciation.withDefaults()
	if b.TotalInvestment <= 0 {
		return 0
	}
	return mathutil.ApplyPercentage(b.TotalInvestment, share) / float64(months)
}

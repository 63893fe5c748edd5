package config

import (
	"sort"

	"github.com/iwvelando/otica-forecast/pkg/finance"
	"github.com/iwvelando/otica-forecast/pkg/financing"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/pricing"
	"github.com/iwvelando/otica-forecast/pkg/tax"
)

// AssumptionBundle is the single input of the engine. Percent fields hold
// percentages (45 means 45%).
type AssumptionBundle struct {
	Name string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	// StartMonth is the calendar month of projection month 1 ("2006-01").
	StartMonth string `mapstructure:"start_month" json:"start_month,omitempty" yaml:"start_month,omitempty"`

	// Revenue
	SalesMonth1       float64  `mapstructure:"sales_month_1" json:"sales_month_1" yaml:"sales_month_1"`
	MonthlyGrowthRate float64  `mapstructure:"monthly_growth_rate" json:"monthly_growth_rate" yaml:"monthly_growth_rate"`
	AverageTicket     float64  `mapstructure:"average_ticket" json:"average_ticket" yaml:"average_ticket"`
	SeasonalMonths    []string `mapstructure:"seasonal_months" json:"seasonal_months,omitempty" yaml:"seasonal_months,omitempty"`
	SeasonalUplift    float64  `mapstructure:"seasonal_uplift" json:"seasonal_uplift,omitempty" yaml:"seasonal_uplift,omitempty"`

	// Mix and pricing
	UnitTargetPerMonth        int               `mapstructure:"unit_target_per_month" json:"unit_target_per_month" yaml:"unit_target_per_month"`
	DirectMaterialCostPerUnit float64           `mapstructure:"direct_material_cost_per_unit" json:"direct_material_cost_per_unit" yaml:"direct_material_cost_per_unit"`
	Product                   pricing.Selection `mapstructure:"product" json:"product,omitempty" yaml:"product,omitempty"`
	Catalog                   pricing.Catalog   `mapstructure:"catalog" json:"catalog,omitempty" yaml:"catalog,omitempty"`
	DesiredMarginPct          float64           `mapstructure:"desired_margin_pct" json:"desired_margin_pct,omitempty" yaml:"desired_margin_pct,omitempty"`
	PricingTiers              []pricing.Tier    `mapstructure:"pricing_tiers" json:"pricing_tiers,omitempty" yaml:"pricing_tiers,omitempty"`

	// Receivables
	AvistaShare     float64 `mapstructure:"avista_share" json:"avista_share" yaml:"avista_share"`
	ReceivableDays  int     `mapstructure:"receivable_days" json:"receivable_days" yaml:"receivable_days"`
	AcquirerFeeRate float64 `mapstructure:"acquirer_fee_rate" json:"acquirer_fee_rate" yaml:"acquirer_fee_rate"`

	FixedCosts `mapstructure:",squash" yaml:",inline"`

	// Variable rates
	CMVPct           float64  `mapstructure:"cmv_pct" json:"cmv_pct" yaml:"cmv_pct"`
	TaxPctOverride   *float64 `mapstructure:"tax_pct_override" json:"tax_pct_override,omitempty" yaml:"tax_pct_override,omitempty"`
	CommissionPct    float64  `mapstructure:"commission_pct" json:"commission_pct" yaml:"commission_pct"`
	OtherVariablePct float64  `mapstructure:"other_variable_pct" json:"other_variable_pct,omitempty" yaml:"other_variable_pct,omitempty"`

	// Flat captador fields; Normalize folds them into Captador.
	CaptadorEnabled            bool     `mapstructure:"captador_enabled" json:"captador_enabled,omitempty" yaml:"captador_enabled,omitempty"`
	CaptadorPerAvistaSale      float64  `mapstructure:"captador_per_avista_sale" json:"captador_per_avista_sale,omitempty" yaml:"captador_per_avista_sale,omitempty"`
	CaptadorPerInstallmentSale float64  `mapstructure:"captador_per_installment_sale" json:"captador_per_installment_sale,omitempty" yaml:"captador_per_installment_sale,omitempty"`
	CaptadorMinThreshold       int      `mapstructure:"captador_min_threshold" json:"captador_min_threshold,omitempty" yaml:"captador_min_threshold,omitempty"`
	Captador                   Captador `mapstructure:"captador" json:"captador" yaml:"captador"`

	// Labor
	Employees      []labor.Employee `mapstructure:"employees" json:"employees,omitempty" yaml:"employees,omitempty"`
	FlatLoadingPct float64          `mapstructure:"flat_loading_pct" json:"flat_loading_pct,omitempty" yaml:"flat_loading_pct,omitempty"`

	// Tax
	Regime       tax.Regime `mapstructure:"regime" json:"regime" yaml:"regime"`
	SimplesAnnex tax.Annex  `mapstructure:"simples_annex" json:"simples_annex,omitempty" yaml:"simples_annex,omitempty"`
	// PresumidoCommerceSharePct is the share of revenue taxed with the commerce
	// presumption base under Lucro Presumido; the rest uses the service base.
	PresumidoCommerceSharePct *float64 `mapstructure:"presumido_commerce_share_pct" json:"presumido_commerce_share_pct,omitempty" yaml:"presumido_commerce_share_pct,omitempty"`

	// Supplier terms
	PaymentProfile  finance.Profile `mapstructure:"payment_profile" json:"payment_profile" yaml:"payment_profile"`
	CashDiscountPct float64         `mapstructure:"cash_discount_pct" json:"cash_discount_pct,omitempty" yaml:"cash_discount_pct,omitempty"`

	// Investment
	TotalInvestment       float64              `mapstructure:"total_investment" json:"total_investment" yaml:"total_investment"`
	InitialWorkingCapital float64              `mapstructure:"initial_working_capital" json:"initial_working_capital" yaml:"initial_working_capital"`
	Depreciation          Depreciation         `mapstructure:"depreciation" json:"depreciation" yaml:"depreciation"`
	Financing             financing.LoanConfig `mapstructure:"financing" json:"financing" yaml:"financing"`
}

// FixedCosts are the monthly itemized operating expenses. Rent is reported on
// its own DRE line; the rest form operating_expenses_detail.
type FixedCosts struct {
	Rent             float64            `mapstructure:"rent" json:"rent" yaml:"rent"`
	Utilities        float64            `mapstructure:"utilities" json:"utilities,omitempty" yaml:"utilities,omitempty"`
	Telecom          float64            `mapstructure:"telecom" json:"telecom,omitempty" yaml:"telecom,omitempty"`
	Marketing        float64            `mapstructure:"marketing" json:"marketing,omitempty" yaml:"marketing,omitempty"`
	Accounting       float64            `mapstructure:"accounting" json:"accounting,omitempty" yaml:"accounting,omitempty"`
	CleaningSecurity float64            `mapstructure:"cleaning_security" json:"cleaning_security,omitempty" yaml:"cleaning_security,omitempty"`
	Insurance        float64            `mapstructure:"insurance" json:"insurance,omitempty" yaml:"insurance,omitempty"`
	Maintenance      float64            `mapstructure:"maintenance" json:"maintenance,omitempty" yaml:"maintenance,omitempty"`
	OfficeSupplies   float64            `mapstructure:"office_supplies" json:"office_supplies,omitempty" yaml:"office_supplies,omitempty"`
	OtherFixed       float64            `mapstructure:"other_fixed" json:"other_fixed,omitempty" yaml:"other_fixed,omitempty"`
	Extra            map[string]float64 `mapstructure:"extra_fixed" json:"extra_fixed,omitempty" yaml:"extra_fixed,omitempty"`
}

// OperatingExpenses returns every fixed item except rent, keyed by field name.
func (f FixedCosts) OperatingExpenses() map[string]float64 {
	items := map[string]float64{
		"utilities":         f.Utilities,
		"telecom":           f.Telecom,
		"marketing":         f.Marketing,
		"accounting":        f.Accounting,
		"cleaning_security": f.CleaningSecurity,
		"insurance":         f.Insurance,
		"maintenance":       f.Maintenance,
		"office_supplies":   f.OfficeSupplies,
		"other_fixed":       f.OtherFixed,
	}
	for name, amount := range f.Extra {
		items[name] += amount
	}
	return items
}

// Items returns rent plus the operating expenses.
func (f FixedCosts) Items() map[string]float64 {
	items := f.OperatingExpenses()
	items["rent"] = f.Rent
	return items
}

// FixedTotal sums every fixed item.
func (f FixedCosts) FixedTotal() float64 {
	items := f.Items()
	total := 0.0
	for _, name := range SortedKeys(items) {
		total += items[name]
	}
	return total
}

// SortedKeys returns the keys of m in lexical order so sums and renderings are
// reproducible.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CaptadorMode selects how a sales split is paid.
type CaptadorMode string

// Captador payment modes.
const (
	CaptadorFixed   CaptadorMode = "fixed"
	CaptadorPercent CaptadorMode = "percent"
)

// Captador configures the sales-origination commission.
type Captador struct {
	Enabled            bool         `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	PerAvistaSale      float64      `mapstructure:"per_avista_sale" json:"per_avista_sale,omitempty" yaml:"per_avista_sale,omitempty"`
	PerInstallmentSale float64      `mapstructure:"per_installment_sale" json:"per_installment_sale,omitempty" yaml:"per_installment_sale,omitempty"`
	AvistaMode         CaptadorMode `mapstructure:"avista_mode" json:"avista_mode,omitempty" yaml:"avista_mode,omitempty"`
	InstallmentMode    CaptadorMode `mapstructure:"installment_mode" json:"installment_mode,omitempty" yaml:"installment_mode,omitempty"`
	// AvistaPct and InstallmentPct apply to the revenue of each split in
	// percent mode.
	AvistaPct           float64 `mapstructure:"avista_pct" json:"avista_pct,omitempty" yaml:"avista_pct,omitempty"`
	InstallmentPct      float64 `mapstructure:"installment_pct" json:"installment_pct,omitempty" yaml:"installment_pct,omitempty"`
	MinThreshold        int     `mapstructure:"min_threshold" json:"min_threshold,omitempty" yaml:"min_threshold,omitempty"`
	ProductBonusEnabled bool    `mapstructure:"product_bonus_enabled" json:"product_bonus_enabled,omitempty" yaml:"product_bonus_enabled,omitempty"`
	LensBonus           float64 `mapstructure:"lens_bonus" json:"lens_bonus,omitempty" yaml:"lens_bonus,omitempty"`
	FrameBonus          float64 `mapstructure:"frame_bonus" json:"frame_bonus,omitempty" yaml:"frame_bonus,omitempty"`
}

// Clone returns a copy that shares no slices or maps with b.
func (b AssumptionBundle) Clone() AssumptionBundle {
	out := b
	if b.SeasonalMonths != nil {
		out.SeasonalMonths = append([]string(nil), b.SeasonalMonths...)
	}
	if b.Product.Treatments != nil {
		out.Product.Treatments = append([]string(nil), b.Product.Treatments...)
	}
	if b.PricingTiers != nil {
		out.PricingTiers = append([]pricing.Tier(nil), b.PricingTiers...)
	}
	if b.Employees != nil {
		out.Employees = append([]labor.Employee(nil), b.Employees...)
	}
	if b.PaymentProfile.Shares != nil {
		out.PaymentProfile.Shares = append([]float64(nil), b.PaymentProfile.Shares...)
	}
	if b.TaxPctOverride != nil {
		v := *b.TaxPctOverride
		out.TaxPctOverride = &v
	}
	if b.PresumidoCommerceSharePct != nil {
		v := *b.PresumidoCommerceSharePct
		out.PresumidoCommerceSharePct = &v
	}
	if b.Depreciation.SharePct != nil {
		v := *b.Depreciation.SharePct
		out.Depreciation.SharePct = &v
	}
	if b.Depreciation.MonthlyOverride != nil {
		v := *b.Depreciation.MonthlyOverride
		out.Depreciation.MonthlyOverride = &v
	}
	out.FixedCosts.Extra = cloneMap(b.FixedCosts.Extra)
	out.Catalog.Lenses = cloneMap(b.Catalog.Lenses)
	out.Catalog.Frames = cloneMap(b.Catalog.Frames)
	out.Catalog.Treatments = cloneMap(b.Catalog.Treatments)
	return out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

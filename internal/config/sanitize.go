package config

import (
	"fmt"
	"strings"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/datetime"
	"github.com/iwvelando/otica-forecast/pkg/finance"
	"github.com/iwvelando/otica-forecast/pkg/financing"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/pricing"
	"github.com/iwvelando/otica-forecast/pkg/tax"
	"github.com/iwvelando/otica-forecast/pkg/validation"
	"go.uber.org/zap"
)

// Sanitize returns a normalized copy of the bundle together with a finding for
// every value that could not be used. Unusable numbers are zeroed, unknown
// enumerations fall back to their default, and the receiver is left intact.
func (b AssumptionBundle) Sanitize(logger *zap.Logger) (AssumptionBundle, findings.List) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := b.Clone()
	var list findings.List
	v := &validation.FieldValidator{}

	v.Month("start_month", &out.StartMonth, constants.DefaultStartMonth)

	// Revenue
	v.Money("sales_month_1", &out.SalesMonth1)
	v.Rate("monthly_growth_rate", &out.MonthlyGrowthRate, -constants.MaxPercent, constants.MaxPercent)
	v.Money("average_ticket", &out.AverageTicket)
	v.Rate("seasonal_uplift", &out.SeasonalUplift, -constants.MaxPercent, constants.MaxMarginPercent)

	// Mix and pricing
	v.Count("unit_target_per_month", &out.UnitTargetPerMonth)
	v.Money("direct_material_cost_per_unit", &out.DirectMaterialCostPerUnit)
	v.Percent("desired_margin_pct", &out.DesiredMarginPct, constants.MaxMarginPercent)
	for i := range out.PricingTiers {
		v.Percent("pricing_tiers.margin_pct", &out.PricingTiers[i].MarginPct, constants.MaxMarginPercent)
	}

	// Receivables
	v.Percent("avista_share", &out.AvistaShare, constants.MaxPercent)
	v.Count("receivable_days", &out.ReceivableDays)
	v.Percent("acquirer_fee_rate", &out.AcquirerFeeRate, constants.MaxPercent)

	out.FixedCosts.validate(v)

	// Variable rates
	v.Percent("cmv_pct", &out.CMVPct, constants.MaxPercent)
	if out.TaxPctOverride != nil {
		v.Percent("tax_pct_override", out.TaxPctOverride, constants.MaxPercent)
	}
	if out.PresumidoCommerceSharePct != nil {
		v.Percent("presumido_commerce_share_pct", out.PresumidoCommerceSharePct, constants.MaxPercent)
	}
	v.Percent("commission_pct", &out.CommissionPct, constants.MaxPercent)
	v.Percent("other_variable_pct", &out.OtherVariablePct, constants.MaxPercent)

	out.normalizeCaptador(v, &list)

	// Investment
	v.Money("total_investment", &out.TotalInvestment)
	v.Money("initial_working_capital", &out.InitialWorkingCapital)
	if out.Depreciation.SharePct != nil {
		v.Percent("depreciation.share_pct", out.Depreciation.SharePct, constants.MaxPercent)
	}
	v.Count("depreciation.months", &out.Depreciation.Months)
	if out.Depreciation.MonthlyOverride != nil {
		v.Money("depreciation.monthly_override", out.Depreciation.MonthlyOverride)
	}
	v.Percent("cash_discount_pct", &out.CashDiscountPct, constants.MaxPercent)
	v.Percent("flat_loading_pct", &out.FlatLoadingPct, constants.MaxMarginPercent)

	for _, issue := range v.Issues() {
		list.Addf(findings.InvalidFieldRule(issue.Field), findings.Critical, findings.KindConfig, 0,
			fmt.Sprintf("correct %s in the plan; it was treated as zero", issue.Field),
			"%s", issue)
	}

	out.normalizeRegime(&list)
	out.normalizeEmployees(&list)
	out.normalizeSeasonality(&list)
	out.normalizeProduct(&list)
	out.normalizeProfile(&list)
	out.normalizeFinancing(logger, &list)

	if len(list) > 0 {
		logger.Warn(fmt.Sprintf("plan %q: %d input problems found while sanitising", out.Name, len(list)),
			zap.String("op", "config.Sanitize"),
		)
	}
	return out, list
}

func (f *FixedCosts) validate(v *validation.FieldValidator) {
	v.Money("rent", &f.Rent)
	v.Money("utilities", &f.Utilities)
	v.Money("telecom", &f.Telecom)
	v.Money("marketing", &f.Marketing)
	v.Money("accounting", &f.Accounting)
	v.Money("cleaning_security", &f.CleaningSecurity)
	v.Money("insurance", &f.Insurance)
	v.Money("maintenance", &f.Maintenance)
	v.Money("office_supplies", &f.OfficeSupplies)
	v.Money("other_fixed", &f.OtherFixed)
	for _, name := range SortedKeys(f.Extra) {
		amount := f.Extra[name]
		if !v.Money("extra_fixed."+name, &amount) {
			f.Extra[name] = amount
		}
	}
}

// normalizeCaptador folds the flat captador fields into the captador block
// and validates it.
func (b *AssumptionBundle) normalizeCaptador(v *validation.FieldValidator, list *findings.List) {
	c := &b.Captador
	if b.CaptadorEnabled {
		c.Enabled = true
	}
	if c.PerAvistaSale == 0 {
		c.PerAvistaSale = b.CaptadorPerAvistaSale
	}
	if c.PerInstallmentSale == 0 {
		c.PerInstallmentSale = b.CaptadorPerInstallmentSale
	}
	if c.MinThreshold == 0 {
		c.MinThreshold = b.CaptadorMinThreshold
	}

	v.Money("captador.per_avista_sale", &c.PerAvistaSale)
	v.Money("captador.per_installment_sale", &c.PerInstallmentSale)
	v.Percent("captador.avista_pct", &c.AvistaPct, constants.MaxPercent)
	v.Percent("captador.installment_pct", &c.InstallmentPct, constants.MaxPercent)
	v.Count("captador.min_threshold", &c.MinThreshold)
	v.Money("captador.lens_bonus", &c.LensBonus)
	v.Money("captador.frame_bonus", &c.FrameBonus)

	c.AvistaMode = normalizeCaptadorMode("captador.avista_mode", c.AvistaMode, list)
	c.InstallmentMode = normalizeCaptadorMode("captador.installment_mode", c.InstallmentMode, list)

	// Keep the flat view in step so serialized bundles read the same either way.
	b.CaptadorEnabled = c.Enabled
	b.CaptadorPerAvistaSale = c.PerAvistaSale
	b.CaptadorPerInstallmentSale = c.PerInstallmentSale
	b.CaptadorMinThreshold = c.MinThreshold
}

func normalizeCaptadorMode(field string, mode CaptadorMode, list *findings.List) CaptadorMode {
	switch CaptadorMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case "", CaptadorFixed:
		return CaptadorFixed
	case CaptadorPercent, "pct", "percentage":
		return CaptadorPercent
	}
	list.Addf(findings.InvalidFieldRule(field), findings.Critical, findings.KindConfig, 0,
		fmt.Sprintf("set %s to %q or %q", field, CaptadorFixed, CaptadorPercent),
		"%s = %q is not a captador mode; fixed was used", field, mode)
	return CaptadorFixed
}

func (b *AssumptionBundle) normalizeRegime(list *findings.List) {
	regime, err := tax.ParseRegime(string(b.Regime))
	if err != nil {
		list.Addf(findings.InvalidFieldRule("regime"), findings.Critical, findings.KindConfig, 0,
			"choose MEI, SimplesNacional or LucroPresumido as the tax regime",
			"%v; Simples Nacional was used", err)
		regime = tax.Simples
	}
	b.Regime = regime

	annex, err := tax.ParseAnnex(string(b.SimplesAnnex))
	if err != nil {
		list.Addf(findings.InvalidFieldRule("simples_annex"), findings.Critical, findings.KindConfig, 0,
			"choose annex I, II or III",
			"%v; annex I was used", err)
		annex = tax.AnnexI
	}
	b.SimplesAnnex = annex
}

func (b *AssumptionBundle) normalizeEmployees(list *findings.List) {
	for i := range b.Employees {
		e := &b.Employees[i]
		label := e.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}

		kind, err := labor.ParseContractKind(string(e.ContractKind))
		if err != nil {
			list.Addf(findings.InvalidFieldRule("contract_kind"), findings.Critical, findings.KindConfig, 0,
				fmt.Sprintf("set the contract kind of employee %s to CLT, MEI or ServiceProvider", label),
				"employee %s: %v; CLT was used", label, err)
			kind = labor.CLT
		}
		e.ContractKind = kind

		ev := &validation.FieldValidator{}
		ev.Count("dependents", &e.Dependents)
		ev.Money("benefits.transport", &e.Benefits.Transport)
		ev.Money("benefits.meal_voucher", &e.Benefits.MealVoucher)
		ev.Money("benefits.health_plan", &e.Benefits.HealthPlan)
		ev.Percent("commission_pct", &e.CommissionPct, constants.MaxPercent)
		for _, issue := range ev.Issues() {
			list.Addf(findings.InvalidFieldRule("employee_"+strings.ReplaceAll(issue.Field, ".", "_")),
				findings.Critical, findings.KindConfig, 0,
				fmt.Sprintf("correct %s of employee %s", issue.Field, label),
				"employee %s: %s", label, issue)
		}
	}
}

func (b *AssumptionBundle) normalizeSeasonality(list *findings.List) {
	_, unknown := datetime.ParseMonthSet(b.SeasonalMonths)
	if len(unknown) == 0 {
		return
	}
	list.Addf(findings.InvalidFieldRule("seasonal_months"), findings.Warning, findings.KindConfig, 0,
		"use month names such as dezembro, december or 12",
		"seasonal months %s were not recognized and get no uplift", strings.Join(unknown, ", "))
}

// normalizeProduct drops a product selection the catalog cannot price.
func (b *AssumptionBundle) normalizeProduct(list *findings.List) {
	if b.Product.IsZero() {
		return
	}
	catalog := pricing.DefaultCatalog().Merge(b.Catalog)
	if _, err := catalog.UnitCost(b.Product); err != nil {
		list.Addf(findings.InvalidFieldRule("product"), findings.Critical, findings.KindConfig, 0,
			"pick lens, frame and treatments from the catalog",
			"%v; the product selection was ignored", err)
		b.Product = pricing.Selection{}
	}
}

func (b *AssumptionBundle) normalizeProfile(list *findings.List) {
	if b.PaymentProfile.Name == "" && len(b.PaymentProfile.Shares) == 0 {
		b.PaymentProfile = finance.CashProfile()
		return
	}
	if b.PaymentProfile.Name != "" && len(b.PaymentProfile.Shares) == 0 {
		// A name decoded from an object form still needs its shares.
		if p, err := finance.ParseProfile(b.PaymentProfile.Name); err == nil {
			b.PaymentProfile = p
		}
	}
	if err := b.PaymentProfile.Validate(); err != nil {
		list.Addf(findings.RuleInvalidPaymentProfile, findings.Critical, findings.KindConfig, 0,
			"choose cash, 30d, 45d, 60d, 30_60, 30_60_90 or custom shares adding up to 100",
			"%v; suppliers were assumed to be paid in cash", err)
		b.PaymentProfile = finance.CashProfile()
	}
}

func (b *AssumptionBundle) normalizeFinancing(logger *zap.Logger, list *findings.List) {
	loan := &b.Financing
	system, err := financing.ParseSystem(string(loan.System))
	if err != nil {
		list.Addf(findings.InvalidFieldRule("financing.system"), findings.Critical, findings.KindConfig, 0,
			"set the amortization system to price or sac",
			"%v; price was used", err)
		system = financing.Price
	}
	loan.System = system

	if !loan.Enabled() {
		return
	}
	if _, err := b.FinancingSchedule(logger); err != nil {
		list.Addf(findings.InvalidFieldRule("financing"), findings.Critical, findings.KindConfig, 0,
			"review the loan term, grace period and rate",
			"%v; the loan was left out of the projection", err)
		*loan = financing.LoanConfig{Name: loan.Name, System: system}
	}
}

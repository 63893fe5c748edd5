// Package dre builds the monthly income statement (Demonstrativo do Resultado
// do Exercício) of a plan.
package dre

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/pkg/adapters"
	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/datetime"
	"github.com/iwvelando/otica-forecast/pkg/financing"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"github.com/iwvelando/otica-forecast/pkg/pricing"
	"github.com/iwvelando/otica-forecast/pkg/tax"
	"go.uber.org/zap"
)

// MonthlyStatement is the income statement of one projected month.
type MonthlyStatement struct {
	Month    int    `json:"month"`
	Label    string `json:"label"`
	Seasonal bool   `json:"seasonal,omitempty"`

	GrossRevenue float64 `json:"gross_revenue"`
	Units        float64 `json:"units"`

	Taxes            float64  `json:"taxes"`
	TaxEffectiveRate float64  `json:"tax_effective_rate"`
	TaxFlags         []string `json:"tax_flags,omitempty"`
	CMV              float64  `json:"cmv"`
	GrossProfit      float64  `json:"gross_profit"`

	CommissionsSales    float64 `json:"commissions_sales"`
	CommissionsCaptador float64 `json:"commissions_captador"`
	CaptadorCalcTrace   string  `json:"captador_calc_trace,omitempty"`
	AcquirerFees        float64 `json:"acquirer_fees"`
	OtherVariable       float64 `json:"other_variable"`
	ContributionMargin  float64 `json:"contribution_margin"`

	Rent                    float64            `json:"rent"`
	PayrollCLT              float64            `json:"payroll_clt"`
	ServiceProviders        float64            `json:"service_providers"`
	OperatingExpensesDetail map[string]float64 `json:"operating_expenses_detail"`
	OperatingExpenses       float64            `json:"operating_expenses"`
	Depreciation            float64            `json:"depreciation"`
	FixedTotal              float64            `json:"fixed_total"`
	OperatingProfit         float64            `json:"operating_profit"`

	FinancialExpenses float64 `json:"financial_expenses"`
	NetResult         float64 `json:"net_result"`
}

// VariableCosts returns every line that moves with revenue.
func (s MonthlyStatement) VariableCosts() float64 {
	return s.CMV + s.Taxes + s.AcquirerFees + s.CommissionsSales + s.CommissionsCaptador + s.OtherVariable
}

// Statement is the twelve-month DRE plus the intermediate results it was built
// from.
type Statement struct {
	Months []MonthlyStatement `json:"months"`
	// Annual sums every line over the horizon. Month is zero.
	Annual MonthlyStatement `json:"annual"`

	Regime     tax.Regime `json:"regime"`
	Annex      tax.Annex  `json:"annex,omitempty"`
	CMVPerUnit float64    `json:"cmv_per_unit"`
	CMVSource  string     `json:"cmv_source"`

	Labor      labor.Aggregate             `json:"labor"`
	Allocation pricing.AllocationBreakdown `json:"allocation"`
	Quote      pricing.Quote               `json:"quote"`
	Financing  []financing.Payment         `json:"financing,omitempty"`
}

// Engine produces statements. It holds only immutable reference data and may
// be shared between goroutines.
type Engine struct {
	logger *zap.Logger
	tax    *tax.Calculator
}

// NewEngine returns a DRE engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, tax: tax.NewCalculator(logger)}
}

// Build computes the statement of a sanitised bundle. Problems found on the
// way are returned as findings; the statement is always complete.
func (e *Engine) Build(b config.AssumptionBundle) (Statement, findings.List) {
	var list findings.List
	st := Statement{Regime: b.Regime, Annex: b.SimplesAnnex}

	// Cost inputs first: labor and the product model.
	st.Labor = adapters.NewLaborCalculator(e.logger, b).Aggregate(b.Employees)
	model := adapters.NewPricingModel(e.logger, b)
	perUnit, source, err := adapters.UnitDirectCost(model, b)
	if err != nil {
		list.Addf(findings.RuleInsufficientInput, findings.Warning, findings.KindInsufficientInput, 0,
			"pick a product from the catalog or set direct_material_cost_per_unit",
			"%v", err)
	}
	st.CMVPerUnit, st.CMVSource = perUnit, source
	if source == adapters.CMVSourceNone {
		list.Addf(findings.RuleInsufficientInput, findings.Warning, findings.KindInsufficientInput, 0,
			"set cmv_pct or direct_material_cost_per_unit",
			"no cost of goods information; CMV was projected as zero")
	}

	schedule, err := b.FinancingSchedule(e.logger)
	if err != nil {
		// Sanitize already drops loans it cannot schedule.
		schedule = financing.Window(nil, constants.ProjectionMonths)
	}
	if b.Financing.Enabled() {
		st.Financing = schedule
	}

	labels, err := datetime.MonthLabels(b.StartMonth, constants.ProjectionMonths)
	if err != nil {
		labels, _ = datetime.MonthLabels(constants.DefaultStartMonth, constants.ProjectionMonths)
	}
	seasonal, _ := datetime.ParseMonthSet(b.SeasonalMonths)

	opex := b.FixedCosts.OperatingExpenses()
	opexValues := make([]float64, 0, len(opex))
	for _, name := range config.SortedKeys(opex) {
		opexValues = append(opexValues, opex[name])
	}
	opexTotal := mathutil.Sum(opexValues)
	depreciation := b.MonthlyDepreciation()
	commissionPct := b.CommissionPct + st.Labor.CommissionPct

	// Units come from the ticket; without one the monthly target stands in.
	unitsFromTarget := b.AverageTicket <= 0 && b.UnitTargetPerMonth > 0
	perUnitSource := source == adapters.CMVSourceDirect || source == adapters.CMVSourceCatalog
	if b.AverageTicket <= 0 {
		switch {
		case unitsFromTarget:
			list.Addf(findings.RuleInsufficientInput, findings.Warning, findings.KindInsufficientInput, 0,
				"set average_ticket to the expected revenue per sale",
				"average_ticket is not set; units were taken from unit_target_per_month (%d per month)", b.UnitTargetPerMonth)
		case perUnitSource && b.CMVPct <= 0:
			list.Addf(findings.RuleInsufficientInput, findings.Critical, findings.KindInsufficientInput, 0,
				"set average_ticket or unit_target_per_month",
				"average_ticket is not set and there is no unit target; the %s cost cannot be applied and CMV was projected as zero", source)
		default:
			list.Addf(findings.RuleInsufficientInput, findings.Warning, findings.KindInsufficientInput, 0,
				"set average_ticket or unit_target_per_month",
				"average_ticket is not set and there is no unit target; units were projected as zero")
		}
	}

	calc := e.calculator(b)
	taxFlagged := make(map[string]bool)
	for i := 0; i < constants.ProjectionMonths; i++ {
		m := MonthlyStatement{Month: i + 1, Label: labels[i]}

		revenue := b.SalesMonth1 * math.Pow(1+mathutil.PercentToRatio(b.MonthlyGrowthRate), float64(i))
		if month, err := datetime.CalendarMonth(labels[i]); err == nil && seasonal[month] {
			m.Seasonal = true
			revenue *= 1 + mathutil.PercentToRatio(b.SeasonalUplift)
		}
		m.GrossRevenue = revenue
		m.Units = mathutil.SafeDivide(revenue, b.AverageTicket, 0)
		if unitsFromTarget {
			m.Units = float64(b.UnitTargetPerMonth)
		}

		if perUnitSource && (b.AverageTicket > 0 || unitsFromTarget) {
			m.CMV = m.Units * perUnit
		} else {
			m.CMV = mathutil.ApplyPercentage(revenue, b.CMVPct)
		}

		m.Taxes, m.TaxEffectiveRate, m.TaxFlags = monthlyTax(calc, b, revenue)
		for _, flag := range m.TaxFlags {
			if flag == tax.FlagInsufficientInput && !taxFlagged[flag] {
				list.Addf(findings.RuleInsufficientInput, findings.Warning, findings.KindInsufficientInput, m.Month,
					"enter the expected sales for the first month",
					"month %d has no revenue to compute %s taxes on", m.Month, b.Regime)
			}
			taxFlagged[flag] = true
		}
		m.GrossProfit = revenue - m.Taxes - m.CMV

		m.AcquirerFees = mathutil.ApplyPercentage(revenue*(1-mathutil.PercentToRatio(b.AvistaShare)), b.AcquirerFeeRate)
		m.CommissionsSales = mathutil.ApplyPercentage(revenue, commissionPct)
		m.CommissionsCaptador, m.CaptadorCalcTrace = CaptadorCommission(b, revenue, m.Units)
		m.OtherVariable = mathutil.ApplyPercentage(revenue, b.OtherVariablePct)
		m.ContributionMargin = revenue - m.VariableCosts()

		m.Rent = b.Rent
		m.PayrollCLT = st.Labor.CLTTotal
		m.ServiceProviders = st.Labor.ProviderTotal
		m.OperatingExpensesDetail = make(map[string]float64, len(opex))
		for name, amount := range opex {
			m.OperatingExpensesDetail[name] = amount
		}
		m.OperatingExpenses = opexTotal
		m.Depreciation = depreciation
		m.FixedTotal = m.Rent + m.PayrollCLT + m.ServiceProviders + m.OperatingExpenses + m.Depreciation
		m.OperatingProfit = m.ContributionMargin - m.FixedTotal

		m.FinancialExpenses = schedule[i].Interest
		m.NetResult = m.OperatingProfit - m.FinancialExpenses

		e.logger.Debug(fmt.Sprintf("month %d (%s): revenue %.2f, contribution %.2f, operating profit %.2f",
			m.Month, m.Label, m.GrossRevenue, m.ContributionMargin, m.OperatingProfit),
			zap.String("op", "dre.Build"),
		)
		st.Months = append(st.Months, m)
	}
	st.Annual = Sum(st.Months)

	// Fixed-cost allocation over the planned volume, and the resulting price.
	st.Allocation = model.AllocationPerUnit(fixedItems(st.Months[0]), b.UnitTargetPerMonth)
	if st.Allocation.Fallback() {
		list.Addf(findings.RuleAllocationFallback, findings.Warning, findings.KindAllocationFallback, 0,
			"set unit_target_per_month to the number of sales you plan per month",
			"unit_target_per_month is %d; fixed costs were allocated over 1 unit", b.UnitTargetPerMonth)
	}
	direct := perUnit
	if source == adapters.CMVSourceNone {
		direct = 0
	}
	st.Quote = model.Quote(pricing.LineProduct, direct, st.Allocation, b.DesiredMarginPct, b.PricingTiers)

	e.logger.Debug(fmt.Sprintf("annual revenue %.2f, operating profit %.2f", st.Annual.GrossRevenue, st.Annual.OperatingProfit),
		zap.String("op", "dre.Build"),
	)
	return st, list
}

// calculator returns the tax calculator for the plan, using its commerce
// share under Lucro Presumido when one is set.
func (e *Engine) calculator(b config.AssumptionBundle) *tax.Calculator {
	if b.PresumidoCommerceSharePct == nil {
		return e.tax
	}
	params := tax.DefaultPresumidoParams()
	params.CommerceSharePct = *b.PresumidoCommerceSharePct
	return e.tax.WithPresumidoParams(params)
}

// monthlyTax returns the tax of one month computed on the revenue annualised
// from that month, or the override rate when the plan sets one.
func monthlyTax(calc *tax.Calculator, b config.AssumptionBundle, revenue float64) (float64, float64, []string) {
	if b.TaxPctOverride != nil {
		return mathutil.ApplyPercentage(revenue, *b.TaxPctOverride), *b.TaxPctOverride, nil
	}
	res, err := calc.Calculate(b.Regime, b.SimplesAnnex, revenue*constants.MonthsPerYear)
	if err != nil {
		// Regime and annex are normalized by Sanitize; reaching this is a bug.
		panic(fmt.Sprintf("tax calculation for sanitised regime %q: %v", b.Regime, err))
	}
	return res.MonthlyTax, res.EffectiveRate, res.Flags
}

// fixedItems lists the fixed costs of a month for allocation.
func fixedItems(m MonthlyStatement) map[string]float64 {
	items := make(map[string]float64, len(m.OperatingExpensesDetail)+4)
	for name, amount := range m.OperatingExpensesDetail {
		items[name] = amount
	}
	items["rent"] = m.Rent
	items["payroll_clt"] = m.PayrollCLT
	items["service_providers"] = m.ServiceProviders
	items["depreciation"] = m.Depreciation
	return items
}

// CaptadorCommission applies the captador rule to one month and returns the
// commission with a human-readable trace. Units gate the commission in both
// payment modes.
func CaptadorCommission(b config.AssumptionBundle, revenue, units float64) (float64, string) {
	c := b.Captador
	if !c.Enabled {
		return 0, ""
	}
	if units < float64(c.MinThreshold) {
		return 0, fmt.Sprintf("units %s < threshold %d", trimFloat(units), c.MinThreshold)
	}

	avistaShare := mathutil.PercentToRatio(b.AvistaShare)
	unitsAvista := units * avistaShare
	unitsInstallment := units - unitsAvista

	var parts []string
	parts = append(parts, fmt.Sprintf("units %s >= threshold %d", trimFloat(units), c.MinThreshold))

	avista, trace := captadorSplit("avista", c.AvistaMode, unitsAvista, c.PerAvistaSale, revenue*avistaShare, c.AvistaPct)
	parts = append(parts, trace)
	installment, trace := captadorSplit("parcelado", c.InstallmentMode, unitsInstallment, c.PerInstallmentSale, revenue*(1-avistaShare), c.InstallmentPct)
	parts = append(parts, trace)

	total := avista + installment
	if c.ProductBonusEnabled {
		bonus := 0.75*units*c.LensBonus + 0.90*units*c.FrameBonus
		parts = append(parts, fmt.Sprintf("bonus 0.75x%sx%.2f + 0.90x%sx%.2f = %.2f",
			trimFloat(units), c.LensBonus, trimFloat(units), c.FrameBonus, bonus))
		total += bonus
	}
	parts = append(parts, fmt.Sprintf("total %.2f", total))
	return total, strings.Join(parts, "; ")
}

func captadorSplit(name string, mode config.CaptadorMode, units, perSale, revenue, pct float64) (float64, string) {
	if mode == config.CaptadorPercent {
		amount := mathutil.ApplyPercentage(revenue, pct)
		return amount, fmt.Sprintf("%s %.2f x %s%% = %.2f", name, revenue, trimFloat(pct), amount)
	}
	amount := units * perSale
	return amount, fmt.Sprintf("%s %s x %.2f = %.2f", name, trimFloat(units), perSale, amount)
}

// trimFloat renders v with at most two decimals and no trailing zeros.
func trimFloat(v float64) string {
	return strconv.FormatFloat(mathutil.Round(v), 'f', -1, 64)
}

// Sum adds every line of months into a single record.
func Sum(months []MonthlyStatement) MonthlyStatement {
	var total MonthlyStatement
	total.Label = "total"
	total.OperatingExpensesDetail = make(map[string]float64)
	for _, m := range months {
		total.GrossRevenue += m.GrossRevenue
		total.Units += m.Units
		total.Taxes += m.Taxes
		total.CMV += m.CMV
		total.GrossProfit += m.GrossProfit
		total.CommissionsSales += m.CommissionsSales
		total.CommissionsCaptador += m.CommissionsCaptador
		total.AcquirerFees += m.AcquirerFees
		total.OtherVariable += m.OtherVariable
		total.ContributionMargin += m.ContributionMargin
		total.Rent += m.Rent
		total.PayrollCLT += m.PayrollCLT
		total.ServiceProviders += m.ServiceProviders
		for name, amount := range m.OperatingExpensesDetail {
			total.OperatingExpensesDetail[name] += amount
		}
		total.OperatingExpenses += m.OperatingExpenses
		total.Depreciation += m.Depreciation
		total.FixedTotal += m.FixedTotal
		total.OperatingProfit += m.OperatingProfit
		total.FinancialExpenses += m.FinancialExpenses
		total.NetResult += m.NetResult
	}
	total.TaxEffectiveRate = mathutil.CalculatePercentage(total.Taxes, total.GrossRevenue)
	return total
}

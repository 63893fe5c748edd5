// Package viability derives the indicators, sensitivity scenarios, score and
// compliance findings of a projected plan.
package viability

import (
	"fmt"
	"math"
	"strconv"

	"github.com/iwvelando/otica-forecast/internal/cashflow"
	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/dre"
	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/finance"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/format"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"github.com/iwvelando/otica-forecast/pkg/tax"
	"go.uber.org/zap"
)

// Reference thresholds of the business-ratio rules.
const (
	RentRatioCritical = 25.0
	RentRatioWarning  = 15.0

	TicketCritical = 100.0
	TicketWarning  = 200.0

	UnitsPerDayCritical = 12.0
	UnitsPerDayWarning  = 8.0

	MismatchCriticalPct = 5.0
	MismatchWarningPct  = 0.5
)

// Sensitivity multipliers.
const (
	PessimisticRevenue = 0.80
	PessimisticCosts   = 1.10
	OptimisticRevenue  = 1.30
	OptimisticVarRatio = 0.52
)

// Number is an indicator that may be undefined (payback without profit,
// break-even without contribution). Infinite and NaN values marshal as null.
type Number float64

// Defined reports whether n is a finite value.
func (n Number) Defined() bool {
	f := float64(n)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// MarshalJSON renders undefined values as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Defined() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(n), 'f', -1, 64)), nil
}

// Status is the overall viability verdict.
type Status string

// Status values from best to worst.
const (
	Excellent Status = "Excellent"
	Good      Status = "Good"
	Fair      Status = "Fair"
	Critical  Status = "Critical"
)

func (s Status) rank() int {
	switch s {
	case Excellent:
		return 3
	case Good:
		return 2
	case Fair:
		return 1
	default:
		return 0
	}
}

// band returns the score range of a status.
func (s Status) band() (int, int) {
	switch s {
	case Excellent:
		return 80, 100
	case Good:
		return 60, 79
	case Fair:
		return 40, 59
	default:
		return 0, 39
	}
}

// Indicators are the annual viability indicators. Margins and returns are
// fractions (0.15 means 15%).
type Indicators struct {
	MarginGross             float64 `json:"margin_gross"`
	MarginOperating         float64 `json:"margin_operating"`
	EBITDAMargin            float64 `json:"ebitda_margin"`
	ContributionMarginRatio float64 `json:"contribution_margin_ratio"`
	ROIAnnual               float64 `json:"roi_annual"`
	PaybackMonths           Number  `json:"payback_months"`
	NPV5Y                   float64 `json:"npv_5y"`
	BreakEvenRevenue        Number  `json:"break_even_revenue"`
	BreakEvenUnits          Number  `json:"break_even_units"`
	MarginOfSafety          Number  `json:"margin_of_safety"`
	OperatingLeverage       Number  `json:"operating_leverage"`
}

// Scenario is one annual sensitivity case.
type Scenario struct {
	Name            string  `json:"name"`
	Revenue         float64 `json:"revenue"`
	VariableCosts   float64 `json:"variable_costs"`
	FixedCosts      float64 `json:"fixed_costs"`
	OperatingProfit float64 `json:"operating_profit"`
	MarginOperating float64 `json:"margin_operating"`
}

// Sensitivity holds the three fixed scenarios.
type Sensitivity struct {
	Pessimistic Scenario `json:"pessimistic"`
	Realistic   Scenario `json:"realistic"`
	Optimistic  Scenario `json:"optimistic"`
}

// Points are the 0..2 points each scored indicator earned.
type Points struct {
	ROI             int `json:"roi"`
	Payback         int `json:"payback"`
	MarginOperating int `json:"margin_operating"`
	NPV             int `json:"npv"`
	MarginOfSafety  int `json:"margin_of_safety"`
}

// Total returns the sum of the points.
func (p Points) Total() int {
	return p.ROI + p.Payback + p.MarginOperating + p.NPV + p.MarginOfSafety
}

// Report is the outcome of the evaluation.
type Report struct {
	Indicators  Indicators    `json:"indicators"`
	Sensitivity Sensitivity   `json:"sensitivity"`
	Points      Points        `json:"points"`
	Score       int           `json:"score"`
	Status      Status        `json:"status"`
	Findings    findings.List `json:"findings"`
}

// Evaluator computes viability reports.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator returns a viability evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// Evaluate scores the plan. prior carries the findings of the earlier stages;
// the report lists them merged with its own, most severe first.
func (e *Evaluator) Evaluate(b config.AssumptionBundle, st dre.Statement, cf cashflow.Projection, prior findings.List) Report {
	var r Report
	r.Indicators = Compute(b, st)
	r.Sensitivity = Sensitize(st)

	var own findings.List
	e.complianceRules(b, st, &own)
	e.ratioRules(b, st, &own)
	e.laborRules(st.Labor, &own)
	if b.TotalInvestment <= 0 {
		own.Addf(findings.RuleInvestmentMissing, findings.Warning, findings.KindInsufficientInput, 0,
			"enter the total investment to get ROI and payback",
			"total_investment is zero; return indicators are not meaningful")
	}
	if st.Annual.OperatingProfit <= 0 {
		action := "reduce variable costs: the contribution margin does not cover any fixed cost"
		if r.Indicators.BreakEvenRevenue.Defined() {
			action = fmt.Sprintf("raise annual revenue to at least %s or cut fixed costs",
				format.Currency(float64(r.Indicators.BreakEvenRevenue)))
		}
		own.Addf(findings.RuleBelowBreakEven, findings.Critical, findings.KindBusinessRatio, 0, action,
			"annual operating profit is %s", format.Currency(st.Annual.OperatingProfit))
	}

	all := make(findings.List, 0, len(prior)+len(own))
	all.Extend(prior)
	all.Extend(own)
	r.Findings = all.Sorted()

	r.Points = Score(b, r.Indicators)
	r.Status = StatusFor(r.Points.Total())
	if r.Findings.HasSeverity(findings.Critical) && r.Status.rank() > Fair.rank() {
		r.Status = Fair
	}
	if r.Findings.Has(findings.RuleBelowBreakEven) {
		r.Status = Critical
	}
	low, high := r.Status.band()
	r.Score = r.Points.Total() * 10
	if r.Score < low {
		r.Score = low
	}
	if r.Score > high {
		r.Score = high
	}

	e.logger.Debug(fmt.Sprintf("points %d, score %d, status %s, %d findings",
		r.Points.Total(), r.Score, r.Status, len(r.Findings)),
		zap.String("op", "viability.Evaluate"),
	)
	return r
}

// Compute derives the indicators from the annual statement.
func Compute(b config.AssumptionBundle, st dre.Statement) Indicators {
	a := st.Annual
	var ind Indicators
	ind.MarginGross = mathutil.SafeDivide(a.GrossProfit, a.GrossRevenue, 0)
	ind.MarginOperating = mathutil.SafeDivide(a.OperatingProfit, a.GrossRevenue, 0)
	ind.EBITDAMargin = mathutil.SafeDivide(a.OperatingProfit+a.Depreciation, a.GrossRevenue, 0)
	ind.ContributionMarginRatio = mathutil.SafeDivide(a.ContributionMargin, a.GrossRevenue, 0)

	ind.ROIAnnual = finance.ROI(a.OperatingProfit, b.TotalInvestment)
	ind.PaybackMonths = Number(finance.PaybackMonths(b.TotalInvestment, a.OperatingProfit/constants.MonthsPerYear))
	ind.NPV5Y = finance.FiveYearNPV(a.OperatingProfit, b.TotalInvestment)

	ind.BreakEvenRevenue = Number(math.Inf(1))
	if ind.ContributionMarginRatio > 0 {
		ind.BreakEvenRevenue = Number(a.FixedTotal / ind.ContributionMarginRatio)
	}
	ind.BreakEvenUnits = Number(math.NaN())
	if b.AverageTicket > 0 {
		ind.BreakEvenUnits = Number(float64(ind.BreakEvenRevenue) / b.AverageTicket)
	}
	ind.MarginOfSafety = Number(math.NaN())
	if a.GrossRevenue > 0 && ind.BreakEvenRevenue.Defined() {
		ind.MarginOfSafety = Number((a.GrossRevenue - float64(ind.BreakEvenRevenue)) / a.GrossRevenue)
	}
	ind.OperatingLeverage = Number(math.NaN())
	if a.OperatingProfit != 0 {
		ind.OperatingLeverage = Number(a.ContributionMargin / a.OperatingProfit)
	}
	return ind
}

// Sensitize builds the pessimistic, realistic and optimistic cases from the
// annual aggregates.
func Sensitize(st dre.Statement) Sensitivity {
	a := st.Annual
	variable := a.VariableCosts()
	ratio := mathutil.SafeDivide(variable, a.GrossRevenue, 0)

	scenario := func(name string, revenue, varRatio, fixed float64) Scenario {
		s := Scenario{Name: name, Revenue: revenue, VariableCosts: revenue * varRatio, FixedCosts: fixed}
		s.OperatingProfit = s.Revenue - s.VariableCosts - s.FixedCosts
		s.MarginOperating = mathutil.SafeDivide(s.OperatingProfit, s.Revenue, 0)
		return s
	}
	return Sensitivity{
		Pessimistic: scenario("pessimistic", a.GrossRevenue*PessimisticRevenue, ratio*PessimisticCosts, a.FixedTotal*PessimisticCosts),
		Realistic:   scenario("realistic", a.GrossRevenue, ratio, a.FixedTotal),
		Optimistic:  scenario("optimistic", a.GrossRevenue*OptimisticRevenue, mathutil.Min(ratio, OptimisticVarRatio), a.FixedTotal),
	}
}

// Score awards 0..2 points per indicator. ROI and operating margin are
// compared as percentages, the margin of safety as a fraction.
func Score(b config.AssumptionBundle, ind Indicators) Points {
	var p Points
	roi := ind.ROIAnnual * constants.PercentageMultiplier
	switch {
	case roi > 20:
		p.ROI = 2
	case roi > 10:
		p.ROI = 1
	}
	if b.TotalInvestment > 0 && ind.PaybackMonths.Defined() {
		switch payback := float64(ind.PaybackMonths); {
		case payback < 24:
			p.Payback = 2
		case payback < 48:
			p.Payback = 1
		}
	}
	margin := ind.MarginOperating * constants.PercentageMultiplier
	switch {
	case margin > 15:
		p.MarginOperating = 2
	case margin > 8:
		p.MarginOperating = 1
	}
	if ind.NPV5Y > 0 {
		p.NPV = 2
	}
	if ind.MarginOfSafety.Defined() {
		switch mos := float64(ind.MarginOfSafety); {
		case mos > 0.3:
			p.MarginOfSafety = 2
		case mos > 0.15:
			p.MarginOfSafety = 1
		}
	}
	return p
}

// StatusFor maps a point total to a status.
func StatusFor(points int) Status {
	switch {
	case points >= 8:
		return Excellent
	case points >= 6:
		return Good
	case points >= 4:
		return Fair
	default:
		return Critical
	}
}

func (e *Evaluator) complianceRules(b config.AssumptionBundle, st dre.Statement, list *findings.List) {
	annual := st.Annual.GrossRevenue
	flagged := func(flag string) bool {
		for _, m := range st.Months {
			for _, f := range m.TaxFlags {
				if f == flag {
					return true
				}
			}
		}
		return false
	}

	switch b.Regime {
	case tax.MEI:
		if annual > constants.MEIAnnualLimit || flagged(tax.FlagMEILimitExceeded) {
			list.Addf(findings.RuleMEILimitExceeded, findings.Critical, findings.KindRegimeViolation, 0,
				"switch regime to Simples Nacional",
				"projected annual revenue %s exceeds the MEI ceiling of %s",
				format.Currency(annual), format.Currency(constants.MEIAnnualLimit))
		}
		headcount := st.Labor.ByKind[labor.CLT].Count + st.Labor.ByKind[labor.ServiceProvider].Count
		if headcount > constants.MEIMaxEmployees {
			list.Addf(findings.RuleMEIHeadcountExceeded, findings.Critical, findings.KindRegimeViolation, 0,
				"switch regime to Simples Nacional or keep a single employee",
				"MEI allows %d employee, the roster has %d", constants.MEIMaxEmployees, headcount)
		}
	case tax.Simples:
		if annual > constants.SimplesAnnualLimit || flagged(tax.FlagSimplesLimitExceeded) {
			list.Addf(findings.RuleSimplesLimitExceeded, findings.Critical, findings.KindRegimeViolation, 0,
				"switch regime to Lucro Presumido",
				"projected revenue exceeds the Simples Nacional ceiling of %s", format.Currency(constants.SimplesAnnualLimit))
		}
	}
}

func (e *Evaluator) ratioRules(b config.AssumptionBundle, st dre.Statement, list *findings.List) {
	months := float64(len(st.Months))
	if months == 0 {
		return
	}
	meanRevenue := st.Annual.GrossRevenue / months

	if meanRevenue > 0 && b.Rent > 0 {
		ratio := mathutil.CalculatePercentage(b.Rent, meanRevenue)
		severity := findings.Severity("")
		switch {
		case ratio > RentRatioCritical:
			severity = findings.Critical
		case ratio > RentRatioWarning:
			severity = findings.Warning
		}
		if severity != "" {
			list.Addf(findings.RuleRentRatioHigh, severity, findings.KindBusinessRatio, 0,
				fmt.Sprintf("negotiate rent down to %s or raise revenue", format.Currency(mathutil.ApplyPercentage(meanRevenue, RentRatioWarning))),
				"rent is %s of mean monthly revenue", format.Percent(ratio))
		}
	}

	if ticket := b.AverageTicket; ticket > 0 {
		switch {
		case ticket <= TicketCritical:
			list.Addf(findings.RuleTicketTooLow, findings.Critical, findings.KindBusinessRatio, 0,
				fmt.Sprintf("raise ticket to at least %s", format.Currency(TicketWarning)),
				"average ticket %s is too low for an optical store", format.Currency(ticket))
		case ticket < TicketWarning:
			list.Addf(findings.RuleTicketTooLow, findings.Warning, findings.KindBusinessRatio, 0,
				fmt.Sprintf("raise ticket to at least %s", format.Currency(TicketWarning)),
				"average ticket %s is below the usual range", format.Currency(ticket))
		}

		perDay := st.Annual.Units / months / constants.BusinessDaysPerMonth
		severity := findings.Severity("")
		switch {
		case perDay > UnitsPerDayCritical:
			severity = findings.Critical
		case perDay > UnitsPerDayWarning:
			severity = findings.Warning
		}
		if severity != "" {
			list.Addf(findings.RuleUnitsPerDayHigh, severity, findings.KindBusinessRatio, 0,
				"raise the ticket or review the sales projection",
				"the plan needs %.1f sales per business day", perDay)
		}

		if b.UnitTargetPerMonth > 0 && b.SalesMonth1 > 0 {
			implied := ticket * float64(b.UnitTargetPerMonth)
			gap := mathutil.CalculatePercentage(math.Abs(implied-b.SalesMonth1), b.SalesMonth1)
			severity := findings.Severity("")
			switch {
			case gap >= MismatchCriticalPct:
				severity = findings.Critical
			case gap > MismatchWarningPct:
				severity = findings.Warning
			}
			if severity != "" {
				list.Addf(findings.RuleTicketRevenueMismatch, severity, findings.KindInconsistency, 1,
					fmt.Sprintf("set sales_month_1 to %s or adjust the ticket or unit target", format.Currency(implied)),
					"ticket x unit target is %s but sales_month_1 is %s (%s apart)",
					format.Currency(implied), format.Currency(b.SalesMonth1), format.Percent(gap))
			}
		}

		if !st.Allocation.Fallback() && st.Quote.TotalUnitCost > ticket {
			list.Addf(findings.RuleTicketBelowUnitCost, findings.Warning, findings.KindBusinessRatio, 0,
				fmt.Sprintf("raise ticket to at least %s", format.Currency(st.Quote.TotalUnitCost)),
				"average ticket %s does not cover the full unit cost %s",
				format.Currency(ticket), format.Currency(st.Quote.TotalUnitCost))
		}
	}
}

func (e *Evaluator) laborRules(agg labor.Aggregate, list *findings.List) {
	for _, c := range agg.Costs {
		if c.HasFlag(labor.FlagInvalidSalary) {
			list.Addf(findings.RuleInvalidSalary, findings.Critical, findings.KindConfig, 0,
				fmt.Sprintf("enter a positive base salary for %s", c.Name),
				"employee %s has base salary %s and was left out of payroll", c.Name, format.Currency(c.Base))
		}
		if c.HasFlag(labor.FlagBelowMinimum) {
			list.Addf(findings.RuleCLTBelowMinimum, findings.Warning, findings.KindConfig, 0,
				fmt.Sprintf("raise %s's salary to at least %s", c.Name, format.Currency(constants.MinimumWage)),
				"CLT salary %s of %s is below the minimum wage", format.Currency(c.Base), c.Name)
		}
	}
}

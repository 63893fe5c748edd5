// Package labor computes employer cost and gross-to-net pay for óticas staff
// under the CLT, MEI and service-provider contract kinds.
package labor

import (
	"fmt"
	"strings"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// ContractKind is the legal relationship between the store and a worker.
type ContractKind string

// Contract kinds.
const (
	CLT             ContractKind = "CLT"
	MEI             ContractKind = "MEI"
	ServiceProvider ContractKind = "ServiceProvider"
)

// ParseContractKind accepts the canonical names plus the usual spellings found
// in plan files ("clt", "pj", "prestador", "service_provider").
func ParseContractKind(s string) (ContractKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clt", "":
		return CLT, nil
	case "mei":
		return MEI, nil
	case "serviceprovider", "service_provider", "provider", "prestador", "pj":
		return ServiceProvider, nil
	}
	return "", fmt.Errorf("unknown contract kind %q", s)
}

// Flags raised on a cost record.
const (
	FlagInvalidSalary = "invalid_salary"
	FlagBelowMinimum  = "below_minimum"
)

// Benefits are monthly amounts the employer pays on top of salary.
type Benefits struct {
	Transport   float64 `mapstructure:"transport" json:"transport" yaml:"transport"`
	MealVoucher float64 `mapstructure:"meal_voucher" json:"meal_voucher" yaml:"meal_voucher"`
	HealthPlan  float64 `mapstructure:"health_plan" json:"health_plan" yaml:"health_plan"`
}

// Employee is one entry of the staff roster.
type Employee struct {
	Name          string       `mapstructure:"name" json:"name" yaml:"name"`
	Role          string       `mapstructure:"role" json:"role" yaml:"role"`
	BaseSalary    float64      `mapstructure:"base_salary" json:"base_salary" yaml:"base_salary"`
	ContractKind  ContractKind `mapstructure:"contract_kind" json:"contract_kind" yaml:"contract_kind"`
	Dependents    int          `mapstructure:"dependents" json:"dependents" yaml:"dependents"`
	Benefits      Benefits     `mapstructure:"benefits" json:"benefits" yaml:"benefits"`
	CommissionPct float64      `mapstructure:"commission_pct" json:"commission_pct" yaml:"commission_pct"`
}

// Rates are the employer-side CLT charges, all in percent of base salary.
type Rates struct {
	INSSEmployer float64 `mapstructure:"inss_employer_pct" json:"inss_employer_pct" yaml:"inss_employer_pct"`
	FGTS         float64 `mapstructure:"fgts_pct" json:"fgts_pct" yaml:"fgts_pct"`
	SistemaS     float64 `mapstructure:"sistema_s_pct" json:"sistema_s_pct" yaml:"sistema_s_pct"`
	Accident     float64 `mapstructure:"accident_pct" json:"accident_pct" yaml:"accident_pct"`
	Education    float64 `mapstructure:"education_pct" json:"education_pct" yaml:"education_pct"`
	Sebrae       float64 `mapstructure:"sebrae_pct" json:"sebrae_pct" yaml:"sebrae_pct"`
	// FlatLoadingPct replaces the itemized loading with a single multiplier
	// when positive (68 means total = base * 1.68).
	FlatLoadingPct float64 `mapstructure:"flat_loading_pct" json:"flat_loading_pct" yaml:"flat_loading_pct"`
	// TransportDeductionPct is the share of salary the employee bears for the
	// transport voucher.
	TransportDeductionPct float64 `mapstructure:"transport_deduction_pct" json:"transport_deduction_pct" yaml:"transport_deduction_pct"`
}

// DefaultRates returns the 2025 reference rates.
func DefaultRates() Rates {
	return Rates{
		INSSEmployer:          20.0,
		FGTS:                  8.0,
		SistemaS:              3.58,
		Accident:              1.0,
		Education:             2.5,
		Sebrae:                0.6,
		TransportDeductionPct: 6.0,
	}
}

// ChargesPct is the sum of the itemized employer charges.
func (r Rates) ChargesPct() float64 {
	return r.INSSEmployer + r.FGTS + r.SistemaS + r.Accident + r.Education + r.Sebrae
}

// Cost is the monthly cost breakdown for one employee.
type Cost struct {
	Name           string       `json:"name"`
	Role           string       `json:"role,omitempty"`
	ContractKind   ContractKind `json:"contract_kind"`
	Base           float64      `json:"base"`
	INSSEmployer   float64      `json:"inss_employer"`
	FGTS           float64      `json:"fgts"`
	SistemaS       float64      `json:"sistema_s"`
	Accident       float64      `json:"accident"`
	Education      float64      `json:"education"`
	Sebrae         float64      `json:"sebrae"`
	VacationProv   float64      `json:"vacation_prov"`
	ThirteenthProv float64      `json:"thirteenth_prov"`
	OtherAdditions float64      `json:"other_additions"`
	// TotalMonthlyCost is salary plus charges and provisions.
	TotalMonthlyCost  float64 `json:"total_monthly_cost"`
	LoadingPercent    float64 `json:"loading_percent"`
	Benefits          float64 `json:"benefits"`
	TotalWithBenefits float64 `json:"total_with_benefits"`
	EmployeeINSS      float64 `json:"employee_inss"`
	IRRF              float64 `json:"irrf"`
	NetSalary         float64 `json:"net_salary"`
	// Flags carries invalid_salary or below_minimum.
	Flags []string `json:"flags,omitempty"`
}

// HasFlag reports whether the record carries flag.
func (c Cost) HasFlag(flag string) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// KindTotal aggregates one contract kind.
type KindTotal struct {
	Count int     `json:"count"`
	Base  float64 `json:"base"`
	Total float64 `json:"total"`
}

// Aggregate is the roster-level labor cost.
type Aggregate struct {
	Costs  []Cost                     `json:"costs"`
	ByKind map[ContractKind]KindTotal `json:"by_kind"`
	// CLTTotal includes benefits; it is what the DRE charges as payroll.
	CLTTotal float64 `json:"clt_total"`
	// ProviderTotal sums MEI and service-provider pay.
	ProviderTotal float64 `json:"provider_total"`
	GrandTotal    float64 `json:"grand_total"`
	Headcount     int     `json:"headcount"`
	// WeightedLoadingPercent is the loading over all employees weighted by base.
	WeightedLoadingPercent float64 `json:"weighted_loading_percent"`
	// CommissionPct is the sum of per-employee commission percentages.
	CommissionPct float64 `json:"commission_pct"`
}

// Calculator computes labor costs with a fixed rate table.
type Calculator struct {
	logger *zap.Logger
	rates  Rates
}

// NewCalculator returns a calculator using rates.
func NewCalculator(logger *zap.Logger, rates Rates) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger, rates: rates}
}

// Rates returns the calculator's rate table.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// CostForEmployee computes the monthly cost of one employee.
func (c *Calculator) CostForEmployee(e Employee) Cost {
	kind := e.ContractKind
	if kind == "" {
		kind = CLT
	}
	cost := Cost{Name: e.Name, Role: e.Role, ContractKind: kind}

	if e.BaseSalary <= 0 {
		c.logger.Warn(fmt.Sprintf("employee %s has non-positive salary %.2f", e.Name, e.BaseSalary),
			zap.String("op", "labor.CostForEmployee"),
		)
		cost.Flags = append(cost.Flags, FlagInvalidSalary)
		return cost
	}

	base := e.BaseSalary
	cost.Base = base

	if kind != CLT {
		cost.TotalMonthlyCost = base
		cost.TotalWithBenefits = base
		cost.NetSalary = base
		return cost
	}

	if base < constants.MinimumWage {
		c.logger.Warn(fmt.Sprintf("employee %s salary %.2f is below the minimum wage %.2f",
			e.Name, base, constants.MinimumWage),
			zap.String("op", "labor.CostForEmployee"),
		)
		cost.Flags = append(cost.Flags, FlagBelowMinimum)
	}

	r := c.rates
	cost.INSSEmployer = mathutil.ApplyPercentage(base, r.INSSEmployer)
	cost.FGTS = mathutil.ApplyPercentage(base, r.FGTS)
	cost.SistemaS = mathutil.ApplyPercentage(base, r.SistemaS)
	cost.Accident = mathutil.ApplyPercentage(base, r.Accident)
	cost.Education = mathutil.ApplyPercentage(base, r.Education)
	cost.Sebrae = mathutil.ApplyPercentage(base, r.Sebrae)
	cost.VacationProv = base / constants.MonthsPerYear * 4.0 / 3.0
	cost.ThirteenthProv = base / constants.MonthsPerYear

	charges := cost.INSSEmployer + cost.FGTS + cost.SistemaS + cost.Accident + cost.Education + cost.Sebrae
	provisions := cost.VacationProv + cost.ThirteenthProv

	if r.FlatLoadingPct > 0 {
		total := base * (1 + mathutil.PercentToRatio(r.FlatLoadingPct))
		cost.OtherAdditions = total - base - charges - provisions
	} else {
		// Charges also fall on the vacation and thirteenth provisions.
		cost.OtherAdditions = mathutil.ApplyPercentage(provisions, r.ChargesPct())
	}

	cost.TotalMonthlyCost = base + charges + provisions + cost.OtherAdditions
	cost.LoadingPercent = mathutil.CalculatePercentage(cost.TotalMonthlyCost-base, base)

	transport := mathutil.Max(e.Benefits.Transport-mathutil.ApplyPercentage(base, r.TransportDeductionPct), 0)
	cost.Benefits = transport + e.Benefits.MealVoucher + e.Benefits.HealthPlan
	cost.TotalWithBenefits = cost.TotalMonthlyCost + cost.Benefits

	cost.EmployeeINSS = EmployeeINSS(base)
	cost.IRRF = IRRF(base, cost.EmployeeINSS, e.Dependents)
	cost.NetSalary = base - cost.EmployeeINSS - cost.IRRF

	c.logger.Debug(fmt.Sprintf("employee %s costs %.2f per month (loading %.2f%%)",
		e.Name, cost.TotalMonthlyCost, cost.LoadingPercent),
		zap.String("op", "labor.CostForEmployee"),
	)

	return cost
}

// Aggregate computes the cost of every employee and totals them by contract kind.
func (c *Calculator) Aggregate(roster []Employee) Aggregate {
	agg := Aggregate{
		Costs:  make([]Cost, 0, len(roster)),
		ByKind: make(map[ContractKind]KindTotal),
	}

	var loadingSum, baseSum float64
	for _, e := range roster {
		cost := c.CostForEmployee(e)
		agg.Costs = append(agg.Costs, cost)
		agg.CommissionPct += e.CommissionPct

		if cost.HasFlag(FlagInvalidSalary) {
			continue
		}

		kt := agg.ByKind[cost.ContractKind]
		kt.Count++
		kt.Base += cost.Base
		kt.Total += cost.TotalWithBenefits
		agg.ByKind[cost.ContractKind] = kt

		if cost.ContractKind == CLT {
			agg.CLTTotal += cost.TotalWithBenefits
		} else {
			agg.ProviderTotal += cost.TotalWithBenefits
		}
		agg.Headcount++
		loadingSum += cost.TotalMonthlyCost - cost.Base
		baseSum += cost.Base
	}

	agg.GrandTotal = agg.CLTTotal + agg.ProviderTotal
	agg.WeightedLoadingPercent = mathutil.CalculatePercentage(loadingSum, baseSum)

	c.logger.Debug(fmt.Sprintf("roster of %d costs %.2f per month", agg.Headcount, agg.GrandTotal),
		zap.String("op", "labor.Aggregate"),
	)

	return agg
}

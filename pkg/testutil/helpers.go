// Package testutil provides common fixtures and lookups for testing.
package testutil

import (
	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/tax"
)

// BaselineBundle returns the baseline commerce plan: Simples Nacional annex I,
// one CLT employee and no captador.
func BaselineBundle() config.AssumptionBundle {
	return config.AssumptionBundle{
		Name:              "baseline",
		StartMonth:        "2025-01",
		SalesMonth1:       30000,
		MonthlyGrowthRate: 2.0,
		AverageTicket:     500,
		AvistaShare:       70,
		ReceivableDays:    30,
		AcquirerFeeRate:   3.79,
		CMVPct:            45,
		CommissionPct:     3,
		FixedCosts:        config.FixedCosts{Rent: 3500},
		Employees: []labor.Employee{
			{Name: "Ana", Role: "vendedora", BaseSalary: 2000, ContractKind: labor.CLT},
		},
		Regime:                tax.Simples,
		SimplesAnnex:          tax.AnnexI,
		InitialWorkingCapital: 20000,
	}
}

// MEIBundle returns a plan whose revenue exceeds the MEI ceiling.
func MEIBundle() config.AssumptionBundle {
	b := BaselineBundle()
	b.Name = "mei"
	b.SalesMonth1 = 10000
	b.Regime = tax.MEI
	b.Employees = nil
	return b
}

// LiquidityBundle returns a plan that sells only on credit, settles after 60
// days and pays suppliers in cash.
func LiquidityBundle() config.AssumptionBundle {
	b := BaselineBundle()
	b.Name = "liquidity"
	b.AvistaShare = 0
	b.ReceivableDays = 60
	b.InitialWorkingCapital = 0
	return b
}

// CaptadorBundle returns a plan selling 4 units a month with a captador gated
// at 5 units.
func CaptadorBundle() config.AssumptionBundle {
	b := BaselineBundle()
	b.Name = "captador"
	b.SalesMonth1 = 2000
	b.MonthlyGrowthRate = 0
	b.UnitTargetPerMonth = 4
	b.Captador = config.Captador{Enabled: true, PerAvistaSale: 20, PerInstallmentSale: 30, MinThreshold: 5}
	return b
}

// LowTicketBundle returns a plan with a ticket of 100 that cannot cover its
// fixed costs.
func LowTicketBundle() config.AssumptionBundle {
	b := BaselineBundle()
	b.Name = "low-ticket"
	b.SalesMonth1 = 5000
	b.MonthlyGrowthRate = 0
	b.AverageTicket = 100
	return b
}

// FindFinding returns the first finding with rule, or nil.
func FindFinding(list []findings.Finding, rule string) *findings.Finding {
	for i := range list {
		if list[i].RuleID == rule {
			return &list[i]
		}
	}
	return nil
}

// FindingsAt returns the findings with rule attached to month.
func FindingsAt(list []findings.Finding, rule string, month int) []findings.Finding {
	var out []findings.Finding
	for _, f := range list {
		if f.RuleID == rule && f.Month == month {
			out = append(out, f)
		}
	}
	return out
}

// Package output provides utilities for formatting and displaying plan results.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/otica-forecast/internal/forecast"
	"github.com/iwvelando/otica-forecast/internal/viability"
	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/format"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Write renders plan in the named format.
func Write(w io.Writer, outputFormat string, plan forecast.FinancialPlan) error {
	switch strings.ToLower(strings.TrimSpace(outputFormat)) {
	case constants.OutputFormatPretty, "":
		return PrettyFormat(w, plan)
	case constants.OutputFormatCSV:
		return CsvFormat(w, plan)
	case constants.OutputFormatJSON:
		return JSONFormat(w, plan)
	case constants.OutputFormatXLSX:
		return XLSXFormat(w, plan)
	}
	return fmt.Errorf("unknown output format %q", outputFormat)
}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, plan forecast.FinancialPlan) error {
	p := message.NewPrinter(language.BrazilianPortuguese)
	var b strings.Builder

	name := plan.Name
	if name == "" {
		name = plan.ID
	}
	_, _ = p.Fprintf(&b, "--- Plano %s ---\n", name)
	_, _ = p.Fprintf(&b, "Regime: %s | Status: %s (score %d)\n\n", plan.DRE.Regime, plan.Viability.Status, plan.Viability.Score)

	fmt.Fprintf(&b, "Mês     | Receita | Unidades | Impostos | CMV | Margem contrib. | Fixos | Resultado oper. | Saldo de caixa\n")
	fmt.Fprintf(&b, "___     | _______ | ________ | ________ | ___ | _______________ | _____ | _______________ | ______________\n")
	for i, m := range plan.DRE.Months {
		closing := 0.0
		if i < len(plan.CashFlow.Months) {
			closing = plan.CashFlow.Months[i].ClosingBalance
		}
		_, _ = p.Fprintf(&b, "%s | %s | %.1f | %s | %s | %s | %s | %s | %s\n",
			m.Label,
			format.Currency(m.GrossRevenue),
			m.Units,
			format.Currency(m.Taxes),
			format.Currency(m.CMV),
			format.Currency(m.ContributionMargin),
			format.Currency(m.FixedTotal),
			format.Currency(m.OperatingProfit),
			format.Currency(closing),
		)
	}
	a := plan.DRE.Annual
	fmt.Fprintf(&b, "Total   | %s | | %s | %s | %s | %s | %s |\n\n",
		format.Currency(a.GrossRevenue),
		format.Currency(a.Taxes),
		format.Currency(a.CMV),
		format.Currency(a.ContributionMargin),
		format.Currency(a.FixedTotal),
		format.Currency(a.OperatingProfit),
	)

	ind := plan.Viability.Indicators
	fmt.Fprintf(&b, "Indicadores\n")
	fmt.Fprintf(&b, "  Margem bruta: %s\n", format.Ratio(ind.MarginGross))
	fmt.Fprintf(&b, "  Margem operacional: %s\n", format.Ratio(ind.MarginOperating))
	fmt.Fprintf(&b, "  ROI anual: %s\n", format.Ratio(ind.ROIAnnual))
	fmt.Fprintf(&b, "  Payback: %s\n", months(p, ind.PaybackMonths))
	fmt.Fprintf(&b, "  VPL 5 anos: %s\n", format.Currency(ind.NPV5Y))
	fmt.Fprintf(&b, "  Ponto de equilíbrio: %s\n", format.Currency(float64(ind.BreakEvenRevenue)))
	fmt.Fprintf(&b, "  Margem de segurança: %s\n", ratio(ind.MarginOfSafety))
	if plan.DRE.Annual.FinancialExpenses > 0 {
		fmt.Fprintf(&b, "  Despesas financeiras: %s\n", format.Currency(plan.DRE.Annual.FinancialExpenses))
	}
	fmt.Fprintf(&b, "  Saldo mínimo: %s (mês %d)\n\n", format.Currency(plan.CashFlow.MinimumBalance), plan.CashFlow.MinimumMonth)

	fmt.Fprintf(&b, "Cenários\n")
	for _, s := range []viability.Scenario{
		plan.Viability.Sensitivity.Pessimistic,
		plan.Viability.Sensitivity.Realistic,
		plan.Viability.Sensitivity.Optimistic,
	} {
		fmt.Fprintf(&b, "  %-12s receita %s | resultado %s | margem %s\n",
			s.Name, format.Currency(s.Revenue), format.Currency(s.OperatingProfit), format.Ratio(s.MarginOperating))
	}

	if len(plan.Viability.Findings) > 0 {
		fmt.Fprintf(&b, "\nAlertas\n")
		for _, f := range plan.Viability.Findings {
			where := ""
			if f.Month > 0 {
				where = fmt.Sprintf(" (mês %d)", f.Month)
			}
			fmt.Fprintf(&b, "  [%s] %s%s: %s\n", f.Severity, f.RuleID, where, f.Message)
			if f.Action != "" {
				fmt.Fprintf(&b, "      -> %s\n", f.Action)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func months(p *message.Printer, n viability.Number) string {
	if !n.Defined() {
		return "n/d"
	}
	return p.Sprintf("%.1f meses", float64(n))
}

func ratio(n viability.Number) string {
	if !n.Defined() {
		return "n/d"
	}
	return format.Ratio(float64(n))
}

var csvHeader = []string{
	"month", "label", "gross_revenue", "units", "taxes", "cmv", "gross_profit",
	"commissions_sales", "commissions_captador", "acquirer_fees", "other_variable",
	"contribution_margin", "rent", "payroll_clt", "service_providers", "operating_expenses",
	"depreciation", "fixed_total", "operating_profit", "financial_expenses", "net_result",
	"total_inflow", "total_outflow", "net_month", "closing_balance",
}

// CsvFormat outputs the monthly DRE and cash flow side by side in
// comma-separated value format.
func CsvFormat(w io.Writer, plan forecast.FinancialPlan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, m := range plan.DRE.Months {
		var inflow, outflow, net, closing float64
		if i < len(plan.CashFlow.Months) {
			c := plan.CashFlow.Months[i]
			inflow, outflow, net, closing = c.TotalInflow, c.TotalOutflow, c.NetMonth, c.ClosingBalance
		}
		record := []string{strconv.Itoa(m.Month), m.Label}
		for _, v := range []float64{
			m.GrossRevenue, m.Units, m.Taxes, m.CMV, m.GrossProfit,
			m.CommissionsSales, m.CommissionsCaptador, m.AcquirerFees, m.OtherVariable,
			m.ContributionMargin, m.Rent, m.PayrollCLT, m.ServiceProviders, m.OperatingExpenses,
			m.Depreciation, m.FixedTotal, m.OperatingProfit, m.FinancialExpenses, m.NetResult,
			inflow, outflow, net, closing,
		} {
			record = append(record, strconv.FormatFloat(v, 'f', constants.DecimalPlaces, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSONFormat outputs the whole plan as indented JSON.
func JSONFormat(w io.Writer, plan forecast.FinancialPlan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

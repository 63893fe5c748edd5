package output

import (
	"fmt"
	"io"

	"github.com/iwvelando/otica-forecast/internal/dre"
	"github.com/iwvelando/otica-forecast/internal/forecast"
	"github.com/iwvelando/otica-forecast/internal/viability"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the spreadsheet export.
const (
	SheetDRE       = "DRE"
	SheetCashFlow  = "FluxoCaixa"
	SheetViability = "Viabilidade"
	SheetFindings  = "Alertas"
)

var dreHeader = []interface{}{
	"Mês", "Período", "Receita bruta", "Unidades", "Impostos", "CMV", "Lucro bruto",
	"Comissões", "Captador", "Taxas adquirente", "Outros variáveis", "Margem de contribuição",
	"Aluguel", "Folha CLT", "Prestadores", "Despesas operacionais", "Depreciação",
	"Custos fixos", "Resultado operacional", "Despesas financeiras", "Resultado líquido",
}

var cashFlowHeader = []interface{}{
	"Mês", "Período", "Saldo inicial", "Vendas à vista", "Recebíveis", "Entradas",
	"Fornecedores", "Folha", "Impostos", "Comissões", "Outros variáveis", "Custos fixos",
	"Financiamento", "Saídas", "Resultado do mês", "Saldo final",
}

// XLSXFormat writes the plan as a workbook with DRE, cash flow, viability and
// findings sheets.
func XLSXFormat(w io.Writer, plan forecast.FinancialPlan) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetDRE); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetCashFlow, SheetViability, SheetFindings} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	// DRE
	rows := [][]interface{}{dreHeader}
	for _, m := range plan.DRE.Months {
		rows = append(rows, dreRow(m.Month, m.Label, m))
	}
	rows = append(rows, dreRow(0, "Total", plan.DRE.Annual))
	if err := writeRows(f, SheetDRE, rows, bold); err != nil {
		return err
	}

	// Cash flow
	rows = [][]interface{}{cashFlowHeader}
	for _, m := range plan.CashFlow.Months {
		fixed := 0.0
		for _, v := range m.OutflowFixedItems {
			fixed += v
		}
		rows = append(rows, []interface{}{
			m.Month, m.Label, m.OpeningBalance, m.InflowCashSales, m.InflowReceivables, m.TotalInflow,
			m.OutflowSuppliers, m.OutflowPayroll, m.OutflowTaxes, m.OutflowCommissions, m.OutflowOtherVariable,
			fixed, m.OutflowFinancing, m.TotalOutflow, m.NetMonth, m.ClosingBalance,
		})
	}
	if err := writeRows(f, SheetCashFlow, rows, bold); err != nil {
		return err
	}

	// Viability
	v := plan.Viability
	ind := v.Indicators
	rows = [][]interface{}{
		{"Indicador", "Valor"},
		{"Status", string(v.Status)},
		{"Score", v.Score},
		{"Margem bruta", ind.MarginGross},
		{"Margem operacional", ind.MarginOperating},
		{"Margem EBITDA", ind.EBITDAMargin},
		{"Margem de contribuição", ind.ContributionMarginRatio},
		{"ROI anual", ind.ROIAnnual},
		{"Payback (meses)", cell(float64(ind.PaybackMonths), ind.PaybackMonths.Defined())},
		{"VPL 5 anos", ind.NPV5Y},
		{"Ponto de equilíbrio (receita)", cell(float64(ind.BreakEvenRevenue), ind.BreakEvenRevenue.Defined())},
		{"Ponto de equilíbrio (unidades)", cell(float64(ind.BreakEvenUnits), ind.BreakEvenUnits.Defined())},
		{"Margem de segurança", cell(float64(ind.MarginOfSafety), ind.MarginOfSafety.Defined())},
		{"Alavancagem operacional", cell(float64(ind.OperatingLeverage), ind.OperatingLeverage.Defined())},
		{},
		{"Cenário", "Receita", "Custos variáveis", "Custos fixos", "Resultado operacional", "Margem operacional"},
	}
	for _, s := range []viability.Scenario{v.Sensitivity.Pessimistic, v.Sensitivity.Realistic, v.Sensitivity.Optimistic} {
		rows = append(rows, []interface{}{s.Name, s.Revenue, s.VariableCosts, s.FixedCosts, s.OperatingProfit, s.MarginOperating})
	}
	if err := writeRows(f, SheetViability, rows, bold); err != nil {
		return err
	}

	// Findings
	rows = [][]interface{}{{"Regra", "Severidade", "Tipo", "Mês", "Mensagem", "Ação sugerida"}}
	for _, fd := range v.Findings {
		rows = append(rows, []interface{}{fd.RuleID, string(fd.Severity), string(fd.Kind), fd.Month, fd.Message, fd.Action})
	}
	if err := writeRows(f, SheetFindings, rows, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func dreRow(month int, label string, m dre.MonthlyStatement) []interface{} {
	var monthCell interface{} = month
	if month == 0 {
		monthCell = ""
	}
	return []interface{}{
		monthCell, label, m.GrossRevenue, m.Units, m.Taxes, m.CMV, m.GrossProfit,
		m.CommissionsSales, m.CommissionsCaptador, m.AcquirerFees, m.OtherVariable, m.ContributionMargin,
		m.Rent, m.PayrollCLT, m.ServiceProviders, m.OperatingExpenses, m.Depreciation,
		m.FixedTotal, m.OperatingProfit, m.FinancialExpenses, m.NetResult,
	}
}

// cell keeps undefined indicators out of numeric cells.
func cell(v float64, defined bool) interface{} {
	if !defined {
		return "n/d"
	}
	return v
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, addr, &r); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}
	return nil
}

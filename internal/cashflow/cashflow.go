// Package cashflow turns the monthly income statement into a cash-flow
// projection, rolling receivables and supplier payables across months.
package cashflow

import (
	"fmt"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/dre"
	"github.com/iwvelando/otica-forecast/pkg/finance"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/format"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// MonthlyCashFlow is the cash movement of one projected month.
type MonthlyCashFlow struct {
	Month int    `json:"month"`
	Label string `json:"label"`

	OpeningBalance    float64 `json:"opening_balance"`
	InflowCashSales   float64 `json:"inflow_cash_sales"`
	InflowReceivables float64 `json:"inflow_receivables"`
	TotalInflow       float64 `json:"total_inflow"`

	OutflowSuppliers     float64            `json:"outflow_suppliers"`
	OutflowPayroll       float64            `json:"outflow_payroll"`
	OutflowTaxes         float64            `json:"outflow_taxes"`
	OutflowCommissions   float64            `json:"outflow_commissions"`
	OutflowOtherVariable float64            `json:"outflow_other_variable"`
	OutflowFixedItems    map[string]float64 `json:"outflow_fixed_items"`
	OutflowDepreciation  float64            `json:"outflow_depreciation"`
	OutflowFinancing     float64            `json:"outflow_financing"`
	TotalOutflow         float64            `json:"total_outflow"`

	NetMonth       float64 `json:"net_month"`
	ClosingBalance float64 `json:"closing_balance"`
}

// Projection is the twelve-month cash flow with what remains to settle after
// the horizon.
type Projection struct {
	Months []MonthlyCashFlow `json:"months"`

	ReceivablesOutstanding float64 `json:"receivables_outstanding"`
	PayablesOutstanding    float64 `json:"payables_outstanding"`
	// CashDiscount is what paying suppliers on purchase saved.
	CashDiscount   float64 `json:"cash_discount"`
	ReceivableLag  int     `json:"receivable_lag_months"`
	MinimumBalance float64 `json:"minimum_balance"`
	MinimumMonth   int     `json:"minimum_month"`
}

// Engine computes cash-flow projections.
type Engine struct {
	logger *zap.Logger
}

// NewEngine returns a cash-flow engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Build projects cash month by month from the statement. Every negative
// closing balance yields a liquidity_breach finding for its month.
func (e *Engine) Build(b config.AssumptionBundle, st dre.Statement) (Projection, findings.List) {
	var list findings.List
	horizon := len(st.Months)
	p := Projection{ReceivableLag: finance.ReceivableLag(b.ReceivableDays)}

	receivables := finance.NewLedger(e.logger, "receivables", horizon)
	payables := finance.NewLedger(e.logger, "suppliers", horizon)

	avista := mathutil.PercentToRatio(b.AvistaShare)
	discount := mathutil.PercentToRatio(b.CashDiscountPct)
	shares := b.PaymentProfile.Shares
	if len(shares) == 0 {
		shares = finance.CashProfile().Shares
	}

	for _, m := range st.Months {
		credit := m.GrossRevenue*(1-avista) - m.AcquirerFees
		receivables.PostLagged(m.Month, p.ReceivableLag, credit)

		// The share paid in the purchase month earns the cash discount.
		payables.Post(m.Month, m.CMV, shares)
		if saved := mathutil.ApplyPercentage(m.CMV, shares[0]) * discount; saved != 0 {
			p.CashDiscount += saved
			payables.PostLagged(m.Month, 0, -saved)
		}
	}
	p.ReceivablesOutstanding = receivables.Outstanding()
	p.PayablesOutstanding = payables.Outstanding()

	balance := b.InitialWorkingCapital
	for i, m := range st.Months {
		cf := MonthlyCashFlow{Month: m.Month, Label: m.Label, OpeningBalance: balance}

		cf.InflowCashSales = m.GrossRevenue * avista
		cf.InflowReceivables = receivables.Due(m.Month)
		cf.TotalInflow = cf.InflowCashSales + cf.InflowReceivables

		cf.OutflowSuppliers = payables.Due(m.Month)
		cf.OutflowPayroll = m.PayrollCLT + m.ServiceProviders
		cf.OutflowTaxes = m.Taxes
		cf.OutflowCommissions = m.CommissionsSales + m.CommissionsCaptador
		cf.OutflowOtherVariable = m.OtherVariable
		cf.OutflowFixedItems = make(map[string]float64, len(m.OperatingExpensesDetail)+1)
		fixedItems := m.Rent
		cf.OutflowFixedItems["rent"] = m.Rent
		for _, name := range config.SortedKeys(m.OperatingExpensesDetail) {
			cf.OutflowFixedItems[name] += m.OperatingExpensesDetail[name]
			fixedItems += m.OperatingExpensesDetail[name]
		}
		if i < len(st.Financing) {
			cf.OutflowFinancing = st.Financing[i].Payment
		}
		cf.TotalOutflow = cf.OutflowSuppliers + cf.OutflowPayroll + cf.OutflowTaxes + cf.OutflowCommissions +
			cf.OutflowOtherVariable + fixedItems + cf.OutflowDepreciation + cf.OutflowFinancing

		cf.NetMonth = cf.TotalInflow - cf.TotalOutflow
		cf.ClosingBalance = cf.OpeningBalance + cf.NetMonth
		balance = cf.ClosingBalance

		if i == 0 || cf.ClosingBalance < p.MinimumBalance {
			p.MinimumBalance = cf.ClosingBalance
			p.MinimumMonth = cf.Month
		}
		if mathutil.IsNegative(cf.ClosingBalance) {
			e.logger.Warn(fmt.Sprintf("month %d closes at %.2f", cf.Month, cf.ClosingBalance),
				zap.String("op", "cashflow.Build"),
			)
			list.Addf(findings.RuleLiquidityBreach, findings.Critical, findings.KindLiquidityBreach, cf.Month,
				fmt.Sprintf("raise initial_working_capital by at least %s or shorten receivable_days",
					format.Currency(-cf.ClosingBalance)),
				"cash balance closes month %d (%s) at %s", cf.Month, cf.Label, format.Currency(cf.ClosingBalance))
		}

		e.logger.Debug(fmt.Sprintf("month %d: inflow %.2f, outflow %.2f, closing %.2f",
			cf.Month, cf.TotalInflow, cf.TotalOutflow, cf.ClosingBalance),
			zap.String("op", "cashflow.Build"),
		)
		p.Months = append(p.Months, cf)
	}

	return p, list
}

// Bridge explains the difference between the annual operating profit and the
// annual net cash movement.
type Bridge struct {
	OperatingProfit float64 `json:"operating_profit"`
	// Depreciation is added back: it is an expense without cash.
	Depreciation float64 `json:"depreciation"`
	// ReceivablesLag is the card revenue still to be settled (negative).
	ReceivablesLag float64 `json:"receivables_lag"`
	// SupplierDeferral is the CMV not yet paid plus the cash discount.
	SupplierDeferral float64 `json:"supplier_deferral"`
	// Financing is the loan installments paid (negative).
	Financing float64 `json:"financing"`
	NetCash   float64 `json:"net_cash"`
	Residual  float64 `json:"residual"`
}

// Reconcile builds the bridge between the statement and the cash flow.
// Residual is zero up to rounding when both come from the same plan.
func Reconcile(st dre.Statement, p Projection) Bridge {
	var br Bridge
	var cmv, suppliers, credit, received float64
	for _, m := range st.Months {
		br.OperatingProfit += m.OperatingProfit
		br.Depreciation += m.Depreciation
		cmv += m.CMV
	}
	for i, cf := range p.Months {
		br.NetCash += cf.NetMonth
		suppliers += cf.OutflowSuppliers
		received += cf.InflowReceivables
		br.Financing -= cf.OutflowFinancing
		if i < len(st.Months) {
			m := st.Months[i]
			credit += m.GrossRevenue - m.AcquirerFees - cf.InflowCashSales
		}
	}
	br.ReceivablesLag = received - credit
	br.SupplierDeferral = cmv - suppliers
	br.Residual = br.NetCash - (br.OperatingProfit + br.Depreciation + br.ReceivablesLag + br.SupplierDeferral + br.Financing)
	return br
}

package forecast

import (
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/viability"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/tax"
	"github.com/iwvelando/otica-forecast/pkg/testutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func TestEvaluateBaseline(t *testing.T) {
	plan := NewEngine(nil).Evaluate(testutil.BaselineBundle())

	require.Len(t, plan.DRE.Months, 12)
	require.Len(t, plan.CashFlow.Months, 12)
	assert.Equal(t, "baseline", plan.Name)
	assert.NotEmpty(t, plan.ID)
	assert.InDelta(t, 1695, plan.DRE.Months[0].Taxes, 1e-6)
	assert.Greater(t, plan.DRE.Months[0].OperatingProfit, 0.0)
	assert.InDelta(t, 0, plan.Bridge.Residual, 1e-6)
	assert.Equal(t, viability.Good, plan.Viability.Status)
	assert.Equal(t, plan.Viability.Findings, plan.Findings())
}

func TestEvaluateWithoutTicket(t *testing.T) {
	b := testutil.BaselineBundle()
	b.AverageTicket = 0
	b.CMVPct = 0
	b.DirectMaterialCostPerUnit = 150
	plan := NewEngine(nil).Evaluate(b)

	assert.Equal(t, 0.0, plan.DRE.Annual.CMV)
	f := testutil.FindingsAt(plan.Findings(), findings.RuleInsufficientInput, 0)
	require.Len(t, f, 1)
	assert.Equal(t, findings.Critical, f[0].Severity)
	assert.NotContains(t, []viability.Status{viability.Excellent, viability.Good}, plan.Viability.Status)

	b.UnitTargetPerMonth = 60
	plan = NewEngine(nil).Evaluate(b)
	assert.InDelta(t, 60*150, plan.DRE.Months[0].CMV, 1e-9)
	assert.InDelta(t, 6822.655556, plan.DRE.Months[0].OperatingProfit, 1e-6)
	assert.True(t, plan.Findings().Has(findings.RuleInsufficientInput))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	engine := NewEngine(nil)
	bundles := []config.AssumptionBundle{
		testutil.BaselineBundle(),
		testutil.MEIBundle(),
		testutil.LiquidityBundle(),
		testutil.CaptadorBundle(),
		testutil.LowTicketBundle(),
	}
	for _, b := range bundles {
		t.Run(b.Name, func(t *testing.T) {
			first, err := json.Marshal(engine.Evaluate(b))
			require.NoError(t, err)
			second, err := json.Marshal(engine.Evaluate(b))
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))

			third, err := json.Marshal(NewEngine(zap.NewNop()).Evaluate(b.Clone()))
			require.NoError(t, err)
			assert.Equal(t, string(first), string(third))
		})
	}
}

func TestPlanID(t *testing.T) {
	a := NewEngine(nil).Evaluate(testutil.BaselineBundle())
	b := NewEngine(nil).Evaluate(testutil.BaselineBundle())
	assert.Equal(t, a.ID, b.ID)

	changed := testutil.BaselineBundle()
	changed.Rent = 3600
	c := NewEngine(nil).Evaluate(changed)
	assert.NotEqual(t, a.ID, c.ID)

	// Ids are taken after sanitising, so equivalent inputs share one.
	spelled := testutil.BaselineBundle()
	spelled.Regime = "simples"
	assert.Equal(t, a.ID, NewEngine(nil).Evaluate(spelled).ID)
}

func TestSeedScenarios(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("A baseline", func(t *testing.T) {
		plan := engine.Evaluate(testutil.BaselineBundle())
		assert.Greater(t, plan.DRE.Months[0].OperatingProfit, 0.0)
		assert.Less(t, float64(plan.Viability.Indicators.BreakEvenRevenue), 360000.0)
	})

	t.Run("B MEI limit", func(t *testing.T) {
		plan := engine.Evaluate(testutil.MEIBundle())
		f := testutil.FindFinding(plan.Findings(), findings.RuleMEILimitExceeded)
		require.NotNil(t, f)
		assert.Equal(t, findings.Critical, f.Severity)
		for _, m := range plan.DRE.Months {
			assert.Equal(t, 76.90, m.Taxes)
		}
		assert.Contains(t, []viability.Status{viability.Fair, viability.Critical}, plan.Viability.Status)
	})

	t.Run("C liquidity", func(t *testing.T) {
		plan := engine.Evaluate(testutil.LiquidityBundle())
		m := plan.CashFlow.Months[0]
		assert.Zero(t, m.InflowReceivables)
		assert.Greater(t, m.OutflowSuppliers, 0.0)
		assert.Less(t, m.ClosingBalance, m.OpeningBalance)
		f := testutil.FindingsAt(plan.Findings(), findings.RuleLiquidityBreach, 1)
		require.Len(t, f, 1)
		assert.Equal(t, findings.Critical, f[0].Severity)
	})

	t.Run("D regime comparison", func(t *testing.T) {
		cmp, err := tax.NewCalculator(nil).CompareRegimes(600000, tax.AnnexI)
		require.NoError(t, err)
		assert.Equal(t, tax.Simples, cmp.Better)
		assert.InDelta(t, 43140, cmp.Simples.AnnualTax, 1e-6)
		assert.InDelta(t, 43788, cmp.Presumido.AnnualTax, 1e-6)
		assert.InDelta(t, 648, cmp.Saving, 1e-6)
	})

	t.Run("E captador gating", func(t *testing.T) {
		plan := engine.Evaluate(testutil.CaptadorBundle())
		for _, m := range plan.DRE.Months {
			assert.Zero(t, m.CommissionsCaptador)
			assert.Contains(t, m.CaptadorCalcTrace, "units 4 < threshold 5")
		}
	})

	t.Run("F ticket coherence", func(t *testing.T) {
		plan := engine.Evaluate(testutil.LowTicketBundle())
		low := testutil.FindFinding(plan.Findings(), findings.RuleTicketTooLow)
		require.NotNil(t, low)
		assert.Equal(t, findings.Critical, low.Severity)
		require.NotNil(t, testutil.FindFinding(plan.Findings(), findings.RuleBelowBreakEven))
		assert.Equal(t, viability.Critical, plan.Viability.Status)
	})
}

func TestEvaluateInvalidPlan(t *testing.T) {
	conf, err := config.LoadConfiguration("../../test/test_plan_invalid.yaml")
	require.NoError(t, err)

	plan := NewEngine(nil).Evaluate(conf.AssumptionBundle)
	require.Len(t, plan.DRE.Months, 12)
	assert.True(t, plan.Findings().Has("invalid_regime"))
	assert.True(t, plan.Findings().Has(findings.RuleInvalidPaymentProfile))
	assert.False(t, plan.Findings().Has(findings.RuleInternalError))
	assert.NotEqual(t, viability.Excellent, plan.Viability.Status)
	assert.NotEqual(t, viability.Good, plan.Viability.Status)

	// Findings come most severe first.
	seenWarning := false
	for _, f := range plan.Findings() {
		if f.Severity == findings.Warning {
			seenWarning = true
		}
		if f.Severity == findings.Critical {
			assert.False(t, seenWarning, "critical %s listed after a warning", f.RuleID)
		}
	}
}

func TestEvaluateTestPlan(t *testing.T) {
	conf, err := config.LoadConfiguration("../../test/test_plan.yaml")
	require.NoError(t, err)

	plan := NewEngine(nil).Evaluate(conf.AssumptionBundle)
	assert.Equal(t, "Ótica Centro", plan.Name)
	assert.False(t, plan.Findings().HasSeverity(findings.Critical), "findings: %v", plan.Findings())
	require.Len(t, plan.DRE.Financing, 12)
	assert.Greater(t, plan.DRE.Annual.FinancialExpenses, 0.0)
	assert.Greater(t, plan.CashFlow.Months[0].OutflowFinancing, 0.0)
	assert.InDelta(t, 0, plan.Bridge.Residual, 1e-6)
}

func TestInternalErrorIsRecovered(t *testing.T) {
	engine := NewEngine(nil)
	b := testutil.BaselineBundle()
	b.Regime = "LucroReal" // bypasses Sanitize, so the tax stage fails
	plan := FinancialPlan{Bundle: b, ID: PlanID(nil, b)}

	require.NotPanics(t, func() { engine.compute(&plan, nil) })

	f := testutil.FindFinding(plan.Viability.Findings, findings.RuleInternalError)
	require.NotNil(t, f)
	assert.Equal(t, findings.Critical, f.Severity)
	assert.Equal(t, findings.KindInternal, f.Kind)
	assert.Contains(t, f.Message, internalErrorID(plan.ID))
	assert.True(t, strings.HasPrefix(internalErrorID(plan.ID), "internal_error-"))
	assert.Equal(t, viability.Critical, plan.Viability.Status)
	assert.Equal(t, internalErrorID(plan.ID), internalErrorID(PlanID(nil, b)))
}

func TestEvaluatePerformance(t *testing.T) {
	engine := NewEngine(nil)
	b := testutil.BaselineBundle()
	b.TotalInvestment = 120000
	b.SeasonalMonths = []string{"maio", "dezembro"}
	b.SeasonalUplift = 30

	start := time.Now()
	const runs = 20
	for i := 0; i < runs; i++ {
		engine.Evaluate(b)
	}
	perRun := time.Since(start) / runs
	assert.Less(t, perRun, 100*time.Millisecond)
}

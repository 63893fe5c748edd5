// Package forecast evaluates a plan: it runs the statement, cash-flow and
// viability engines in order and assembles the financial plan.
package forecast

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/iwvelando/otica-forecast/internal/cashflow"
	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/dre"
	"github.com/iwvelando/otica-forecast/internal/viability"
	"github.com/iwvelando/otica-forecast/pkg/findings"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FinancialPlan is everything derived from one assumption bundle.
type FinancialPlan struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name,omitempty"`
	Bundle    config.AssumptionBundle `json:"bundle"`
	DRE       dre.Statement           `json:"dre"`
	CashFlow  cashflow.Projection     `json:"cashflow"`
	Bridge    cashflow.Bridge         `json:"bridge"`
	Viability viability.Report        `json:"viability"`
}

// Findings returns the findings of the plan, most severe first.
func (p FinancialPlan) Findings() findings.List {
	return p.Viability.Findings
}

// Engine evaluates plans. It holds no state between evaluations and is safe
// for concurrent use.
type Engine struct {
	logger    *zap.Logger
	dre       *dre.Engine
	cashflow  *cashflow.Engine
	viability *viability.Evaluator
}

// NewEngine returns an evaluation engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:    logger,
		dre:       dre.NewEngine(logger),
		cashflow:  cashflow.NewEngine(logger),
		viability: viability.NewEvaluator(logger),
	}
}

// Evaluate computes the plan of a bundle. It never fails on user data: input
// problems and even engine bugs come back as findings next to a best-effort
// plan.
func (e *Engine) Evaluate(bundle config.AssumptionBundle) FinancialPlan {
	clean, list := bundle.Sanitize(e.logger)
	plan := FinancialPlan{Bundle: clean, Name: clean.Name, ID: PlanID(e.logger, clean)}
	e.compute(&plan, list)

	e.logger.Debug(fmt.Sprintf("plan %s evaluated: status %s, %d findings",
		plan.ID, plan.Viability.Status, len(plan.Viability.Findings)),
		zap.String("op", "forecast.Evaluate"),
	)
	return plan
}

// compute runs the engines in their fixed order over plan.Bundle. A panic in
// any stage becomes an internal_error finding; the stages already completed
// stay on the plan.
func (e *Engine) compute(plan *FinancialPlan, list findings.List) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		err = errors.WithStack(err)
		id := internalErrorID(plan.ID)
		e.logger.Error(fmt.Sprintf("evaluation of plan %s aborted (%s): %+v", plan.ID, id, err),
			zap.String("op", "forecast.Evaluate"),
		)
		list.Add(findings.Finding{
			RuleID:   findings.RuleInternalError,
			Severity: findings.Critical,
			Kind:     findings.KindInternal,
			Message:  fmt.Sprintf("internal error %s: %v", id, err),
			Action:   "report the error identifier " + id + "; the figures shown are incomplete",
		})
		plan.Viability.Findings = list.Sorted()
		plan.Viability.Status = viability.Critical
		plan.Viability.Score = 0
	}()

	b := plan.Bundle
	var found findings.List
	plan.DRE, found = e.dre.Build(b)
	list.Extend(found)

	plan.CashFlow, found = e.cashflow.Build(b, plan.DRE)
	list.Extend(found)
	plan.Bridge = cashflow.Reconcile(plan.DRE, plan.CashFlow)
	if !mathutil.IsZero(plan.Bridge.Residual) {
		e.logger.Warn(fmt.Sprintf("plan %s: profit-to-cash bridge leaves a residual of %.2f", plan.ID, plan.Bridge.Residual),
			zap.String("op", "forecast.Evaluate"),
		)
	}

	plan.Viability = e.viability.Evaluate(b, plan.DRE, plan.CashFlow, list)
}

// PlanID derives a stable identifier from the sanitised bundle, so the same
// inputs always produce the same id.
func PlanID(logger *zap.Logger, b config.AssumptionBundle) string {
	data, err := b.CanonicalJSON()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("canonical form of plan %q failed: %v", b.Name, err),
				zap.String("op", "forecast.PlanID"),
			)
		}
		data = []byte(b.Name)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, data).String()
}

func internalErrorID(planID string) string {
	return "internal_error-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(planID)).String()[:8]
}

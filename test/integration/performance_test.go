package integration

import (
	"testing"
	"time"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/forecast"
	"go.uber.org/zap"
)

// TestPerformance tests performance characteristics of load plus evaluate.
func TestPerformance(t *testing.T) {
	logger := zap.NewNop()

	start := time.Now()
	conf, err := config.LoadConfiguration(testPlan)
	if err != nil {
		t.Fatalf("LoadConfiguration failed: %v", err)
	}
	loadTime := time.Since(start)

	start = time.Now()
	plan := forecast.NewEngine(logger).Evaluate(conf.AssumptionBundle)
	evalTime := time.Since(start)

	t.Logf("Performance metrics:")
	t.Logf("  Load plan: %v", loadTime)
	t.Logf("  Evaluate: %v", evalTime)

	if evalTime > 100*time.Millisecond {
		t.Errorf("Evaluation time %v exceeds 100ms threshold", evalTime)
	}
	if len(plan.DRE.Months) != 12 {
		t.Errorf("Expected 12 months, got %d", len(plan.DRE.Months))
	}
}

// TestRepeatedEvaluation runs many evaluations on one engine.
func TestRepeatedEvaluation(t *testing.T) {
	conf, err := config.LoadConfiguration(testPlan)
	if err != nil {
		t.Fatalf("LoadConfiguration failed: %v", err)
	}
	engine := forecast.NewEngine(zap.NewNop())
	first := engine.Evaluate(conf.AssumptionBundle)
	for i := 0; i < 50; i++ {
		plan := engine.Evaluate(conf.AssumptionBundle)
		if plan.ID != first.ID || plan.Viability.Score != first.Viability.Score {
			t.Fatalf("iteration %d diverged", i)
		}
	}
}

func BenchmarkEvaluate(b *testing.B) {
	conf, err := config.LoadConfiguration(testPlan)
	if err != nil {
		b.Fatalf("LoadConfiguration failed: %v", err)
	}
	engine := forecast.NewEngine(zap.NewNop())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Evaluate(conf.AssumptionBundle)
	}
}

package adapters

import (
	"math"
	"testing"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/pricing"
)

func TestLaborRates(t *testing.T) {
	rates := LaborRates(config.AssumptionBundle{})
	if rates != labor.DefaultRates() {
		t.Errorf("LaborRates() = %+v, expected the default rates", rates)
	}

	rates = LaborRates(config.AssumptionBundle{FlatLoadingPct: 68})
	if rates.FlatLoadingPct != 68 {
		t.Errorf("LaborRates().FlatLoadingPct = %v, expected 68", rates.FlatLoadingPct)
	}

	calc := NewLaborCalculator(nil, config.AssumptionBundle{FlatLoadingPct: 68})
	cost := calc.CostForEmployee(labor.Employee{Name: "Ana", BaseSalary: 2000, ContractKind: labor.CLT})
	if math.Abs(cost.TotalMonthlyCost-3360) > 1e-9 {
		t.Errorf("TotalMonthlyCost = %v, expected 3360", cost.TotalMonthlyCost)
	}
}

func TestCatalog(t *testing.T) {
	b := config.AssumptionBundle{
		Catalog: pricing.Catalog{Lenses: map[string]float64{"Visao Simples": 95, "lente_solar": 60}},
	}
	catalog := Catalog(b)
	if catalog.Lenses["visao_simples"] != 95 {
		t.Errorf("Catalog() visao_simples = %v, expected 95", catalog.Lenses["visao_simples"])
	}
	if catalog.Lenses["lente_solar"] != 60 {
		t.Errorf("Catalog() lente_solar = %v, expected 60", catalog.Lenses["lente_solar"])
	}
	if catalog.Frames["premium"] != pricing.DefaultCatalog().Frames["premium"] {
		t.Errorf("Catalog() lost the reference frames")
	}
}

func TestUnitDirectCost(t *testing.T) {
	model := NewPricingModel(nil, config.AssumptionBundle{})

	tests := []struct {
		name     string
		bundle   config.AssumptionBundle
		expected float64
		source   string
		wantErr  bool
	}{
		{
			name:     "Explicit material cost wins",
			bundle:   config.AssumptionBundle{DirectMaterialCostPerUnit: 150, CMVPct: 45, AverageTicket: 500},
			expected: 150,
			source:   CMVSourceDirect,
		},
		{
			name: "Catalog selection",
			bundle: config.AssumptionBundle{
				Product: pricing.Selection{Lens: "multifocal", Frame: "premium", Treatments: []string{"antirreflexo"}},
			},
			expected: 250 + 200 + 8 + 35,
			source:   CMVSourceCatalog,
		},
		{
			name:     "Percent of ticket",
			bundle:   config.AssumptionBundle{CMVPct: 45, AverageTicket: 500},
			expected: 225,
			source:   CMVSourcePercent,
		},
		{
			name:     "Nothing known",
			bundle:   config.AssumptionBundle{AverageTicket: 500},
			expected: 0,
			source:   CMVSourceNone,
		},
		{
			name:    "Unknown product",
			bundle:  config.AssumptionBundle{Product: pricing.Selection{Lens: "cristal", Frame: "premium"}},
			source:  CMVSourceNone,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, err := UnitDirectCost(model, tt.bundle)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnitDirectCost() error = %v, wantErr %v", err, tt.wantErr)
			}
			if source != tt.source {
				t.Errorf("UnitDirectCost() source = %s, expected %s", source, tt.source)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("UnitDirectCost() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

package pricing

import (
	"math"
	"strings"
	"testing"
)

const tolerance = 0.0001

func TestUnitCost(t *testing.T) {
	model := NewModel(nil, DefaultCatalog())

	tests := []struct {
		name       string
		lens       string
		frame      string
		treatments []string
		expected   float64
		wantErr    string
	}{
		{"Single vision economy", "visao_simples", "economica", nil, 128, ""},
		{"Progressive premium with treatments", "multifocal", "premium", []string{"antirreflexo", "filtro_azul"}, 538, ""},
		{"Keys are normalized", " Visao Simples ", "INTERMEDIARIA", []string{"alto-indice", ""}, 238, ""},
		{"Unknown lens", "trifocal", "economica", nil, 0, "unknown lens category"},
		{"Unknown frame", "bifocal", "madeira", nil, 0, "unknown frame category"},
		{"Unknown treatment", "bifocal", "grife", []string{"espelhado"}, 0, "unknown treatment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, err := model.UnitCost(tt.lens, tt.frame, tt.treatments)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("UnitCost() error = %v, expected to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnitCost() error = %v", err)
			}
			if math.Abs(uc.Direct-tt.expected) > tolerance {
				t.Errorf("UnitCost().Direct = %.2f, expected %.2f", uc.Direct, tt.expected)
			}
			if math.Abs(uc.LensCost+uc.FrameCost+uc.AccessoriesCost+uc.TreatmentCost-uc.Direct) > tolerance {
				t.Errorf("UnitCost() components do not add up: %+v", uc)
			}
		})
	}
}

func TestCatalogMerge(t *testing.T) {
	merged := DefaultCatalog().Merge(Catalog{
		Lenses:      map[string]float64{"Multifocal": 300, "trifocal": 400},
		Accessories: 12,
	})
	if merged.Lenses["multifocal"] != 300 || merged.Lenses["trifocal"] != 400 || merged.Lenses["bifocal"] != 120 {
		t.Errorf("Merge() lenses = %v", merged.Lenses)
	}
	if merged.Accessories != 12 {
		t.Errorf("Merge() accessories = %.2f, expected 12", merged.Accessories)
	}
	if DefaultCatalog().Lenses["multifocal"] != 250 {
		t.Errorf("Merge() modified the default catalog")
	}
}

func TestAllocationPerUnit(t *testing.T) {
	model := NewModel(nil, DefaultCatalog())
	fixed := map[string]float64{"rent": 3500, "utilities": 500, "payroll": 4000}

	ab := model.AllocationPerUnit(fixed, 60)
	if ab.Fallback() {
		t.Errorf("unexpected allocation fallback")
	}
	if math.Abs(ab.FixedTotal-8000) > tolerance {
		t.Errorf("FixedTotal = %.2f, expected 8000", ab.FixedTotal)
	}
	if math.Abs(ab.PerUnit-133.333333) > 0.0001 {
		t.Errorf("PerUnit = %.6f, expected 133.333333", ab.PerUnit)
	}
	if math.Abs(ab.PerItem["rent"]-58.333333) > 0.0001 {
		t.Errorf("PerItem[rent] = %.6f", ab.PerItem["rent"])
	}
	if math.Abs(ab.PerLine[LineService]-40) > 0.0001 || math.Abs(ab.PerLine[LineAccessory]-13.333333) > 0.0001 {
		t.Errorf("PerLine = %v", ab.PerLine)
	}
}

func TestAllocationFallback(t *testing.T) {
	model := NewModel(nil, DefaultCatalog())
	for _, target := range []int{0, -5} {
		ab := model.AllocationPerUnit(map[string]float64{"rent": 3500}, target)
		if !ab.Fallback() {
			t.Errorf("AllocationPerUnit(%d) expected fallback flag", target)
		}
		if ab.Units != 1 || ab.PerUnit != 3500 {
			t.Errorf("AllocationPerUnit(%d) = %+v", target, ab)
		}
	}
}

func TestQuote(t *testing.T) {
	model := NewModel(nil, DefaultCatalog())
	ab := model.AllocationPerUnit(map[string]float64{"rent": 6000}, 60)

	q := model.Quote(LineProduct, 200, ab, 50, []Tier{{Name: "balcao", MarginPct: 80}, {Name: "promo", MarginPct: 20}})
	if math.Abs(q.TotalUnitCost-300) > tolerance {
		t.Errorf("TotalUnitCost = %.2f, expected 300", q.TotalUnitCost)
	}
	if math.Abs(q.SuggestedPrice-450) > tolerance {
		t.Errorf("SuggestedPrice = %.2f, expected 450", q.SuggestedPrice)
	}
	if len(q.Tiers) != 2 || math.Abs(q.Tiers[0].Price-540) > tolerance || math.Abs(q.Tiers[1].Price-360) > tolerance {
		t.Errorf("Tiers = %+v", q.Tiers)
	}

	service := model.Quote(LineService, 50, ab, 100, nil)
	if math.Abs(service.AllocatedFixed-30) > tolerance || math.Abs(service.SuggestedPrice-160) > tolerance {
		t.Errorf("service quote = %+v", service)
	}

	unknown := model.Quote(Line("lab"), 0, ab, 0, nil)
	if unknown.AllocatedFixed != ab.PerUnit {
		t.Errorf("unknown line should carry the full allocation, got %.2f", unknown.AllocatedFixed)
	}
}

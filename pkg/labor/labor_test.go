package labor

import (
	"math"
	"testing"
)

const tolerance = 0.0001

func TestParseContractKind(t *testing.T) {
	tests := []struct {
		input    string
		expected ContractKind
		wantErr  bool
	}{
		{"CLT", CLT, false},
		{"", CLT, false},
		{"mei", MEI, false},
		{"prestador", ServiceProvider, false},
		{"ServiceProvider", ServiceProvider, false},
		{"estagiario", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseContractKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseContractKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("ParseContractKind(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCostForEmployeeCLT(t *testing.T) {
	calc := NewCalculator(nil, DefaultRates())
	cost := calc.CostForEmployee(Employee{Name: "Ana", BaseSalary: 2000, ContractKind: CLT})

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"INSSEmployer", cost.INSSEmployer, 400},
		{"FGTS", cost.FGTS, 160},
		{"SistemaS", cost.SistemaS, 71.6},
		{"Accident", cost.Accident, 20},
		{"Education", cost.Education, 50},
		{"Sebrae", cost.Sebrae, 12},
		{"VacationProv", cost.VacationProv, 222.222222},
		{"ThirteenthProv", cost.ThirteenthProv, 166.666667},
		{"OtherAdditions", cost.OtherAdditions, 138.755556},
		{"TotalMonthlyCost", cost.TotalMonthlyCost, 3241.244444},
		{"LoadingPercent", cost.LoadingPercent, 62.062222},
		{"EmployeeINSS", cost.EmployeeINSS, 157.23},
		{"IRRF", cost.IRRF, 0},
		{"NetSalary", cost.NetSalary, 1842.77},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.expected) > 0.001 {
			t.Errorf("CostForEmployee().%s = %.6f, expected %.6f", c.name, c.got, c.expected)
		}
	}
	if len(cost.Flags) != 0 {
		t.Errorf("CostForEmployee().Flags = %v, expected none", cost.Flags)
	}
}

func TestLoadingBand(t *testing.T) {
	calc := NewCalculator(nil, DefaultRates())
	for _, base := range []float64{1518, 2000, 3500, 8000, 15000} {
		cost := calc.CostForEmployee(Employee{Name: "x", BaseSalary: base, ContractKind: CLT})
		ratio := cost.TotalMonthlyCost / base
		if ratio < 1.55 || ratio > 1.75 {
			t.Errorf("total/base for %.2f = %.4f, expected within [1.55, 1.75]", base, ratio)
		}
	}
}

func TestFlatLoading(t *testing.T) {
	rates := DefaultRates()
	rates.FlatLoadingPct = 68
	calc := NewCalculator(nil, rates)
	cost := calc.CostForEmployee(Employee{Name: "x", BaseSalary: 2000, ContractKind: CLT})
	if math.Abs(cost.TotalMonthlyCost-3360) > tolerance {
		t.Errorf("TotalMonthlyCost = %.4f, expected 3360", cost.TotalMonthlyCost)
	}
	if math.Abs(cost.LoadingPercent-68) > tolerance {
		t.Errorf("LoadingPercent = %.4f, expected 68", cost.LoadingPercent)
	}
}

func TestBenefits(t *testing.T) {
	calc := NewCalculator(nil, DefaultRates())
	cost := calc.CostForEmployee(Employee{
		Name:         "x",
		BaseSalary:   2000,
		ContractKind: CLT,
		Benefits:     Benefits{Transport: 300, MealVoucher: 500},
	})
	if math.Abs(cost.Benefits-680) > tolerance {
		t.Errorf("Benefits = %.4f, expected 680", cost.Benefits)
	}
	if math.Abs(cost.TotalWithBenefits-(cost.TotalMonthlyCost+680)) > tolerance {
		t.Errorf("TotalWithBenefits = %.4f", cost.TotalWithBenefits)
	}

	// Transport below the 6% deduction costs nothing.
	cheap := calc.CostForEmployee(Employee{Name: "y", BaseSalary: 2000, Benefits: Benefits{Transport: 100}})
	if cheap.Benefits != 0 {
		t.Errorf("Benefits = %.4f, expected 0", cheap.Benefits)
	}
}

func TestCostForEmployeeEdgeCases(t *testing.T) {
	calc := NewCalculator(nil, DefaultRates())

	tests := []struct {
		name          string
		employee      Employee
		expectedTotal float64
		expectedFlag  string
	}{
		{"MEI gross only", Employee{Name: "m", BaseSalary: 3000, ContractKind: MEI, Benefits: Benefits{MealVoucher: 400}}, 3000, ""},
		{"Provider below minimum is fine", Employee{Name: "p", BaseSalary: 800, ContractKind: ServiceProvider}, 800, ""},
		{"Zero salary", Employee{Name: "z", BaseSalary: 0, ContractKind: CLT}, 0, FlagInvalidSalary},
		{"Negative salary", Employee{Name: "n", BaseSalary: -10, ContractKind: MEI}, 0, FlagInvalidSalary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := calc.CostForEmployee(tt.employee)
			if math.Abs(cost.TotalWithBenefits-tt.expectedTotal) > tolerance {
				t.Errorf("TotalWithBenefits = %.4f, expected %.4f", cost.TotalWithBenefits, tt.expectedTotal)
			}
			if tt.expectedFlag == "" && len(cost.Flags) > 0 {
				t.Errorf("Flags = %v, expected none", cost.Flags)
			}
			if tt.expectedFlag != "" && !cost.HasFlag(tt.expectedFlag) {
				t.Errorf("Flags = %v, expected %s", cost.Flags, tt.expectedFlag)
			}
		})
	}

	below := calc.CostForEmployee(Employee{Name: "b", BaseSalary: 1200, ContractKind: CLT})
	if !below.HasFlag(FlagBelowMinimum) {
		t.Errorf("expected below_minimum flag, got %v", below.Flags)
	}
	if below.TotalMonthlyCost <= 1200 {
		t.Errorf("below-minimum salary should still be charged, got %.2f", below.TotalMonthlyCost)
	}
}

func TestAggregate(t *testing.T) {
	calc := NewCalculator(nil, DefaultRates())
	agg := calc.Aggregate([]Employee{
		{Name: "a", BaseSalary: 2000, ContractKind: CLT, CommissionPct: 1},
		{Name: "b", BaseSalary: 1500, ContractKind: MEI, CommissionPct: 0.5},
		{Name: "c", BaseSalary: 0, ContractKind: CLT},
	})

	if agg.Headcount != 2 {
		t.Errorf("Headcount = %d, expected 2", agg.Headcount)
	}
	if len(agg.Costs) != 3 {
		t.Errorf("len(Costs) = %d, expected 3", len(agg.Costs))
	}
	if math.Abs(agg.CLTTotal-3241.244444) > 0.001 {
		t.Errorf("CLTTotal = %.6f", agg.CLTTotal)
	}
	if math.Abs(agg.ProviderTotal-1500) > tolerance {
		t.Errorf("ProviderTotal = %.6f", agg.ProviderTotal)
	}
	if math.Abs(agg.GrandTotal-4741.244444) > 0.001 {
		t.Errorf("GrandTotal = %.6f", agg.GrandTotal)
	}
	if math.Abs(agg.WeightedLoadingPercent-35.464127) > 0.001 {
		t.Errorf("WeightedLoadingPercent = %.6f", agg.WeightedLoadingPercent)
	}
	if math.Abs(agg.CommissionPct-1.5) > tolerance {
		t.Errorf("CommissionPct = %.4f, expected 1.5", agg.CommissionPct)
	}
	if agg.ByKind[CLT].Count != 1 || agg.ByKind[MEI].Count != 1 {
		t.Errorf("ByKind = %+v", agg.ByKind)
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewCalculator(nil, DefaultRates()).Aggregate(nil)
	if agg.GrandTotal != 0 || agg.Headcount != 0 || agg.WeightedLoadingPercent != 0 {
		t.Errorf("Aggregate(nil) = %+v, expected zero totals", agg)
	}
}

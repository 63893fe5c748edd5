package labor

import (
	"math"
	"testing"
)

func TestEmployeeINSS(t *testing.T) {
	tests := []struct {
		name     string
		salary   float64
		expected float64
	}{
		{"Zero", 0, 0},
		{"First bracket", 1518, 113.85},
		{"Second bracket", 2000, 157.23},
		{"Third bracket", 3000, 253.4136},
		{"Fourth bracket", 5000, 509.5970},
		{"At ceiling", 8157.41, 951.6344},
		{"Above ceiling is capped", 20000, 951.6344},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := EmployeeINSS(tt.salary); math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("EmployeeINSS(%.2f) = %.4f, expected %.4f", tt.salary, result, tt.expected)
			}
		})
	}
}

func TestIRRF(t *testing.T) {
	tests := []struct {
		name       string
		salary     float64
		dependents int
		expected   float64
	}{
		{"Exempt", 2000, 0, 0},
		{"Exempt after simplified discount", 3000, 0, 0},
		{"Simplified discount", 5000, 0, 312.89},
		{"Legal deductions with dependents", 5000, 2, 249.535},
		{"Top bracket", 10000, 0, 0.275*(10000-951.6344) - 908.73},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IRRF(tt.salary, EmployeeINSS(tt.salary), tt.dependents)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("IRRF(%.2f, %d) = %.4f, expected %.4f", tt.salary, tt.dependents, result, tt.expected)
			}
		})
	}
}

func TestINSSCeiling(t *testing.T) {
	if INSSCeiling() != 8157.41 {
		t.Errorf("INSSCeiling() = %.2f, expected 8157.41", INSSCeiling())
	}
	if above, at := EmployeeINSS(20000), EmployeeINSS(INSSCeiling()); math.Abs(above-at) > 1e-9 {
		t.Errorf("EmployeeINSS above the ceiling = %.4f, expected the ceiling amount %.4f", above, at)
	}
}

package labor

import "github.com/iwvelando/otica-forecast/pkg/mathutil"

// bracket is a slice of a progressive table: income up to Upper is taxed at Rate
// (percent), with Deduction subtracted for the flat-deduction style tables.
type bracket struct {
	Upper     float64
	Rate      float64
	Deduction float64
}

// 2025 employee INSS table, applied progressively on each increment.
var inssBrackets = []bracket{
	{Upper: 1518.00, Rate: 7.5},
	{Upper: 2793.88, Rate: 9.0},
	{Upper: 4190.83, Rate: 12.0},
	{Upper: 8157.41, Rate: 14.0},
}

// 2025 IRRF monthly table (from May 2025).
var irrfBrackets = []bracket{
	{Upper: 2428.80, Rate: 0},
	{Upper: 2826.65, Rate: 7.5, Deduction: 182.16},
	{Upper: 3751.05, Rate: 15.0, Deduction: 394.16},
	{Upper: 4664.68, Rate: 22.5, Deduction: 675.49},
	{Upper: 0, Rate: 27.5, Deduction: 908.73},
}

const (
	irrfDependentDeduction = 189.59
	irrfSimplifiedDiscount = 607.20
)

// INSSCeiling is the salary above which the employee contribution stops growing.
func INSSCeiling() float64 {
	return inssBrackets[len(inssBrackets)-1].Upper
}

// EmployeeINSS returns the employee's progressive INSS contribution, capped at
// the ceiling-derived amount.
func EmployeeINSS(salary float64) float64 {
	if salary <= 0 {
		return 0
	}
	salary = mathutil.Min(salary, INSSCeiling())
	contribution := 0.0
	lower := 0.0
	for _, b := range inssBrackets {
		if salary <= lower {
			break
		}
		top := mathutil.Min(salary, b.Upper)
		contribution += mathutil.ApplyPercentage(top-lower, b.Rate)
		lower = b.Upper
	}
	return contribution
}

// IRRF returns the monthly income tax withheld from salary. The legal
// deductions (INSS plus dependents) are replaced by the simplified discount
// when that is larger.
func IRRF(salary, inss float64, dependents int) float64 {
	if salary <= 0 {
		return 0
	}
	if dependents < 0 {
		dependents = 0
	}
	deductions := inss + float64(dependents)*irrfDependentDeduction
	if irrfSimplifiedDiscount > deductions {
		deductions = irrfSimplifiedDiscount
	}
	taxable := salary - deductions
	if taxable <= 0 {
		return 0
	}
	for _, b := range irrfBrackets {
		if b.Upper == 0 || taxable <= b.Upper {
			tax := taxable*b.Rate/100 - b.Deduction
			if tax < 0 {
				return 0
			}
			return tax
		}
	}
	return 0
}

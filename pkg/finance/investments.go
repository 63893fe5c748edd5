package finance

import (
	"math"

	"github.com/iwvelando/otica-forecast/pkg/constants"
)

const percentDivisor = 100.0

func percentToDecimal(percent float64) float64 {
	return percent / percentDivisor
}

// NPV discounts flows at ratePct percent per period. flows[0] is received at
// the end of the first period.
func NPV(ratePct float64, flows []float64) float64 {
	rate := percentToDecimal(ratePct)
	total := 0.0
	for i, f := range flows {
		total += f / math.Pow(1+rate, float64(i+1))
	}
	return total
}

// RepeatedNPV returns the net present value of an investment that yields the
// same annual result for the given number of years.
func RepeatedNPV(annualResult, investment, ratePct float64, years int) float64 {
	flows := make([]float64, years)
	for i := range flows {
		flows[i] = annualResult
	}
	return NPV(ratePct, flows) - investment
}

// FiveYearNPV is RepeatedNPV over five years at the reference discount rate.
func FiveYearNPV(annualResult, investment float64) float64 {
	return RepeatedNPV(annualResult, investment, constants.NPVDiscountRate, constants.NPVYears)
}

// PaybackMonths returns how many months of the mean monthly result repay the
// investment. It is +Inf when the mean result is not positive and zero when
// nothing was invested.
func PaybackMonths(investment, meanMonthly float64) float64 {
	if investment <= 0 {
		return 0
	}
	if meanMonthly <= 0 {
		return math.Inf(1)
	}
	return investment / meanMonthly
}

// ROI returns result / investment as a fraction, or zero with nothing invested.
func ROI(result, investment float64) float64 {
	if investment <= 0 {
		return 0
	}
	return result / investment
}

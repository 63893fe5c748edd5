// Package financing builds amortization schedules for the loan that funds the
// initial investment.
package financing

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// System is the amortization system.
type System string

// Amortization systems used by Brazilian banks.
const (
	// Price pays a constant installment (French system).
	Price System = "price"
	// SAC amortizes a constant share of principal every month.
	SAC System = "sac"
)

// ParseSystem accepts "price", "PRICE", "sac" and "tabela price".
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price", "tabela price", "frances", "":
		return Price, nil
	case "sac":
		return SAC, nil
	}
	return "", fmt.Errorf("unknown amortization system %q", s)
}

// Payment holds the values for a given month of the schedule.
type Payment struct {
	Month              int     `json:"month"`
	Payment            float64 `json:"payment"`
	Principal          float64 `json:"principal"`
	Interest           float64 `json:"interest"`
	RemainingPrincipal float64 `json:"remaining_principal"`
}

// LoanConfig represents loan configuration parameters.
type LoanConfig struct {
	Name          string  `mapstructure:"name" json:"name" yaml:"name"`
	Principal     float64 `mapstructure:"principal" json:"principal" yaml:"principal"`
	DownPayment   float64 `mapstructure:"down_payment" json:"down_payment" yaml:"down_payment"`
	AnnualRatePct float64 `mapstructure:"annual_rate_pct" json:"annual_rate_pct" yaml:"annual_rate_pct"`
	TermMonths    int     `mapstructure:"term_months" json:"term_months" yaml:"term_months"`
	// GraceMonths pay interest only before amortization starts.
	GraceMonths int    `mapstructure:"grace_months" json:"grace_months" yaml:"grace_months"`
	System      System `mapstructure:"system" json:"system" yaml:"system"`
}

// Financed returns the amount actually borrowed.
func (l LoanConfig) Financed() float64 {
	return l.Principal - l.DownPayment
}

// Enabled reports whether there is anything to amortize.
func (l LoanConfig) Enabled() bool {
	return l.Financed() > 0
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the standard amortization formula.
func CalculateMonthlyPayment(principal, downPayment, annualInterestRate float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	if annualInterestRate == 0 {
		// For zero interest, simply divide the principal by term
		return (principal - downPayment) / float64(termMonths)
	}

	periodicInterestRate := MonthlyRate(annualInterestRate)
	power := math.Pow(1.00+periodicInterestRate, float64(termMonths))
	discountFactor := (power - 1.00) / power
	return (principal - downPayment) * periodicInterestRate / discountFactor
}

// MonthlyRate converts a nominal annual percent rate into a monthly fraction.
func MonthlyRate(annualPct float64) float64 {
	return annualPct / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// CalculateInterestPayment calculates the interest portion of a payment.
func CalculateInterestPayment(remainingPrincipal, annualInterestRate float64) float64 {
	return remainingPrincipal * MonthlyRate(annualInterestRate)
}

// ScheduleGenerator provides utilities for generating loan amortization schedules.
type ScheduleGenerator struct {
	logger *zap.Logger
}

// NewScheduleGenerator creates a new generator instance.
func NewScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGenerator{logger: logger}
}

// GenerateSchedule creates the full schedule of a loan, month 1 being the
// first installment.
func (g *ScheduleGenerator) GenerateSchedule(loan LoanConfig) ([]Payment, error) {
	financed := loan.Financed()
	if financed <= 0 {
		return nil, nil
	}
	if loan.TermMonths <= 0 {
		return nil, fmt.Errorf("loan %s: term must be positive, got %d", loan.Name, loan.TermMonths)
	}
	if loan.GraceMonths < 0 || loan.GraceMonths >= loan.TermMonths {
		return nil, fmt.Errorf("loan %s: grace period %d must be in [0, %d)", loan.Name, loan.GraceMonths, loan.TermMonths)
	}
	if loan.AnnualRatePct < 0 {
		return nil, fmt.Errorf("loan %s: negative interest rate %.2f", loan.Name, loan.AnnualRatePct)
	}
	system := loan.System
	if system == "" {
		system = Price
	}

	amortizing := loan.TermMonths - loan.GraceMonths
	installment := CalculateMonthlyPayment(financed, 0, loan.AnnualRatePct, amortizing)
	constantPrincipal := financed / float64(amortizing)

	schedule := make([]Payment, 0, loan.TermMonths)
	remaining := financed
	for month := 1; month <= loan.TermMonths; month++ {
		p := Payment{Month: month}
		p.Interest = CalculateInterestPayment(remaining, loan.AnnualRatePct)

		switch {
		case month <= loan.GraceMonths:
			p.Principal = 0
		case system == SAC:
			p.Principal = constantPrincipal
		default:
			p.Principal = installment - p.Interest
		}

		if month == loan.TermMonths || mathutil.Round(remaining-p.Principal) == 0 {
			// We will get machine error otherwise so just settle the balance.
			p.Principal = remaining
		}
		p.Payment = p.Principal + p.Interest
		remaining -= p.Principal
		p.RemainingPrincipal = remaining
		schedule = append(schedule, p)

		if remaining == 0 {
			break
		}
	}

	g.logger.Debug(fmt.Sprintf("loan %s: %d installments over %.2f financed (%s)",
		loan.Name, len(schedule), financed, system),
		zap.String("op", "financing.GenerateSchedule"),
	)
	return schedule, nil
}

// Window returns the first n months of a schedule, padding with zero
// payments so the result always has length n.
func Window(schedule []Payment, n int) []Payment {
	out := make([]Payment, n)
	for i := 0; i < n; i++ {
		out[i].Month = i + 1
		if i < len(schedule) {
			out[i] = schedule[i]
		}
	}
	return out
}

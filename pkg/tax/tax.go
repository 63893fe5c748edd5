// Package tax estimates the tax burden of an ótica under the MEI, Simples
// Nacional and Lucro Presumido regimes. Figures are planning estimates.
package tax

import (
	"fmt"
	"strings"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// Regime is a Brazilian tax regime.
type Regime string

// Supported regimes.
const (
	MEI       Regime = "MEI"
	Simples   Regime = "SimplesNacional"
	Presumido Regime = "LucroPresumido"
)

// ParseRegime accepts the canonical names and common spellings.
func ParseRegime(s string) (Regime, error) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	switch key {
	case "mei":
		return MEI, nil
	case "simplesnacional", "simples", "":
		return Simples, nil
	case "lucropresumido", "presumido":
		return Presumido, nil
	}
	return "", fmt.Errorf("unknown tax regime %q", s)
}

// Flags raised on a tax result.
const (
	FlagSimplesLimitExceeded = "simples_limit_exceeded"
	FlagMEILimitExceeded     = "mei_limit_exceeded"
	FlagInsufficientInput    = "insufficient_input"
)

// PresumidoParams are the Lucro Presumido rates, all in percent.
type PresumidoParams struct {
	CommerceBasePct         float64
	ServiceBasePct          float64
	CommerceSharePct        float64
	IRPJPct                 float64
	IRPJAdditionalPct       float64
	IRPJAdditionalThreshold float64
	CSLLPct                 float64
	PISPct                  float64
	COFINSPct               float64
}

// DefaultPresumidoParams returns the rates for a mixed optical retailer
// (70% commerce, 30% services).
func DefaultPresumidoParams() PresumidoParams {
	return PresumidoParams{
		CommerceBasePct:         8,
		ServiceBasePct:          32,
		CommerceSharePct:        70,
		IRPJPct:                 15,
		IRPJAdditionalPct:       10,
		IRPJAdditionalThreshold: 240000,
		CSLLPct:                 9,
		PISPct:                  0.65,
		COFINSPct:               3.0,
	}
}

// Result is the tax burden for one annual revenue figure.
type Result struct {
	Regime        Regime  `json:"regime"`
	Annex         Annex   `json:"annex,omitempty"`
	AnnualRevenue float64 `json:"annual_revenue"`
	AnnualTax     float64 `json:"annual_tax"`
	MonthlyTax    float64 `json:"monthly_tax"`
	// EffectiveRate is in percent of revenue.
	EffectiveRate float64 `json:"effective_rate"`
	NominalRate   float64 `json:"nominal_rate,omitempty"`
	Deduction     float64 `json:"deduction,omitempty"`
	// Bracket is 1-based; zero when the regime has no brackets.
	Bracket   int                `json:"bracket,omitempty"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Flags     []string           `json:"flags,omitempty"`
}

// HasFlag reports whether the result carries flag.
func (r Result) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Comparison is the outcome of CompareRegimes.
type Comparison struct {
	Simples   Result `json:"simples"`
	Presumido Result `json:"presumido"`
	Better    Regime `json:"better"`
	// Saving is the annual difference in favour of Better.
	Saving float64 `json:"saving"`
}

// Calculator computes taxes. It holds only immutable reference data.
type Calculator struct {
	logger    *zap.Logger
	presumido PresumidoParams
	meiDAS    float64
}

// NewCalculator returns a calculator with the reference tables.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		logger:    logger,
		presumido: DefaultPresumidoParams(),
		meiDAS:    constants.MEIMonthlyDAS,
	}
}

// WithPresumidoParams returns a copy of the calculator using params.
func (c *Calculator) WithPresumidoParams(params PresumidoParams) *Calculator {
	clone := *c
	clone.presumido = params
	return &clone
}

// Calculate returns the tax for annualRevenue. Only an unknown regime or annex
// is an error; out-of-regime revenue is reported through Flags.
func (c *Calculator) Calculate(regime Regime, annex Annex, annualRevenue float64) (Result, error) {
	switch regime {
	case MEI:
		return c.mei(annualRevenue), nil
	case Simples:
		return c.simples(annex, annualRevenue)
	case Presumido:
		return c.lucroPresumido(annualRevenue), nil
	}
	return Result{}, fmt.Errorf("unknown tax regime %q", regime)
}

// CompareRegimes computes Simples Nacional (under annex) and Lucro Presumido
// for the same revenue. Ties favour Simples Nacional.
func (c *Calculator) CompareRegimes(annualRevenue float64, annex Annex) (Comparison, error) {
	simples, err := c.simples(annex, annualRevenue)
	if err != nil {
		return Comparison{}, err
	}
	presumido := c.lucroPresumido(annualRevenue)

	cmp := Comparison{Simples: simples, Presumido: presumido, Better: Simples}
	if presumido.AnnualTax < simples.AnnualTax {
		cmp.Better = Presumido
		cmp.Saving = simples.AnnualTax - presumido.AnnualTax
	} else {
		cmp.Saving = presumido.AnnualTax - simples.AnnualTax
	}

	c.logger.Debug(fmt.Sprintf("regime comparison at %.2f: %s saves %.2f", annualRevenue, cmp.Better, cmp.Saving),
		zap.String("op", "tax.CompareRegimes"),
	)
	return cmp, nil
}

func (c *Calculator) mei(annualRevenue float64) Result {
	res := Result{
		Regime:        MEI,
		AnnualRevenue: annualRevenue,
		MonthlyTax:    c.meiDAS,
		AnnualTax:     c.meiDAS * constants.MonthsPerYear,
		Breakdown:     map[string]float64{"das": c.meiDAS * constants.MonthsPerYear},
	}
	if annualRevenue > 0 {
		res.EffectiveRate = mathutil.CalculatePercentage(res.AnnualTax, annualRevenue)
	}
	if annualRevenue > constants.MEIAnnualLimit {
		c.logger.Warn(fmt.Sprintf("annual revenue %.2f exceeds the MEI limit %.2f", annualRevenue, constants.MEIAnnualLimit),
			zap.String("op", "tax.mei"),
		)
		res.Flags = append(res.Flags, FlagMEILimitExceeded)
	}
	return res
}

func (c *Calculator) simples(annex Annex, annualRevenue float64) (Result, error) {
	if annex == "" {
		annex = AnnexI
	}
	table, err := Table(annex)
	if err != nil {
		return Result{}, err
	}

	res := Result{Regime: Simples, Annex: annex, AnnualRevenue: annualRevenue}
	if annualRevenue <= 0 {
		res.Flags = append(res.Flags, FlagInsufficientInput)
		return res, nil
	}

	idx, exceeded := findBracket(table, annualRevenue)
	if exceeded {
		c.logger.Warn(fmt.Sprintf("annual revenue %.2f exceeds the Simples Nacional limit %.2f",
			annualRevenue, constants.SimplesAnnualLimit),
			zap.String("op", "tax.simples"),
		)
		res.Flags = append(res.Flags, FlagSimplesLimitExceeded)
	}
	b := table[idx]

	res.Bracket = idx + 1
	res.NominalRate = b.NominalRate
	res.Deduction = b.Deduction
	res.AnnualTax = annualRevenue*b.NominalRate/constants.PercentageMultiplier - b.Deduction
	if res.AnnualTax < 0 {
		res.AnnualTax = 0
	}
	res.MonthlyTax = res.AnnualTax / constants.MonthsPerYear
	res.EffectiveRate = mathutil.CalculatePercentage(res.AnnualTax, annualRevenue)
	res.Breakdown = map[string]float64{"das": res.AnnualTax}
	return res, nil
}

func (c *Calculator) lucroPresumido(annualRevenue float64) Result {
	p := c.presumido
	res := Result{Regime: Presumido, AnnualRevenue: annualRevenue}
	if annualRevenue <= 0 {
		res.Flags = append(res.Flags, FlagInsufficientInput)
		return res
	}

	commerceShare := p.CommerceSharePct / constants.PercentageMultiplier
	baseRate := commerceShare*p.CommerceBasePct/constants.PercentageMultiplier +
		(1-commerceShare)*p.ServiceBasePct/constants.PercentageMultiplier
	presumedBase := annualRevenue * baseRate

	pis := annualRevenue * p.PISPct / constants.PercentageMultiplier
	cofins := annualRevenue * p.COFINSPct / constants.PercentageMultiplier
	irpj := presumedBase * p.IRPJPct / constants.PercentageMultiplier
	additional := 0.0
	if presumedBase > p.IRPJAdditionalThreshold {
		additional = (presumedBase - p.IRPJAdditionalThreshold) * p.IRPJAdditionalPct / constants.PercentageMultiplier
	}
	csll := presumedBase * p.CSLLPct / constants.PercentageMultiplier

	res.AnnualTax = pis + cofins + irpj + additional + csll
	res.MonthlyTax = res.AnnualTax / constants.MonthsPerYear
	res.EffectiveRate = mathutil.CalculatePercentage(res.AnnualTax, annualRevenue)
	res.Breakdown = map[string]float64{
		"presumed_base":   presumedBase,
		"pis":             pis,
		"cofins":          cofins,
		"irpj":            irpj,
		"irpj_additional": additional,
		"csll":            csll,
	}
	return res
}

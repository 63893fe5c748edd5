// Package findings defines the diagnostics attached to a financial plan.
//
// User-data problems never surface as Go errors from the engine; every
// component reports them as findings and keeps computing.
package findings

import (
	"fmt"
	"sort"
)

// Severity orders findings by how much attention they need.
type Severity string

// Severity levels.
const (
	Info     Severity = "Info"
	Warning  Severity = "Warning"
	Critical Severity = "Critical"
)

func (s Severity) rank() int {
	switch s {
	case Critical:
		return 2
	case Warning:
		return 1
	default:
		return 0
	}
}

// Kind classifies the origin of a finding.
type Kind string

// Finding kinds.
const (
	KindConfig             Kind = "ConfigError"
	KindRegimeViolation    Kind = "RegimeViolation"
	KindInsufficientInput  Kind = "InsufficientInput"
	KindAllocationFallback Kind = "AllocationFallback"
	KindLiquidityBreach    Kind = "LiquidityBreach"
	KindInconsistency      Kind = "Inconsistency"
	KindBusinessRatio      Kind = "BusinessRatio"
	KindInternal           Kind = "InternalError"
)

// Stable rule identifiers.
const (
	RuleMEILimitExceeded      = "mei_limit_exceeded"
	RuleMEIHeadcountExceeded  = "mei_headcount_exceeded"
	RuleSimplesLimitExceeded  = "simples_limit_exceeded"
	RuleRentRatioHigh         = "rent_ratio_high"
	RuleTicketTooLow          = "ticket_too_low"
	RuleUnitsPerDayHigh       = "units_per_day_high"
	RuleTicketRevenueMismatch = "ticket_revenue_mismatch"
	RuleLiquidityBreach       = "liquidity_breach"
	RuleBelowBreakEven        = "below_break_even"
	RuleTicketBelowUnitCost   = "ticket_below_unit_cost"
	RuleCLTBelowMinimum       = "clt_below_minimum"
	RuleInvalidSalary         = "invalid_salary"
	RuleAllocationFallback    = "allocation_fallback"
	RuleInsufficientInput     = "insufficient_input"
	RuleInvalidPaymentProfile = "invalid_payment_profile"
	RuleInvestmentMissing     = "investment_missing"
	RuleInternalError         = "internal_error"
)

// InvalidFieldRule returns the rule id used when a bundle field had to be
// zeroed, e.g. "invalid_average_ticket".
func InvalidFieldRule(field string) string {
	return "invalid_" + field
}

// Finding is a single diagnostic. Month is 1..12 for month-scoped findings and
// zero otherwise.
type Finding struct {
	RuleID   string   `json:"rule_id" yaml:"rule_id"`
	Severity Severity `json:"severity" yaml:"severity"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Month    int      `json:"month,omitempty" yaml:"month,omitempty"`
	Message  string   `json:"message" yaml:"message"`
	Action   string   `json:"action" yaml:"action"`
}

// String renders a finding on one line for logs and the pretty output.
func (f Finding) String() string {
	if f.Month > 0 {
		return fmt.Sprintf("[%s] %s (mês %d): %s", f.Severity, f.RuleID, f.Month, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.RuleID, f.Message)
}

// List accumulates findings in emission order.
type List []Finding

// Add appends a finding.
func (l *List) Add(f Finding) {
	*l = append(*l, f)
}

// Addf appends a finding built from its parts.
func (l *List) Addf(rule string, severity Severity, kind Kind, month int, action, format string, args ...interface{}) {
	l.Add(Finding{
		RuleID:   rule,
		Severity: severity,
		Kind:     kind,
		Month:    month,
		Message:  fmt.Sprintf(format, args...),
		Action:   action,
	})
}

// Extend appends all of other.
func (l *List) Extend(other []Finding) {
	*l = append(*l, other...)
}

// Has reports whether any finding carries the rule id.
func (l List) Has(rule string) bool {
	for _, f := range l {
		if f.RuleID == rule {
			return true
		}
	}
	return false
}

// HasSeverity reports whether any finding is at least as severe as s.
func (l List) HasSeverity(s Severity) bool {
	for _, f := range l {
		if f.Severity.rank() >= s.rank() {
			return true
		}
	}
	return false
}

// Count returns how many findings carry the rule id.
func (l List) Count(rule string) int {
	n := 0
	for _, f := range l {
		if f.RuleID == rule {
			n++
		}
	}
	return n
}

// Sorted returns a copy ordered by severity (most severe first), then month,
// then rule id. The ordering is stable so repeated evaluations render
// identically.
func (l List) Sorted() List {
	out := make(List, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.rank() != out[j].Severity.rank() {
			return out[i].Severity.rank() > out[j].Severity.rank()
		}
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

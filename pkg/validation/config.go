package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/iwvelando/otica-forecast/pkg/datetime"
)

// Issue describes a field whose value could not be used.
type Issue struct {
	Field  string
	Value  string
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s = %s: %s", i.Field, i.Value, i.Reason)
}

// FieldValidator checks bundle fields in place. Invalid numbers are replaced
// by zero and recorded, so the caller can keep computing and report every
// problem at once.
type FieldValidator struct {
	issues []Issue
}

// Issues returns the problems found so far in check order.
func (v *FieldValidator) Issues() []Issue {
	return v.issues
}

func (v *FieldValidator) record(field, value, reason string) {
	v.issues = append(v.issues, Issue{Field: field, Value: value, Reason: reason})
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Money requires a finite, non-negative amount.
func (v *FieldValidator) Money(field string, value *float64) bool {
	if !finite(*value) || *value < 0 {
		v.record(field, fmt.Sprintf("%v", *value), "must be a non-negative amount")
		*value = 0
		return false
	}
	return true
}

// Percent requires a value in [0, max].
func (v *FieldValidator) Percent(field string, value *float64, max float64) bool {
	if !finite(*value) || *value < 0 || *value > max {
		v.record(field, fmt.Sprintf("%v", *value), fmt.Sprintf("must be a percentage between 0 and %g", max))
		*value = 0
		return false
	}
	return true
}

// Rate requires a finite value in [min, max], for signed rates such as growth.
func (v *FieldValidator) Rate(field string, value *float64, min, max float64) bool {
	if !finite(*value) || *value < min || *value > max {
		v.record(field, fmt.Sprintf("%v", *value), fmt.Sprintf("must be between %g and %g", min, max))
		*value = 0
		return false
	}
	return true
}

// Count requires a non-negative integer.
func (v *FieldValidator) Count(field string, value *int) bool {
	if *value < 0 {
		v.record(field, fmt.Sprintf("%d", *value), "must not be negative")
		*value = 0
		return false
	}
	return true
}

// Month requires a "2006-01" label, replacing it with fallback otherwise.
func (v *FieldValidator) Month(field string, value *string, fallback string) bool {
	if *value == "" {
		*value = fallback
		return true
	}
	if _, err := time.Parse(datetime.DateTimeLayout, *value); err != nil {
		v.record(field, *value, fmt.Sprintf("must be a month in %s form", datetime.DateTimeLayout))
		*value = fallback
		return false
	}
	return true
}

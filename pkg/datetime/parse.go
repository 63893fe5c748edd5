// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DateTimeLayout is the format expected in plan files and is also the output
	// month label format.
	DateTimeLayout = constants.DateTimeLayout
)

// monthNames maps accent-free pt-BR, English and Spanish month names (and the
// usual three-letter abbreviations) to calendar months.
var monthNames = map[string]time.Month{
	"janeiro": time.January, "jan": time.January, "january": time.January, "enero": time.January, "ene": time.January,
	"fevereiro": time.February, "fev": time.February, "february": time.February, "feb": time.February, "febrero": time.February,
	"marco": time.March, "mar": time.March, "march": time.March, "marzo": time.March,
	"abril": time.April, "abr": time.April, "april": time.April, "apr": time.April,
	"maio": time.May, "mai": time.May, "may": time.May, "mayo": time.May,
	"junho": time.June, "jun": time.June, "june": time.June, "junio": time.June,
	"julho": time.July, "jul": time.July, "july": time.July, "julio": time.July,
	"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August,
	"setembro": time.September, "set": time.September, "september": time.September, "sep": time.September, "septiembre": time.September, "sept": time.September,
	"outubro": time.October, "out": time.October, "october": time.October, "oct": time.October, "octubre": time.October,
	"novembro": time.November, "nov": time.November, "november": time.November, "noviembre": time.November,
	"dezembro": time.December, "dez": time.December, "december": time.December, "dec": time.December, "diciembre": time.December, "dic": time.December,
}

// OffsetDate returns the string-formatted date offset by the given number of
// months relative to the given date.
func OffsetDate(date, layout string, months int) (string, error) {
	t, err := time.Parse(layout, date)
	if err != nil {
		return date, err
	}
	return t.AddDate(0, months, 0).Format(layout), nil
}

// MonthLabels returns the labels of count consecutive months starting at start.
func MonthLabels(start string, count int) ([]string, error) {
	labels := make([]string, 0, count)
	for i := 0; i < count; i++ {
		label, err := OffsetDate(start, DateTimeLayout, i)
		if err != nil {
			return nil, fmt.Errorf("invalid start month %q: %w", start, err)
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// CalendarMonth returns the calendar month of a "2006-01" label.
func CalendarMonth(label string) (time.Month, error) {
	t, err := time.Parse(DateTimeLayout, label)
	if err != nil {
		return 0, err
	}
	return t.Month(), nil
}

// ParseMonthName resolves "dezembro", "Março", "dec" or "12" to a calendar month.
func ParseMonthName(name string) (time.Month, error) {
	key := normalizeName(name)
	if key == "" {
		return 0, fmt.Errorf("empty month name")
	}
	if n, err := strconv.Atoi(key); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month number %d out of range", n)
		}
		return time.Month(n), nil
	}
	if month, ok := monthNames[key]; ok {
		return month, nil
	}
	return 0, fmt.Errorf("unknown month name %q", name)
}

// ParseMonthSet resolves a list of month names, returning the set and the
// names that could not be resolved.
func ParseMonthSet(names []string) (map[time.Month]bool, []string) {
	set := make(map[time.Month]bool, len(names))
	var unknown []string
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		month, err := ParseMonthName(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		set[month] = true
	}
	return set, unknown
}

func normalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

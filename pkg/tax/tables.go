package tax

import (
	"fmt"
	"strings"
)

// Annex is a Simples Nacional schedule.
type Annex string

// Simples Nacional annexes.
const (
	AnnexI   Annex = "I"
	AnnexII  Annex = "II"
	AnnexIII Annex = "III"
)

// ParseAnnex accepts "I", "anexo ii", "3" and similar spellings.
func ParseAnnex(s string) (Annex, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.TrimPrefix(key, "ANEXO")
	key = strings.TrimSpace(key)
	switch key {
	case "I", "1", "":
		return AnnexI, nil
	case "II", "2":
		return AnnexII, nil
	case "III", "3":
		return AnnexIII, nil
	}
	return "", fmt.Errorf("unknown Simples Nacional annex %q", s)
}

// Bracket is one row of an annex table. Lower is exclusive and Upper is
// inclusive, both on the trailing twelve-month revenue. NominalRate is in
// percent.
type Bracket struct {
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	NominalRate float64 `json:"nominal_rate"`
	Deduction   float64 `json:"deduction"`
}

var bracketLimits = []float64{180000, 360000, 720000, 1800000, 3600000, 4800000}

var annexRates = map[Annex][][2]float64{
	AnnexI: {
		{4.0, 0}, {7.3, 5940}, {9.5, 13860}, {10.7, 22500}, {14.3, 87300}, {19.0, 378000},
	},
	AnnexII: {
		{4.5, 0}, {7.8, 5940}, {10.0, 13860}, {11.2, 22500}, {14.7, 85500}, {30.0, 720000},
	},
	AnnexIII: {
		{6.0, 0}, {11.2, 9360}, {13.5, 17640}, {16.0, 35640}, {21.0, 125640}, {33.0, 648000},
	},
}

// Table returns a copy of the brackets for annex.
func Table(annex Annex) ([]Bracket, error) {
	rates, ok := annexRates[annex]
	if !ok {
		return nil, fmt.Errorf("unknown Simples Nacional annex %q", annex)
	}
	table := make([]Bracket, len(rates))
	lower := 0.0
	for i, r := range rates {
		table[i] = Bracket{
			Lower:       lower,
			Upper:       bracketLimits[i],
			NominalRate: r[0],
			Deduction:   r[1],
		}
		lower = bracketLimits[i]
	}
	return table, nil
}

// findBracket returns the index of the bracket holding revenue. Revenue above
// the last bracket resolves to the last one with exceeded set.
func findBracket(table []Bracket, revenue float64) (index int, exceeded bool) {
	for i, b := range table {
		if revenue <= b.Upper {
			return i, false
		}
	}
	return len(table) - 1, true
}

// Package report computes the descriptive statistics printed after a run.
package report

import (
	"fmt"
	"math"

	"github.com/rpattn/tidyjoin/internal/domain"
)

// Range is an inclusive numeric span.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary describes a merged table.
type Summary struct {
	Observations int              `json:"observations"`
	Countries    int              `json:"countries"`
	Years        domain.YearRange `json:"years"`
	GDPPerCapita Range            `json:"gdpPerCapita"`
	Mortality    Range            `json:"mortalityRate"`
}

// Describe summarizes merged records. An empty input yields a zero Summary.
func Describe(records []domain.MergedRecord) Summary {
	summary := Summary{Observations: len(records)}
	if len(records) == 0 {
		return summary
	}
	countries := make(map[string]struct{})
	summary.GDPPerCapita = Range{Min: math.Inf(1), Max: math.Inf(-1)}
	summary.Mortality = Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for idx, record := range records {
		countries[record.EntityCode] = struct{}{}
		summary.Years.Observe(record.Year, idx == 0)
		summary.GDPPerCapita.observe(record.GDPPerCapita)
		summary.Mortality.observe(record.MortalityRate)
	}
	summary.Countries = len(countries)
	return summary
}

func (r *Range) observe(v float64) {
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

// String renders the summary the way the console report prints it.
func (s Summary) String() string {
	if s.Observations == 0 {
		return "Total observations: 0"
	}
	return fmt.Sprintf(
		"Total observations: %d\nCountries: %d\nYears: %d - %d\nGDP per capita range: $%s - $%s\nMortality rate range: %.1f - %.1f",
		s.Observations,
		s.Countries,
		s.Years.Min, s.Years.Max,
		thousands(s.GDPPerCapita.Min), thousands(s.GDPPerCapita.Max),
		s.Mortality.Min, s.Mortality.Max,
	)
}

// thousands formats a value rounded to whole units with comma grouping.
func thousands(v float64) string {
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return sign + string(out)
}

package report

import (
	"testing"

	"github.com/rpattn/tidyjoin/internal/domain"
)

func TestDescribe(t *testing.T) {
	records := []domain.MergedRecord{
		{EntityCode: "CAN", DisplayName: "Canada", MortalityRate: 6.1, GDPPerCapita: 24000, Year: 2000},
		{EntityCode: "USA", DisplayName: "United States", MortalityRate: 8.5, GDPPerCapita: 36000, Year: 2000},
		{EntityCode: "USA", DisplayName: "United States", MortalityRate: 8.2, GDPPerCapita: 1037000.4, Year: 2001},
	}

	summary := Describe(records)
	if summary.Observations != 3 || summary.Countries != 2 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.Years.Min != 2000 || summary.Years.Max != 2001 {
		t.Fatalf("unexpected years: %+v", summary.Years)
	}

	want := "Total observations: 3\n" +
		"Countries: 2\n" +
		"Years: 2000 - 2001\n" +
		"GDP per capita range: $24,000 - $1,037,000\n" +
		"Mortality rate range: 6.1 - 8.5"
	if got := summary.String(); got != want {
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

func TestDescribeEmpty(t *testing.T) {
	summary := Describe(nil)
	if summary != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
	if summary.String() != "Total observations: 0" {
		t.Fatalf("unexpected report %q", summary.String())
	}
}

func TestThousands(t *testing.T) {
	cases := map[float64]string{
		0:        "0",
		999.6:    "1,000",
		123456:   "123,456",
		-4500000: "-4,500,000",
	}
	for input, want := range cases {
		if got := thousands(input); got != want {
			t.Fatalf("thousands(%v) = %q, want %q", input, got, want)
		}
	}
}

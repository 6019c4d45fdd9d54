package domain

import (
	"errors"
	"testing"
)

func TestParseMeasurementMissing(t *testing.T) {
	for _, raw := range []string{"", "  ", "NA", "nan", "NaN", "N/A", "null", "-"} {
		value, present, err := ParseMeasurement(raw)
		if err != nil {
			t.Fatalf("ParseMeasurement(%q) returned error: %v", raw, err)
		}
		if present || value != 0 {
			t.Fatalf("ParseMeasurement(%q) = %v, %v; want missing", raw, value, present)
		}
	}
}

func TestParseMeasurementValues(t *testing.T) {
	value, present, err := ParseMeasurement(" 8.5 ")
	if err != nil || !present || value != 8.5 {
		t.Fatalf("unexpected result %v %v %v", value, present, err)
	}
	value, present, err = ParseMeasurement("0")
	if err != nil || !present || value != 0 {
		t.Fatalf("a literal zero must be kept, got %v %v %v", value, present, err)
	}
	if _, _, err := ParseMeasurement("eight"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid value error, got %v", err)
	}
	if _, _, err := ParseMeasurement("Inf"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid value error for infinity, got %v", err)
	}
}

func TestParseYear(t *testing.T) {
	for raw, want := range map[string]int{"2000": 2000, " 2001 ": 2001, "2002.0": 2002} {
		got, err := ParseYear(raw)
		if err != nil || got != want {
			t.Fatalf("ParseYear(%q) = %d, %v; want %d", raw, got, err, want)
		}
	}
	if _, err := ParseYear("2002.5"); err == nil {
		t.Fatalf("expected fractional year to fail")
	}
}

func TestFormatValue(t *testing.T) {
	cases := map[float64]string{36000: "36000", 8.5: "8.5", 0.1: "0.1", -2.25: "-2.25"}
	for in, want := range cases {
		if got := FormatValue(in); got != want {
			t.Fatalf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestWideTableColumnIndex(t *testing.T) {
	table := WideTable{Headers: []string{"geo", "Geo", "name"}}
	if idx, ok := table.ColumnIndex("Geo"); !ok || idx != 1 {
		t.Fatalf("expected exact match at 1, got %d %v", idx, ok)
	}
	if idx, ok := table.ColumnIndex("NAME"); !ok || idx != 2 {
		t.Fatalf("expected case-insensitive match at 2, got %d %v", idx, ok)
	}
	if _, ok := table.ColumnIndex("Country"); ok {
		t.Fatalf("did not expect Country to resolve")
	}
}

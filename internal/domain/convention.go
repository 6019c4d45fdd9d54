package domain

import (
	"fmt"
	"strings"
)

// CaseConvention controls how entity codes are canonicalized before joining.
type CaseConvention string

const (
	CaseUpper    CaseConvention = "upper"
	CaseLower    CaseConvention = "lower"
	CasePreserve CaseConvention = "preserve"
)

// ParseCaseConvention validates a configured convention. Empty means upper.
func ParseCaseConvention(raw string) (CaseConvention, error) {
	switch CaseConvention(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CaseUpper:
		return CaseUpper, nil
	case CaseLower:
		return CaseLower, nil
	case CasePreserve:
		return CasePreserve, nil
	default:
		return "", fmt.Errorf("unknown case convention %q", raw)
	}
}

// Canonicalize trims the code and applies the convention. Applying it twice
// yields the same result as applying it once.
func (c CaseConvention) Canonicalize(code string) string {
	code = strings.TrimSpace(code)
	switch c {
	case CaseLower:
		return strings.ToLower(code)
	case CasePreserve:
		return code
	default:
		return strings.ToUpper(code)
	}
}

// DecodePolicy selects what happens to a header that cannot be decoded as a year.
type DecodePolicy string

const (
	DecodeFail DecodePolicy = "fail"
	DecodeSkip DecodePolicy = "skip"
)

// ParseDecodePolicy validates a configured policy. Empty means fail.
func ParseDecodePolicy(raw string) (DecodePolicy, error) {
	switch DecodePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DecodeFail:
		return DecodeFail, nil
	case DecodeSkip:
		return DecodeSkip, nil
	default:
		return "", fmt.Errorf("unknown decode policy %q", raw)
	}
}

// YearWindow is an inclusive analysis window. A nil window admits every year.
type YearWindow struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether year lies inside the window.
func (w *YearWindow) Contains(year int) bool {
	if w == nil {
		return true
	}
	return year >= w.From && year <= w.To
}

func (w *YearWindow) String() string {
	if w == nil {
		return "all"
	}
	return fmt.Sprintf("%d-%d", w.From, w.To)
}

// TidyConfig declares the schema of one wide dataset and how it is tidied.
type TidyConfig struct {
	Dataset        string
	EntityColumn   string
	NameColumn     string
	MetricColumn   string
	YearPrefix     string
	CaseConvention CaseConvention
	Window         *YearWindow
	OnDecodeError  DecodePolicy
}

// Validate checks the declaration before any data is read.
func (c TidyConfig) Validate() error {
	if strings.TrimSpace(c.Dataset) == "" {
		return fmt.Errorf("%w: dataset label is required", ErrSchema)
	}
	if strings.TrimSpace(c.EntityColumn) == "" {
		return fmt.Errorf("%w: %s entity column is required", ErrSchema, c.Dataset)
	}
	if strings.TrimSpace(c.MetricColumn) == "" {
		return fmt.Errorf("%w: %s metric column is required", ErrSchema, c.Dataset)
	}
	if c.Window != nil && c.Window.From > c.Window.To {
		return fmt.Errorf("%w: %s window %d-%d is inverted", ErrSchema, c.Dataset, c.Window.From, c.Window.To)
	}
	switch c.CaseConvention {
	case "", CaseUpper, CaseLower, CasePreserve:
	default:
		return fmt.Errorf("%w: %s case convention %q", ErrSchema, c.Dataset, c.CaseConvention)
	}
	return nil
}

// Convention returns the effective case convention.
func (c TidyConfig) Convention() CaseConvention {
	if c.CaseConvention == "" {
		return CaseUpper
	}
	return c.CaseConvention
}

// MortalityConfig mirrors the mortality source: a Country column and bare year headers.
func MortalityConfig() TidyConfig {
	return TidyConfig{
		Dataset:        "mortality",
		EntityColumn:   "Country",
		MetricColumn:   ColumnMortalityRate,
		CaseConvention: CaseUpper,
		OnDecodeError:  DecodeFail,
	}
}

// GDPConfig mirrors the GDP source: geo and name columns restricted to 2000-2010.
func GDPConfig() TidyConfig {
	return TidyConfig{
		Dataset:        "gdp",
		EntityColumn:   "geo",
		NameColumn:     ColumnName,
		MetricColumn:   ColumnGDPPerCapita,
		CaseConvention: CaseUpper,
		Window:         &YearWindow{From: 2000, To: 2010},
		OnDecodeError:  DecodeFail,
	}
}

package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// missingTokens are cell contents treated as an absent measurement.
var missingTokens = map[string]struct{}{
	"":     {},
	"-":    {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// IsMissing reports whether a raw cell holds no measurement.
func IsMissing(raw string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// ParseMeasurement decodes a metric cell. present is false for missing cells,
// which are never turned into zero.
func ParseMeasurement(raw string) (value float64, present bool, err error) {
	if IsMissing(raw) {
		return 0, false, nil
	}
	trimmed := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: unable to coerce %q to float", ErrInvalidValue, raw)
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	if math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("%w: infinite value %q", ErrInvalidValue, raw)
	}
	return f, true, nil
}

// ParseYear decodes an integer year cell. Float spellings with no fraction
// ("2001.0") are accepted.
func ParseYear(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if i, err := strconv.Atoi(trimmed); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && math.Mod(f, 1) == 0 {
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: unable to coerce %q to year", ErrInvalidValue, raw)
}

// FormatValue renders a float with the shortest representation that round-trips.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

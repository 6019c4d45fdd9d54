package merge

import "strings"

// NameResolver maps a canonical entity code to a display name.
type NameResolver interface {
	Resolve(entityCode string) (string, bool)
}

// StaticNames is a fixed entity code to display name lookup. Lookups ignore case
// so the table serves upper and lower case conventions alike.
type StaticNames map[string]string

// Resolve implements NameResolver.
func (n StaticNames) Resolve(entityCode string) (string, bool) {
	if name, ok := n[entityCode]; ok && name != "" {
		return name, true
	}
	name, ok := n[strings.ToUpper(entityCode)]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// DefaultNames covers the countries present in the bundled datasets.
func DefaultNames() StaticNames {
	return StaticNames{
		"USA": "United States",
		"CAN": "Canada",
		"MEX": "Mexico",
		"GBR": "United Kingdom",
		"FRA": "France",
		"DEU": "Germany",
		"ITA": "Italy",
		"ESP": "Spain",
		"BRA": "Brazil",
		"IND": "India",
		"CHN": "China",
		"JPN": "Japan",
		"AUS": "Australia",
		"ZAF": "South Africa",
		"NGA": "Nigeria",
	}
}

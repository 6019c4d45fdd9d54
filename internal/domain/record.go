package domain

import "strings"

// Column names shared by the tidy and merged flat files.
const (
	ColumnEntity        = "geo"
	ColumnName          = "name"
	ColumnYear          = "year"
	ColumnMortalityRate = "mortality_rate"
	ColumnGDPPerCapita  = "gdpcapita"
)

// MergedColumns is the fixed column order of the merged table.
var MergedColumns = []string{
	ColumnEntity,
	ColumnName,
	ColumnMortalityRate,
	ColumnGDPPerCapita,
	ColumnYear,
}

// WideTable is a raw input table with one row per entity and one column per year.
type WideTable struct {
	Source  string
	Headers []string
	Rows    [][]string
	// RowNumbers holds the 1-based source row of each data row for error reporting.
	RowNumbers []int
}

// ColumnIndex returns the index of the named header. Exact matches win over
// case-insensitive ones.
func (t WideTable) ColumnIndex(name string) (int, bool) {
	fallback := -1
	for idx, header := range t.Headers {
		if header == name {
			return idx, true
		}
		if fallback < 0 && strings.EqualFold(header, name) {
			fallback = idx
		}
	}
	if fallback >= 0 {
		return fallback, true
	}
	return -1, false
}

// RowNumber returns the source line for a data row.
func (t WideTable) RowNumber(rowIdx int) int {
	if rowIdx < len(t.RowNumbers) {
		return t.RowNumbers[rowIdx]
	}
	return rowIdx + 2
}

// TidyRecord is a single (entity, year) observation of one metric.
type TidyRecord struct {
	EntityCode  string  `json:"geo"`
	Year        int     `json:"year"`
	Value       float64 `json:"value"`
	DisplayName string  `json:"name,omitempty"`
}

// Key returns the join key of the record.
func (r TidyRecord) Key() RecordKey {
	return RecordKey{EntityCode: r.EntityCode, Year: r.Year}
}

// MergedRecord is one row of the joined analytical table.
type MergedRecord struct {
	EntityCode    string  `json:"geo"`
	DisplayName   string  `json:"name"`
	MortalityRate float64 `json:"mortality_rate"`
	GDPPerCapita  float64 `json:"gdpcapita"`
	Year          int     `json:"year"`
}

// Key returns the join key of the record.
func (r MergedRecord) Key() RecordKey {
	return RecordKey{EntityCode: r.EntityCode, Year: r.Year}
}

// RecordKey identifies an observation across tidy and merged tables.
type RecordKey struct {
	EntityCode string
	Year       int
}

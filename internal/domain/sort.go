package domain

import "sort"

// SortTidyRecords orders records ascending by (entity code, year).
func SortTidyRecords(records []TidyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return keyLess(records[i].Key(), records[j].Key())
	})
}

// SortMergedRecords orders records ascending by (entity code, year).
func SortMergedRecords(records []MergedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return keyLess(records[i].Key(), records[j].Key())
	})
}

func keyLess(left, right RecordKey) bool {
	if left.EntityCode != right.EntityCode {
		return left.EntityCode < right.EntityCode
	}
	return left.Year < right.Year
}

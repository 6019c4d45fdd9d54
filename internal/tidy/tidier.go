// Package tidy melts wide year-per-column tables into one row per observation.
package tidy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rpattn/tidyjoin/internal/domain"
)

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Result is the output of a single Tidy call.
type Result struct {
	Records []domain.TidyRecord
	Summary domain.TidySummary
}

// Tidier reshapes one dataset according to its declared schema.
type Tidier struct {
	config domain.TidyConfig
}

// NewTidier validates the configuration and returns a tidier for it.
func NewTidier(config domain.TidyConfig) (*Tidier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.OnDecodeError == "" {
		config.OnDecodeError = domain.DecodeFail
	}
	return &Tidier{config: config}, nil
}

// Config returns the declaration the tidier was built with.
func (t *Tidier) Config() domain.TidyConfig {
	return t.config
}

type yearColumn struct {
	index int
	year  int
}

// Tidy emits one record per (row, year column) pair, dropping years outside the
// window and missing values, and returns the records sorted by (entity, year).
func (t *Tidier) Tidy(table domain.WideTable) (Result, error) {
	cfg := t.config
	summary := domain.TidySummary{
		Dataset:        cfg.Dataset,
		Rows:           len(table.Rows),
		SkippedColumns: []string{},
	}

	entityIdx, ok := table.ColumnIndex(cfg.EntityColumn)
	if !ok {
		return Result{Summary: summary}, fmt.Errorf("%w: %s table %s has no %q column", domain.ErrSchema, cfg.Dataset, table.Source, cfg.EntityColumn)
	}
	nameIdx := -1
	if cfg.NameColumn != "" {
		idx, ok := table.ColumnIndex(cfg.NameColumn)
		if !ok {
			return Result{Summary: summary}, fmt.Errorf("%w: %s table %s has no %q column", domain.ErrSchema, cfg.Dataset, table.Source, cfg.NameColumn)
		}
		nameIdx = idx
	}

	columns, skipped, err := t.yearColumns(table.Headers, entityIdx, nameIdx)
	if err != nil {
		return Result{Summary: summary}, err
	}
	summary.SkippedColumns = skipped
	summary.YearColumns = len(columns)
	if len(columns) == 0 {
		return Result{Summary: summary}, fmt.Errorf("%w: %s table %s has no year columns", domain.ErrSchema, cfg.Dataset, table.Source)
	}

	convention := cfg.Convention()
	records := make([]domain.TidyRecord, 0, len(table.Rows)*len(columns))
	seen := make(map[domain.RecordKey]int, cap(records))
	entities := make(map[string]struct{})

	for rowIdx, row := range table.Rows {
		rowNumber := table.RowNumber(rowIdx)
		code := convention.Canonicalize(cell(row, entityIdx))
		if code == "" {
			return Result{Summary: summary}, fmt.Errorf("%w: %s row %d has an empty %q", domain.ErrSchema, cfg.Dataset, rowNumber, cfg.EntityColumn)
		}
		var name string
		if nameIdx >= 0 {
			name = strings.TrimSpace(cell(row, nameIdx))
		}

		for _, col := range columns {
			summary.Candidates++
			// cells outside the window are never parsed
			if !cfg.Window.Contains(col.year) {
				summary.DroppedWindow++
				continue
			}
			value, present, err := domain.ParseMeasurement(cell(row, col.index))
			if err != nil {
				return Result{Summary: summary}, fmt.Errorf("%s row %d column %q: %w", cfg.Dataset, rowNumber, table.Headers[col.index], err)
			}
			if !present {
				summary.DroppedMissing++
				continue
			}

			record := domain.TidyRecord{
				EntityCode:  code,
				Year:        col.year,
				Value:       value,
				DisplayName: name,
			}
			if prev, dup := seen[record.Key()]; dup {
				return Result{Summary: summary}, fmt.Errorf("%w: %s %s/%d appears on rows %d and %d", domain.ErrDuplicateKey, cfg.Dataset, code, col.year, prev, rowNumber)
			}
			seen[record.Key()] = rowNumber
			entities[code] = struct{}{}
			summary.Years.Observe(col.year, len(records) == 0)
			records = append(records, record)
		}
	}

	domain.SortTidyRecords(records)
	summary.Emitted = len(records)
	summary.Entities = len(entities)
	return Result{Records: records, Summary: summary}, nil
}

// yearColumns decodes every non-identifier header. Headers that fail to decode
// abort the run unless the policy is skip, in which case they are reported.
func (t *Tidier) yearColumns(headers []string, entityIdx, nameIdx int) ([]yearColumn, []string, error) {
	var columns []yearColumn
	skipped := []string{}
	years := make(map[int]string)
	for idx, header := range headers {
		if idx == entityIdx || idx == nameIdx {
			continue
		}
		year, err := DecodeYear(header, t.config.YearPrefix)
		if err == nil {
			if prev, dup := years[year]; dup {
				err = fmt.Errorf("%w: headers %q and %q both decode to %d", domain.ErrDecode, prev, header, year)
			}
		}
		if err != nil {
			if t.config.OnDecodeError == domain.DecodeSkip {
				skipped = append(skipped, header)
				continue
			}
			return nil, nil, fmt.Errorf("%s: %w", t.config.Dataset, err)
		}
		years[year] = header
		columns = append(columns, yearColumn{index: idx, year: year})
	}
	return columns, skipped, nil
}

// DecodeYear strips the literal prefix from a header and parses a 4-digit year.
func DecodeYear(header, prefix string) (int, error) {
	label := strings.TrimSpace(header)
	if prefix != "" {
		if !strings.HasPrefix(label, prefix) {
			return 0, fmt.Errorf("%w: header %q lacks prefix %q", domain.ErrDecode, header, prefix)
		}
		label = strings.TrimPrefix(label, prefix)
	}
	if !yearPattern.MatchString(label) {
		return 0, fmt.Errorf("%w: header %q is not a 4-digit year", domain.ErrDecode, header)
	}
	year, err := strconv.Atoi(label)
	if err != nil {
		return 0, fmt.Errorf("%w: header %q: %v", domain.ErrDecode, header, err)
	}
	return year, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

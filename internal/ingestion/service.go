package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/tidyjoin/internal/domain"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Service reads raw and materialized tables from flat files.
type Service struct{}

// NewService creates a new ingestion service.
func NewService() *Service {
	return &Service{}
}

// Request describes one table to load.
type Request struct {
	FileName       string
	HeaderRowIndex *int
	Data           io.Reader
}

type tableData struct {
	headers    []string
	rows       [][]string
	rowNumbers []int
}

// LoadWide parses a wide table. Headers are trimmed but otherwise kept verbatim
// so year labels can be decoded by the tidier.
func (s *Service) LoadWide(ctx context.Context, req Request) (domain.WideTable, error) {
	table, err := s.load(ctx, req)
	if err != nil {
		return domain.WideTable{}, err
	}
	return domain.WideTable{
		Source:     req.FileName,
		Headers:    table.headers,
		Rows:       table.rows,
		RowNumbers: table.rowNumbers,
	}, nil
}

// LoadTidy parses a materialized tidy table with columns geo, [name,] year, metric.
func (s *Service) LoadTidy(ctx context.Context, req Request, metric string) ([]domain.TidyRecord, error) {
	table, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	cols, err := resolveColumns(req.FileName, table.headers, []string{domain.ColumnEntity, domain.ColumnYear, metric}, []string{domain.ColumnName})
	if err != nil {
		return nil, err
	}

	records := make([]domain.TidyRecord, 0, len(table.rows))
	for rowIdx, row := range table.rows {
		rowNumber := table.rowNumbers[rowIdx]
		year, err := domain.ParseYear(row[cols[domain.ColumnYear]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", req.FileName, rowNumber, err)
		}
		value, present, err := domain.ParseMeasurement(row[cols[metric]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", req.FileName, rowNumber, err)
		}
		if !present {
			return nil, fmt.Errorf("%w: %s row %d has no %s value", domain.ErrInvalidValue, req.FileName, rowNumber, metric)
		}
		record := domain.TidyRecord{
			EntityCode: strings.TrimSpace(row[cols[domain.ColumnEntity]]),
			Year:       year,
			Value:      value,
		}
		if idx, ok := cols[domain.ColumnName]; ok {
			record.DisplayName = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}
	return records, nil
}

// LoadMerged parses a merged table as written by the merge stage.
func (s *Service) LoadMerged(ctx context.Context, req Request) ([]domain.MergedRecord, error) {
	table, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	cols, err := resolveColumns(req.FileName, table.headers, domain.MergedColumns, nil)
	if err != nil {
		return nil, err
	}

	records := make([]domain.MergedRecord, 0, len(table.rows))
	for rowIdx, row := range table.rows {
		rowNumber := table.rowNumbers[rowIdx]
		year, err := domain.ParseYear(row[cols[domain.ColumnYear]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", req.FileName, rowNumber, err)
		}
		mortality, err := requiredMeasurement(row[cols[domain.ColumnMortalityRate]], domain.ColumnMortalityRate)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", req.FileName, rowNumber, err)
		}
		gdp, err := requiredMeasurement(row[cols[domain.ColumnGDPPerCapita]], domain.ColumnGDPPerCapita)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", req.FileName, rowNumber, err)
		}
		records = append(records, domain.MergedRecord{
			EntityCode:    strings.TrimSpace(row[cols[domain.ColumnEntity]]),
			DisplayName:   strings.TrimSpace(row[cols[domain.ColumnName]]),
			MortalityRate: mortality,
			GDPPerCapita:  gdp,
			Year:          year,
		})
	}
	return records, nil
}

// ReadWideFile loads a wide table from disk. A nil headerRowIndex selects the
// first non-blank row as the header.
func (s *Service) ReadWideFile(ctx context.Context, path string, headerRowIndex *int) (domain.WideTable, error) {
	var table domain.WideTable
	err := withFile(path, func(f *os.File) error {
		var err error
		table, err = s.LoadWide(ctx, Request{FileName: path, HeaderRowIndex: headerRowIndex, Data: f})
		return err
	})
	return table, err
}

// ReadTidyFile loads a tidy table from disk.
func (s *Service) ReadTidyFile(ctx context.Context, path, metric string) ([]domain.TidyRecord, error) {
	var records []domain.TidyRecord
	err := withFile(path, func(f *os.File) error {
		var err error
		records, err = s.LoadTidy(ctx, Request{FileName: path, Data: f}, metric)
		return err
	})
	return records, err
}

// ReadMergedFile loads a merged table from disk.
func (s *Service) ReadMergedFile(ctx context.Context, path string) ([]domain.MergedRecord, error) {
	var records []domain.MergedRecord
	err := withFile(path, func(f *os.File) error {
		var err error
		records, err = s.LoadMerged(ctx, Request{FileName: path, Data: f})
		return err
	})
	return records, err
}

func withFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}

func (s *Service) load(ctx context.Context, req Request) (tableData, error) {
	if req.Data == nil {
		return tableData{}, errors.New("data reader is required")
	}
	if err := ctx.Err(); err != nil {
		return tableData{}, err
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read %s: %w", req.FileName, err)
	}
	if len(payload) == 0 {
		return tableData{}, fmt.Errorf("%w: %s is empty", domain.ErrSchema, req.FileName)
	}

	table, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return tableData{}, err
	}
	if len(table.headers) == 0 {
		return tableData{}, fmt.Errorf("%w: no header row detected in %s", domain.ErrSchema, req.FileName)
	}
	return table, nil
}

func requiredMeasurement(raw, column string) (float64, error) {
	value, present, err := domain.ParseMeasurement(raw)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, fmt.Errorf("%w: missing %s", domain.ErrInvalidValue, column)
	}
	return value, nil
}

// resolveColumns maps each required and optional column name to its index.
func resolveColumns(fileName string, headers []string, required, optional []string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	for idx, header := range headers {
		key := strings.ToLower(header)
		if _, exists := index[key]; !exists {
			index[key] = idx
		}
	}

	cols := make(map[string]int, len(required)+len(optional))
	var missing []string
	for _, name := range required {
		idx, ok := index[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing column(s) %s", domain.ErrSchema, fileName, strings.Join(missing, ", "))
	}
	for _, name := range optional {
		if idx, ok := index[strings.ToLower(name)]; ok {
			cols[name] = idx
		}
	}
	return cols, nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, fmt.Errorf("%w: no rows found in file", domain.ErrSchema)
	}

	var headerRow []string
	start := 0

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("%w: header row %d is out of range", domain.ErrSchema, *headerRowIndex+1)
		}
		if isBlankRow(records[*headerRowIndex]) {
			return tableData{}, fmt.Errorf("%w: selected header row %d is empty", domain.ErrSchema, *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		start = *headerRowIndex + 1
	} else {
		for idx, row := range records {
			if isBlankRow(row) {
				continue
			}
			headerRow = row
			start = idx + 1
			break
		}
	}

	if headerRow == nil {
		return tableData{}, fmt.Errorf("%w: header row could not be detected", domain.ErrSchema)
	}

	headers := trimHeaders(headerRow)

	var dataRows [][]string
	var rowNumbers []int
	for idx := start; idx < len(records); idx++ {
		row := records[idx]
		if isBlankRow(row) {
			continue
		}
		if extra := firstCellBeyond(row, len(headers)); extra >= 0 {
			return tableData{}, fmt.Errorf("%w: row %d has a value in column %d but the header has %d columns", domain.ErrSchema, idx+1, extra+1, len(headers))
		}
		dataRows = append(dataRows, padRow(row, len(headers)))
		rowNumbers = append(rowNumbers, idx+1)
	}

	return tableData{
		headers:    headers,
		rows:       dataRows,
		rowNumbers: rowNumbers,
	}, nil
}

// firstCellBeyond returns the index of the first non-blank cell at or past
// width, or -1. Such cells have no header to be decoded against.
func firstCellBeyond(row []string, width int) int {
	for idx := width; idx < len(row); idx++ {
		if strings.TrimSpace(row[idx]) != "" {
			return idx
		}
	}
	return -1
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// trimHeaders drops trailing empty header cells, which spreadsheets often emit.
// Blank headers between named ones are kept so the tidier rejects or skips them.
func trimHeaders(raw []string) []string {
	end := len(raw)
	for end > 0 && strings.TrimSpace(raw[end-1]) == "" {
		end--
	}
	headers := make([]string, end)
	for idx := 0; idx < end; idx++ {
		headers[idx] = strings.TrimSpace(raw[idx])
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/tidyjoin/internal/domain"
)

// Table is a header plus typed rows ready to be written.
type Table struct {
	Headers []string
	Rows    [][]any
}

// Result describes a written file.
type Result struct {
	Path         string
	RowsExported int
	BytesWritten int64
	WrittenAt    time.Time
}

// Service writes tables to flat files. A destination is only ever replaced by a
// complete file: rows go to a temp file in the same directory which is synced
// and renamed over the final path.
type Service struct {
	runID uuid.UUID
	now   func() time.Time
}

type Option func(*Service)

// WithRunID tags temp files with the pipeline run identifier.
func WithRunID(id uuid.UUID) Option {
	return func(s *Service) {
		if id != uuid.Nil {
			s.runID = id
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(opts ...Option) *Service {
	service := &Service{
		runID: uuid.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// TidyTable lays out tidy records as geo, [name,] year, metric.
func TidyTable(metric string, records []domain.TidyRecord, includeName bool) Table {
	headers := []string{domain.ColumnEntity}
	if includeName {
		headers = append(headers, domain.ColumnName)
	}
	headers = append(headers, domain.ColumnYear, metric)

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, 0, len(headers))
		row = append(row, record.EntityCode)
		if includeName {
			row = append(row, record.DisplayName)
		}
		row = append(row, record.Year, record.Value)
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}
}

// MergedTable lays out merged records in the fixed merged column order.
func MergedTable(records []domain.MergedRecord) Table {
	rows := make([][]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, []any{
			record.EntityCode,
			record.DisplayName,
			record.MortalityRate,
			record.GDPPerCapita,
			record.Year,
		})
	}
	return Table{Headers: append([]string(nil), domain.MergedColumns...), Rows: rows}
}

// Write stores the table at path, choosing the format from the extension.
func (s *Service) Write(ctx context.Context, path string, table Table) (Result, error) {
	var encode func(io.Writer, Table) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		encode = writeCSV
	case ".xlsx":
		encode = writeXLSX
	default:
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	return s.WriteWith(ctx, path, len(table.Rows), func(w io.Writer) error {
		return encode(w, table)
	})
}

// WriteWith runs encode against a temp file next to path and promotes it once
// encode succeeds. rows is reported back in the result.
func (s *Service) WriteWith(ctx context.Context, path string, rows int, encode func(io.Writer) error) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("output path is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	dir := filepath.Dir(path)
	if err := ensureDirectory(dir); err != nil {
		return Result{}, err
	}

	pattern := fmt.Sprintf(".%s-%s-*%s", sanitizeFileComponent(filepath.Base(path)), s.runID, filepath.Ext(path))
	tempFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	buffered := bufio.NewWriterSize(tempFile, 1<<16)
	counter := &countingWriter{writer: buffered}
	if err := encode(counter); err != nil {
		return Result{}, err
	}
	if err := buffered.Flush(); err != nil {
		return Result{}, fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tempFile.Sync(); err != nil {
		return Result{}, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tempFile.Close(); err != nil {
		return Result{}, fmt.Errorf("close %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := os.Rename(tempPath, path); err != nil {
		return Result{}, fmt.Errorf("promote %s: %w", path, err)
	}
	cleanup = false

	return Result{
		Path:         path,
		RowsExported: rows,
		BytesWritten: counter.count,
		WrittenAt:    s.now(),
	}, nil
}

func writeCSV(w io.Writer, table Table) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(table.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(table.Headers))
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

const dataSheet = "data"

func writeXLSX(w io.Writer, table Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := FillSheet(f, dataSheet, table); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("encode xlsx: %w", err)
	}
	return nil
}

// FillSheet writes the table into a sheet named name, renaming the default
// sheet of a fresh workbook.
func FillSheet(f *excelize.File, name string, table Table) error {
	sheets := f.GetSheetList()
	if len(sheets) == 1 && sheets[0] == "Sheet1" && name != "Sheet1" {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header := make([]any, len(table.Headers))
	for i, h := range table.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for idx, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		values := append([]any(nil), row...)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", idx+2, err)
		}
	}
	return nil
}

func ensureDirectory(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("output directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure output directory: %w", err)
	}
	return nil
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return domain.FormatValue(v)
	case float32:
		return domain.FormatValue(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

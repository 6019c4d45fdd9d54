// Package plot renders the mortality versus GDP scatter from the merged table.
package plot

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/rpattn/tidyjoin/internal/domain"
	"github.com/rpattn/tidyjoin/internal/export"
)

const (
	xLabel = "GDP per Capita (USD)"
	yLabel = "Child Mortality Rate (per 1000 live births)"
)

// Writer is the subset of the export service used to place the artifact.
type Writer interface {
	WriteWith(ctx context.Context, path string, rows int, encode func(io.Writer) error) (export.Result, error)
}

// Renderer draws the scatter plot. The output format follows the extension:
// png and svg are images, xlsx is a workbook holding the data and a native chart.
type Renderer struct {
	writer Writer
	width  vg.Length
	height vg.Length
}

// NewRenderer creates a renderer producing a 12x8 inch figure.
func NewRenderer(writer Writer) *Renderer {
	return &Renderer{writer: writer, width: 12 * vg.Inch, height: 8 * vg.Inch}
}

// Render validates the merged table and writes the plot to path.
func (r *Renderer) Render(ctx context.Context, path string, records []domain.MergedRecord) (export.Result, error) {
	if err := CheckContract(records); err != nil {
		return export.Result{}, err
	}
	groups := groupByYear(records)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg":
		p, err := r.build(groups)
		if err != nil {
			return export.Result{}, err
		}
		format := strings.TrimPrefix(ext, ".")
		return r.writer.WriteWith(ctx, path, len(records), func(w io.Writer) error {
			wt, err := p.WriterTo(r.width, r.height, format)
			if err != nil {
				return fmt.Errorf("prepare %s canvas: %w", format, err)
			}
			if _, err := wt.WriteTo(w); err != nil {
				return fmt.Errorf("encode %s: %w", format, err)
			}
			return nil
		})
	case ".xlsx":
		return r.writer.WriteWith(ctx, path, len(records), func(w io.Writer) error {
			return writeWorkbook(w, records, groups)
		})
	default:
		return export.Result{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// CheckContract verifies the table can be plotted: at least one row, a name and
// entity on every row, and finite values in the plotted columns.
func CheckContract(records []domain.MergedRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: merged table is empty", domain.ErrContract)
	}
	for idx, record := range records {
		if strings.TrimSpace(record.EntityCode) == "" {
			return fmt.Errorf("%w: row %d has no %s", domain.ErrContract, idx+1, domain.ColumnEntity)
		}
		if !finite(record.GDPPerCapita) || !finite(record.MortalityRate) {
			return fmt.Errorf("%w: row %d (%s/%d) has a non-finite plotted value", domain.ErrContract, idx+1, record.EntityCode, record.Year)
		}
	}
	return nil
}

type yearGroup struct {
	year   int
	points plotter.XYs
}

func groupByYear(records []domain.MergedRecord) []yearGroup {
	byYear := make(map[int]plotter.XYs)
	for _, record := range records {
		byYear[record.Year] = append(byYear[record.Year], plotter.XY{X: record.GDPPerCapita, Y: record.MortalityRate})
	}
	groups := make([]yearGroup, 0, len(byYear))
	for year, points := range byYear {
		groups = append(groups, yearGroup{year: year, points: points})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].year < groups[j].year })
	return groups
}

func (r *Renderer) build(groups []yearGroup) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title(groups)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	colors := yearColors(groups)
	for idx, group := range groups {
		scatter, err := plotter.NewScatter(group.points)
		if err != nil {
			return nil, fmt.Errorf("scatter for %d: %w", group.year, err)
		}
		scatter.GlyphStyle = draw.GlyphStyle{
			Color:  colors[idx],
			Radius: vg.Points(4),
			Shape:  draw.CircleGlyph{},
		}
		p.Add(scatter)
		p.Legend.Add(strconv.Itoa(group.year), scatter)
	}
	return p, nil
}

// yearColors spreads the years over a continuous palette, oldest first.
func yearColors(groups []yearGroup) []color.Color {
	colors := make([]color.Color, len(groups))
	if len(groups) == 0 {
		return colors
	}
	cmap := moreland.SmoothBlueRed()
	low, high := float64(groups[0].year), float64(groups[len(groups)-1].year)
	if high == low {
		high = low + 1
	}
	cmap.SetMin(low)
	cmap.SetMax(high)
	for idx, group := range groups {
		c, err := cmap.At(float64(group.year))
		if err != nil {
			c = color.Gray{Y: 0x80}
		}
		colors[idx] = c
	}
	return colors
}

func title(groups []yearGroup) string {
	base := "Child Mortality Rate vs GDP per Capita"
	if len(groups) == 0 {
		return base
	}
	first, last := groups[0].year, groups[len(groups)-1].year
	if first == last {
		return fmt.Sprintf("%s (%d)", base, first)
	}
	return fmt.Sprintf("%s (%d-%d)", base, first, last)
}

const (
	dataSheet  = "data"
	chartSheet = "chart"
)

// writeWorkbook lays rows out grouped by year so each year is one contiguous
// chart series.
func writeWorkbook(w io.Writer, records []domain.MergedRecord, groups []yearGroup) error {
	ordered := append([]domain.MergedRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Year != ordered[j].Year {
			return ordered[i].Year < ordered[j].Year
		}
		return ordered[i].EntityCode < ordered[j].EntityCode
	})

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := export.FillSheet(f, dataSheet, export.MergedTable(ordered)); err != nil {
		return err
	}
	if _, err := f.NewSheet(chartSheet); err != nil {
		return fmt.Errorf("create chart sheet: %w", err)
	}

	series := make([]excelize.ChartSeries, 0, len(groups))
	row := 2
	for idx, group := range groups {
		labelCell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(chartSheet, labelCell, strconv.Itoa(group.year)); err != nil {
			return fmt.Errorf("write series label: %w", err)
		}
		first, last := row, row+len(group.points)-1
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$A$%d", chartSheet, idx+1),
			Categories: fmt.Sprintf("%s!$D$%d:$D$%d", dataSheet, first, last),
			Values:     fmt.Sprintf("%s!$C$%d:$C$%d", dataSheet, first, last),
			Marker:     excelize.ChartMarker{Symbol: "circle", Size: 7},
		})
		row = last + 1
	}

	err := f.AddChart(chartSheet, "C1", &excelize.Chart{
		Type:   excelize.Scatter,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: title(groups)}},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: xLabel}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: yLabel}}},
		Legend: excelize.ChartLegend{Position: "right"},
		Dimension: excelize.ChartDimension{
			Width:  960,
			Height: 640,
		},
	})
	if err != nil {
		return fmt.Errorf("add chart: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("encode xlsx: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

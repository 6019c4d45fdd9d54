// Package pipeline runs the tidy, merge and plot stages over their files.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/tidyjoin/internal/config"
	"github.com/rpattn/tidyjoin/internal/domain"
	"github.com/rpattn/tidyjoin/internal/export"
	"github.com/rpattn/tidyjoin/internal/ingestion"
	"github.com/rpattn/tidyjoin/internal/merge"
	"github.com/rpattn/tidyjoin/internal/plot"
	"github.com/rpattn/tidyjoin/internal/report"
	"github.com/rpattn/tidyjoin/internal/tidy"
)

// Summary collects the per-stage summaries of a full run.
type Summary struct {
	RunID     uuid.UUID           `json:"runId"`
	Mortality domain.TidySummary  `json:"mortality"`
	GDP       domain.TidySummary  `json:"gdp"`
	Merge     domain.MergeSummary `json:"merge"`
	Report    report.Summary      `json:"report"`
}

// Pipeline wires the stages to the configured files. Stages communicate only
// through the files they write.
type Pipeline struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     uuid.UUID
	reader    *ingestion.Service
	writer    *export.Service
	mortality *tidy.Tidier
	gdp       *tidy.Tidier
	merger    *merge.Merger
	renderer  *plot.Renderer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id uuid.UUID) Option {
	return func(p *Pipeline) {
		if id != uuid.Nil {
			p.runID = id
		}
	}
}

// New validates both dataset declarations and builds the stages.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{cfg: cfg, runID: uuid.New()}
	for _, opt := range opts {
		opt(p)
	}

	mortality, err := tidy.NewTidier(cfg.Mortality.Tidy)
	if err != nil {
		return nil, fmt.Errorf("mortality tidier: %w", err)
	}
	gdp, err := tidy.NewTidier(cfg.GDP.Tidy)
	if err != nil {
		return nil, fmt.Errorf("gdp tidier: %w", err)
	}

	p.logger = logger.With(zap.String("run_id", p.runID.String()))
	p.reader = ingestion.NewService()
	p.writer = export.NewService(export.WithRunID(p.runID))
	p.mortality = mortality
	p.gdp = gdp
	p.merger = merge.NewMerger(
		merge.WithNames(cfg.Merge.Names),
		merge.WithUnresolvedNamePolicy(cfg.Merge.UnresolvedNames),
	)
	p.renderer = plot.NewRenderer(p.writer)
	return p, nil
}

// RunID identifies this pipeline instance in logs and temp file names.
func (p *Pipeline) RunID() uuid.UUID {
	return p.runID
}

// TidyMortality reshapes the mortality input and writes its tidy file.
func (p *Pipeline) TidyMortality(ctx context.Context) (domain.TidySummary, error) {
	return p.tidyStage(ctx, p.mortality, p.cfg.Mortality)
}

// TidyGDP reshapes the GDP input and writes its tidy file.
func (p *Pipeline) TidyGDP(ctx context.Context) (domain.TidySummary, error) {
	return p.tidyStage(ctx, p.gdp, p.cfg.GDP)
}

func (p *Pipeline) tidyStage(ctx context.Context, tidier *tidy.Tidier, ds config.DatasetConfig) (domain.TidySummary, error) {
	tc := tidier.Config()
	log := p.logger.With(zap.String("stage", "tidy"), zap.String("dataset", tc.Dataset))
	log.Debug("loading wide table", zap.String("input", ds.Input), zap.Int("header_row", ds.HeaderRow))

	table, err := p.reader.ReadWideFile(ctx, ds.Input, ds.HeaderRowIndex())
	if err != nil {
		return domain.TidySummary{Dataset: tc.Dataset}, fmt.Errorf("tidy %s: %w", tc.Dataset, err)
	}

	result, err := tidier.Tidy(table)
	if err != nil {
		return result.Summary, fmt.Errorf("tidy %s: %w", tc.Dataset, err)
	}
	for _, column := range result.Summary.SkippedColumns {
		log.Warn("skipped undecodable year column", zap.String("column", column), zap.String("prefix", tc.YearPrefix))
	}

	written, err := p.writer.Write(ctx, ds.Output, export.TidyTable(tc.MetricColumn, result.Records, tc.NameColumn != ""))
	if err != nil {
		return result.Summary, fmt.Errorf("write tidy %s: %w", tc.Dataset, err)
	}

	log.Info("tidy stage completed",
		zap.String("output", written.Path),
		zap.Int("rows", result.Summary.Rows),
		zap.Int("year_columns", result.Summary.YearColumns),
		zap.Int("candidates", result.Summary.Candidates),
		zap.Int("records", result.Summary.Emitted),
		zap.Int("dropped_missing", result.Summary.DroppedMissing),
		zap.Int("dropped_window", result.Summary.DroppedWindow),
		zap.Int("entities", result.Summary.Entities),
		zap.Int("year_min", result.Summary.Years.Min),
		zap.Int("year_max", result.Summary.Years.Max),
		zap.Stringer("window", tc.Window),
	)
	return result.Summary, nil
}

// Merge joins the two tidy files and writes the merged table. The run fails
// before writing when the datasets disagree on case convention or when no row
// survives the join from non-empty inputs.
func (p *Pipeline) Merge(ctx context.Context) (domain.MergeSummary, error) {
	log := p.logger.With(zap.String("stage", "merge"))

	left, right := p.mortality.Config(), p.gdp.Config()
	if left.Convention() != right.Convention() {
		return domain.MergeSummary{}, fmt.Errorf("%w: mortality uses %s, gdp uses %s", domain.ErrIncompatibleConventions, left.Convention(), right.Convention())
	}

	mortality, err := p.reader.ReadTidyFile(ctx, p.cfg.Mortality.Output, left.MetricColumn)
	if err != nil {
		return domain.MergeSummary{}, fmt.Errorf("merge: load mortality: %w", err)
	}
	gdp, err := p.reader.ReadTidyFile(ctx, p.cfg.GDP.Output, right.MetricColumn)
	if err != nil {
		return domain.MergeSummary{}, fmt.Errorf("merge: load gdp: %w", err)
	}

	result, err := p.merger.Merge(mortality, gdp)
	if err != nil {
		return result.Summary, fmt.Errorf("merge: %w", err)
	}
	if result.Summary.EmptyJoin {
		if result.Summary.Matched > 0 {
			return result.Summary, fmt.Errorf("%w: all %d matched rows were excluded for unresolved display names (%s)", domain.ErrEmptyJoin, result.Summary.Matched, strings.Join(result.Summary.Unnamed, ", "))
		}
		if overlap := merge.CaseFoldOverlap(mortality, gdp); overlap > 0 {
			return result.Summary, fmt.Errorf("%w: %d keys match only when case is ignored", domain.ErrEmptyJoin, overlap)
		}
		return result.Summary, domain.ErrEmptyJoin
	}
	if len(result.Summary.Unnamed) > 0 {
		log.Warn("entity codes without a display name",
			zap.Strings("codes", result.Summary.Unnamed),
			zap.String("policy", string(p.cfg.Merge.UnresolvedNames)),
			zap.Int("excluded_rows", result.Summary.Excluded),
		)
	}

	written, err := p.writer.Write(ctx, p.cfg.Merge.Output, export.MergedTable(result.Records))
	if err != nil {
		return result.Summary, fmt.Errorf("write merged: %w", err)
	}

	log.Info("merge stage completed",
		zap.String("output", written.Path),
		zap.Int("mortality_rows", result.Summary.MortalityRows),
		zap.Int("gdp_rows", result.Summary.GDPRows),
		zap.Int("matched", result.Summary.Matched),
		zap.Int("mortality_only", result.Summary.MortalityOnly),
		zap.Int("gdp_only", result.Summary.GDPOnly),
		zap.Int("records", result.Summary.Emitted),
		zap.Int("entities", result.Summary.Entities),
		zap.Int("year_min", result.Summary.Years.Min),
		zap.Int("year_max", result.Summary.Years.Max),
	)
	return result.Summary, nil
}

// Plot renders the merged file and returns its descriptive statistics.
func (p *Pipeline) Plot(ctx context.Context) (report.Summary, error) {
	log := p.logger.With(zap.String("stage", "plot"))

	records, err := p.reader.ReadMergedFile(ctx, p.cfg.Merge.Output)
	if err != nil {
		return report.Summary{}, fmt.Errorf("plot: load merged: %w", err)
	}
	written, err := p.renderer.Render(ctx, p.cfg.Plot.Output, records)
	if err != nil {
		return report.Summary{}, fmt.Errorf("plot: %w", err)
	}

	summary := report.Describe(records)
	log.Info("plot stage completed",
		zap.String("output", written.Path),
		zap.Int64("bytes", written.BytesWritten),
		zap.Int("observations", summary.Observations),
		zap.Int("countries", summary.Countries),
	)
	return summary, nil
}

// Run executes every stage in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: p.runID}
	var err error

	if summary.Mortality, err = p.TidyMortality(ctx); err != nil {
		return summary, err
	}
	if summary.GDP, err = p.TidyGDP(ctx); err != nil {
		return summary, err
	}
	if summary.Merge, err = p.Merge(ctx); err != nil {
		return summary, err
	}
	if summary.Report, err = p.Plot(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rpattn/tidyjoin/internal/config"
	"github.com/rpattn/tidyjoin/internal/pipeline"
)

var (
	configDir string
	verbose   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tidyjoin",
	Short: "Tidy, join and plot child mortality and GDP per capita tables",
	Long: `tidyjoin reshapes the wide mortality and GDP tables into one row per
(country, year), inner-joins them and renders a scatter plot of mortality
against GDP per capita colored by year.

Each stage reads and writes the fixed paths from tidyjoin.yaml (or the
built-in defaults) so stages can be run one at a time or all together.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var tidyMortalityCmd = &cobra.Command{
	Use:   "tidy-mortality",
	Short: "Reshape the wide mortality table into tidy form",
	Args:  cobra.NoArgs,
	RunE: withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		_, err := p.TidyMortality(ctx)
		return err
	}),
}

var tidyGDPCmd = &cobra.Command{
	Use:   "tidy-gdp",
	Short: "Reshape the wide GDP table into tidy form",
	Args:  cobra.NoArgs,
	RunE: withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		_, err := p.TidyGDP(ctx)
		return err
	}),
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Inner-join the tidy mortality and GDP tables on (geo, year)",
	Args:  cobra.NoArgs,
	RunE: withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		_, err := p.Merge(ctx)
		return err
	}),
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the mortality vs GDP scatter plot from the merged table",
	Args:  cobra.NoArgs,
	RunE: withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		summary, err := p.Plot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\nSummary Statistics:\n%s\n", summary)
		return nil
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Args:  cobra.NoArgs,
	RunE: withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		summary, err := p.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\nSummary Statistics:\n%s\n", summary.Report)
		return nil
	}),
}

func withPipeline(fn func(context.Context, *pipeline.Pipeline) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		if cfg.Source != "" {
			logger.Debug("loaded config", zap.String("path", cfg.Source))
		} else {
			logger.Debug("no tidyjoin.yaml found, using defaults and env vars")
		}

		p, err := pipeline.New(cfg, logger)
		if err != nil {
			return err
		}
		if err := fn(cmd.Context(), p); err != nil {
			logger.Error("stage failed", zap.String("command", cmd.Name()), zap.String("run_id", p.RunID().String()), zap.Error(err))
			return err
		}
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing tidyjoin.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(tidyMortalityCmd, tidyGDPCmd, mergeCmd, plotCmd, runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

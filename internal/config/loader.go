package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rpattn/tidyjoin/internal/domain"
	"github.com/rpattn/tidyjoin/internal/merge"
)

// DatasetConfig pairs a tidier declaration with its input and output files.
type DatasetConfig struct {
	Input     string
	Output    string
	// HeaderRow is the 1-based row holding the headers, numbered as in error
	// messages. Zero picks the first non-blank row.
	HeaderRow int
	Tidy      domain.TidyConfig
}

// HeaderRowIndex converts HeaderRow to the 0-based index the readers take.
func (d DatasetConfig) HeaderRowIndex() *int {
	if d.HeaderRow <= 0 {
		return nil
	}
	idx := d.HeaderRow - 1
	return &idx
}

// MergeConfig controls the join stage.
type MergeConfig struct {
	Output          string
	UnresolvedNames merge.UnresolvedNamePolicy
	Names           merge.StaticNames
}

// PlotConfig controls the presentation stage.
type PlotConfig struct {
	Output string
}

// Config is the full pipeline configuration.
type Config struct {
	Mortality DatasetConfig
	GDP       DatasetConfig
	Merge     MergeConfig
	Plot      PlotConfig
	// Source is the config file that was read, empty when only defaults and
	// environment were used.
	Source string
}

// DefaultConfig is the bundled data layout with the mortality and GDP presets.
func DefaultConfig() Config {
	return Config{
		Mortality: DatasetConfig{
			Input:  "./data/mortality_data.csv",
			Output: "./data/preprocessed/tidy_mortality_data.csv",
			Tidy:   domain.MortalityConfig(),
		},
		GDP: DatasetConfig{
			Input:  "./data/raw/gdp-data.csv",
			Output: "./data/preprocessed/tidy_gdp_data.csv",
			Tidy:   domain.GDPConfig(),
		},
		Merge: MergeConfig{
			Output:          "./data/preprocessed/merged_data.csv",
			UnresolvedNames: merge.UnresolvedExclude,
			Names:           merge.DefaultNames(),
		},
		Plot: PlotConfig{
			Output: "./paper/figs/mortality_vs_gdp.png",
		},
	}
}

// Load reads tidyjoin.yaml from configPath when present and applies
// TIDYJOIN_* environment overrides on top of the defaults.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("tidyjoin")
	v.SetConfigType("yaml")
	if strings.TrimSpace(configPath) != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("TIDYJOIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys() {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else {
		cfg.Source = v.ConfigFileUsed()
	}

	if err := applyDataset(v, "mortality", &cfg.Mortality); err != nil {
		return cfg, err
	}
	if err := applyDataset(v, "gdp", &cfg.GDP); err != nil {
		return cfg, err
	}

	if v.IsSet("merge.output") {
		cfg.Merge.Output = v.GetString("merge.output")
	}
	if v.IsSet("merge.unresolved_names") {
		policy, err := merge.ParseUnresolvedNamePolicy(v.GetString("merge.unresolved_names"))
		if err != nil {
			return cfg, fmt.Errorf("merge.unresolved_names: %w", err)
		}
		cfg.Merge.UnresolvedNames = policy
	}
	if v.IsSet("merge.names") {
		for code, name := range v.GetStringMapString("merge.names") {
			// viper lower-cases map keys; the lookup folds case on read.
			cfg.Merge.Names[strings.ToUpper(code)] = name
		}
	}
	if v.IsSet("plot.output") {
		cfg.Plot.Output = v.GetString("plot.output")
	}

	return cfg, nil
}

func applyDataset(v *viper.Viper, prefix string, ds *DatasetConfig) error {
	key := func(name string) string { return prefix + "." + name }

	if v.IsSet(key("input")) {
		ds.Input = v.GetString(key("input"))
	}
	if v.IsSet(key("output")) {
		ds.Output = v.GetString(key("output"))
	}
	if v.IsSet(key("header_row")) {
		row := v.GetInt(key("header_row"))
		if row < 0 {
			return fmt.Errorf("%s: must not be negative", key("header_row"))
		}
		ds.HeaderRow = row
	}
	if v.IsSet(key("entity_column")) {
		ds.Tidy.EntityColumn = v.GetString(key("entity_column"))
	}
	if v.IsSet(key("name_column")) {
		ds.Tidy.NameColumn = v.GetString(key("name_column"))
	}
	if v.IsSet(key("metric_column")) {
		ds.Tidy.MetricColumn = v.GetString(key("metric_column"))
	}
	if v.IsSet(key("year_prefix")) {
		ds.Tidy.YearPrefix = v.GetString(key("year_prefix"))
	}
	if v.IsSet(key("case_convention")) {
		convention, err := domain.ParseCaseConvention(v.GetString(key("case_convention")))
		if err != nil {
			return fmt.Errorf("%s: %w", key("case_convention"), err)
		}
		ds.Tidy.CaseConvention = convention
	}
	if v.IsSet(key("on_decode_error")) {
		policy, err := domain.ParseDecodePolicy(v.GetString(key("on_decode_error")))
		if err != nil {
			return fmt.Errorf("%s: %w", key("on_decode_error"), err)
		}
		ds.Tidy.OnDecodeError = policy
	}

	switch {
	case v.IsSet(key("window")) && v.GetString(key("window")) == "none":
		ds.Tidy.Window = nil
	case v.IsSet(key("window.from")) || v.IsSet(key("window.to")):
		if !v.IsSet(key("window.from")) || !v.IsSet(key("window.to")) {
			return fmt.Errorf("%s: both from and to are required", key("window"))
		}
		ds.Tidy.Window = &domain.YearWindow{
			From: v.GetInt(key("window.from")),
			To:   v.GetInt(key("window.to")),
		}
	}

	return ds.Tidy.Validate()
}

func envKeys() []string {
	var keys []string
	for _, prefix := range []string{"mortality", "gdp"} {
		for _, name := range []string{"input", "output", "header_row", "entity_column", "name_column", "metric_column", "year_prefix", "case_convention", "on_decode_error", "window.from", "window.to"} {
			keys = append(keys, prefix+"."+name)
		}
	}
	return append(keys, "merge.output", "merge.unresolved_names", "plot.output")
}

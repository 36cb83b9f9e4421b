// Command ecovision analyzes electricity usage from the command line.
//
// Usage data comes from a CSV file (--file, "-" for stdin) or from the source
// defined in the YAML configuration (--source). Every subcommand shares the
// column, date-range and row-cap flags.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/adapters"
	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/config"
	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/pipeline"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// version is set via ldflags at build time
var version = "dev"

// app carries the persistent flags and the lazily loaded configuration.
type app struct {
	cfgFile   string
	logLevel  string
	file      string
	source    bool
	dateCol   string
	usageCol  string
	from      string
	to        string
	maxRows   int
	cfg       *config.File
	logger    *slog.Logger
	analyzer  *pipeline.Analyzer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ecovision",
		Short: "Analyze, forecast and explain household electricity usage",
		Long: `EcoVision cleans a daily kWh series, summarizes it at daily, weekly,
monthly and yearly granularity, forecasts the next days with uncertainty
bounds, and asks a language model for efficiency tips.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./ecovision.yaml when present)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVarP(&a.file, "file", "f", "", "CSV file with usage data (- for stdin)")
	flags.BoolVar(&a.source, "source", false, "read usage from the source defined in the config file")
	flags.StringVar(&a.dateCol, "date-col", "", "date column name (default date)")
	flags.StringVar(&a.usageCol, "usage-col", "", "usage column name (default usage_kWh)")
	flags.StringVar(&a.from, "from", "", "only use records on or after this date (YYYY-MM-DD)")
	flags.StringVar(&a.to, "to", "", "only use records on or before this date (YYYY-MM-DD)")
	flags.IntVar(&a.maxRows, "max-rows", 0, "maximum cleaned rows kept (default 10000)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newAggregateCmd(a),
		newForecastCmd(a),
		newTipsCmd(a),
		newChartCmd(a),
		newCostCmd(a),
		newPublishCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", a.logLevel)
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	path := a.cfgFile
	if path == "" {
		path = "ecovision.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	maxRows := a.maxRows
	if maxRows == 0 {
		maxRows = cfg.MaxRows
	}
	a.analyzer = pipeline.New(maxRows, nil, a.logger)
	return nil
}

func (a *app) columns() usage.Columns {
	cols := a.cfg.UsageColumns()
	if a.dateCol != "" {
		cols.Date = a.dateCol
	}
	if a.usageCol != "" {
		cols.Usage = a.usageCol
	}
	return cols
}

// load reads and cleans the selected input.
func (a *app) load(cmd *cobra.Command) (pipeline.Dataset, error) {
	table, err := a.table(cmd)
	if err != nil {
		return pipeline.Dataset{}, err
	}
	ds, err := a.analyzer.Load(table, a.columns())
	if err != nil {
		return pipeline.Dataset{}, err
	}
	if ds.Report.Dropped > 0 {
		a.logger.Info("dropped invalid rows", "dropped", ds.Report.Dropped)
	}
	return ds, nil
}

func (a *app) table(cmd *cobra.Command) (usage.Table, error) {
	switch {
	case a.source && a.file != "":
		return usage.Table{}, fmt.Errorf("--file and --source are mutually exclusive")
	case a.source:
		src, ok, err := a.cfg.NewSource()
		if err != nil {
			return usage.Table{}, err
		}
		if !ok {
			return usage.Table{}, fmt.Errorf("no source defined in config file")
		}
		return collect(cmd.Context(), src)
	case a.file == "-":
		return usage.ReadCSV(cmd.InOrStdin())
	case a.file != "":
		f, err := os.Open(a.file)
		if err != nil {
			return usage.Table{}, fmt.Errorf("opening usage file: %w", err)
		}
		defer f.Close()
		return usage.ReadCSV(f)
	default:
		return usage.Table{}, fmt.Errorf("no input: pass --file or --source")
	}
}

func collect(ctx context.Context, src adapters.Source) (usage.Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return src.Collect(ctx)
}

// options builds analysis options from the shared flags and the config file.
// periods is used as given when the command's --periods flag was set, so an
// explicit zero fails the forecast instead of selecting the default.
func (a *app) options(cmd *cobra.Command, granularity string, periods int, model string) (pipeline.Options, error) {
	opts := pipeline.Options{Periods: periods}

	g, err := aggregate.ParseGranularity(granularity)
	if err != nil {
		return opts, err
	}
	opts.Granularity = g

	if !cmd.Flags().Changed("periods") {
		opts.Periods = a.cfg.Periods
		if opts.Periods <= 0 {
			opts.Periods = forecast.DefaultPeriods
		}
	}
	opts.Model, err = a.cfg.ModelOptions()
	if err != nil {
		return opts, err
	}
	if model != "" {
		opts.Model.Kind = model
	}

	for _, r := range []struct {
		flag, value string
		dst         *time.Time
	}{{"from", a.from, &opts.From}, {"to", a.to, &opts.To}} {
		if r.value == "" {
			continue
		}
		t, ok := usage.ParseDate(r.value)
		if !ok {
			return opts, fmt.Errorf("invalid --%s date %q", r.flag, r.value)
		}
		*r.dst = t
	}
	return opts, nil
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", 40))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

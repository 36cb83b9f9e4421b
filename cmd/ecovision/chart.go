package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	"github.com/HatiCode/ecovision/pkg/charts"
)

func newChartCmd(a *app) *cobra.Command {
	var (
		kind        string
		out         string
		granularity string
		compare     string
		periods     int
		model       string
		theme       string
		width       int
		height      int
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render a usage, comparison or forecast chart to PNG",
		Example: `  ecovision chart -f usage.csv --kind usage -g Monthly --out monthly.png
  ecovision chart -f usage.csv --kind compare --compare mom --out mom.png
  ecovision chart -f usage.csv --kind forecast --periods 14 --out forecast.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, granularity, periods, model)
			if err != nil {
				return err
			}
			s := ds.Series.Between(opts.From, opts.To)

			r := charts.New()
			if theme != "" {
				r.Theme = theme
			}
			if width > 0 {
				r.Width = width
			}
			if height > 0 {
				r.Height = height
			}

			var png []byte
			switch kind {
			case "usage":
				png, err = r.Usage(aggregate.Aggregate(s, opts.Granularity), opts.Granularity)
			case "compare":
				c, perr := aggregate.ParseComparison(compare)
				if perr != nil {
					return perr
				}
				png, err = r.Comparison(aggregate.Compare(s, c), c)
			case "forecast":
				res, ferr := a.analyzer.Forecast(cmd.Context(), s, opts)
				if ferr != nil {
					return ferr
				}
				png, err = r.Forecast(res)
			default:
				return fmt.Errorf("unknown chart kind %q (must be usage, compare or forecast)", kind)
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("writing chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", out, humanize.Bytes(uint64(len(png))))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "usage", "chart kind: usage, compare or forecast")
	cmd.Flags().StringVarP(&out, "out", "o", "ecovision.png", "output PNG path")
	cmd.Flags().StringVarP(&granularity, "granularity", "g", "Daily", "granularity of a usage chart")
	cmd.Flags().StringVar(&compare, "compare", "mom", "comparison of a compare chart: yoy, mom, wow or dod")
	cmd.Flags().IntVar(&periods, "periods", 0, "days of a forecast chart (default 7)")
	cmd.Flags().StringVar(&model, "model", "", "forecast model of a forecast chart")
	cmd.Flags().StringVar(&theme, "theme", "", "chart theme: dark, light, grafana or ant")
	cmd.Flags().IntVar(&width, "width", 0, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "image height in pixels")
	return cmd
}

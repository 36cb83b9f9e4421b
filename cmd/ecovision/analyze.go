package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/stats"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		granularity string
		periods     int
		model       string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize usage and forecast the next days",
		Long: `Cleans the input, prints every summary statistic, the usage per period
at the chosen granularity and a forecast of the following days.

A forecast that cannot be produced (for example with fewer than two distinct
dates) is reported but does not fail the command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, granularity, periods, model)
			if err != nil {
				return err
			}
			rep := a.analyzer.Analyze(cmd.Context(), ds, opts)

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, rep)
			}

			fmt.Fprintf(w, "Rows: %s (dropped %s)", count(rep.Rows), count(rep.Dropped))
			if rep.Truncated {
				fmt.Fprint(w, ", truncated")
			}
			fmt.Fprintln(w)

			printHeader(w, "Statistics")
			for _, k := range stats.Keys {
				fmt.Fprintf(w, "%-24s  %16s\n", k, kwh(rep.Stats[k]))
			}

			printHeader(w, rep.Granularity.String()+" usage")
			for _, b := range rep.Buckets {
				fmt.Fprintf(w, "%-12s  %16s\n", b.Label(rep.Granularity), kwh(b.Usage))
			}

			printHeader(w, "Forecast")
			if rep.Forecast == nil {
				fmt.Fprintf(w, "unavailable: %s\n", rep.ForecastError)
				return nil
			}
			printFuture(w, *rep.Forecast)
			return nil
		},
	}

	cmd.Flags().StringVarP(&granularity, "granularity", "g", "Daily", "Daily, Weekly, Monthly or Yearly")
	cmd.Flags().IntVar(&periods, "periods", 0, "days to forecast (default 7)")
	cmd.Flags().StringVar(&model, "model", "", "forecast model: additive, arima, sarima or byom")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

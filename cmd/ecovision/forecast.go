package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/forecast"
)

func newForecastCmd(a *app) *cobra.Command {
	var (
		periods int
		model   string
		history bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast daily usage with uncertainty bounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, "Daily", periods, model)
			if err != nil {
				return err
			}
			res, err := a.analyzer.Forecast(cmd.Context(), ds.Series.Between(opts.From, opts.To), opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, res)
			}
			if history {
				printHeader(w, "Fitted history")
				printRows(w, res.History)
			}
			printHeader(w, "Forecast ("+res.Model+")")
			printFuture(w, res)
			return nil
		},
	}

	cmd.Flags().IntVar(&periods, "periods", 0, "days to forecast (default 7)")
	cmd.Flags().StringVar(&model, "model", "", "forecast model: additive, arima, sarima or byom")
	cmd.Flags().BoolVar(&history, "history", false, "also print the in-sample fit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printFuture(w io.Writer, res forecast.Result) {
	printRows(w, res.Future)
	if last, ok := res.Last(); ok {
		fmt.Fprintf(w, "Projected usage on %s: %s\n", last.Date.Format("2006-01-02"), kwh(last.Value))
	}
}

func printRows(w io.Writer, rows []forecast.Row) {
	fmt.Fprintf(w, "%-10s  %16s  %16s  %16s\n", "Date", "Forecast", "Lower", "Upper")
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s  %16s  %16s  %16s\n",
			r.Date.Format("2006-01-02"), kwh(r.Value), kwh(r.Lower), kwh(r.Upper))
	}
}

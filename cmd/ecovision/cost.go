package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/cost"
)

func newCostCmd(a *app) *cobra.Command {
	var (
		rate     string
		standing string
		currency string
		periods  int
		model    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Price historical and forecast usage against a flat tariff",
		Long: `Prices the loaded usage and the forecast horizon with a unit rate per kWh
plus an optional daily standing charge. Flags override the tariff section
of the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.tariff(rate, standing, currency)
			if err != nil {
				return err
			}
			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, "Daily", periods, model)
			if err != nil {
				return err
			}
			s := ds.Series.Between(opts.From, opts.To)
			historical := cost.Historical(s, t)

			res, ferr := a.analyzer.Forecast(cmd.Context(), s, opts)
			var proj *cost.Projection
			if ferr == nil {
				p := cost.Project(res, t)
				proj = &p
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, struct {
					Tariff     cost.Tariff      `json:"tariff"`
					Historical string           `json:"historical"`
					Projection *cost.Projection `json:"projection,omitempty"`
				}{t, historical.StringFixed(2), proj})
			}

			fmt.Fprintf(w, "Historical cost (%s days): %s %s\n",
				count(s.DistinctDates()), historical.StringFixed(2), t.Currency)
			if proj == nil {
				fmt.Fprintf(w, "Projection unavailable: %s\n", ferr)
				return nil
			}

			printHeader(w, "Projected cost")
			fmt.Fprintf(w, "%-10s  %16s  %10s  %10s  %10s\n", "Date", "Usage", "Cost", "Lower", "Upper")
			for _, d := range proj.Days {
				fmt.Fprintf(w, "%-10s  %16s  %10s  %10s  %10s\n", d.Date.Format("2006-01-02"), kwh(d.KWh),
					d.Cost.StringFixed(2), d.Lower.StringFixed(2), d.Upper.StringFixed(2))
			}
			fmt.Fprintf(w, "%-10s  %16s  %10s  %10s  %10s\n", "Total", kwh(proj.TotalKWh),
				proj.Total.StringFixed(2), proj.LowerCost.StringFixed(2), proj.UpperCost.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "", "unit rate per kWh")
	cmd.Flags().StringVar(&standing, "standing", "", "daily standing charge")
	cmd.Flags().StringVar(&currency, "currency", "", "currency label")
	cmd.Flags().IntVar(&periods, "periods", 0, "days to project (default 7)")
	cmd.Flags().StringVar(&model, "model", "", "forecast model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// tariff merges flag values over the config file's tariff section.
func (a *app) tariff(rate, standing, currency string) (cost.Tariff, error) {
	tc := a.cfg.Tariff
	if rate != "" {
		tc.Rate = rate
	}
	if standing != "" {
		tc.Standing = standing
	}
	if currency != "" {
		tc.Currency = currency
	}
	if tc.Rate == "" {
		return cost.Tariff{}, fmt.Errorf("no tariff: pass --rate or set tariff.rate in the config file")
	}
	return cost.ParseTariff(tc.Rate, tc.Standing, tc.Currency)
}

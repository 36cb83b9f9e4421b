package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/aggregate"
)

func newAggregateCmd(a *app) *cobra.Command {
	var (
		granularity string
		compare     string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print usage per period or a period-over-period comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, granularity, 0, "")
			if err != nil {
				return err
			}
			s := ds.Series.Between(opts.From, opts.To)
			w := cmd.OutOrStdout()

			if compare != "" {
				c, err := aggregate.ParseComparison(compare)
				if err != nil {
					return err
				}
				points := aggregate.Compare(s, c)
				if asJSON {
					return writeJSON(w, points)
				}
				printHeader(w, string(c))
				for _, p := range points {
					fmt.Fprintf(w, "%-12s  %16s\n", p.Key, kwh(p.Usage))
				}
				return nil
			}

			buckets := aggregate.Aggregate(s, opts.Granularity)
			if asJSON {
				return writeJSON(w, buckets)
			}
			printHeader(w, opts.Granularity.String()+" usage")
			for _, b := range buckets {
				fmt.Fprintf(w, "%-12s  %16s\n", b.Label(opts.Granularity), kwh(b.Usage))
			}
			fmt.Fprintf(w, "%-12s  %16s\n", "Total", kwh(aggregate.Sum(buckets)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&granularity, "granularity", "g", "Daily", "Daily, Weekly, Monthly or Yearly")
	cmd.Flags().StringVar(&compare, "compare", "", "comparison instead of buckets: yoy, mom, wow or dod")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/insights"
)

func newTipsCmd(a *app) *cobra.Command {
	var (
		apiKey   string
		model    string
		question string
	)

	cmd := &cobra.Command{
		Use:   "tips",
		Short: "Ask a language model for efficiency tips or a question about the data",
		Long: `Sends a usage summary to Gemini and prints the suggested tips, or, with
--ask, answers a free-form question using the first rows of the data as
context. The API key is read from --api-key, GEMINI_API_KEY or the config
file, in that order.

Failures never abort the command; a placeholder beginning with
"AI insights unavailable" is printed instead and the exit status is 0.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, "Daily", 0, "")
			if err != nil {
				return err
			}
			s := ds.Series.Between(opts.From, opts.To)

			cfg := a.cfg.InsightsConfig()
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				cfg.APIKey = key
			}
			if apiKey != "" {
				cfg.APIKey = apiKey
			}
			if model != "" {
				cfg.Model = model
			}
			client := insights.NewClient(cfg, nil, a.logger)

			w := cmd.OutOrStdout()
			if question != "" {
				fmt.Fprintln(w, client.Ask(cmd.Context(), question, s))
				return nil
			}
			for _, tip := range client.Tips(cmd.Context(), s) {
				fmt.Fprintln(w, tip)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key")
	cmd.Flags().StringVar(&model, "model", "", "Gemini model (default "+insights.DefaultModel+")")
	cmd.Flags().StringVar(&question, "ask", "", "answer this question instead of giving tips")
	return cmd
}

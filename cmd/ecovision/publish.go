package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HatiCode/ecovision/pkg/publisher"
	"github.com/HatiCode/ecovision/pkg/stats"
)

func newPublishCmd(a *app) *cobra.Command {
	var (
		broker   string
		prefix   string
		username string
		password string
		periods  int
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the summary and forecast to MQTT as retained messages",
		Long: `Connects to the MQTT broker from --broker or the config file and publishes
<prefix>/summary, one <prefix>/stats/<key> topic per statistic and, when a
forecast can be produced, <prefix>/forecast.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.MQTT
			if broker != "" {
				cfg.Broker = broker
			}
			if prefix != "" {
				cfg.TopicPrefix = prefix
			}
			if username != "" {
				cfg.Username = username
			}
			if password != "" {
				cfg.Password = password
			}
			if cfg.Broker == "" {
				return fmt.Errorf("no broker: pass --broker or set mqtt.broker in the config file")
			}
			if cfg.ClientID == "" {
				cfg.ClientID = "ecovision-cli"
			}

			ds, err := a.load(cmd)
			if err != nil {
				return err
			}
			opts, err := a.options(cmd, "Daily", periods, "")
			if err != nil {
				return err
			}
			s := ds.Series.Between(opts.From, opts.To)

			p, err := publisher.New(cfg, a.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.PublishSummary(len(s), stats.Compute(s)); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Published summary of %s rows\n", count(len(s)))

			res, err := a.analyzer.Forecast(cmd.Context(), s, opts)
			if err != nil {
				a.logger.Warn("skipping forecast", "error", err)
				return nil
			}
			if err := p.PublishForecast(res); err != nil {
				return err
			}
			fmt.Fprintf(w, "Published %d-day forecast\n", len(res.Future))
			return nil
		},
	}

	cmd.Flags().StringVar(&broker, "broker", "", "MQTT broker, e.g. tcp://localhost:1883")
	cmd.Flags().StringVar(&prefix, "topic-prefix", "", "topic prefix (default "+publisher.DefaultTopicPrefix+")")
	cmd.Flags().StringVar(&username, "username", "", "MQTT username")
	cmd.Flags().StringVar(&password, "password", "", "MQTT password")
	cmd.Flags().IntVar(&periods, "periods", 0, "days to forecast (default 7)")
	return cmd
}

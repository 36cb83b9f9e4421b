// Package publisher pushes usage summaries and forecasts to an MQTT broker as
// retained messages so dashboards such as Home Assistant can pick up the
// latest state on subscribe.
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/HatiCode/ecovision/pkg/forecast"
	"github.com/HatiCode/ecovision/pkg/stats"
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "ecovision"

// Config describes the broker connection.
type Config struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos"`
	Timeout     time.Duration `yaml:"timeout"`
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher writes retained JSON payloads under a topic prefix.
type Publisher struct {
	client  client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New connects to the broker described by cfg.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker address is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ecovision"
	}

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	return newPublisher(c, cfg, logger), nil
}

func newPublisher(c client, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		client:  c,
		prefix:  prefix,
		qos:     cfg.QoS,
		timeout: timeout,
		logger:  logger.With("component", "publisher"),
		now:     time.Now,
	}
}

// SummaryPayload is published to <prefix>/summary.
type SummaryPayload struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Rows        int           `json:"rows"`
	Stats       stats.Summary `json:"stats"`
}

// ForecastPayload is published to <prefix>/forecast.
type ForecastPayload struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Model       string         `json:"model"`
	NextDay     *forecast.Row  `json:"next_day,omitempty"`
	Future      []forecast.Row `json:"future"`
}

// PublishSummary publishes the statistics summary and one plain state topic
// per finite statistic under <prefix>/stats/<key>.
func (p *Publisher) PublishSummary(rows int, summary stats.Summary) error {
	payload := SummaryPayload{GeneratedAt: p.now().UTC(), Rows: rows, Stats: summary}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := p.publish(p.topic("summary"), body); err != nil {
		return err
	}
	for _, key := range stats.Keys {
		v, ok := summary[key]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if err := p.publish(p.topic("stats", key), []byte(fmt.Sprintf("%.2f", v))); err != nil {
			return err
		}
	}
	p.logger.Debug("published summary", "rows", rows)
	return nil
}

// PublishForecast publishes the projected rows of res.
func (p *Publisher) PublishForecast(res forecast.Result) error {
	payload := ForecastPayload{
		GeneratedAt: p.now().UTC(),
		Model:       res.Model,
		Future:      res.Future,
	}
	if len(res.Future) > 0 {
		next := res.Future[0]
		payload.NextDay = &next
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding forecast: %w", err)
	}
	if err := p.publish(p.topic("forecast"), body); err != nil {
		return err
	}
	p.logger.Debug("published forecast", "model", res.Model, "periods", len(res.Future))
	return nil
}

func (p *Publisher) topic(parts ...string) string {
	return p.prefix + "/" + strings.Join(parts, "/")
}

func (p *Publisher) publish(topic string, body []byte) error {
	token := p.client.Publish(topic, p.qos, true, body)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publishing to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

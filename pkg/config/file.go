// Package config loads the optional YAML file shared by the dashboard and the
// CLI. Values of the form ${VAR} are expanded from the environment before
// parsing, so secrets such as the tips API key can stay out of the file.
//
// Command-line flags and environment variables override file values.
//
// A complete ecovision.yaml:
//
//	source:
//	  kind: sqlite
//	  config:
//	    dsn: /var/lib/gridscraper/usage.db
//	columns:
//	  date: date
//	  usage: usage_kWh
//	model:
//	  kind: sarima
//	  interval_width: p90
//	  seasonal_period: 7
//	tips:
//	  api_key: ${GEMINI_API_KEY}
//	cache:
//	  backend: redis
//	  redis_addr: localhost:6379
//	  ttl: 24h
//	mqtt:
//	  broker: tcp://localhost:1883
//	  topic_prefix: home/energy
//	tariff:
//	  rate: "0.245"
//	  standing: "0.53"
//	  currency: GBP
//	max_rows: 10000
//	periods: 30
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/ecovision/pkg/adapters"
	"github.com/HatiCode/ecovision/pkg/cost"
	"github.com/HatiCode/ecovision/pkg/insights"
	"github.com/HatiCode/ecovision/pkg/models"
	"github.com/HatiCode/ecovision/pkg/publisher"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// File is the on-disk configuration.
type File struct {
	Source  SourceConfig     `yaml:"source"`
	Columns ColumnsConfig    `yaml:"columns,omitempty"`
	Model   ModelConfig      `yaml:"model,omitempty"`
	Tips    TipsConfig       `yaml:"tips,omitempty"`
	Cache   CacheConfig      `yaml:"cache,omitempty"`
	MQTT    publisher.Config `yaml:"mqtt,omitempty"`
	Tariff  TariffConfig     `yaml:"tariff,omitempty"`
	MaxRows int              `yaml:"max_rows,omitempty"`
	Periods int              `yaml:"periods,omitempty"`
}

// SourceConfig selects a usage source and passes its settings to adapters.New.
type SourceConfig struct {
	Kind   string            `yaml:"kind"`
	Config map[string]string `yaml:"config,omitempty"`
}

// ColumnsConfig renames the date and usage columns of tabular input.
type ColumnsConfig struct {
	Date  string `yaml:"date,omitempty"`
	Usage string `yaml:"usage,omitempty"`
}

// ModelConfig mirrors models.Options.
type ModelConfig struct {
	Kind           string        `yaml:"kind,omitempty"`
	IntervalWidth  string        `yaml:"interval_width,omitempty"`
	P              int           `yaml:"p,omitempty"`
	D              int           `yaml:"d,omitempty"`
	Q              int           `yaml:"q,omitempty"`
	SeasonalPeriod int           `yaml:"seasonal_period,omitempty"`
	Endpoint       string        `yaml:"endpoint,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// TipsConfig configures the language-model collaborator.
type TipsConfig struct {
	APIKey  string        `yaml:"api_key,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// CacheConfig selects where generated tips are cached.
type CacheConfig struct {
	Backend       string        `yaml:"backend,omitempty"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
	TTL           time.Duration `yaml:"ttl,omitempty"`
}

// TariffConfig holds decimal strings so no precision is lost in YAML.
type TariffConfig struct {
	Rate     string `yaml:"rate,omitempty"`
	Standing string `yaml:"standing,omitempty"`
	Currency string `yaml:"currency,omitempty"`
}

// Load reads path. A missing file yields an empty configuration.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML after expanding environment references.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &f, nil
}

// UsageColumns returns the configured column names with defaults filled in.
func (f *File) UsageColumns() usage.Columns {
	cols := usage.DefaultColumns()
	if f.Columns.Date != "" {
		cols.Date = f.Columns.Date
	}
	if f.Columns.Usage != "" {
		cols.Usage = f.Columns.Usage
	}
	return cols
}

// ModelOptions converts the model section.
func (f *File) ModelOptions() (models.Options, error) {
	width, err := models.ParseIntervalWidth(f.Model.IntervalWidth)
	if err != nil {
		return models.Options{}, err
	}
	return models.Options{
		Kind:           f.Model.Kind,
		IntervalWidth:  width,
		P:              f.Model.P,
		D:              f.Model.D,
		Q:              f.Model.Q,
		SeasonalPeriod: f.Model.SeasonalPeriod,
		Endpoint:       f.Model.Endpoint,
		Timeout:        f.Model.Timeout,
	}, nil
}

// InsightsConfig converts the tips section.
func (f *File) InsightsConfig() insights.Config {
	return insights.Config{
		APIKey:  f.Tips.APIKey,
		BaseURL: f.Tips.BaseURL,
		Model:   f.Tips.Model,
		Timeout: f.Tips.Timeout,
	}
}

// CostTariff converts the tariff section. ok is false when no rate is set.
func (f *File) CostTariff() (t cost.Tariff, ok bool, err error) {
	if f.Tariff.Rate == "" {
		return cost.Tariff{}, false, nil
	}
	t, err = cost.ParseTariff(f.Tariff.Rate, f.Tariff.Standing, f.Tariff.Currency)
	if err != nil {
		return cost.Tariff{}, false, fmt.Errorf("tariff: %w", err)
	}
	return t, true, nil
}

// NewSource builds the configured source. ok is false when none is set.
func (f *File) NewSource() (src adapters.Source, ok bool, err error) {
	if f.Source.Kind == "" {
		return nil, false, nil
	}
	src, err = adapters.New(f.Source.Kind, f.Source.Config)
	if err != nil {
		return nil, false, fmt.Errorf("source: %w", err)
	}
	return src, true, nil
}

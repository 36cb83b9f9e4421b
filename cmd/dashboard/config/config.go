// Package config parses the dashboard's runtime configuration.
//
// Settings come from four places, highest precedence first:
//  1. Command-line flags
//  2. Environment variables
//  3. The optional YAML file named by -config-file / CONFIG_FILE
//  4. Defaults
//
// Source settings follow the same rule: -source / SOURCE picks the kind, and
// ADAPTER_* environment variables are merged over the file's source.config map
// (ADAPTER_DSN → dsn, ADAPTER_USAGE_PATH → usagePath).
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HatiCode/ecovision/pkg/aggregate"
	filecfg "github.com/HatiCode/ecovision/pkg/config"
	"github.com/HatiCode/ecovision/pkg/cost"
	"github.com/HatiCode/ecovision/pkg/insights"
	"github.com/HatiCode/ecovision/pkg/models"
	"github.com/HatiCode/ecovision/pkg/pipeline"
	"github.com/HatiCode/ecovision/pkg/publisher"
	"github.com/HatiCode/ecovision/pkg/tls"
	"github.com/HatiCode/ecovision/pkg/usage"
)

// Config holds all dashboard configuration.
type Config struct {
	Listen       string
	LogFormat    string
	LogLevel     string
	ConfigFile   string
	MaxRows      int
	MaxBodyBytes int64
	TLS          tls.Config

	DateColumn  string
	UsageColumn string
	Granularity string
	Periods     int

	Model          string
	IntervalWidth  string
	ARIMA_P        int
	ARIMA_D        int
	ARIMA_Q        int
	SeasonalPeriod int
	BYOMURL        string
	BYOMTimeout    time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	TipsTimeout   time.Duration

	Cache         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	Source          string
	AdapterConfig   map[string]string
	RefreshInterval time.Duration

	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTUsername    string
	MQTTPassword    string

	TariffRate     string
	TariffStanding string
	Currency       string
}

// ParseFlags parses flags and environment variables, then fills anything
// left unset from the configuration file.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.ConfigFile, "config-file", getEnv("CONFIG_FILE", ""), "Optional YAML configuration file")
	flag.IntVar(&cfg.MaxRows, "max-rows", getEnvInt("MAX_ROWS", pipeline.DefaultMaxRows), "Maximum cleaned rows kept per dataset")
	flag.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", int64(getEnvInt("MAX_BODY_BYTES", 32<<20)), "Maximum upload size in bytes")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA file; enables client certificate verification")

	flag.StringVar(&cfg.DateColumn, "date-column", getEnv("DATE_COLUMN", "date"), "Name of the date column")
	flag.StringVar(&cfg.UsageColumn, "usage-column", getEnv("USAGE_COLUMN", "usage_kWh"), "Name of the usage column")
	flag.StringVar(&cfg.Granularity, "granularity", getEnv("GRANULARITY", "daily"), "Default aggregation: daily, weekly, monthly, yearly")
	flag.IntVar(&cfg.Periods, "periods", getEnvInt("PERIODS", 7), "Default forecast horizon in days")

	flag.StringVar(&cfg.Model, "model", getEnv("MODEL", "additive"), "Forecasting model: additive, arima, sarima, or byom")
	flag.StringVar(&cfg.IntervalWidth, "interval-width", getEnv("INTERVAL_WIDTH", "p80"), "Uncertainty band coverage (p80 or 0.80)")
	flag.IntVar(&cfg.ARIMA_P, "arima-p", getEnvInt("ARIMA_P", 0), "ARIMA AR order (0=auto, default 1)")
	flag.IntVar(&cfg.ARIMA_D, "arima-d", getEnvInt("ARIMA_D", 0), "ARIMA differencing order (0=auto, default 1)")
	flag.IntVar(&cfg.ARIMA_Q, "arima-q", getEnvInt("ARIMA_Q", 0), "ARIMA MA order (0=auto, default 1)")
	flag.IntVar(&cfg.SeasonalPeriod, "seasonal-period", getEnvInt("SEASONAL_PERIOD", 7), "Seasonal lag in days for the sarima model")
	flag.StringVar(&cfg.BYOMURL, "byom-url", getEnv("BYOM_URL", ""), "BYOM prediction URL (required when model=byom)")
	flag.DurationVar(&cfg.BYOMTimeout, "byom-timeout", getEnvDuration("BYOM_TIMEOUT", 30*time.Second), "BYOM request timeout")

	flag.StringVar(&cfg.GeminiAPIKey, "gemini-api-key", getEnv("GEMINI_API_KEY", ""), "Gemini API key for efficiency tips")
	flag.StringVar(&cfg.GeminiModel, "gemini-model", getEnv("GEMINI_MODEL", insights.DefaultModel), "Gemini model name")
	flag.StringVar(&cfg.GeminiBaseURL, "gemini-base-url", getEnv("GEMINI_BASE_URL", insights.DefaultBaseURL), "Gemini REST base URL")
	flag.DurationVar(&cfg.TipsTimeout, "tips-timeout", getEnvDuration("TIPS_TIMEOUT", insights.DefaultTimeout), "Tips request timeout")

	flag.StringVar(&cfg.Cache, "cache", getEnv("CACHE", "memory"), "Tips cache: memory, redis, or none")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 24*time.Hour), "Tips cache TTL")

	flag.StringVar(&cfg.Source, "source", getEnv("SOURCE", ""), "Usage source: csv, http, prometheus, victoriametrics, sqlite, postgres, clickhouse")
	flag.DurationVar(&cfg.RefreshInterval, "refresh-interval", getEnvDuration("REFRESH_INTERVAL", 15*time.Minute), "Source refresh interval")

	flag.StringVar(&cfg.MQTTBroker, "mqtt-broker", getEnv("MQTT_BROKER", ""), "MQTT broker host:port; empty disables publishing")
	flag.StringVar(&cfg.MQTTTopicPrefix, "mqtt-topic-prefix", getEnv("MQTT_TOPIC_PREFIX", publisher.DefaultTopicPrefix), "MQTT topic prefix")
	flag.StringVar(&cfg.MQTTUsername, "mqtt-username", getEnv("MQTT_USERNAME", ""), "MQTT username")
	flag.StringVar(&cfg.MQTTPassword, "mqtt-password", getEnv("MQTT_PASSWORD", ""), "MQTT password")

	flag.StringVar(&cfg.TariffRate, "tariff-rate", getEnv("TARIFF_RATE", ""), "Unit rate per kWh; empty disables cost projection")
	flag.StringVar(&cfg.TariffStanding, "tariff-standing", getEnv("TARIFF_STANDING", ""), "Daily standing charge")
	flag.StringVar(&cfg.Currency, "currency", getEnv("CURRENCY", ""), "Currency code shown with costs")

	flag.Parse()

	cfg.AdapterConfig = parseAdapterConfig()

	file, err := filecfg.Load(cfg.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.applyFile(file, explicitlySet())

	return cfg
}

// explicitlySet returns a predicate reporting whether a setting was given by
// flag or environment variable.
func explicitlySet() func(name, env string) bool {
	seen := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return func(name, env string) bool {
		return seen[name] || os.Getenv(env) != ""
	}
}

func (c *Config) applyFile(f *filecfg.File, set func(name, env string) bool) {
	str := func(dst *string, v, name, env string) {
		if v != "" && !set(name, env) {
			*dst = v
		}
	}
	num := func(dst *int, v int, name, env string) {
		if v != 0 && !set(name, env) {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v time.Duration, name, env string) {
		if v != 0 && !set(name, env) {
			*dst = v
		}
	}

	str(&c.DateColumn, f.Columns.Date, "date-column", "DATE_COLUMN")
	str(&c.UsageColumn, f.Columns.Usage, "usage-column", "USAGE_COLUMN")
	num(&c.MaxRows, f.MaxRows, "max-rows", "MAX_ROWS")
	num(&c.Periods, f.Periods, "periods", "PERIODS")

	str(&c.Model, f.Model.Kind, "model", "MODEL")
	str(&c.IntervalWidth, f.Model.IntervalWidth, "interval-width", "INTERVAL_WIDTH")
	num(&c.ARIMA_P, f.Model.P, "arima-p", "ARIMA_P")
	num(&c.ARIMA_D, f.Model.D, "arima-d", "ARIMA_D")
	num(&c.ARIMA_Q, f.Model.Q, "arima-q", "ARIMA_Q")
	num(&c.SeasonalPeriod, f.Model.SeasonalPeriod, "seasonal-period", "SEASONAL_PERIOD")
	str(&c.BYOMURL, f.Model.Endpoint, "byom-url", "BYOM_URL")
	dur(&c.BYOMTimeout, f.Model.Timeout, "byom-timeout", "BYOM_TIMEOUT")

	str(&c.GeminiAPIKey, f.Tips.APIKey, "gemini-api-key", "GEMINI_API_KEY")
	str(&c.GeminiModel, f.Tips.Model, "gemini-model", "GEMINI_MODEL")
	str(&c.GeminiBaseURL, f.Tips.BaseURL, "gemini-base-url", "GEMINI_BASE_URL")
	dur(&c.TipsTimeout, f.Tips.Timeout, "tips-timeout", "TIPS_TIMEOUT")

	str(&c.Cache, f.Cache.Backend, "cache", "CACHE")
	str(&c.RedisAddr, f.Cache.RedisAddr, "redis-addr", "REDIS_ADDR")
	str(&c.RedisPassword, f.Cache.RedisPassword, "redis-password", "REDIS_PASSWORD")
	num(&c.RedisDB, f.Cache.RedisDB, "redis-db", "REDIS_DB")
	dur(&c.CacheTTL, f.Cache.TTL, "cache-ttl", "CACHE_TTL")

	str(&c.Source, f.Source.Kind, "source", "SOURCE")
	for k, v := range f.Source.Config {
		if _, ok := c.AdapterConfig[k]; !ok {
			c.AdapterConfig[k] = v
		}
	}

	str(&c.MQTTBroker, f.MQTT.Broker, "mqtt-broker", "MQTT_BROKER")
	str(&c.MQTTTopicPrefix, f.MQTT.TopicPrefix, "mqtt-topic-prefix", "MQTT_TOPIC_PREFIX")
	str(&c.MQTTUsername, f.MQTT.Username, "mqtt-username", "MQTT_USERNAME")
	str(&c.MQTTPassword, f.MQTT.Password, "mqtt-password", "MQTT_PASSWORD")

	str(&c.TariffRate, f.Tariff.Rate, "tariff-rate", "TARIFF_RATE")
	str(&c.TariffStanding, f.Tariff.Standing, "tariff-standing", "TARIFF_STANDING")
	str(&c.Currency, f.Tariff.Currency, "currency", "CURRENCY")
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.MaxRows <= 0 {
		return fmt.Errorf("max-rows must be > 0, got %d", c.MaxRows)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max-body-bytes must be > 0, got %d", c.MaxBodyBytes)
	}
	if c.Periods <= 0 {
		return fmt.Errorf("periods must be > 0, got %d", c.Periods)
	}
	if _, err := aggregate.ParseGranularity(c.Granularity); err != nil {
		return err
	}
	opts, err := c.ModelOptions()
	if err != nil {
		return err
	}
	if _, err := models.New(opts); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	switch c.Cache {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("invalid cache %q (must be memory, redis, or none)", c.Cache)
	}
	if c.Source != "" && c.RefreshInterval <= 0 {
		return errors.New("refresh-interval must be > 0 when a source is configured")
	}
	if _, _, err := c.Tariff(); err != nil {
		return err
	}
	return c.TLS.Validate()
}

// Columns returns the configured column names.
func (c *Config) Columns() usage.Columns {
	return usage.Columns{Date: c.DateColumn, Usage: c.UsageColumn}
}

// ModelOptions converts the model flags.
func (c *Config) ModelOptions() (models.Options, error) {
	width, err := models.ParseIntervalWidth(c.IntervalWidth)
	if err != nil {
		return models.Options{}, err
	}
	return models.Options{
		Kind:           c.Model,
		IntervalWidth:  width,
		P:              c.ARIMA_P,
		D:              c.ARIMA_D,
		Q:              c.ARIMA_Q,
		SeasonalPeriod: c.SeasonalPeriod,
		Endpoint:       c.BYOMURL,
		Timeout:        c.BYOMTimeout,
	}, nil
}

// Insights converts the tips flags.
func (c *Config) Insights() insights.Config {
	return insights.Config{
		APIKey:  c.GeminiAPIKey,
		BaseURL: c.GeminiBaseURL,
		Model:   c.GeminiModel,
		Timeout: c.TipsTimeout,
	}
}

// MQTT converts the publisher flags. ok is false when no broker is set.
func (c *Config) MQTT() (publisher.Config, bool) {
	if c.MQTTBroker == "" {
		return publisher.Config{}, false
	}
	return publisher.Config{
		Broker:      c.MQTTBroker,
		ClientID:    "ecovision-dashboard",
		Username:    c.MQTTUsername,
		Password:    c.MQTTPassword,
		TopicPrefix: c.MQTTTopicPrefix,
	}, true
}

// Tariff converts the tariff flags. ok is false when no rate is set.
func (c *Config) Tariff() (cost.Tariff, bool, error) {
	if c.TariffRate == "" {
		return cost.Tariff{}, false, nil
	}
	t, err := cost.ParseTariff(c.TariffRate, c.TariffStanding, c.Currency)
	if err != nil {
		return cost.Tariff{}, false, err
	}
	return t, true, nil
}

// parseAdapterConfig turns ADAPTER_* environment variables into source
// settings keyed in lower camel case.
func parseAdapterConfig() map[string]string {
	config := make(map[string]string)
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, "ADAPTER_") || key == "ADAPTER_" {
			continue
		}
		config[toLowerCamelCase(strings.TrimPrefix(key, "ADAPTER_"))] = value
	}
	return config
}

func toLowerCamelCase(s string) string {
	result := make([]rune, 0, len(s))
	nextUpper := false
	for i, r := range s {
		switch {
		case r == '_':
			nextUpper = true
		case i == 0:
			result = append(result, toLower(r))
		case nextUpper:
			result = append(result, r)
			nextUpper = false
		default:
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kinds lists the source kinds accepted by New.
var Kinds = []string{"csv", "http", "prometheus", "victoriametrics", "sqlite", "postgres", "clickhouse"}

// New creates a source from a kind and a generic configuration map.
// This is the central extension point for adding new source types.
//
// Supported kinds and their keys:
//   - "csv":                        path
//   - "http":                       url, datePath, usagePath, method, headers (JSON),
//     body, dateFormat, days, templateVars (JSON)
//   - "prometheus", "victoriametrics": url, query, days
//   - "sqlite", "postgres", "clickhouse": dsn, query
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Source, error) {
	switch kind {
	case "csv":
		return newCSV(config)
	case "http":
		return newHTTP(config)
	case "prometheus":
		return newPrometheus(config, "prometheus", "http://localhost:9090")
	case "victoriametrics":
		return newPrometheus(config, "victoriametrics", "http://localhost:8428")
	case "sqlite", "postgres", "clickhouse":
		return newSQL(kind, config)
	default:
		return nil, fmt.Errorf("unknown source kind: %s (must be csv, http, prometheus, victoriametrics, sqlite, postgres, or clickhouse)", kind)
	}
}

func newCSV(config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("csv source requires 'path' config")
	}
	return &CSVSource{Path: path}, nil
}

func newPrometheus(config map[string]string, flavor, defaultURL string) (Source, error) {
	query := config["query"]
	if query == "" {
		return nil, fmt.Errorf("%s source requires 'query' config", flavor)
	}

	url := config["url"]
	if url == "" {
		url = defaultURL
	}

	days, err := intConfig(config, "days")
	if err != nil {
		return nil, err
	}

	return &PrometheusSource{
		ServerURL: url,
		Query:     query,
		Days:      days,
		Flavor:    flavor,
	}, nil
}

func newHTTP(config map[string]string) (Source, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http source requires 'url' config")
	}

	datePath := config["datePath"]
	usagePath := config["usagePath"]
	if datePath == "" || usagePath == "" {
		return nil, fmt.Errorf("http source requires 'datePath' and 'usagePath' config")
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	days, err := intConfig(config, "days")
	if err != nil {
		return nil, err
	}

	src := &HTTPSource{
		URL:          url,
		Method:       config["method"],
		Headers:      headers,
		Body:         config["body"],
		DatePath:     datePath,
		UsagePath:    usagePath,
		DateFormat:   config["dateFormat"],
		Days:         days,
		TemplateVars: templateVars,
	}
	if err := src.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	return src, nil
}

func newSQL(driver string, config map[string]string) (Source, error) {
	dsn := config["dsn"]
	if dsn == "" {
		return nil, fmt.Errorf("%s source requires 'dsn' config", driver)
	}
	return &SQLSource{Driver: driver, DSN: dsn, Query: config["query"]}, nil
}

func intConfig(config map[string]string, key string) (int, error) {
	v := config[key]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' config: %w", key, err)
	}
	return n, nil
}

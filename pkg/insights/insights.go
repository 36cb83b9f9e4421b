// Package insights asks a hosted language model for energy efficiency tips
// and free-form answers about a usage series.
//
// Every call is best effort. Failures never surface as errors: the caller
// receives a placeholder beginning with "AI insights unavailable" instead.
package insights

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/ecovision/pkg/storage"
	"github.com/HatiCode/ecovision/pkg/usage"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 30 * time.Second

	// ContextRows is the number of leading rows sent as CSV context with a question.
	ContextRows = 100

	placeholderPrefix = "AI insights unavailable"
)

var errNoAPIKey = errors.New("Gemini API key not configured")

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the generateContent endpoint of the Gemini REST API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	cache   storage.Cache
	logger  *slog.Logger
}

// NewClient returns a Client. cache and logger may be nil.
func NewClient(cfg Config, cache storage.Cache, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		logger:  logger.With("component", "insights"),
	}
}

// Tips is a convenience wrapper that builds a one-off Client for apiKey.
func Tips(ctx context.Context, s usage.Series, apiKey string) []string {
	return NewClient(Config{APIKey: apiKey}, nil, nil).Tips(ctx, s)
}

// IsPlaceholder reports whether lines is a degraded response.
func IsPlaceholder(lines []string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, placeholderPrefix) {
			return true
		}
	}
	return len(lines) == 0
}

// Tips returns two or three personalised tips for reducing consumption,
// one per line of the model's answer.
func (c *Client) Tips(ctx context.Context, s usage.Series) []string {
	if c.apiKey == "" {
		return []string{placeholder(errNoAPIKey.Error())}
	}
	if len(s) == 0 {
		return []string{placeholder("no usage data")}
	}

	total := s.Total()
	peak := s[0].Usage
	for _, r := range s {
		peak = max(peak, r.Usage)
	}
	summary := fmt.Sprintf("Total: %.2f kWh, Average: %.2f kWh/day, Peak: %.2f kWh",
		total, total/float64(len(s)), peak)
	prompt := fmt.Sprintf("You are an energy efficiency expert. Based on this usage summary: %s, "+
		"give 2-3 personalized tips to reduce electricity consumption.", summary)

	lines, err := c.cached(ctx, "tips", prompt, func(text string) []string {
		var tips []string
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) != "" {
				tips = append(tips, line)
			}
		}
		return tips
	})
	if err != nil {
		c.logger.Warn("tips generation failed", "error", err)
		return []string{placeholder("error generating tips: " + err.Error())}
	}
	return lines
}

// Ask answers a free-form question using the first ContextRows rows of s
// as CSV context.
func (c *Client) Ask(ctx context.Context, question string, s usage.Series) string {
	if c.apiKey == "" {
		return placeholder(errNoAPIKey.Error())
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return placeholder("empty question")
	}

	dataContext := "No data uploaded."
	if len(s) > 0 {
		var buf bytes.Buffer
		if err := usage.WriteCSV(&buf, s.Head(ContextRows), usage.DefaultColumns()); err == nil {
			dataContext = buf.String()
		}
	}
	prompt := fmt.Sprintf("You are an energy analytics expert. Context:\n%s\n\nQuestion: %s\n"+
		"Answer as clearly and concisely as possible.", dataContext, question)

	lines, err := c.cached(ctx, "ask", prompt, func(text string) []string {
		return []string{text}
	})
	if err != nil {
		c.logger.Warn("question answering failed", "error", err)
		return placeholder("error: " + err.Error())
	}
	return lines[0]
}

// cached consults the cache before calling the model, and stores successful
// answers after.
func (c *Client) cached(ctx context.Context, kind, prompt string, split func(string) []string) ([]string, error) {
	key := cacheKey(kind, c.model, prompt)

	if c.cache != nil {
		entry, found, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache lookup failed", "error", err)
		} else if found && len(entry.Lines) > 0 {
			c.logger.Debug("serving cached insight", "kind", kind)
			return entry.Lines, nil
		}
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	lines := split(text)
	if len(lines) == 0 {
		return nil, errors.New("model returned no text")
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, storage.Entry{Key: key, Kind: kind, Lines: lines}); err != nil {
			c.logger.Warn("cache store failed", "error", err)
		}
	}
	return lines, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// generate sends prompt and returns the trimmed text of the first candidate.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, msg)
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "", errors.New("malformed response: no candidate text")
	}
	return strings.TrimSpace(text.String()), nil
}

func placeholder(reason string) string {
	return fmt.Sprintf("%s (%s)", placeholderPrefix, reason)
}

func cacheKey(kind, model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\n" + prompt))
	return kind + ":" + hex.EncodeToString(sum[:])
}

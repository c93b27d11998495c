// Package client is the instrumented HTTP client for the content API.
// Every request passes through a measuring transport that maintains
// per-endpoint latency and error counters; instrumentation is invisible
// to callers, who see the original response or error untouched.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/metric"
	"github.com/statelab/dashkit/pkg/retry"
)

// DefaultAPIPrefix is the path prefix of the content API.
const DefaultAPIPrefix = "/api/v1"

// Config holds client configuration.
type Config struct {
	// BaseURL of the content API, e.g. "http://localhost:8000".
	BaseURL string `json:"base_url"`

	// APIPrefix is the path prefix endpoint names are extracted after.
	APIPrefix string `json:"api_prefix"`

	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration `json:"timeout"`

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64 `json:"rate_limit"`

	// RateBurst is the limiter burst size. Zero means 1 when limiting.
	RateBurst int `json:"rate_burst"`

	// MaxRetries is the number of additional attempts for transient
	// failures. Zero disables retrying.
	MaxRetries int `json:"max_retries"`
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "client", "Validate", "base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return errors.WrapInvalid(err, "client", "Validate", "base_url is not a valid URL")
	}
	if c.APIPrefix == "" {
		c.APIPrefix = DefaultAPIPrefix
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.MaxRetries < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "client", "Validate", "max_retries cannot be negative")
	}
	return nil
}

// Client talks to the content API. All methods are safe for concurrent
// use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiPrefix  string
	inst       *Instrumentation
	limiter    *rate.Limiter
	retryCfg   retry.Config
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is
// still wrapped with instrumentation.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientLogger sets the logger. Defaults to slog.Default().
func WithClientLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a content API client. Metrics may be nil to disable the
// Prometheus mirror; raw endpoint stats are always collected.
func New(cfg Config, registry *metric.MetricsRegistry, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiPrefix:  cfg.APIPrefix,
		inst:       NewInstrumentation(cfg.APIPrefix),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	var coreMetrics *metric.Metrics
	if registry != nil {
		coreMetrics = registry.CoreMetrics()
	}
	c.httpClient.Transport = NewTransport(c.httpClient.Transport, c.inst, coreMetrics)

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	c.retryCfg = retry.Config{MaxAttempts: 1}
	if cfg.MaxRetries > 0 {
		rc := errors.DefaultRetryConfig()
		rc.MaxRetries = cfg.MaxRetries
		c.retryCfg = rc.ToRetryConfig()
	}

	return c, nil
}

// Stats returns the per-endpoint instrumentation aggregator.
func (c *Client) Stats() *Instrumentation {
	return c.inst
}

// Content is a single content item as served by the API.
type Content struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	WordCount int       `json:"word_count,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// SearchResult is the response of a content search.
type SearchResult struct {
	Items []Content `json:"items"`
	Total int       `json:"total,omitempty"`
}

// GenerationRequest asks the backend to generate an article.
type GenerationRequest struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords,omitempty"`
	Category string   `json:"category,omitempty"`
	Style    string   `json:"style,omitempty"`
}

// GetContent fetches a single content item by ID.
func (c *Client) GetContent(ctx context.Context, id string) (*Content, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "client", "GetContent", "content id cannot be empty")
	}

	var content Content
	if err := c.do(ctx, http.MethodGet, c.apiPrefix+"/content/"+url.PathEscape(id), nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// Search queries content by text, optionally filtered by category.
// A non-positive limit uses the server default.
func (c *Client) Search(ctx context.Context, query, category string, limit int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("search", query)
	if category != "" {
		params.Set("category", category)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result SearchResult
	if err := c.do(ctx, http.MethodGet, c.apiPrefix+"/content?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Generate asks the backend to generate content for a topic.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*Content, error) {
	if req.Topic == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "client", "Generate", "topic cannot be empty")
	}

	var content Content
	if err := c.do(ctx, http.MethodPost, c.apiPrefix+"/content/generate", req, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// Save persists a content item on the backend.
func (c *Client) Save(ctx context.Context, content *Content) (*Content, error) {
	if content == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "client", "Save", "content cannot be nil")
	}

	var saved Content
	if err := c.do(ctx, http.MethodPost, c.apiPrefix+"/content/save", content, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// do executes one request, retrying transient failures with backoff.
// The instrumented transport records latency and outcome for every
// attempt; do only translates failures into classified errors after
// the recording has happened.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.WrapTransient(errors.ErrRateLimited, "client", "do", "rate limiter wait")
		}
	}

	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return errors.WrapInvalid(err, "client", "do", "marshal request body")
		}
	}

	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.exchange(ctx, method, path, data, out)
	})
	if err != nil {
		// Unwrap the retry marker so callers see the classified error.
		var nre *retry.NonRetryableError
		if stderrors.As(err, &nre) {
			return nre.Err
		}
		return err
	}
	return nil
}

// exchange performs a single request/response cycle. Invalid outcomes
// (404, malformed bodies) are marked non-retryable; everything else is
// fair game for another attempt.
func (c *Client) exchange(ctx context.Context, method, path string, data []byte, out any) error {
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return retry.NonRetryable(errors.WrapInvalid(err, "client", "do", "build request"))
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "client", "do", fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return retry.NonRetryable(errors.WrapInvalid(errors.ErrNotFound, "client", "do", fmt.Sprintf("%s %s", method, path)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WrapTransient(errors.ErrFetchFailed, "client", "do",
			fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.NonRetryable(errors.WrapInvalid(errors.ErrParsingFailed, "client", "do", "decode response body"))
	}
	return nil
}

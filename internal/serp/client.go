package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scanbay/internal/config"
	"scanbay/internal/ratelimit"
	"scanbay/internal/services"
)

// Item is the normalized shape every engine's raw results reduce to.
type Item struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Source    string `json:"source"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Snippet   string `json:"snippet"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Searcher is the search operation the orchestrator and backfills depend on.
type Searcher interface {
	Search(ctx context.Context, engine Engine, query string, count int) ([]Item, error)
}

// Client calls the search-aggregation API.
type Client struct {
	apiKey      string
	baseURL     string
	locale      string
	country     string
	resultCount int
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter overrides the gate/backoff wrapper (useful for tests).
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New creates a search client from the serp configuration section.
func New(cfg config.Serp, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "serp", "new", "api key required", nil)
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "serp", "new", "base url required", nil)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	policy := ratelimit.DefaultPolicy()
	if cfg.RetryAttempts > 0 {
		policy.MaxAttempts = cfg.RetryAttempts
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	client := &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		locale:      strings.TrimSpace(cfg.Locale),
		country:     strings.TrimSpace(cfg.Country),
		resultCount: cfg.ResultCount,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     ratelimit.NewLimiter(maxConcurrency, policy),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search runs one engine query and returns normalized results. Engine
// defaults (locale and market parameters) are applied here so tool calls stay
// minimal.
func (c *Client) Search(ctx context.Context, engine Engine, query string, count int) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "serp", "search", "query must not be empty", nil)
	}
	if _, err := ParseEngine(string(engine)); err != nil {
		return nil, services.Wrap(services.ErrValidation, "serp", "search", err.Error(), nil)
	}
	if count <= 0 {
		count = c.resultCount
	}
	if count <= 0 {
		count = 10
	}

	endpoint, err := url.Parse(c.baseURL + "/search.json")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "serp", "search", "parse base url", err)
	}
	params := url.Values{}
	params.Set("engine", engine.apiName())
	params.Set("q", engine.scopeQuery(query))
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(count))
	c.applyLocaleParams(engine, params)
	endpoint.RawQuery = params.Encode()

	var items []Item
	err = c.limiter.Do(ctx, func(ctx context.Context) error {
		results, err := c.roundTrip(ctx, engine, endpoint.String(), count)
		if err != nil {
			return err
		}
		items = results
		return nil
	})
	if err != nil {
		return nil, classify(engine, err)
	}
	return items, nil
}

// roundTrip executes one request attempt. Rate limits and upstream 5xx are
// retryable by the limiter; client errors and API-level errors are not.
func (c *Client) roundTrip(ctx context.Context, engine Engine, endpoint string, count int) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("engine %s returned %d (latency=%v): %w", engine, resp.StatusCode, latency, errServer)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("engine %s returned %d: %w", engine, resp.StatusCode, ratelimit.ErrNonRetryable)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w", err, ratelimit.ErrNonRetryable)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("engine %s: %s: %w", engine, payload.Error, ratelimit.ErrNonRetryable)
	}
	return payload.normalize(count), nil
}

var (
	errRateLimited = errors.New("rate limited")
	errServer      = errors.New("server error")
)

// classify maps transport-level failures onto the service error taxonomy.
func classify(engine Engine, err error) error {
	switch {
	case errors.Is(err, errRateLimited):
		return services.Wrap(services.ErrRateLimited, "serp", "search", fmt.Sprintf("engine %s rate limited after retries", engine), err)
	case errors.Is(err, errServer), errors.Is(err, ratelimit.ErrNonRetryable):
		return services.Wrap(services.ErrExternalTool, "serp", "search", "request rejected", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return services.Wrap(services.ErrNetwork, "serp", "search", "request failed", err)
	}
}

// applyLocaleParams sets the engine-family locale defaults: hl/gl for the
// google engines, mkt for bing.
func (c *Client) applyLocaleParams(engine Engine, params url.Values) {
	if engine == EngineBingImages {
		if c.locale != "" && c.country != "" {
			params.Set("mkt", c.locale+"-"+strings.ToUpper(c.country))
		}
		return
	}
	if c.locale != "" {
		params.Set("hl", c.locale)
	}
	if c.country != "" {
		params.Set("gl", strings.ToLower(c.country))
	}
}

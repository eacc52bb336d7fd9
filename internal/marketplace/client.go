package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"scanbay/internal/bundle"
	"scanbay/internal/config"
	"scanbay/internal/ratelimit"
	"scanbay/internal/services"
)

// Listing is the marketplace-facing shape of one identified product.
type Listing struct {
	SKU            string   `json:"sku"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	CategoryID     string   `json:"category_id,omitempty"`
	ManufacturerID string   `json:"manufacturer_id,omitempty"`
	Price          float64  `json:"price"`
	Currency       string   `json:"currency"`
	Quantity       int      `json:"quantity"`
	ImageURLs      []string `json:"image_urls,omitempty"`
}

// Client talks to the marketplace inventory API.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	limiter       *ratelimit.Limiter
	breaker       *gobreaker.CircuitBreaker
	categories    *Cache
	manufacturers *Cache
}

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

// New creates a marketplace client. The category and manufacturer caches are
// supplied by the caller; passing fresh caches gives a cold client.
func New(cfg config.Marketplace, categories, manufacturers *Cache, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "new", "sync disabled", nil)
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "new", "base url required", nil)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "new", "api key required", nil)
	}
	if categories == nil {
		categories = NewCache()
	}
	if manufacturers == nil {
		manufacturers = NewCache()
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
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.NewLimiter(maxConcurrency, policy),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "marketplace",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		categories:    categories,
		manufacturers: manufacturers,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SyncListing creates or replaces one listing.
func (c *Client) SyncListing(ctx context.Context, listing Listing) error {
	if strings.TrimSpace(listing.SKU) == "" {
		return services.Wrap(services.ErrValidation, "marketplace", "sync listing", "sku required", nil)
	}
	body, err := json.Marshal(listing)
	if err != nil {
		return services.Wrap(services.ErrValidation, "marketplace", "sync listing", "encode listing", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/listings/"+url.PathEscape(listing.SKU), body)
	return err
}

// UpdateStock sets the available quantity for a SKU.
func (c *Client) UpdateStock(ctx context.Context, sku string, quantity int) error {
	if strings.TrimSpace(sku) == "" {
		return services.Wrap(services.ErrValidation, "marketplace", "update stock", "sku required", nil)
	}
	if quantity < 0 {
		return services.Wrap(services.ErrValidation, "marketplace", "update stock", "quantity must not be negative", nil)
	}
	body, err := json.Marshal(map[string]int{"quantity": quantity})
	if err != nil {
		return services.Wrap(services.ErrValidation, "marketplace", "update stock", "encode payload", err)
	}
	_, err = c.do(ctx, http.MethodPut, "/listings/"+url.PathEscape(sku)+"/stock", body)
	return err
}

// ResolveCategory maps a category name to the marketplace category id,
// consulting the injected cache first.
func (c *Client) ResolveCategory(ctx context.Context, name string) (string, error) {
	return c.resolveLookup(ctx, c.categories, "/categories", name)
}

// ResolveManufacturer maps a brand name to the marketplace manufacturer id,
// consulting the injected cache first.
func (c *Client) ResolveManufacturer(ctx context.Context, name string) (string, error) {
	return c.resolveLookup(ctx, c.manufacturers, "/manufacturers", name)
}

func (c *Client) resolveLookup(ctx context.Context, cache *Cache, path, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "marketplace", "lookup", "name required", nil)
	}
	key := strings.ToLower(name)
	if id, ok := cache.Get(key); ok {
		return id, nil
	}

	data, err := c.do(ctx, http.MethodGet, path+"?name="+url.QueryEscape(name), nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "marketplace", "lookup", "decode response", err)
	}
	if payload.ID == "" {
		return "", services.Wrap(services.ErrNotFound, "marketplace", "lookup", fmt.Sprintf("no match for %q", name), nil)
	}
	cache.Put(key, payload.ID)
	return payload.ID, nil
}

// do executes one API call under the gate, retry policy, and breaker.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		raw, err := c.breaker.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, method, path, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("circuit open: %w", ratelimit.ErrNonRetryable)
			}
			return err
		}
		result = raw.([]byte)
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// Client errors will not succeed on retry.
		return nil, fmt.Errorf("request rejected with %d: %w", resp.StatusCode, ratelimit.ErrNonRetryable)
	}
	return data, nil
}

var errRateLimited = errors.New("rate limited")

// classify maps transport-level failures onto the service error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, errRateLimited):
		return services.Wrap(services.ErrRateLimited, "marketplace", "call", "quota exhausted after retries", err)
	case errors.Is(err, ratelimit.ErrNonRetryable):
		return services.Wrap(services.ErrExternalTool, "marketplace", "call", "rejected", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return services.Wrap(services.ErrNetwork, "marketplace", "call", "request failed", err)
	}
}

// ListingFromProduct builds the marketplace listing for an identified
// product. Price falls back to zero when the bundle carries none; web image
// URLs are included, base64 payloads are not.
func ListingFromProduct(p *bundle.Product, defaultCurrency string, quantity int) Listing {
	listing := Listing{
		SKU:         p.Details.Identifiers.SKU,
		Title:       p.Identification.Name,
		Description: p.Details.ShortDescription,
		Currency:    defaultCurrency,
		Quantity:    quantity,
	}
	if listing.SKU == "" {
		listing.SKU = p.Details.Identifiers.EAN
	}
	if lp := p.Details.Pricing.LowestPrice; lp != nil {
		listing.Price = lp.Amount
		listing.Currency = lp.Currency
	}
	for _, img := range p.Details.Images {
		if strings.HasPrefix(img.URLOrBase64, "http://") || strings.HasPrefix(img.URLOrBase64, "https://") {
			listing.ImageURLs = append(listing.ImageURLs, img.URLOrBase64)
		}
	}
	return listing
}

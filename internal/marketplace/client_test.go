package marketplace_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scanbay/internal/bundle"
	"scanbay/internal/config"
	"scanbay/internal/marketplace"
	"scanbay/internal/ratelimit"
	"scanbay/internal/services"
)

func testMarketplaceConfig(baseURL string) config.Marketplace {
	return config.Marketplace{
		Enabled:        true,
		BaseURL:        baseURL,
		APIKey:         "test-key",
		MaxConcurrency: 2,
		RetryAttempts:  3,
	}
}

func fastLimiter(attempts int) *ratelimit.Limiter {
	return ratelimit.NewLimiter(2,
		ratelimit.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
}

func TestSyncListingSendsAuthorizedRequest(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := marketplace.New(testMarketplaceConfig(server.URL), marketplace.NewCache(), marketplace.NewCache(),
		marketplace.WithLimiter(fastLimiter(3)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = client.SyncListing(context.Background(), marketplace.Listing{
		SKU: "DHP484Z", Title: "Makita DHP484", Price: 129, Currency: "EUR", Quantity: 3,
	})
	if err != nil {
		t.Fatalf("SyncListing failed: %v", err)
	}
	if gotPath != "/listings/DHP484Z" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestSyncListingRequiresSKU(t *testing.T) {
	client, err := marketplace.New(testMarketplaceConfig("http://unused.test"), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := client.SyncListing(context.Background(), marketplace.Listing{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupCachesResults(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"id": "cat-17"}`))
	}))
	defer server.Close()

	categories := marketplace.NewCache()
	client, err := marketplace.New(testMarketplaceConfig(server.URL), categories, marketplace.NewCache(),
		marketplace.WithLimiter(fastLimiter(3)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := client.ResolveCategory(ctx, "Power Tools")
		if err != nil {
			t.Fatalf("ResolveCategory failed: %v", err)
		}
		if id != "cat-17" {
			t.Fatalf("unexpected id %q", id)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single upstream lookup, got %d", calls)
	}
	if categories.Len() != 1 {
		t.Fatalf("expected cached entry, got %d", categories.Len())
	}

	// Reset empties the cache, forcing a fresh lookup.
	categories.Reset()
	if _, err := client.ResolveCategory(ctx, "Power Tools"); err != nil {
		t.Fatalf("ResolveCategory after reset failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected second upstream lookup after reset, got %d", calls)
	}
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": ""}`))
	}))
	defer server.Close()

	client, err := marketplace.New(testMarketplaceConfig(server.URL), nil, nil,
		marketplace.WithLimiter(fastLimiter(3)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.ResolveManufacturer(context.Background(), "Unknown Brand"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRateLimitRetriedThenSurfaced(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := marketplace.New(testMarketplaceConfig(server.URL), nil, nil,
		marketplace.WithLimiter(fastLimiter(3)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = client.UpdateStock(context.Background(), "DHP484Z", 5)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client, err := marketplace.New(testMarketplaceConfig(server.URL), nil, nil,
		marketplace.WithLimiter(fastLimiter(5)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = client.UpdateStock(context.Background(), "DHP484Z", 5)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt for a client error, got %d", calls)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := marketplace.New(testMarketplaceConfig(server.URL), nil, nil,
		marketplace.WithLimiter(fastLimiter(10)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = client.UpdateStock(context.Background(), "DHP484Z", 5)
	if err == nil {
		t.Fatal("expected failure")
	}
	// Five consecutive server errors trip the breaker; further attempts fail
	// without touching the upstream.
	if atomic.LoadInt32(&calls) != 5 {
		t.Fatalf("expected breaker to cap upstream calls at 5, got %d", calls)
	}
}

func TestNewValidatesConfiguration(t *testing.T) {
	if _, err := marketplace.New(config.Marketplace{}, nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected disabled config rejected, got %v", err)
	}
	cfg := config.Marketplace{Enabled: true, APIKey: "k"}
	if _, err := marketplace.New(cfg, nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected missing base url rejected, got %v", err)
	}
}

func TestListingFromProduct(t *testing.T) {
	product := bundle.Product{
		Identification: bundle.Identification{Name: "Makita DHP484", Brand: "Makita"},
		Details: bundle.Details{
			ShortDescription: "18V combi drill",
			Identifiers:      bundle.Identifiers{EAN: "4006381333931"},
			Images: []bundle.Image{
				{Source: "web", Variant: "marketing", URLOrBase64: "https://img.example/a.jpg"},
				{Source: "upload", Variant: "original", URLOrBase64: "ZGF0YQ=="},
			},
			Pricing: bundle.Pricing{
				LowestPrice: &bundle.LowestPrice{Amount: 129, Currency: "EUR", Sources: []bundle.PriceSource{{Name: "s"}}, LastCheckedISO: "x"},
			},
		},
	}
	listing := marketplace.ListingFromProduct(&product, "USD", 2)
	if listing.SKU != "4006381333931" {
		t.Fatalf("expected EAN fallback for sku, got %q", listing.SKU)
	}
	if listing.Price != 129 || listing.Currency != "EUR" {
		t.Fatalf("expected bundle price used, got %v %s", listing.Price, listing.Currency)
	}
	if len(listing.ImageURLs) != 1 || listing.ImageURLs[0] != "https://img.example/a.jpg" {
		t.Fatalf("expected only http images included, got %v", listing.ImageURLs)
	}
	if listing.Quantity != 2 || listing.Title != "Makita DHP484" {
		t.Fatalf("unexpected listing: %#v", listing)
	}
}

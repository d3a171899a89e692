package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"walletview/internal/provider"
)

const (
	freeAPIBaseURL = "https://api.coingecko.com/api/v3"
	proAPIBaseURL  = "https://pro-api.coingecko.com/api/v3"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coingecko_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the primary price adapter backed by the CoinGecko simple price API.
type Client struct {
	// asset is the CoinGecko coin id, e.g. "solana".
	asset string
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the CoinGecko client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithAPIKey authenticates requests. Demo keys stay on the public host, pro keys
// switch to the pro host.
func WithAPIKey(key string, pro bool) Option {
	return func(c *Client) {
		if key == "" {
			return
		}
		if pro {
			c.baseURL = proAPIBaseURL
			c.header.Set("x-cg-pro-api-key", key)
			return
		}
		c.header.Set("x-cg-demo-api-key", key)
	}
}

// New creates a CoinGecko adapter for the given coin id.
func New(asset string, options ...Option) (*Client, error) {
	if asset == "" {
		return nil, fmt.Errorf("coingecko: asset id is required")
	}
	var client = &Client{
		asset:      asset,
		baseURL:    freeAPIBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Name implements provider.Adapter.
func (c *Client) Name() string { return "coingecko" }

// FetchOnce implements provider.Adapter.
func (c *Client) FetchOnce(ctx context.Context) (*provider.RawResponse, error) {
	query := url.Values{}
	query.Set("ids", c.asset)
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")
	return provider.Get(ctx, c.httpClient, fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode()), c.header)
}

// Normalize implements provider.Adapter.
//
// Expected body:
//
//	{"solana": {"usd": 172.31, "usd_24h_change": -2.41}}
//
// The change field is optional; usd must be a positive number.
func (c *Client) Normalize(raw *provider.RawResponse) (provider.Quote, error) {
	if !gjson.ValidBytes(raw.Body) {
		return provider.Quote{}, provider.Malformed("coingecko: invalid json")
	}
	entry := gjson.GetBytes(raw.Body, provider.EscapeKey(c.asset))
	if !entry.IsObject() {
		return provider.Quote{}, provider.Malformed("coingecko: missing %q", c.asset)
	}
	price, ok := provider.Number(entry.Get("usd"))
	if !ok || price <= 0 {
		return provider.Quote{}, provider.Malformed("coingecko: missing or non-numeric %s.usd", c.asset)
	}
	q := provider.Quote{Price: price, Source: c.Name(), ReceivedAt: time.Now().UTC()}
	if change, ok := provider.Number(entry.Get("usd_24h_change")); ok {
		q.Change24h = change
		q.HasChange = true
	}
	return q, nil
}

package binance

import (
    "context"
    "fmt"
    "net/url"
    "strings"
    "time"

    "github.com/tidwall/gjson"

    "walletview/internal/provider"
)

// Config controls the Binance ticker adapter.
type Config struct {
    Name    string
    BaseURL string
    Pair    string // e.g. SOLUSDT
}

// Provider is the tertiary price adapter backed by the 24h rolling ticker.
type Provider struct {
    cfg    Config
    client provider.HTTPClient
}

func New(cfg Config, hc provider.HTTPClient) *Provider {
    if cfg.Name == "" { cfg.Name = "binance" }
    if cfg.BaseURL == "" { cfg.BaseURL = "https://api.binance.com/api" }
    if cfg.Pair == "" { cfg.Pair = "SOLUSDT" }
    cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
    cfg.Pair = strings.ToUpper(cfg.Pair)
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) FetchOnce(ctx context.Context) (*provider.RawResponse, error) {
    q := url.Values{}
    q.Set("symbol", p.cfg.Pair)
    return provider.Get(ctx, p.client, fmt.Sprintf("%s/v3/ticker/24hr?%s", p.cfg.BaseURL, q.Encode()), nil)
}

// Normalize reads lastPrice and priceChangePercent. Binance encodes both as
// decimal strings; both are required.
func (p *Provider) Normalize(raw *provider.RawResponse) (provider.Quote, error) {
    if !gjson.ValidBytes(raw.Body) {
        return provider.Quote{}, provider.Malformed("binance: invalid json")
    }
    res := gjson.GetManyBytes(raw.Body, "lastPrice", "priceChangePercent")
    price, ok := provider.NumericString(res[0])
    if !ok || price <= 0 {
        return provider.Quote{}, provider.Malformed("binance: missing or non-numeric lastPrice")
    }
    change, ok := provider.NumericString(res[1])
    if !ok {
        return provider.Quote{}, provider.Malformed("binance: missing or non-numeric priceChangePercent")
    }
    return provider.Quote{
        Price:      price,
        Change24h:  change,
        HasChange:  true,
        Source:     p.cfg.Name,
        ReceivedAt: time.Now().UTC(),
    }, nil
}

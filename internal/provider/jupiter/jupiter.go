package jupiter

import (
    "context"
    "fmt"
    "net/url"
    "strings"
    "time"

    "github.com/tidwall/gjson"

    "walletview/internal/provider"
)

type Config struct {
    Name    string
    BaseURL string
    // Symbol is the token id passed as ?ids=, e.g. SOL or a mint address.
    Symbol string
}

// Provider is the secondary price adapter. Jupiter reports a price only,
// so quotes never carry a 24h change.
type Provider struct {
    cfg    Config
    client provider.HTTPClient
}

func New(cfg Config, hc provider.HTTPClient) *Provider {
    if cfg.Name == "" { cfg.Name = "jupiter" }
    if cfg.BaseURL == "" { cfg.BaseURL = "https://price.jup.ag" }
    if cfg.Symbol == "" { cfg.Symbol = "SOL" }
    cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) FetchOnce(ctx context.Context) (*provider.RawResponse, error) {
    q := url.Values{}
    q.Set("ids", p.cfg.Symbol)
    return provider.Get(ctx, p.client, fmt.Sprintf("%s/v4/price?%s", p.cfg.BaseURL, q.Encode()), nil)
}

// Normalize reads data.<symbol>.price.
func (p *Provider) Normalize(raw *provider.RawResponse) (provider.Quote, error) {
    if !gjson.ValidBytes(raw.Body) {
        return provider.Quote{}, provider.Malformed("jupiter: invalid json")
    }
    path := "data." + provider.EscapeKey(p.cfg.Symbol) + ".price"
    price, ok := provider.Number(gjson.GetBytes(raw.Body, path))
    if !ok || price <= 0 {
        return provider.Quote{}, provider.Malformed("jupiter: missing or non-numeric %s", path)
    }
    return provider.Quote{Price: price, Source: p.cfg.Name, ReceivedAt: time.Now().UTC()}, nil
}

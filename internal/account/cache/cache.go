package cache

import (
    "context"
    "fmt"
    "strconv"
    "time"

    lru "github.com/hashicorp/golang-lru"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "golang.org/x/sync/singleflight"

    "walletview/internal/account"
)

var lookups = promauto.NewCounterVec(
    prometheus.CounterOpts{
        Name: "walletview_account_cache_lookups_total",
        Help: "Account cache lookups by kind and result",
    }, []string{"kind", "result"})

// DefaultFetchTimeout bounds a shared upstream lookup.
const DefaultFetchTimeout = 30 * time.Second

// entry stores one cached value with expiry.
type entry struct {
    expiresAt time.Time
    value     any
}

// Source caches results of an account.Source per key for a TTL.
// Only successful lookups are stored; errors always reach the caller.
type Source struct {
    S   account.Source
    TTL time.Duration
    // FetchTimeout bounds a lookup shared by concurrent callers.
    FetchTimeout time.Duration

    items *lru.Cache
    sf    singleflight.Group
    now   func() time.Time
}

// New wraps s. maxItems bounds the number of cached keys across all kinds.
func New(s account.Source, ttl time.Duration, maxItems int) (*Source, error) {
    if maxItems <= 0 { maxItems = 1024 }
    items, err := lru.New(maxItems)
    if err != nil { return nil, fmt.Errorf("account cache: %w", err) }
    return &Source{S: s, TTL: ttl, FetchTimeout: DefaultFetchTimeout, items: items, now: time.Now}, nil
}

func (c *Source) Balance(ctx context.Context, address string) (account.Balance, error) {
    v, err := c.get(ctx, "balance", address, func(ctx context.Context) (any, error) { return c.S.Balance(ctx, address) })
    if err != nil { return account.Balance{}, err }
    return v.(account.Balance), nil
}

func (c *Source) TokenHoldings(ctx context.Context, address string) ([]account.TokenHolding, error) {
    v, err := c.get(ctx, "tokens", address, func(ctx context.Context) (any, error) { return c.S.TokenHoldings(ctx, address) })
    if err != nil { return nil, err }
    hs := v.([]account.TokenHolding)
    return append([]account.TokenHolding(nil), hs...), nil
}

func (c *Source) Transactions(ctx context.Context, address string, limit int) ([]account.Transaction, error) {
    limit = account.ClampLimit(limit)
    key := address + ":" + strconv.Itoa(limit)
    v, err := c.get(ctx, "transactions", key, func(ctx context.Context) (any, error) {
        return c.S.Transactions(ctx, address, limit)
    })
    if err != nil { return nil, err }
    txs := v.([]account.Transaction)
    return append([]account.Transaction(nil), txs...), nil
}

func (c *Source) Transaction(ctx context.Context, signature string) (account.TransactionStatus, error) {
    v, err := c.get(ctx, "transaction", signature, func(ctx context.Context) (any, error) {
        return c.S.Transaction(ctx, signature)
    })
    if err != nil { return account.TransactionStatus{}, err }
    return v.(account.TransactionStatus), nil
}

// Purge drops every cached entry.
func (c *Source) Purge() { c.items.Purge() }

func (c *Source) Len() int { return c.items.Len() }

// get serves key from the cache or runs fetch once for all concurrent callers.
// The shared fetch is detached from any one caller; each caller stops waiting
// when its own context ends.
func (c *Source) get(ctx context.Context, kind, key string, fetch func(context.Context) (any, error)) (any, error) {
    if c.TTL <= 0 { return fetch(ctx) }
    k := kind + "/" + key
    if iv, ok := c.items.Get(k); ok {
        if e, ok := iv.(entry); ok && c.now().Before(e.expiresAt) {
            lookups.WithLabelValues(kind, "hit").Inc()
            return e.value, nil
        }
        c.items.Remove(k)
        lookups.WithLabelValues(kind, "expired").Inc()
    } else {
        lookups.WithLabelValues(kind, "miss").Inc()
    }
    if err := ctx.Err(); err != nil { return nil, err }

    ch := c.sf.DoChan(k, func() (any, error) {
        timeout := c.FetchTimeout
        if timeout <= 0 { timeout = DefaultFetchTimeout }
        fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
        defer cancel()
        v, err := fetch(fctx)
        if err != nil { return nil, err }
        c.items.Add(k, entry{expiresAt: c.now().Add(c.TTL), value: v})
        return v, nil
    })
    select {
    case res := <-ch:
        return res.Val, res.Err
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

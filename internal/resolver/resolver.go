// Package resolver answers "what is the current price and 24h change of the
// tracked asset" from a fixed chain of upstream providers.
//
// A successful answer is cached for the freshness window. When the cache is
// stale or empty the chain is walked in order and the first success wins. When
// every provider fails the last cached record is served however old it is, and
// without one a configured default is returned. GetPrice never fails.
package resolver

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "go.uber.org/zap"
    "golang.org/x/sync/singleflight"

    "walletview/internal/provider"
)

var priceRequests = promauto.NewCounterVec(
    prometheus.CounterOpts{
        Name: "walletview_price_requests_total",
        Help: "Total number of price lookups by how they were answered",
    }, []string{"result"})

const (
    DefaultFreshness      = 60 * time.Second
    DefaultRefreshTimeout = 30 * time.Second
    DefaultPrice          = 100.0
    DefaultChange         = 0.0
)

// Fetcher is one link of the provider chain, normally a retry.Fetcher.
//
//go:generate mockgen -package=resolver_test -destination=mock_fetcher_test.go -source=resolver.go Fetcher
type Fetcher interface {
    Name() string
    Fetch(ctx context.Context) (provider.Quote, error)
}

// Price is what callers see.
type Price struct {
    Price     float64 `json:"price"`
    Change24h float64 `json:"change24h"`
}

// Record is the cached price with its observation time.
type Record struct {
    Price      float64   `json:"price"`
    Change24h  float64   `json:"change24h"`
    ObservedAt time.Time `json:"observed_at"`
    Source     string    `json:"source"`
}

// Stats reports the resolver's degraded-operation state.
type Stats struct {
    ConsecutiveFailures int    `json:"consecutive_failures"`
    LastSource          string `json:"last_source,omitempty"`
}

type Resolver struct {
    chain     []Fetcher
    freshness time.Duration
    budget    time.Duration
    fallback  Price
    logger    *zap.Logger
    now       func() time.Time

    mu       sync.RWMutex
    cached   *Record
    failures int
    last     string

    sf singleflight.Group
}

type Option func(*Resolver)

// WithFreshness sets how long a fetched price is served without a network call.
func WithFreshness(d time.Duration) Option { return func(r *Resolver) { r.freshness = d } }

// WithDefault sets the price returned when nothing was ever fetched.
func WithDefault(price, change float64) Option {
    return func(r *Resolver) { r.fallback = Price{Price: price, Change24h: change} }
}

// WithRefreshTimeout bounds one walk of the chain, which runs detached from
// the callers waiting on it.
func WithRefreshTimeout(d time.Duration) Option {
    return func(r *Resolver) {
        if d > 0 { r.budget = d }
    }
}

func WithLogger(l *zap.Logger) Option {
    return func(r *Resolver) {
        if l != nil { r.logger = l }
    }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// New builds a resolver over chain, tried in the given order.
func New(chain []Fetcher, opts ...Option) *Resolver {
    r := &Resolver{
        chain:     chain,
        freshness: DefaultFreshness,
        budget:    DefaultRefreshTimeout,
        fallback:  Price{Price: DefaultPrice, Change24h: DefaultChange},
        logger:    zap.NewNop(),
        now:       time.Now,
    }
    for _, o := range opts { o(r) }
    return r
}

// GetPrice returns the best available price. It makes no upstream call while the
// cached record is fresh.
func (r *Resolver) GetPrice(ctx context.Context) Price {
    if rec, ok := r.fresh(); ok {
        priceRequests.WithLabelValues("fresh").Inc()
        return rec.price()
    }
    if err := ctx.Err(); err != nil { return r.degraded(err) }

    // Overlapping refreshes share one walk of the chain. The walk is not tied to
    // any caller's context; a caller that gives up falls back on its own.
    ch := r.sf.DoChan("price", func() (any, error) {
        if rec, ok := r.fresh(); ok {
            return rec.price(), nil
        }
        wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.budget)
        defer cancel()
        return r.refresh(wctx), nil
    })
    select {
    case res := <-ch:
        return res.Val.(Price)
    case <-ctx.Done():
        return r.degraded(ctx.Err())
    }
}

func (r *Resolver) refresh(ctx context.Context) Price {
    for _, f := range r.chain {
        if ctx.Err() != nil { break }
        q, err := f.Fetch(ctx)
        if err != nil {
            r.logger.Warn("price provider failed",
                zap.String("provider", f.Name()),
                zap.String("outcome", provider.Outcome(err)),
                zap.Error(err))
            continue
        }
        rec := r.store(q)
        priceRequests.WithLabelValues("provider").Inc()
        r.logger.Debug("price refreshed",
            zap.String("provider", rec.Source),
            zap.Float64("price", rec.Price),
            zap.Float64("change24h", rec.Change24h))
        return rec.price()
    }

    r.mu.Lock()
    r.failures++
    r.mu.Unlock()

    err := provider.ErrAllProvidersExhausted
    if ctx.Err() != nil { err = errors.Join(err, ctx.Err()) }
    return r.degraded(err)
}

// degraded serves the cached record however old it is, or the default.
func (r *Resolver) degraded(err error) Price {
    r.mu.RLock()
    failures := r.failures
    var stale *Record
    if r.cached != nil {
        c := *r.cached
        stale = &c
    }
    r.mu.RUnlock()

    if stale != nil {
        priceRequests.WithLabelValues("stale").Inc()
        r.logger.Warn("serving stale price",
            zap.Error(err),
            zap.Int("consecutive_failures", failures),
            zap.Duration("age", r.now().Sub(stale.ObservedAt)),
            zap.String("source", stale.Source))
        return stale.price()
    }
    priceRequests.WithLabelValues("default").Inc()
    r.logger.Error("serving default price",
        zap.Error(err),
        zap.Int("consecutive_failures", failures),
        zap.Float64("price", r.fallback.Price))
    return r.fallback
}

// store overwrites the cache with q. A quote without a change keeps the
// previously cached change, or 0.
func (r *Resolver) store(q provider.Quote) Record {
    r.mu.Lock()
    defer r.mu.Unlock()
    change := q.Change24h
    if !q.HasChange {
        change = 0
        if r.cached != nil { change = r.cached.Change24h }
    }
    rec := Record{Price: q.Price, Change24h: change, ObservedAt: r.now(), Source: q.Source}
    r.cached = &rec
    r.failures = 0
    r.last = q.Source
    return rec
}

func (r *Resolver) fresh() (Record, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    if r.cached == nil { return Record{}, false }
    if r.now().Sub(r.cached.ObservedAt) >= r.freshness { return Record{}, false }
    return *r.cached, true
}

// ClearCache discards the cached record.
func (r *Resolver) ClearCache() {
    r.mu.Lock()
    r.cached = nil
    r.mu.Unlock()
}

// Cached returns a copy of the cached record, fresh or not.
func (r *Resolver) Cached() (Record, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    if r.cached == nil { return Record{}, false }
    return *r.cached, true
}

func (r *Resolver) Stats() Stats {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return Stats{ConsecutiveFailures: r.failures, LastSource: r.last}
}

func (rec Record) price() Price { return Price{Price: rec.Price, Change24h: rec.Change24h} }

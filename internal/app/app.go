// Package app builds the runtime components from a loaded config. Both the
// server and the fetch command go through it so they resolve prices the same way.
package app

import (
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "walletview/internal/account"
    "walletview/internal/account/cache"
    "walletview/internal/account/solana"
    "walletview/internal/config"
    "walletview/internal/httpx"
    "walletview/internal/provider"
    "walletview/internal/provider/binance"
    "walletview/internal/provider/coingecko"
    "walletview/internal/provider/jupiter"
    "walletview/internal/provider/ratelimit"
    "walletview/internal/provider/retry"
    "walletview/internal/resolver"
)

// NewLogger builds a zap logger from the log section.
func NewLogger(cfg config.Log) (*zap.Logger, error) {
    lvl := zapcore.InfoLevel
    if s := strings.TrimSpace(cfg.Level); s != "" {
        if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
            return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
        }
    }
    zc := zap.NewProductionConfig()
    if strings.EqualFold(cfg.Format, "console") {
        zc = zap.NewDevelopmentConfig()
    }
    zc.Level = zap.NewAtomicLevelAt(lvl)
    zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
    return zc.Build()
}

// Policy converts the price section into a retry policy.
func Policy(p config.Price) retry.Policy {
    pol := retry.DefaultPolicy()
    pol.MaxRetries = p.MaxRetries
    if p.BaseDelayMs > 0 { pol.BaseDelay = time.Duration(p.BaseDelayMs) * time.Millisecond }
    if p.MaxDelayMs > 0 { pol.MaxDelay = time.Duration(p.MaxDelayMs) * time.Millisecond }
    if p.RateLimitDelayMs > 0 { pol.RateLimitDelay = time.Duration(p.RateLimitDelayMs) * time.Millisecond }
    return pol
}

// Adapters returns the enabled price adapters in chain order: CoinGecko,
// Jupiter, Binance. Each is wrapped with its configured rate limit.
func Adapters(cfg config.Config, hc *httpx.Client) ([]provider.Adapter, error) {
    var out []provider.Adapter
    if cfg.CoinGecko.Enabled {
        cg, err := coingecko.New(cfg.Price.Asset,
            coingecko.WithHTTPClient(hc),
            coingecko.WithBaseURL(cfg.CoinGecko.Endpoint),
            coingecko.WithAPIKey(cfg.CoinGecko.APIKey, cfg.CoinGecko.Pro),
        )
        if err != nil { return nil, fmt.Errorf("coingecko: %w", err) }
        out = append(out, limited(cg, cfg.CoinGecko))
    }
    if cfg.Jupiter.Enabled {
        jp := jupiter.New(jupiter.Config{BaseURL: cfg.Jupiter.Endpoint, Symbol: cfg.Price.Symbol},
            withKey(hc, "x-api-key", cfg.Jupiter.APIKey))
        out = append(out, limited(jp, cfg.Jupiter))
    }
    if cfg.Binance.Enabled {
        bn := binance.New(binance.Config{BaseURL: cfg.Binance.Endpoint, Pair: cfg.Price.Pair},
            withKey(hc, "X-MBX-APIKEY", cfg.Binance.APIKey))
        out = append(out, limited(bn, cfg.Binance))
    }
    return out, nil
}

func limited(a provider.Adapter, u config.Upstream) provider.Adapter {
    return ratelimit.Wrap(a, u.MaxRequestsPerMinute, u.Burst, u.MinRequestInterval())
}

// withKey returns a copy of hc that sends header on every request.
func withKey(hc *httpx.Client, header, key string) *httpx.Client {
    if key == "" { return hc }
    return hc.WithHeader(header, key)
}

// NewResolver wires the provider chain behind retry fetchers.
func NewResolver(cfg config.Config, hc *httpx.Client, logger *zap.Logger) (*resolver.Resolver, error) {
    adapters, err := Adapters(cfg, hc)
    if err != nil { return nil, err }
    if len(adapters) == 0 {
        logger.Warn("no price providers enabled; every lookup will serve the default price")
    }
    pol := Policy(cfg.Price)
    chain := make([]resolver.Fetcher, 0, len(adapters))
    for _, a := range adapters {
        chain = append(chain, retry.New(a, pol, logger.Named("retry")))
    }
    return resolver.New(chain,
        resolver.WithFreshness(cfg.Price.Freshness()),
        resolver.WithDefault(cfg.Price.DefaultPrice, cfg.Price.DefaultChange),
        resolver.WithRefreshTimeout(RefreshBudget(cfg, len(chain))),
        resolver.WithLogger(logger.Named("resolver")),
    ), nil
}

// RefreshBudget bounds one walk over n providers: every attempt may take the
// full request timeout and every retry may sit out its longest wait.
func RefreshBudget(cfg config.Config, n int) time.Duration {
    if n < 1 { n = 1 }
    pol := Policy(cfg.Price)
    var waits time.Duration
    d := pol.BaseDelay
    for i := 0; i < pol.MaxRetries; i++ {
        step := d
        if pol.MaxDelay > 0 && step > pol.MaxDelay { step = pol.MaxDelay }
        if pol.RateLimitDelay > step { step = pol.RateLimitDelay }
        waits += step
        d = time.Duration(float64(d) * pol.Multiplier)
    }
    attempts := time.Duration(pol.MaxRetries + 1)
    return time.Duration(n) * (attempts*cfg.Server.RequestTimeout() + waits)
}

// NewAccountSource returns the Solana RPC source, cached when a TTL is set.
func NewAccountSource(cfg config.Solana, logger *zap.Logger) (account.Source, error) {
    var src account.Source = solana.New(cfg.RPCURL,
        solana.WithCommitment(cfg.Commitment),
        solana.WithLogger(logger.Named("solana")),
    )
    if cfg.CacheTTL() <= 0 { return src, nil }
    return cache.New(src, cfg.CacheTTL(), cfg.CacheMaxItems)
}

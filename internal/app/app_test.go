package app

import (
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "walletview/internal/account/cache"
    "walletview/internal/config"
    "walletview/internal/httpx"
    "walletview/internal/resolver"
)

func TestNewLogger(t *testing.T) {
    l, err := NewLogger(config.Log{Level: "debug", Format: "console"})
    require.NoError(t, err)
    require.True(t, l.Core().Enabled(zapcore.DebugLevel))

    l, err = NewLogger(config.Log{Level: "WARN"})
    require.NoError(t, err)
    require.False(t, l.Core().Enabled(zapcore.InfoLevel))

    _, err = NewLogger(config.Log{Level: "chatty"})
    require.Error(t, err)
}

func TestPolicy(t *testing.T) {
    p := Policy(config.Default().Price)
    require.Equal(t, 3, p.MaxRetries)
    require.Equal(t, time.Second, p.BaseDelay)
    require.Equal(t, time.Second, p.RateLimitDelay)
    require.Zero(t, p.MaxDelay)

    p = Policy(config.Price{MaxRetries: 1, BaseDelayMs: 250, MaxDelayMs: 2000})
    require.Equal(t, 1, p.MaxRetries)
    require.Equal(t, 250*time.Millisecond, p.BaseDelay)
    require.Equal(t, 2*time.Second, p.MaxDelay)
}

func TestRefreshBudget(t *testing.T) {
    cfg := config.Default()
    // 4 attempts of 10s plus waits of 1s, 2s and 4s, for each of 3 providers.
    require.Equal(t, 3*47*time.Second, RefreshBudget(cfg, 3))

    cfg.Price.MaxRetries = 0
    require.Equal(t, 10*time.Second, RefreshBudget(cfg, 0))
}

func TestAdapters_OrderAndToggles(t *testing.T) {
    cfg := config.Default()
    as, err := Adapters(cfg, httpx.New(time.Second))
    require.NoError(t, err)
    require.Len(t, as, 3)
    require.Equal(t, []string{"coingecko", "jupiter", "binance"}, []string{as[0].Name(), as[1].Name(), as[2].Name()})

    cfg.CoinGecko.Enabled = false
    cfg.Binance.Enabled = false
    as, err = Adapters(cfg, httpx.New(time.Second))
    require.NoError(t, err)
    require.Len(t, as, 1)
    require.Equal(t, "jupiter", as[0].Name())
}

func TestWithKey_CopiesClient(t *testing.T) {
    base := httpx.New(time.Second)
    base.Headers = map[string]string{"X-Trace": "1"}

    require.Same(t, base, withKey(base, "x-api-key", ""))

    keyed := withKey(base, "x-api-key", "secret")
    require.NotSame(t, base, keyed)
    require.Equal(t, "secret", keyed.Headers["x-api-key"])
    require.Equal(t, "1", keyed.Headers["X-Trace"])
    require.NotContains(t, base.Headers, "x-api-key")
}

func TestNewResolver_EndToEnd(t *testing.T) {
    var cgCalls, jupCalls atomic.Int32
    cg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        cgCalls.Add(1)
        w.WriteHeader(http.StatusInternalServerError)
    }))
    defer cg.Close()
    jup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        jupCalls.Add(1)
        if r.Header.Get("x-api-key") != "k1" {
            w.WriteHeader(http.StatusUnauthorized)
            return
        }
        _, _ = w.Write([]byte(`{"data":{"SOL":{"id":"SOL","price":151.25}}}`))
    }))
    defer jup.Close()

    cfg := config.Default()
    cfg.CoinGecko.Endpoint = cg.URL
    cfg.CoinGecko.MaxRequestsPerMinute = 0
    cfg.Jupiter.Endpoint = jup.URL
    cfg.Jupiter.APIKey = "k1"
    cfg.Binance.Enabled = false

    r, err := NewResolver(cfg, httpx.New(time.Second), zap.NewNop())
    require.NoError(t, err)

    require.Equal(t, resolver.Price{Price: 151.25}, r.GetPrice(t.Context()))
    require.Equal(t, resolver.Price{Price: 151.25}, r.GetPrice(t.Context()))
    require.Equal(t, int32(1), cgCalls.Load())
    require.Equal(t, int32(1), jupCalls.Load())
}

func TestNewResolver_NothingEnabledServesDefault(t *testing.T) {
    cfg := config.Default()
    cfg.CoinGecko.Enabled, cfg.Jupiter.Enabled, cfg.Binance.Enabled = false, false, false
    cfg.Price.DefaultPrice = 80

    r, err := NewResolver(cfg, httpx.New(time.Second), zap.NewNop())
    require.NoError(t, err)
    require.Equal(t, resolver.Price{Price: 80}, r.GetPrice(t.Context()))
}

func TestNewAccountSource_CachedWhenTTLSet(t *testing.T) {
    src, err := NewAccountSource(config.Default().Solana, zap.NewNop())
    require.NoError(t, err)
    _, ok := src.(*cache.Source)
    require.True(t, ok)

    cfg := config.Default().Solana
    cfg.CacheTTLSec = 0
    src, err = NewAccountSource(cfg, zap.NewNop())
    require.NoError(t, err)
    _, ok = src.(*cache.Source)
    require.False(t, ok)
}

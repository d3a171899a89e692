package retry

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/cenkalti/backoff/v4"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "go.uber.org/zap"

    "walletview/internal/provider"
)

var (
    providerAttempts = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "walletview_provider_attempts_total",
            Help: "Total number of upstream price requests by provider and outcome",
        }, []string{"provider", "outcome"})
    providerLatency = promauto.NewHistogramVec(
        prometheus.HistogramOpts{
            Name: "walletview_provider_request_seconds",
            Help: "Latency of single upstream price requests",
        }, []string{"provider"})
)

// Policy controls how often and how long a Fetcher retries one adapter.
type Policy struct {
    // MaxRetries is the number of retries after the first attempt.
    MaxRetries int
    // BaseDelay is the wait after the first transport failure.
    BaseDelay time.Duration
    // Multiplier grows BaseDelay for each further transport failure.
    Multiplier float64
    // MaxDelay caps a single backoff wait. Zero means no cap.
    MaxDelay time.Duration
    // RateLimitDelay is used on 429 when the upstream sends no usable Retry-After.
    RateLimitDelay time.Duration
}

func DefaultPolicy() Policy {
    return Policy{
        MaxRetries:     3,
        BaseDelay:      time.Second,
        Multiplier:     2,
        RateLimitDelay: time.Second,
    }
}

func (p Policy) backoff() backoff.BackOff {
    b := backoff.NewExponentialBackOff()
    b.InitialInterval = p.BaseDelay
    b.Multiplier = p.Multiplier
    if b.Multiplier < 1 { b.Multiplier = 1 }
    b.RandomizationFactor = 0
    b.MaxInterval = p.MaxDelay
    if b.MaxInterval <= 0 { b.MaxInterval = time.Duration(1<<63 - 1) }
    b.MaxElapsedTime = 0
    b.Reset()
    return b
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
    if d <= 0 { return ctx.Err() }
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

var errNoResponse = errors.New("adapter returned no response")

// Fetcher wraps an adapter with the retry policy.
//
//go:generate mockgen -package=retry_test -destination=mock_adapter_test.go walletview/internal/provider Adapter
type Fetcher struct {
    Adapter provider.Adapter
    Policy  Policy
    Sleep   Sleeper
    Logger  *zap.Logger
}

func New(a provider.Adapter, p Policy, logger *zap.Logger) *Fetcher {
    if logger == nil { logger = zap.NewNop() }
    return &Fetcher{Adapter: a, Policy: p, Sleep: Sleep, Logger: logger}
}

func (f *Fetcher) Name() string { return f.Adapter.Name() }

// Fetch tries the adapter up to MaxRetries+1 times.
//
// Transport failures wait on exponential backoff, 429 responses wait for the
// upstream's Retry-After (or RateLimitDelay) without growing the backoff.
// Any other non-2xx status or a body that fails normalization returns at once.
func (f *Fetcher) Fetch(ctx context.Context) (provider.Quote, error) {
    sleep := f.Sleep
    if sleep == nil { sleep = Sleep }
    logger := f.Logger
    if logger == nil { logger = zap.NewNop() }
    name := f.Adapter.Name()
    bo := f.Policy.backoff()

    var lastErr error
    attempts := f.Policy.MaxRetries + 1
    if attempts < 1 { attempts = 1 }
    for attempt := 0; attempt < attempts; attempt++ {
        start := time.Now()
        raw, err := f.Adapter.FetchOnce(ctx)
        providerLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
        if err == nil && raw == nil { err = errNoResponse }

        var wait time.Duration
        switch {
        case err != nil:
            var te *provider.TransportError
            if !errors.As(err, &te) { err = &provider.TransportError{Err: err} }
            lastErr = err
            wait = bo.NextBackOff()
        case raw.StatusCode == http.StatusTooManyRequests:
            wait = retryAfter(raw.Header, f.Policy.RateLimitDelay, time.Now())
            lastErr = &provider.RateLimitedError{RetryAfter: wait}
        case !raw.OK():
            err = &provider.StatusError{StatusCode: raw.StatusCode, Body: snippet(raw.Body)}
            f.record(name, attempt, err)
            return provider.Quote{}, fmt.Errorf("%s: %w", name, err)
        default:
            q, err := f.Adapter.Normalize(raw)
            if err != nil {
                if !errors.Is(err, provider.ErrMalformedResponse) {
                    err = fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
                }
                f.record(name, attempt, err)
                return provider.Quote{}, fmt.Errorf("%s: %w", name, err)
            }
            f.record(name, attempt, nil)
            if q.Source == "" { q.Source = name }
            return q, nil
        }

        f.record(name, attempt, lastErr)
        if attempt == attempts-1 { break }
        logger.Debug("retrying price provider",
            zap.String("provider", name),
            zap.Int("attempt", attempt+1),
            zap.Duration("wait", wait),
            zap.Error(lastErr))
        if err := sleep(ctx, wait); err != nil {
            return provider.Quote{}, fmt.Errorf("%s: %w", name, err)
        }
    }
    return provider.Quote{}, fmt.Errorf("%s: %w after %d attempts: %w", name, provider.ErrRetriesExhausted, attempts, lastErr)
}

func (f *Fetcher) record(name string, attempt int, err error) {
    providerAttempts.WithLabelValues(name, provider.Outcome(err)).Inc()
    if err != nil && f.Logger != nil {
        f.Logger.Debug("price provider attempt failed",
            zap.String("provider", name),
            zap.Int("attempt", attempt+1),
            zap.String("outcome", provider.Outcome(err)),
            zap.Error(err))
    }
}

// retryAfter reads Retry-After as whole seconds or an HTTP date.
func retryAfter(h http.Header, def time.Duration, now time.Time) time.Duration {
    v := strings.TrimSpace(h.Get("Retry-After"))
    if v == "" { return def }
    if secs, err := strconv.Atoi(v); err == nil {
        if secs < 0 { return def }
        return time.Duration(secs) * time.Second
    }
    if t, err := http.ParseTime(v); err == nil {
        if d := t.Sub(now); d > 0 { return d }
        return 0
    }
    return def
}

func snippet(b []byte) string {
    const max = 256
    s := strings.TrimSpace(string(b))
    if len(s) > max { s = s[:max] }
    return s
}

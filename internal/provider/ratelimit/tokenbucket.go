package ratelimit

import (
    "context"
    "time"

    "golang.org/x/time/rate"

    "walletview/internal/provider"
)

// NewTokenBucket builds a limiter allowing requestsPerMinute with the given burst.
func NewTokenBucket(requestsPerMinute int, burst int) *rate.Limiter {
    if burst <= 0 { burst = 1 }
    if requestsPerMinute <= 0 { return rate.NewLimiter(rate.Inf, burst) }
    return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
}

// TokenBucket wraps an adapter and gates requests using a token bucket.
type TokenBucket struct {
    provider.Adapter
    Limiter *rate.Limiter
}

func (t *TokenBucket) FetchOnce(ctx context.Context) (*provider.RawResponse, error) {
    if t.Limiter != nil {
        if err := t.Limiter.Wait(ctx); err != nil { return nil, &provider.TransportError{Err: err} }
    }
    return t.Adapter.FetchOnce(ctx)
}

// Wrap applies the pacing configured for one provider. A positive rpm wins over
// a minimum interval; with neither set the adapter is returned unchanged.
func Wrap(a provider.Adapter, rpm, burst int, minInterval time.Duration) provider.Adapter {
    switch {
    case rpm > 0:
        return &TokenBucket{Adapter: a, Limiter: NewTokenBucket(rpm, burst)}
    case minInterval > 0:
        return &MinInterval{Adapter: a, Interval: minInterval}
    default:
        return a
    }
}

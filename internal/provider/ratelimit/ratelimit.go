package ratelimit

import (
    "context"
    "sync"
    "time"

    "walletview/internal/provider"
)

// MinInterval wraps an adapter and enforces a minimum time between requests.
// Concurrent calls will wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
    provider.Adapter
    Interval time.Duration
    mu       sync.Mutex
    last     time.Time
}

func (m *MinInterval) FetchOnce(ctx context.Context) (*provider.RawResponse, error) {
    if m.Interval > 0 {
        m.mu.Lock()
        wait := time.Until(m.last.Add(m.Interval))
        m.mu.Unlock()
        if wait > 0 {
            t := time.NewTimer(wait)
            defer t.Stop()
            select {
            case <-ctx.Done():
                return nil, &provider.TransportError{Err: ctx.Err()}
            case <-t.C:
            }
        }
    }
    raw, err := m.Adapter.FetchOnce(ctx)
    if m.Interval > 0 {
        m.mu.Lock()
        m.last = time.Now()
        m.mu.Unlock()
    }
    return raw, err
}

package cache

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "walletview/internal/account"
)

type fakeSource struct {
    mu    sync.Mutex
    calls map[string]int
    err   error
    // wait, when set, runs before Balance answers.
    wait func(ctx context.Context) error
}

func (f *fakeSource) hit(kind string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.calls == nil { f.calls = map[string]int{} }
    f.calls[kind]++
    return f.err
}

func (f *fakeSource) count(kind string) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.calls[kind]
}

func (f *fakeSource) Balance(ctx context.Context, address string) (account.Balance, error) {
    if f.wait != nil {
        if err := f.wait(ctx); err != nil { return account.Balance{}, err }
    }
    if err := f.hit("balance"); err != nil { return account.Balance{}, err }
    return account.NewBalance(address, 2_500_000_000), nil
}

func (f *fakeSource) TokenHoldings(_ context.Context, _ string) ([]account.TokenHolding, error) {
    if err := f.hit("tokens"); err != nil { return nil, err }
    return []account.TokenHolding{{Mint: "m1", Amount: "1"}}, nil
}

func (f *fakeSource) Transactions(_ context.Context, _ string, limit int) ([]account.Transaction, error) {
    if err := f.hit("transactions"); err != nil { return nil, err }
    out := make([]account.Transaction, limit)
    return out, nil
}

func (f *fakeSource) Transaction(_ context.Context, sig string) (account.TransactionStatus, error) {
    if err := f.hit("transaction"); err != nil { return account.TransactionStatus{}, err }
    return account.TransactionStatus{Signature: sig, Fee: 5000, Success: true}, nil
}

func newCache(t *testing.T, f *fakeSource, ttl time.Duration, max int) (*Source, *time.Time) {
    t.Helper()
    c, err := New(f, ttl, max)
    require.NoError(t, err)
    now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
    c.now = func() time.Time { return now }
    return c, &now
}

func TestCache_RepeatedLookupsHitOnce(t *testing.T) {
    f := &fakeSource{}
    c, _ := newCache(t, f, time.Minute, 10)

    for i := 0; i < 3; i++ {
        b, err := c.Balance(t.Context(), "addr")
        require.NoError(t, err)
        require.Equal(t, "2.5", b.SOL.String())
        _, err = c.TokenHoldings(t.Context(), "addr")
        require.NoError(t, err)
        _, err = c.Transaction(t.Context(), "sig")
        require.NoError(t, err)
    }
    require.Equal(t, 1, f.count("balance"))
    require.Equal(t, 1, f.count("tokens"))
    require.Equal(t, 1, f.count("transaction"))
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
    f := &fakeSource{}
    c, now := newCache(t, f, time.Minute, 10)

    _, _ = c.Balance(t.Context(), "addr")
    *now = now.Add(59 * time.Second)
    _, _ = c.Balance(t.Context(), "addr")
    require.Equal(t, 1, f.count("balance"))

    *now = now.Add(time.Second)
    _, _ = c.Balance(t.Context(), "addr")
    require.Equal(t, 2, f.count("balance"))
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
    f := &fakeSource{err: errors.New("rpc down")}
    c, _ := newCache(t, f, time.Minute, 10)

    _, err := c.Balance(t.Context(), "addr")
    require.Error(t, err)
    _, err = c.Balance(t.Context(), "addr")
    require.Error(t, err)
    require.Equal(t, 2, f.count("balance"))

    f.err = nil
    _, err = c.Balance(t.Context(), "addr")
    require.NoError(t, err)
    require.Equal(t, 1, c.Len())
}

func TestCache_TransactionsKeyedByClampedLimit(t *testing.T) {
    f := &fakeSource{}
    c, _ := newCache(t, f, time.Minute, 10)

    txs, err := c.Transactions(t.Context(), "addr", 0)
    require.NoError(t, err)
    require.Len(t, txs, account.DefaultTxLimit)
    _, _ = c.Transactions(t.Context(), "addr", account.DefaultTxLimit)
    require.Equal(t, 1, f.count("transactions"))

    _, _ = c.Transactions(t.Context(), "addr", 5)
    require.Equal(t, 2, f.count("transactions"))
}

func TestCache_BoundedByMaxItems(t *testing.T) {
    f := &fakeSource{}
    c, _ := newCache(t, f, time.Minute, 2)

    _, _ = c.Balance(t.Context(), "a")
    _, _ = c.Balance(t.Context(), "b")
    _, _ = c.Balance(t.Context(), "c")
    require.Equal(t, 2, c.Len())

    // "a" was least recently used and is gone.
    _, _ = c.Balance(t.Context(), "a")
    require.Equal(t, 4, f.count("balance"))
}

func TestCache_ZeroTTLPassesThrough(t *testing.T) {
    f := &fakeSource{}
    c, _ := newCache(t, f, 0, 10)

    _, _ = c.Balance(t.Context(), "addr")
    _, _ = c.Balance(t.Context(), "addr")
    require.Equal(t, 2, f.count("balance"))
    require.Zero(t, c.Len())
}

func TestCache_ReturnedSlicesAreCopies(t *testing.T) {
    f := &fakeSource{}
    c, _ := newCache(t, f, time.Minute, 10)

    hs, _ := c.TokenHoldings(t.Context(), "addr")
    hs[0].Mint = "mutated"
    again, _ := c.TokenHoldings(t.Context(), "addr")
    require.Equal(t, "m1", again[0].Mint)
}

func TestCache_CanceledCallerDoesNotFailJoinedCaller(t *testing.T) {
    started := make(chan struct{})
    release := make(chan struct{})
    f := &fakeSource{wait: func(ctx context.Context) error {
        close(started)
        <-release
        return ctx.Err()
    }}
    c, _ := newCache(t, f, time.Minute, 10)

    ctxA, cancelA := context.WithCancel(t.Context())
    defer cancelA()
    errA := make(chan error, 1)
    go func() {
        _, err := c.Balance(ctxA, "addr")
        errA <- err
    }()
    <-started

    type result struct {
        b   account.Balance
        err error
    }
    gotB := make(chan result, 1)
    go func() {
        b, err := c.Balance(t.Context(), "addr")
        gotB <- result{b, err}
    }()
    time.Sleep(20 * time.Millisecond)

    cancelA()
    require.ErrorIs(t, <-errA, context.Canceled)

    close(release)
    res := <-gotB
    require.NoError(t, res.err)
    require.Equal(t, uint64(2_500_000_000), res.b.Lamports)
    require.Equal(t, 1, f.count("balance"))
    require.Equal(t, 1, c.Len())
}

func TestCache_CanceledContextSkipsUpstream(t *testing.T) {
    f := &fakeSource{}
    c, _ := newCache(t, f, time.Minute, 10)
    ctx, cancel := context.WithCancel(t.Context())
    cancel()
    _, err := c.Balance(ctx, "addr")
    require.ErrorIs(t, err, context.Canceled)
    require.Equal(t, 0, f.count("balance"))
}

package main

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/gorilla/mux"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "walletview/internal/account"
    "walletview/internal/aggregate"
    "walletview/internal/resolver"
)

type priceSource interface {
    GetPrice(ctx context.Context) resolver.Price
    ClearCache()
    Cached() (resolver.Record, bool)
    Stats() resolver.Stats
}

type httpServer struct {
    prices   priceSource
    accounts account.Source
    logger   *zap.Logger
    timeout  time.Duration
    txLimit  int
}

type priceStatsResponse struct {
    Cached *resolver.Record `json:"cached,omitempty"`
    Fresh  bool             `json:"fresh"`
    resolver.Stats
}

type transactionsResponse struct {
    Address      string                `json:"address"`
    Transactions []account.Transaction `json:"transactions"`
}

type errorResponse struct {
    Error     string `json:"error"`
    RequestID string `json:"request_id,omitempty"`
}

// handler builds the full HTTP surface. /metrics sits outside the JSON and
// gzip middleware because promhttp negotiates its own encoding.
func (s *httpServer) handler(corsOrigin string) http.Handler {
    r := mux.NewRouter()
    r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
    r.HandleFunc("/api/price", s.handlePrice).Methods(http.MethodGet)
    r.HandleFunc("/api/price/stats", s.handlePriceStats).Methods(http.MethodGet)
    r.HandleFunc("/api/price/cache", s.handleClearPrice).Methods(http.MethodDelete)
    r.HandleFunc("/api/accounts/{address}", s.handleAccount).Methods(http.MethodGet)
    r.HandleFunc("/api/accounts/{address}/transactions", s.handleTransactions).Methods(http.MethodGet)
    r.HandleFunc("/api/transactions/{signature}", s.handleTransaction).Methods(http.MethodGet)
    r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
        writeError(w, http.StatusNotFound, "not found")
    })
    r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
    })

    api := withJSONHeaders(corsOrigin, withGzip(recoverPanic(s.logger, limitBody(r))))

    root := mux.NewRouter()
    root.Handle("/metrics", promhttp.Handler())
    root.PathPrefix("/").Handler(api)
    return withRequestID(withAccessLog(s.logger, root))
}

func (s *httpServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write([]byte("ok"))
}

// handlePrice always answers 200; the resolver falls back to stale or default.
func (s *httpServer) handlePrice(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, s.prices.GetPrice(r.Context()))
}

func (s *httpServer) handlePriceStats(w http.ResponseWriter, _ *http.Request) {
    resp := priceStatsResponse{Stats: s.prices.Stats()}
    if rec, ok := s.prices.Cached(); ok {
        resp.Cached = &rec
    }
    writeJSON(w, http.StatusOK, resp)
}

func (s *httpServer) handleClearPrice(w http.ResponseWriter, _ *http.Request) {
    s.prices.ClearCache()
    w.WriteHeader(http.StatusNoContent)
}

func (s *httpServer) handleAccount(w http.ResponseWriter, r *http.Request) {
    address := mux.Vars(r)["address"]
    ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
    defer cancel()

    var (
        bal      account.Balance
        holdings []account.TokenHolding
        price    resolver.Price
    )
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() (err error) {
        bal, err = s.accounts.Balance(gctx, address)
        return err
    })
    g.Go(func() (err error) {
        holdings, err = s.accounts.TokenHoldings(gctx, address)
        return err
    })
    // The price never fails, so it gets the parent context rather than gctx.
    g.Go(func() error {
        price = s.prices.GetPrice(ctx)
        return nil
    })
    if err := g.Wait(); err != nil {
        s.accountError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, aggregate.Summarize(bal, holdings, price))
}

func (s *httpServer) handleTransactions(w http.ResponseWriter, r *http.Request) {
    address := mux.Vars(r)["address"]
    limit := s.txLimit
    if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil {
            writeError(w, http.StatusBadRequest, "limit must be an integer")
            return
        }
        limit = n
    }
    ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
    defer cancel()
    txs, err := s.accounts.Transactions(ctx, address, account.ClampLimit(limit))
    if err != nil {
        s.accountError(w, r, err)
        return
    }
    if txs == nil { txs = []account.Transaction{} }
    writeJSON(w, http.StatusOK, transactionsResponse{Address: address, Transactions: txs})
}

func (s *httpServer) handleTransaction(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
    defer cancel()
    st, err := s.accounts.Transaction(ctx, mux.Vars(r)["signature"])
    if err != nil {
        s.accountError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, st)
}

// accountError maps account lookup failures to a status code.
func (s *httpServer) accountError(w http.ResponseWriter, r *http.Request, err error) {
    switch {
    case errors.Is(err, account.ErrInvalidAddress):
        writeError(w, http.StatusBadRequest, "invalid address")
    case errors.Is(err, account.ErrInvalidSignature):
        writeError(w, http.StatusBadRequest, "invalid signature")
    case errors.Is(err, account.ErrNotFound):
        writeError(w, http.StatusNotFound, "not found")
    default:
        s.logger.Warn("account lookup failed",
            zap.String("path", r.URL.Path),
            zap.String("request_id", requestIDFrom(r.Context())),
            zap.Error(err))
        writeError(w, http.StatusBadGateway, "upstream rpc error")
    }
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    writeJSON(w, status, errorResponse{Error: msg, RequestID: w.Header().Get(requestIDHeader)})
}

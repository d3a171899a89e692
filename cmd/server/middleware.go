package main

import (
    "compress/gzip"
    "context"
    "io"
    "net/http"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"
)

type ctxKey int

const requestIDKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

func requestIDFrom(ctx context.Context) string {
    id, _ := ctx.Value(requestIDKey).(string)
    return id
}

// withRequestID tags every request with an id, reusing a sane inbound one.
func withRequestID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := strings.TrimSpace(r.Header.Get(requestIDHeader))
        if id == "" || len(id) > 128 {
            id = uuid.NewString()
        }
        w.Header().Set(requestIDHeader, id)
        next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (s *statusRecorder) WriteHeader(code int) {
    if s.status == 0 { s.status = code }
    s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
    if s.status == 0 { s.status = http.StatusOK }
    return s.ResponseWriter.Write(b)
}

func withAccessLog(logger *zap.Logger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w}
        next.ServeHTTP(rec, r)
        logger.Debug("request",
            zap.String("method", r.Method),
            zap.String("path", r.URL.Path),
            zap.Int("status", rec.status),
            zap.Duration("took", time.Since(start)),
            zap.String("request_id", requestIDFrom(r.Context())))
    })
}

func withJSONHeaders(origin string, next http.Handler) http.Handler {
    if origin == "" { origin = "*" }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        w.Header().Set("Access-Control-Allow-Origin", origin)
        w.Header().Set("Access-Control-Allow-Methods", "GET,DELETE,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Request-ID")
        w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses responses for clients that accept gzip. Bodyless
// statuses go out uncompressed.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        gw := &gzipResponseWriter{ResponseWriter: w, gz: gz}
        defer func() {
            if !gw.bodyless { _ = gz.Close() }
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    gz       *gzip.Writer
    bodyless bool
}

func (g *gzipResponseWriter) WriteHeader(code int) {
    if code == http.StatusNoContent || code == http.StatusNotModified || (code >= 100 && code < 200) {
        g.bodyless = true
        g.Header().Del("Content-Encoding")
    }
    g.ResponseWriter.WriteHeader(code)
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
    if g.bodyless { return g.ResponseWriter.Write(b) }
    return g.gz.Write(b)
}

// limitBody caps request bodies at 1MB. Routes here take no body.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic logs a handler panic with its request id and answers a JSON 500.
func recoverPanic(logger *zap.Logger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                logger.Error("handler panic",
                    zap.Any("panic", rec),
                    zap.String("path", r.URL.Path),
                    zap.String("request_id", requestIDFrom(r.Context())))
                writeError(w, http.StatusInternalServerError, "internal server error")
            }
        }()
        next.ServeHTTP(w, r)
    })
}

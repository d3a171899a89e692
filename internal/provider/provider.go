package provider

import (
    "context"
    "fmt"
    "io"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/tidwall/gjson"
)

// Quote is the normalized shape returned by all price adapters.
// HasChange is false when the upstream does not report a 24h change.
type Quote struct {
    Price      float64   `json:"price"`
    Change24h  float64   `json:"change24h"`
    HasChange  bool      `json:"has_change"`
    Source     string    `json:"source"`
    ReceivedAt time.Time `json:"received_at"`
}

// RawResponse is one upstream HTTP exchange with the body already read.
type RawResponse struct {
    StatusCode int
    Header     http.Header
    Body       []byte
}

// OK reports a 2xx status.
func (r *RawResponse) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Adapter issues a single request against one upstream and normalizes its body.
// FetchOnce returns an error only for transport-level failures; any HTTP status
// is reported through RawResponse.
type Adapter interface {
    Name() string
    FetchOnce(ctx context.Context) (*RawResponse, error)
    Normalize(raw *RawResponse) (Quote, error)
}

// HTTPClient describes an HTTP client.
type HTTPClient interface {
    Do(req *http.Request) (*http.Response, error)
}

const maxBody = 1 << 20

// Get performs a GET with the JSON/no-cache headers every upstream expects and
// reads at most 1MB of the body. Only transport failures are returned as errors.
func Get(ctx context.Context, hc HTTPClient, url string, header http.Header) (*RawResponse, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
    if err != nil { return nil, fmt.Errorf("creating request: %w", err) }
    for k, vs := range header {
        for _, v := range vs { req.Header.Add(k, v) }
    }
    req.Header.Set("Accept", "application/json")
    req.Header.Set("Cache-Control", "no-cache")
    resp, err := hc.Do(req)
    if err != nil { return nil, &TransportError{Err: err} }
    defer resp.Body.Close()
    b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
    if err != nil { return nil, &TransportError{Err: fmt.Errorf("reading body: %w", err)} }
    return &RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// EscapeKey escapes gjson path metacharacters so k is matched literally.
func EscapeKey(k string) string {
    var b strings.Builder
    for _, r := range k {
        switch r {
        case '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '\\':
            b.WriteByte('\\')
        }
        b.WriteRune(r)
    }
    return b.String()
}

// Number extracts a finite JSON number. Strings, nulls and missing fields fail.
func Number(r gjson.Result) (float64, bool) {
    if r.Type != gjson.Number { return 0, false }
    v := r.Float()
    if math.IsNaN(v) || math.IsInf(v, 0) { return 0, false }
    return v, true
}

// NumericString extracts a finite float from a JSON string such as "23.45".
func NumericString(r gjson.Result) (float64, bool) {
    if r.Type != gjson.String { return 0, false }
    v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
    if err != nil || math.IsNaN(v) || math.IsInf(v, 0) { return 0, false }
    return v, true
}

package provider

import (
    "errors"
    "fmt"
    "time"
)

var (
    // ErrMalformedResponse marks a 2xx body that lacks the expected fields.
    ErrMalformedResponse = errors.New("malformed response")
    // ErrRetriesExhausted wraps the last error once the retry budget is spent.
    ErrRetriesExhausted = errors.New("retries exhausted")
    // ErrAllProvidersExhausted is logged when every provider in the chain failed.
    ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// TransportError is a network-level failure (dial, timeout, reset, short read).
type TransportError struct {
    Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitedError is an HTTP 429 with the delay the upstream asked for.
type RateLimitedError struct {
    RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
    return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// StatusError is any other non-2xx response.
type StatusError struct {
    StatusCode int
    Body       string
}

func (e *StatusError) Error() string {
    if e.Body == "" { return fmt.Sprintf("unexpected status code: %d", e.StatusCode) }
    return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Body)
}

// Malformed returns an error wrapping ErrMalformedResponse.
func Malformed(format string, args ...any) error {
    return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// Outcome labels an attempt result for logs and metrics.
func Outcome(err error) string {
    if err == nil { return "success" }
    var te *TransportError
    var rl *RateLimitedError
    var se *StatusError
    switch {
    case errors.As(err, &rl):
        return "rate_limited"
    case errors.As(err, &te):
        return "transport_error"
    case errors.As(err, &se):
        return "bad_status"
    case errors.Is(err, ErrMalformedResponse):
        return "malformed"
    default:
        return "error"
    }
}

// Package httpx holds the outbound HTTP client shared by the price adapters.
package httpx

import (
    "net"
    "net/http"
    "time"
)

// Client sends upstream requests over one pooled transport. Headers are set
// on every request that does not carry them already.
type Client struct {
    HTTP      *http.Client
    UserAgent string
    Headers   map[string]string
}

// New returns a client whose overall per-request deadline is timeout.
func New(timeout time.Duration) *Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          50,
        MaxIdleConnsPerHost:   10,
        MaxConnsPerHost:       20,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   3 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
        ResponseHeaderTimeout: 5 * time.Second,
    }
    return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "walletview/1.0"}
}

// Do sends req. The request context bounds the call together with the client timeout.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
    if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
        req.Header.Set("User-Agent", c.UserAgent)
    }
    for k, v := range c.Headers {
        if req.Header.Get(k) == "" {
            req.Header.Set(k, v)
        }
    }
    return c.HTTP.Do(req)
}

// WithHeader returns a copy of c that also sends header. The copy shares the
// transport, so keyed and unkeyed adapters draw from one connection pool.
func (c *Client) WithHeader(header, value string) *Client {
    out := *c
    out.Headers = make(map[string]string, len(c.Headers)+1)
    for k, v := range c.Headers { out.Headers[k] = v }
    out.Headers[header] = value
    return &out
}

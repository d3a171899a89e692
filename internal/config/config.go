package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/BurntSushi/toml"
    "github.com/kelseyhightower/envconfig"
)

type Server struct {
    Port              string `json:"port" toml:"port" envconfig:"PORT"`
    RequestTimeoutSec int    `json:"request_timeout_sec" toml:"request_timeout_sec" envconfig:"REQUEST_TIMEOUT_SEC"`
    CORSOrigin        string `json:"cors_origin" toml:"cors_origin" envconfig:"CORS_ORIGIN"`
}

type Log struct {
    Level  string `json:"level" toml:"level"`
    Format string `json:"format" toml:"format"` // json or console
}

// Price controls the resolver and the shared retry policy.
type Price struct {
    Asset            string  `json:"asset" toml:"asset"`
    Symbol           string  `json:"symbol" toml:"symbol"`
    Pair             string  `json:"pair" toml:"pair"`
    FreshnessSec     int     `json:"freshness_sec" toml:"freshness_sec" split_words:"true"`
    DefaultPrice     float64 `json:"default_price" toml:"default_price" split_words:"true"`
    DefaultChange    float64 `json:"default_change" toml:"default_change" split_words:"true"`
    MaxRetries       int     `json:"max_retries" toml:"max_retries" split_words:"true"`
    BaseDelayMs      int     `json:"base_delay_ms" toml:"base_delay_ms" split_words:"true"`
    MaxDelayMs       int     `json:"max_delay_ms" toml:"max_delay_ms" split_words:"true"`
    RateLimitDelayMs int     `json:"rate_limit_delay_ms" toml:"rate_limit_delay_ms" split_words:"true"`
}

// Upstream is the per-provider section. Field names map to
// <PROVIDER>_ENABLED, <PROVIDER>_API_KEY and so on.
type Upstream struct {
    Enabled              bool   `json:"enabled" toml:"enabled"`
    Endpoint             string `json:"endpoint" toml:"endpoint"`
    APIKey               string `json:"api_key" toml:"api_key" split_words:"true"`
    Pro                  bool   `json:"pro" toml:"pro"`
    MaxRequestsPerMinute int    `json:"max_requests_per_minute" toml:"max_requests_per_minute" split_words:"true"`
    Burst                int    `json:"burst" toml:"burst"`
    MinRequestIntervalMs int    `json:"min_request_interval_ms" toml:"min_request_interval_ms" split_words:"true"`
}

type Solana struct {
    RPCURL        string `json:"rpc_url" toml:"rpc_url" envconfig:"RPC_URL"`
    Commitment    string `json:"commitment" toml:"commitment"`
    CacheTTLSec   int    `json:"cache_ttl_sec" toml:"cache_ttl_sec" split_words:"true"`
    CacheMaxItems int    `json:"cache_max_items" toml:"cache_max_items" split_words:"true"`
    TxLimit       int    `json:"tx_limit" toml:"tx_limit" split_words:"true"`
}

type Config struct {
    Server    Server   `json:"server" toml:"server" envconfig:"SERVER"`
    Log       Log      `json:"log" toml:"log" envconfig:"LOG"`
    Price     Price    `json:"price" toml:"price" envconfig:"PRICE"`
    CoinGecko Upstream `json:"coingecko" toml:"coingecko" envconfig:"COINGECKO"`
    Jupiter   Upstream `json:"jupiter" toml:"jupiter" envconfig:"JUPITER"`
    Binance   Upstream `json:"binance" toml:"binance" envconfig:"BINANCE"`
    Solana    Solana   `json:"solana" toml:"solana" envconfig:"SOLANA"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 10, CORSOrigin: "*"},
        Log:    Log{Level: "info", Format: "json"},
        Price: Price{
            Asset:            "solana",
            Symbol:           "SOL",
            Pair:             "SOLUSDT",
            FreshnessSec:     60,
            DefaultPrice:     100,
            DefaultChange:    0,
            MaxRetries:       3,
            BaseDelayMs:      1000,
            RateLimitDelayMs: 1000,
        },
        CoinGecko: Upstream{
            Enabled:              true,
            Endpoint:             "https://api.coingecko.com/api/v3",
            MaxRequestsPerMinute: 30,
            Burst:                5,
        },
        Jupiter: Upstream{
            Enabled:  true,
            Endpoint: "https://price.jup.ag",
        },
        Binance: Upstream{
            Enabled:  true,
            Endpoint: "https://api.binance.com/api",
        },
        Solana: Solana{
            RPCURL:        "https://api.mainnet-beta.solana.com",
            Commitment:    "confirmed",
            CacheTTLSec:   15,
            CacheMaxItems: 10000,
            TxLimit:       20,
        },
    }
}

// Load reads config from path, as TOML when the file ends in .toml and JSON
// otherwise. If path is empty config.json in the working directory is used when
// present; a missing file yields defaults. Environment variables override both.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := decode(path, b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config %s: %w", path, err)
            }
        }
    }
    if err := envconfig.Process("", &cfg); err != nil {
        return cfg, fmt.Errorf("env config: %w", err)
    }
    if err := cfg.Validate(); err != nil {
        return cfg, err
    }
    return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
    if strings.EqualFold(filepath.Ext(path), ".toml") {
        _, err := toml.Decode(string(b), cfg)
        return err
    }
    return json.Unmarshal(b, cfg)
}

func (c Config) Validate() error {
    var errs []error
    if strings.TrimSpace(c.Server.Port) == "" {
        errs = append(errs, errors.New("server.port is empty"))
    }
    if c.Price.FreshnessSec < 0 {
        errs = append(errs, errors.New("price.freshness_sec is negative"))
    }
    if c.Price.MaxRetries < 0 {
        errs = append(errs, errors.New("price.max_retries is negative"))
    }
    if c.Price.DefaultPrice < 0 {
        errs = append(errs, errors.New("price.default_price is negative"))
    }
    switch strings.ToLower(c.Log.Format) {
    case "", "json", "console":
    default:
        errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
    }
    return errors.Join(errs...)
}

func (s Server) RequestTimeout() time.Duration {
    if s.RequestTimeoutSec <= 0 { return 10 * time.Second }
    return time.Duration(s.RequestTimeoutSec) * time.Second
}

func (p Price) Freshness() time.Duration { return time.Duration(p.FreshnessSec) * time.Second }

func (u Upstream) MinRequestInterval() time.Duration {
    return time.Duration(u.MinRequestIntervalMs) * time.Millisecond
}

func (s Solana) CacheTTL() time.Duration { return time.Duration(s.CacheTTLSec) * time.Second }

package aggregate

import (
    "sort"
    "strings"

    "github.com/shopspring/decimal"

    "walletview/internal/account"
    "walletview/internal/resolver"
)

// Holding is a token holding as shown in a portfolio.
type Holding struct {
    Mint         string `json:"mint"`
    Symbol       string `json:"symbol,omitempty"`
    TokenAccount string `json:"token_account"`
    Amount       string `json:"amount"`
    Decimals     int    `json:"decimals"`
    UIAmount     string `json:"ui_amount"`
}

// Portfolio is the valued view of one account.
type Portfolio struct {
    Address   string    `json:"address"`
    Lamports  uint64    `json:"lamports"`
    SOL       string    `json:"sol"`
    PriceUSD  float64   `json:"price_usd"`
    Change24h float64   `json:"change24h"`
    ValueUSD  string    `json:"value_usd"`
    Tokens    []Holding `json:"tokens"`
}

// knownMints labels a few widely held mints. Unknown mints get no symbol.
var knownMints = map[string]string{
    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
    "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
    "So11111111111111111111111111111111111111112":  "wSOL",
    "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
    "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
    "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
}

// MintSymbol returns the label for a mint, or "" when unknown.
func MintSymbol(mint string) string { return knownMints[strings.TrimSpace(mint)] }

// Summarize values the native balance at price and orders token holdings by
// UI amount, largest first. Equal amounts are ordered by mint.
func Summarize(b account.Balance, holdings []account.TokenHolding, p resolver.Price) Portfolio {
    value := b.SOL.Mul(decimal.NewFromFloat(p.Price))

    sorted := make([]account.TokenHolding, len(holdings))
    copy(sorted, holdings)
    sort.SliceStable(sorted, func(i, j int) bool {
        if c := sorted[i].UIAmount.Cmp(sorted[j].UIAmount); c != 0 { return c > 0 }
        return sorted[i].Mint < sorted[j].Mint
    })

    tokens := make([]Holding, 0, len(sorted))
    for _, h := range sorted {
        tokens = append(tokens, Holding{
            Mint:         h.Mint,
            Symbol:       MintSymbol(h.Mint),
            TokenAccount: h.TokenAccount,
            Amount:       h.Amount,
            Decimals:     h.Decimals,
            UIAmount:     h.UIAmount.String(),
        })
    }

    return Portfolio{
        Address:   b.Address,
        Lamports:  b.Lamports,
        SOL:       b.SOL.String(),
        PriceUSD:  p.Price,
        Change24h: p.Change24h,
        ValueUSD:  value.StringFixed(2),
        Tokens:    tokens,
    }
}

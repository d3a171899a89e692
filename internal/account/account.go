package account

import (
    "context"
    "errors"
    "math/big"
    "time"

    "github.com/shopspring/decimal"
)

var (
    ErrInvalidAddress   = errors.New("invalid account address")
    ErrInvalidSignature = errors.New("invalid transaction signature")
    ErrNotFound         = errors.New("not found")
)

const (
    LamportsPerSOL = 1_000_000_000
    SOLDecimals    = 9

    DefaultTxLimit = 20
    MaxTxLimit     = 1000
)

// Balance is the native balance of an account.
type Balance struct {
    Address  string          `json:"address"`
    Lamports uint64          `json:"lamports"`
    SOL      decimal.Decimal `json:"sol"`
}

// NewBalance converts lamports to SOL without float rounding.
func NewBalance(address string, lamports uint64) Balance {
    sol := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -SOLDecimals)
    return Balance{Address: address, Lamports: lamports, SOL: sol}
}

// TokenHolding is one SPL token account owned by an address.
type TokenHolding struct {
    Mint         string          `json:"mint"`
    TokenAccount string          `json:"token_account"`
    Amount       string          `json:"amount"`
    Decimals     int             `json:"decimals"`
    UIAmount     decimal.Decimal `json:"ui_amount"`
}

// Transaction is one entry of an address's signature history.
type Transaction struct {
    Signature          string     `json:"signature"`
    Slot               uint64     `json:"slot"`
    BlockTime          *time.Time `json:"block_time,omitempty"`
    Success            bool       `json:"success"`
    Memo               string     `json:"memo,omitempty"`
    ConfirmationStatus string     `json:"confirmation_status,omitempty"`
}

// TransactionStatus is the summary of a single confirmed transaction.
type TransactionStatus struct {
    Signature string     `json:"signature"`
    Slot      uint64     `json:"slot"`
    BlockTime *time.Time `json:"block_time,omitempty"`
    Fee       uint64     `json:"fee"`
    Success   bool       `json:"success"`
}

// Source reads on-chain account data.
type Source interface {
    Balance(ctx context.Context, address string) (Balance, error)
    TokenHoldings(ctx context.Context, address string) ([]TokenHolding, error)
    Transactions(ctx context.Context, address string, limit int) ([]Transaction, error)
    Transaction(ctx context.Context, signature string) (TransactionStatus, error)
}

// ClampLimit bounds a requested history length to [1, MaxTxLimit]. Zero or
// negative selects DefaultTxLimit.
func ClampLimit(limit int) int {
    if limit <= 0 { return DefaultTxLimit }
    if limit > MaxTxLimit { return MaxTxLimit }
    return limit
}

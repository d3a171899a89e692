package main

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "time"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "walletview/internal/account"
    "walletview/internal/aggregate"
    "walletview/internal/app"
    "walletview/internal/config"
    "walletview/internal/httpx"
    "walletview/internal/resolver"
)

var (
    configPath string
    address    string
    txLimit    int
    timeoutSec int
    verbose    bool
)

var rootCmd = &cobra.Command{
    Use:   "fetch",
    Short: "Resolve the SOL price once and optionally value an account",
    Args:  cobra.NoArgs,
    RunE:  runFetch,
}

func init() {
    rootCmd.Flags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or .toml (optional)")
    rootCmd.Flags().StringVar(&address, "address", "", "account to summarize (optional)")
    rootCmd.Flags().IntVar(&txLimit, "transactions", 0, "also list this many recent transactions for --address")
    rootCmd.Flags().IntVar(&timeoutSec, "timeout", 30, "overall timeout in seconds")
    rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log provider attempts to stderr")
}

func main() {
    if err := rootCmd.Execute(); err != nil {
        os.Exit(1)
    }
}

type output struct {
    Price        resolver.Price        `json:"price"`
    Portfolio    *aggregate.Portfolio  `json:"portfolio,omitempty"`
    Transactions []account.Transaction `json:"transactions,omitempty"`
}

func runFetch(cmd *cobra.Command, _ []string) error {
    cfg, err := config.Load(configPath)
    if err != nil { return fmt.Errorf("config: %w", err) }

    logger := zap.NewNop()
    if verbose {
        cfg.Log.Level, cfg.Log.Format = "debug", "console"
        if logger, err = app.NewLogger(cfg.Log); err != nil { return err }
        defer func() { _ = logger.Sync() }()
    }

    ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
    defer cancel()

    prices, err := app.NewResolver(cfg, httpx.New(cfg.Server.RequestTimeout()), logger)
    if err != nil { return err }
    price := prices.GetPrice(ctx)
    out := output{Price: price}

    if address != "" {
        accounts, err := app.NewAccountSource(cfg.Solana, logger)
        if err != nil { return err }
        bal, err := accounts.Balance(ctx, address)
        if err != nil { return fmt.Errorf("balance: %w", err) }
        holdings, err := accounts.TokenHoldings(ctx, address)
        if err != nil { return fmt.Errorf("token holdings: %w", err) }
        p := aggregate.Summarize(bal, holdings, price)
        out.Portfolio = &p
        if txLimit > 0 {
            txs, err := accounts.Transactions(ctx, address, txLimit)
            if err != nil { return fmt.Errorf("transactions: %w", err) }
            out.Transactions = txs
        }
    }
    return writeOutput(cmd.OutOrStdout(), out)
}

func writeOutput(w io.Writer, out output) error {
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    enc.SetEscapeHTML(false)
    return enc.Encode(out)
}

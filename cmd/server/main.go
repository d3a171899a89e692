package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "walletview/internal/app"
    "walletview/internal/config"
    "walletview/internal/httpx"
)

var (
    configPath string
    listenPort string
)

var rootCmd = &cobra.Command{
    Use:   "server",
    Short: "Serve SOL price and Solana account data over HTTP",
    RunE:  runServer,
}

func init() {
    rootCmd.Flags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or .toml (optional)")
    rootCmd.Flags().StringVar(&listenPort, "port", "", "listen port, overrides config and PORT")
}

func main() {
    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func runServer(cmd *cobra.Command, _ []string) error {
    cfg, err := config.Load(configPath)
    if err != nil { return fmt.Errorf("config: %w", err) }
    if listenPort != "" { cfg.Server.Port = listenPort }

    logger, err := app.NewLogger(cfg.Log)
    if err != nil { return err }
    defer func() { _ = logger.Sync() }()

    httpClient := httpx.New(cfg.Server.RequestTimeout())
    prices, err := app.NewResolver(cfg, httpClient, logger)
    if err != nil { return fmt.Errorf("price resolver: %w", err) }
    accounts, err := app.NewAccountSource(cfg.Solana, logger)
    if err != nil { return fmt.Errorf("account source: %w", err) }

    s := &httpServer{
        prices:   prices,
        accounts: accounts,
        logger:   logger.Named("http"),
        timeout:  cfg.Server.RequestTimeout(),
        txLimit:  cfg.Solana.TxLimit,
    }
    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           s.handler(cfg.Server.CORSOrigin),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      20 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    errC := make(chan error, 1)
    go func() {
        logger.Info("server listening", zap.String("addr", srv.Addr))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errC <- err
        }
        close(errC)
    }()

    select {
    case err := <-errC:
        if err != nil { return fmt.Errorf("server: %w", err) }
        return nil
    case <-ctx.Done():
    }
    logger.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    return srv.Shutdown(shutdownCtx)
}

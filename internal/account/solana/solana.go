package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"walletview/internal/account"
)

const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

var rpcRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "walletview_solana_rpc_requests_total",
		Help: "Total number of Solana RPC calls by method and status",
	}, []string{"method", "status"})

// Source reads account data from a Solana JSON-RPC node.
type Source struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithCommitment sets the commitment level for every call. An empty value keeps
// the default of "confirmed".
func WithCommitment(c string) Option {
	return func(s *Source) {
		if c != "" {
			s.commitment = rpc.CommitmentType(c)
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRPCClient replaces the JSON-RPC client built from the endpoint.
func WithRPCClient(c *rpc.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.client = c
		}
	}
}

// New creates a Source talking to endpoint.
func New(endpoint string, opts ...Option) *Source {
	if endpoint == "" {
		endpoint = DefaultRPCURL
	}
	s := &Source{
		client:     rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Balance returns the native balance of address.
func (s *Source) Balance(ctx context.Context, address string) (account.Balance, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return account.Balance{}, err
	}
	res, err := s.client.GetBalance(ctx, pk, s.commitment)
	s.observe("getBalance", err)
	if err != nil {
		return account.Balance{}, fmt.Errorf("get balance %s: %w", address, err)
	}
	return account.NewBalance(pk.String(), res.Value), nil
}

// TokenHoldings lists the SPL token accounts owned by address. Accounts with a
// zero balance are included.
func (s *Source) TokenHoldings(ctx context.Context, address string) ([]account.TokenHolding, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	res, err := s.client.GetTokenAccountsByOwner(ctx, pk,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Commitment: s.commitment, Encoding: solana.EncodingJSONParsed},
	)
	s.observe("getTokenAccountsByOwner", err)
	if err != nil {
		return nil, fmt.Errorf("get token accounts %s: %w", address, err)
	}

	out := make([]account.TokenHolding, 0, len(res.Value))
	for _, ta := range res.Value {
		if ta == nil || ta.Account.Data == nil {
			continue
		}
		h, err := parseTokenAccount(ta.Pubkey.String(), ta.Account.Data.GetRawJSON())
		if err != nil {
			s.logger.Warn("skipping token account",
				zap.String("owner", address),
				zap.Stringer("token_account", ta.Pubkey),
				zap.Error(err))
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// parseTokenAccount reads the jsonParsed layout of an SPL token account.
func parseTokenAccount(pubkey string, raw []byte) (account.TokenHolding, error) {
	if !gjson.ValidBytes(raw) {
		return account.TokenHolding{}, errors.New("account data is not jsonParsed")
	}
	info := gjson.GetBytes(raw, "parsed.info")
	mint := info.Get("mint").String()
	amount := info.Get("tokenAmount.amount").String()
	dec := info.Get("tokenAmount.decimals")
	if mint == "" || amount == "" || dec.Type != gjson.Number {
		return account.TokenHolding{}, errors.New("missing mint or token amount")
	}
	raw64, err := decimal.NewFromString(amount)
	if err != nil {
		return account.TokenHolding{}, fmt.Errorf("token amount %q: %w", amount, err)
	}
	decimals := int(dec.Int())
	ui := raw64.Shift(int32(-decimals))
	return account.TokenHolding{
		Mint:         mint,
		TokenAccount: pubkey,
		Amount:       amount,
		Decimals:     decimals,
		UIAmount:     ui,
	}, nil
}

// Transactions returns the newest signatures involving address, newest first.
func (s *Source) Transactions(ctx context.Context, address string, limit int) ([]account.Transaction, error) {
	pk, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	limit = account.ClampLimit(limit)
	sigs, err := s.client.GetSignaturesForAddressWithOpts(ctx, pk, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: s.commitment,
	})
	s.observe("getSignaturesForAddress", err)
	if err != nil {
		return nil, fmt.Errorf("get signatures %s: %w", address, err)
	}

	out := make([]account.Transaction, 0, len(sigs))
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		tx := account.Transaction{
			Signature:          sig.Signature.String(),
			Slot:               sig.Slot,
			BlockTime:          blockTime(sig.BlockTime),
			Success:            sig.Err == nil,
			ConfirmationStatus: string(sig.ConfirmationStatus),
		}
		if sig.Memo != nil {
			tx.Memo = *sig.Memo
		}
		out = append(out, tx)
	}
	return out, nil
}

// Transaction returns slot, block time, fee and status of one transaction.
func (s *Source) Transaction(ctx context.Context, signature string) (account.TransactionStatus, error) {
	sig, err := solana.SignatureFromBase58(strings.TrimSpace(signature))
	if err != nil {
		return account.TransactionStatus{}, fmt.Errorf("%w: %v", account.ErrInvalidSignature, err)
	}
	version := uint64(0)
	res, err := s.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		MaxSupportedTransactionVersion: &version,
		Commitment:                     s.commitment,
		Encoding:                       solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		s.observe("getTransaction", nil)
		return account.TransactionStatus{}, fmt.Errorf("transaction %s: %w", signature, account.ErrNotFound)
	}
	s.observe("getTransaction", err)
	if err != nil {
		return account.TransactionStatus{}, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if res == nil {
		return account.TransactionStatus{}, fmt.Errorf("transaction %s: %w", signature, account.ErrNotFound)
	}

	st := account.TransactionStatus{
		Signature: sig.String(),
		Slot:      res.Slot,
		BlockTime: blockTime(res.BlockTime),
		Success:   true,
	}
	if res.Meta != nil {
		st.Fee = res.Meta.Fee
		st.Success = res.Meta.Err == nil
	}
	return st, nil
}

func (s *Source) observe(method string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Debug("solana rpc failed", zap.String("method", method), zap.Error(err))
	}
	rpcRequests.WithLabelValues(method, status).Inc()
}

func parseAddress(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", account.ErrInvalidAddress, err)
	}
	return pk, nil
}

func blockTime(t *solana.UnixTimeSeconds) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time().UTC()
	return &v
}

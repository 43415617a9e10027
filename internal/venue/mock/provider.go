// Package mock provides a deterministic in-process venue used when no
// real venue adapter is configured, and as the test double for the
// router and processor.
package mock

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"swap-engine/internal/domain"
	"swap-engine/internal/venue"
)

// Provider simulates a venue with a fixed spread. Output amounts are
// fully deterministic for a given input, which keeps end-to-end price
// assertions exact.
type Provider struct {
	name      string
	spreadPct decimal.Decimal // e.g. 5 means amountOut = amountIn * 0.95
	liquidity decimal.Decimal
	fee       decimal.Decimal
	delay     time.Duration // simulated network latency, 0 in tests

	// Failure injection for tests.
	quoteErr  error
	settleErr error
}

// Option configures a mock Provider.
type Option func(*Provider)

// WithDelay makes Quote and Settle sleep to simulate venue latency.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithLiquidity overrides the advertised pool liquidity.
func WithLiquidity(l decimal.Decimal) Option {
	return func(p *Provider) { p.liquidity = l }
}

// WithQuoteError makes every Quote call fail.
func WithQuoteError(err error) Option {
	return func(p *Provider) { p.quoteErr = err }
}

// WithSettleError makes every Settle call fail.
func WithSettleError(err error) Option {
	return func(p *Provider) { p.settleErr = err }
}

// New creates a mock provider with the given venue name and spread
// percentage (0..100).
func New(name string, spreadPct float64, opts ...Option) *Provider {
	p := &Provider{
		name:      name,
		spreadPct: decimal.NewFromFloat(spreadPct),
		liquidity: decimal.NewFromInt(1_000_000),
		fee:       decimal.RequireFromString("0.000005"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile-time interface check.
var _ venue.Provider = (*Provider)(nil)

// Name returns the venue identifier.
func (p *Provider) Name() string { return p.name }

// Quote prices the request at the configured spread.
func (p *Provider) Quote(ctx context.Context, req domain.SwapRequest) (*domain.Quote, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	if p.quoteErr != nil {
		return nil, p.quoteErr
	}

	amountIn, err := decimal.NewFromString(req.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("parse amount in: %w", err)
	}
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("amount in must be positive, got %s", req.AmountIn)
	}

	rate := decimal.NewFromInt(1).Sub(p.spreadPct.Div(decimal.NewFromInt(100)))
	amountOut := amountIn.Mul(rate)

	return &domain.Quote{
		Venue:        p.name,
		AmountOut:    amountOut,
		Price:        amountOut.Div(amountIn),
		Liquidity:    p.liquidity,
		EstimatedFee: p.fee,
	}, nil
}

// Settle executes the swap and returns a pseudo transaction signature.
func (p *Provider) Settle(ctx context.Context, _ domain.SwapRequest, q *domain.Quote) (*domain.Settlement, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	if p.settleErr != nil {
		return nil, p.settleErr
	}

	sig, err := txSignature()
	if err != nil {
		return nil, fmt.Errorf("generate tx signature: %w", err)
	}

	return &domain.Settlement{
		TxRef:          sig,
		ExecutionPrice: q.Price,
	}, nil
}

// sleep waits for the configured delay, respecting cancellation.
func (p *Provider) sleep(ctx context.Context) error {
	if p.delay == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay):
		return nil
	}
}

// txSignature returns a base58-encoded 64-byte random signature,
// shaped like a Solana transaction signature.
func txSignature() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base58.Encode(buf), nil
}

// Package venue defines the capability contract a liquidity venue must
// satisfy to participate in routing. Concrete adapters (mock, Raydium,
// Meteora, ...) are registered with the router in a fixed order; their
// internal wire protocol is invisible to the rest of the system.
package venue

import (
	"context"

	"swap-engine/internal/domain"
)

// Provider is a liquidity venue capable of pricing and executing a swap.
// Both operations are fallible; a provider that cannot price a pair
// returns an error rather than a zero quote. Implementations must be
// safe for concurrent Quote calls.
type Provider interface {
	// Name returns the venue identifier used for routing and auditing.
	Name() string

	// Quote prices the swap request. Expected latency is venue-dependent,
	// from hundreds of milliseconds to seconds.
	Quote(ctx context.Context, req domain.SwapRequest) (*domain.Quote, error)

	// Settle executes the swap using a previously obtained quote. The
	// returned settlement reference is unique enough to serve as an
	// audit key. Pricing may be re-derived internally.
	Settle(ctx context.Context, req domain.SwapRequest, q *domain.Quote) (*domain.Settlement, error)
}

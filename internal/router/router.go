// Package router implements multi-venue price discovery. It queries
// every registered venue concurrently, survives partial failure, and
// selects the quote with the greatest output amount.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"swap-engine/internal/domain"
	"swap-engine/internal/observability"
	"swap-engine/internal/storage"
	"swap-engine/internal/venue"
)

// ErrUnknownVenue is returned by SettleOn when the requested venue is
// not registered. The condition cannot heal by retrying.
var ErrUnknownVenue = errors.New("unknown venue")

// Router fans quote requests out to a fixed, ordered set of venues.
// Registration order breaks ties between equal quotes, which keeps
// selection deterministic.
type Router struct {
	providers []venue.Provider
	quotes    storage.QuoteStore // optional, best-effort analytics
	logger    *log.Logger
}

// New creates a router over the given providers. quotes may be nil to
// disable quote recording.
func New(providers []venue.Provider, quotes storage.QuoteStore, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		providers: providers,
		quotes:    quotes,
		logger:    logger,
	}
}

// Venues returns the registered venue names in registration order.
func (r *Router) Venues() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// BestQuote queries all venues concurrently and returns the quote with
// the strictly greatest output amount. Venue failures are logged and
// excluded from selection. When no venue produces a quote the result is
// (nil, nil): an explicit empty outcome, not an error.
func (r *Router) BestQuote(ctx context.Context, orderID string, req domain.SwapRequest) (*domain.Quote, error) {
	results := make([]*domain.Quote, len(r.providers))

	var wg sync.WaitGroup
	for i, p := range r.providers {
		wg.Add(1)
		go func(i int, p venue.Provider) {
			defer wg.Done()
			start := time.Now()
			q, err := p.Quote(ctx, req)
			observability.RecordQuoteRequest(p.Name(), time.Since(start).Seconds(), err)
			if err != nil {
				r.logger.Printf("[router] quote from %s failed: %v", p.Name(), err)
				return
			}
			results[i] = q
		}(i, p)
	}
	wg.Wait()

	// Scan in registration order so the earliest venue wins ties.
	var best *domain.Quote
	for _, q := range results {
		if q == nil {
			continue
		}
		if best == nil || q.AmountOut.GreaterThan(best.AmountOut) {
			best = q
		}
	}

	r.recordQuotes(orderID, req, results, best)

	if best == nil {
		observability.RecordRoutingExhausted()
		r.logger.Printf("[router] no venue produced a quote for order %s", orderID)
		return nil, nil
	}

	observability.RecordBestQuote(best.Venue)
	r.logger.Printf("[router] order %s: best quote %s from %s (out of %d venues)",
		orderID, best.AmountOut, best.Venue, len(r.providers))
	return best, nil
}

// SettleOn executes the swap on the named venue with a fresh quote.
func (r *Router) SettleOn(ctx context.Context, venueName string, req domain.SwapRequest) (*domain.Settlement, error) {
	p := r.lookup(venueName)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, venueName)
	}

	q, err := p.Quote(ctx, req)
	if err != nil {
		observability.RecordSettlement(venueName, err)
		return nil, fmt.Errorf("quote on %s: %w", venueName, err)
	}

	s, err := p.Settle(ctx, req, q)
	observability.RecordSettlement(venueName, err)
	if err != nil {
		return nil, fmt.Errorf("settle on %s: %w", venueName, err)
	}
	return s, nil
}

func (r *Router) lookup(name string) venue.Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// recordQuotes writes every successful quote to the analytics store.
// Failures are logged and otherwise ignored; recording must never
// affect order execution.
func (r *Router) recordQuotes(orderID string, req domain.SwapRequest, quotes []*domain.Quote, best *domain.Quote) {
	if r.quotes == nil {
		return
	}

	now := time.Now().UnixMilli()
	for _, q := range quotes {
		if q == nil {
			continue
		}
		rec := &domain.QuoteRecord{
			OrderID:   orderID,
			Venue:     q.Venue,
			TokenIn:   req.TokenIn,
			TokenOut:  req.TokenOut,
			AmountIn:  amountInFloat(req.AmountIn),
			AmountOut: q.AmountOut.InexactFloat64(),
			Price:     q.Price.InexactFloat64(),
			Liquidity: q.Liquidity.InexactFloat64(),
			Selected:  q == best,
			Timestamp: now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.quotes.Insert(ctx, rec)
		cancel()
		if err != nil {
			r.logger.Printf("[router] failed to record quote from %s: %v", q.Venue, err)
		}
	}
}

func amountInFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

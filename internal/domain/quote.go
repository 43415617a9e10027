package domain

import "github.com/shopspring/decimal"

// Quote is a venue's priced offer for a given input amount at a point
// in time. Quotes are produced fresh per request and never cached
// across orders; once returned they are treated as immutable.
type Quote struct {
	Venue        string
	AmountOut    decimal.Decimal
	Price        decimal.Decimal // AmountOut / AmountIn
	Liquidity    decimal.Decimal
	EstimatedFee decimal.Decimal
}

// Settlement is the receipt returned by a venue after executing a swap.
// TxRef is unique enough to serve as an audit key.
type Settlement struct {
	TxRef          string
	ExecutionPrice decimal.Decimal
}

// QuoteRecord is an append-only analytics row written for every quote
// produced during routing. Amounts are stored as float64; the record is
// for analysis only and is never read back into the execution path.
type QuoteRecord struct {
	OrderID   string
	Venue     string
	TokenIn   string
	TokenOut  string
	AmountIn  float64
	AmountOut float64
	Price     float64
	Liquidity float64
	Selected  bool
	Timestamp int64 // Unix timestamp in milliseconds
}

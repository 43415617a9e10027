package domain

import "time"

// OrderStatus is the lifecycle state of an order.
// Transitions are monotonic along the sequence below; only
// StatusConfirmed and StatusFailed are terminal.
type OrderStatus string

// Order statuses in pipeline order.
const (
	StatusPending   OrderStatus = "pending"
	StatusRouting   OrderStatus = "routing"
	StatusBuilding  OrderStatus = "building"
	StatusSubmitted OrderStatus = "submitted"
	StatusConfirmed OrderStatus = "confirmed"
	StatusFailed    OrderStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s OrderStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// OrderType is the kind of order requested by the client.
// Only market orders are currently executable.
type OrderType string

// Order types.
const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeSniper OrderType = "sniper"
)

// SwapRequest holds the swap parameters supplied by the client.
// AmountIn is an exact decimal string; no float conversion happens
// anywhere in the execution path.
type SwapRequest struct {
	Type              OrderType `json:"type"`
	TokenIn           string    `json:"tokenIn"`
	TokenOut          string    `json:"tokenOut"`
	AmountIn          string    `json:"amountIn"`
	SlippageTolerance float64   `json:"slippageTolerance"` // percent, default 1
}

// Order is the persisted record of a swap order.
// Corresponds to the orders table in PostgreSQL. The result fields
// (AmountOut, SelectedVenue, ExecutionPrice, TxRef, Error) are empty
// until the corresponding pipeline stage fills them in.
type Order struct {
	ID                string      `json:"id"`
	Type              OrderType   `json:"type"`
	TokenIn           string      `json:"tokenIn"`
	TokenOut          string      `json:"tokenOut"`
	AmountIn          string      `json:"amountIn"`
	AmountOut         string      `json:"amountOut,omitempty"`
	SlippageTolerance float64     `json:"slippageTolerance"`
	Status            OrderStatus `json:"status"`
	SelectedVenue     string      `json:"selectedVenue,omitempty"`
	ExecutionPrice    string      `json:"executionPrice,omitempty"`
	TxRef             string      `json:"txRef,omitempty"`
	Error             string      `json:"error,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

package storage

import (
	"context"

	"swap-engine/internal/domain"
)

// OrderUpdate names the result fields that may accompany a status
// change. Empty fields are left untouched.
type OrderUpdate struct {
	SelectedVenue  string
	ExecutionPrice string
	TxRef          string
	AmountOut      string
	Error          string
}

// OrderStore provides access to orders and their status history.
// The store exclusively owns the order row; callers read and write it
// only through this interface and never hold a row across blocking calls.
type OrderStore interface {
	// Create inserts a new order. Returns ErrDuplicateKey if the id exists.
	Create(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List retrieves the most recently created orders, newest first.
	List(ctx context.Context, limit int) ([]*domain.Order, error)

	// UpdateStatus sets the order status and any non-empty result fields,
	// bumping updated_at. Returns ErrNotFound if the order does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, upd OrderUpdate) error

	// AppendHistory appends an audit entry. History is never mutated.
	AppendHistory(ctx context.Context, e *domain.HistoryEntry) error

	// GetHistory retrieves all history entries for an order, oldest first.
	GetHistory(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error)
}

// QuoteStore records quotes produced during routing for later analysis.
// Writes are best-effort from the router's perspective; a failed insert
// must never affect order execution.
type QuoteStore interface {
	// Insert appends a quote record.
	Insert(ctx context.Context, r *domain.QuoteRecord) error

	// GetByOrderID retrieves all quote records for an order, oldest first.
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.QuoteRecord, error)
}

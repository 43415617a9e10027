package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"swap-engine/internal/domain"
	"swap-engine/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// Create inserts a new order. Returns ErrDuplicateKey if the id exists.
func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, type, token_in, token_out, amount_in, amount_out,
			slippage_tolerance, status, selected_venue, execution_price, tx_ref, error
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''))
	`

	_, err := s.pool.Exec(ctx, query,
		o.ID,
		o.Type,
		o.TokenIn,
		o.TokenOut,
		o.AmountIn,
		o.AmountOut,
		o.SlippageTolerance,
		o.Status,
		o.SelectedVenue,
		o.ExecutionPrice,
		o.TxRef,
		o.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := orderSelect + ` WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// List retrieves the most recently created orders, newest first.
func (s *OrderStore) List(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	query := orderSelect + ` ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// UpdateStatus sets the order status and any non-empty result fields.
// Returns ErrNotFound if the order does not exist.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, upd storage.OrderUpdate) error {
	query := `
		UPDATE orders SET
			status = $2,
			selected_venue = COALESCE(NULLIF($3, ''), selected_venue),
			execution_price = COALESCE(NULLIF($4, ''), execution_price),
			tx_ref = COALESCE(NULLIF($5, ''), tx_ref),
			amount_out = COALESCE(NULLIF($6, ''), amount_out),
			error = COALESCE(NULLIF($7, ''), error),
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, status,
		upd.SelectedVenue, upd.ExecutionPrice, upd.TxRef, upd.AmountOut, upd.Error)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendHistory appends an audit entry.
func (s *OrderStore) AppendHistory(ctx context.Context, e *domain.HistoryEntry) error {
	var meta []byte
	if e.Metadata != nil {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal history metadata: %w", err)
		}
	}

	query := `
		INSERT INTO order_status_history (order_id, status, message, metadata)
		VALUES ($1, $2, NULLIF($3, ''), $4)
	`

	if _, err := s.pool.Exec(ctx, query, e.OrderID, e.Status, e.Message, meta); err != nil {
		return fmt.Errorf("append order history: %w", err)
	}
	return nil
}

// GetHistory retrieves all history entries for an order, oldest first.
func (s *OrderStore) GetHistory(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error) {
	query := `
		SELECT id, order_id, status, COALESCE(message, ''), metadata, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Message, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal history metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

const orderSelect = `
	SELECT id, type, token_in, token_out, amount_in, COALESCE(amount_out, ''),
		slippage_tolerance, status, COALESCE(selected_venue, ''),
		COALESCE(execution_price, ''), COALESCE(tx_ref, ''), COALESCE(error, ''),
		created_at, updated_at
	FROM orders
`

// scanOrder scans a single row into an Order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.Type,
		&o.TokenIn,
		&o.TokenOut,
		&o.AmountIn,
		&o.AmountOut,
		&o.SlippageTolerance,
		&o.Status,
		&o.SelectedVenue,
		&o.ExecutionPrice,
		&o.TxRef,
		&o.Error,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

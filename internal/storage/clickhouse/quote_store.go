package clickhouse

import (
	"context"
	"fmt"

	"swap-engine/internal/domain"
	"swap-engine/internal/storage"
)

// QuoteStore implements storage.QuoteStore using ClickHouse.
// quote_history is an append-only MergeTree table; duplicates are not
// a concern because every routing pass produces fresh quotes.
type QuoteStore struct {
	conn *Conn
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(conn *Conn) *QuoteStore {
	return &QuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// Insert appends a quote record.
func (s *QuoteStore) Insert(ctx context.Context, r *domain.QuoteRecord) error {
	query := `
		INSERT INTO quote_history (
			order_id, venue, token_in, token_out, amount_in, amount_out,
			price, liquidity, selected, timestamp_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selected := uint8(0)
	if r.Selected {
		selected = 1
	}

	err := s.conn.Exec(ctx, query,
		r.OrderID, r.Venue, r.TokenIn, r.TokenOut,
		r.AmountIn, r.AmountOut, r.Price, r.Liquidity,
		selected, uint64(r.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert quote record: %w", err)
	}
	return nil
}

// GetByOrderID retrieves all quote records for an order, oldest first.
func (s *QuoteStore) GetByOrderID(ctx context.Context, orderID string) ([]*domain.QuoteRecord, error) {
	query := `
		SELECT order_id, venue, token_in, token_out, amount_in, amount_out,
			price, liquidity, selected, timestamp_ms
		FROM quote_history
		WHERE order_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query quotes by order id: %w", err)
	}
	defer rows.Close()

	var records []*domain.QuoteRecord
	for rows.Next() {
		var r domain.QuoteRecord
		var selected uint8
		var timestampMs uint64

		err := rows.Scan(
			&r.OrderID, &r.Venue, &r.TokenIn, &r.TokenOut,
			&r.AmountIn, &r.AmountOut, &r.Price, &r.Liquidity,
			&selected, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan quote row: %w", err)
		}

		r.Selected = selected == 1
		r.Timestamp = int64(timestampMs)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote rows: %w", err)
	}

	return records, nil
}

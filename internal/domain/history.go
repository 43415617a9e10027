package domain

import "time"

// HistoryEntry is an append-only audit record of a status change.
// Entries are never mutated or deleted.
type HistoryEntry struct {
	ID        int64          `json:"id,omitempty"`
	OrderID   string         `json:"orderId"`
	Status    OrderStatus    `json:"status"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

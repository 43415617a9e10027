package memory

import (
	"context"
	"sync"

	"swap-engine/internal/domain"
	"swap-engine/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
type QuoteStore struct {
	mu      sync.RWMutex
	records []*domain.QuoteRecord
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// Insert appends a quote record.
func (s *QuoteStore) Insert(_ context.Context, r *domain.QuoteRecord) error {
	if r == nil || r.Venue == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	s.records = append(s.records, &copy)
	return nil
}

// GetByOrderID retrieves all quote records for an order, oldest first.
func (s *QuoteStore) GetByOrderID(_ context.Context, orderID string) ([]*domain.QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QuoteRecord
	for _, r := range s.records {
		if r.OrderID == orderID {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

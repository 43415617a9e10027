package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"swap-engine/internal/domain"
	"swap-engine/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	history map[string][]*domain.HistoryEntry
	nextID  int64
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:  make(map[string]*domain.Order),
		history: make(map[string][]*domain.HistoryEntry),
	}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// Create inserts a new order. Returns ErrDuplicateKey if the id exists.
func (s *OrderStore) Create(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *o
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = time.Now()
	}
	if copy.UpdatedAt.IsZero() {
		copy.UpdatedAt = copy.CreatedAt
	}
	s.orders[o.ID] = &copy
	return nil
}

// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *o
	return &copy, nil
}

// List retrieves the most recently created orders, newest first.
func (s *OrderStore) List(_ context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		copy := *o
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateStatus sets the order status and any non-empty result fields.
func (s *OrderStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, upd storage.OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return storage.ErrNotFound
	}

	o.Status = status
	if upd.SelectedVenue != "" {
		o.SelectedVenue = upd.SelectedVenue
	}
	if upd.ExecutionPrice != "" {
		o.ExecutionPrice = upd.ExecutionPrice
	}
	if upd.TxRef != "" {
		o.TxRef = upd.TxRef
	}
	if upd.AmountOut != "" {
		o.AmountOut = upd.AmountOut
	}
	if upd.Error != "" {
		o.Error = upd.Error
	}
	o.UpdatedAt = time.Now()
	return nil
}

// AppendHistory appends an audit entry.
func (s *OrderStore) AppendHistory(_ context.Context, e *domain.HistoryEntry) error {
	if e == nil || e.OrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	copy := *e
	copy.ID = s.nextID
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = time.Now()
	}
	s.history[e.OrderID] = append(s.history[e.OrderID], &copy)
	return nil
}

// GetHistory retrieves all history entries for an order, oldest first.
func (s *OrderStore) GetHistory(_ context.Context, orderID string) ([]*domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[orderID]
	result := make([]*domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		copy := *e
		result = append(result, &copy)
	}
	return result, nil
}

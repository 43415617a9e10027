// Package broadcast delivers order status updates to per-order
// subscribers. At most one subscriber is tracked per order; a later
// registration replaces the earlier one.
package broadcast

import (
	"log"
	"sync"

	"swap-engine/internal/domain"
	"swap-engine/internal/observability"
)

// Sink receives status updates for a single order. Send must be safe
// for concurrent use; a returned error marks the update as dropped but
// does not unregister the sink.
type Sink interface {
	Send(u domain.StatusUpdate) error
}

// Registry maps order ids to their current subscriber. Publishing to an
// order without a subscriber is a silent no-op; updates are not queued
// for late subscribers, who recover current state by reading the order.
type Registry struct {
	mu     sync.RWMutex
	sinks  map[string]Sink
	logger *log.Logger
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		sinks:  make(map[string]Sink),
		logger: logger,
	}
}

// Register attaches a sink for the given order, replacing any existing
// one.
func (r *Registry) Register(orderID string, s Sink) {
	r.mu.Lock()
	_, replaced := r.sinks[orderID]
	r.sinks[orderID] = s
	r.mu.Unlock()

	if !replaced {
		observability.SubscriberRegistered()
	}
	r.logger.Printf("[broadcast] subscriber registered for order %s", orderID)
}

// Unregister detaches the sink for the given order if the passed sink
// is still the registered one. A sink replaced by a newer registration
// is left alone.
func (r *Registry) Unregister(orderID string, s Sink) {
	r.mu.Lock()
	current, ok := r.sinks[orderID]
	if ok && current == s {
		delete(r.sinks, orderID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		observability.SubscriberUnregistered()
		r.logger.Printf("[broadcast] subscriber unregistered for order %s", orderID)
	}
}

// Publish delivers an update to the order's subscriber, if any. Errors
// from the sink are logged and swallowed; status delivery is advisory
// and never blocks order execution.
func (r *Registry) Publish(u domain.StatusUpdate) {
	r.mu.RLock()
	s, ok := r.sinks[u.OrderID]
	r.mu.RUnlock()

	if !ok {
		observability.RecordEventDropped()
		return
	}

	if err := s.Send(u); err != nil {
		observability.RecordEventDropped()
		r.logger.Printf("[broadcast] failed to deliver %s update for order %s: %v", u.Status, u.OrderID, err)
		return
	}
	observability.RecordEventPublished()
}

// Subscribers returns the current number of registered sinks.
func (r *Registry) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

package queue

import (
	"context"
	"sync"

	"swap-engine/internal/domain"
)

// MemoryStore is an in-process JobStore for tests and single-node runs
// without Redis. Jobs do not survive a restart.
type MemoryStore struct {
	mu        sync.Mutex
	waiting   []domain.Job
	inflight  map[string]struct{} // order ids waiting or active
	active    int64
	completed int64
	failed    int64
	closed    bool

	wake chan struct{}
}

// Compile-time interface check.
var _ JobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inflight: make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue appends a job unless one with the same order id is in flight.
func (s *MemoryStore) Enqueue(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.inflight[job.OrderID]; ok {
		return ErrDuplicateJob
	}

	s.inflight[job.OrderID] = struct{}{}
	s.waiting = append(s.waiting, job)
	s.signal()
	return nil
}

// Dequeue blocks until a job is available, the context is done, or the
// store is closed.
func (s *MemoryStore) Dequeue(ctx context.Context) (domain.Job, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return domain.Job{}, ErrClosed
		}
		if len(s.waiting) > 0 {
			job := s.waiting[0]
			s.waiting = s.waiting[1:]
			s.active++
			if len(s.waiting) > 0 {
				// More work remains; wake the next waiter.
				s.signal()
			}
			s.mu.Unlock()
			return job, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-s.wake:
		}
	}
}

// MarkCompleted releases the job's identity key and counts the success.
func (s *MemoryStore) MarkCompleted(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, job.OrderID)
	s.active--
	s.completed++
	return nil
}

// MarkFailed releases the job's identity key and counts the failure.
func (s *MemoryStore) MarkFailed(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, job.OrderID)
	s.active--
	s.failed++
	return nil
}

// Stats returns current job counts.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Waiting:   int64(len(s.waiting)),
		Active:    s.active,
		Completed: s.completed,
		Failed:    s.failed,
	}, nil
}

// Close wakes all blocked consumers and rejects further operations.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.wake)
	return nil
}

// signal wakes one blocked consumer. Must be called with mu held.
func (s *MemoryStore) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

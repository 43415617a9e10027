// Package queue admits orders into execution. A fixed worker pool
// drains a durable job store under a global throughput cap; submission
// is idempotent on the order id for as long as the job is in flight.
package queue

import (
	"context"
	"errors"

	"swap-engine/internal/domain"
)

// ErrDuplicateJob is returned by Enqueue when a job with the same order
// id is already queued or being processed.
var ErrDuplicateJob = errors.New("job already queued")

// ErrClosed is returned when an operation races with store shutdown.
var ErrClosed = errors.New("job store closed")

// Stats is a point-in-time snapshot of job counts by state.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// JobStore is the durable backlog behind the worker pool. The identity
// key of a job is its order id: Enqueue rejects a duplicate while the
// earlier job is waiting or active, and releases the key once the job
// reaches a terminal outcome.
type JobStore interface {
	// Enqueue appends a job. Returns ErrDuplicateJob if a job with the
	// same order id is waiting or active.
	Enqueue(ctx context.Context, job domain.Job) error

	// Dequeue blocks until a job is available or the context is done.
	// The returned job is counted as active until marked terminal.
	Dequeue(ctx context.Context) (domain.Job, error)

	// MarkCompleted records a successful outcome and releases the
	// job's identity key.
	MarkCompleted(ctx context.Context, job domain.Job) error

	// MarkFailed records a failed outcome and releases the job's
	// identity key.
	MarkFailed(ctx context.Context, job domain.Job) error

	// Stats returns current job counts.
	Stats(ctx context.Context) (Stats, error)

	// Close releases store resources.
	Close() error
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"swap-engine/internal/domain"
	"swap-engine/internal/observability"
)

// Defaults mirroring the throughput profile the system is tuned for.
const (
	DefaultConcurrency = 10
	DefaultRateLimit   = 100
	DefaultRateWindow  = time.Minute
)

// Handler processes a dequeued job to a terminal outcome.
type Handler interface {
	Process(ctx context.Context, job domain.Job) error
}

// Config holds queue tuning knobs.
type Config struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int

	// RateLimit caps job starts per RateWindow across all workers.
	RateLimit int

	// RateWindow is the rolling window for RateLimit.
	RateWindow time.Duration
}

// Queue drains a JobStore with a fixed worker pool. Each worker claims
// a throughput slot before handing the job to the Handler, so the
// global start rate never exceeds the configured cap regardless of
// pool size.
type Queue struct {
	store   JobStore
	handler Handler
	limiter *limiter
	logger  *log.Logger

	concurrency int

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a queue over the given store and handler.
func New(store JobStore, handler Handler, logger *log.Logger, cfg Config) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultRateWindow
	}
	return &Queue{
		store:       store,
		handler:     handler,
		limiter:     newLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:      logger,
		concurrency: cfg.Concurrency,
	}
}

// Start launches the worker pool. Workers run until Close is called or
// the parent context is canceled.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.concurrency; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logger.Printf("[queue] started %d workers", q.concurrency)
}

// Submit enqueues a job. Returns ErrDuplicateJob when a job for the
// same order is already in flight.
func (q *Queue) Submit(ctx context.Context, job domain.Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	if err := q.store.Enqueue(ctx, job); err != nil {
		if errors.Is(err, ErrDuplicateJob) {
			return err
		}
		return fmt.Errorf("enqueue job: %w", err)
	}
	observability.RecordOrderSubmitted()
	return nil
}

// Stats returns current job counts and refreshes the queue gauges.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	s, err := q.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("read queue stats: %w", err)
	}
	observability.UpdateQueueStats(s.Waiting, s.Active, s.Completed, s.Failed)
	return s, nil
}

// Close stops the workers, waits for in-flight jobs and closes the
// store. Safe to call more than once.
func (q *Queue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		q.wg.Wait()
		err = q.store.Close()
		q.logger.Printf("[queue] stopped")
	})
	return err
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		job, err := q.store.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			q.logger.Printf("[queue] worker %d: dequeue failed: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		waited, err := q.limiter.wait(ctx)
		if waited {
			observability.RecordRateLimitWait()
		}
		if err != nil {
			// Shutdown raced the throughput wait. The job never ran, so
			// hand it back as failed; the order row is still pending and
			// a later subscribe resubmits it.
			q.logger.Printf("[queue] worker %d: shutting down with order %s unstarted", id, job.OrderID)
			markCtx, markCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if merr := q.store.MarkFailed(markCtx, job); merr != nil {
				q.logger.Printf("[queue] worker %d: failed to release order %s: %v", id, job.OrderID, merr)
			}
			markCancel()
			return
		}

		q.run(ctx, id, job)
	}
}

// run executes one job and records its terminal outcome.
func (q *Queue) run(ctx context.Context, id int, job domain.Job) {
	err := q.handler.Process(ctx, job)

	// Outcome bookkeeping must not be lost to a canceled worker context.
	markCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err != nil {
		q.logger.Printf("[queue] worker %d: order %s failed: %v", id, job.OrderID, err)
		if merr := q.store.MarkFailed(markCtx, job); merr != nil {
			q.logger.Printf("[queue] worker %d: failed to mark order %s failed: %v", id, job.OrderID, merr)
		}
		return
	}

	if merr := q.store.MarkCompleted(markCtx, job); merr != nil {
		q.logger.Printf("[queue] worker %d: failed to mark order %s completed: %v", id, job.OrderID, merr)
	}
}

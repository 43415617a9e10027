// Package processor drives an order through its execution pipeline:
// routing, transaction building, submission and confirmation. A failed
// attempt restarts the whole pipeline from routing; there is no
// per-stage retry.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"swap-engine/internal/broadcast"
	"swap-engine/internal/domain"
	"swap-engine/internal/observability"
	"swap-engine/internal/router"
	"swap-engine/internal/storage"
)

// Defaults for the retry policy.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Config holds processor tuning knobs.
type Config struct {
	// MaxAttempts is the total number of pipeline attempts per order,
	// including the first one.
	MaxAttempts int

	// BaseDelay scales the backoff between attempts: the wait before
	// attempt k+1 is BaseDelay * 2^k.
	BaseDelay time.Duration
}

// Processor executes orders end to end. Every status change is
// persisted before the matching update is published, so a subscriber
// who reads the order after receiving an update always sees a status
// at least as advanced as the one announced.
type Processor struct {
	orders      storage.OrderStore
	router      *router.Router
	broadcaster *broadcast.Registry
	logger      *log.Logger

	maxAttempts int
	baseDelay   time.Duration
}

// New creates a processor. broadcaster may be nil to disable status
// updates.
func New(orders storage.OrderStore, rt *router.Router, broadcaster *broadcast.Registry, logger *log.Logger, cfg Config) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	return &Processor{
		orders:      orders,
		router:      rt,
		broadcaster: broadcaster,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
	}
}

// Process runs the order pipeline, retrying the whole pipeline on
// failure up to the configured maximum attempts. The returned error is
// non-nil only when the order ends up failed.
func (p *Processor) Process(ctx context.Context, job domain.Job) error {
	start := time.Now()

	order, err := p.orders.GetByID(ctx, job.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", job.OrderID, err)
	}
	if order.Status.Terminal() {
		p.logger.Printf("[processor] order %s already %s, skipping", order.ID, order.Status)
		return nil
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.baseDelay << (attempt - 1)
			p.logger.Printf("[processor] order %s: attempt %d/%d in %s (previous: %v)",
				job.OrderID, attempt, p.maxAttempts, delay, lastErr)
			observability.RecordPipelineRetry()
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return p.fail(ctx, job.OrderID, attempts, lastErr, start)
			case <-time.After(delay):
			}
		}

		attempts = attempt
		err := p.runPipeline(ctx, job, attempt)
		if err == nil {
			observability.RecordOrderProcessed(string(domain.StatusConfirmed), time.Since(start).Seconds())
			return nil
		}
		lastErr = err

		if errors.Is(err, router.ErrUnknownVenue) {
			// Misconfiguration, not a transient fault. Retrying cannot help.
			p.logger.Printf("[processor] order %s: non-retryable: %v", job.OrderID, err)
			break
		}
		p.logger.Printf("[processor] order %s: attempt %d/%d failed: %v",
			job.OrderID, attempt, p.maxAttempts, err)
	}

	return p.fail(ctx, job.OrderID, attempts, lastErr, start)
}

// runPipeline performs one full execution attempt.
func (p *Processor) runPipeline(ctx context.Context, job domain.Job, attempt int) error {
	id := job.OrderID
	req := job.Request

	// The order row was created as pending before enqueue, so the
	// pending announcement respects persist-before-publish. Later
	// attempts skip it: the order has already been announced.
	if attempt == 1 {
		p.publish(id, domain.StatusPending, "order received and queued", nil)
	}

	if err := p.transition(ctx, id, domain.StatusRouting, storage.OrderUpdate{},
		"finding best price across venues", nil); err != nil {
		return err
	}

	quote, err := p.router.BestQuote(ctx, id, req)
	if err != nil {
		return fmt.Errorf("route order: %w", err)
	}
	if quote == nil {
		return errors.New("no venue produced a quote")
	}

	if err := p.transition(ctx, id, domain.StatusBuilding,
		storage.OrderUpdate{SelectedVenue: quote.Venue},
		fmt.Sprintf("building transaction for %s", quote.Venue),
		&domain.StatusData{SelectedVenue: quote.Venue}); err != nil {
		return err
	}

	if err := p.transition(ctx, id, domain.StatusSubmitted, storage.OrderUpdate{},
		"transaction submitted, awaiting confirmation",
		&domain.StatusData{SelectedVenue: quote.Venue}); err != nil {
		return err
	}

	settlement, err := p.router.SettleOn(ctx, quote.Venue, req)
	if err != nil {
		return err
	}

	upd := storage.OrderUpdate{
		SelectedVenue:  quote.Venue,
		ExecutionPrice: settlement.ExecutionPrice.String(),
		TxRef:          settlement.TxRef,
		AmountOut:      quote.AmountOut.String(),
	}
	if err := p.orders.UpdateStatus(ctx, id, domain.StatusConfirmed, upd); err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	p.appendHistory(ctx, id, domain.StatusConfirmed, "swap executed", map[string]any{
		"venue":          quote.Venue,
		"txRef":          settlement.TxRef,
		"executionPrice": settlement.ExecutionPrice.String(),
		"amountOut":      quote.AmountOut.String(),
		"attempt":        attempt,
	})

	// The confirmed payload comes from the stored row, not from the
	// in-memory pipeline state.
	refreshed, err := p.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("order %s vanished after confirmation", id)
		}
		return fmt.Errorf("reload confirmed order: %w", err)
	}

	p.publish(id, domain.StatusConfirmed, "swap executed", &domain.StatusData{
		SelectedVenue:  refreshed.SelectedVenue,
		TxRef:          refreshed.TxRef,
		ExecutionPrice: refreshed.ExecutionPrice,
		AmountOut:      refreshed.AmountOut,
	})

	p.logger.Printf("[processor] order %s confirmed on %s, tx %s", id, refreshed.SelectedVenue, refreshed.TxRef)
	return nil
}

// fail moves the order to its terminal failed state and reports the
// cause to the caller for queue bookkeeping.
func (p *Processor) fail(ctx context.Context, orderID string, attempts int, cause error, start time.Time) error {
	msg := fmt.Sprintf("failed after %d attempts: %v", attempts, cause)

	err := p.orders.UpdateStatus(ctx, orderID, domain.StatusFailed, storage.OrderUpdate{Error: msg})
	if err != nil {
		// The update is lost but the queue still learns about the failure.
		p.logger.Printf("[processor] order %s: failed to persist failure: %v", orderID, err)
	} else {
		p.appendHistory(ctx, orderID, domain.StatusFailed, msg, map[string]any{
			"attempts": attempts,
			"error":    cause.Error(),
		})
		p.publish(orderID, domain.StatusFailed, msg, &domain.StatusData{Error: msg})
	}

	observability.RecordOrderProcessed(string(domain.StatusFailed), time.Since(start).Seconds())
	p.logger.Printf("[processor] order %s failed after %d attempts: %v", orderID, attempts, cause)
	return fmt.Errorf("order %s %s", orderID, msg)
}

// transition persists a status change and then publishes it.
func (p *Processor) transition(ctx context.Context, orderID string, status domain.OrderStatus, upd storage.OrderUpdate, message string, data *domain.StatusData) error {
	if err := p.orders.UpdateStatus(ctx, orderID, status, upd); err != nil {
		return fmt.Errorf("update order to %s: %w", status, err)
	}
	p.publish(orderID, status, message, data)
	return nil
}

// appendHistory writes an audit entry, logging failures without
// interrupting the pipeline.
func (p *Processor) appendHistory(ctx context.Context, orderID string, status domain.OrderStatus, message string, metadata map[string]any) {
	e := &domain.HistoryEntry{
		OrderID:   orderID,
		Status:    status,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := p.orders.AppendHistory(ctx, e); err != nil {
		p.logger.Printf("[processor] order %s: failed to append history: %v", orderID, err)
	}
}

func (p *Processor) publish(orderID string, status domain.OrderStatus, message string, data *domain.StatusData) {
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.Publish(domain.StatusUpdate{
		OrderID: orderID,
		Status:  status,
		Message: message,
		Data:    data,
	})
}

package domain

import "time"

// Job is the unit of work the admission queue stores durably.
// Its identity key equals the order id, which makes submission
// idempotent while the job is queued or active.
type Job struct {
	OrderID    string      `json:"orderId"`
	Request    SwapRequest `json:"request"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
}

package domain

// StatusData carries the structured payload of a status update.
type StatusData struct {
	SelectedVenue  string `json:"selectedVenue,omitempty"`
	TxRef          string `json:"txRef,omitempty"`
	ExecutionPrice string `json:"executionPrice,omitempty"`
	AmountOut      string `json:"amountOut,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StatusUpdate is a lifecycle event pushed to the subscriber currently
// registered for the order, if any. Updates are delivered at most once
// and are never persisted; the durable trail is the order row plus the
// status history log.
type StatusUpdate struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    *StatusData `json:"data,omitempty"`
}

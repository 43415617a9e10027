// Package server exposes the HTTP and WebSocket API: order submission,
// order lookup, per-order status streaming and queue statistics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swap-engine/internal/broadcast"
	"swap-engine/internal/domain"
	"swap-engine/internal/observability"
	"swap-engine/internal/queue"
	"swap-engine/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	defaultSlippagePct = 1.0
	maxSlippagePct     = 50.0
)

// Server handles the public API. It validates and persists orders, then
// hands them to the admission queue; execution state flows back to
// clients over per-order WebSocket subscriptions.
type Server struct {
	orders      storage.OrderStore
	queue       *queue.Queue
	broadcaster *broadcast.Registry
	logger      *log.Logger
}

// New creates an API server.
func New(orders storage.OrderStore, q *queue.Queue, broadcaster *broadcast.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		orders:      orders,
		queue:       q,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders/execute", s.handleExecute)
	mux.HandleFunc("GET /api/orders/{orderID}/status", s.handleStatusStream)
	mux.HandleFunc("GET /api/orders/{orderID}", s.handleGetOrder)
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/queue/stats", s.handleQueueStats)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	return mux
}

// ExecuteResponse is the JSON response for order submission.
type ExecuteResponse struct {
	OrderID    string             `json:"orderId"`
	Status     domain.OrderStatus `json:"status"`
	WSEndpoint string             `json:"wsEndpoint"`
}

// handleExecute validates a swap request, persists the order as pending
// and enqueues it for execution.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req domain.SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	order := &domain.Order{
		ID:                uuid.NewString(),
		Type:              req.Type,
		TokenIn:           req.TokenIn,
		TokenOut:          req.TokenOut,
		AmountIn:          req.AmountIn,
		SlippageTolerance: req.SlippageTolerance,
		Status:            domain.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ctx := r.Context()
	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Printf("[server] failed to create order: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}
	s.appendHistory(r, order.ID, domain.StatusPending, "order created")

	job := domain.Job{OrderID: order.ID, Request: req, EnqueuedAt: now}
	if err := s.queue.Submit(ctx, job); err != nil {
		s.logger.Printf("[server] failed to enqueue order %s: %v", order.ID, err)
		// The order row exists but will never be processed; close it out.
		upd := storage.OrderUpdate{Error: "failed to enqueue for execution"}
		if uerr := s.orders.UpdateStatus(ctx, order.ID, domain.StatusFailed, upd); uerr != nil {
			s.logger.Printf("[server] failed to mark order %s failed: %v", order.ID, uerr)
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue order")
		return
	}

	writeJSON(w, http.StatusAccepted, ExecuteResponse{
		OrderID:    order.ID,
		Status:     domain.StatusPending,
		WSEndpoint: fmt.Sprintf("/api/orders/%s/status", order.ID),
	})
}

// handleGetOrder returns a single order by id.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("orderID")

	order, err := s.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Printf("[server] failed to get order %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListResponse is the JSON response for the order listing.
type ListResponse struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

// handleListOrders returns the most recent orders, newest first.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	orders, err := s.orders.List(r.Context(), limit)
	if err != nil {
		s.logger.Printf("[server] failed to list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Orders: orders, Count: len(orders)})
}

// handleQueueStats returns current job counts.
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.logger.Printf("[server] failed to read queue stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// validateRequest checks a swap request and fills in defaults.
func validateRequest(req *domain.SwapRequest) error {
	switch req.Type {
	case domain.OrderTypeMarket:
	case domain.OrderTypeLimit, domain.OrderTypeSniper:
		return fmt.Errorf("order type %q is not yet supported", req.Type)
	default:
		return fmt.Errorf("invalid order type %q", req.Type)
	}

	if req.TokenIn == "" || req.TokenOut == "" {
		return errors.New("tokenIn and tokenOut are required")
	}
	if req.TokenIn == req.TokenOut {
		return errors.New("tokenIn and tokenOut must differ")
	}

	amount, err := decimal.NewFromString(req.AmountIn)
	if err != nil {
		return fmt.Errorf("amountIn must be a decimal string: %q", req.AmountIn)
	}
	if amount.Sign() <= 0 {
		return errors.New("amountIn must be positive")
	}

	if req.SlippageTolerance == 0 {
		req.SlippageTolerance = defaultSlippagePct
	}
	if req.SlippageTolerance < 0 || req.SlippageTolerance > maxSlippagePct {
		return fmt.Errorf("slippageTolerance must be between 0 and %g", maxSlippagePct)
	}

	return nil
}

func (s *Server) appendHistory(r *http.Request, orderID string, status domain.OrderStatus, message string) {
	e := &domain.HistoryEntry{
		OrderID:   orderID,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := s.orders.AppendHistory(r.Context(), e); err != nil {
		s.logger.Printf("[server] failed to append history for order %s: %v", orderID, err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

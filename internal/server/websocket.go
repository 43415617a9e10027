package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"swap-engine/internal/domain"
	"swap-engine/internal/queue"
	"swap-engine/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Status streams carry no sensitive state and the API has no
	// cookie-based auth, so cross-origin subscriptions are allowed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// wsSink adapts a WebSocket connection to the broadcast sink contract.
// Writes are serialized; gorilla/websocket forbids concurrent writers.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(u domain.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(u)
}

// handleStatusStream upgrades to a WebSocket and streams status updates
// for one order. The current persisted state is replayed first, so a
// subscriber never misses the transition that happened before the
// socket opened.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("orderID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[server] websocket upgrade failed: %v", err)
		return
	}

	sink := &wsSink{conn: conn}

	order, err := s.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			sink.Send(domain.StatusUpdate{OrderID: id, Message: "order not found"})
		} else {
			s.logger.Printf("[server] failed to load order %s for status stream: %v", id, err)
			sink.Send(domain.StatusUpdate{OrderID: id, Message: "failed to load order"})
		}
		conn.Close()
		return
	}

	// Replay the current state before live updates start flowing.
	if err := sink.Send(snapshotUpdate(order)); err != nil {
		s.logger.Printf("[server] failed to replay state for order %s: %v", id, err)
		conn.Close()
		return
	}

	if order.Status.Terminal() {
		// Nothing further will be published.
		conn.Close()
		return
	}

	s.broadcaster.Register(id, sink)

	// The order may have reached a terminal state between the snapshot
	// and registration, in which case nothing further will be published.
	if cur, err := s.orders.GetByID(r.Context(), id); err == nil && cur.Status.Terminal() {
		sink.Send(snapshotUpdate(cur))
		s.broadcaster.Unregister(id, sink)
		conn.Close()
		return
	}

	// A pending order may have lost its job to a restart between
	// creation and pickup. Resubmitting is harmless: the queue is
	// idempotent on the order id.
	if order.Status == domain.StatusPending {
		job := domain.Job{
			OrderID: order.ID,
			Request: domain.SwapRequest{
				Type:              order.Type,
				TokenIn:           order.TokenIn,
				TokenOut:          order.TokenOut,
				AmountIn:          order.AmountIn,
				SlippageTolerance: order.SlippageTolerance,
			},
		}
		if err := s.queue.Submit(r.Context(), job); err != nil && !errors.Is(err, queue.ErrDuplicateJob) {
			s.logger.Printf("[server] failed to resubmit pending order %s: %v", id, err)
		}
	}

	go s.readUntilClose(conn, id, sink)
}

// readUntilClose drains client frames until the peer goes away, then
// detaches the subscriber.
func (s *Server) readUntilClose(conn *websocket.Conn, orderID string, sink *wsSink) {
	defer func() {
		s.broadcaster.Unregister(orderID, sink)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("[server] websocket read error for order %s: %v", orderID, err)
			}
			return
		}
	}
}

// snapshotUpdate builds a status update from the persisted order row.
func snapshotUpdate(o *domain.Order) domain.StatusUpdate {
	u := domain.StatusUpdate{
		OrderID: o.ID,
		Status:  o.Status,
		Message: "current state",
	}
	if o.SelectedVenue != "" || o.TxRef != "" || o.Error != "" {
		u.Data = &domain.StatusData{
			SelectedVenue:  o.SelectedVenue,
			TxRef:          o.TxRef,
			ExecutionPrice: o.ExecutionPrice,
			AmountOut:      o.AmountOut,
			Error:          o.Error,
		}
	}
	return u
}

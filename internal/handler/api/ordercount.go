package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shoppy/internal/handler"
	"github.com/dukerupert/shoppy/internal/middleware"
)

// DefaultHeartbeat is how often an idle order-count stream sends a comment
// line to keep proxies from closing it.
const DefaultHeartbeat = 25 * time.Second

// OrderCountHandler serves per-product order counts.
type OrderCountHandler struct {
	counts    OrderCounts
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewOrderCountHandler creates a new order count handler. A zero heartbeat
// uses DefaultHeartbeat.
func NewOrderCountHandler(counts OrderCounts, heartbeat time.Duration, logger *slog.Logger) *OrderCountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &OrderCountHandler{counts: counts, logger: logger, heartbeat: heartbeat}
}

type orderCountResponse struct {
	ProductID  int   `json:"product_id"`
	OrderCount int64 `json:"order_count"`
}

// Get handles GET /products/{id}/order-count
func (h *OrderCountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	n, err := h.counts.GetOrderCount(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, orderCountResponse{ProductID: id, OrderCount: n})
}

// Stream handles GET /products/{id}/order-count/stream as server-sent
// events: one "order_count" event with the current value, then one per
// change, until the client disconnects.
func (h *OrderCountHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	logger := middleware.GetLogger(r.Context(), h.logger).With("product_id", id)

	sub, err := h.counts.WatchOrderCount(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Warn("order count stream cannot flush", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case n, open := <-sub.C:
			if !open {
				return
			}
			data, _ := json.Marshal(orderCountResponse{ProductID: id, OrderCount: n})
			if _, err := fmt.Fprintf(w, "event: order_count\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shoppy/internal/cart"
	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/handler"
	"github.com/dukerupert/shoppy/internal/middleware"
)

// CartHandler forwards shopper intents to the cart engine.
type CartHandler struct {
	engine  *cart.Engine
	catalog ProductCatalog
	logger  *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(engine *cart.Engine, catalog ProductCatalog, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{engine: engine, catalog: catalog, logger: logger}
}

type couponRequest struct {
	Code string `json:"code"`
}

// View handles GET /cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	handler.JSON(w, http.StatusOK, h.engine.Summary())
}

// Add handles POST /cart/items/{id}. The product must be in the catalog.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary := h.engine.AddToCart(persistContext(r), product)
	middleware.GetLogger(r.Context(), h.logger).Debug("added to cart", "product_id", id, "items", summary.ItemCount)
	handler.JSON(w, http.StatusOK, summary)
}

// Remove handles DELETE /cart/items/{id}. Products are matched by id, so
// this works even if the product has since left the catalog.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	summary := h.engine.RemoveFromCart(persistContext(r), domain.Product{ID: id})
	handler.JSON(w, http.StatusOK, summary)
}

// ApplyCoupon handles POST /cart/coupon with body {"code": "..."}.
// An unrecognized code is not an error; the summary carries the message.
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.BadRequestResponse(w, r, "request body must be a JSON object with a code")
		return
	}

	handler.JSON(w, http.StatusOK, h.engine.ApplyCouponCode(req.Code))
}

// Checkout handles POST /cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	receipt := h.engine.Checkout(persistContext(r))
	handler.JSON(w, http.StatusOK, receipt)
}

// persistContext keeps request values but drops cancellation, so a client
// hanging up mid-request cannot abort the saved-cart write.
func persistContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

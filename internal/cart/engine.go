// Package cart holds the storefront's shopping cart: its lines, pricing,
// coupon state, persistence to the saved-cart slot, and checkout.
package cart

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/storage"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summary is a point-in-time view of the cart and its coupon state.
type Summary struct {
	Lines              []domain.Line   `json:"lines"`
	ItemCount          int             `json:"item_count"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Discount           decimal.Decimal `json:"discount"`
	Total              decimal.Decimal `json:"total"`
	CouponCode         string          `json:"coupon_code"`
	CouponMessage      string          `json:"coupon_message"`
}

// Receipt records a checkout as it was just before the cart was cleared.
type Receipt struct {
	CheckoutID uuid.UUID       `json:"checkout_id"`
	Lines      []domain.Line   `json:"lines"`
	ItemCount  int             `json:"item_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Empty reports whether nothing was checked out.
func (r Receipt) Empty() bool {
	return len(r.Lines) == 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithCoupon replaces the recognized coupon.
func WithCoupon(c Coupon) Option {
	return func(e *Engine) { e.coupon = c }
}

// WithMetrics records cart activity on m.
func WithMetrics(m *telemetry.BusinessMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithListener subscribes fn before the saved cart is loaded, so it also
// sees the EventLoaded notification.
func WithListener(fn func(Event)) Option {
	return func(e *Engine) { e.subscribe(fn) }
}

// Engine owns the cart state. Only its methods mutate it; every mutation is
// written to the saved-cart slot before the method returns. Methods are safe
// for concurrent use.
type Engine struct {
	mu    sync.Mutex
	lines []domain.Line

	couponCode         string
	couponMessage      string
	discountPercentage decimal.Decimal

	slot    storage.Storage
	counter domain.OrderCounter
	coupon  Coupon
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics

	listenersMu sync.Mutex
	listeners   map[int]func(Event)
	nextID      int
}

// New builds an engine and hydrates it from the saved-cart slot. Load
// problems leave the cart empty; they are logged, never returned.
func New(ctx context.Context, slot storage.Storage, counter domain.OrderCounter, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		slot:               slot,
		counter:            counter,
		coupon:             DefaultCoupon(),
		logger:             logger.With("component", "cart"),
		discountPercentage: decimal.Zero,
		listeners:          make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewBusinessMetrics("", nil)
	}

	e.mu.Lock()
	e.loadCart(ctx)
	summary := e.summaryLocked()
	e.mu.Unlock()

	e.notify(Event{Type: EventLoaded, Summary: summary})
	return e
}

// AddToCart adds one unit of product, inserting a line at quantity 1 when the
// product is new. A product already in the cart keeps its stored fields.
func (e *Engine) AddToCart(ctx context.Context, product domain.Product) Summary {
	e.mu.Lock()
	if i := e.indexOf(product.ID); i >= 0 {
		e.lines[i].Quantity++
	} else {
		e.lines = append(e.lines, domain.Line{Product: product, Quantity: 1})
	}
	e.saveCart(ctx)
	summary := e.summaryLocked()
	e.mu.Unlock()

	e.metrics.CartItemsAdded.Inc()
	e.notify(Event{Type: EventItemAdded, Summary: summary, ProductID: product.ID})
	return summary
}

// RemoveFromCart removes one unit of product, dropping the line when its
// quantity reaches zero. Removing a product that is not in the cart changes
// nothing and does not touch storage.
func (e *Engine) RemoveFromCart(ctx context.Context, product domain.Product) Summary {
	e.mu.Lock()
	i := e.indexOf(product.ID)
	if i < 0 {
		summary := e.summaryLocked()
		e.mu.Unlock()
		return summary
	}

	if e.lines[i].Quantity > 1 {
		e.lines[i].Quantity--
	} else {
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
	}
	e.saveCart(ctx)
	summary := e.summaryLocked()
	e.mu.Unlock()

	e.metrics.CartItemsRemoved.Inc()
	e.notify(Event{Type: EventItemRemoved, Summary: summary, ProductID: product.ID})
	return summary
}

// QuantityInCart returns how many units of product are in the cart.
func (e *Engine) QuantityInCart(product domain.Product) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexOf(product.ID); i >= 0 {
		return e.lines[i].Quantity
	}
	return 0
}

// SetCouponCode records the code typed by the shopper without applying it.
func (e *Engine) SetCouponCode(code string) {
	e.mu.Lock()
	e.couponCode = code
	e.mu.Unlock()
}

// ApplyCoupon checks the current coupon code. A match sets the promotional
// discount; anything else, including an empty code, clears it.
func (e *Engine) ApplyCoupon() Summary {
	e.mu.Lock()
	accepted, summary := e.applyCouponLocked()
	e.mu.Unlock()
	return e.couponApplied(accepted, summary)
}

// ApplyCouponCode sets code and applies it in one step, so concurrent
// callers each get the outcome of their own code.
func (e *Engine) ApplyCouponCode(code string) Summary {
	e.mu.Lock()
	e.couponCode = code
	accepted, summary := e.applyCouponLocked()
	e.mu.Unlock()
	return e.couponApplied(accepted, summary)
}

func (e *Engine) applyCouponLocked() (bool, Summary) {
	accepted := e.coupon.Matches(e.couponCode)
	if accepted {
		e.discountPercentage = e.coupon.Rate
		e.couponMessage = e.coupon.AppliedMessage()
	} else {
		e.discountPercentage = decimal.Zero
		e.couponMessage = invalidCouponMessage
	}
	return accepted, e.summaryLocked()
}

// couponApplied records and announces a coupon attempt. Call it without the lock.
func (e *Engine) couponApplied(accepted bool, summary Summary) Summary {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	e.metrics.CouponAttempts.WithLabelValues(result).Inc()
	e.logger.Debug("coupon applied", "code", summary.CouponCode, "result", result)

	e.notify(Event{Type: EventCouponApplied, Summary: summary})
	return summary
}

// Checkout records one order-count increment per line, then resets the cart
// and coupon state and saves the empty cart. Increments are dispatched
// without waiting for them. An empty cart checks out with no increments.
func (e *Engine) Checkout(ctx context.Context) Receipt {
	e.mu.Lock()
	subtotal := e.subtotalLocked()
	receipt := Receipt{
		CheckoutID: uuid.New(),
		Lines:      e.linesLocked(),
		ItemCount:  e.itemCountLocked(),
		Subtotal:   subtotal,
		Discount:   subtotal.Mul(e.discountPercentage),
		Total:      subtotal.Mul(decimal.NewFromInt(1).Sub(e.discountPercentage)),
		CreatedAt:  time.Now().UTC(),
	}

	e.logger.Info("proceeding to checkout",
		"checkout_id", receipt.CheckoutID,
		"total", receipt.Total.StringFixed(2),
		"items", receipt.ItemCount,
	)
	telemetry.AddBreadcrumb("cart", "checkout", map[string]interface{}{
		"checkout_id": receipt.CheckoutID.String(),
		"total":       receipt.Total.StringFixed(2),
	})

	for _, l := range e.lines {
		e.counter.IncrementOrderCount(l.Product.ID, l.Quantity)
	}

	e.lines = nil
	e.couponCode = ""
	e.couponMessage = ""
	e.discountPercentage = decimal.Zero
	e.saveCart(ctx)
	summary := e.summaryLocked()
	e.mu.Unlock()

	if !receipt.Empty() {
		e.metrics.CheckoutsCompleted.Inc()
		e.metrics.CheckoutValue.Observe(receipt.Total.InexactFloat64())
		e.metrics.CheckoutItemCount.Observe(float64(receipt.ItemCount))
	}

	e.notify(Event{Type: EventCheckedOut, Summary: summary, Receipt: &receipt})
	return receipt
}

// Lines returns a copy of the cart lines in insertion order.
func (e *Engine) Lines() []domain.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked()
}

// ItemCount returns the total number of units in the cart.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.itemCountLocked()
}

// Subtotal returns the undiscounted price of the cart.
func (e *Engine) Subtotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subtotalLocked()
}

// Discount returns the amount taken off the subtotal.
func (e *Engine) Discount() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subtotalLocked().Mul(e.discountPercentage)
}

// Total returns subtotal x (1 - discount percentage).
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subtotalLocked().Mul(decimal.NewFromInt(1).Sub(e.discountPercentage))
}

// Summary returns the cart and coupon state in one consistent read.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summaryLocked()
}

func (e *Engine) indexOf(productID int) int {
	for i, l := range e.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (e *Engine) linesLocked() []domain.Line {
	out := make([]domain.Line, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *Engine) itemCountLocked() int {
	n := 0
	for _, l := range e.lines {
		n += l.Quantity
	}
	return n
}

func (e *Engine) subtotalLocked() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range e.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

func (e *Engine) summaryLocked() Summary {
	subtotal := e.subtotalLocked()
	return Summary{
		Lines:              e.linesLocked(),
		ItemCount:          e.itemCountLocked(),
		Subtotal:           subtotal,
		DiscountPercentage: e.discountPercentage,
		Discount:           subtotal.Mul(e.discountPercentage),
		Total:              subtotal.Mul(decimal.NewFromInt(1).Sub(e.discountPercentage)),
		CouponCode:         e.couponCode,
		CouponMessage:      e.couponMessage,
	}
}

// saveCart writes the current lines to the slot. Failures are logged and
// reported; the in-memory cart stays authoritative.
func (e *Engine) saveCart(ctx context.Context) {
	data, err := encodeCart(e.lines)
	if err != nil {
		e.metrics.CartSaveFailures.WithLabelValues("encode").Inc()
		e.logger.Error("failed to encode cart", "error", err)
		telemetry.CaptureError(err, "cart", map[string]interface{}{"stage": "encode"})
		return
	}

	if err := e.slot.Put(ctx, domain.SavedCartKey, bytes.NewReader(data), "application/json"); err != nil {
		e.metrics.CartSaveFailures.WithLabelValues("write").Inc()
		e.logger.Error("failed to save cart", "key", domain.SavedCartKey, "error", err)
		telemetry.CaptureError(err, "cart", map[string]interface{}{"stage": "write"})
	}
}

// loadCart replaces the lines with the saved cart, if any.
func (e *Engine) loadCart(ctx context.Context) {
	rc, err := e.slot.Get(ctx, domain.SavedCartKey)
	if err != nil {
		if storage.IsNotFound(err) {
			e.metrics.CartLoads.WithLabelValues("empty").Inc()
			e.logger.Debug("no saved cart")
			return
		}
		e.metrics.CartLoads.WithLabelValues("error").Inc()
		e.logger.Warn("failed to read saved cart", "key", domain.SavedCartKey, "error", err)
		telemetry.CaptureError(err, "cart", map[string]interface{}{"stage": "read"})
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		e.metrics.CartLoads.WithLabelValues("error").Inc()
		e.logger.Warn("failed to read saved cart", "key", domain.SavedCartKey, "error", err)
		return
	}

	lines, err := decodeCart(data)
	if err != nil {
		e.metrics.CartLoads.WithLabelValues("corrupt").Inc()
		e.logger.Warn("discarding unreadable saved cart", "key", domain.SavedCartKey, "error", err)
		return
	}

	e.lines = lines
	e.metrics.CartLoads.WithLabelValues("restored").Inc()
	e.logger.Info("restored saved cart", "lines", len(lines), "items", e.itemCountLocked())
}

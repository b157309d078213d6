// Package events publishes completed checkouts to a message broker so
// downstream consumers (fulfilment, analytics) get their own record of
// each order.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/shoppy/internal"
	"github.com/dukerupert/shoppy/internal/cart"
	"github.com/shopspring/decimal"
)

// Publisher delivers checkout events.
type Publisher interface {
	Publish(ctx context.Context, event CheckoutEvent) error
	Close() error
}

// CheckoutEvent is the wire payload for one checkout.
type CheckoutEvent struct {
	CheckoutID string          `json:"checkout_id"`
	Lines      []EventLine     `json:"lines"`
	ItemCount  int             `json:"item_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventLine is one purchased product.
type EventLine struct {
	ProductID int             `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewCheckoutEvent flattens a receipt into its published form.
func NewCheckoutEvent(r cart.Receipt) CheckoutEvent {
	lines := make([]EventLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, EventLine{
			ProductID: l.Product.ID,
			Title:     l.Product.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.Price,
			LineTotal: l.Total(),
		})
	}

	return CheckoutEvent{
		CheckoutID: r.CheckoutID.String(),
		Lines:      lines,
		ItemCount:  r.ItemCount,
		Subtotal:   r.Subtotal,
		Discount:   r.Discount,
		Total:      r.Total,
		OccurredAt: r.CreatedAt,
	}
}

func (e CheckoutEvent) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout event: %w", err)
	}
	return body, nil
}

// NewPublisher connects the publisher selected by cfg.Provider.
func NewPublisher(cfg internal.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Provider {
	case "", "none":
		return NoopPublisher{}, nil
	case "nats":
		return NewNATSPublisher(cfg.URL, cfg.Subject, logger)
	case "amqp":
		return NewAMQPPublisher(cfg.URL, cfg.Subject, logger)
	default:
		return nil, fmt.Errorf("unknown events provider: %s", cfg.Provider)
	}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event CheckoutEvent) error { return nil }
func (NoopPublisher) Close() error                                           { return nil }

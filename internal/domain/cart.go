package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN TYPES
// =============================================================================

// SavedCartKey is the storage slot holding the persisted cart.
const SavedCartKey = "savedCart"

// Line is one product in a cart with its quantity (always >= 1).
type Line struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Total returns price x quantity for the line.
func (l Line) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderCounter records ordered units per product.
// IncrementOrderCount must not block the caller and never reports failure;
// implementations deal with their own errors.
type OrderCounter interface {
	IncrementOrderCount(productID int, amount int)
}

// OrderCountReader exposes per-product order counts for display.
type OrderCountReader interface {
	// GetOrderCount returns the current count, or 0 if the product was never ordered.
	GetOrderCount(ctx context.Context, productID int) (int64, error)
}

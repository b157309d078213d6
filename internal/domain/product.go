package domain

import (
	"github.com/shopspring/decimal"
)

// Money is written as a JSON number everywhere (prices, cart totals, saved
// carts, checkout events) so every payload matches the catalog's own format.
// Decoding accepts both numbers and strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is an immutable catalog entry.
// Two products with the same ID are the same product, whatever their other
// fields say, so carts aggregate across catalog refreshes.
type Product struct {
	ID          int             `json:"id" validate:"gt=0"`
	Title       string          `json:"title" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
}

// Equal reports whether p and other identify the same product.
func (p Product) Equal(other Product) bool {
	return p.ID == other.ID
}

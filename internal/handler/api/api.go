// Package api serves the storefront's JSON API: the product catalog, the
// shopper's cart and live order counts.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/handler"
	"github.com/dukerupert/shoppy/internal/ordercount"
)

// ProductCatalog resolves catalog products. *catalog.Cache implements it.
type ProductCatalog interface {
	Refresh(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id int) (domain.Product, error)
}

// OrderCounts reads per-product order counts. *ordercount.Client implements it.
type OrderCounts interface {
	domain.OrderCountReader
	WatchOrderCount(ctx context.Context, productID int) (*ordercount.Subscription, error)
}

// productID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		handler.BadRequestResponse(w, r, "product id must be a positive integer")
		return 0, false
	}
	return id, true
}

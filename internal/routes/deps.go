package routes

import (
	"net/http"

	"github.com/dukerupert/shoppy/internal/handler/api"
	"github.com/dukerupert/shoppy/internal/router"
)

// APIDeps contains dependencies for API routes
type APIDeps struct {
	// Catalog
	ProductHandler *api.ProductHandler

	// Cart (add, remove, coupon, checkout)
	CartHandler *api.CartHandler

	// CartLimiter, when set, guards every cart mutation.
	CartLimiter router.Middleware

	// Live order counts
	OrderCountHandler *api.OrderCountHandler

	// Operations
	HealthHandler  *api.HealthHandler
	MetricsHandler http.Handler
}

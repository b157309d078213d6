package routes

import (
	"github.com/dukerupert/shoppy/internal/middleware"
	"github.com/dukerupert/shoppy/internal/router"
)

// RegisterAPIRoutes registers the storefront JSON API on r.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Operations
	r.Get("/health", deps.HealthHandler.Check)
	if deps.MetricsHandler != nil {
		r.Handle("GET", "/metrics", deps.MetricsHandler)
	}

	// Catalog
	r.Get("/products", deps.ProductHandler.List)
	r.Get("/products/{id}", deps.ProductHandler.Get)
	r.Get("/products/{id}/order-count", deps.OrderCountHandler.Get)
	r.Get("/products/{id}/order-count/stream", deps.OrderCountHandler.Stream)

	// Cart
	r.Get("/cart", deps.CartHandler.View)

	mutations := r
	if deps.CartLimiter != nil {
		mutations = r.Group(deps.CartLimiter)
	}
	mutations.Post("/cart/items/{id}", deps.CartHandler.Add)
	mutations.Delete("/cart/items/{id}", deps.CartHandler.Remove)
	mutations.Post("/cart/coupon", deps.CartHandler.ApplyCoupon, middleware.MaxBodySize(middleware.KB))
	mutations.Post("/cart/checkout", deps.CartHandler.Checkout)
}

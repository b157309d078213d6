package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BusinessMetrics holds Prometheus metrics for storefront activity.
type BusinessMetrics struct {
	// Cart
	CartItemsAdded   prometheus.Counter
	CartItemsRemoved prometheus.Counter
	CartSaveFailures *prometheus.CounterVec
	CartLoads        *prometheus.CounterVec

	// Coupons
	CouponAttempts *prometheus.CounterVec

	// Checkout
	CheckoutsCompleted prometheus.Counter
	CheckoutValue      prometheus.Histogram
	CheckoutItemCount  prometheus.Histogram

	// Order counts
	OrderCountIncrements *prometheus.CounterVec
	OrderCountLatency    prometheus.Histogram

	// Catalog
	CatalogFetches *prometheus.CounterVec

	// Checkout events
	EventsPublished *prometheus.CounterVec
}

// NewBusinessMetrics creates business metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "shoppy"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		CartItemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_items_added_total",
			Help:      "Units added to the cart",
		}),
		CartItemsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_items_removed_total",
			Help:      "Units removed from the cart",
		}),
		CartSaveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_save_failures_total",
			Help:      "Saved-cart writes that were abandoned",
		}, []string{"stage"}), // stage: encode, write
		CartLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_loads_total",
			Help:      "Saved-cart loads at startup by outcome",
		}, []string{"outcome"}), // outcome: restored, empty, corrupt, error
		CouponAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "coupon_attempts_total",
			Help:      "Coupon applications by result",
		}, []string{"result"}), // result: accepted, rejected
		CheckoutsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "checkouts_completed_total",
			Help:      "Completed checkouts",
		}),
		CheckoutValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "checkout_value_dollars",
			Help:      "Checkout totals after discount",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		CheckoutItemCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "checkout_item_count",
			Help:      "Units per checkout",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		OrderCountIncrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_count_increments_total",
			Help:      "Order-count increments by result",
		}, []string{"result"}), // result: ok, failed, dropped
		OrderCountLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_count_increment_seconds",
			Help:      "Latency of order-count increments",
			Buckets:   prometheus.DefBuckets,
		}),
		CatalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "catalog_fetches_total",
			Help:      "Catalog fetches by outcome",
		}, []string{"outcome"}), // outcome: ok, network, status, decode
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "checkout_events_published_total",
			Help:      "Checkout events handed to the broker",
		}, []string{"provider", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CartItemsAdded,
			m.CartItemsRemoved,
			m.CartSaveFailures,
			m.CartLoads,
			m.CouponAttempts,
			m.CheckoutsCompleted,
			m.CheckoutValue,
			m.CheckoutItemCount,
			m.OrderCountIncrements,
			m.OrderCountLatency,
			m.CatalogFetches,
			m.EventsPublished,
		)
	}

	return m
}

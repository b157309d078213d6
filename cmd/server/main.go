package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/shoppy/internal"
	"github.com/dukerupert/shoppy/internal/cart"
	"github.com/dukerupert/shoppy/internal/catalog"
	"github.com/dukerupert/shoppy/internal/events"
	"github.com/dukerupert/shoppy/internal/handler/api"
	"github.com/dukerupert/shoppy/internal/middleware"
	"github.com/dukerupert/shoppy/internal/ordercount"
	"github.com/dukerupert/shoppy/internal/router"
	"github.com/dukerupert/shoppy/internal/routes"
	"github.com/dukerupert/shoppy/internal/storage"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/dukerupert/shoppy/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const shutdownTimeout = 15 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	businessMetrics := telemetry.NewBusinessMetrics("shoppy", prometheus.DefaultRegisterer)

	// ==========================================================================
	// Saved-cart slot and order counts
	// ==========================================================================

	slot, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Saved-cart storage ready", "provider", cfg.Storage.Provider)

	store, closeStore, err := ordercount.NewStore(ctx, cfg.OrderCount, logger)
	if err != nil {
		return fmt.Errorf("order count store initialization failed: %w", err)
	}
	defer closeStore()
	logger.Info("Order count store ready", "backend", cfg.OrderCount.Backend)

	orderCounts := ordercount.NewClient(store, worker.Config{
		WorkerID:       "order-count",
		MaxConcurrency: cfg.OrderCount.MaxConcurrency,
		JobTimeout:     cfg.OrderCount.Timeout,
	}, logger, businessMetrics)

	// ==========================================================================
	// Checkout events
	// ==========================================================================

	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("events publisher initialization failed: %w", err)
	}
	forwarder := events.NewForwarder(publisher, cfg.Events.Provider, worker.Config{
		WorkerID:       "checkout-events",
		MaxConcurrency: 2,
		JobTimeout:     10 * time.Second,
	}, logger, businessMetrics)

	// ==========================================================================
	// Catalog and cart engine
	// ==========================================================================

	catalogClient := catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.Timeout, logger, businessMetrics)
	products := catalog.NewCache(catalogClient)
	if _, err := products.Refresh(ctx); err != nil {
		// Not fatal: the first catalog request retries.
		logger.Warn("Initial catalog fetch failed", "error", err)
	}

	engine := cart.New(ctx, slot, orderCounts, logger,
		cart.WithCoupon(cart.Coupon{
			Code: cfg.Coupon.Code,
			Rate: decimal.NewFromFloat(cfg.Coupon.Rate),
		}),
		cart.WithMetrics(businessMetrics),
		cart.WithListener(forwarder.Handle),
	)

	// ==========================================================================
	// Router
	// ==========================================================================

	httpMetrics := middleware.NewMetrics("shoppy", prometheus.DefaultRegisterer)

	r := router.New(
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		middleware.AccessLog,
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.Env == "prod")),
		middleware.MaxBodySize(),
	)

	var cartLimiter router.Middleware
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limits := middleware.DefaultRateLimiterConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		if cfg.RateLimit.Burst > 0 {
			limits.BurstSize = cfg.RateLimit.Burst
		}
		limiter := middleware.NewRateLimiter(limits)
		defer limiter.Stop()
		cartLimiter = limiter.Middleware
	}

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		ProductHandler:    api.NewProductHandler(products, logger),
		CartHandler:       api.NewCartHandler(engine, products, logger),
		CartLimiter:       cartLimiter,
		OrderCountHandler: api.NewOrderCountHandler(orderCounts, api.DefaultHeartbeat, logger),
		HealthHandler:     api.NewHealthHandler(),
		MetricsHandler:    httpMetrics.Handler(),
	})
	for _, pattern := range r.Routes() {
		logger.Debug("Route registered", "pattern", pattern)
	}

	// ==========================================================================
	// Serve
	// ==========================================================================

	// Request contexts derive from baseCtx; cancelling it on shutdown ends
	// long-lived order-count streams so Shutdown does not wait on them.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env, "routes", len(r.Routes()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	// Checkouts have stopped; let pending increments and events finish.
	if err := orderCounts.Close(shutdownCtx); err != nil {
		logger.Error("Order count increments abandoned", "error", err)
	}
	if err := forwarder.Close(shutdownCtx); err != nil {
		logger.Error("Checkout events abandoned", "error", err)
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

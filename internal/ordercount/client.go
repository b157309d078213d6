package ordercount

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/dukerupert/shoppy/internal/worker"
)

const incrementJob = "order_count.increment"

// Client is the order-count collaborator used by checkout and product pages.
type Client struct {
	store   Store
	worker  *worker.Worker
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

// NewClient creates a client that dispatches increments on its own worker.
func NewClient(store Store, cfg worker.Config, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *Client {
	if metrics == nil {
		metrics = telemetry.NewBusinessMetrics("", nil)
	}
	c := &Client{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "order-count"
	}
	c.worker = worker.NewWorker(cfg, logger, c.recordResult)
	return c
}

// IncrementOrderCount adds amount to the product's counter in the background.
// It returns immediately; failures are logged and reported, never returned.
func (c *Client) IncrementOrderCount(productID int, amount int) {
	ok := c.worker.Submit(worker.Job{
		Name:  incrementJob,
		Attrs: []any{"product_id", productID, "amount", amount},
		Run: func(ctx context.Context) error {
			value, err := c.store.Increment(ctx, productID, amount)
			if err != nil {
				return fmt.Errorf("error updating order count: %w", err)
			}
			c.logger.Debug("order count updated", "product_id", productID, "order_count", value)
			return nil
		},
	})
	if !ok {
		c.metrics.OrderCountIncrements.WithLabelValues("dropped").Inc()
	}
}

func (c *Client) recordResult(job worker.Job, err error, elapsed time.Duration) {
	c.metrics.OrderCountLatency.Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.OrderCountIncrements.WithLabelValues("failed").Inc()
		telemetry.CaptureError(err, "ordercount", map[string]interface{}{"job": job.Name})
		return
	}
	c.metrics.OrderCountIncrements.WithLabelValues("ok").Inc()
}

// GetOrderCount reads the product's counter once; 0 if it was never ordered.
func (c *Client) GetOrderCount(ctx context.Context, productID int) (int64, error) {
	n, err := c.store.Get(ctx, productID)
	if err != nil {
		return 0, storeError(err, "ordercount.get")
	}
	return n, nil
}

// WatchOrderCount subscribes to live changes of the product's counter.
func (c *Client) WatchOrderCount(ctx context.Context, productID int) (*Subscription, error) {
	sub, err := c.store.Watch(ctx, productID)
	if err != nil {
		return nil, storeError(err, "ordercount.watch")
	}
	return sub, nil
}

// storeError keeps coded errors as they are and reports raw backend
// failures as unavailable.
func storeError(err error, op string) error {
	if !domain.IsCode(err, domain.EINTERNAL) {
		return err
	}
	return domain.WrapError(err, domain.EUNAVAILABLE, op, "order counts are temporarily unavailable")
}

// Close waits for dispatched increments to finish, up to ctx's deadline.
func (c *Client) Close(ctx context.Context) error {
	return c.worker.Shutdown(ctx)
}

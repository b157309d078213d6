package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/shoppy/internal/cart"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/dukerupert/shoppy/internal/worker"
)

const publishJob = "events.publish_checkout"

// Forwarder listens to cart events and publishes each non-empty checkout in
// the background. Checkout never waits on the broker.
type Forwarder struct {
	publisher Publisher
	provider  string
	worker    *worker.Worker
	logger    *slog.Logger
	metrics   *telemetry.BusinessMetrics
}

// NewForwarder wraps publisher. provider labels metrics ("nats", "amqp", "none").
func NewForwarder(publisher Publisher, provider string, cfg worker.Config, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *Forwarder {
	if provider == "" {
		provider = "none"
	}
	if metrics == nil {
		metrics = telemetry.NewBusinessMetrics("", nil)
	}

	f := &Forwarder{
		publisher: publisher,
		provider:  provider,
		logger:    logger.With("component", "events"),
		metrics:   metrics,
	}
	f.worker = worker.NewWorker(cfg, logger, f.recordResult)
	return f
}

// Handle is a cart.Engine listener.
func (f *Forwarder) Handle(ev cart.Event) {
	if ev.Type != cart.EventCheckedOut || ev.Receipt == nil || ev.Receipt.Empty() {
		return
	}

	event := NewCheckoutEvent(*ev.Receipt)
	ok := f.worker.Submit(worker.Job{
		Name:  publishJob,
		Attrs: []any{"checkout_id", event.CheckoutID},
		Run: func(ctx context.Context) error {
			return f.publisher.Publish(ctx, event)
		},
	})
	if !ok {
		f.metrics.EventsPublished.WithLabelValues(f.provider, "dropped").Inc()
		f.logger.Warn("checkout event dropped", "checkout_id", event.CheckoutID)
	}
}

func (f *Forwarder) recordResult(job worker.Job, err error, elapsed time.Duration) {
	if err != nil {
		f.metrics.EventsPublished.WithLabelValues(f.provider, "failed").Inc()
		telemetry.CaptureError(err, "events", map[string]interface{}{"provider": f.provider})
		return
	}
	f.metrics.EventsPublished.WithLabelValues(f.provider, "ok").Inc()
}

// Close waits for queued publishes, then closes the publisher.
func (f *Forwarder) Close(ctx context.Context) error {
	err := f.worker.Shutdown(ctx)
	if cerr := f.publisher.Close(); err == nil {
		err = cerr
	}
	return err
}

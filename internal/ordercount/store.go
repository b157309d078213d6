// Package ordercount keeps per-product counters of ordered units.
//
// Backends implement Store and must make Increment atomic under concurrent
// callers from many processes. Client wraps a Store for the checkout path:
// increments are dispatched in the background and never reported back.
package ordercount

import (
	"context"
	"strconv"

	"github.com/dukerupert/shoppy/internal/domain"
)

// Store is a remote counter keyed by product ID.
type Store interface {
	// Increment atomically adds amount to the product's counter, creating it
	// at amount if absent, and returns the new value.
	Increment(ctx context.Context, productID int, amount int) (int64, error)

	// Get returns the product's counter, or 0 if it does not exist.
	Get(ctx context.Context, productID int) (int64, error)

	// Watch pushes the current value and then every change until the
	// subscription is cancelled or ctx is done.
	Watch(ctx context.Context, productID int) (*Subscription, error)
}

func validateIncrement(op string, productID, amount int) error {
	if productID <= 0 {
		return domain.Errorf(domain.EINVALID, op, "invalid product id: %d", productID)
	}
	if amount < 1 {
		return domain.Errorf(domain.EINVALID, op, "increment amount must be positive, got %d", amount)
	}
	return nil
}

// Subscription is a live feed of one product's order count.
// Only the latest value is buffered; a slow reader skips intermediate counts.
type Subscription struct {
	// C receives counts. It is closed when the subscription ends.
	C <-chan int64

	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops the feed and waits for it to wind down.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// startSubscription runs feed in a goroutine until ctx ends or feed returns.
func startSubscription(parent context.Context, feed func(ctx context.Context, emit func(int64))) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan int64, 1)
	done := make(chan struct{})

	emit := func(v int64) {
		for {
			select {
			case ch <- v:
				return
			case <-ctx.Done():
				return
			default:
				// Drop the stale value nobody has read yet.
				select {
				case <-ch:
				default:
				}
			}
		}
	}

	go func() {
		defer close(done)
		defer close(ch)
		defer cancel()
		feed(ctx, emit)
	}()

	return &Subscription{C: ch, cancel: cancel, done: done}
}

// coerceCount converts a decoded counter value into an int64.
// Anything that is not a whole number counts as 0, so a hand-edited or
// corrupted counter degrades to "never ordered" instead of failing reads.
func coerceCount(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
	case string:
		if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

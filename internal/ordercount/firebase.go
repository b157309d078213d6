package ordercount

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/db"
)

// FirebaseStore keeps counters in the Firebase Realtime Database under
// products/<id>/orderCount.
type FirebaseStore struct {
	client       *db.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewFirebaseStore creates a store over a Realtime Database client.
// The Admin SDK cannot subscribe to changes, so Watch polls every pollInterval.
func NewFirebaseStore(client *db.Client, pollInterval time.Duration, logger *slog.Logger) *FirebaseStore {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &FirebaseStore{client: client, pollInterval: pollInterval, logger: logger}
}

func orderCountPath(productID int) string {
	return fmt.Sprintf("products/%d/orderCount", productID)
}

// Increment runs a Realtime Database transaction, which the server retries
// with fresh data whenever another client wins the race.
func (s *FirebaseStore) Increment(ctx context.Context, productID int, amount int) (int64, error) {
	if err := validateIncrement("ordercount.increment", productID, amount); err != nil {
		return 0, err
	}

	var value int64
	err := s.client.NewRef(orderCountPath(productID)).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var current interface{}
		if err := node.Unmarshal(&current); err != nil {
			return nil, err
		}
		value = coerceCount(current) + int64(amount)
		return value, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment order count for product %d: %w", productID, err)
	}
	return value, nil
}

func (s *FirebaseStore) Get(ctx context.Context, productID int) (int64, error) {
	var current interface{}
	if err := s.client.NewRef(orderCountPath(productID)).Get(ctx, &current); err != nil {
		return 0, fmt.Errorf("failed to get order count for product %d: %w", productID, err)
	}
	return coerceCount(current), nil
}

func (s *FirebaseStore) Watch(ctx context.Context, productID int) (*Subscription, error) {
	initial, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	return startSubscription(ctx, func(ctx context.Context, emit func(int64)) {
		last := initial
		emit(last)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				value, err := s.Get(ctx, productID)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Warn("order count poll failed", "product_id", productID, "error", err)
					}
					continue
				}
				if value != last {
					last = value
					emit(value)
				}
			}
		}
	}), nil
}

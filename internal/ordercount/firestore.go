package ordercount

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	productsCollection = "products"
	orderCountField    = "orderCount"
)

// FirestoreStore keeps counters in products/<id> documents, field orderCount.
type FirestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreStore creates a store over a Firestore client.
func NewFirestoreStore(client *firestore.Client, logger *slog.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, logger: logger}
}

func (s *FirestoreStore) doc(productID int) *firestore.DocumentRef {
	return s.client.Collection(productsCollection).Doc(strconv.Itoa(productID))
}

// Increment reads and rewrites the counter inside a transaction; Firestore
// retries the function when a concurrent writer commits first.
func (s *FirestoreStore) Increment(ctx context.Context, productID int, amount int) (int64, error) {
	if err := validateIncrement("ordercount.increment", productID, amount); err != nil {
		return 0, err
	}

	ref := s.doc(productID)
	var value int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current int64
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			current = countFromSnapshot(snap)
		}

		value = current + int64(amount)
		return tx.Set(ref, map[string]interface{}{orderCountField: value}, firestore.MergeAll)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment order count for product %d: %w", productID, err)
	}
	return value, nil
}

func (s *FirestoreStore) Get(ctx context.Context, productID int) (int64, error) {
	snap, err := s.doc(productID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get order count for product %d: %w", productID, err)
	}
	return countFromSnapshot(snap), nil
}

// Watch streams document snapshots; a missing document reads as 0.
func (s *FirestoreStore) Watch(ctx context.Context, productID int) (*Subscription, error) {
	return startSubscription(ctx, func(ctx context.Context, emit func(int64)) {
		it := s.doc(productID).Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					s.logger.Error("order count watch stopped", "product_id", productID, "error", err)
				}
				return
			}
			if !snap.Exists() {
				emit(0)
				continue
			}
			emit(countFromSnapshot(snap))
		}
	}), nil
}

func countFromSnapshot(snap *firestore.DocumentSnapshot) int64 {
	if snap == nil || !snap.Exists() {
		return 0
	}
	v, err := snap.DataAt(orderCountField)
	if err != nil {
		return 0
	}
	return coerceCount(v)
}

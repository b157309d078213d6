package ordercount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel is fed by the order_counts trigger installed by migrations.
const notifyChannel = "order_count_changed"

const incrementSQL = `
INSERT INTO order_counts (product_id, order_count)
VALUES ($1, $2)
ON CONFLICT (product_id) DO UPDATE
SET order_count = order_counts.order_count + EXCLUDED.order_count,
    updated_at  = now()
RETURNING order_count`

const getSQL = `SELECT order_count FROM order_counts WHERE product_id = $1`

// PostgresStore keeps counters in the order_counts table.
// The upsert is a single statement, so concurrent increments serialize on
// the row lock instead of racing a read-then-write.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a store over an open pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) Increment(ctx context.Context, productID int, amount int) (int64, error) {
	if err := validateIncrement("ordercount.increment", productID, amount); err != nil {
		return 0, err
	}

	var value int64
	if err := s.pool.QueryRow(ctx, incrementSQL, productID, amount).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to increment order count for product %d: %w", productID, err)
	}
	return value, nil
}

func (s *PostgresStore) Get(ctx context.Context, productID int) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, getSQL, productID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get order count for product %d: %w", productID, err)
	}
	return value, nil
}

// Watch holds a dedicated connection listening for trigger notifications.
func (s *PostgresStore) Watch(ctx context.Context, productID int) (*Subscription, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen for order count changes: %w", err)
	}

	initial, err := s.Get(ctx, productID)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return startSubscription(ctx, func(ctx context.Context, emit func(int64)) {
		defer func() {
			// The connection goes back to the pool; it must not keep listening.
			if _, err := conn.Exec(context.Background(), "UNLISTEN "+notifyChannel); err != nil {
				s.logger.Warn("failed to unlisten order count channel", "error", err)
			}
			conn.Release()
		}()

		emit(initial)

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("order count watch stopped", "product_id", productID, "error", err)
				}
				return
			}

			id, value, err := parseNotification(n.Payload)
			if err != nil {
				s.logger.Warn("ignoring malformed order count notification", "payload", n.Payload, "error", err)
				continue
			}
			if id == productID {
				emit(value)
			}
		}
	}), nil
}

// parseNotification decodes the trigger payload "<product_id>:<order_count>".
func parseNotification(payload string) (int, int64, error) {
	idPart, countPart, ok := strings.Cut(payload, ":")
	if !ok {
		return 0, 0, fmt.Errorf("missing separator")
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id: %w", err)
	}
	count, err := strconv.ParseInt(countPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid count: %w", err)
	}
	return id, count, nil
}

package ordercount

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/dukerupert/shoppy/internal/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore rejects every increment.
type failingStore struct {
	*MemoryStore
	mu    sync.Mutex
	calls int
}

func (f *failingStore) Increment(ctx context.Context, productID int, amount int) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return 0, errors.New("permission denied")
}

// unreachableStore fails every read the way a dropped backend connection does.
type unreachableStore struct {
	*MemoryStore
}

var errBackendDown = errors.New("connection refused")

func (unreachableStore) Get(ctx context.Context, productID int) (int64, error) {
	return 0, errBackendDown
}

func (unreachableStore) Watch(ctx context.Context, productID int) (*Subscription, error) {
	return nil, errBackendDown
}

// invalidStore answers with an already coded error.
type invalidStore struct {
	*MemoryStore
}

func (invalidStore) Get(ctx context.Context, productID int) (int64, error) {
	return 0, domain.Invalid("ordercount.get", "invalid product id")
}

func newTestClient(store Store) (*Client, *telemetry.BusinessMetrics) {
	metrics := telemetry.NewBusinessMetrics("test", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(store, worker.Config{MaxConcurrency: 2}, logger, metrics), metrics
}

func TestClient_IncrementOrderCount(t *testing.T) {
	store := NewMemoryStore()
	client, metrics := newTestClient(store)

	client.IncrementOrderCount(1, 2)
	client.IncrementOrderCount(2, 1)
	client.IncrementOrderCount(1, 3)

	require.NoError(t, client.Close(context.Background()))

	assert.Equal(t, map[int]int64{1: 5, 2: 1}, store.Snapshot())
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.OrderCountIncrements.WithLabelValues("ok")))

	n, err := client.GetOrderCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestClient_FailuresAreSwallowed(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	client, metrics := newTestClient(store)

	assert.NotPanics(t, func() {
		client.IncrementOrderCount(1, 1)
		client.IncrementOrderCount(2, 1)
	})
	require.NoError(t, client.Close(context.Background()))

	assert.Equal(t, 2, store.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.OrderCountIncrements.WithLabelValues("failed")))
}

func TestClient_DropsAfterClose(t *testing.T) {
	store := NewMemoryStore()
	client, metrics := newTestClient(store)
	require.NoError(t, client.Close(context.Background()))

	client.IncrementOrderCount(1, 1)

	assert.Empty(t, store.Snapshot())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OrderCountIncrements.WithLabelValues("dropped")))
}

func TestClient_WatchOrderCount(t *testing.T) {
	store := NewMemoryStore()
	client, _ := newTestClient(store)
	defer client.Close(context.Background())

	sub, err := client.WatchOrderCount(context.Background(), 4)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, int64(0), receive(t, sub))

	client.IncrementOrderCount(4, 6)
	assert.Equal(t, int64(6), receive(t, sub))
}

func TestClient_ReadErrors(t *testing.T) {
	client, _ := newTestClient(unreachableStore{NewMemoryStore()})
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	_, err := client.GetOrderCount(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.ErrorIs(t, err, errBackendDown)

	_, err = client.WatchOrderCount(context.Background(), 1)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	coded, _ := newTestClient(invalidStore{NewMemoryStore()})
	t.Cleanup(func() { _ = coded.Close(context.Background()) })

	_, err = coded.GetOrderCount(context.Background(), 1)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "coded errors pass through")
}

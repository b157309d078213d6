package ordercount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrementCreatesCounter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "missing counters read as zero")

	n, err = s.Increment(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Increment(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestMemoryStore_RejectsBadIncrements(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Increment(context.Background(), 1, 0)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	_, err = s.Increment(context.Background(), 0, 1)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	assert.Empty(t, s.Snapshot())
}

func TestMemoryStore_ConcurrentIncrementsDoNotLoseUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const writers, perWriter = 16, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := s.Increment(ctx, 7, 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), n)
}

func receive(t *testing.T, sub *Subscription) int64 {
	t.Helper()
	select {
	case v, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for order count")
		return 0
	}
}

func TestMemoryStore_WatchPushesCurrentThenChanges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Increment(ctx, 3, 4)
	require.NoError(t, err)

	sub, err := s.Watch(ctx, 3)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, int64(4), receive(t, sub))

	_, err = s.Increment(ctx, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), receive(t, sub))

	// Other products do not leak into this feed.
	_, err = s.Increment(ctx, 9, 1)
	require.NoError(t, err)
	select {
	case v := <-sub.C:
		t.Fatalf("unexpected value %d for another product", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryStore_UnsubscribeClosesFeed(t *testing.T) {
	s := NewMemoryStore()

	sub, err := s.Watch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), receive(t, sub))

	sub.Unsubscribe()

	_, ok := <-sub.C
	assert.False(t, ok, "channel must be closed after Unsubscribe")

	_, err = s.Increment(context.Background(), 1, 1)
	require.NoError(t, err, "increments after unsubscribe must not block or panic")
}

func TestMemoryStore_WatchEndsWithContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.Watch(ctx, 1)
	require.NoError(t, err)
	receive(t, sub)

	cancel()
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("feed did not close after context cancellation")
	}
}

func TestSubscription_SlowReaderSeesLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sub, err := s.Watch(ctx, 1)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for i := 0; i < 10; i++ {
		_, err := s.Increment(ctx, 1, 1)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(10), receive(t, sub), "stale values are dropped in favour of the newest")
}

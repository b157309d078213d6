package ordercount

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store used in tests and single-node dev runs.
type MemoryStore struct {
	mu       sync.Mutex
	counts   map[int]int64
	watchers map[int]map[int]func(int64)
	nextID   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts:   make(map[int]int64),
		watchers: make(map[int]map[int]func(int64)),
	}
}

func (s *MemoryStore) Increment(ctx context.Context, productID int, amount int) (int64, error) {
	if err := validateIncrement("ordercount.increment", productID, amount); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[productID] += int64(amount)
	value := s.counts[productID]
	for _, emit := range s.watchers[productID] {
		emit(value)
	}
	return value, nil
}

func (s *MemoryStore) Get(ctx context.Context, productID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[productID], nil
}

func (s *MemoryStore) Watch(ctx context.Context, productID int) (*Subscription, error) {
	return startSubscription(ctx, func(ctx context.Context, emit func(int64)) {
		s.mu.Lock()
		s.nextID++
		id := s.nextID
		if s.watchers[productID] == nil {
			s.watchers[productID] = make(map[int]func(int64))
		}
		s.watchers[productID][id] = emit
		emit(s.counts[productID])
		s.mu.Unlock()

		<-ctx.Done()

		s.mu.Lock()
		delete(s.watchers[productID], id)
		if len(s.watchers[productID]) == 0 {
			delete(s.watchers, productID)
		}
		s.mu.Unlock()
	}), nil
}

// Snapshot returns a copy of every counter.
func (s *MemoryStore) Snapshot() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int64, len(s.counts))
	for id, n := range s.counts {
		out[id] = n
	}
	return out
}

package sweep

import (
	"context"
	"sync"
)

// InMemoryStore is a simple thread-safe map-based store for testing and dry
// runs. It loses data on restart.
type InMemoryStore struct {
	mu    sync.RWMutex
	data  Records
	saves int
}

// NewInMemoryStore creates a new in-memory store, optionally seeded.
func NewInMemoryStore(seed ...ResultRecord) *InMemoryStore {
	s := &InMemoryStore{data: make(Records)}
	for _, rec := range seed {
		s.data.Put(rec)
	}
	return s
}

func (s *InMemoryStore) Identity() string {
	return "memory"
}

func (s *InMemoryStore) Load(ctx context.Context) (Records, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy so callers can modify their snapshot
	return s.data.Clone(), nil
}

func (s *InMemoryStore) Save(ctx context.Context, records Records) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = records.Clone()
	s.saves++
	return nil
}

// Merge puts one record under the write lock.
func (s *InMemoryStore) Merge(ctx context.Context, record ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Messages = append([]string{}, record.Messages...)
	s.data.Put(record)
	return nil
}

// Saves returns how many times Save has been called.
func (s *InMemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

package sweep

import (
	"context"
)

// Store is the interface for persisting results.
// Implementations (file, SQLite/MySQL, Postgres, Redis, memory) must be safe
// for concurrent use by every worker, and each individual Load or Save must
// be mutually exclusive with every other Load or Save on the same backing
// resource. Exclusion is per call, not per read-modify-write cycle.
type Store interface {
	// Load returns the current durable state. A persisted state that exists
	// but cannot be decoded yields a *CorruptStoreError.
	Load(ctx context.Context) (Records, error)

	// Save writes the full mapping back, in canonical order where the
	// backend has an order. File and memory stores replace their contents;
	// row and hash stores only add or update records and never delete.
	Save(ctx context.Context, records Records) error

	// Identity names the backing resource (path, table, key prefix). Locks
	// are keyed by it.
	Identity() string
}

// Merger is implemented by stores that can persist a single record without
// rewriting the whole mapping (row, hash and memory stores).
type Merger interface {
	Merge(ctx context.Context, record ResultRecord) error
}

// Merge persists one record. Stores that implement Merger write it
// directly and Merge returns a nil snapshot; other stores are loaded fresh,
// updated, and saved, and the updated snapshot is returned.
func Merge(ctx context.Context, s Store, record ResultRecord) (Records, error) {
	if m, ok := s.(Merger); ok {
		return nil, m.Merge(ctx, record)
	}
	fresh, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	fresh.Put(record)
	if err := s.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

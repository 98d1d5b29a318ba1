package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using github.com/jackc/pgx/v5.
// It is designed to work with pgxpool.
type PostgresStore struct {
	pool      *pgxpool.Pool
	tableName string
	lock      Locker
}

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = "sweep_results"
	}
	s := &PostgresStore{
		pool:      pool,
		tableName: tableName,
	}
	s.lock = LocalLock("postgres:" + s.Identity())
	return s
}

// NewPostgresStoreFromURL connects a pool and creates the store.
func NewPostgresStoreFromURL(ctx context.Context, url, tableName string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresStore(pool, tableName), nil
}

func (s *PostgresStore) Identity() string {
	return "postgres:" + s.tableName
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			candidate TEXT PRIMARY KEY,
			outcome TEXT NOT NULL,
			payload BYTEA,
			updated_at TIMESTAMPTZ
		);
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) (Records, error) {
	query := fmt.Sprintf(`
		SELECT candidate, payload
		FROM %s
		ORDER BY LENGTH(candidate), candidate
	`, s.tableName)

	records := make(Records)
	err := withLock(ctx, s.lock, s.Identity(), func() error {
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return &StoreError{Op: "load", Resource: s.Identity(), Cause: err}
		}
		defer rows.Close()

		for rows.Next() {
			var candidate string
			var payload []byte
			if err := rows.Scan(&candidate, &payload); err != nil {
				return &StoreError{Op: "load", Resource: s.Identity(), Cause: err}
			}
			rec, err := decodeRecordProto(candidate, payload)
			if err != nil {
				return &CorruptStoreError{Resource: s.Identity(), Key: candidate, Cause: err}
			}
			records[candidate] = rec
		}
		if err := rows.Err(); err != nil {
			return &StoreError{Op: "load", Resource: s.Identity(), Cause: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *PostgresStore) Save(ctx context.Context, records Records) error {
	return withLock(ctx, s.lock, s.Identity(), func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		defer func() { _ = tx.Rollback(ctx) }()

		batch := &pgx.Batch{}
		now := time.Now().UTC()
		for _, key := range records.SortedKeys() {
			payload, err := encodeRecordProto(records[key])
			if err != nil {
				return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
			}
			batch.Queue(s.upsertQuery(), key, records[key].Outcome.String(), payload, now)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		if err := tx.Commit(ctx); err != nil {
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		return nil
	})
}

func (s *PostgresStore) Merge(ctx context.Context, record ResultRecord) error {
	return withLock(ctx, s.lock, s.Identity(), func() error {
		payload, err := encodeRecordProto(record)
		if err != nil {
			return &StoreError{Op: "merge", Resource: s.Identity(), Cause: err}
		}
		_, err = s.pool.Exec(ctx, s.upsertQuery(),
			record.Candidate,
			record.Outcome.String(),
			payload,
			time.Now().UTC(),
		)
		if err != nil {
			return &StoreError{Op: "merge", Resource: s.Identity(), Cause: err}
		}
		return nil
	})
}

func (s *PostgresStore) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (candidate, outcome, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(candidate) DO UPDATE SET
			outcome = excluded.outcome,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, s.tableName)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

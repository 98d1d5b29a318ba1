package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLDialect defines the SQL syntax variant.
type SQLDialect string

const (
	DialectSQLite SQLDialect = "sqlite"
	DialectMySQL  SQLDialect = "mysql"
)

// SQLStore implements Store using database/sql.
// It supports SQLite and MySQL; use PostgresStore for Postgres.
//
// Each candidate is one row, so Save upserts rather than rewriting a
// document, and Merge writes a single row.
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	lock      Locker
}

// NewSQLStore creates a new SQL-backed store.
// The user is responsible for opening the *sql.DB with their preferred driver.
func NewSQLStore(db *sql.DB, tableName string, dialect SQLDialect) *SQLStore {
	if tableName == "" {
		tableName = "sweep_results"
	}
	s := &SQLStore{
		db:        db,
		tableName: tableName,
		dialect:   dialect,
	}
	s.lock = LocalLock("sql:" + s.Identity())
	return s
}

func (s *SQLStore) Identity() string {
	return string(s.dialect) + ":" + s.tableName
}

// InitSchema creates the necessary table if it doesn't exist.
// This is a helper for "migration-free" usage.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	keyType := "TEXT"
	if s.dialect == DialectMySQL {
		// MySQL cannot index an unbounded TEXT column
		keyType = "VARCHAR(16)"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			candidate %s PRIMARY KEY,
			outcome VARCHAR(32) NOT NULL,
			payload BLOB,
			updated_at TIMESTAMP
		)
	`, s.tableName, keyType)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLStore) Load(ctx context.Context) (Records, error) {
	query := fmt.Sprintf(`
		SELECT candidate, payload
		FROM %s
		ORDER BY LENGTH(candidate), candidate
	`, s.tableName)

	records := make(Records)
	err := withLock(ctx, s.lock, s.Identity(), func() error {
		rows, err := s.db.QueryContext(ctx, query)
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

func (s *SQLStore) Save(ctx context.Context, records Records) error {
	return withLock(ctx, s.lock, s.Identity(), func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
		if err != nil {
			_ = tx.Rollback()
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, key := range records.SortedKeys() {
			if err := s.execUpsert(ctx, stmt, records[key], now); err != nil {
				_ = tx.Rollback()
				return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
			}
		}
		if err := tx.Commit(); err != nil {
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		return nil
	})
}

func (s *SQLStore) Merge(ctx context.Context, record ResultRecord) error {
	return withLock(ctx, s.lock, s.Identity(), func() error {
		payload, err := encodeRecordProto(record)
		if err != nil {
			return &StoreError{Op: "merge", Resource: s.Identity(), Cause: err}
		}
		_, err = s.db.ExecContext(ctx, s.upsertQuery(),
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

func (s *SQLStore) execUpsert(ctx context.Context, stmt *sql.Stmt, record ResultRecord, now time.Time) error {
	payload, err := encodeRecordProto(record)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, record.Candidate, record.Outcome.String(), payload, now)
	return err
}

// upsertQuery builds the insert-or-update statement for the dialect.
func (s *SQLStore) upsertQuery() string {
	if s.dialect == DialectMySQL {
		return fmt.Sprintf(`
			INSERT INTO %s (candidate, outcome, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				outcome = VALUES(outcome),
				payload = VALUES(payload),
				updated_at = VALUES(updated_at)
		`, s.tableName)
	}
	return fmt.Sprintf(`
		INSERT INTO %s (candidate, outcome, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(candidate) DO UPDATE SET
			outcome = excluded.outcome,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, s.tableName)
}

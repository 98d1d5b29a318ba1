package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// storeContract exercises the behavior every backend shares.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	want := Records{}
	want.Put(ResultRecord{Candidate: "42", Outcome: OutcomeIncorrect})
	want.Put(ResultRecord{Candidate: "1", Outcome: OutcomeCorrect, Messages: []string{"Hi\nthere"}})
	want.Put(ResultRecord{Candidate: "007", Outcome: OutcomeIncorrect, Messages: []string{"no"}})
	want.Put(ResultRecord{Candidate: "7", Outcome: OutcomeCorrect})
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("load after save (-want +got):\n%s", diff)
	}

	// Merging an existing key replaces its record; new keys are added.
	errRec := NewErrorRecord("42", fmt.Errorf("request failed: EOF"))
	_, err = Merge(ctx, store, errRec)
	require.NoError(t, err)
	_, err = Merge(ctx, store, ResultRecord{Candidate: "99", Outcome: OutcomeIncorrect})
	require.NoError(t, err)

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, errRec, got["42"])
	assert.Equal(t, []string{"1", "7", "42", "99", "007"}, got.SortedKeys())

	// Save only adds or updates rows; records missing from the mapping stay.
	require.NoError(t, store.Save(ctx, Records{"7": {Candidate: "7", Outcome: OutcomeIncorrect, Messages: []string{}}}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, OutcomeIncorrect, got["7"].Outcome)
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sweep.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLStore_SQLite(t *testing.T) {
	db := openSQLite(t)
	store := NewSQLStore(db, "", DialectSQLite)
	require.NoError(t, store.InitSchema(context.Background()))
	assert.Equal(t, "sqlite:sweep_results", store.Identity())

	storeContract(t, store)
}

func TestSQLStore_SQLiteCorruptRow(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	store := NewSQLStore(db, "results", DialectSQLite)
	require.NoError(t, store.InitSchema(ctx))

	_, err := db.ExecContext(ctx,
		`INSERT INTO results (candidate, outcome, payload) VALUES (?, ?, ?)`,
		"13", "CORRECT", []byte{0xff, 0xff})
	require.NoError(t, err)

	_, err = store.Load(ctx)
	var corrupt *CorruptStoreError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "13", corrupt.Key)
	assert.Equal(t, "sqlite:results", corrupt.Resource)
}

func TestSQLStore_MissingTableIsStoreError(t *testing.T) {
	store := NewSQLStore(openSQLite(t), "never_created", DialectSQLite)

	_, err := store.Load(context.Background())
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "load", storeErr.Op)
	assert.False(t, IsCorrupt(err))
}

func TestSQLStore_MySQL(t *testing.T) {
	dsn := os.Getenv("DIGITSWEEP_MYSQL_DSN")
	if dsn == "" {
		t.Skip("DIGITSWEEP_MYSQL_DSN not set")
	}
	ctx := context.Background()
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()

	table := "sweep_test_" + uuid.NewString()[:8]
	store := NewSQLStore(db, table, DialectMySQL)
	require.NoError(t, store.InitSchema(ctx))
	defer db.ExecContext(ctx, "DROP TABLE "+table)

	storeContract(t, store)
}

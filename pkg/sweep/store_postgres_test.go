package sweep

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DIGITSWEEP_POSTGRES_URL")
	if url == "" {
		t.Skip("DIGITSWEEP_POSTGRES_URL not set")
	}
	ctx := context.Background()

	table := "sweep_test_" + uuid.NewString()[:8]
	store, err := NewPostgresStoreFromURL(ctx, url, table)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.InitSchema(ctx))
	defer store.pool.Exec(ctx, "DROP TABLE "+table)

	storeContract(t, store)
}

package sweep

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("DIGITSWEEP_REDIS_URL")
	if url == "" {
		t.Skip("DIGITSWEEP_REDIS_URL not set")
	}
	store, err := NewRedisStoreFromURL(url, "digitsweep-test:"+uuid.NewString()+":")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.client.Del(context.Background(), store.hashKey(), store.prefix+"lock")
		store.Close()
	})
	require.NoError(t, store.Ping(context.Background()))
	return store
}

func TestRedisStore(t *testing.T) {
	storeContract(t, newTestRedisStore(t))
}

func TestRedisLock_ExcludesSecondHolder(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	key := store.prefix + "lock"

	unlock, err := NewRedisLock(store.client, key, time.Minute).Lock(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = NewRedisLock(store.client, key, time.Minute).Lock(short)
	require.Error(t, err)

	require.NoError(t, unlock())
	exists, err := store.client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

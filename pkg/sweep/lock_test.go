package sweep

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/data/results.json.lock", LockPath("/data/results.json"))
	assert.Equal(t, `C_\data\results.json.lock`, LockPath(`C:\data\results.json`))
}

func TestLocalLock_SharedByIdentity(t *testing.T) {
	ctx := context.Background()
	a, b := LocalLock("test:shared"), LocalLock("test:shared")

	unlock, err := a.Lock(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = b.Lock(short)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())
	unlock, err = b.Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestLocalLock_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := LocalLock("test:exclusion")
			for range 20 {
				unlock, err := l.Lock(ctx)
				if err != nil {
					t.Errorf("lock: %v", err)
					return
				}
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				inside.Add(-1)
				_ = unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestFileLock_ExcludesOtherHandles(t *testing.T) {
	ctx := context.Background()
	doc := filepath.Join(t.TempDir(), "results.json")
	a, b := NewFileLock(doc), NewFileLock(doc)
	assert.Equal(t, doc+".lock", a.Path())

	unlock, err := a.Lock(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = b.Lock(short)
	require.Error(t, err)

	require.NoError(t, unlock())
	unlock, err = b.Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestWithLock_LockFailureIsStoreError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	held := LocalLock("test:with-lock")
	unlock, err := held.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	called := false
	err = withLock(ctx, held, "res", func() error {
		called = true
		return nil
	})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "lock", storeErr.Op)
	assert.Equal(t, "res", storeErr.Resource)
	assert.False(t, called)
}

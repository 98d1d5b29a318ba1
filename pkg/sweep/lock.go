package sweep

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"
)

// Locker is a named mutual-exclusion resource. Unlock must be called exactly
// once after a successful Lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

var namedMutexes sync.Map // identity -> *sync.Mutex

// LocalLock returns the process-wide lock for an identity. Every call with
// the same identity returns a Locker sharing one mutex.
func LocalLock(identity string) Locker {
	m, _ := namedMutexes.LoadOrStore(identity, &sync.Mutex{})
	return localLock{mu: m.(*sync.Mutex)}
}

type localLock struct {
	mu *sync.Mutex
}

func (l localLock) Lock(ctx context.Context) (func() error, error) {
	// sync.Mutex is not context aware; poll TryLock so a cancelled caller
	// does not block behind a slow holder.
	for !l.mu.TryLock() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return func() error {
		l.mu.Unlock()
		return nil
	}, nil
}

// LockPath derives the lock file for a document path. Colons are replaced
// so the lock file name stays valid on every platform.
func LockPath(docPath string) string {
	return strings.ReplaceAll(docPath, ":", "_") + ".lock"
}

// FileLock excludes both goroutines of this process and other processes
// sharing the same document. It takes the in-process lock first, then an
// advisory lock on the lock file.
type FileLock struct {
	local Locker
	file  *flock.Flock
	retry time.Duration
}

// NewFileLock creates the lock guarding docPath.
func NewFileLock(docPath string) *FileLock {
	lockPath := LockPath(docPath)
	return &FileLock{
		local: LocalLock("file:" + lockPath),
		file:  flock.New(lockPath),
		retry: 10 * time.Millisecond,
	}
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.file.Path()
}

func (l *FileLock) Lock(ctx context.Context) (func() error, error) {
	unlockLocal, err := l.local.Lock(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := l.file.TryLockContext(ctx, l.retry)
	if err != nil || !ok {
		_ = unlockLocal()
		if err == nil {
			err = ErrLockTimeout
		}
		return nil, fmt.Errorf("lock %s: %w", l.file.Path(), err)
	}
	return func() error {
		ferr := l.file.Unlock()
		_ = unlockLocal()
		return ferr
	}, nil
}

// releaseScript deletes the lock key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a SET NX lock shared by every process using the same key.
// The TTL bounds how long a crashed holder can block others.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
	local  Locker
}

// NewRedisLock creates a lock on key.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		retry:  10 * time.Millisecond,
		local:  LocalLock("redis:" + key),
	}
}

func (l *RedisLock) Lock(ctx context.Context) (func() error, error) {
	unlockLocal, err := l.local.Lock(ctx)
	if err != nil {
		return nil, err
	}
	token, err := lockToken()
	if err != nil {
		_ = unlockLocal()
		return nil, err
	}
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			_ = unlockLocal()
			return nil, fmt.Errorf("redis lock %s: %w", l.key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			_ = unlockLocal()
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	return func() error {
		// Release even if the caller's context is already cancelled.
		err := releaseScript.Run(context.Background(), l.client, []string{l.key}, token).Err()
		_ = unlockLocal()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("redis unlock %s: %w", l.key, err)
		}
		return nil
	}, nil
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// withLock runs fn while holding l. Failing to take the lock is reported as
// a StoreError for resource.
func withLock(ctx context.Context, l Locker, resource string, fn func() error) (err error) {
	unlock, err := l.Lock(ctx)
	if err != nil {
		return &StoreError{Op: "lock", Resource: resource, Cause: err}
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

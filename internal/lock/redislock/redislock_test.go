package redislock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupLocker creates a Locker backed by a miniredis server.
func setupLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	opts := DefaultOptions()
	opts.RetryDelay = 5 * time.Millisecond
	opts.Tries = 1000

	return New(client, opts, nil), mr
}

func TestLocker_WithLock(t *testing.T) {
	locker, mr := setupLocker(t)

	executed := false
	err := locker.WithLock(context.Background(), "customer:1", func(context.Context) error {
		executed = true
		assert.True(t, mr.Exists(keyPrefix+"customer:1"), "lock key should exist while held")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, executed)
	assert.False(t, mr.Exists(keyPrefix+"customer:1"), "lock key should be removed after release")
}

func TestLocker_PropagatesError(t *testing.T) {
	locker, _ := setupLocker(t)

	err := locker.WithLock(context.Background(), "customer:1", func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLocker_EmptyKey(t *testing.T) {
	locker, _ := setupLocker(t)

	err := locker.WithLock(context.Background(), "", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyLockKey)
}

func TestLocker_ConcurrentExclusion(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx := context.Background()

	var inside, violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "customer:1", func(context.Context) error {
				if inside.Add(1) > 1 {
					violations.Add(1)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, violations.Load())
}

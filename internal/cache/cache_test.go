package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/testutil"
)

func sample(life int) core.CachedScores {
	return core.CachedScores{
		Scores:     core.ScoreSet{Life: life, Habit: 10, Goal: 50},
		ComputedAt: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "user-1", sample(40)))
	require.NoError(t, m.Set(ctx, "user-2", sample(60)))

	got, ok, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample(40), got)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Invalidate(ctx, "user-1"))
	_, ok, _ = m.Get(ctx, "user-1")
	assert.False(t, ok)

	_, ok, _ = m.Get(ctx, "user-2")
	assert.True(t, ok, "invalidate is scoped to one owner")

	// Invalidating an absent owner is a no-op
	assert.NoError(t, m.Invalidate(ctx, "nobody"))
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("user-%d", i%4)
			_ = m.Set(ctx, owner, sample(i))
			_, _, _ = m.Get(ctx, owner)
			if i%3 == 0 {
				_ = m.Invalidate(ctx, owner)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 4)
}

func TestNewRedis_Validation(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisOptions{})
	assert.Error(t, err)
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedis_Unavailable(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisFromClient(rdb, time.Minute)
	defer c.Close()

	ctx := context.Background()
	_, _, err := c.Get(ctx, "user-1")
	assert.True(t, core.IsStoreUnavailable(err), "got %v", err)
	assert.True(t, core.IsStoreUnavailable(c.Set(ctx, "user-1", sample(1))))
	assert.True(t, core.IsStoreUnavailable(c.Invalidate(ctx, "user-1")))
}

func TestRedis(t *testing.T) {
	addr := testutil.RequireEnv(t, "LIFESCORE_TEST_REDIS_ADDR")
	ctx := testutil.TestContext(t)

	c, err := NewRedis(ctx, RedisOptions{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	owner := "user-" + testutil.RandomID()
	t.Cleanup(func() { _ = c.Invalidate(context.Background(), owner) })

	_, ok, err := c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, owner, sample(42)))
	got, ok, err := c.Get(ctx, owner)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, got.Scores.Life)
	assert.True(t, got.ComputedAt.Equal(sample(42).ComputedAt))

	ttl, err := c.rdb.TTL(ctx, KeyPrefix+owner).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// A corrupt entry reads as a miss
	require.NoError(t, c.rdb.Set(ctx, KeyPrefix+owner, "{not json", 0).Err())
	_, ok, err = c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, owner))
	_, ok, err = c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
}

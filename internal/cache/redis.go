package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quantumlife/lifescore/internal/core"
)

// KeyPrefix namespaces score entries in Redis
const KeyPrefix = "lifescore:scores:"

// RedisOptions configures a Redis-backed cache
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // Zero keeps entries until invalidated
}

// Redis is a score cache shared between processes
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisFromClient(rdb, opts.TTL), nil
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(rdb *goredis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func key(ownerID string) string {
	return KeyPrefix + ownerID
}

// Get returns the owner's cached scores
func (r *Redis) Get(ctx context.Context, ownerID string) (core.CachedScores, bool, error) {
	raw, err := r.rdb.Get(ctx, key(ownerID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.CachedScores{}, false, nil
	}
	if err != nil {
		return core.CachedScores{}, false, core.NewStoreUnavailableError("cache get", err)
	}

	var scores core.CachedScores
	if err := json.Unmarshal(raw, &scores); err != nil {
		// A corrupt entry is a miss; the next recompute overwrites it
		return core.CachedScores{}, false, nil
	}
	return scores, true, nil
}

// Set replaces the owner's cached scores
func (r *Redis) Set(ctx context.Context, ownerID string, scores core.CachedScores) error {
	raw, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key(ownerID), raw, r.ttl).Err(); err != nil {
		return core.NewStoreUnavailableError("cache set", err)
	}
	return nil
}

// Invalidate drops the owner's cached scores
func (r *Redis) Invalidate(ctx context.Context, ownerID string) error {
	if err := r.rdb.Del(ctx, key(ownerID)).Err(); err != nil {
		return core.NewStoreUnavailableError("cache invalidate", err)
	}
	return nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.rdb.Close()
}

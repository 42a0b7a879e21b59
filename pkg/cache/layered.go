package cache

import (
	"context"
	"time"
)

// LayeredCache reads through an in-process L1 to an optional Redis L2.
// Without L2 it behaves as a plain MemoryCache.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
}

// NewLayeredCache creates a layered cache; redisCache may be nil.
func NewLayeredCache(mem *MemoryCache, redisCache *RedisCache) *LayeredCache {
	if mem == nil {
		mem = NewMemoryCache()
	}
	return &LayeredCache{mem: mem, redis: redisCache}
}

// Set writes through: Redis first, then memory.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if lc.redis != nil {
		if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return lc.mem.Set(ctx, key, value, expiration)
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if lc.redis == nil {
		return ErrCacheMiss
	}
	if err := lc.redis.Get(ctx, key, dest); err != nil {
		return err
	}
	// promote with the memory default TTL
	_ = lc.mem.Set(ctx, key, dest, 0)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	if lc.redis != nil {
		return lc.redis.Delete(ctx, keys...)
	}
	return nil
}

// TryLock uses Redis when present so the lock spans processes.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if lc.redis != nil {
		return lc.redis.TryLock(ctx, key, ttl)
	}
	return lc.mem.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	if lc.redis != nil {
		return lc.redis.Unlock(ctx, key)
	}
	return lc.mem.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	if lc.redis != nil {
		return lc.redis.Close()
	}
	return nil
}

var (
	_ Service = (*MemoryCache)(nil)
	_ Service = (*RedisCache)(nil)
	_ Service = (*LayeredCache)(nil)
)

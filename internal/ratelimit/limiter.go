package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Limiter records one event for key and reports whether it fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error)
}

// RedisLimiter implements a sliding window limiter backed by Redis sorted sets.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
}

// Allow implements Limiter.
func (l RedisLimiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}

	now := time.Now()
	until := now.Add(window)
	redisKey := l.Prefix + key
	member := fmt.Sprintf("%s:%s", key, uuid.NewString())

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, until, err
	}

	current := int(countCmd.Val())
	return current <= limit, max(limit-current, 0), until, nil
}

// StoreLimiter is a fixed window limiter over a ulule/limiter store. It is
// used when no Redis instance is configured.
type StoreLimiter struct {
	Store  limiter.Store
	Prefix string
}

// NewMemoryLimiter returns a StoreLimiter over an in-process store.
func NewMemoryLimiter(prefix string) StoreLimiter {
	return StoreLimiter{
		Store:  memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}),
		Prefix: prefix,
	}
}

// Allow implements Limiter.
func (l StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error) {
	if l.Store == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}
	rate := limiter.Rate{Period: window, Limit: int64(limit)}
	lctx, err := limiter.New(l.Store, rate).Get(ctx, fmt.Sprintf("%s:%d:%s", window, limit, key))
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

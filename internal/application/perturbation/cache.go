package perturbation

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"

	"github.com/turtacn/ligandnet/internal/domain/ligand"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
	"github.com/turtacn/ligandnet/internal/infrastructure/database/redis"
	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
)

// ScoreCache memoizes pair results.  Implementations return exactly what
// compute returned, so a cached matrix equals an uncached one.  Errors from
// compute are returned unchanged; backend failures are logged and fall back
// to compute.
type ScoreCache interface {
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) (scoring.Result, error)) (res scoring.Result, hit bool, err error)
	Backend() string
}

// CacheKey identifies an ordered pair under one rule configuration and one
// matcher identity.  The matcher key is hashed so that long identities keep
// Redis keys short.
func CacheKey(configHash, matcherKey string, a, b *ligand.Ligand) string {
	sum := blake3.Sum256([]byte(matcherKey))
	return configHash + ":" + hex.EncodeToString(sum[:8]) + ":" + a.Fingerprint + ":" + b.Fingerprint
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory cache
// ─────────────────────────────────────────────────────────────────────────────

type memoryCache struct {
	entries sync.Map
	group   singleflight.Group
}

// NewMemoryCache returns a process-local ScoreCache.  Concurrent misses on
// one key share a single computation.
func NewMemoryCache() ScoreCache {
	return &memoryCache{}
}

func (c *memoryCache) Backend() string { return "memory" }

func (c *memoryCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (scoring.Result, error)) (scoring.Result, bool, error) {
	if v, ok := c.entries.Load(key); ok {
		return v.(scoring.Result), true, nil
	}
	computed := false
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		computed = true
		r, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, r)
		return r, nil
	})
	if err != nil {
		return scoring.Result{}, false, err
	}
	return v.(scoring.Result), !computed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis-backed cache
// ─────────────────────────────────────────────────────────────────────────────

type redisScoreCache struct {
	cache  redis.Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisScoreCache stores results as JSON through cache.
func NewRedisScoreCache(cache redis.Cache, ttl time.Duration, logger logging.Logger) ScoreCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &redisScoreCache{cache: cache, ttl: ttl, logger: logger}
}

func (c *redisScoreCache) Backend() string { return "redis" }

func (c *redisScoreCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (scoring.Result, error)) (scoring.Result, bool, error) {
	var (
		res        scoring.Result
		computed   bool
		computeErr error
	)
	err := c.cache.GetOrSet(ctx, key, &res, c.ttl, func(ctx context.Context) (interface{}, error) {
		computed = true
		r, err := compute(ctx)
		if err != nil {
			computeErr = err
			return nil, err
		}
		return r, nil
	})
	switch {
	case computeErr != nil:
		return scoring.Result{}, false, computeErr
	case err == nil:
		return res, !computed, nil
	}

	c.logger.Warn("score cache unavailable, computing directly", logging.String("key", key), logging.Err(err))
	res, err = compute(ctx)
	return res, false, err
}

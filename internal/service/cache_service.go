package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/redis"
)

// CacheService fronts Redis for the stats cache, run locks and shared quota
// counters. A nil Redis client turns every method into a pass-through.
type CacheService struct {
	redis  *redis.Client
	tenant string
	logger *zap.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, tenant string, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		redis:  redisClient,
		tenant: tenant,
		logger: logger,
	}
}

// Enabled reports whether a Redis backend is attached
func (c *CacheService) Enabled() bool {
	return c != nil && c.redis != nil
}

// ForTenant returns a cache service scoped to another tenant on the same client
func (c *CacheService) ForTenant(tenant string) *CacheService {
	return &CacheService{redis: c.redis, tenant: tenant, logger: c.logger}
}

// GetStatsWithCache returns channel stats with a cache-aside read
func (c *CacheService) GetStatsWithCache(ctx context.Context, compute func(ctx context.Context) (*domain.ChannelStats, error)) (*domain.ChannelStats, error) {
	if !c.Enabled() {
		return compute(ctx)
	}
	var stats domain.ChannelStats
	if c.readJSON(ctx, c.redis.KeyBuilder.KeyStats(c.tenant), &stats) {
		return &stats, nil
	}
	fresh, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.writeJSON(ctx, c.redis.KeyBuilder.KeyStats(c.tenant), fresh)
	return fresh, nil
}

// GetStatusStatsWithCache returns status counts with a cache-aside read
func (c *CacheService) GetStatusStatsWithCache(ctx context.Context, compute func(ctx context.Context) (*domain.StatusStats, error)) (*domain.StatusStats, error) {
	if !c.Enabled() {
		return compute(ctx)
	}
	var stats domain.StatusStats
	if c.readJSON(ctx, c.redis.KeyBuilder.KeyStatusStats(c.tenant), &stats) {
		return &stats, nil
	}
	fresh, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.writeJSON(ctx, c.redis.KeyBuilder.KeyStatusStats(c.tenant), fresh)
	return fresh, nil
}

// InvalidateStats drops both stats entries after the channel set changes
func (c *CacheService) InvalidateStats(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	keys := []string{
		c.redis.KeyBuilder.KeyStats(c.tenant),
		c.redis.KeyBuilder.KeyStatusStats(c.tenant),
	}
	if err := c.redis.Delete(ctx, keys...); err != nil {
		c.logger.Error("Failed to invalidate stats cache",
			zap.String("tenant", c.tenant),
			zap.Error(err))
	}
}

// AcquireRunLock takes the per-tenant lock for job. The returned func
// releases it only if this holder still owns it.
func (c *CacheService) AcquireRunLock(ctx context.Context, job string) (func(), error) {
	if !c.Enabled() {
		return func() {}, nil
	}

	key := c.redis.KeyBuilder.KeyRunLock(c.tenant, job)
	token := newToken()

	ok, err := c.redis.SetNX(ctx, key, token, redis.TTLRunLock)
	if err != nil {
		// An unreachable lock store must not block a run
		c.logger.Warn("Run lock unavailable, continuing without it",
			zap.String("job", job),
			zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, errors.NewValidationError(
			fmt.Sprintf("%s run already in progress for tenant %s", job, c.tenant),
			map[string]interface{}{"job": job, "tenant": c.tenant})
	}

	c.logger.Debug("Run lock acquired", zap.String("job", job), zap.String("tenant", c.tenant))
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := c.redis.ReleaseIfMatch(releaseCtx, key, token); err != nil {
			c.logger.Warn("Failed to release run lock", zap.String("job", job), zap.Error(err))
		}
	}, nil
}

// RecordQuota adds units to the shared counter for the quota day
func (c *CacheService) RecordQuota(ctx context.Context, day string, units int) {
	if !c.Enabled() || units <= 0 {
		return
	}
	if _, err := c.redis.IncrBy(ctx, c.redis.KeyBuilder.KeyQuotaUsage(c.tenant, day), int64(units), redis.TTLQuotaUsage); err != nil {
		c.logger.Warn("Failed to record shared quota usage", zap.Int("units", units), zap.Error(err))
	}
}

// QuotaUsed reads the shared counter for the quota day. Missing counts as zero.
func (c *CacheService) QuotaUsed(ctx context.Context, day string) int {
	if !c.Enabled() {
		return 0
	}
	val, err := c.redis.Get(ctx, c.redis.KeyBuilder.KeyQuotaUsage(c.tenant, day))
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("Failed to read shared quota usage", zap.Error(err))
		}
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}

// HealthCheck performs a health check on the cache system
func (c *CacheService) HealthCheck(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	start := time.Now()
	err := c.redis.Health(ctx)
	if err != nil {
		c.logger.Error("Cache health check failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *CacheService) readJSON(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("Cache read failed, computing", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		c.logger.Warn("Cache entry corrupted, computing", zap.String("key", key), zap.Error(err))
		return false
	}
	c.logger.Debug("Cache hit", zap.String("key", key))
	return true
}

func (c *CacheService) writeJSON(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, string(data), redis.TTLStats); err != nil {
		c.logger.Warn("Failed to write cache entry", zap.String("key", key), zap.Error(err))
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

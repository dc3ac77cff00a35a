package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgm-radar/internal/config"
	"bgm-radar/internal/quota"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

const testKey = "AIzaSyA1234567890abcdefghijklmnopqrstu"

func baseConfig() *config.Config {
	return &config.Config{
		Environment:     "test",
		StoreDriver:     config.StoreMemory,
		YouTubeAPIKey:   testKey,
		YouTubeRegion:   "JP",
		YouTubeLanguage: "ja",
		DailyQuotaLimit: 10000,
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		mutate      func(cfg *config.Config)
		expectRedis bool
	}{
		{
			name:        "memory store with Redis configured",
			mutate:      func(cfg *config.Config) { cfg.RedisURL = "redis://" + mr.Addr() },
			expectRedis: true,
		},
		{
			name:        "memory store without Redis",
			mutate:      func(cfg *config.Config) {},
			expectRedis: false,
		},
		{
			name:        "invalid Redis URL falls back to no cache",
			mutate:      func(cfg *config.Config) { cfg.RedisURL = "invalid://redis-url" },
			expectRedis: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			c, err := New(context.Background(), cfg, logger.NewNop())
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, tt.expectRedis, c.RedisClient != nil)
			assert.Equal(t, tt.expectRedis, c.Cache.Enabled())
			_, hasRedisCheck := c.HealthChecks()["redis"]
			assert.Equal(t, tt.expectRedis, hasRedisCheck)

			require.NotNil(t, c.Services)
			assert.NotNil(t, c.Services.Collector)
			assert.NotNil(t, c.Services.Intake)
			assert.NotNil(t, c.Services.Tracker)
			assert.NotNil(t, c.Services.Catalog)
			assert.NotNil(t, c.Services.Batch)
			assert.NoError(t, c.RequireYouTube())
			assert.False(t, c.Auth.Enabled())
		})
	}
}

func TestNewPreloadsSharedQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	ctx := context.Background()

	first, err := New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	first.Cache.RecordQuota(ctx, quota.Day(first.clock()), 420)
	first.Close()

	second, err := New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, 420, second.Quota.Used())
}

func TestNewSQLiteStore(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "radar.db")

	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer c.Close()

	check, ok := c.HealthChecks()["database"]
	require.True(t, ok)
	assert.NoError(t, check(context.Background()))

	ids, err := c.Repositories.Channels.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNewUnknownStoreDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreDriver = "cassandra"

	_, err := New(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestNewWithoutCredential(t *testing.T) {
	cfg := baseConfig()
	cfg.YouTubeAPIKey = "not-a-key"

	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.Error(t, c.RequireYouTube())
	assert.True(t, errors.IsType(c.RequireYouTube(), errors.ErrorTypeConfiguration))

	// The catalogue is still served
	stats, err := c.Services.Catalog.StatusStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestTenantRuntimesAreIsolated(t *testing.T) {
	cfg := baseConfig()
	cfg.TenantAPIKeys = []string{testKey, "AIzaSyB1234567890abcdefghijklmnopqrstu", "bad"}
	cfg.BatchSize = 1

	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer c.Close()

	batches := c.Services.Batch.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, "tenant-1", batches[0][0].ID)

	rt, err := c.tenantRuntime(context.Background(), batches[0][0])
	require.NoError(t, err)
	assert.NotNil(t, rt.Collector)

	first, err := c.repositoriesFor("tenant-1")
	require.NoError(t, err)
	again, err := c.repositoriesFor("tenant-1")
	require.NoError(t, err)
	other, err := c.repositoriesFor("tenant-2")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.NotSame(t, c.Repositories, first)

	_, err = c.tenantRuntime(context.Background(), config.Tenant{ID: "broken", APIKey: "bad"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}
